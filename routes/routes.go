package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sitovia/briefs/app"
	"github.com/sitovia/briefs/routes/middlewares"
)

const (
	draftParam  = `{draft:^[0-9a-f]{32}$}`
	formParam   = `{formId:^[0-9a-z]{8,32}$}`
	localeParam = `{locale:^[a-z]{2}(-[A-Za-z]{2})?$}`
	fieldParam  = `{field}`
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer, app.Metrics.Middleware)

	root.Method(http.MethodGet, "/metrics", app.Metrics.Handler())
	root.Mount("/api", apiRouter(app))

	root.Get("/"+localeParam+"/forms/"+formParam, ShowForm(app))
	root.Post("/"+localeParam+"/forms/"+formParam, SubmitForm(app))

	// browser previews, authenticated with the token cookies
	root.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.CookieAuth(app.BearerServer), middlewares.Admin(app.TokenSecret))
		r.Get("/drafts/"+draftParam+"/preview", PreviewDraft(app))
		r.Post("/drafts/"+draftParam+"/preview", PreviewSubmit(app))
	})

	root.NotFound(NotFoundPage(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()
	api.NotFound(http.NotFound)

	api.Get("/forms/"+formParam, GetPublishedForm(app))
	api.Post("/forms/"+formParam+"/submissions", SubmitFormJSON(app))
	api.Get("/field-types", ListFieldTypes(app))
	api.Get("/sections", ListSections(app))

	api.Route("/admin", func(r chi.Router) {
		r.Use(middlewares.Admin(app.TokenSecret))

		r.Post("/drafts", CreateDraft(app))
		r.Get("/drafts/"+draftParam, GetDraft(app))
		r.Post("/drafts/"+draftParam+"/fields", AddField(app))
		r.Put("/drafts/"+draftParam+"/fields/"+fieldParam, EditField(app))
		r.Delete("/drafts/"+draftParam+"/fields/"+fieldParam, DeleteField(app))
		r.Post("/drafts/"+draftParam+"/import", ImportFields(app))
		r.Get("/drafts/"+draftParam+"/export", ExportTemplate(app))
		r.Put("/drafts/"+draftParam+"/template", ReplaceTemplate(app))
		r.Get("/drafts/"+draftParam+"/preview", PreviewDraft(app))
		r.Post("/drafts/"+draftParam+"/preview", PreviewSubmit(app))
		r.Post("/drafts/"+draftParam+"/publish", PublishDraft(app))

		r.Get("/forms/"+formParam+"/submissions", ListSubmissions(app))
	})

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	return api
}
