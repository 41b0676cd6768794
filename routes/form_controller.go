package routes

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/sitovia/briefs/app"
	"github.com/sitovia/briefs/httpx"
	"github.com/sitovia/briefs/log"
	"github.com/sitovia/briefs/model"
	brender "github.com/sitovia/briefs/render"
	"github.com/sitovia/briefs/store"
	"github.com/sitovia/briefs/validation"
)

const formTitle = "Project brief"

// ShowForm renders a published form, or the terminal not found page.
func ShowForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := loadFormPage(w, r, app)
		if !ok {
			return
		}

		writeHTML(w, http.StatusOK, "render.form", func(out io.Writer) error {
			return app.Renderer.Form(out, brender.Page{
				Title:  formTitle,
				Mode:   brender.ModePublic,
				Action: r.URL.Path,
				Fields: form.Fields,
			})
		})
	}
}

// SubmitForm validates a posted form. Invalid answers come back inline with
// status 422; valid ones are recorded and answered with the thank you page.
func SubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := loadFormPage(w, r, app)
		if !ok {
			return
		}

		values, err := brender.Decode(form.Fields, r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_form")
			return
		}

		errs := validation.Validate(form.Fields, values)
		if !errs.Valid() {
			app.Metrics.ObserveSubmission("invalid")
			writeHTML(w, http.StatusUnprocessableEntity, "render.form", func(out io.Writer) error {
				return app.Renderer.Form(out, brender.Page{
					Title:  formTitle,
					Mode:   brender.ModePublic,
					Action: r.URL.Path,
					Fields: form.Fields,
					Values: values,
					Errors: errs,
				})
			})
			return
		}

		if _, ok := recordSubmission(w, r, app, form.ID, values); !ok {
			return
		}

		writeHTML(w, http.StatusCreated, "render.thanks", func(out io.Writer) error {
			return app.Renderer.Thanks(out, formTitle)
		})
	}
}

func GetPublishedForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := loadForm(w, r, app)
		if !ok {
			return
		}
		render.JSON(w, r, form)
	}
}

// SubmitFormJSON takes {"data": {fieldId: value}} and answers with the
// submission id, or 422 and the per-field errors.
func SubmitFormJSON(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := loadForm(w, r, app)
		if !ok {
			return
		}

		var req struct {
			Data map[string]any `json:"data"`
		}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		values := brender.Normalize(form.Fields, req.Data)
		errs := validation.Validate(form.Fields, values)
		if !errs.Valid() {
			app.Metrics.ObserveSubmission("invalid")
			log.Debugf("submit.validate: %d errors on form %s", len(errs), form.ID)
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, map[string]any{"errors": errs})
			return
		}

		submission, ok := recordSubmission(w, r, app, form.ID, values)
		if !ok {
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{"id": submission.ID})
	}
}

// PreviewDraft renders the draft as the respondent would see it, starting
// from empty values.
func PreviewDraft(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft, ok := loadDraft(w, r, app)
		if !ok {
			return
		}

		writeHTML(w, http.StatusOK, "render.preview", func(out io.Writer) error {
			return app.Renderer.Form(out, brender.Page{
				Title:  draft.Title,
				Mode:   brender.ModePreview,
				Fields: draft.Fields,
			})
		})
	}
}

// PreviewSubmit validates answers given in a preview without recording them.
func PreviewSubmit(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft, ok := loadDraft(w, r, app)
		if !ok {
			return
		}

		values, err := brender.Decode(draft.Fields, r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_form")
			return
		}

		errs := validation.Validate(draft.Fields, values)
		if !errs.Valid() {
			writeHTML(w, http.StatusUnprocessableEntity, "render.preview", func(out io.Writer) error {
				return app.Renderer.Form(out, brender.Page{
					Title:  draft.Title,
					Mode:   brender.ModePreview,
					Fields: draft.Fields,
					Values: values,
					Errors: errs,
				})
			})
			return
		}

		writeHTML(w, http.StatusOK, "render.thanks", func(out io.Writer) error {
			return app.Renderer.Thanks(out, draft.Title)
		})
	}
}

func NotFoundPage(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, http.StatusNotFound, "render.not_found", app.Renderer.NotFound)
	}
}

func recordSubmission(w http.ResponseWriter, r *http.Request, app app.App, formID string, values brender.Values) (model.Submission, bool) {
	if err := wait(r.Context(), app.SubmitDelay); err != nil {
		httpx.LogStatus(w, http.StatusServiceUnavailable, log.DebugLevel, "submit.cancelled")
		return model.Submission{}, false
	}

	submission, err := app.Submissions.Append(r.Context(), formID, values)
	if err != nil {
		httpx.LogInternalError(w, "store.append_submission", err)
		return model.Submission{}, false
	}
	app.Metrics.ObserveSubmission("accepted")
	log.WithField("form", formID).Debugf("submission %s recorded", submission.ID)
	return submission, true
}

// wait sleeps for d unless ctx ends first.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func loadForm(w http.ResponseWriter, r *http.Request, app app.App) (model.Form, bool) {
	id := chi.URLParam(r, "formId")
	form, err := app.Forms.Load(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.LogNotFound(w, "get_form", id)
		return model.Form{}, false
	case err != nil:
		httpx.LogInternalError(w, "store.get_form", err)
		return model.Form{}, false
	}
	return form, true
}

func loadFormPage(w http.ResponseWriter, r *http.Request, app app.App) (model.Form, bool) {
	id := chi.URLParam(r, "formId")
	form, err := app.Forms.Load(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Debugf("get_form: not found (%s)", id)
		writeHTML(w, http.StatusNotFound, "render.not_found", app.Renderer.NotFound)
		return model.Form{}, false
	case err != nil:
		httpx.LogInternalError(w, "store.get_form", err)
		return model.Form{}, false
	}
	return form, true
}

// writeHTML renders into a buffer first so a template failure still yields
// a clean 500.
func writeHTML(w http.ResponseWriter, status int, code string, fn func(io.Writer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		httpx.LogInternalError(w, code, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
