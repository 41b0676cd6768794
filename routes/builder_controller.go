package routes

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/sitovia/briefs/app"
	"github.com/sitovia/briefs/builder"
	"github.com/sitovia/briefs/httpx"
	"github.com/sitovia/briefs/importer"
	"github.com/sitovia/briefs/log"
	"github.com/sitovia/briefs/model"
	"github.com/sitovia/briefs/store"
)

const maxTemplateSize = 1 << 20

// badInput marks builder errors caused by the request content.
type badInput struct{ error }

func (e badInput) Unwrap() error { return e.error }

type fieldRequest struct {
	builder.FieldInput
	Version int `json:"version"`
}

func CreateDraft(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Title string `json:"title"`
		}
		if r.ContentLength != 0 {
			if err := render.DecodeJSON(r.Body, &req); err != nil {
				httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
				return
			}
		}

		draft, err := app.Drafts.Create(r.Context(), req.Title)
		if err != nil {
			httpx.LogInternalError(w, "store.create_draft", err)
			return
		}

		writeDraft(w, r, http.StatusCreated, draft)
	}
}

func GetDraft(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft, ok := loadDraft(w, r, app)
		if !ok {
			return
		}
		writeDraft(w, r, http.StatusOK, draft)
	}
}

func AddField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fieldRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		req.ID = ""

		editDraft(w, r, app, "add_field", http.StatusCreated, req.Version, func(b *builder.Builder) error {
			_, err := b.Save(req.FieldInput)
			return err
		})
	}
}

func EditField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fieldRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		req.ID = chi.URLParam(r, "field")

		editDraft(w, r, app, "edit_field", http.StatusOK, req.Version, func(b *builder.Builder) error {
			_, err := b.Save(req.FieldInput)
			return err
		})
	}
}

// DeleteField answers 204 whether or not the field existed.
func DeleteField(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fieldID := chi.URLParam(r, "field")
		version, err := ifMatch(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.if_match")
			return
		}

		draft, err := app.Drafts.Edit(r.Context(), chi.URLParam(r, "draft"), version, func(b *builder.Builder) error {
			b.Delete(fieldID)
			return nil
		})
		if err != nil {
			draftError(w, r, "delete_field", err)
			return
		}

		w.Header().Set("ETag", etag(draft.Version))
		w.WriteHeader(http.StatusNoContent)
	}
}

// ImportFields appends the questions of an external form to the draft. The
// fetch runs without holding the draft; the save is checked against the
// version that was read.
func ImportFields(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			URL     string `json:"url"`
			Version int    `json:"version"`
		}
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		draft, ok := loadDraft(w, r, app)
		if !ok {
			return
		}
		if req.Version != 0 && req.Version != draft.Version {
			draftError(w, r, "import", fmt.Errorf("%w: draft is at version %d", store.ErrVersionConflict, draft.Version))
			return
		}

		b := draft.Builder()
		attempt := app.Importer.Import(r.Context(), req.URL, b)
		if attempt.Err != nil {
			importError(w, r, attempt)
			return
		}

		draft, err := app.Drafts.Save(r.Context(), draft.ID, draft.Version, b.Fields())
		if err != nil {
			draftError(w, r, "import.save", err)
			return
		}

		w.Header().Set("ETag", etag(draft.Version))
		render.JSON(w, r, map[string]any{
			"added": attempt.Added,
			"draft": draft,
		})
	}
}

func importError(w http.ResponseWriter, r *http.Request, attempt importer.Attempt) {
	status := http.StatusBadGateway
	err := attempt.Err
	switch {
	case errors.Is(err, importer.ErrInvalidURL):
		status = http.StatusBadRequest
	case errors.Is(err, importer.ErrUnreachable), errors.Is(err, importer.ErrParse):
	default:
		log.Errorf("import.%s: %s", attempt.Outcome(), err)
		err = errors.New("could not import the form")
	}
	httpx.LogStatusJSON(w, r, status, "import."+attempt.Outcome(), userMessage(err))
}

// userMessage keeps only the sentinel text of an import failure.
func userMessage(err error) error {
	for _, sentinel := range []error{importer.ErrInvalidURL, importer.ErrUnreachable, importer.ErrParse} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return err
}

func ExportTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft, ok := loadDraft(w, r, app)
		if !ok {
			return
		}

		data, err := draft.Builder().ExportTemplate()
		if err != nil {
			httpx.LogInternalError(w, "export.encode", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="brief-form-template.json"`)
		w.Write(data)
	}
}

// ReplaceTemplate replaces the draft's fields with an exported template. The
// expected version comes from If-Match since the body is the template itself.
func ReplaceTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, err := ifMatch(r)
		if err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.if_match")
			return
		}
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTemplateSize))
		if err != nil {
			httpx.LogStatus(w, http.StatusRequestEntityTooLarge, log.DebugLevel, "request.read_body")
			return
		}

		editDraft(w, r, app, "replace_template", http.StatusOK, version, func(b *builder.Builder) error {
			return b.ImportTemplate(data)
		})
	}
}

func PublishDraft(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft, ok := loadDraft(w, r, app)
		if !ok {
			return
		}

		form, err := app.Forms.Publish(r.Context(), draft.Fields)
		switch {
		case errors.Is(err, store.ErrEmptyForm), errors.Is(err, model.ErrInvalidField):
			httpx.LogStatusJSON(w, r, http.StatusBadRequest, "publish.check", err)
			return
		case err != nil:
			httpx.LogInternalError(w, "store.publish", err)
			return
		}
		app.Metrics.FormPublished()
		log.WithField("form", form.ID).Infof("published draft %s with %d fields", draft.ID, len(form.Fields))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"formId": form.ID,
			"url":    store.FormURL(app.Origin, app.Locale, form.ID),
		})
	}
}

func ListSubmissions(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := loadForm(w, r, app)
		if !ok {
			return
		}

		submissions, err := app.Submissions.List(r.Context(), form.ID)
		if err != nil {
			httpx.LogInternalError(w, "store.list_submissions", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"submissions": submissions,
		})
	}
}

func ListFieldTypes(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{"types": model.Types()})
	}
}

func ListSections(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{"sections": model.Sections()})
	}
}

func editDraft(w http.ResponseWriter, r *http.Request, app app.App, code string, status int, version int, fn func(*builder.Builder) error) {
	if version == 0 {
		var err error
		if version, err = ifMatch(r); err != nil {
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.if_match")
			return
		}
	}

	draft, err := app.Drafts.Edit(r.Context(), chi.URLParam(r, "draft"), version, func(b *builder.Builder) error {
		if err := fn(b); err != nil {
			return badInput{err}
		}
		return nil
	})
	if err != nil {
		draftError(w, r, code, err)
		return
	}

	writeDraft(w, r, status, draft)
}

func loadDraft(w http.ResponseWriter, r *http.Request, app app.App) (store.Draft, bool) {
	id := chi.URLParam(r, "draft")
	draft, err := app.Drafts.Get(r.Context(), id)
	if err != nil {
		draftError(w, r, "get_draft", err)
		return store.Draft{}, false
	}
	return draft, true
}

func draftError(w http.ResponseWriter, r *http.Request, code string, err error) {
	var bad badInput
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, builder.ErrFieldNotFound):
		httpx.LogNotFound(w, code, chi.URLParam(r, "draft"))
	case errors.Is(err, store.ErrVersionConflict):
		httpx.LogStatusJSON(w, r, http.StatusConflict, code+".conflict", err)
	case errors.As(err, &bad):
		httpx.LogStatusJSON(w, r, http.StatusBadRequest, code+".input", bad.error)
	default:
		httpx.LogInternalError(w, "store."+code, err)
	}
}

func writeDraft(w http.ResponseWriter, r *http.Request, status int, draft store.Draft) {
	w.Header().Set("ETag", etag(draft.Version))
	render.Status(r, status)
	render.JSON(w, r, draft)
}

func etag(version int) string {
	return strconv.Quote(strconv.Itoa(version))
}

// ifMatch reads the expected draft version; 0 when the header is absent.
func ifMatch(r *http.Request) (int, error) {
	v := strings.Trim(strings.TrimPrefix(r.Header.Get("If-Match"), "W/"), `"`)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
