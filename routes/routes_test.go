package routes_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitovia/briefs/app"
	"github.com/sitovia/briefs/config"
	"github.com/sitovia/briefs/database"
	"github.com/sitovia/briefs/httpx"
	"github.com/sitovia/briefs/importer"
	"github.com/sitovia/briefs/metrics"
	"github.com/sitovia/briefs/model"
	"github.com/sitovia/briefs/render"
	"github.com/sitovia/briefs/routes"
	"github.com/sitovia/briefs/store"
)

type stubSource struct {
	questions []importer.ImportedField
	err       error
}

func (s stubSource) FetchRawQuestions(context.Context, string) ([]importer.ImportedField, error) {
	return s.questions, s.err
}

type testServer struct {
	*httptest.Server
	app   app.App
	token string
}

func newServer(t *testing.T, source importer.ExternalFormSource, options ...func(*app.App)) *testServer {
	t.Helper()

	cfg := config.Config{
		DBUrl:       filepath.Join(t.TempDir(), "briefs.sqlite"),
		TokenSecret: "test-secret",
		TokenTTL:    time.Minute,
		Origin:      "https://briefs.example",
		Locale:      "en",
	}
	db, err := database.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.EnsureAdmin(context.Background(), db, "admin", "hunter22"))

	renderer, err := render.New()
	require.NoError(t, err)

	blobs := store.NewMemoryBlobStore()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	a := app.App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(db, cfg),
		Config:       cfg,
		Forms:        store.NewForms(blobs),
		Drafts:       store.NewDrafts(blobs),
		Submissions:  store.NewMemorySubmissionLog(),
		Importer:     importer.New(source, m),
		Renderer:     renderer,
		Metrics:      m,
	}
	for _, option := range options {
		option(&a)
	}

	srv := &testServer{Server: httptest.NewServer(routes.Wire(a)), app: a}
	t.Cleanup(srv.Close)
	srv.token = srv.login(t)
	return srv
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/login", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "hunter22")

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.AccessToken)
	return body.AccessToken
}

// do sends an admin request; body may be nil, a string or a value to encode.
func (s *testServer) do(t *testing.T, method, path string, body any, header ...string) (*http.Response, string) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func (s *testServer) createDraft(t *testing.T) store.Draft {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/admin/drafts", map[string]any{"title": "Website brief"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var draft store.Draft
	require.NoError(t, json.Unmarshal([]byte(body), &draft))
	return draft
}

func decodeDraft(t *testing.T, body string) store.Draft {
	t.Helper()
	var draft store.Draft
	require.NoError(t, json.Unmarshal([]byte(body), &draft))
	return draft
}

func TestAdmin_RequiresToken(t *testing.T) {
	srv := newServer(t, stubSource{})

	resp, err := srv.Client().Post(srv.URL+"/api/admin/drafts", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/login", nil)
	req.SetBasicAuth("admin", "wrong")
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEqual(t, http.StatusOK, resp.StatusCode)
}

func TestDraftFieldLifecycle(t *testing.T) {
	srv := newServer(t, stubSource{})
	draft := srv.createDraft(t)
	assert.Equal(t, "Website brief", draft.Title)
	assert.Equal(t, 1, draft.Version)

	resp, body := srv.do(t, http.MethodPost, "/api/admin/drafts/"+draft.ID+"/fields", map[string]any{
		"label": "Company name", "type": "text", "required": true, "version": 1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	draft = decodeDraft(t, body)
	require.Len(t, draft.Fields, 1)
	assert.Equal(t, `"2"`, resp.Header.Get("ETag"))

	resp, body = srv.do(t, http.MethodPost, "/api/admin/drafts/"+draft.ID+"/fields", map[string]any{
		"label": "Budget", "type": "select", "section": "budget", "options": "Small\nLarge",
	}, "If-Match", `"2"`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	draft = decodeDraft(t, body)
	require.Len(t, draft.Fields, 2)
	assert.Equal(t, []string{"Small", "Large"}, draft.Fields[1].Options())

	first := draft.Fields[0].ID
	resp, body = srv.do(t, http.MethodPut, "/api/admin/drafts/"+draft.ID+"/fields/"+first, map[string]any{
		"label": "Company", "type": "text", "version": draft.Version,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	draft = decodeDraft(t, body)
	assert.Equal(t, "Company", draft.Fields[0].Label)
	assert.Equal(t, first, draft.Fields[0].ID)

	resp, _ = srv.do(t, http.MethodDelete, "/api/admin/drafts/"+draft.ID+"/fields/"+first, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = srv.do(t, http.MethodDelete, "/api/admin/drafts/"+draft.ID+"/fields/"+first, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = srv.do(t, http.MethodGet, "/api/admin/drafts/"+draft.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeDraft(t, body).Fields, 1)
}

func TestDraftErrors(t *testing.T) {
	srv := newServer(t, stubSource{})
	draft := srv.createDraft(t)
	fields := "/api/admin/drafts/" + draft.ID + "/fields"

	resp, body := srv.do(t, http.MethodPost, fields, map[string]any{"label": "", "type": "text"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, "label is required")

	resp, _ = srv.do(t, http.MethodPost, fields, map[string]any{"label": "Pick", "type": "radio"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, fields, map[string]any{"label": "A", "type": "text", "version": 7})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPut, fields+"/missing", map[string]any{"label": "A", "type": "text"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/admin/drafts/"+strings.Repeat("0", 32), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/admin/drafts/"+draft.ID+"/publish", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "empty drafts are not published")
}

func TestTemplateExportAndReplace(t *testing.T) {
	srv := newServer(t, stubSource{})
	draft := srv.createDraft(t)
	for _, label := range []string{"Name", "Email"} {
		resp, body := srv.do(t, http.MethodPost, "/api/admin/drafts/"+draft.ID+"/fields", map[string]any{"label": label, "type": "text"})
		require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	}

	resp, template := srv.do(t, http.MethodGet, "/api/admin/drafts/"+draft.ID+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "brief-form-template.json")
	exported, err := model.DecodeFields([]byte(template))
	require.NoError(t, err)
	require.Len(t, exported, 2)

	other := srv.createDraft(t)
	resp, body := srv.do(t, http.MethodPut, "/api/admin/drafts/"+other.ID+"/template", template, "If-Match", `"1"`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, exported, decodeDraft(t, body).Fields)

	resp, _ = srv.do(t, http.MethodPut, "/api/admin/drafts/"+other.ID+"/template", `[{"id":"a","type":"text"}]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, body = srv.do(t, http.MethodGet, "/api/admin/drafts/"+other.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, exported, decodeDraft(t, body).Fields, "invalid template keeps the list")
}

func TestImportFields(t *testing.T) {
	srv := newServer(t, stubSource{questions: []importer.ImportedField{
		{TypeCode: 2, Title: "What is your budget range?", Choices: []string{"Small", "Large"}, Section: model.SectionBudget},
		{TypeCode: 8},
		{TypeCode: 1, Title: "Goals", Section: model.SectionObjectives},
	}})
	draft := srv.createDraft(t)

	resp, body := srv.do(t, http.MethodPost, "/api/admin/drafts/"+draft.ID+"/import", map[string]any{"url": "https://docs.google.com/forms/d/x/viewform"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	var result struct {
		Added int         `json:"added"`
		Draft store.Draft `json:"draft"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &result))
	assert.Equal(t, 2, result.Added)
	require.Len(t, result.Draft.Fields, 2)
	assert.Equal(t, model.TypeSelect, result.Draft.Fields[0].Type)
	assert.Equal(t, model.SectionBudget, result.Draft.Fields[0].Section)
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.app.Metrics.FormImportsTotal.WithLabelValues("success")))
}

func TestImportFields_Failures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"unreachable", importer.ErrUnreachable, http.StatusBadGateway, "could not fetch the form, it may be private or unreachable"},
		{"parse", importer.ErrParse, http.StatusBadGateway, "could not parse form structure"},
		{"invalid url", importer.ErrInvalidURL, http.StatusBadRequest, importer.ErrInvalidURL.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, stubSource{err: tt.err})
			draft := srv.createDraft(t)

			resp, body := srv.do(t, http.MethodPost, "/api/admin/drafts/"+draft.ID+"/import", map[string]any{"url": "https://docs.google.com/forms/d/x"})
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.JSONEq(t, `{"error":"`+tt.msg+`"}`, body)

			_, body = srv.do(t, http.MethodGet, "/api/admin/drafts/"+draft.ID, nil)
			got := decodeDraft(t, body)
			assert.Empty(t, got.Fields)
			assert.Equal(t, 1, got.Version)
		})
	}
}

func TestPreview(t *testing.T) {
	srv := newServer(t, stubSource{})
	draft := srv.createDraft(t)
	resp, body := srv.do(t, http.MethodPost, "/api/admin/drafts/"+draft.ID+"/fields", map[string]any{"label": "Email", "type": "email", "required": true})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	fieldID := decodeDraft(t, body).Fields[0].ID

	resp, body = srv.do(t, http.MethodGet, "/api/admin/drafts/"+draft.ID+"/preview", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "brief-form--preview")
	assert.Contains(t, body, "Website brief")

	form := url.Values{fieldID: {"not-an-email"}}.Encode()
	resp, body = srv.do(t, http.MethodPost, "/api/admin/drafts/"+draft.ID+"/preview", form, "Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Please enter a valid email address")

	form = url.Values{fieldID: {"jo@sitovia.com"}}.Encode()
	resp, body = srv.do(t, http.MethodPost, "/api/admin/drafts/"+draft.ID+"/preview", form, "Content-Type", "application/x-www-form-urlencoded")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Thank you!")
}

func TestPreview_CookieAuth(t *testing.T) {
	srv := newServer(t, stubSource{})
	draft := srv.createDraft(t)

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	resp, err := client.Get(srv.URL + "/admin/drafts/" + draft.ID + "/preview")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/login?goto="))

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/admin/drafts/"+draft.ID+"/preview", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: srv.token})
	resp, err = client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func publish(t *testing.T, srv *testServer) (string, []model.Field) {
	t.Helper()
	draft := srv.createDraft(t)
	for _, in := range []map[string]any{
		{"label": "Name", "type": "text", "required": true},
		{"label": "Email", "type": "email", "required": true},
		{"label": "Services", "type": "checkbox", "section": "requirements", "options": "Design\nSEO"},
	} {
		resp, body := srv.do(t, http.MethodPost, "/api/admin/drafts/"+draft.ID+"/fields", in)
		require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	}
	resp, body := srv.do(t, http.MethodGet, "/api/admin/drafts/"+draft.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fields := decodeDraft(t, body).Fields

	resp, body = srv.do(t, http.MethodPost, "/api/admin/drafts/"+draft.ID+"/publish", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var published struct {
		FormID string `json:"formId"`
		URL    string `json:"url"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &published))
	assert.Equal(t, "https://briefs.example/en/forms/"+published.FormID, published.URL)
	assert.True(t, store.ValidFormID(published.FormID))
	return published.FormID, fields
}

func TestPublishAndSubmitJSON(t *testing.T) {
	srv := newServer(t, stubSource{})
	formID, fields := publish(t, srv)
	name, email, services := fields[0].ID, fields[1].ID, fields[2].ID

	resp, err := srv.Client().Get(srv.URL + "/api/forms/" + formID)
	require.NoError(t, err)
	var form model.Form
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&form))
	resp.Body.Close()
	assert.Equal(t, fields, form.Fields)

	submit := func(data map[string]any) (*http.Response, string) {
		payload, _ := json.Marshal(map[string]any{"data": data})
		resp, err := srv.Client().Post(srv.URL+"/api/forms/"+formID+"/submissions", "application/json", strings.NewReader(string(payload)))
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp, string(body)
	}

	resp, body := submit(map[string]any{email: "nope"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.JSONEq(t, `{"errors":{"`+name+`":"Name is required","`+email+`":"Please enter a valid email address"}}`, body)

	answers := map[string]any{name: "Jo", email: "jo@sitovia.com", services: []any{"SEO"}}
	resp, _ = submit(answers)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = submit(answers)
	assert.Equal(t, http.StatusCreated, resp.StatusCode, "resubmission is recorded again")

	resp, body = srv.do(t, http.MethodGet, "/api/admin/forms/"+formID+"/submissions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Submissions []model.Submission `json:"submissions"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &listed))
	require.Len(t, listed.Submissions, 2)
	assert.Equal(t, "Jo", listed.Submissions[0].Data[name])
	assert.NotEqual(t, listed.Submissions[0].ID, listed.Submissions[1].ID)

	m := srv.app.Metrics
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FormSubmissionsTotal.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FormSubmissionsTotal.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FormsPublishedTotal))
}

func TestPublicFormPage(t *testing.T) {
	srv := newServer(t, stubSource{})
	formID, fields := publish(t, srv)
	page := srv.URL + "/en/forms/" + formID

	resp, err := srv.Client().Get(page)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `action="/en/forms/`+formID+`"`)

	resp, err = srv.Client().PostForm(page, url.Values{fields[1].ID: {"jo@"}})
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "Name is required")
	assert.Contains(t, string(body), `value="jo@"`)

	resp, err = srv.Client().PostForm(page, url.Values{fields[0].ID: {"Jo"}, fields[1].ID: {"jo@sitovia.com"}})
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, string(body), "Thank you!")
}

func TestSubmitNonFiniteNumberToSQLLog(t *testing.T) {
	srv := newServer(t, stubSource{}, func(a *app.App) {
		a.Submissions = store.NewSQLSubmissionLog(a.DB)
	})

	draft := srv.createDraft(t)
	resp, body := srv.do(t, http.MethodPost, "/api/admin/drafts/"+draft.ID+"/fields", map[string]any{
		"label": "Hours per week", "type": "number", "section": "timeline",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	hours := decodeDraft(t, body).Fields[0].ID

	resp, body = srv.do(t, http.MethodPost, "/api/admin/drafts/"+draft.ID+"/publish", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var published struct {
		FormID string `json:"formId"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &published))

	for _, raw := range []string{"NaN", "Inf", "-infinity"} {
		resp, err := srv.Client().PostForm(srv.URL+"/en/forms/"+published.FormID, url.Values{hours: {raw}})
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusCreated, resp.StatusCode, raw)
	}

	payload := `{"data":{"` + hours + `":"NaN"}}`
	resp, err := srv.Client().Post(srv.URL+"/api/forms/"+published.FormID+"/submissions", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = srv.do(t, http.MethodGet, "/api/admin/forms/"+published.FormID+"/submissions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var listed struct {
		Submissions []model.Submission `json:"submissions"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &listed))
	require.Len(t, listed.Submissions, 4)
	assert.Equal(t, "NaN", listed.Submissions[0].Data[hours])
	assert.Equal(t, "-infinity", listed.Submissions[2].Data[hours])
}

func TestFormNotFound(t *testing.T) {
	srv := newServer(t, stubSource{})

	resp, err := srv.Client().Get(srv.URL + "/en/forms/zzzzzzzz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "Form Not Found")

	resp, err = srv.Client().Get(srv.URL + "/api/forms/zzzzzzzz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/en/forms/NOT-AN-ID")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "Form Not Found")
}

func TestRegistryEndpointsAndMetrics(t *testing.T) {
	srv := newServer(t, stubSource{})

	resp, err := srv.Client().Get(srv.URL + "/api/sections")
	require.NoError(t, err)
	var sections struct {
		Sections []model.SectionInfo `json:"sections"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sections))
	resp.Body.Close()
	assert.Equal(t, model.Sections(), sections.Sections)

	resp, err = srv.Client().Get(srv.URL + "/api/field-types")
	require.NoError(t, err)
	var types struct {
		Types []model.TypeInfo `json:"types"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&types))
	resp.Body.Close()
	assert.Len(t, types.Types, 13)

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `briefs_http_requests_total{method="GET",route="/api/sections",status="200"} 1`)
}
