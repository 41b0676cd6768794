package importer_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitovia/briefs/importer"
	"github.com/sitovia/briefs/model"
)

const formURL = "https://docs.google.com/forms/d/e/1FAIpQLSe_abc-123/viewform?usp=sf_link"

func item(title, help string, code int, required bool, choices ...string) []any {
	opts := make([]any, 0, len(choices))
	for _, c := range choices {
		opts = append(opts, []any{c, nil, nil, nil, false})
	}
	req := 0
	if required {
		req = 1
	}
	return []any{123, title, help, code, []any{[]any{456, opts, req}}}
}

func formPage(t *testing.T, items ...[]any) string {
	t.Helper()
	data := []any{nil, []any{"Project brief description", items, nil, nil, nil, nil, nil, nil, "Project brief"}, "/forms", "Project brief"}
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	return fmt.Sprintf(`<!DOCTYPE html><html><head><title>Project brief</title>
<script type="text/javascript">var _docs_flag = {"a":1};</script>
<script type="text/javascript" nonce="x">var FB_PUBLIC_LOAD_DATA_ = %s;
</script></head><body><form></form></body></html>`, payload)
}

func TestTypeForCode(t *testing.T) {
	tests := map[int]model.FieldType{
		0: model.TypeText, 1: model.TypeTextarea, 2: model.TypeSelect, 3: model.TypeSelect,
		4: model.TypeCheckbox, 5: model.TypeRating, 7: model.TypeText, 9: model.TypeDate,
		10: model.TypeTime, 13: model.TypeFile, 99: model.TypeText, -1: model.TypeText,
	}
	for code, want := range tests {
		assert.Equal(t, want, importer.TypeForCode(code), "code %d", code)
	}
}

func TestViewFormURL(t *testing.T) {
	got, err := importer.ViewFormURL(formURL)
	require.NoError(t, err)
	assert.Equal(t, "https://docs.google.com/forms/d/e/1FAIpQLSe_abc-123/viewform", got)

	got, err = importer.ViewFormURL("https://docs.google.com/forms/d/1xYz/edit")
	require.NoError(t, err)
	assert.Equal(t, "https://docs.google.com/forms/d/1xYz/viewform", got)

	_, err = importer.ViewFormURL("https://example.com/survey")
	assert.ErrorIs(t, err, importer.ErrInvalidURL)
}

func TestParse(t *testing.T) {
	page := formPage(t,
		item("What is your <b>budget</b> range?", "", 2, true, "Under $5k", "$5k - $10k", "Over $10k"),
		item("Company name", "Legal name &amp; trading name", 0, true),
		item("About this form", "", 6, false),
		item("Which features do you need?", "", 4, false, "Blog", "Shop"),
		item("How soon?", "", 5, false, "1", "2", "3", "4", "5", "6", "7"),
		item("Contact person", "", 0, false),
		item("Phone", "", 0, false),
		item("Anything else we should know?", "", 1, false),
		item("Additional notes", "", 1, false),
	)

	g := importer.NewGoogleForms(nil, nil)
	questions, err := g.Parse([]byte(page))
	require.NoError(t, err)
	require.Len(t, questions, 8)

	budget := questions[0]
	assert.Equal(t, "What is your budget range?", budget.Title)
	assert.Equal(t, 2, budget.TypeCode)
	assert.True(t, budget.Required)
	assert.Equal(t, []string{"Under $5k", "$5k - $10k", "Over $10k"}, budget.Choices)
	assert.Equal(t, model.SectionBudget, budget.Section)

	assert.Equal(t, "Legal name & trading name", questions[1].HelpText)
	assert.Nil(t, questions[1].Choices)

	sections := make([]model.Section, 0, len(questions))
	for _, q := range questions {
		sections = append(sections, q.Section)
	}
	assert.Equal(t, []model.Section{
		model.SectionBudget,
		model.SectionBasic,
		model.SectionRequirements,
		model.SectionBasic,
		model.SectionBasic,
		model.SectionOther,
		model.SectionOther,
		model.SectionOther,
	}, sections)
}

func TestParse_BudgetQuestionMapsToSelect(t *testing.T) {
	page := formPage(t, item("What is your budget range?", "", 2, false, "Small", "Medium", "Large"))

	questions, err := importer.NewGoogleForms(nil, nil).Parse([]byte(page))
	require.NoError(t, err)
	require.Len(t, questions, 1)

	f, ok := importer.ToField(questions[0])
	require.True(t, ok)
	assert.Equal(t, model.TypeSelect, f.Type)
	assert.Equal(t, model.SectionBudget, f.Section)
	assert.Equal(t, []string{"Small", "Medium", "Large"}, f.Options())
}

func TestParse_Failures(t *testing.T) {
	tests := []struct {
		name string
		page string
	}{
		{"no script", `<html><body>` + strings.Repeat("x", 200) + `</body></html>`},
		{"malformed json", `<html><script>var FB_PUBLIC_LOAD_DATA_ = [null, [;
</script></html>`},
		{"wrong shape", `<html><script>var FB_PUBLIC_LOAD_DATA_ = {"a": 1};
</script></html>`},
		{"items not an array", `<html><script>var FB_PUBLIC_LOAD_DATA_ = [null, ["desc", "nope"]];
</script></html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := importer.NewGoogleForms(nil, nil).Parse([]byte(tt.page))
			assert.ErrorIs(t, err, importer.ErrParse)
		})
	}
}

func TestToField(t *testing.T) {
	rating, ok := importer.ToField(importer.ImportedField{TypeCode: 5, Title: "Score", Choices: []string{"1", "2"}, Section: model.SectionOther})
	require.True(t, ok)
	assert.Equal(t, model.RatingAttrs{Max: 3}, rating.Attrs)

	file, ok := importer.ToField(importer.ImportedField{TypeCode: 13, Title: "Upload", HelpText: "ignored"})
	require.True(t, ok)
	assert.Equal(t, model.SectionBasic, file.Section)
	assert.Equal(t, model.FileAttrs{MaxFiles: 1}, file.Attrs)

	text, ok := importer.ToField(importer.ImportedField{TypeCode: 0, Title: "Name", HelpText: "First and last", Required: true, Section: model.SectionBasic})
	require.True(t, ok)
	assert.Equal(t, "First and last", text.Placeholder())
	assert.True(t, text.Required)

	noChoices, ok := importer.ToField(importer.ImportedField{TypeCode: 3, Title: "Pick one"})
	require.True(t, ok)
	assert.Equal(t, model.TypeText, noChoices.Type)

	_, ok = importer.ToField(importer.ImportedField{TypeCode: 0})
	assert.False(t, ok)
}

func TestFetch_TriesRelaysInOrder(t *testing.T) {
	page := formPage(t, item("Company name", "", 0, true))

	var seen []string
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, "failing")
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer failing.Close()
	short := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, "short")
		fmt.Fprint(w, "<html></html>")
	}))
	defer short.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, "good")
		assert.Equal(t, "https://docs.google.com/forms/d/e/1FAIpQLSe_abc-123/viewform", r.URL.Query().Get("url"))
		fmt.Fprint(w, page)
	}))
	defer good.Close()

	g := importer.NewGoogleForms(good.Client(), []string{
		failing.URL + "/raw?url={url}",
		short.URL + "/raw?url={url}",
		good.URL + "/raw?url={url}",
	})

	questions, err := g.FetchRawQuestions(context.Background(), formURL)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "Company name", questions[0].Title)
	assert.Equal(t, []string{"failing", "short", "good"}, seen)
}

func TestFetch_AllRelaysFail(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer down.Close()

	g := importer.NewGoogleForms(down.Client(), []string{down.URL + "/?q={url}", down.URL + "/other?q={url}"})

	_, err := g.Fetch(context.Background(), formURL)
	assert.ErrorIs(t, err, importer.ErrUnreachable)

	_, err = g.Fetch(context.Background(), "https://example.com/not-a-form")
	assert.ErrorIs(t, err, importer.ErrInvalidURL)
}
