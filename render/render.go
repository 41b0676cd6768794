// Package render turns a field list into an HTML form and keeps the value
// map the form edits. Builder previews and public pages share the same
// templates and differ only in Mode.
package render

import (
	"embed"
	"html/template"
	"io"
	"strings"

	"github.com/sitovia/briefs/model"
	"github.com/sitovia/briefs/validation"
)

//go:embed templates/*.html
var templateFS embed.FS

type Mode int

const (
	// ModePreview renders a throwaway form inside the builder.
	ModePreview Mode = iota
	// ModePublic renders the published form whose answers get recorded.
	ModePublic
)

type Page struct {
	Title  string
	Mode   Mode
	Action string
	Fields []model.Field
	Values Values
	Errors validation.Errors
}

type Renderer struct {
	tmpl *template.Template
}

func New() (*Renderer, error) {
	tmpl, err := template.New("").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl}, nil
}

// Form renders one control per field, grouped by section. A preview always
// starts from an empty value map unless the caller passes one in.
func (r *Renderer) Form(w io.Writer, page Page) error {
	values := page.Values
	if values == nil {
		values = Values{}
	}

	view := formView{
		Title:     page.Title,
		Preview:   page.Mode == ModePreview,
		Action:    page.Action,
		HasErrors: len(page.Errors) > 0,
		Multipart: hasFileField(page.Fields),
	}
	for _, g := range GroupBySection(page.Fields) {
		gv := groupView{Label: g.Label}
		for _, f := range g.Fields {
			gv.Fields = append(gv.Fields, fieldView{Field: f, values: values, Error: page.Errors[f.ID]})
		}
		view.Groups = append(view.Groups, gv)
	}
	return r.tmpl.ExecuteTemplate(w, "form.html", view)
}

// NotFound renders the terminal page for an unknown form id.
func (r *Renderer) NotFound(w io.Writer) error {
	return r.tmpl.ExecuteTemplate(w, "not_found.html", nil)
}

func (r *Renderer) Thanks(w io.Writer, title string) error {
	return r.tmpl.ExecuteTemplate(w, "thanks.html", map[string]string{"Title": title})
}

type formView struct {
	Title     string
	Preview   bool
	Action    string
	HasErrors bool
	Multipart bool
	Groups    []groupView
}

type groupView struct {
	Label  string
	Fields []fieldView
}

type fieldView struct {
	model.Field
	values Values
	Error  string
}

func (f fieldView) InputType() string {
	return model.InputType(f.Type)
}

func (f fieldView) Value() string {
	return f.values.String(f.ID)
}

func (f fieldView) Checked(option string) bool {
	if f.Type == model.TypeCheckbox {
		return f.values.Has(f.ID, option)
	}
	return f.values.String(f.ID) == option
}

// Units lists the selectable rating units, 1 to RatingMax.
func (f fieldView) Units() []int {
	units := make([]int, f.RatingMax())
	for i := range units {
		units[i] = i + 1
	}
	return units
}

func (f fieldView) Lit(unit int) bool {
	return unit <= f.values.Rating(f.ID)
}

func (f fieldView) RatingValue() int {
	return f.values.Rating(f.ID)
}

func (f fieldView) RatingText() string {
	return f.values.RatingText(f.Field)
}

func (f fieldView) Multiple() bool {
	return f.MaxFiles() > 1
}

// Accept builds the file input accept attribute from the allowed extensions.
func (f fieldView) Accept() string {
	exts := make([]string, 0, len(f.FileTypes()))
	for _, ext := range f.FileTypes() {
		exts = append(exts, "."+strings.TrimPrefix(ext, "."))
	}
	return strings.Join(exts, ",")
}

func hasFileField(fields []model.Field) bool {
	for _, f := range fields {
		if f.Type == model.TypeFile {
			return true
		}
	}
	return false
}
