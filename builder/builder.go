// Package builder maintains the ordered field list a brief form is made of.
// A Builder is not safe for concurrent use; callers own it for the length of
// one edit.
package builder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"

	"github.com/sitovia/briefs/model"
)

var (
	ErrLabelRequired   = errors.New("label is required")
	ErrTypeRequired    = errors.New("type is required")
	ErrOptionsRequired = errors.New("at least one option is required")
	ErrRatingMax       = fmt.Errorf("rating max must be between %d and %d", model.MinRatingMax, model.MaxRatingMax)
	ErrFieldNotFound   = errors.New("field not found")
)

// FieldInput is the raw content of the field editor. Options holds one
// option per line, FileTypes a comma separated list of extensions.
type FieldInput struct {
	ID          string `json:"id,omitempty"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Placeholder string `json:"placeholder,omitempty"`
	Section     string `json:"section,omitempty"`
	Options     string `json:"options,omitempty"`
	FileTypes   string `json:"fileTypes,omitempty"`
	MaxFiles    int    `json:"maxFiles,omitempty"`
	RatingMax   int    `json:"ratingMax,omitempty"`
}

type Builder struct {
	fields []model.Field
	newID  func() string
}

type Option func(*Builder)

// WithIDGenerator replaces the generator used for new field ids.
func WithIDGenerator(fn func() string) Option {
	return func(b *Builder) {
		b.newID = fn
	}
}

func New(fields []model.Field, opts ...Option) *Builder {
	b := &Builder{
		fields: append([]model.Field(nil), fields...),
		newID:  NewFieldID,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func NewFieldID() string {
	return "field_" + strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", "")
}

// Fields returns a copy of the current list.
func (b *Builder) Fields() []model.Field {
	return append([]model.Field{}, b.fields...)
}

func (b *Builder) Len() int {
	return len(b.fields)
}

// Save adds a new field, or replaces the field with in.ID keeping its
// position.
func (b *Builder) Save(in FieldInput) (model.Field, error) {
	f, err := fieldFromInput(in)
	if err != nil {
		return model.Field{}, err
	}

	if in.ID == "" {
		f.ID = b.uniqueID()
		b.fields = append(b.fields, f)
		return f, nil
	}

	i := b.indexOf(in.ID)
	if i < 0 {
		return model.Field{}, fmt.Errorf("%w: %s", ErrFieldNotFound, in.ID)
	}
	f.ID = in.ID
	b.fields[i] = f
	return f, nil
}

// Delete removes the field with the given id. Unknown ids are ignored.
func (b *Builder) Delete(id string) {
	i := b.indexOf(id)
	if i < 0 {
		return
	}
	b.fields = append(b.fields[:i], b.fields[i+1:]...)
}

// Append adds fields at the end of the list, giving a fresh id to any field
// whose id is empty or already taken.
func (b *Builder) Append(fields ...model.Field) {
	for _, f := range fields {
		if f.ID == "" || b.indexOf(f.ID) >= 0 {
			f.ID = b.uniqueID()
		}
		b.fields = append(b.fields, f)
	}
}

// ExportTemplate serialises the list in the brief-form-template.json format.
func (b *Builder) ExportTemplate() ([]byte, error) {
	return model.EncodeFields(b.fields)
}

// ImportTemplate replaces the list with the fields of an exported template.
// The list is left untouched when the template is invalid.
func (b *Builder) ImportTemplate(data []byte) error {
	fields, err := model.DecodeFields(data)
	if err != nil {
		return err
	}
	b.fields = fields
	return nil
}

func (b *Builder) indexOf(id string) int {
	for i, f := range b.fields {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func (b *Builder) uniqueID() string {
	for {
		id := b.newID()
		if b.indexOf(id) < 0 {
			return id
		}
	}
}

func fieldFromInput(in FieldInput) (model.Field, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return model.Field{}, ErrLabelRequired
	}
	if strings.TrimSpace(in.Type) == "" {
		return model.Field{}, ErrTypeRequired
	}
	typ, err := model.ParseType(in.Type)
	if err != nil {
		return model.Field{}, err
	}
	section, err := model.ParseSection(in.Section)
	if err != nil {
		return model.Field{}, err
	}

	f := model.Field{
		Label:    label,
		Type:     typ,
		Required: in.Required,
		Section:  section,
	}

	switch {
	case typ.HasOptions():
		options := splitList(in.Options, "\n")
		if len(options) == 0 {
			return model.Field{}, ErrOptionsRequired
		}
		f.Attrs = model.ChoiceAttrs{Options: options}
	case typ == model.TypeFile:
		maxFiles := in.MaxFiles
		if maxFiles <= 0 {
			maxFiles = model.DefaultMaxFiles
		}
		f.Attrs = model.FileAttrs{FileTypes: splitList(in.FileTypes, ","), MaxFiles: maxFiles}
	case typ == model.TypeRating:
		ratingMax := in.RatingMax
		if ratingMax == 0 {
			ratingMax = model.DefaultRatingMax
		}
		if ratingMax < model.MinRatingMax || ratingMax > model.MaxRatingMax {
			return model.Field{}, ErrRatingMax
		}
		f.Attrs = model.RatingAttrs{Max: ratingMax}
	default:
		f.Attrs = model.TextAttrs{Placeholder: strings.TrimSpace(in.Placeholder)}
	}
	return f, nil
}

// splitList returns nil when no entries remain.
func splitList(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
