package model

import (
	"errors"
	"fmt"
	"time"
)

type FieldType string

const (
	TypeText     FieldType = "text"
	TypeTextarea FieldType = "textarea"
	TypeSelect   FieldType = "select"
	TypeRadio    FieldType = "radio"
	TypeCheckbox FieldType = "checkbox"
	TypeDate     FieldType = "date"
	TypeTime     FieldType = "time"
	TypeNumber   FieldType = "number"
	TypeEmail    FieldType = "email"
	TypePhone    FieldType = "phone"
	TypeURL      FieldType = "url"
	TypeFile     FieldType = "file"
	TypeRating   FieldType = "rating"
)

// HasOptions reports whether fields of this type carry a choice list.
func (t FieldType) HasOptions() bool {
	return t == TypeSelect || t == TypeRadio || t == TypeCheckbox
}

// HasPlaceholder reports whether fields of this type accept hint text.
func (t FieldType) HasPlaceholder() bool {
	switch t {
	case TypeSelect, TypeRadio, TypeCheckbox, TypeFile, TypeRating:
		return false
	}
	return t.Valid()
}

func (t FieldType) Valid() bool {
	_, ok := typeIndex[t]
	return ok
}

type Section string

const (
	SectionBasic        Section = "basic"
	SectionObjectives   Section = "objectives"
	SectionBudget       Section = "budget"
	SectionTimeline     Section = "timeline"
	SectionRequirements Section = "requirements"
	SectionResearch     Section = "research"
	SectionOther        Section = "other"
)

func (s Section) Valid() bool {
	_, ok := sectionIndex[s]
	return ok
}

const (
	DefaultMaxFiles  = 1
	DefaultRatingMax = 5
	MinRatingMax     = 3
	MaxRatingMax     = 10
)

var (
	ErrUnknownType    = errors.New("unknown field type")
	ErrUnknownSection = errors.New("unknown section")
	ErrInvalidField   = errors.New("invalid field")
)

// Field describes one form question. Type specific attributes live in Attrs,
// whose concrete variant is decided by Type.
type Field struct {
	ID       string
	Label    string
	Type     FieldType
	Required bool
	Section  Section
	Attrs    Attributes
}

// Attributes is implemented by TextAttrs, ChoiceAttrs, FileAttrs and RatingAttrs.
type Attributes interface {
	attributes()
}

type TextAttrs struct {
	Placeholder string
}

type ChoiceAttrs struct {
	Options []string
}

type FileAttrs struct {
	FileTypes []string
	MaxFiles  int
}

type RatingAttrs struct {
	Max int
}

func (TextAttrs) attributes()   {}
func (ChoiceAttrs) attributes() {}
func (FileAttrs) attributes()   {}
func (RatingAttrs) attributes() {}

// DefaultAttrs returns the zero attribute variant for t.
func DefaultAttrs(t FieldType) Attributes {
	switch {
	case t.HasOptions():
		return ChoiceAttrs{}
	case t == TypeFile:
		return FileAttrs{MaxFiles: DefaultMaxFiles}
	case t == TypeRating:
		return RatingAttrs{Max: DefaultRatingMax}
	}
	return TextAttrs{}
}

func (f Field) Placeholder() string {
	if a, ok := f.Attrs.(TextAttrs); ok && f.Type.HasPlaceholder() {
		return a.Placeholder
	}
	return ""
}

func (f Field) Options() []string {
	if a, ok := f.Attrs.(ChoiceAttrs); ok && f.Type.HasOptions() {
		return a.Options
	}
	return nil
}

func (f Field) FileTypes() []string {
	if a, ok := f.Attrs.(FileAttrs); ok && f.Type == TypeFile {
		return a.FileTypes
	}
	return nil
}

func (f Field) MaxFiles() int {
	if a, ok := f.Attrs.(FileAttrs); ok && f.Type == TypeFile && a.MaxFiles > 0 {
		return a.MaxFiles
	}
	return DefaultMaxFiles
}

func (f Field) RatingMax() int {
	if a, ok := f.Attrs.(RatingAttrs); ok && f.Type == TypeRating && a.Max > 0 {
		return a.Max
	}
	return DefaultRatingMax
}

// Check verifies that the field is complete and that its attribute variant
// matches its type.
func (f Field) Check() error {
	switch {
	case f.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidField)
	case f.Label == "":
		return fmt.Errorf("%w %s: missing label", ErrInvalidField, f.ID)
	case !f.Type.Valid():
		return fmt.Errorf("%w %s: %w %q", ErrInvalidField, f.ID, ErrUnknownType, f.Type)
	case !f.Section.Valid():
		return fmt.Errorf("%w %s: %w %q", ErrInvalidField, f.ID, ErrUnknownSection, f.Section)
	}

	switch a := f.Attrs.(type) {
	case TextAttrs:
		if !f.Type.HasPlaceholder() {
			return fmt.Errorf("%w %s: text attributes on %s field", ErrInvalidField, f.ID, f.Type)
		}
	case ChoiceAttrs:
		if !f.Type.HasOptions() {
			return fmt.Errorf("%w %s: options on %s field", ErrInvalidField, f.ID, f.Type)
		}
		if len(a.Options) == 0 {
			return fmt.Errorf("%w %s: %s field needs options", ErrInvalidField, f.ID, f.Type)
		}
	case FileAttrs:
		if f.Type != TypeFile {
			return fmt.Errorf("%w %s: file attributes on %s field", ErrInvalidField, f.ID, f.Type)
		}
		if a.MaxFiles < 1 {
			return fmt.Errorf("%w %s: maxFiles must be positive", ErrInvalidField, f.ID)
		}
	case RatingAttrs:
		if f.Type != TypeRating {
			return fmt.Errorf("%w %s: rating attributes on %s field", ErrInvalidField, f.ID, f.Type)
		}
		if a.Max < MinRatingMax || a.Max > MaxRatingMax {
			return fmt.Errorf("%w %s: ratingMax must be between %d and %d", ErrInvalidField, f.ID, MinRatingMax, MaxRatingMax)
		}
	default:
		return fmt.Errorf("%w %s: missing attributes", ErrInvalidField, f.ID)
	}
	return nil
}

// Form is a published, read-only field list.
type Form struct {
	ID        string    `json:"id"`
	Fields    []Field   `json:"fields"`
	CreatedAt time.Time `json:"createdAt"`
}

// Submission is one accepted answer set for a published form.
type Submission struct {
	ID          string         `json:"id"`
	FormID      string         `json:"formId"`
	Data        map[string]any `json:"data"`
	SubmittedAt time.Time      `json:"submittedAt"`
}

// FileRef stands in for an uploaded file; file contents are never kept.
type FileRef struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}
