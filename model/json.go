package model

import (
	"encoding/json"
	"fmt"
)

// wireField is the flat interchange shape of a Field, shared by the exported
// template, the blob store and the JSON API.
type wireField struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Placeholder string    `json:"placeholder,omitempty"`
	Options     []string  `json:"options,omitempty"`
	Section     Section   `json:"section"`
	FileTypes   []string  `json:"fileTypes,omitempty"`
	MaxFiles    int       `json:"maxFiles,omitempty"`
	RatingMax   int       `json:"ratingMax,omitempty"`
}

func (f Field) MarshalJSON() ([]byte, error) {
	w := wireField{
		ID:       f.ID,
		Label:    f.Label,
		Type:     f.Type,
		Required: f.Required,
		Section:  f.Section,
	}
	switch {
	case f.Type.HasOptions():
		w.Options = f.Options()
	case f.Type == TypeFile:
		w.FileTypes = f.FileTypes()
		w.MaxFiles = f.MaxFiles()
	case f.Type == TypeRating:
		w.RatingMax = f.RatingMax()
	default:
		w.Placeholder = f.Placeholder()
	}
	return json.Marshal(w)
}

// UnmarshalJSON drops attributes that do not apply to the decoded type.
func (f *Field) UnmarshalJSON(data []byte) error {
	var w wireField
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	t, err := ParseType(string(w.Type))
	if err != nil {
		return fmt.Errorf("field %q: %w", w.ID, err)
	}
	s, err := ParseSection(string(w.Section))
	if err != nil {
		return fmt.Errorf("field %q: %w", w.ID, err)
	}

	*f = Field{
		ID:       w.ID,
		Label:    w.Label,
		Type:     t,
		Required: w.Required,
		Section:  s,
	}

	switch {
	case t.HasOptions():
		f.Attrs = ChoiceAttrs{Options: w.Options}
	case t == TypeFile:
		maxFiles := w.MaxFiles
		if maxFiles <= 0 {
			maxFiles = DefaultMaxFiles
		}
		f.Attrs = FileAttrs{FileTypes: w.FileTypes, MaxFiles: maxFiles}
	case t == TypeRating:
		ratingMax := w.RatingMax
		if ratingMax == 0 {
			ratingMax = DefaultRatingMax
		}
		f.Attrs = RatingAttrs{Max: ratingMax}
	default:
		f.Attrs = TextAttrs{Placeholder: w.Placeholder}
	}
	return nil
}

// EncodeFields serialises fields into the template wire format.
func EncodeFields(fields []Field) ([]byte, error) {
	if fields == nil {
		fields = []Field{}
	}
	return json.MarshalIndent(fields, "", "  ")
}

// DecodeFields parses the template wire format and checks every field.
func DecodeFields(data []byte) ([]Field, error) {
	var fields []Field
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if err := f.Check(); err != nil {
			return nil, err
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidField, f.ID)
		}
		seen[f.ID] = true
	}
	return fields, nil
}
