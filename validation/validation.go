// Package validation checks submitted values against a form's field
// definitions. Only presence, email shape and URL shape are enforced.
package validation

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/sitovia/briefs/model"
)

const (
	msgInvalidEmail = "Please enter a valid email address"
	msgInvalidURL   = "Please enter a valid URL"
)

var reEmail = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Errors maps a field id to its error message. An empty map means valid.
type Errors map[string]string

func (e Errors) Valid() bool {
	return len(e) == 0
}

type FieldError struct {
	FieldID string `json:"fieldId"`
	Message string `json:"message"`
}

// Ordered lists the errors following the order of fields.
func (e Errors) Ordered(fields []model.Field) []FieldError {
	out := make([]FieldError, 0, len(e))
	for _, f := range fields {
		if msg, ok := e[f.ID]; ok {
			out = append(out, FieldError{f.ID, msg})
		}
	}
	return out
}

// Validate runs every rule against every field.
func Validate(fields []model.Field, values map[string]any) Errors {
	errs := Errors{}
	for _, f := range fields {
		if msg, ok := ValidateField(f, values[f.ID]); !ok {
			errs[f.ID] = msg
		}
	}
	return errs
}

// ValidateField checks a single value, for re-validation while the user edits.
func ValidateField(f model.Field, value any) (string, bool) {
	if IsEmpty(value) {
		if f.Required {
			return fmt.Sprintf("%s is required", f.Label), false
		}
		return "", true
	}

	switch f.Type {
	case model.TypeEmail:
		if !reEmail.MatchString(asString(value)) {
			return msgInvalidEmail, false
		}
	case model.TypeURL:
		if !isAbsoluteURL(asString(value)) {
			return msgInvalidURL, false
		}
	}
	return "", true
}

// IsEmpty reports whether value counts as not answered: nil, an empty
// string or an empty list.
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	case []model.FileRef:
		return len(v) == 0
	}
	return false
}

func asString(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}
