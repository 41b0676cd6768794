package render

import (
	"errors"
	"fmt"

	"github.com/sitovia/briefs/model"
)

var ErrRatingOutOfRange = errors.New("rating out of range")

// Values is the answer map of one rendered form, keyed by field id.
type Values map[string]any

func (v Values) Set(id string, value any) {
	v[id] = value
}

func (v Values) Get(id string) any {
	return v[id]
}

// Reset empties the map in place.
func (v Values) Reset() {
	for k := range v {
		delete(v, k)
	}
}

// Toggle flips option in a checkbox answer. Adding appends; removing keeps
// the remaining options in place.
func (v Values) Toggle(id, option string) {
	current := v.Strings(id)
	out := make([]string, 0, len(current)+1)
	found := false
	for _, o := range current {
		if o == option {
			found = true
			continue
		}
		out = append(out, o)
	}
	if !found {
		out = append(out, option)
	}
	v[id] = out
}

// Strings returns a list answer as strings.
func (v Values) Strings(id string) []string {
	switch val := v[id].(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if val != "" {
			return []string{val}
		}
	}
	return nil
}

func (v Values) Has(id, option string) bool {
	for _, o := range v.Strings(id) {
		if o == option {
			return true
		}
	}
	return false
}

func (v Values) String(id string) string {
	switch val := v[id].(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// Rate records a click on the i-th rating unit, counting from 1.
func (v Values) Rate(f model.Field, i int) error {
	if i < 1 || i > f.RatingMax() {
		return fmt.Errorf("%w: %d of %d", ErrRatingOutOfRange, i, f.RatingMax())
	}
	v[f.ID] = i
	return nil
}

func (v Values) Rating(id string) int {
	switch val := v[id].(type) {
	case int:
		return val
	case float64:
		return int(val)
	}
	return 0
}

// RatingText is the "value / max" caption shown next to a rating.
func (v Values) RatingText(f model.Field) string {
	return fmt.Sprintf("%d / %d", v.Rating(f.ID), f.RatingMax())
}
