package render

import (
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/sitovia/briefs/model"
)

const maxMemory = 32 << 20

// Decode reads a posted HTML form into typed values: checkbox answers become
// []string, numbers float64, ratings int and files []model.FileRef. Blank
// answers and choices outside the field's options are left out.
func Decode(fields []model.Field, r *http.Request) (Values, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			return nil, err
		}
	} else if err := r.ParseForm(); err != nil {
		return nil, err
	}

	values := Values{}
	for _, f := range fields {
		switch f.Type {
		case model.TypeCheckbox:
			var picked []string
			for _, o := range r.PostForm[f.ID] {
				if contains(f.Options(), o) && !contains(picked, o) {
					picked = append(picked, o)
				}
			}
			if len(picked) > 0 {
				values[f.ID] = picked
			}
		case model.TypeFile:
			if r.MultipartForm == nil {
				continue
			}
			var refs []model.FileRef
			for _, fh := range r.MultipartForm.File[f.ID] {
				if len(refs) == f.MaxFiles() {
					break
				}
				refs = append(refs, model.FileRef{Name: fh.Filename, Size: fh.Size})
			}
			if len(refs) > 0 {
				values[f.ID] = refs
			}
		default:
			raw := strings.TrimSpace(r.PostForm.Get(f.ID))
			if raw == "" {
				continue
			}
			values.setScalar(f, raw)
		}
	}
	return values, nil
}

// Normalize coerces JSON decoded answers to the types Decode produces.
// Answers for unknown field ids are dropped.
func Normalize(fields []model.Field, raw map[string]any) Values {
	values := Values{}
	for _, f := range fields {
		value, ok := raw[f.ID]
		if !ok || value == nil {
			continue
		}
		switch f.Type {
		case model.TypeCheckbox:
			var picked []string
			for _, o := range (Values{f.ID: value}).Strings(f.ID) {
				if contains(f.Options(), o) && !contains(picked, o) {
					picked = append(picked, o)
				}
			}
			if len(picked) > 0 {
				values[f.ID] = picked
			}
		case model.TypeFile:
			if refs := fileRefs(value, f.MaxFiles()); len(refs) > 0 {
				values[f.ID] = refs
			}
		case model.TypeRating, model.TypeNumber:
			switch v := value.(type) {
			case float64:
				if f.Type == model.TypeRating {
					_ = values.Rate(f, int(v))
				} else {
					values[f.ID] = v
				}
			case string:
				if v = strings.TrimSpace(v); v != "" {
					values.setScalar(f, v)
				}
			}
		case model.TypeSelect, model.TypeRadio:
			if s, ok := value.(string); ok && contains(f.Options(), s) {
				values[f.ID] = s
			}
		default:
			if s, ok := value.(string); ok {
				if s != "" {
					values[f.ID] = s
				}
			} else {
				values[f.ID] = value
			}
		}
	}
	return values
}

func (v Values) setScalar(f model.Field, raw string) {
	switch f.Type {
	case model.TypeNumber:
		// NaN and Inf parse but cannot be encoded as JSON.
		if n, err := strconv.ParseFloat(raw, 64); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			v[f.ID] = n
			return
		}
	case model.TypeSelect, model.TypeRadio:
		if contains(f.Options(), raw) {
			v[f.ID] = raw
		}
		return
	case model.TypeRating:
		if n, err := strconv.Atoi(raw); err == nil {
			if v.Rate(f, n) == nil {
				return
			}
		}
		return
	}
	v[f.ID] = raw
}

func fileRefs(value any, limit int) []model.FileRef {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	var refs []model.FileRef
	for _, item := range items {
		if len(refs) == limit {
			break
		}
		switch it := item.(type) {
		case string:
			refs = append(refs, model.FileRef{Name: it})
		case map[string]any:
			name, _ := it["name"].(string)
			size, _ := it["size"].(float64)
			if name != "" {
				refs = append(refs, model.FileRef{Name: name, Size: int64(size)})
			}
		}
	}
	return refs
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
