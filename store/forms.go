package store

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sitovia/briefs/model"
)

const formKeyPrefix = "form:"

var reFormID = regexp.MustCompile(`^[0-9a-z]{8,32}$`)

// Forms publishes field lists and loads them back by form id. A published
// form is never modified.
type Forms struct {
	blobs BlobStore
	now   func() time.Time
}

func NewForms(blobs BlobStore) *Forms {
	return &Forms{blobs: blobs, now: time.Now}
}

// Publish snapshots fields under a newly generated form id.
func (f *Forms) Publish(ctx context.Context, fields []model.Field) (model.Form, error) {
	if len(fields) == 0 {
		return model.Form{}, ErrEmptyForm
	}
	for _, field := range fields {
		if err := field.Check(); err != nil {
			return model.Form{}, err
		}
	}

	form := model.Form{
		ID:        NewFormID(f.now()),
		Fields:    append([]model.Field(nil), fields...),
		CreatedAt: f.now().UTC(),
	}
	data, err := json.Marshal(form)
	if err != nil {
		return model.Form{}, err
	}
	if err := f.blobs.Put(ctx, formKeyPrefix+form.ID, data); err != nil {
		return model.Form{}, fmt.Errorf("store form %s: %w", form.ID, err)
	}
	return form, nil
}

// Load returns ErrNotFound for ids that were never published.
func (f *Forms) Load(ctx context.Context, id string) (model.Form, error) {
	if !ValidFormID(id) {
		return model.Form{}, ErrNotFound
	}
	data, err := f.blobs.Get(ctx, formKeyPrefix+id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.Form{}, err
		}
		return model.Form{}, fmt.Errorf("load form %s: %w", id, err)
	}
	var form model.Form
	if err := json.Unmarshal(data, &form); err != nil {
		return model.Form{}, fmt.Errorf("decode form %s: %w", id, err)
	}
	return form, nil
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewFormID is the base36 millisecond timestamp followed by six random
// base36 characters.
func NewFormID(now time.Time) string {
	suffix := make([]byte, 6)
	if _, err := rand.Read(suffix); err != nil {
		panic(err)
	}
	for i, b := range suffix {
		suffix[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return strconv.FormatInt(now.UnixMilli(), 36) + string(suffix)
}

func ValidFormID(id string) bool {
	return reFormID.MatchString(id)
}

// FormURL is the public address of a published form.
func FormURL(origin, locale, id string) string {
	return strings.TrimRight(origin, "/") + "/" + url.PathEscape(locale) + "/forms/" + url.PathEscape(id)
}
