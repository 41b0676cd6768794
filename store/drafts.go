package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/sitovia/briefs/builder"
	"github.com/sitovia/briefs/model"
)

const draftKeyPrefix = "draft:"

// Draft is the builder's working copy of a form.
type Draft struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Version   int           `json:"version"`
	Fields    []model.Field `json:"fields"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Builder opens a builder over a copy of the draft's fields.
func (d Draft) Builder(opts ...builder.Option) *builder.Builder {
	return builder.New(d.Fields, opts...)
}

// Drafts stores drafts with optimistic locking on Version.
type Drafts struct {
	blobs BlobStore
	mu    sync.Mutex
	now   func() time.Time
}

func NewDrafts(blobs BlobStore) *Drafts {
	return &Drafts{blobs: blobs, now: time.Now}
}

func (d *Drafts) Create(ctx context.Context, title string) (Draft, error) {
	draft := Draft{
		ID:        strings.ReplaceAll(uuid.Must(uuid.NewV4()).String(), "-", ""),
		Title:     strings.TrimSpace(title),
		Version:   1,
		Fields:    []model.Field{},
		UpdatedAt: d.now().UTC(),
	}
	if draft.Title == "" {
		draft.Title = "Project brief"
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return draft, d.put(ctx, draft)
}

func (d *Drafts) Get(ctx context.Context, id string) (Draft, error) {
	data, err := d.blobs.Get(ctx, draftKeyPrefix+id)
	if err != nil {
		return Draft{}, err
	}
	var draft Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return Draft{}, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return draft, nil
}

// Save replaces the draft's fields. version must match the stored version,
// or be 0 to skip the check.
func (d *Drafts) Save(ctx context.Context, id string, version int, fields []model.Field) (Draft, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	draft, err := d.Get(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	if version != 0 && version != draft.Version {
		return Draft{}, fmt.Errorf("%w: draft %s is at version %d, got %d", ErrVersionConflict, id, draft.Version, version)
	}

	draft.Fields = append([]model.Field{}, fields...)
	draft.Version++
	draft.UpdatedAt = d.now().UTC()
	return draft, d.put(ctx, draft)
}

// Edit loads the draft, applies fn to a builder over its fields and saves the
// result. Nothing is written when fn fails.
func (d *Drafts) Edit(ctx context.Context, id string, version int, fn func(*builder.Builder) error) (Draft, error) {
	draft, err := d.Get(ctx, id)
	if err != nil {
		return Draft{}, err
	}
	if version == 0 {
		version = draft.Version
	}
	b := draft.Builder()
	if err := fn(b); err != nil {
		return Draft{}, err
	}
	return d.Save(ctx, id, version, b.Fields())
}

func (d *Drafts) put(ctx context.Context, draft Draft) error {
	data, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	return d.blobs.Put(ctx, draftKeyPrefix+draft.ID, data)
}
