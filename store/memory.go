package store

import (
	"context"
	"sync"

	"github.com/sitovia/briefs/model"
)

type MemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{blobs: map[string][]byte{}}
}

func (s *MemoryBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *MemoryBlobStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), value...)
	return nil
}

type MemorySubmissionLog struct {
	mu      sync.Mutex
	records []model.Submission
}

func NewMemorySubmissionLog() *MemorySubmissionLog {
	return &MemorySubmissionLog{}
}

func (l *MemorySubmissionLog) Append(_ context.Context, formID string, data map[string]any) (model.Submission, error) {
	rec := newSubmission(formID, data)
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
	return rec, nil
}

func (l *MemorySubmissionLog) List(_ context.Context, formID string) ([]model.Submission, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []model.Submission{}
	for _, rec := range l.records {
		if rec.FormID == formID {
			out = append(out, rec)
		}
	}
	return out, nil
}
