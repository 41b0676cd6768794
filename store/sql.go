package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/sitovia/briefs/model"
)

// SQLBlobStore keeps blobs in the blob_store table.
type SQLBlobStore struct {
	db *sql.DB
}

func NewSQLBlobStore(db *sql.DB) *SQLBlobStore {
	return &SQLBlobStore{db}
}

func (s *SQLBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.
		QueryRowContext(ctx, "SELECT value FROM blob_store WHERE blob_key = ?", key).
		Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return value, err
}

func (s *SQLBlobStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blob_store (blob_key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (blob_key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key,
		value,
		time.Now().UTC(),
	)
	return err
}

// SQLSubmissionLog is an append-only submission table.
type SQLSubmissionLog struct {
	db *sql.DB
}

func NewSQLSubmissionLog(db *sql.DB) *SQLSubmissionLog {
	return &SQLSubmissionLog{db}
}

func (l *SQLSubmissionLog) Append(ctx context.Context, formID string, data map[string]any) (model.Submission, error) {
	rec := newSubmission(formID, data)

	dataJson, err := json.Marshal(rec.Data)
	if err != nil {
		return model.Submission{}, err
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO submission (id, form_id, data, submitted_at)
		VALUES (?, ?, ?, ?)`,
		rec.ID,
		rec.FormID,
		string(dataJson),
		rec.SubmittedAt,
	)
	if err != nil {
		return model.Submission{}, err
	}
	return rec, nil
}

func (l *SQLSubmissionLog) List(ctx context.Context, formID string) ([]model.Submission, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, form_id, data, submitted_at
		FROM submission
		WHERE form_id = ?
		ORDER BY seq`,
		formID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Submission{}
	for rows.Next() {
		var (
			rec      model.Submission
			dataJson string
		)
		if err := rows.Scan(&rec.ID, &rec.FormID, &dataJson, &rec.SubmittedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(dataJson), &rec.Data); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
