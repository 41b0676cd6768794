package store

import (
	"context"
	"time"

	"github.com/gofrs/uuid"

	"github.com/sitovia/briefs/model"
)

// SubmissionLog appends submissions; there is no deduplication, so sending
// the same answers twice yields two records.
type SubmissionLog interface {
	Append(ctx context.Context, formID string, data map[string]any) (model.Submission, error)
	List(ctx context.Context, formID string) ([]model.Submission, error)
}

func newSubmission(formID string, data map[string]any) model.Submission {
	if data == nil {
		data = map[string]any{}
	}
	return model.Submission{
		ID:          uuid.Must(uuid.NewV4()).String(),
		FormID:      formID,
		Data:        data,
		SubmittedAt: time.Now().UTC(),
	}
}
