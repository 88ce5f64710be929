package marketplace

import (
	"context"
	"errors"
)

var (
	ErrSubmissionNotFound   = errors.New("work submission not found")
	ErrQualityCheckNotFound = errors.New("quality check result not found")
)

// SubmissionStore persists submissions keyed by (jobID, freelancerAddress).
type SubmissionStore interface {
	GetSubmission(ctx context.Context, jobID, freelancerAddress string) (WorkSubmission, error)
	// SaveSubmission inserts or replaces the submission for its (jobID, freelancerAddress).
	SaveSubmission(ctx context.Context, submission WorkSubmission) error
	// ListSubmissions returns newest first. An empty freelancerAddress matches all.
	ListSubmissions(ctx context.Context, jobID, freelancerAddress string) ([]WorkSubmission, error)
}

// QualityCheckStore keeps every quality-check run.
type QualityCheckStore interface {
	SaveQualityCheck(ctx context.Context, record QualityCheckRecord) error
	// GetQualityCheck returns the record with the given id or ErrQualityCheckNotFound.
	GetQualityCheck(ctx context.Context, id string) (QualityCheckRecord, error)
}

// Store is the full persistence port used by the submission workflow.
type Store interface {
	SubmissionStore
	QualityCheckStore
}
