// Package memory keeps submissions and quality checks in process memory.
// It backs local runs and tests; data is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"repverse/internal/domain/marketplace"
)

type submissionKey struct {
	jobID   string
	address string
}

// Store is a map-backed marketplace.Store.
type Store struct {
	mu          sync.RWMutex
	submissions map[submissionKey]marketplace.WorkSubmission
	checks      map[string]marketplace.QualityCheckRecord
}

// New returns an empty store.
func New() *Store {
	return &Store{
		submissions: map[submissionKey]marketplace.WorkSubmission{},
		checks:      map[string]marketplace.QualityCheckRecord{},
	}
}

func (s *Store) GetSubmission(_ context.Context, jobID, freelancerAddress string) (marketplace.WorkSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[submissionKey{jobID, freelancerAddress}]
	if !ok {
		return marketplace.WorkSubmission{}, marketplace.ErrSubmissionNotFound
	}
	return cloneSubmission(sub), nil
}

func (s *Store) SaveSubmission(_ context.Context, submission marketplace.WorkSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[submissionKey{submission.JobID, submission.FreelancerAddress}] = cloneSubmission(submission)
	return nil
}

func (s *Store) ListSubmissions(_ context.Context, jobID, freelancerAddress string) ([]marketplace.WorkSubmission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]marketplace.WorkSubmission, 0)
	for key, sub := range s.submissions {
		if key.jobID != jobID {
			continue
		}
		if freelancerAddress != "" && key.address != freelancerAddress {
			continue
		}
		out = append(out, cloneSubmission(sub))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

func (s *Store) SaveQualityCheck(_ context.Context, record marketplace.QualityCheckRecord) error {
	if record.ID == "" {
		return fmt.Errorf("quality check id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[record.ID] = cloneRecord(record)
	return nil
}

func (s *Store) GetQualityCheck(_ context.Context, id string) (marketplace.QualityCheckRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.checks[id]
	if !ok {
		return marketplace.QualityCheckRecord{}, marketplace.ErrQualityCheckNotFound
	}
	return cloneRecord(record), nil
}

func cloneSubmission(sub marketplace.WorkSubmission) marketplace.WorkSubmission {
	sub.ReviewScore = cloneFloat(sub.ReviewScore)
	sub.FixableScore = cloneFloat(sub.FixableScore)
	sub.ReassignScore = cloneFloat(sub.ReassignScore)
	return sub
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func cloneRecord(record marketplace.QualityCheckRecord) marketplace.QualityCheckRecord {
	record.Result.PositiveFeedback = cloneStrings(record.Result.PositiveFeedback)
	record.Result.NegativeFeedback = cloneStrings(record.Result.NegativeFeedback)
	return record
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append(make([]string, 0, len(in)), in...)
}
