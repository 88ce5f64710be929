// Package marketplace holds the records exchanged between the scoring
// pipeline, the submission workflow and persistence.
package marketplace

import (
	"fmt"
	"strings"
	"time"
)

// JobSpec describes what the employer asked for.
type JobSpec struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
	Instructions []string `json:"instructions"`
}

// Validate reports whether the job carries enough context to score against.
func (j JobSpec) Validate() error {
	if strings.TrimSpace(j.Title) == "" && strings.TrimSpace(j.Description) == "" {
		return fmt.Errorf("job spec needs a title or a description")
	}
	return nil
}

// ArtifactKind tags the WorkArtifact variant.
type ArtifactKind string

const (
	ArtifactText  ArtifactKind = "text"
	ArtifactImage ArtifactKind = "image"
)

// WorkArtifact is the submitted deliverable after boundary resolution:
// either inline text or an inline image. Callers switch on Kind only.
type WorkArtifact struct {
	Kind     ArtifactKind
	Text     string
	Data     []byte
	MimeType string
}

// TextWork builds a text artifact.
func TextWork(text string) WorkArtifact {
	return WorkArtifact{Kind: ArtifactText, Text: text}
}

// ImageWork builds an image artifact.
func ImageWork(data []byte, mimeType string) WorkArtifact {
	return WorkArtifact{Kind: ArtifactImage, Data: data, MimeType: mimeType}
}

// IsImage reports whether the artifact must be sent inline to the model.
func (w WorkArtifact) IsImage() bool {
	return w.Kind == ArtifactImage
}

// Validate rejects empty artifacts and images without a mime type.
func (w WorkArtifact) Validate() error {
	switch w.Kind {
	case ArtifactText:
		if strings.TrimSpace(w.Text) == "" {
			return fmt.Errorf("work text is empty")
		}
	case ArtifactImage:
		if len(w.Data) == 0 {
			return fmt.Errorf("work image is empty")
		}
		if !strings.HasPrefix(w.MimeType, "image/") {
			return fmt.Errorf("work image has mime type %q", w.MimeType)
		}
	default:
		return fmt.Errorf("unknown work kind %q", w.Kind)
	}
	return nil
}

// QualityCheckResult is the aggregated pre-submission verdict.
type QualityCheckResult struct {
	Quality          float64  `json:"quality"`
	PositiveFeedback []string `json:"positiveFeedback"`
	NegativeFeedback []string `json:"negativeFeedback"`
}

// AgentReviewResponse is the aggregated verdict on an employer rejection.
type AgentReviewResponse struct {
	ReviewScore           float64  `json:"reviewScore"`
	CriticalConsideration []string `json:"criticalConsideration"`
	FixableScore          float64  `json:"fixableScore"`
	ReassignScore         float64  `json:"reassignScore"`
}

// SubmissionStatus is the lifecycle state of a WorkSubmission.
type SubmissionStatus string

const (
	StatusPending           SubmissionStatus = "pending"
	StatusApproved          SubmissionStatus = "approved"
	StatusRejected          SubmissionStatus = "rejected"
	StatusRevisionRequested SubmissionStatus = "revision_requested"
)

// Terminal reports whether no further transition is possible.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// WorkSubmission is one freelancer's deliverable for one job. QualityCheckID
// names the record that let the current Work through the gate.
type WorkSubmission struct {
	ID                string           `json:"id"`
	JobID             string           `json:"jobId"`
	FreelancerAddress string           `json:"freelancerAddress"`
	Work              string           `json:"work"`
	QualityScore      float64          `json:"qualityScore"`
	QualityCheckID    string           `json:"qualityCheckId,omitempty"`
	Status            SubmissionStatus `json:"status"`
	RetryCount        int              `json:"retryCount"`
	RejectionReason   string           `json:"rejectionReason,omitempty"`
	ReviewScore       *float64         `json:"reviewScore,omitempty"`
	FixableScore      *float64         `json:"fixableScore,omitempty"`
	ReassignScore     *float64         `json:"reassignScore,omitempty"`
	SubmittedAt       time.Time        `json:"submittedAt"`
	LastUpdated       time.Time        `json:"lastUpdated"`
}

// RecordReview copies the review verdict and the employer's reason onto the submission.
func (s *WorkSubmission) RecordReview(reason string, review AgentReviewResponse, at time.Time) {
	reviewScore, fixable, reassign := review.ReviewScore, review.FixableScore, review.ReassignScore
	s.RejectionReason = reason
	s.ReviewScore = &reviewScore
	s.FixableScore = &fixable
	s.ReassignScore = &reassign
	s.LastUpdated = at
}

// QualityCheckRecord is the persisted trace of one quality-check run.
type QualityCheckRecord struct {
	ID                string             `json:"id"`
	JobID             string             `json:"jobId"`
	FreelancerAddress string             `json:"freelancerAddress,omitempty"`
	Work              string             `json:"work"`
	Result            QualityCheckResult `json:"result"`
	CreatedAt         time.Time          `json:"createdAt"`
}
