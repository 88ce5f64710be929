// Package submission decides WorkSubmission transitions from review verdicts.
package submission

import (
	"errors"
	"fmt"
	"time"

	"repverse/internal/domain/marketplace"
)

// Action names the outcome of an employer action.
type Action string

const (
	ActionApproved            Action = "approved"
	ActionCannotReject        Action = "cannot_reject"
	ActionRevisionRequested   Action = "revision_requested"
	ActionFinalRejection      Action = "final_rejection"
	ActionReassignRecommended Action = "reassign_recommended"
)

// RetryLimit is the most revisions any submission may be offered.
const RetryLimit = 2

// ErrInvalidTransition is returned when the current status forbids the action.
var ErrInvalidTransition = errors.New("invalid submission transition")

// Policy holds the thresholds that drive rejection decisions.
type Policy struct {
	// VetoThreshold: a review score strictly below it blocks the rejection.
	VetoThreshold float64
	// MaxRetries caps how many revisions a freelancer is offered. Values above
	// RetryLimit are treated as RetryLimit.
	MaxRetries int
}

// DefaultPolicy returns the marketplace defaults (veto below 5, two retries).
func DefaultPolicy() Policy {
	return Policy{VetoThreshold: 5, MaxRetries: RetryLimit}
}

func (p Policy) retryCap() int {
	return min(max(p.MaxRetries, 0), RetryLimit)
}

// Decision is the outcome of feeding an employer action to the state machine.
type Decision struct {
	Action Action
	// Changed is false when the submission must not be persisted.
	Changed     bool
	Submission  marketplace.WorkSubmission
	RetriesLeft int
}

// CanReject reports whether the employer's rejection stood.
func (d Decision) CanReject() bool {
	return d.Action != ActionCannotReject
}

// Approve moves a pending submission to approved.
func Approve(sub marketplace.WorkSubmission, now time.Time) (Decision, error) {
	if sub.Status != marketplace.StatusPending {
		return Decision{}, fmt.Errorf("%w: cannot approve a %s submission", ErrInvalidTransition, sub.Status)
	}
	sub.Status = marketplace.StatusApproved
	sub.LastUpdated = now
	return Decision{Action: ActionApproved, Changed: true, Submission: sub}, nil
}

// DecideRejection applies a review verdict to a pending submission.
//
// A review score below the veto threshold leaves the submission untouched.
// Otherwise a strictly higher fixable score requests a revision until the
// retry cap is reached; ties and higher reassign scores reject outright.
func (p Policy) DecideRejection(sub marketplace.WorkSubmission, reason string, review marketplace.AgentReviewResponse, now time.Time) (Decision, error) {
	if sub.Status != marketplace.StatusPending {
		return Decision{}, fmt.Errorf("%w: cannot reject a %s submission", ErrInvalidTransition, sub.Status)
	}

	if review.ReviewScore < p.VetoThreshold {
		return Decision{Action: ActionCannotReject, Submission: sub}, nil
	}

	sub.RecordReview(reason, review, now)

	if review.FixableScore > review.ReassignScore {
		limit := p.retryCap()
		if sub.RetryCount >= limit {
			sub.Status = marketplace.StatusRejected
			return Decision{Action: ActionFinalRejection, Changed: true, Submission: sub}, nil
		}
		sub.Status = marketplace.StatusRevisionRequested
		sub.RetryCount++
		return Decision{
			Action:      ActionRevisionRequested,
			Changed:     true,
			Submission:  sub,
			RetriesLeft: limit - sub.RetryCount,
		}, nil
	}

	sub.Status = marketplace.StatusRejected
	return Decision{Action: ActionReassignRecommended, Changed: true, Submission: sub}, nil
}

// Resubmit replaces the work on an existing submission after it passed the
// quality gate. Terminal submissions cannot be resubmitted.
func Resubmit(sub marketplace.WorkSubmission, work string, qualityScore float64, now time.Time) (marketplace.WorkSubmission, error) {
	if sub.Status.Terminal() {
		return marketplace.WorkSubmission{}, fmt.Errorf("%w: cannot resubmit a %s submission", ErrInvalidTransition, sub.Status)
	}
	sub.Work = work
	sub.QualityScore = qualityScore
	sub.Status = marketplace.StatusPending
	sub.LastUpdated = now
	return sub, nil
}

// NewSubmission starts a pending submission with no retries used.
func NewSubmission(id, jobID, freelancerAddress, work string, qualityScore float64, now time.Time) marketplace.WorkSubmission {
	return marketplace.WorkSubmission{
		ID:                id,
		JobID:             jobID,
		FreelancerAddress: freelancerAddress,
		Work:              work,
		QualityScore:      qualityScore,
		Status:            marketplace.StatusPending,
		SubmittedAt:       now,
		LastUpdated:       now,
	}
}
