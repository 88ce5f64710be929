// Package submission runs the freelancer/employer workflow around the
// scoring engine: quality-gated submission, employer approval and
// review-arbitrated rejection.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"repverse/internal/app"
	"repverse/internal/domain/marketplace"
	"repverse/internal/domain/submission"
	"repverse/internal/shared/logging"
	id "repverse/internal/shared/utils/id"

	"github.com/ethereum/go-ethereum/common"
)

const (
	MessageQualityTooLow    = "Work quality score is too low. Please improve your work and try again."
	MessageSubmitted        = "Work submitted successfully and is pending review!"
	MessageApproved         = "Work approved successfully!"
	MessageFinalRejection   = "Work rejected - maximum retries exceeded"
	MessageRevision         = "Revision requested - freelancer can resubmit"
	MessageReassign         = "Work rejected - job should be reassigned to another freelancer"
	MessageNotFound         = "Work submission not found"
	MessageReasonRequired   = "Rejection reason is required"
	MessageInvalidAction    = "Invalid action"
	MessageQualityNotFound  = "Quality check result not found"
	MessageJobIDRequired    = "Job ID is required"
	MessageSubmissionClosed = "Work submission is closed"
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Evaluator is the scoring engine as seen by the workflow.
type Evaluator interface {
	QualityCheck(ctx context.Context, work marketplace.WorkArtifact, job marketplace.JobSpec) (marketplace.QualityCheckResult, error)
	Review(ctx context.Context, work marketplace.WorkArtifact, job marketplace.JobSpec, prior marketplace.QualityCheckResult, rejectionReason string) (marketplace.AgentReviewResponse, error)
}

// WorkResolver turns a stored work reference into an artifact. It degrades
// to Text(ref) on fetch failures and only errors when ctx is done.
type WorkResolver interface {
	Resolve(ctx context.Context, ref string) (marketplace.WorkArtifact, error)
}

// Config holds workflow thresholds.
type Config struct {
	// PassThreshold: work must score strictly above it to be submitted.
	PassThreshold float64
	Policy        submission.Policy
}

// DefaultConfig returns the marketplace defaults.
func DefaultConfig() Config {
	return Config{PassThreshold: 7, Policy: submission.DefaultPolicy()}
}

// Service implements the submission workflow.
type Service struct {
	evaluator Evaluator
	resolver  WorkResolver
	store     marketplace.Store
	config    Config
	logger    logging.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(logger) }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService wires the workflow.
func NewService(evaluator Evaluator, resolver WorkResolver, store marketplace.Store, config Config, opts ...Option) *Service {
	s := &Service{
		evaluator: evaluator,
		resolver:  resolver,
		store:     store,
		config:    config,
		logger:    logging.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Feedback is the consolidated quality feedback returned to freelancers.
type Feedback struct {
	Positive []string `json:"positive"`
	Negative []string `json:"negative"`
}

// SubmitWorkRequest is a freelancer's submission.
type SubmitWorkRequest struct {
	JobID             string
	FreelancerAddress string
	Work              string
	Job               marketplace.JobSpec
}

// SubmitWorkResult reports whether the work passed the quality gate.
type SubmitWorkResult struct {
	Accepted     bool
	Message      string
	QualityScore float64
	Feedback     Feedback
	Submission   *marketplace.WorkSubmission
}

// SubmitWork quality-checks the work, records the check, and creates or
// refreshes the pending submission when the score clears the gate.
func (s *Service) SubmitWork(ctx context.Context, req SubmitWorkRequest) (SubmitWorkResult, error) {
	logger := logging.FromContext(ctx, s.logger)

	address, err := normalizeAddress(req.FreelancerAddress)
	if err != nil {
		return SubmitWorkResult{}, err
	}
	if strings.TrimSpace(req.JobID) == "" {
		return SubmitWorkResult{}, app.ValidationError(MessageJobIDRequired)
	}
	if strings.TrimSpace(req.Work) == "" {
		return SubmitWorkResult{}, app.ValidationError("Work is required")
	}
	if err := req.Job.Validate(); err != nil {
		return SubmitWorkResult{}, app.ValidationError("Job details are incomplete")
	}

	existing, found, err := s.lookup(ctx, req.JobID, address)
	if err != nil {
		return SubmitWorkResult{}, err
	}
	if found && existing.Status.Terminal() {
		return SubmitWorkResult{}, app.ConflictError(MessageSubmissionClosed, fmt.Errorf("submission is %s", existing.Status))
	}

	record, err := s.qualityCheck(ctx, req.JobID, address, req.Work, req.Job)
	if err != nil {
		return SubmitWorkResult{}, err
	}
	result := record.Result

	out := SubmitWorkResult{
		QualityScore: result.Quality,
		Feedback:     Feedback{Positive: result.PositiveFeedback, Negative: result.NegativeFeedback},
	}
	if result.Quality <= s.config.PassThreshold {
		logger.Info("submission for job %s by %s bounced at quality %.2f", req.JobID, address, result.Quality)
		out.Message = MessageQualityTooLow
		return out, nil
	}

	now := s.now()
	var sub marketplace.WorkSubmission
	if found {
		sub, err = submission.Resubmit(existing, req.Work, result.Quality, now)
		if err != nil {
			return SubmitWorkResult{}, app.ConflictError(MessageSubmissionClosed, err)
		}
	} else {
		sub = submission.NewSubmission(id.NewSubmissionID(), req.JobID, address, req.Work, result.Quality, now)
	}
	sub.QualityCheckID = record.ID
	if err := s.store.SaveSubmission(ctx, sub); err != nil {
		return SubmitWorkResult{}, fmt.Errorf("save submission: %w", err)
	}

	logger.Info("submission for job %s by %s pending review at quality %.2f", req.JobID, address, result.Quality)
	out.Accepted = true
	out.Message = MessageSubmitted
	out.Submission = &sub
	return out, nil
}

// QualityCheckRequest is a standalone quality check.
type QualityCheckRequest struct {
	JobID             string
	FreelancerAddress string
	Work              string
	Job               marketplace.JobSpec
}

// QualityCheck runs and records a quality check without touching submissions.
func (s *Service) QualityCheck(ctx context.Context, req QualityCheckRequest) (marketplace.QualityCheckResult, error) {
	if strings.TrimSpace(req.Work) == "" {
		return marketplace.QualityCheckResult{}, app.ValidationError("Work is required")
	}
	if err := req.Job.Validate(); err != nil {
		return marketplace.QualityCheckResult{}, app.ValidationError("Job details are incomplete")
	}
	address := ""
	if strings.TrimSpace(req.FreelancerAddress) != "" {
		normalized, err := normalizeAddress(req.FreelancerAddress)
		if err != nil {
			return marketplace.QualityCheckResult{}, err
		}
		address = normalized
	}
	record, err := s.qualityCheck(ctx, req.JobID, address, req.Work, req.Job)
	if err != nil {
		return marketplace.QualityCheckResult{}, err
	}
	return record.Result, nil
}

// qualityCheck resolves the work, scores it and always records the result.
func (s *Service) qualityCheck(ctx context.Context, jobID, address, workRef string, job marketplace.JobSpec) (marketplace.QualityCheckRecord, error) {
	artifact, err := s.resolver.Resolve(ctx, workRef)
	if err != nil {
		return marketplace.QualityCheckRecord{}, fmt.Errorf("resolve work: %w", err)
	}

	result, err := s.evaluator.QualityCheck(ctx, artifact, job)
	if err != nil {
		return marketplace.QualityCheckRecord{}, fmt.Errorf("quality check: %w", err)
	}

	record := marketplace.QualityCheckRecord{
		ID:                id.NewRecordID(),
		JobID:             jobID,
		FreelancerAddress: address,
		Work:              workRef,
		Result:            result,
		CreatedAt:         s.now(),
	}
	if err := s.store.SaveQualityCheck(ctx, record); err != nil {
		return marketplace.QualityCheckRecord{}, fmt.Errorf("save quality check: %w", err)
	}
	return record, nil
}

// EmployerActionRequest is an employer's verdict on a submission.
type EmployerActionRequest struct {
	JobID             string
	FreelancerAddress string
	Action            string
	RejectionReason   string
	Job               marketplace.JobSpec
}

// EmployerActionResult describes what the workflow did with the verdict.
type EmployerActionResult struct {
	Success     bool
	Message     string
	Action      submission.Action
	Review      *marketplace.AgentReviewResponse
	CanReject   bool
	RetriesLeft *int
	Submission  marketplace.WorkSubmission
}

// EmployerAction approves a submission or arbitrates its rejection. Review
// failures abort without mutating the submission.
func (s *Service) EmployerAction(ctx context.Context, req EmployerActionRequest) (EmployerActionResult, error) {
	logger := logging.FromContext(ctx, s.logger)

	address, err := normalizeAddress(req.FreelancerAddress)
	if err != nil {
		return EmployerActionResult{}, err
	}

	sub, found, err := s.lookup(ctx, req.JobID, address)
	if err != nil {
		return EmployerActionResult{}, err
	}
	if !found {
		return EmployerActionResult{}, app.NotFoundError(MessageNotFound)
	}

	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case ActionApprove:
		decision, err := submission.Approve(sub, s.now())
		if err != nil {
			return EmployerActionResult{}, app.ConflictError(MessageSubmissionClosed, err)
		}
		if err := s.store.SaveSubmission(ctx, decision.Submission); err != nil {
			return EmployerActionResult{}, fmt.Errorf("save submission: %w", err)
		}
		logger.Info("submission for job %s by %s approved", req.JobID, address)
		return EmployerActionResult{
			Success:    true,
			Message:    MessageApproved,
			Action:     decision.Action,
			CanReject:  true,
			Submission: decision.Submission,
		}, nil

	case ActionReject:
		return s.reject(ctx, logger, sub, req)

	default:
		return EmployerActionResult{}, app.ValidationError(MessageInvalidAction)
	}
}

func (s *Service) reject(ctx context.Context, logger logging.Logger, sub marketplace.WorkSubmission, req EmployerActionRequest) (EmployerActionResult, error) {
	reason := strings.TrimSpace(req.RejectionReason)
	if reason == "" {
		return EmployerActionResult{}, app.ValidationError(MessageReasonRequired)
	}
	if sub.Status != marketplace.StatusPending {
		return EmployerActionResult{}, app.ConflictError(MessageSubmissionClosed, fmt.Errorf("submission is %s", sub.Status))
	}

	review, err := s.review(ctx, sub, req.Job, reason)
	if err != nil {
		return EmployerActionResult{}, err
	}

	decision, err := s.config.Policy.DecideRejection(sub, reason, review, s.now())
	if err != nil {
		return EmployerActionResult{}, app.ConflictError(MessageSubmissionClosed, err)
	}

	out := EmployerActionResult{
		Success:    decision.CanReject(),
		Action:     decision.Action,
		Review:     &review,
		CanReject:  decision.CanReject(),
		Submission: decision.Submission,
	}

	switch decision.Action {
	case submission.ActionCannotReject:
		out.Message = fmt.Sprintf("Rejection reason is not sufficiently justified (Review Score: %.1f/10). You can either accept the work or provide a better rejection reason.", review.ReviewScore)
	case submission.ActionFinalRejection:
		out.Message = MessageFinalRejection
	case submission.ActionRevisionRequested:
		retriesLeft := decision.RetriesLeft
		out.RetriesLeft = &retriesLeft
		out.Message = MessageRevision
	case submission.ActionReassignRecommended:
		out.Message = MessageReassign
	}

	if decision.Changed {
		if err := s.store.SaveSubmission(ctx, decision.Submission); err != nil {
			return EmployerActionResult{}, fmt.Errorf("save submission: %w", err)
		}
	}

	logger.Info("rejection of job %s by %s: %s (review %.2f fixable %.2f reassign %.2f)",
		sub.JobID, sub.FreelancerAddress, decision.Action, review.ReviewScore, review.FixableScore, review.ReassignScore)
	return out, nil
}

// ReviewRequest is a standalone dispute review.
type ReviewRequest struct {
	JobID             string
	FreelancerAddress string
	RejectionReason   string
	Job               marketplace.JobSpec
}

// Review arbitrates a rejection reason without changing the submission.
func (s *Service) Review(ctx context.Context, req ReviewRequest) (marketplace.AgentReviewResponse, error) {
	address, err := normalizeAddress(req.FreelancerAddress)
	if err != nil {
		return marketplace.AgentReviewResponse{}, err
	}
	reason := strings.TrimSpace(req.RejectionReason)
	if reason == "" {
		return marketplace.AgentReviewResponse{}, app.ValidationError(MessageReasonRequired)
	}
	sub, found, err := s.lookup(ctx, req.JobID, address)
	if err != nil {
		return marketplace.AgentReviewResponse{}, err
	}
	if !found {
		return marketplace.AgentReviewResponse{}, app.NotFoundError(MessageNotFound)
	}
	return s.review(ctx, sub, req.Job, reason)
}

// review arbitrates against the quality check that admitted sub.Work, never a
// later run for the same job and freelancer.
func (s *Service) review(ctx context.Context, sub marketplace.WorkSubmission, job marketplace.JobSpec, reason string) (marketplace.AgentReviewResponse, error) {
	if sub.QualityCheckID == "" {
		return marketplace.AgentReviewResponse{}, app.NotFoundError(MessageQualityNotFound)
	}
	record, err := s.store.GetQualityCheck(ctx, sub.QualityCheckID)
	if errors.Is(err, marketplace.ErrQualityCheckNotFound) {
		return marketplace.AgentReviewResponse{}, app.NotFoundError(MessageQualityNotFound)
	}
	if err != nil {
		return marketplace.AgentReviewResponse{}, fmt.Errorf("load quality check: %w", err)
	}

	artifact, err := s.resolver.Resolve(ctx, sub.Work)
	if err != nil {
		return marketplace.AgentReviewResponse{}, fmt.Errorf("resolve work: %w", err)
	}

	review, err := s.evaluator.Review(ctx, artifact, job, record.Result, reason)
	if err != nil {
		return marketplace.AgentReviewResponse{}, fmt.Errorf("review: %w", err)
	}
	return review, nil
}

// ListSubmissions returns a job's submissions, newest first.
func (s *Service) ListSubmissions(ctx context.Context, jobID, freelancerAddress string) ([]marketplace.WorkSubmission, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, app.ValidationError(MessageJobIDRequired)
	}
	address := ""
	if strings.TrimSpace(freelancerAddress) != "" {
		normalized, err := normalizeAddress(freelancerAddress)
		if err != nil {
			return nil, err
		}
		address = normalized
	}
	subs, err := s.store.ListSubmissions(ctx, jobID, address)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

func (s *Service) lookup(ctx context.Context, jobID, address string) (marketplace.WorkSubmission, bool, error) {
	sub, err := s.store.GetSubmission(ctx, jobID, address)
	if errors.Is(err, marketplace.ErrSubmissionNotFound) {
		return marketplace.WorkSubmission{}, false, nil
	}
	if err != nil {
		return marketplace.WorkSubmission{}, false, fmt.Errorf("load submission: %w", err)
	}
	return sub, true, nil
}

// normalizeAddress validates a wallet address and returns its EIP-55 form so
// lookups do not depend on the caller's letter case.
func normalizeAddress(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", app.ValidationError("Freelancer address is required")
	}
	if !common.IsHexAddress(trimmed) {
		return "", app.ValidationError("Freelancer address is not a valid wallet address")
	}
	return common.HexToAddress(trimmed).Hex(), nil
}
