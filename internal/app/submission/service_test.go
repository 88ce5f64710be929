package submission

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"repverse/internal/app"
	"repverse/internal/domain/marketplace"
	"repverse/internal/domain/submission"
	"repverse/internal/infra/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	rawAddress = "0x52908400098527886e0f7030069857d2e4169ee7"
	checksum   = "0x52908400098527886E0F7030069857D2E4169EE7"
)

type fakeEvaluator struct {
	quality     marketplace.QualityCheckResult
	qualityErr  error
	review      marketplace.AgentReviewResponse
	reviewErr   error
	qcCalls     int
	reviewCalls int
	lastPrior   marketplace.QualityCheckResult
	lastReason  string
	lastWork    marketplace.WorkArtifact
}

func (f *fakeEvaluator) QualityCheck(_ context.Context, work marketplace.WorkArtifact, _ marketplace.JobSpec) (marketplace.QualityCheckResult, error) {
	f.qcCalls++
	f.lastWork = work
	return f.quality, f.qualityErr
}

func (f *fakeEvaluator) Review(_ context.Context, work marketplace.WorkArtifact, _ marketplace.JobSpec, prior marketplace.QualityCheckResult, reason string) (marketplace.AgentReviewResponse, error) {
	f.reviewCalls++
	f.lastWork = work
	f.lastPrior = prior
	f.lastReason = reason
	return f.review, f.reviewErr
}

type textResolver struct{}

func (textResolver) Resolve(_ context.Context, ref string) (marketplace.WorkArtifact, error) {
	return marketplace.TextWork(ref), nil
}

var testJob = marketplace.JobSpec{
	Title:        "Landing page copy",
	Description:  "Write copy for a DeFi landing page",
	Requirements: []string{"under 200 words"},
}

// recordingStore keeps every saved quality check in insertion order.
type recordingStore struct {
	*memory.Store
	checks []marketplace.QualityCheckRecord
}

func (r *recordingStore) SaveQualityCheck(ctx context.Context, record marketplace.QualityCheckRecord) error {
	if err := r.Store.SaveQualityCheck(ctx, record); err != nil {
		return err
	}
	r.checks = append(r.checks, record)
	return nil
}

func (r *recordingStore) lastCheck(t *testing.T) marketplace.QualityCheckRecord {
	t.Helper()
	require.NotEmpty(t, r.checks, "no quality check was recorded")
	return r.checks[len(r.checks)-1]
}

func newTestService(t *testing.T, eval *fakeEvaluator) (*Service, *recordingStore) {
	t.Helper()
	store := &recordingStore{Store: memory.New()}
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(eval, textResolver{}, store, DefaultConfig(), WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	return svc, store
}

func submitPassing(t *testing.T, svc *Service, eval *fakeEvaluator) marketplace.WorkSubmission {
	t.Helper()
	eval.quality = marketplace.QualityCheckResult{Quality: 8, PositiveFeedback: []string{"clear"}, NegativeFeedback: []string{}}
	res, err := svc.SubmitWork(context.Background(), SubmitWorkRequest{
		JobID: "job-1", FreelancerAddress: rawAddress, Work: "Own your yield.", Job: testJob,
	})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	require.NotNil(t, res.Submission)
	return *res.Submission
}

func TestSubmitWorkQualityGate(t *testing.T) {
	tests := []struct {
		name     string
		quality  float64
		accepted bool
		message  string
	}{
		{name: "at threshold bounces", quality: 7, accepted: false, message: MessageQualityTooLow},
		{name: "below threshold bounces", quality: 3.5, accepted: false, message: MessageQualityTooLow},
		{name: "above threshold is pending", quality: 7.5, accepted: true, message: MessageSubmitted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := &fakeEvaluator{quality: marketplace.QualityCheckResult{
				Quality: tt.quality, PositiveFeedback: []string{"p"}, NegativeFeedback: []string{"n"},
			}}
			svc, store := newTestService(t, eval)
			ctx := context.Background()

			res, err := svc.SubmitWork(ctx, SubmitWorkRequest{JobID: "job-1", FreelancerAddress: rawAddress, Work: "w", Job: testJob})
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, res.Accepted)
			assert.Equal(t, tt.message, res.Message)
			assert.Equal(t, tt.quality, res.QualityScore)
			assert.Equal(t, []string{"p"}, res.Feedback.Positive)
			assert.Equal(t, []string{"n"}, res.Feedback.Negative)

			record := store.lastCheck(t)
			assert.Equal(t, checksum, record.FreelancerAddress)
			assert.Equal(t, tt.quality, record.Result.Quality)
			assert.True(t, strings.HasPrefix(record.ID, "qc-"))

			sub, err := store.GetSubmission(ctx, "job-1", checksum)
			if !tt.accepted {
				require.ErrorIs(t, err, marketplace.ErrSubmissionNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, marketplace.StatusPending, sub.Status)
			assert.Equal(t, checksum, sub.FreelancerAddress)
			assert.Equal(t, record.ID, sub.QualityCheckID)
			assert.True(t, strings.HasPrefix(sub.ID, "sub-"))
		})
	}
}

func TestSubmitWorkValidation(t *testing.T) {
	tests := []struct {
		name string
		req  SubmitWorkRequest
	}{
		{name: "bad address", req: SubmitWorkRequest{JobID: "job-1", FreelancerAddress: "alice", Work: "w", Job: testJob}},
		{name: "missing job id", req: SubmitWorkRequest{FreelancerAddress: rawAddress, Work: "w", Job: testJob}},
		{name: "empty work", req: SubmitWorkRequest{JobID: "job-1", FreelancerAddress: rawAddress, Work: "  ", Job: testJob}},
		{name: "empty job", req: SubmitWorkRequest{JobID: "job-1", FreelancerAddress: rawAddress, Work: "w"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eval := &fakeEvaluator{}
			svc, _ := newTestService(t, eval)
			_, err := svc.SubmitWork(context.Background(), tt.req)
			require.ErrorIs(t, err, app.ErrValidation)
			assert.Zero(t, eval.qcCalls)
		})
	}
}

func TestSubmitWorkEvaluatorFailureSavesNothing(t *testing.T) {
	eval := &fakeEvaluator{qualityErr: errors.New("model unavailable")}
	svc, store := newTestService(t, eval)
	ctx := context.Background()

	_, err := svc.SubmitWork(ctx, SubmitWorkRequest{JobID: "job-1", FreelancerAddress: rawAddress, Work: "w", Job: testJob})
	require.Error(t, err)

	assert.Empty(t, store.checks)
}

func TestEmployerApprove(t *testing.T) {
	eval := &fakeEvaluator{}
	svc, store := newTestService(t, eval)
	submitPassing(t, svc, eval)

	res, err := svc.EmployerAction(context.Background(), EmployerActionRequest{JobID: "job-1", FreelancerAddress: rawAddress, Action: "approve"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, MessageApproved, res.Message)
	assert.Equal(t, submission.ActionApproved, res.Action)
	assert.Zero(t, eval.reviewCalls)

	sub, err := store.GetSubmission(context.Background(), "job-1", checksum)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusApproved, sub.Status)

	_, err = svc.EmployerAction(context.Background(), EmployerActionRequest{JobID: "job-1", FreelancerAddress: rawAddress, Action: "approve"})
	require.ErrorIs(t, err, app.ErrConflict)

	_, err = svc.SubmitWork(context.Background(), SubmitWorkRequest{JobID: "job-1", FreelancerAddress: rawAddress, Work: "again", Job: testJob})
	require.ErrorIs(t, err, app.ErrConflict)
}

func TestEmployerRejectVetoed(t *testing.T) {
	eval := &fakeEvaluator{}
	svc, store := newTestService(t, eval)
	before := submitPassing(t, svc, eval)

	eval.review = marketplace.AgentReviewResponse{ReviewScore: 4, CriticalConsideration: []string{"reason is vague"}, FixableScore: 6, ReassignScore: 3}
	res, err := svc.EmployerAction(context.Background(), EmployerActionRequest{
		JobID: "job-1", FreelancerAddress: rawAddress, Action: "reject", RejectionReason: "I don't like it", Job: testJob,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.CanReject)
	assert.Equal(t, submission.ActionCannotReject, res.Action)
	assert.Contains(t, res.Message, "(Review Score: 4.0/10)")
	require.NotNil(t, res.Review)
	assert.Equal(t, "I don't like it", eval.lastReason)
	assert.Equal(t, 8.0, eval.lastPrior.Quality)

	after, err := store.GetSubmission(context.Background(), "job-1", checksum)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEmployerRejectReviewsAgainstAdmittingQualityCheck(t *testing.T) {
	eval := &fakeEvaluator{}
	svc, store := newTestService(t, eval)
	ctx := context.Background()
	admitted := submitPassing(t, svc, eval)

	eval.quality = marketplace.QualityCheckResult{Quality: 2, NegativeFeedback: []string{"off topic"}}
	bounced, err := svc.SubmitWork(ctx, SubmitWorkRequest{JobID: "job-1", FreelancerAddress: rawAddress, Work: "junk", Job: testJob})
	require.NoError(t, err)
	require.False(t, bounced.Accepted)

	eval.quality = marketplace.QualityCheckResult{Quality: 3}
	_, err = svc.QualityCheck(ctx, QualityCheckRequest{JobID: "job-1", FreelancerAddress: rawAddress, Work: "other draft", Job: testJob})
	require.NoError(t, err)
	require.Len(t, store.checks, 3)

	sub, err := store.GetSubmission(ctx, "job-1", checksum)
	require.NoError(t, err)
	assert.Equal(t, admitted.QualityCheckID, sub.QualityCheckID, "bounced and standalone checks leave the submission alone")

	eval.review = marketplace.AgentReviewResponse{ReviewScore: 8, FixableScore: 7, ReassignScore: 3}
	_, err = svc.EmployerAction(ctx, EmployerActionRequest{
		JobID: "job-1", FreelancerAddress: rawAddress, Action: "reject", RejectionReason: "Missing the CTA", Job: testJob,
	})
	require.NoError(t, err)
	assert.Equal(t, "Own your yield.", eval.lastWork.Text)
	assert.Equal(t, 8.0, eval.lastPrior.Quality)
	assert.Equal(t, []string{"clear"}, eval.lastPrior.PositiveFeedback)

	eval.quality = marketplace.QualityCheckResult{Quality: 9, PositiveFeedback: []string{"CTA added"}}
	res, err := svc.SubmitWork(ctx, SubmitWorkRequest{JobID: "job-1", FreelancerAddress: rawAddress, Work: "Own your yield. Start now.", Job: testJob})
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, store.lastCheck(t).ID, res.Submission.QualityCheckID)

	_, err = svc.Review(ctx, ReviewRequest{JobID: "job-1", FreelancerAddress: rawAddress, RejectionReason: "still weak", Job: testJob})
	require.NoError(t, err)
	assert.Equal(t, 9.0, eval.lastPrior.Quality, "a passing resubmission moves the pointer")
}

func TestEmployerRejectRevisionThenFinal(t *testing.T) {
	eval := &fakeEvaluator{}
	svc, store := newTestService(t, eval)
	ctx := context.Background()
	submitPassing(t, svc, eval)

	reject := EmployerActionRequest{JobID: "job-1", FreelancerAddress: rawAddress, Action: "reject", RejectionReason: "Missing the CTA", Job: testJob}
	eval.review = marketplace.AgentReviewResponse{ReviewScore: 8, FixableScore: 7, ReassignScore: 3}

	for round, wantLeft := range []int{1, 0} {
		res, err := svc.EmployerAction(ctx, reject)
		require.NoError(t, err, "round %d", round)
		assert.Equal(t, submission.ActionRevisionRequested, res.Action)
		assert.Equal(t, MessageRevision, res.Message)
		require.NotNil(t, res.RetriesLeft)
		assert.Equal(t, wantLeft, *res.RetriesLeft)

		sub, err := store.GetSubmission(ctx, "job-1", checksum)
		require.NoError(t, err)
		assert.Equal(t, marketplace.StatusRevisionRequested, sub.Status)
		assert.Equal(t, round+1, sub.RetryCount)
		assert.Equal(t, "Missing the CTA", sub.RejectionReason)
		require.NotNil(t, sub.ReviewScore)

		_, err = svc.EmployerAction(ctx, reject)
		require.ErrorIs(t, err, app.ErrConflict, "revision_requested cannot be rejected again")

		submitPassing(t, svc, eval)
	}

	res, err := svc.EmployerAction(ctx, reject)
	require.NoError(t, err)
	assert.Equal(t, submission.ActionFinalRejection, res.Action)
	assert.Equal(t, MessageFinalRejection, res.Message)
	assert.Nil(t, res.RetriesLeft)

	sub, err := store.GetSubmission(ctx, "job-1", checksum)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusRejected, sub.Status)
	assert.Equal(t, 2, sub.RetryCount)
}

func TestEmployerRejectReassign(t *testing.T) {
	eval := &fakeEvaluator{}
	svc, store := newTestService(t, eval)
	submitPassing(t, svc, eval)

	eval.review = marketplace.AgentReviewResponse{ReviewScore: 9, FixableScore: 5, ReassignScore: 5}
	res, err := svc.EmployerAction(context.Background(), EmployerActionRequest{
		JobID: "job-1", FreelancerAddress: checksum, Action: "REJECT", RejectionReason: "Plagiarised", Job: testJob,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, submission.ActionReassignRecommended, res.Action)
	assert.Equal(t, MessageReassign, res.Message)

	sub, err := store.GetSubmission(context.Background(), "job-1", checksum)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusRejected, sub.Status)
	assert.Zero(t, sub.RetryCount)
}

func TestEmployerActionErrors(t *testing.T) {
	t.Run("unknown submission", func(t *testing.T) {
		svc, _ := newTestService(t, &fakeEvaluator{})
		_, err := svc.EmployerAction(context.Background(), EmployerActionRequest{JobID: "job-1", FreelancerAddress: rawAddress, Action: "approve"})
		require.ErrorIs(t, err, app.ErrNotFound)
		assert.Equal(t, MessageNotFound, app.PublicMessage(err))
	})

	t.Run("invalid action", func(t *testing.T) {
		eval := &fakeEvaluator{}
		svc, _ := newTestService(t, eval)
		submitPassing(t, svc, eval)
		_, err := svc.EmployerAction(context.Background(), EmployerActionRequest{JobID: "job-1", FreelancerAddress: rawAddress, Action: "escalate"})
		require.ErrorIs(t, err, app.ErrValidation)
		assert.Equal(t, MessageInvalidAction, app.PublicMessage(err))
	})

	t.Run("missing reason", func(t *testing.T) {
		eval := &fakeEvaluator{}
		svc, _ := newTestService(t, eval)
		submitPassing(t, svc, eval)
		_, err := svc.EmployerAction(context.Background(), EmployerActionRequest{JobID: "job-1", FreelancerAddress: rawAddress, Action: "reject", RejectionReason: " "})
		require.ErrorIs(t, err, app.ErrValidation)
		assert.Equal(t, MessageReasonRequired, app.PublicMessage(err))
		assert.Zero(t, eval.reviewCalls)
	})

	t.Run("no quality check on record", func(t *testing.T) {
		eval := &fakeEvaluator{}
		svc, store := newTestService(t, eval)
		require.NoError(t, store.SaveSubmission(context.Background(), submission.NewSubmission("sub-x", "job-1", checksum, "w", 8, time.Now())))
		_, err := svc.EmployerAction(context.Background(), EmployerActionRequest{JobID: "job-1", FreelancerAddress: rawAddress, Action: "reject", RejectionReason: "bad"})
		require.ErrorIs(t, err, app.ErrNotFound)
		assert.Equal(t, MessageQualityNotFound, app.PublicMessage(err))
	})

	t.Run("review failure leaves submission untouched", func(t *testing.T) {
		eval := &fakeEvaluator{}
		svc, store := newTestService(t, eval)
		before := submitPassing(t, svc, eval)
		eval.reviewErr = errors.New("aggregation failed")
		_, err := svc.EmployerAction(context.Background(), EmployerActionRequest{JobID: "job-1", FreelancerAddress: rawAddress, Action: "reject", RejectionReason: "bad"})
		require.Error(t, err)
		after, err := store.GetSubmission(context.Background(), "job-1", checksum)
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

func TestStandaloneQualityCheckAndReview(t *testing.T) {
	eval := &fakeEvaluator{quality: marketplace.QualityCheckResult{Quality: 6}}
	svc, store := newTestService(t, eval)
	ctx := context.Background()

	result, err := svc.QualityCheck(ctx, QualityCheckRequest{JobID: "job-1", Work: "draft", Job: testJob})
	require.NoError(t, err)
	assert.Equal(t, 6.0, result.Quality)
	assert.Equal(t, "draft", store.lastCheck(t).Work)

	_, err = svc.Review(ctx, ReviewRequest{JobID: "job-1", FreelancerAddress: rawAddress, RejectionReason: "bad", Job: testJob})
	require.ErrorIs(t, err, app.ErrNotFound)

	submitPassing(t, svc, eval)
	eval.review = marketplace.AgentReviewResponse{ReviewScore: 9, FixableScore: 8, ReassignScore: 1}
	review, err := svc.Review(ctx, ReviewRequest{JobID: "job-1", FreelancerAddress: rawAddress, RejectionReason: "bad", Job: testJob})
	require.NoError(t, err)
	assert.Equal(t, 9.0, review.ReviewScore)
	assert.Equal(t, "Own your yield.", eval.lastWork.Text)

	sub, err := store.GetSubmission(ctx, "job-1", checksum)
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusPending, sub.Status, "standalone review does not mutate")
}

func TestListSubmissions(t *testing.T) {
	eval := &fakeEvaluator{}
	svc, _ := newTestService(t, eval)
	submitPassing(t, svc, eval)

	_, err := svc.ListSubmissions(context.Background(), "", "")
	require.ErrorIs(t, err, app.ErrValidation)
	assert.Equal(t, MessageJobIDRequired, app.PublicMessage(err))

	subs, err := svc.ListSubmissions(context.Background(), "job-1", "")
	require.NoError(t, err)
	require.Len(t, subs, 1)

	subs, err = svc.ListSubmissions(context.Background(), "job-1", rawAddress)
	require.NoError(t, err)
	require.Len(t, subs, 1)
}
