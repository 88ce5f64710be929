package postgres

import (
	"context"
	"testing"
	"time"

	"repverse/internal/domain/marketplace"
	"repverse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	pool, cleanup := testutil.NewPostgresTestPool(t)
	t.Cleanup(cleanup)
	store, err := New(pool)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, store.EnsureSchema(context.Background()), "schema creation is idempotent")
	return store
}

func TestPostgresSubmissionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := store.GetSubmission(ctx, "job-1", "0xA")
	require.ErrorIs(t, err, marketplace.ErrSubmissionNotFound)

	sub := marketplace.WorkSubmission{
		ID: "sub-1", JobID: "job-1", FreelancerAddress: "0xA", Work: "ipfs://bafy",
		QualityScore: 8.5, QualityCheckID: "qc-1", Status: marketplace.StatusPending, SubmittedAt: now, LastUpdated: now,
	}
	require.NoError(t, store.SaveSubmission(ctx, sub))

	got, err := store.GetSubmission(ctx, "job-1", "0xA")
	require.NoError(t, err)
	assert.Equal(t, "ipfs://bafy", got.Work)
	assert.Equal(t, "qc-1", got.QualityCheckID)
	assert.Nil(t, got.ReviewScore)
	assert.True(t, now.Equal(got.SubmittedAt))

	sub.RecordReview("Missing CTA", marketplace.AgentReviewResponse{ReviewScore: 8, FixableScore: 7, ReassignScore: 3}, now.Add(time.Minute))
	sub.Status = marketplace.StatusRevisionRequested
	sub.RetryCount = 1
	require.NoError(t, store.SaveSubmission(ctx, sub))

	got, err = store.GetSubmission(ctx, "job-1", "0xA")
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusRevisionRequested, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.ReviewScore)
	assert.Equal(t, 8.0, *got.ReviewScore)
	assert.Equal(t, "Missing CTA", got.RejectionReason)

	require.NoError(t, store.SaveSubmission(ctx, marketplace.WorkSubmission{
		ID: "sub-2", JobID: "job-1", FreelancerAddress: "0xB", Work: "w", Status: marketplace.StatusPending,
		SubmittedAt: now.Add(time.Hour), LastUpdated: now.Add(time.Hour),
	}))
	list, err := store.ListSubmissions(ctx, "job-1", "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "sub-2", list[0].ID)

	list, err = store.ListSubmissions(ctx, "job-1", "0xA")
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestPostgresQualityCheckByID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	_, err := store.GetQualityCheck(ctx, "qc-1")
	require.ErrorIs(t, err, marketplace.ErrQualityCheckNotFound)

	for i, work := range []string{"Own your yield.", "junk"} {
		require.NoError(t, store.SaveQualityCheck(ctx, marketplace.QualityCheckRecord{
			ID: []string{"qc-1", "qc-2"}[i], JobID: "job-1", FreelancerAddress: "0xA", Work: work,
			Result:    marketplace.QualityCheckResult{Quality: float64(8 - 6*i), PositiveFeedback: []string{"good"}, NegativeFeedback: []string{}},
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := store.GetQualityCheck(ctx, "qc-1")
	require.NoError(t, err)
	assert.Equal(t, "Own your yield.", got.Work)
	assert.Equal(t, 8.0, got.Result.Quality)
	assert.Equal(t, []string{"good"}, got.Result.PositiveFeedback)
	assert.True(t, now.Equal(got.CreatedAt))
}
