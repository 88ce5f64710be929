package memory

import (
	"context"
	"testing"
	"time"

	"repverse/internal/domain/marketplace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionUpsertAndList(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.GetSubmission(ctx, "job-1", "0xA")
	require.ErrorIs(t, err, marketplace.ErrSubmissionNotFound)

	require.NoError(t, store.SaveSubmission(ctx, marketplace.WorkSubmission{ID: "a", JobID: "job-1", FreelancerAddress: "0xA", SubmittedAt: base}))
	require.NoError(t, store.SaveSubmission(ctx, marketplace.WorkSubmission{ID: "b", JobID: "job-1", FreelancerAddress: "0xB", SubmittedAt: base.Add(time.Hour)}))
	require.NoError(t, store.SaveSubmission(ctx, marketplace.WorkSubmission{ID: "c", JobID: "job-2", FreelancerAddress: "0xA", SubmittedAt: base}))
	require.NoError(t, store.SaveSubmission(ctx, marketplace.WorkSubmission{ID: "a", JobID: "job-1", FreelancerAddress: "0xA", SubmittedAt: base, Status: marketplace.StatusApproved}))

	got, err := store.GetSubmission(ctx, "job-1", "0xA")
	require.NoError(t, err)
	assert.Equal(t, marketplace.StatusApproved, got.Status)

	all, err := store.ListSubmissions(ctx, "job-1", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)
	assert.Equal(t, "a", all[1].ID)

	one, err := store.ListSubmissions(ctx, "job-1", "0xB")
	require.NoError(t, err)
	require.Len(t, one, 1)

	none, err := store.ListSubmissions(ctx, "job-9", "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestQualityCheckByID(t *testing.T) {
	ctx := context.Background()
	store := New()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := store.GetQualityCheck(ctx, "qc-1")
	require.ErrorIs(t, err, marketplace.ErrQualityCheckNotFound)
	require.Error(t, store.SaveQualityCheck(ctx, marketplace.QualityCheckRecord{JobID: "job-1"}))

	first := marketplace.QualityCheckRecord{
		ID: "qc-1", JobID: "job-1", FreelancerAddress: "0xA", Work: "draft", CreatedAt: base,
		Result: marketplace.QualityCheckResult{Quality: 8, PositiveFeedback: []string{"clear"}},
	}
	require.NoError(t, store.SaveQualityCheck(ctx, first))
	require.NoError(t, store.SaveQualityCheck(ctx, marketplace.QualityCheckRecord{
		ID: "qc-2", JobID: "job-1", FreelancerAddress: "0xA", Work: "junk", CreatedAt: base.Add(time.Minute),
		Result: marketplace.QualityCheckResult{Quality: 2},
	}))

	got, err := store.GetQualityCheck(ctx, "qc-1")
	require.NoError(t, err)
	assert.Equal(t, first, got, "a newer record for the same pair does not shadow an older one")

	got.Result.PositiveFeedback[0] = "mutated"
	again, err := store.GetQualityCheck(ctx, "qc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"clear"}, again.Result.PositiveFeedback)
}
