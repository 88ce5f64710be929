package id

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestIDWithLogID(t *testing.T) {
	requestID := NewRequestIDWithLogID("log-123")
	assert.True(t, strings.HasPrefix(requestID, "log-123:llm-"), "got %q", requestID)

	fallback := NewRequestIDWithLogID(" ")
	assert.True(t, strings.HasPrefix(fallback, "llm-"), "got %q", fallback)
}

func TestPrefixedIdentifiersAreUnique(t *testing.T) {
	a := NewSubmissionID()
	b := NewSubmissionID()
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "sub-"))
	assert.True(t, strings.HasPrefix(NewRecordID(), "qc-"))
}

func TestUUIDv7Strategy(t *testing.T) {
	SetStrategy(StrategyUUIDv7)
	t.Cleanup(func() { SetStrategy(StrategyKSUID) })

	got := NewLogID()
	require.True(t, strings.HasPrefix(got, "log-"))
	assert.Len(t, strings.TrimPrefix(got, "log-"), 36)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("UUIDv7")
	require.NoError(t, err)
	assert.Equal(t, StrategyUUIDv7, s)

	_, err = ParseStrategy("snowflake")
	assert.Error(t, err)
}

func TestLogIDContextRoundTrip(t *testing.T) {
	ctx := WithLogID(context.Background(), " log-abc ")
	assert.Equal(t, "log-abc", LogIDFromContext(ctx))

	ctx2, generated := EnsureLogID(context.Background())
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, LogIDFromContext(ctx2))

	_, same := EnsureLogID(ctx)
	assert.Equal(t, "log-abc", same)
}
