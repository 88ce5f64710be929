package evaluation

import (
	"testing"

	jsonx "repverse/internal/shared/json"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONRoundTripsCleanObjects(t *testing.T) {
	opinions := []map[string]any{
		{"quality": 7.5, "positiveFeedback": []any{"clear"}, "negativeFeedback": []any{}},
		{"reviewScore": 3.0, "criticalConsideration": []any{"vague reason", "work meets spec"}, "fixableScore": 6.0, "reassignScore": 2.0},
	}
	for _, want := range opinions {
		encoded, err := jsonx.Marshal(want)
		require.NoError(t, err)
		assert.Equal(t, want, ExtractJSON(string(encoded)))
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{
			name: "prose and fenced block",
			raw:  "Here you go:\n```json\n{\"quality\":7,\"positiveFeedback\":[\"a\"],\"negativeFeedback\":[\"b\"]}\n```",
			want: map[string]any{"quality": 7.0, "positiveFeedback": []any{"a"}, "negativeFeedback": []any{"b"}},
		},
		{
			name: "trailing prose after object",
			raw:  `{"quality": 9} Let me know if you need anything else!`,
			want: map[string]any{"quality": 9.0},
		},
		{
			name: "top level array",
			raw:  `Result: [1, 2, 3]`,
			want: []any{1.0, 2.0, 3.0},
		},
		{
			name: "double encoded string",
			raw:  `"{\"quality\": 4}"`,
			want: map[string]any{"quality": 4.0},
		},
		{
			name: "no json at all",
			raw:  "not json at all",
			want: map[string]any{},
		},
		{
			name: "empty input",
			raw:  "",
			want: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.raw))
		})
	}
}

func TestExtractObjectRecoversTruncatedOutput(t *testing.T) {
	t.Run("cut inside a string", func(t *testing.T) {
		obj := ExtractObject(`{"quality": 6, "positiveFeedback": ["tidy"], "negativeFeedback": ["too sh`)
		assert.Equal(t, 6.0, obj["quality"])
		assert.Equal(t, []any{"tidy"}, obj["positiveFeedback"])
		assert.Contains(t, obj, "negativeFeedback")
	})

	t.Run("cut after a key", func(t *testing.T) {
		obj := ExtractObject(`{"quality": 8, "positiveFeedback":`)
		assert.Equal(t, 8.0, obj["quality"])
	})
}

func TestCloseTruncatedDropsDanglingMember(t *testing.T) {
	value, ok := closeTruncated(`{"quality": 8, "positiveFeedback": ["a", "b"], "negativeFeedback"`)
	require.True(t, ok)
	obj := value.(map[string]any)
	assert.Equal(t, 8.0, obj["quality"])
	assert.Equal(t, []any{"a", "b"}, obj["positiveFeedback"])
	assert.NotContains(t, obj, "negativeFeedback")
}

func TestExtractObjectPicksFirstObjectFromArray(t *testing.T) {
	obj := ExtractObject(`[{"quality": 5}, {"quality": 9}]`)
	assert.Equal(t, 5.0, obj["quality"])
	assert.Empty(t, ExtractObject(`[1, 2]`))
}

func TestNumberFieldAcceptsQuotedNumbers(t *testing.T) {
	obj := map[string]any{"a": 7.0, "b": " 6.5 ", "c": "seven", "d": jsonx.Number("3")}
	v, ok := numberField(obj, "a")
	assert.True(t, ok)
	assert.Equal(t, 7.0, v)

	v, ok = numberField(obj, "b")
	assert.True(t, ok)
	assert.Equal(t, 6.5, v)

	_, ok = numberField(obj, "c")
	assert.False(t, ok)

	v, ok = numberField(obj, "d")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, ok = numberField(obj, "missing")
	assert.False(t, ok)
}

func TestStringList(t *testing.T) {
	list, ok := stringList(map[string]any{"x": []any{" a ", "", 3.0, nil}}, "x")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "3"}, list)

	list, ok = stringList(map[string]any{"x": "single"}, "x")
	require.True(t, ok)
	assert.Equal(t, []string{"single"}, list)

	_, ok = stringList(map[string]any{}, "x")
	assert.False(t, ok)
}
