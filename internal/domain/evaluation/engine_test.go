package evaluation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"repverse/internal/domain/marketplace"
	"repverse/internal/domain/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient answers with the first rule whose marker appears in the prompt.
type scriptedClient struct {
	mu       sync.Mutex
	rules    []rule
	requests []ports.CompletionRequest
	calls    atomic.Int32
}

type rule struct {
	marker string
	reply  string
	err    error
	delay  time.Duration
}

func (c *scriptedClient) on(marker, reply string) *scriptedClient {
	c.rules = append(c.rules, rule{marker: marker, reply: reply})
	return c
}

func (c *scriptedClient) fail(marker string, err error) *scriptedClient {
	c.rules = append(c.rules, rule{marker: marker, err: err})
	return c
}

func (c *scriptedClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()
	for _, r := range c.rules {
		if !strings.Contains(req.Prompt, r.marker) {
			continue
		}
		if r.delay > 0 {
			select {
			case <-time.After(r.delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if r.err != nil {
			return nil, r.err
		}
		return &ports.CompletionResponse{Content: r.reply, Model: "scripted"}, nil
	}
	return nil, errors.New("no scripted reply for prompt")
}

func (c *scriptedClient) Model() string { return "scripted" }

func (c *scriptedClient) prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.requests))
	for i, req := range c.requests {
		out[i] = req.Prompt
	}
	return out
}

const (
	qualityAggregatorMarker = "master quality assurance aggregator"
	reviewAggregatorMarker  = "master review aggregator"
)

var poemJob = marketplace.JobSpec{
	Title:        "Poem",
	Description:  "A poem about the beauty of nature.",
	Requirements: []string{"10 lines", "about nature"},
	Instructions: []string{"English only"},
}

func rosterWith(names ...string) PolicySet {
	enabled := map[string]bool{}
	for _, name := range names {
		enabled[name] = true
	}
	policies := DefaultPolicies()
	for i := range policies {
		policies[i].Enabled = enabled[policies[i].Name]
	}
	set, err := NewPolicySet(policies)
	if err != nil {
		panic(err)
	}
	return set
}

func personaMarker(name string) string {
	p, _ := DefaultPolicySet().Lookup(name)
	return p.QualityPersona
}

func reviewMarker(name string) string {
	p, _ := DefaultPolicySet().Lookup(name)
	return p.ReviewPersona
}

func TestQualityCheckSingleNeutralAgent(t *testing.T) {
	client := (&scriptedClient{}).
		on(qualityAggregatorMarker, `{"aggregatedPositiveFeedback":["Ten lines","Nature imagery"],"aggregatedNegativeFeedback":["Meter is uneven"]}`).
		on(personaMarker(PolicyNeutral), "```json\n{\"quality\": 8, \"positiveFeedback\": [\"Ten lines\"], \"negativeFeedback\": [\"Meter is uneven\"]}\n```")

	engine, err := NewEngine(client, DefaultPolicySet())
	require.NoError(t, err)

	result, err := engine.QualityCheck(context.Background(), marketplace.TextWork("a 10-line poem about the ocean"), poemJob)
	require.NoError(t, err)

	assert.Equal(t, 8.0, result.Quality)
	assert.NotEmpty(t, result.PositiveFeedback)
	assert.NotEmpty(t, result.NegativeFeedback)
	assert.Equal(t, []string{"Meter is uneven"}, result.NegativeFeedback)

	prompts := client.prompts()
	require.Len(t, prompts, 2)
	assert.True(t, strings.HasSuffix(prompts[0], "\nWork Sample: a 10-line poem about the ocean"))
	assert.Contains(t, prompts[0], `Requirements: ["10 lines","about nature"]`)
	assert.Contains(t, prompts[1], qualityAggregatorMarker, "aggregator runs last")
	assert.Contains(t, prompts[1], `"positiveFeedback": [`)
}

func TestQualityCheckAveragesAcrossAgents(t *testing.T) {
	cases := []struct {
		name   string
		agents []string
		scores []string
		want   float64
	}{
		{name: "one agent", agents: []string{PolicyNeutral}, scores: []string{"6"}, want: 6},
		{name: "three agents", agents: []string{PolicyLenient, PolicyNeutral, PolicyStrict}, scores: []string{"9", "7", "4"}, want: 20.0 / 3},
		{
			name:   "five agents",
			agents: []string{PolicyVeryLenient, PolicyLenient, PolicyNeutral, PolicyStrict, PolicyVeryStrict},
			scores: []string{"10", "8.5", "7", "5", "2.25"},
			want:   32.75 / 5,
		},
	}

	for _, tc := range cases {
		for _, parallel := range []bool{false, true} {
			t.Run(tc.name, func(t *testing.T) {
				client := (&scriptedClient{}).on(qualityAggregatorMarker, `{"aggregatedPositiveFeedback":[],"aggregatedNegativeFeedback":[]}`)
				for i, agent := range tc.agents {
					client.on(personaMarker(agent), `{"quality": `+tc.scores[i]+`, "positiveFeedback": [], "negativeFeedback": []}`)
				}
				engine, err := NewEngine(client, rosterWith(tc.agents...), WithParallelAgents(parallel))
				require.NoError(t, err)

				result, err := engine.QualityCheck(context.Background(), marketplace.TextWork("work"), poemJob)
				require.NoError(t, err)
				assert.InDelta(t, tc.want, result.Quality, 1e-9)
				assert.Equal(t, int32(len(tc.agents)+1), client.calls.Load())
			})
		}
	}
}

func TestQualityCheckUnparsableAgentOutputIsNotZero(t *testing.T) {
	client := (&scriptedClient{}).
		on(qualityAggregatorMarker, `{"aggregatedPositiveFeedback":[],"aggregatedNegativeFeedback":[]}`).
		on(personaMarker(PolicyNeutral), "I could not evaluate this work, sorry.")

	engine, err := NewEngine(client, DefaultPolicySet())
	require.NoError(t, err)

	_, err = engine.QualityCheck(context.Background(), marketplace.TextWork("work"), poemJob)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAgentFailed)
	assert.ErrorIs(t, err, ErrUnparsableOpinion)

	var agentErr *AgentError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, PolicyNeutral, agentErr.Agent)
	assert.Equal(t, int32(1), client.calls.Load(), "aggregator must not run after an agent failure")
}

func TestQualityCheckOutOfRangeScoreRejected(t *testing.T) {
	client := (&scriptedClient{}).on(personaMarker(PolicyNeutral), `{"quality": 42}`)
	engine, err := NewEngine(client, DefaultPolicySet())
	require.NoError(t, err)

	_, err = engine.QualityCheck(context.Background(), marketplace.TextWork("work"), poemJob)
	assert.ErrorIs(t, err, ErrUnparsableOpinion)
}

func TestQualityCheckAgentTransportFailureAborts(t *testing.T) {
	upstream := errors.New("HTTP 503: overloaded")
	client := (&scriptedClient{}).
		on(personaMarker(PolicyLenient), `{"quality": 9}`).
		fail(personaMarker(PolicyStrict), upstream).
		on(qualityAggregatorMarker, `{"aggregatedPositiveFeedback":[],"aggregatedNegativeFeedback":[]}`)

	for _, parallel := range []bool{false, true} {
		engine, err := NewEngine(client, rosterWith(PolicyLenient, PolicyStrict), WithParallelAgents(parallel))
		require.NoError(t, err)

		_, err = engine.QualityCheck(context.Background(), marketplace.TextWork("work"), poemJob)
		require.Error(t, err)
		assert.ErrorIs(t, err, upstream)
		assert.ErrorIs(t, err, ErrAgentFailed)
	}
	for _, prompt := range client.prompts() {
		assert.NotContains(t, prompt, qualityAggregatorMarker)
	}
}

func TestQualityCheckAggregatorWithoutListsFails(t *testing.T) {
	client := (&scriptedClient{}).
		on(qualityAggregatorMarker, `{"summary": "fine"}`).
		on(personaMarker(PolicyNeutral), `{"quality": 8, "positiveFeedback": ["ok"], "negativeFeedback": []}`)
	engine, err := NewEngine(client, DefaultPolicySet())
	require.NoError(t, err)

	_, err = engine.QualityCheck(context.Background(), marketplace.TextWork("work"), poemJob)
	assert.ErrorIs(t, err, ErrAggregationFailed)
	assert.ErrorIs(t, err, ErrUnparsableOpinion)
}

func TestQualityCheckSendsImagesInline(t *testing.T) {
	client := (&scriptedClient{}).
		on(qualityAggregatorMarker, `{"aggregatedPositiveFeedback":["bold title"],"aggregatedNegativeFeedback":[]}`).
		on(personaMarker(PolicyNeutral), `{"quality": 9, "positiveFeedback": ["bold title"], "negativeFeedback": []}`)
	engine, err := NewEngine(client, DefaultPolicySet())
	require.NoError(t, err)

	png := []byte{0x89, 'P', 'N', 'G'}
	_, err = engine.QualityCheck(context.Background(), marketplace.ImageWork(png, "image/png"), poemJob)
	require.NoError(t, err)

	client.mu.Lock()
	defer client.mu.Unlock()
	require.Len(t, client.requests, 2)
	for _, req := range client.requests {
		require.Len(t, req.Images, 1)
		assert.Equal(t, "image/png", req.Images[0].MimeType)
		assert.Equal(t, png, req.Images[0].Data)
		assert.NotContains(t, req.Prompt, "Work Sample:")
	}
}

func TestQualityCheckRejectsEmptyWork(t *testing.T) {
	engine, err := NewEngine(&scriptedClient{}, DefaultPolicySet())
	require.NoError(t, err)
	_, err = engine.QualityCheck(context.Background(), marketplace.TextWork("  "), poemJob)
	require.Error(t, err)
}

func TestQualityCheckCancelledContextStopsAgents(t *testing.T) {
	client := &scriptedClient{}
	client.rules = append(client.rules, rule{marker: personaMarker(PolicyNeutral), reply: `{"quality": 8}`, delay: time.Second})
	engine, err := NewEngine(client, DefaultPolicySet())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = engine.QualityCheck(ctx, marketplace.TextWork("work"), poemJob)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReviewAveragesScoresAndConsolidates(t *testing.T) {
	client := (&scriptedClient{}).
		on(reviewAggregatorMarker, `{"aggregatedCriticalConsideration":["Reason is vague","Work matches requirements"]}`).
		on(reviewMarker(PolicyNeutral), `{"reviewScore": 3, "criticalConsideration": ["Reason is vague"], "fixableScore": 6, "reassignScore": 2}`).
		on(reviewMarker(PolicyStrict), `{"reviewScore": "5", "criticalConsideration": ["Work matches requirements"], "fixableScore": 4, "reassignScore": 4}`)

	engine, err := NewEngine(client, rosterWith(PolicyNeutral, PolicyStrict))
	require.NoError(t, err)

	prior := marketplace.QualityCheckResult{Quality: 8, PositiveFeedback: []string{"good"}, NegativeFeedback: []string{}}
	result, err := engine.Review(context.Background(), marketplace.TextWork("poem"), poemJob, prior, "I don't like it")
	require.NoError(t, err)

	assert.InDelta(t, 4.0, result.ReviewScore, 1e-9)
	assert.InDelta(t, 5.0, result.FixableScore, 1e-9)
	assert.InDelta(t, 3.0, result.ReassignScore, 1e-9)
	assert.Equal(t, []string{"Reason is vague", "Work matches requirements"}, result.CriticalConsideration)

	prompts := client.prompts()
	require.Len(t, prompts, 3)
	assert.Contains(t, prompts[0], `Aggregated QA Result: {"quality":8,"positiveFeedback":["good"],"negativeFeedback":[]}`)
	assert.Contains(t, prompts[0], `Job Poster's Rejection Reason: "I don't like it"`)
	assert.Contains(t, prompts[2], `"agent": "neutral"`)
	assert.True(t, strings.HasSuffix(prompts[2], "\nWork Sample: poem"))
}

func TestReviewMissingScoreIsDataQualityError(t *testing.T) {
	client := (&scriptedClient{}).
		on(reviewAggregatorMarker, `{"aggregatedCriticalConsideration":[]}`).
		on(reviewMarker(PolicyNeutral), `{"reviewScore": 7, "criticalConsideration": []}`)
	engine, err := NewEngine(client, DefaultPolicySet())
	require.NoError(t, err)

	_, err = engine.Review(context.Background(), marketplace.TextWork("poem"), poemJob, marketplace.QualityCheckResult{}, "late")
	assert.ErrorIs(t, err, ErrUnparsableOpinion)
	assert.Contains(t, err.Error(), "fixableScore")
}

func TestReviewAggregatorFailure(t *testing.T) {
	client := (&scriptedClient{}).
		fail(reviewAggregatorMarker, errors.New("connection reset")).
		on(reviewMarker(PolicyNeutral), `{"reviewScore": 7, "criticalConsideration": [], "fixableScore": 5, "reassignScore": 5}`)
	engine, err := NewEngine(client, DefaultPolicySet())
	require.NoError(t, err)

	_, err = engine.Review(context.Background(), marketplace.TextWork("poem"), poemJob, marketplace.QualityCheckResult{}, "late")
	assert.ErrorIs(t, err, ErrAggregationFailed)
}

func TestReviewRequiresReason(t *testing.T) {
	engine, err := NewEngine(&scriptedClient{}, DefaultPolicySet())
	require.NoError(t, err)
	_, err = engine.Review(context.Background(), marketplace.TextWork("poem"), poemJob, marketplace.QualityCheckResult{}, " ")
	require.Error(t, err)
}

type recordingRecorder struct {
	mu     sync.Mutex
	agents []string
}

func (r *recordingRecorder) RecordAgentCall(_ context.Context, flow, agent string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = append(r.agents, flow+"/"+agent)
}

func TestEngineRecordsEveryCall(t *testing.T) {
	client := (&scriptedClient{}).
		on(qualityAggregatorMarker, `{"aggregatedPositiveFeedback":[],"aggregatedNegativeFeedback":[]}`).
		on(personaMarker(PolicyNeutral), `{"quality": 8}`)
	recorder := &recordingRecorder{}
	engine, err := NewEngine(client, DefaultPolicySet(), WithRecorder(recorder))
	require.NoError(t, err)

	_, err = engine.QualityCheck(context.Background(), marketplace.TextWork("work"), poemJob)
	require.NoError(t, err)
	assert.Equal(t, []string{"quality/neutral", "quality/master"}, recorder.agents)
}

func TestNewEngineValidation(t *testing.T) {
	_, err := NewEngine(nil, DefaultPolicySet())
	assert.Error(t, err)

	_, err = NewEngine(&scriptedClient{}, PolicySet{})
	assert.Error(t, err)
}
