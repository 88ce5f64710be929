package evaluation

import (
	"errors"
	"fmt"
)

var (
	// ErrAgentFailed marks a failed evaluator call. The whole operation is aborted.
	ErrAgentFailed = errors.New("evaluator agent failed")
	// ErrAggregationFailed marks a failed master-aggregator call.
	ErrAggregationFailed = errors.New("feedback aggregation failed")
	// ErrUnparsableOpinion marks model output that lacks a required field or
	// carries an out-of-range score. It is never treated as a score of zero.
	ErrUnparsableOpinion = errors.New("unparsable model output")
)

// AgentError carries which step failed. It matches ErrAgentFailed or
// ErrAggregationFailed as well as the underlying cause.
type AgentError struct {
	Agent string
	Flow  string
	stage error
	Err   error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("%s %s %q: %v", e.Flow, e.stage, e.Agent, e.Err)
}

func (e *AgentError) Unwrap() []error {
	return []error{e.stage, e.Err}
}

func agentFailure(flow, agent string, err error) error {
	return &AgentError{Agent: agent, Flow: flow, stage: ErrAgentFailed, Err: err}
}

func aggregationFailure(flow string, err error) error {
	return &AgentError{Agent: aggregatorName, Flow: flow, stage: ErrAggregationFailed, Err: err}
}
