package evaluation

import (
	"context"
	"fmt"

	"repverse/internal/domain/marketplace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// QualityOpinion is one agent's verdict on a work sample.
type QualityOpinion struct {
	Agent            string   `json:"agent"`
	Quality          float64  `json:"quality"`
	PositiveFeedback []string `json:"positiveFeedback"`
	NegativeFeedback []string `json:"negativeFeedback"`
}

// ParseQualityOpinion decodes raw agent output. A missing or out-of-range
// quality is ErrUnparsableOpinion; missing feedback lists become empty.
func ParseQualityOpinion(raw string) (QualityOpinion, error) {
	obj := ExtractObject(raw)
	quality, err := requireScore(obj, "quality")
	if err != nil {
		return QualityOpinion{}, err
	}
	return QualityOpinion{
		Quality:          quality,
		PositiveFeedback: optionalList(obj, "positiveFeedback"),
		NegativeFeedback: optionalList(obj, "negativeFeedback"),
	}, nil
}

// QualityCheck scores work against job with every active policy, averages
// the scores and has the aggregator consolidate the feedback. It has no side
// effects.
func (e *Engine) QualityCheck(ctx context.Context, work marketplace.WorkArtifact, job marketplace.JobSpec) (marketplace.QualityCheckResult, error) {
	if err := work.Validate(); err != nil {
		return marketplace.QualityCheckResult{}, err
	}

	ctx, span := e.tracer.Start(ctx, "evaluation.QualityCheck")
	defer span.End()

	policies := e.policies.Active()
	opinions, err := runAgents(ctx, e, policies, func(ctx context.Context, policy Policy) (QualityOpinion, error) {
		raw, err := e.call(ctx, FlowQuality, policy.Name, withWork(qualityAgentPrompt(policy, job), work))
		if err != nil {
			return QualityOpinion{}, agentFailure(FlowQuality, policy.Name, err)
		}
		opinion, err := ParseQualityOpinion(raw)
		if err != nil {
			e.logger.Warn("quality agent %s returned unusable output: %v", policy.Name, err)
			return QualityOpinion{}, agentFailure(FlowQuality, policy.Name, err)
		}
		opinion.Agent = policy.Name
		e.logger.Debug("quality agent %s scored %.2f", policy.Name, opinion.Quality)
		return opinion, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return marketplace.QualityCheckResult{}, err
	}

	scores := make([]float64, len(opinions))
	feedback := make([]qualityFeedback, len(opinions))
	for i, opinion := range opinions {
		scores[i] = opinion.Quality
		feedback[i] = qualityFeedback{
			PositiveFeedback: opinion.PositiveFeedback,
			NegativeFeedback: opinion.NegativeFeedback,
		}
	}

	positive, negative, err := e.aggregateQuality(ctx, work, job, feedback)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return marketplace.QualityCheckResult{}, err
	}

	result := marketplace.QualityCheckResult{
		Quality:          mean(scores),
		PositiveFeedback: positive,
		NegativeFeedback: negative,
	}
	span.SetAttributes(
		attribute.Int("evaluation.agents", len(opinions)),
		attribute.Float64("evaluation.quality", result.Quality),
	)
	e.logger.Info("quality check finished: %d agent(s), quality %.2f", len(opinions), result.Quality)
	return result, nil
}

func (e *Engine) aggregateQuality(ctx context.Context, work marketplace.WorkArtifact, job marketplace.JobSpec, feedback []qualityFeedback) ([]string, []string, error) {
	raw, err := e.call(ctx, FlowQuality, aggregatorName, withWork(qualityAggregatorPrompt(job, feedback), work))
	if err != nil {
		return nil, nil, aggregationFailure(FlowQuality, err)
	}

	obj := ExtractObject(raw)
	positive, hasPositive := stringList(obj, "aggregatedPositiveFeedback")
	negative, hasNegative := stringList(obj, "aggregatedNegativeFeedback")
	if !hasPositive && !hasNegative {
		return nil, nil, aggregationFailure(FlowQuality,
			fmt.Errorf("%w: no aggregated feedback lists", ErrUnparsableOpinion))
	}
	if positive == nil {
		positive = []string{}
	}
	if negative == nil {
		negative = []string{}
	}
	return positive, negative, nil
}
