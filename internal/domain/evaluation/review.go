package evaluation

import (
	"context"
	"fmt"
	"strings"

	"repverse/internal/domain/marketplace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ParseReviewOpinion decodes raw review-agent output. All three scores are
// required; a missing criticalConsideration list becomes empty.
func ParseReviewOpinion(raw string) (marketplace.AgentReviewResponse, error) {
	obj := ExtractObject(raw)
	reviewScore, err := requireScore(obj, "reviewScore")
	if err != nil {
		return marketplace.AgentReviewResponse{}, err
	}
	fixable, err := requireScore(obj, "fixableScore")
	if err != nil {
		return marketplace.AgentReviewResponse{}, err
	}
	reassign, err := requireScore(obj, "reassignScore")
	if err != nil {
		return marketplace.AgentReviewResponse{}, err
	}
	return marketplace.AgentReviewResponse{
		ReviewScore:           reviewScore,
		CriticalConsideration: optionalList(obj, "criticalConsideration"),
		FixableScore:          fixable,
		ReassignScore:         reassign,
	}, nil
}

// Review arbitrates an employer's rejection of work. Every active policy
// judges the reason against the job, the prior quality verdict and the work;
// the three scores are averaged and the considerations consolidated.
func (e *Engine) Review(ctx context.Context, work marketplace.WorkArtifact, job marketplace.JobSpec, prior marketplace.QualityCheckResult, rejectionReason string) (marketplace.AgentReviewResponse, error) {
	if err := work.Validate(); err != nil {
		return marketplace.AgentReviewResponse{}, err
	}
	if strings.TrimSpace(rejectionReason) == "" {
		return marketplace.AgentReviewResponse{}, fmt.Errorf("rejection reason is empty")
	}

	ctx, span := e.tracer.Start(ctx, "evaluation.Review")
	defer span.End()

	shared := reviewContext(job, prior, rejectionReason)
	policies := e.policies.Active()
	reviews, err := runAgents(ctx, e, policies, func(ctx context.Context, policy Policy) (agentReview, error) {
		raw, err := e.call(ctx, FlowReview, policy.Name, withWork(reviewAgentPrompt(policy, shared), work))
		if err != nil {
			return agentReview{}, agentFailure(FlowReview, policy.Name, err)
		}
		opinion, err := ParseReviewOpinion(raw)
		if err != nil {
			e.logger.Warn("review agent %s returned unusable output: %v", policy.Name, err)
			return agentReview{}, agentFailure(FlowReview, policy.Name, err)
		}
		e.logger.Debug("review agent %s scored review=%.2f fixable=%.2f reassign=%.2f",
			policy.Name, opinion.ReviewScore, opinion.FixableScore, opinion.ReassignScore)
		return agentReview{Agent: policy.Name, Response: opinion}, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return marketplace.AgentReviewResponse{}, err
	}

	considerations, err := e.aggregateReview(ctx, work, shared, reviews)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return marketplace.AgentReviewResponse{}, err
	}

	reviewScores := make([]float64, len(reviews))
	fixableScores := make([]float64, len(reviews))
	reassignScores := make([]float64, len(reviews))
	for i, r := range reviews {
		reviewScores[i] = r.Response.ReviewScore
		fixableScores[i] = r.Response.FixableScore
		reassignScores[i] = r.Response.ReassignScore
	}

	result := marketplace.AgentReviewResponse{
		ReviewScore:           mean(reviewScores),
		CriticalConsideration: considerations,
		FixableScore:          mean(fixableScores),
		ReassignScore:         mean(reassignScores),
	}
	span.SetAttributes(
		attribute.Int("evaluation.agents", len(reviews)),
		attribute.Float64("evaluation.review_score", result.ReviewScore),
	)
	e.logger.Info("review finished: %d agent(s), review %.2f fixable %.2f reassign %.2f",
		len(reviews), result.ReviewScore, result.FixableScore, result.ReassignScore)
	return result, nil
}

func (e *Engine) aggregateReview(ctx context.Context, work marketplace.WorkArtifact, shared string, reviews []agentReview) ([]string, error) {
	raw, err := e.call(ctx, FlowReview, aggregatorName, withWork(reviewAggregatorPrompt(shared, reviews), work))
	if err != nil {
		return nil, aggregationFailure(FlowReview, err)
	}
	considerations, ok := stringList(ExtractObject(raw), "aggregatedCriticalConsideration")
	if !ok {
		return nil, aggregationFailure(FlowReview,
			fmt.Errorf("%w: no aggregated critical considerations", ErrUnparsableOpinion))
	}
	return considerations, nil
}
