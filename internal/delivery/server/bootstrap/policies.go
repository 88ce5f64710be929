package bootstrap

import (
	"fmt"
	"strings"

	"repverse/internal/domain/evaluation"
	"repverse/internal/shared/config"
)

// policySetFromConfig builds the evaluator roster. An empty list keeps the
// built-in roster. Otherwise the roster is exactly the configured list, in
// order, with built-in wording filled in for known persona names.
func policySetFromConfig(configured []config.PolicyConfig) (evaluation.PolicySet, error) {
	if len(configured) == 0 {
		return evaluation.DefaultPolicySet(), nil
	}
	builtins := make(map[string]evaluation.Policy)
	for _, policy := range evaluation.DefaultPolicies() {
		builtins[policy.Name] = policy
	}

	policies := make([]evaluation.Policy, 0, len(configured))
	for i, entry := range configured {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return evaluation.PolicySet{}, fmt.Errorf("evaluation.policies[%d]: name is required", i)
		}
		policy, known := builtins[name]
		policy.Name = name
		policy.Enabled = true
		if entry.Enabled != nil {
			policy.Enabled = *entry.Enabled
		}
		override(&policy.QualityPersona, entry.QualityPersona)
		override(&policy.PositiveHint, entry.PositiveHint)
		override(&policy.NegativeHint, entry.NegativeHint)
		override(&policy.Guidance, entry.Guidance)
		override(&policy.ReviewPersona, entry.ReviewPrompt)
		if !known {
			if policy.PositiveHint == "" {
				policy.PositiveHint = "list of positive feedbacks on the work sample"
			}
			if policy.NegativeHint == "" {
				policy.NegativeHint = "list of negative feedbacks on the work sample"
			}
		}
		policies = append(policies, policy)
	}
	return evaluation.NewPolicySet(policies)
}

func override(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}
