package evaluation

import (
	"fmt"
	"strings"
)

// Policy is one evaluator persona. Personas differ only in prompt framing;
// every persona answers in the same JSON shape.
type Policy struct {
	Name    string `yaml:"name" json:"name"`
	Enabled bool   `yaml:"enabled" json:"enabled"`

	// Quality-check framing.
	QualityPersona string `yaml:"quality_persona" json:"quality_persona"`
	PositiveHint   string `yaml:"positive_hint" json:"positive_hint"`
	NegativeHint   string `yaml:"negative_hint" json:"negative_hint"`
	Guidance       string `yaml:"guidance" json:"guidance"`

	// Review framing.
	ReviewPersona string `yaml:"review_persona" json:"review_persona"`
}

const (
	PolicyVeryLenient = "veryLenient"
	PolicyLenient     = "lenient"
	PolicyNeutral     = "neutral"
	PolicyStrict      = "strict"
	PolicyVeryStrict  = "veryStrict"
)

// DefaultPolicies returns the built-in persona roster. Only neutral is enabled.
func DefaultPolicies() []Policy {
	return []Policy{
		{
			Name:           PolicyVeryLenient,
			QualityPersona: "You are a helpful quality assurance assistant with a generous perspective. You are given a job description and a work sample. Look for the ways the sample fulfills the intent of the job, even loosely.",
			PositiveHint:   "list of positive feedbacks on the work sample",
			NegativeHint:   "list of gentle, constructive areas where the work might be improved slightly",
			Guidance:       "Focus on encouragement and assume good intent in the work. Give the benefit of the doubt wherever reasonable.",
			ReviewPersona:  "You are an empathetic review agent who generally gives workers the benefit of the doubt. You must decide whether the job poster's rejection reason is valid or over-critical. Lean towards seeing the work as acceptable and fixable.",
		},
		{
			Name:           PolicyLenient,
			QualityPersona: "You are a quality assurance reviewer with a supportive mindset. You are given a job description and a work sample. Evaluate how well the sample meets the requirements, but stay flexible and weigh overall intent and effort.",
			PositiveHint:   "list of positive feedbacks on the work sample",
			NegativeHint:   "list of constructive feedbacks for possible improvements",
			Guidance:       "Be generally generous with your rating, unless the work clearly misses the mark.",
			ReviewPersona:  "You are a supportive review agent. Assess the validity of the rejection reason while remaining generous, but be prepared to acknowledge valid points.",
		},
		{
			Name:           PolicyNeutral,
			Enabled:        true,
			QualityPersona: "You are a quality assurance expert. You are given a job description and a work sample. You need to check if the work sample meets the job requirements.",
			PositiveHint:   "list of positive feedbacks on the work sample",
			NegativeHint:   "list of negative feedbacks on the work sample",
			ReviewPersona:  "You are a neutral review agent. Objectively determine whether the rejection reason is justified, without bias towards either the worker or the poster.",
		},
		{
			Name:           PolicyStrict,
			QualityPersona: "You are a meticulous quality assurance evaluator. You are given a job description and a work sample. Strictly assess whether the sample adheres to the requirements and instructions, with minimal tolerance for deviation.",
			PositiveHint:   "list of precise, well-justified strengths of the work sample",
			NegativeHint:   "list of specific, clear shortcomings in the work sample",
			Guidance:       "Be critical. Only give high scores if the sample fully and exactly meets the stated requirements.",
			ReviewPersona:  "You are a strict review agent. Scrutinise the work and the rejection reason closely, tending to side with the poster when there is reasonable doubt.",
		},
		{
			Name:           PolicyVeryStrict,
			QualityPersona: "You are a no-compromise quality assurance inspector. You are given a job description and a work sample. Rigorously evaluate the sample for full compliance with all listed requirements and instructions. Note any deviation, however minor.",
			PositiveHint:   "list of strengths that meet or exceed expectations precisely",
			NegativeHint:   "list of all deficiencies, inaccuracies, or deviations from the job's stated requirements",
			Guidance:       "Assume the highest standards. Be detailed and unforgiving in your assessment. Only give a 10 if the work is flawless.",
			ReviewPersona:  "You are a very strict review agent who assumes high standards must be met. Unless the evidence clearly shows the work satisfies all requirements, the rejection is likely valid.",
		},
	}
}

// PolicySet is an ordered, validated persona roster.
type PolicySet struct {
	policies []Policy
}

// NewPolicySet validates the roster. Names must be unique and at least one
// policy must be enabled with both quality and review framing.
func NewPolicySet(policies []Policy) (PolicySet, error) {
	seen := make(map[string]struct{}, len(policies))
	enabled := 0
	out := make([]Policy, 0, len(policies))
	for i, policy := range policies {
		policy.Name = strings.TrimSpace(policy.Name)
		if policy.Name == "" {
			return PolicySet{}, fmt.Errorf("policy #%d has no name", i)
		}
		if _, dup := seen[policy.Name]; dup {
			return PolicySet{}, fmt.Errorf("duplicate policy %q", policy.Name)
		}
		seen[policy.Name] = struct{}{}
		if policy.Enabled {
			if strings.TrimSpace(policy.QualityPersona) == "" {
				return PolicySet{}, fmt.Errorf("policy %q has no quality persona", policy.Name)
			}
			if strings.TrimSpace(policy.ReviewPersona) == "" {
				return PolicySet{}, fmt.Errorf("policy %q has no review persona", policy.Name)
			}
			enabled++
		}
		out = append(out, policy)
	}
	if enabled == 0 {
		return PolicySet{}, fmt.Errorf("no evaluator policy is enabled")
	}
	return PolicySet{policies: out}, nil
}

// DefaultPolicySet is the built-in roster.
func DefaultPolicySet() PolicySet {
	set, err := NewPolicySet(DefaultPolicies())
	if err != nil {
		panic(err)
	}
	return set
}

// Active returns the enabled policies in configured order.
func (s PolicySet) Active() []Policy {
	active := make([]Policy, 0, len(s.policies))
	for _, policy := range s.policies {
		if policy.Enabled {
			active = append(active, policy)
		}
	}
	return active
}

// All returns every configured policy, enabled or not.
func (s PolicySet) All() []Policy {
	return append([]Policy(nil), s.policies...)
}

// Lookup finds a policy by name.
func (s PolicySet) Lookup(name string) (Policy, bool) {
	for _, policy := range s.policies {
		if policy.Name == name {
			return policy, true
		}
	}
	return Policy{}, false
}
