package evaluation

import (
	"fmt"
	"strings"

	"repverse/internal/domain/marketplace"
	"repverse/internal/domain/ports"
	jsonx "repverse/internal/shared/json"
)

const jsonOnlyInstruction = "The response should be in JSON format, there should be no other text before or after the JSON in the response."

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, err := jsonx.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func jsonIndent(v any) string {
	data, err := jsonx.MarshalIndent(v, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(data)
}

func jobContext(job marketplace.JobSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job Title: %s\n", job.Title)
	fmt.Fprintf(&b, "Job Description: %s\n", job.Description)
	fmt.Fprintf(&b, "Requirements: %s\n", jsonList(job.Requirements))
	fmt.Fprintf(&b, "Instructions: %s\n", jsonList(job.Instructions))
	return b.String()
}

func qualityAgentPrompt(policy Policy, job marketplace.JobSpec) string {
	positive := policy.PositiveHint
	if positive == "" {
		positive = "list of positive feedbacks on the work sample"
	}
	negative := policy.NegativeHint
	if negative == "" {
		negative = "list of negative feedbacks on the work sample"
	}

	var b strings.Builder
	b.WriteString(policy.QualityPersona)
	b.WriteString("\n\nYour response should be in the following format:\n{\n")
	b.WriteString("    \"quality\": <quality of the work sample on a scale of 1 to 10>,\n")
	fmt.Fprintf(&b, "    \"positiveFeedback\": [\n        <%s>\n    ],\n", positive)
	fmt.Fprintf(&b, "    \"negativeFeedback\": [\n        <%s>\n    ]\n}\n\n", negative)
	if policy.Guidance != "" {
		b.WriteString(policy.Guidance)
		b.WriteString(" ")
	}
	b.WriteString(jsonOnlyInstruction)
	b.WriteString("\n\n")
	b.WriteString(jobContext(job))
	return b.String()
}

type qualityFeedback struct {
	PositiveFeedback []string `json:"positiveFeedback"`
	NegativeFeedback []string `json:"negativeFeedback"`
}

func qualityAggregatorPrompt(job marketplace.JobSpec, feedback []qualityFeedback) string {
	var b strings.Builder
	b.WriteString(`You are a master quality assurance aggregator. Your role is to synthesize multiple QA agent evaluations into a single, objective summary.

You are given:
- A job title
- A job description
- A list of requirements and instructions
- A set of positive and negative feedbacks provided by multiple QA agents (who have reviewed the same work sample)

Your task:
- Carefully analyze whether the feedback aligns with the stated job requirements and instructions.
- Identify which points of feedback are valid, consistent, and supported by the job details.
- Remove any redundant, vague, or biased points.
- Do not generate your own feedback or speculate about the work sample. Only judge the **validity and usefulness** of the provided feedback.
- Be neutral, precise, and fact-based.

Return a single JSON object in the following format:
{
  "aggregatedPositiveFeedback": [
    <consolidated list of valid, non-redundant positive feedback points>
  ],
  "aggregatedNegativeFeedback": [
    <consolidated list of valid, non-redundant negative feedback points>
  ]
}

`)
	b.WriteString(jobContext(job))
	fmt.Fprintf(&b, "FeedbackFromAgents: %s\n", jsonIndent(feedback))
	return b.String()
}

// reviewContext is shared by every review agent and the review aggregator.
func reviewContext(job marketplace.JobSpec, prior marketplace.QualityCheckResult, reason string) string {
	priorJSON, err := jsonx.Marshal(prior)
	if err != nil {
		priorJSON = []byte("{}")
	}
	var b strings.Builder
	b.WriteString(jobContext(job))
	fmt.Fprintf(&b, "\nAggregated QA Result: %s\n", priorJSON)
	fmt.Fprintf(&b, "Job Poster's Rejection Reason: %q", reason)
	return b.String()
}

func reviewAgentPrompt(policy Policy, context string) string {
	return policy.ReviewPersona + "\n\n" + context + `

Return a JSON object **only** in the following format with no extra text:
{
  "reviewScore": <number 1-10 indicating how valid the rejection reason is>,
  "criticalConsideration": [
    <list of concise bullet points examining the reason in light of the work and QA feedback>
  ],
  "fixableScore": <number 1-10 indicating likelihood the current worker can fix the issues>,
  "reassignScore": <number 1-10 indicating likelihood the job should be reassigned>
}`
}

type agentReview struct {
	Agent    string                          `json:"agent"`
	Response marketplace.AgentReviewResponse `json:"response"`
}

func reviewAggregatorPrompt(context string, reviews []agentReview) string {
	return `You are a master review aggregator. Your task is to analyse multiple agent evaluations of whether the job poster's rejection reason is justified. Do **not** add new opinions, only consolidate.

` + context + `

Here are the agent evaluations:
` + jsonIndent(reviews) + `

Return a single JSON object in this exact format with **no** extra text:
{
  "aggregatedCriticalConsideration": [
    <consolidated, non-redundant list of critical considerations>
  ]
}`
}

// withWork attaches the artifact: images travel inline, text is appended as
// a trailing "Work Sample:" section.
func withWork(prompt string, work marketplace.WorkArtifact) ports.CompletionRequest {
	if work.IsImage() {
		return ports.CompletionRequest{
			Prompt: prompt,
			Images: []ports.InlineData{{MimeType: work.MimeType, Data: work.Data}},
		}
	}
	return ports.CompletionRequest{Prompt: prompt + "\nWork Sample: " + work.Text}
}
