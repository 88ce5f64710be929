// Package jobs turns free-form job postings into structured specs and
// renders gig artwork.
package jobs

import (
	"context"
	"fmt"
	"strings"

	"repverse/internal/app"
	"repverse/internal/domain/evaluation"
	"repverse/internal/domain/marketplace"
	"repverse/internal/domain/ports"
	"repverse/internal/shared/logging"
)

// ErrIncompleteJob is returned when the model output lacks a title.
var ErrIncompleteJob = app.ValidationError("Could not extract a job title from the description")

// Service wraps the text and image models for job tooling.
type Service struct {
	client ports.GenerativeClient
	images ports.ImageGenerator
	logger logging.Logger
}

// NewService builds a job tooling service. images may be nil, in which case
// GenerateGigImage reports the feature as unavailable.
func NewService(client ports.GenerativeClient, images ports.ImageGenerator, logger logging.Logger) *Service {
	return &Service{client: client, images: images, logger: logging.OrNop(logger)}
}

// ExtractJobDetails asks the model to split a posting into title,
// description, requirements and instructions.
func (s *Service) ExtractJobDetails(ctx context.Context, blurb string) (marketplace.JobSpec, error) {
	blurb = strings.TrimSpace(blurb)
	if blurb == "" {
		return marketplace.JobSpec{}, app.ValidationError("Job description is required")
	}

	resp, err := s.client.Complete(ctx, ports.CompletionRequest{
		Prompt:   extractPrompt(blurb),
		Metadata: map[string]any{"flow": "extract_job"},
	})
	if err != nil {
		return marketplace.JobSpec{}, fmt.Errorf("extract job details: %w", err)
	}

	obj := evaluation.ExtractObject(resp.Content)
	spec := marketplace.JobSpec{
		Title:        stringField(obj, "title"),
		Description:  stringField(obj, "description"),
		Requirements: listField(obj, "requirements"),
		Instructions: listField(obj, "instructions"),
	}
	if spec.Title == "" {
		logging.FromContext(ctx, s.logger).Warn("job extraction returned no title: %.200s", resp.Content)
		return marketplace.JobSpec{}, ErrIncompleteJob
	}
	return spec, nil
}

// GenerateGigImage renders pixel-art artwork for a gig.
func (s *Service) GenerateGigImage(ctx context.Context, title, description string) (*ports.GeneratedImage, error) {
	if s.images == nil {
		return nil, app.UnavailableError("Image generation is not configured")
	}
	if strings.TrimSpace(title) == "" && strings.TrimSpace(description) == "" {
		return nil, app.ValidationError("Title or description is required")
	}
	img, err := s.images.GenerateImage(ctx, gigImagePrompt(title, description))
	if err != nil {
		return nil, fmt.Errorf("generate gig image: %w", err)
	}
	return img, nil
}

func stringField(obj map[string]any, key string) string {
	if s, ok := obj[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func listField(obj map[string]any, key string) []string {
	out := []string{}
	switch v := obj[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}
