package llm

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strings"

	"repverse/internal/domain/ports"
	jsonx "repverse/internal/shared/json"
)

const mockModel = "mock"

// shortWorkChars: text samples shorter than this score below the pass mark.
const shortWorkChars = 40

// mockClient answers with fixed, well-formed JSON so the pipeline can run
// without credentials. The answer shape is chosen from the prompt.
type mockClient struct{}

// NewMockClient returns the offline model.
func NewMockClient() Client {
	return mockClient{}
}

func (mockClient) Model() string { return mockModel }

func (mockClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var content string
	switch prompt := req.Prompt; {
	case strings.Contains(prompt, "aggregatedPositiveFeedback"):
		content = `{"aggregatedPositiveFeedback":["The submission addresses the job description."],"aggregatedNegativeFeedback":["Some requirements could be covered in more depth."]}`
	case strings.Contains(prompt, "aggregatedCriticalConsideration"):
		content = `{"aggregatedCriticalConsideration":["The rejection reason points at a concrete gap that the freelancer can address."]}`
	case strings.Contains(prompt, `"reviewScore"`):
		content = `{"reviewScore":6,"criticalConsideration":["The reason references a stated requirement."],"fixableScore":7,"reassignScore":3}`
	case strings.Contains(prompt, "extracts job details from a blurb"):
		content = mockJobDetails(prompt)
	default:
		quality := 8
		if len(req.Images) == 0 && len(strings.TrimSpace(workSample(prompt))) < shortWorkChars {
			quality = 4
		}
		content = fmt.Sprintf(`{"quality":%d,"positiveFeedback":["The work is on topic."],"negativeFeedback":["Polish could be improved."]}`, quality)
	}
	return &ports.CompletionResponse{
		Content:    content,
		Model:      mockModel,
		StopReason: "STOP",
		Usage:      ports.TokenUsage{PromptTokens: len(req.Prompt) / 4, CompletionTokens: len(content) / 4, TotalTokens: (len(req.Prompt) + len(content)) / 4},
	}, nil
}

// GenerateImage draws a 16x16 block pattern seeded by the prompt.
func (mockClient) GenerateImage(ctx context.Context, prompt string) (*ports.GeneratedImage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(prompt))
	seed := h.Sum64()

	const size, block = 64, 4
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			cell := uint64((y/block)*(size/block) + x/block)
			v := (seed >> (cell % 48)) ^ (cell * 2654435761)
			img.Set(x, y, color.RGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode mock image: %w", err)
	}
	return &ports.GeneratedImage{MimeType: "image/png", Data: buf.Bytes(), Caption: "mock pixel art"}, nil
}

func workSample(prompt string) string {
	const marker = "Work Sample: "
	idx := strings.LastIndex(prompt, marker)
	if idx < 0 {
		return ""
	}
	return prompt[idx+len(marker):]
}

func mockJobDetails(prompt string) string {
	blurb := prompt
	const marker = "The blurb is: "
	if idx := strings.Index(prompt, marker); idx >= 0 {
		blurb = prompt[idx+len(marker):]
		if end := strings.Index(blurb, "\n"); end >= 0 {
			blurb = blurb[:end]
		}
	}
	blurb = strings.TrimSpace(blurb)
	title := blurb
	if len(title) > 60 {
		title = title[:60]
	}
	out, err := jsonx.MarshalString(map[string]any{
		"title":        title,
		"description":  blurb,
		"requirements": []string{},
		"instructions": []string{},
	})
	if err != nil {
		return "{}"
	}
	return out
}
