package ports

import "context"

// InlineData is a binary attachment sent inline with a prompt.
type InlineData struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// CompletionRequest is a single-turn prompt, optionally carrying images.
type CompletionRequest struct {
	Prompt   string         `json:"prompt"`
	Images   []InlineData   `json:"images,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CompletionResponse is the model's text answer.
type CompletionResponse struct {
	Content    string     `json:"content"`
	Model      string     `json:"model"`
	StopReason string     `json:"stop_reason,omitempty"`
	Usage      TokenUsage `json:"usage"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GeneratedImage is the first image part produced by an image-capable model.
type GeneratedImage struct {
	MimeType string
	Data     []byte
	Caption  string
}

// GenerativeClient produces text completions. Implementations must honour ctx
// cancellation and return an error rather than an empty Content.
type GenerativeClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Model() string
}

// ImageGenerator produces images from a text prompt.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error)
}
