package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"repverse/internal/domain/ports"
	"repverse/internal/infra/httpclient"
	reperrors "repverse/internal/shared/errors"
	jsonx "repverse/internal/shared/json"
	"repverse/internal/shared/logging"
	id "repverse/internal/shared/utils/id"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultTimeout       = 120 * time.Second
	maxResponseBytes     = 32 << 20
)

// Config configures an HTTP model client.
type Config struct {
	APIKey     string
	BaseURL    string
	ImageModel string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GeminiClient speaks the Gemini generateContent REST API.
type GeminiClient struct {
	model      string
	imageModel string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

var (
	_ ports.GenerativeClient = (*GeminiClient)(nil)
	_ ports.ImageGenerator   = (*GeminiClient)(nil)
)

// NewGeminiClient builds a client for model. The API key is required.
func NewGeminiClient(model string, config Config) (*GeminiClient, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("gemini client requires an api key")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("gemini client requires a model")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	logger := logging.NewLLMLogger("gemini")
	client := config.HTTPClient
	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = httpclient.New(timeout, logger)
	}
	return &GeminiClient{
		model:      model,
		imageModel: config.ImageModel,
		apiKey:     config.APIKey,
		baseURL:    baseURL,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the text model name.
func (c *GeminiClient) Model() string {
	return c.model
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion   string `json:"modelVersion"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Complete sends one user turn with optional inline images.
func (c *GeminiClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	prefix := c.logPrefix(ctx, req.Metadata)

	parts := []geminiPart{{Text: req.Prompt}}
	for _, img := range req.Images {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: img.MimeType,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	payload := geminiRequest{Contents: []geminiContent{{Role: "user", Parts: parts}}}

	resp, err := c.generate(ctx, prefix, c.model, payload)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	stopReason := ""
	if len(resp.Candidates) > 0 {
		stopReason = resp.Candidates[0].FinishReason
		for _, part := range resp.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		reason := stopReason
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = resp.PromptFeedback.BlockReason
		}
		c.logger.Warn("%sempty completion (reason=%s)", prefix, reason)
		return nil, reperrors.NewTransientError(errors.New("No text in the response"), "The model returned no text. Please retry.")
	}

	model := resp.ModelVersion
	if model == "" {
		model = c.model
	}
	result := &ports.CompletionResponse{
		Content:    text.String(),
		Model:      model,
		StopReason: stopReason,
		Usage: ports.TokenUsage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}
	c.logger.Debug("%scompletion ok: %d chars, %d tokens", prefix, len(result.Content), result.Usage.TotalTokens)
	return result, nil
}

// GenerateImage asks the image model for a picture and returns the first
// inline image part.
func (c *GeminiClient) GenerateImage(ctx context.Context, prompt string) (*ports.GeneratedImage, error) {
	if c.imageModel == "" {
		return nil, reperrors.NewPermanentError(errors.New("image model not configured"), "Image generation is not configured.")
	}
	prefix := c.logPrefix(ctx, nil)
	payload := geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	}
	resp, err := c.generate(ctx, prefix, c.imageModel, payload)
	if err != nil {
		return nil, err
	}

	var caption strings.Builder
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil {
				caption.WriteString(part.Text)
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("decode image: %w", err)
			}
			return &ports.GeneratedImage{
				MimeType: part.InlineData.MimeType,
				Data:     data,
				Caption:  strings.TrimSpace(caption.String()),
			}, nil
		}
	}
	return nil, reperrors.NewTransientError(errors.New("No image in the response"), "The model returned no image. Please retry.")
}

func (c *GeminiClient) generate(ctx context.Context, prefix, model string, payload geminiRequest) (*geminiResponse, error) {
	body, err := jsonx.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	c.logger.Debug("%sPOST %s (%d bytes)", prefix, endpoint, len(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn("%srequest failed: %v", prefix, err)
		return nil, wrapRequestError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := httpclient.ReadAllWithLimit(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		mapped := mapHTTPError(resp.StatusCode, respBody, resp.Header)
		c.logger.Warn("%smodel %s rejected request: status=%d error=%v", prefix, model, resp.StatusCode, mapped)
		return nil, mapped
	}

	var decoded geminiResponse
	if err := jsonx.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &decoded, nil
}

func (c *GeminiClient) logPrefix(ctx context.Context, metadata map[string]any) string {
	logID := id.LogIDFromContext(ctx)
	requestID := id.NewRequestIDWithLogID(logID)
	prefix := fmt.Sprintf("[req:%s] ", requestID)
	if flow, ok := metadata["flow"].(string); ok {
		prefix += fmt.Sprintf("[%s", flow)
		if agent, ok := metadata["agent"].(string); ok {
			prefix += "/" + agent
		}
		prefix += "] "
	}
	if logID != "" {
		prefix = fmt.Sprintf("[log_id=%s] %s", logID, prefix)
	}
	return prefix
}
