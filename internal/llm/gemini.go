package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiClient implements Client on the Google GenAI SDK.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// GeminiConfig holds configuration for the Gemini client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, callErr(KindBadResponse, "Gemini API key is required")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: config.APIKey})
	if err != nil {
		return nil, callErr(KindConnection, "create GenAI client: %v", err)
	}

	return &GeminiClient{client: client, model: config.Model, timeout: config.Timeout}, nil
}

// Model returns the configured model identifier.
func (c *GeminiClient) Model() string { return c.model }

// Chat sends a single system+user exchange and returns the completion text.
func (c *GeminiClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var cfg *genai.GenerateContentConfig
	if systemPrompt != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		}
	}

	contents := []*genai.Content{genai.NewContentFromText(userPrompt, genai.RoleUser)}

	resp, err := c.client.Models.GenerateContent(callCtx, c.model, contents, cfg)
	if err != nil {
		return "", classifyGenAIError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", callErr(KindBadResponse, "no completion returned")
	}
	return text, nil
}

// classifyGenAIError maps SDK failures onto the error taxonomy.
func classifyGenAIError(err error) *CallError {
	if errors.Is(err, context.DeadlineExceeded) {
		return callErr(KindTimeout, "request timed out: %v", err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return callErr(KindRateLimit, "rate limit exceeded: %s", apiErr.Message)
		case apiErr.Code >= 500:
			return callErr(KindConnection, "server error %d: %s", apiErr.Code, apiErr.Message)
		default:
			return callErr(KindBadResponse, "API error %d: %s", apiErr.Code, apiErr.Message)
		}
	}

	msg := err.Error()
	if strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "429") {
		return callErr(KindRateLimit, "rate limit exceeded: %v", err)
	}
	return callErr(KindConnection, "request failed: %v", err)
}

var _ Client = (*GeminiClient)(nil)
