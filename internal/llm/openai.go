package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// OpenAIClient implements Client against any OpenAI-compatible
// chat-completions endpoint.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// OpenAIConfig holds configuration for the OpenAI-compatible client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultOpenAIConfig returns sensible defaults.
func DefaultOpenAIConfig(apiKey string) OpenAIConfig {
	return OpenAIConfig{
		APIKey:  apiKey,
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
		Timeout: 60 * time.Second,
	}
}

// NewOpenAIClient creates a client from config, filling zero values with
// defaults.
func NewOpenAIClient(config OpenAIConfig) *OpenAIClient {
	def := DefaultOpenAIConfig(config.APIKey)
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Model == "" {
		config.Model = def.Model
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &OpenAIClient{
		apiKey:  config.APIKey,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		model:   config.Model,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Model returns the configured model identifier.
func (c *OpenAIClient) Model() string { return c.model }

// Chat sends a single system+user exchange and returns the completion text.
func (c *OpenAIClient) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.apiKey == "" {
		return "", callErr(KindBadResponse, "API key not configured")
	}

	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   4096,
		Temperature: 0.1, // low temperature for structured output
	})
	if err != nil {
		return "", callErr(KindBadResponse, "marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", callErr(KindBadResponse, "create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", callErr(KindConnection, "read response: %v", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", callErr(KindRateLimit, "rate limit exceeded (429)")
	}
	if resp.StatusCode >= 500 {
		return "", callErr(KindConnection, "server error %d: %s", resp.StatusCode, truncateForError(data))
	}
	if resp.StatusCode != http.StatusOK {
		return "", callErr(KindBadResponse, "status %d: %s", resp.StatusCode, truncateForError(data))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", callErr(KindBadResponse, "parse response: %v", err)
	}
	if parsed.Error != nil {
		return "", callErr(KindBadResponse, "API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", callErr(KindBadResponse, "no completion returned")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// classifyTransportError maps transport failures onto the error taxonomy.
func classifyTransportError(err error) *CallError {
	if errors.Is(err, context.DeadlineExceeded) {
		return callErr(KindTimeout, "request timed out: %v", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return callErr(KindTimeout, "request timed out: %v", err)
	}
	if errors.Is(err, context.Canceled) {
		return &CallError{Kind: KindTimeout, Err: err}
	}
	return callErr(KindConnection, "request failed: %v", err)
}

func truncateForError(b []byte) string {
	const max = 300
	s := string(b)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

var _ Client = (*OpenAIClient)(nil)
