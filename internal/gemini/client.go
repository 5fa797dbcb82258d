// Package gemini is a REST client for the Google Generative Language API.
// It covers text and multimodal generation, SSE streaming, and Files API
// uploads. Requests are rate limited and retried on transient failures.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"omnichat/internal/logging"

	"github.com/google/uuid"
)

// Config holds client settings.
type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	Timeout         time.Duration
	MaxOutputTokens int
	Temperature     float64
}

// DefaultConfig returns sensible defaults for the given key.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:          apiKey,
		BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
		Model:           "gemini-2.0-flash-exp",
		Timeout:         2 * time.Minute,
		MaxOutputTokens: 8192,
		Temperature:     0.7,
	}
}

// Client talks to the Gemini REST API.
type Client struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	temperature     float64
	httpClient      *http.Client
	maxRetries      int

	mu          sync.Mutex
	lastRequest time.Time
	lastUsage   Usage
}

// New creates a client with the given config.
func New(cfg Config) *Client {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.0-flash-exp"
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	maxTokens := cfg.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	return &Client{
		apiKey:          cfg.APIKey,
		baseURL:         baseURL,
		model:           model,
		maxOutputTokens: maxTokens,
		temperature:     cfg.Temperature,
		httpClient:      &http.Client{Timeout: timeout},
		maxRetries:      3,
	}
}

// SetModel changes the model used for subsequent calls.
func (c *Client) SetModel(model string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
}

// Model returns the current model.
func (c *Client) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// LastUsage returns token counts from the most recent successful call.
func (c *Client) LastUsage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsage
}

// throttle enforces a minimum gap between requests.
func (c *Client) throttle() {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

// withDeadline applies the client timeout when the context has none.
func (c *Client) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, has := ctx.Deadline(); !has {
		return context.WithTimeout(ctx, c.httpClient.Timeout)
	}
	return ctx, func() {}
}

// Complete sends a single prompt and returns the model's text reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.CompleteChat(ctx, systemPrompt, []Content{TextContent(RoleUser, userPrompt)})
}

// CompleteChat sends a full conversation history, possibly multimodal,
// and returns the model's reply text.
func (c *Client) CompleteChat(ctx context.Context, systemPrompt string, history []Content) (string, error) {
	ctx, cancel := c.withDeadline(ctx)
	defer cancel()

	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}
	if len(history) == 0 {
		return "", fmt.Errorf("empty history")
	}

	requestID := uuid.NewString()[:8]
	rlog := logging.WithRequestID(logging.CategoryGemini, requestID)
	rlog.Debug("CompleteChat: model=%s turns=%d", c.model, len(history))
	start := time.Now()

	c.throttle()

	reqBody := Request{
		Contents:         history,
		GenerationConfig: GenerationConfig{Temperature: c.temperature, MaxOutputTokens: c.maxOutputTokens},
	}
	if strings.TrimSpace(systemPrompt) != "" {
		reqBody.SystemInstruction = &Content{Parts: []Part{{Text: systemPrompt}}}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			apiErr := parseAPIError(resp.StatusCode, body)
			if apiErr.Retryable() {
				lastErr = apiErr
				rlog.Warn("retryable failure (attempt %d): %v", attempt+1, apiErr)
				continue
			}
			rlog.Error("request failed: %v", apiErr)
			logging.Usage().LLMCall(requestID, c.model, time.Since(start), 0, apiErr)
			return "", apiErr
		}

		var out Response
		if err := json.Unmarshal(body, &out); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}
		if out.Error != nil {
			return "", &APIError{StatusCode: out.Error.Code, Status: out.Error.Status, Message: out.Error.Message}
		}
		if len(out.Candidates) == 0 {
			return "", fmt.Errorf("no candidates in response")
		}

		c.mu.Lock()
		c.lastUsage = out.UsageMetadata
		c.mu.Unlock()

		rlog.Info("completed in %v (tokens=%d)", time.Since(start), out.UsageMetadata.TotalTokenCount)
		logging.Usage().LLMCall(requestID, c.model, time.Since(start), out.UsageMetadata.TotalTokenCount, nil)
		return out.Text(), nil
	}

	logging.GeminiError("CompleteChat: max retries exceeded: %v", lastErr)
	logging.Usage().LLMCall(requestID, c.model, time.Since(start), 0, lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// parseAPIError extracts the error payload from a non-200 body.
func parseAPIError(status int, body []byte) *APIError {
	var wrapper struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error.Message != "" {
		return &APIError{StatusCode: status, Status: wrapper.Error.Status, Message: wrapper.Error.Message}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &APIError{StatusCode: status, Message: msg}
}
