package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"omnichat/internal/logging"
)

// StreamChat sends a conversation and streams the reply over SSE.
// Text chunks arrive on the first channel; a terminal error, if any,
// on the second. Both channels are closed when the stream ends.
func (c *Client) StreamChat(ctx context.Context, systemPrompt string, history []Content) (<-chan string, <-chan error) {
	contentChan := make(chan string, 100)
	errorChan := make(chan error, 1)

	go func() {
		defer close(contentChan)
		defer close(errorChan)

		ctx, cancel := c.withDeadline(ctx)
		defer cancel()

		if c.apiKey == "" {
			errorChan <- fmt.Errorf("API key not configured")
			return
		}
		if len(history) == 0 {
			errorChan <- fmt.Errorf("empty history")
			return
		}

		start := time.Now()
		logging.GeminiDebug("StreamChat: model=%s turns=%d", c.model, len(history))

		c.throttle()

		reqBody := Request{
			Contents:         history,
			GenerationConfig: GenerationConfig{Temperature: c.temperature, MaxOutputTokens: c.maxOutputTokens},
		}
		if strings.TrimSpace(systemPrompt) != "" {
			reqBody.SystemInstruction = &Content{Parts: []Part{{Text: systemPrompt}}}
		}

		url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, c.model, c.apiKey)

		var lastErr error
		for attempt := 0; attempt <= c.maxRetries; attempt++ {
			if attempt > 0 {
				select {
				case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
				case <-ctx.Done():
					errorChan <- ctx.Err()
					return
				}
			}

			jsonData, err := json.Marshal(reqBody)
			if err != nil {
				errorChan <- fmt.Errorf("failed to marshal request: %w", err)
				return
			}

			req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonData))
			if err != nil {
				errorChan <- fmt.Errorf("failed to create request: %w", err)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "text/event-stream")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				lastErr = fmt.Errorf("request failed: %w", err)
				continue
			}

			if resp.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				resp.Body.Close()
				apiErr := parseAPIError(resp.StatusCode, body)
				if apiErr.Retryable() {
					lastErr = apiErr
					continue
				}
				errorChan <- apiErr
				return
			}

			scanner := bufio.NewScanner(resp.Body)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

			scanDone := make(chan struct{})
			scanErrChan := make(chan error, 1)

			go func() {
				defer close(scanDone)
				for scanner.Scan() {
					line := scanner.Text()
					if !strings.HasPrefix(line, "data:") {
						continue
					}
					data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
					if data == "" {
						continue
					}
					if data == "[DONE]" {
						return
					}

					var chunk Response
					if err := json.Unmarshal([]byte(data), &chunk); err != nil {
						continue
					}
					if chunk.Error != nil {
						scanErrChan <- &APIError{StatusCode: chunk.Error.Code, Status: chunk.Error.Status, Message: chunk.Error.Message}
						return
					}
					if chunk.UsageMetadata.TotalTokenCount > 0 {
						c.mu.Lock()
						c.lastUsage = chunk.UsageMetadata
						c.mu.Unlock()
					}
					if len(chunk.Candidates) == 0 {
						continue
					}
					for _, part := range chunk.Candidates[0].Content.Parts {
						if part.Text == "" {
							continue
						}
						select {
						case contentChan <- part.Text:
						case <-ctx.Done():
							return
						}
					}
				}
				if err := scanner.Err(); err != nil {
					scanErrChan <- err
				}
			}()

			select {
			case <-scanDone:
				resp.Body.Close()
				select {
				case err := <-scanErrChan:
					logging.GeminiError("StreamChat: stream error after %v: %v", time.Since(start), err)
					errorChan <- fmt.Errorf("stream error: %w", err)
				default:
					logging.Gemini("StreamChat: completed in %v", time.Since(start))
				}
			case <-ctx.Done():
				resp.Body.Close()
				<-scanDone
				logging.GeminiWarn("StreamChat: cancelled after %v", time.Since(start))
				errorChan <- ctx.Err()
			}
			return
		}

		logging.GeminiError("StreamChat: max retries exceeded: %v", lastErr)
		errorChan <- fmt.Errorf("max retries exceeded: %w", lastErr)
	}()

	return contentChan, errorChan
}
