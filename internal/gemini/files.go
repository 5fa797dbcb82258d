package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"omnichat/internal/logging"
)

// UploadFile uploads a local file through the Files API resumable protocol
// and returns its URI for use in FileData parts. Attachments above the
// inline size limit go through here.
func (c *Client) UploadFile(ctx context.Context, path string, mimeType string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key required")
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	size := stat.Size()

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	logging.GeminiDebug("UploadFile: path=%s size=%d mime=%s", path, size, mimeType)

	// Start a resumable session. The upload endpoint lives under
	// /upload/v1beta rather than /v1beta.
	uploadBase := strings.Replace(c.baseURL, "/v1beta", "/upload/v1beta", 1)
	url := fmt.Sprintf("%s/files?key=%s", uploadBase, c.apiKey)

	metadata := map[string]interface{}{
		"file": map[string]string{
			"displayName": filepath.Base(path),
		},
	}
	jsonMeta, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonMeta))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Upload-Protocol", "resumable")
	req.Header.Set("X-Goog-Upload-Command", "start")
	req.Header.Set("X-Goog-Upload-Header-Content-Length", fmt.Sprintf("%d", size))
	req.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload start request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload start failed (status %d): %s", resp.StatusCode, body)
	}

	uploadURL := resp.Header.Get("X-Goog-Upload-URL")
	if uploadURL == "" {
		return "", fmt.Errorf("no upload URL returned in headers")
	}

	// Upload the bytes in one shot and finalize.
	f.Seek(0, 0)
	reqUpload, err := http.NewRequestWithContext(ctx, "POST", uploadURL, f)
	if err != nil {
		return "", err
	}
	reqUpload.Header.Set("Content-Length", fmt.Sprintf("%d", size))
	reqUpload.Header.Set("X-Goog-Upload-Offset", "0")
	reqUpload.Header.Set("X-Goog-Upload-Command", "upload, finalize")

	respUpload, err := c.httpClient.Do(reqUpload)
	if err != nil {
		return "", fmt.Errorf("upload data failed: %w", err)
	}
	defer respUpload.Body.Close()

	if respUpload.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(respUpload.Body)
		return "", fmt.Errorf("upload finalization failed (status %d): %s", respUpload.StatusCode, body)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(respUpload.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to parse upload response: %w", err)
	}

	if fileInfo, ok := result["file"].(map[string]interface{}); ok {
		if uri, ok := fileInfo["uri"].(string); ok {
			logging.GeminiDebug("UploadFile success: uri=%s", uri)
			logging.Usage().Log(logging.UsageEvent{
				EventType: logging.UsageFileUpload,
				Category:  string(logging.CategoryGemini),
				Target:    filepath.Base(path),
				Success:   true,
				Bytes:     size,
			})
			return uri, nil
		}
	}

	return "", fmt.Errorf("no file uri found in upload response")
}

// DeleteFile removes an uploaded file by resource name or bare ID.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if c.apiKey == "" {
		return fmt.Errorf("API key required")
	}

	name := fileID
	if !strings.HasPrefix(name, "files/") {
		name = "files/" + name
	}

	url := fmt.Sprintf("%s/%s?key=%s", c.baseURL, name, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete file failed with status %d", resp.StatusCode)
	}

	return nil
}
