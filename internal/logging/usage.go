// Usage logging: structured JSONL events covering API calls, sessions,
// media, and live activity. One file per day next to the category logs.
// Everything here is a no-op unless debug mode is enabled.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// UsageEventType identifies the kind of event being recorded.
type UsageEventType string

const (
	// LLM API events
	UsageLLMRequest  UsageEventType = "llm_request"
	UsageLLMResponse UsageEventType = "llm_response"
	UsageLLMError    UsageEventType = "llm_error"
	UsageFileUpload  UsageEventType = "file_upload"

	// Session events
	UsageSessionStart UsageEventType = "session_start"
	UsageSessionEnd   UsageEventType = "session_end"
	UsageTurnStart    UsageEventType = "turn_start"
	UsageTurnEnd      UsageEventType = "turn_end"
	UsageCompaction   UsageEventType = "compaction"

	// Media events
	UsageMediaStaged   UsageEventType = "media_staged"
	UsageMediaRejected UsageEventType = "media_rejected"
	UsageCompressRun   UsageEventType = "compress_run"

	// Search and agents
	UsageSearchQuery     UsageEventType = "search_query"
	UsagePageFetch       UsageEventType = "page_fetch"
	UsageResearchRun     UsageEventType = "research_run"
	UsageYouTubeSummary  UsageEventType = "youtube_summary"

	// Live mode
	UsageLiveStart     UsageEventType = "live_start"
	UsageLiveUtterance UsageEventType = "live_utterance"
	UsageLiveReply     UsageEventType = "live_reply"
	UsageLiveStop      UsageEventType = "live_stop"

	// Devices
	UsageDeviceScan UsageEventType = "device_scan"
)

// UsageEvent is one JSONL record in the usage log.
type UsageEvent struct {
	Timestamp  int64                  `json:"ts"` // Unix milliseconds
	EventType  UsageEventType         `json:"event"`
	Category   string                 `json:"cat,omitempty"`
	SessionID  string                 `json:"session,omitempty"`
	RequestID  string                 `json:"req,omitempty"`
	Target     string                 `json:"target,omitempty"` // model, URL, path
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Tokens     int                    `json:"tokens,omitempty"`
	Bytes      int64                  `json:"bytes,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	usageFile   *os.File
	usageMu     sync.Mutex
	usageLogger *UsageLogger
)

// UsageLogger writes usage events, optionally scoped to a session.
type UsageLogger struct {
	sessionID string
	category  Category
}

// InitUsage opens the usage log. Call after Initialize.
func InitUsage() error {
	if !IsDebugMode() {
		return nil
	}

	usageMu.Lock()
	defer usageMu.Unlock()

	if usageFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(logsDir, fmt.Sprintf("%s_usage.log", date))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create usage log: %w", err)
	}
	usageFile = file

	fmt.Fprintf(usageFile, "# Usage log started at %s\n", time.Now().Format(time.RFC3339))
	return nil
}

// CloseUsage closes the usage log file.
func CloseUsage() {
	usageMu.Lock()
	defer usageMu.Unlock()

	if usageFile != nil {
		usageFile.Close()
		usageFile = nil
	}
}

// Usage returns the global usage logger.
func Usage() *UsageLogger {
	if usageLogger == nil {
		usageLogger = &UsageLogger{}
	}
	return usageLogger
}

// UsageWithSession creates a usage logger scoped to a session.
func UsageWithSession(sessionID string) *UsageLogger {
	return &UsageLogger{sessionID: sessionID}
}

// Log writes one usage event.
func (u *UsageLogger) Log(event UsageEvent) {
	if !IsDebugMode() || usageFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.SessionID == "" && u.sessionID != "" {
		event.SessionID = u.sessionID
	}
	if event.Category == "" && u.category != "" {
		event.Category = string(u.category)
	}

	usageMu.Lock()
	defer usageMu.Unlock()

	data, err := json.Marshal(event)
	if err == nil {
		usageFile.WriteString(string(data) + "\n")
	}
}

// LLMCall records a completed model call.
func (u *UsageLogger) LLMCall(requestID, model string, dur time.Duration, tokens int, err error) {
	ev := UsageEvent{
		EventType:  UsageLLMResponse,
		Category:   string(CategoryGemini),
		RequestID:  requestID,
		Target:     model,
		Success:    err == nil,
		DurationMs: dur.Milliseconds(),
		Tokens:     tokens,
	}
	if err != nil {
		ev.EventType = UsageLLMError
		ev.Error = err.Error()
	}
	u.Log(ev)
}

// Turn records one chat exchange.
func (u *UsageLogger) Turn(sessionID string, seq int, dur time.Duration) {
	u.Log(UsageEvent{
		EventType:  UsageTurnEnd,
		Category:   string(CategoryChat),
		SessionID:  sessionID,
		Success:    true,
		DurationMs: dur.Milliseconds(),
		Fields:     map[string]interface{}{"seq": seq},
	})
}

// MediaStaged records an accepted attachment.
func (u *UsageLogger) MediaStaged(sessionID, path string, size int64) {
	u.Log(UsageEvent{
		EventType: UsageMediaStaged,
		Category:  string(CategoryMedia),
		SessionID: sessionID,
		Target:    path,
		Success:   true,
		Bytes:     size,
	})
}
