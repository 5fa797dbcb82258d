// Package chat provides test utilities for TUI testing.
// This file contains fixtures and helpers shared by the chat tests.
package chat

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"omnichat/cmd/omni/ui"
	"omnichat/internal/config"
	"omnichat/internal/media"
	"omnichat/internal/memory"
	"omnichat/internal/store"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// newTestConfig returns a config rooted in a temp directory with the
// inbox watcher off, so nothing touches the real home directory.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Media.InboxEnabled = false
	cfg.Gemini.APIKey = "test-key"
	return cfg
}

// TestModelOption configures a test model.
type TestModelOption func(*Model)

// NewTestModel creates a minimal Model suitable for testing. All UI
// components are initialized; the backend stays nil unless an option
// provides one.
func NewTestModel(t *testing.T, opts ...TestModelOption) Model {
	t.Helper()

	styles := ui.DefaultStyles()

	ta := textarea.New()
	ta.Placeholder = "Test input..."
	ta.SetWidth(80)
	ta.SetHeight(3)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)

	li := list.New([]list.Item{}, list.NewDefaultDelegate(), 80, 20)
	li.SetShowStatusBar(false)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := Model{
		textarea:       ta,
		viewport:       vp,
		spinner:        sp,
		list:           li,
		filepicker:     filepicker.New(),
		styles:         styles,
		viewMode:       ChatView,
		history:        []Message{},
		ready:          true,
		width:          100,
		height:         50,
		sessionID:      "test-session",
		sessionTitle:   "New chat",
		cfg:            newTestConfig(t),
		shutdownOnce:   &sync.Once{},
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}

	// Best effort; rendering falls back to plain text without one.
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	m.renderer = renderer

	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// newTestBackend opens a real store under a temp directory and wires
// the pieces command handlers reach for. No Gemini client: tests never
// execute the commands that talk to the model.
func newTestBackend(t *testing.T) *backend {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "omni.db"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return &backend{
		store:   st,
		media:   media.NewManager(filepath.Join(dir, "media"), 1<<20, 4<<20),
		counter: memory.NewTokenCounter(),
	}
}

// WithBackend attaches a backend.
func WithBackend(back *backend) TestModelOption {
	return func(m *Model) {
		m.back = back
	}
}

// WithHistory adds messages to history.
func WithHistory(messages ...Message) TestModelOption {
	return func(m *Model) {
		m.history = append(m.history, messages...)
	}
}

// WithSession sets the active session identity.
func WithSession(id, title string, persisted bool) TestModelOption {
	return func(m *Model) {
		m.sessionID = id
		m.sessionTitle = title
		m.sessionPersist = persisted
	}
}

// WithLoading sets the loading state.
func WithLoading(loading bool) TestModelOption {
	return func(m *Model) {
		m.isLoading = loading
	}
}

// WithViewMode sets the view mode.
func WithViewMode(mode ViewMode) TestModelOption {
	return func(m *Model) {
		m.viewMode = mode
	}
}

// WithStaged adds staged attachments.
func WithStaged(files ...media.StagedFile) TestModelOption {
	return func(m *Model) {
		m.staged = append(m.staged, files...)
	}
}

// userMsg and assistantMsg build history fixtures.
func userMsg(content string) Message {
	return Message{Role: "user", Content: content, Time: time.Now()}
}

func assistantMsg(content string) Message {
	return Message{Role: "assistant", Content: content, Time: time.Now()}
}

// historyContains reports whether any history entry contains substr.
func historyContains(m Model, substr string) bool {
	for _, msg := range m.history {
		if strings.Contains(msg.Content, substr) {
			return true
		}
	}
	return false
}

// lastMessage returns the most recent history entry.
func lastMessage(t *testing.T, m Model) Message {
	t.Helper()
	if len(m.history) == 0 {
		t.Fatal("history is empty")
	}
	return m.history[len(m.history)-1]
}

// simulate sends messages through Update and returns the final model.
func simulate(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}
