// Package chat provides tests for command handlers.
// This file tests handleCommand dispatch and the session commands.
package chat

import (
	"strings"
	"testing"

	"omnichat/internal/gemini"
	"omnichat/internal/store"
)

// =============================================================================
// BASIC COMMANDS
// =============================================================================

func TestCommand_Quit(t *testing.T) {
	t.Parallel()
	for _, cmd := range []string{"/quit", "/exit", "/q"} {
		t.Run(cmd, func(t *testing.T) {
			m := NewTestModel(t)

			_, teaCmd := m.handleCommand(cmd)
			if teaCmd == nil {
				t.Error("Expected tea.Quit command, got nil")
			}
		})
	}
}

func TestCommand_Help(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t)

	newModel, _ := m.handleCommand("/help")
	result := newModel.(Model)

	last := lastMessage(t, result)
	if last.Role != "assistant" {
		t.Errorf("Expected assistant role, got %s", last.Role)
	}
	for _, want := range []string{"/search", "/youtube", "/sessions", "Ctrl+A"} {
		if !strings.Contains(last.Content, want) {
			t.Errorf("Help text missing %q", want)
		}
	}
}

func TestCommand_Clear(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t, WithHistory(
		userMsg("hello"),
		assistantMsg("hi there"),
	))

	newModel, _ := m.handleCommand("/clear")
	result := newModel.(Model)

	// Only the confirmation notice survives.
	if len(result.history) != 1 {
		t.Fatalf("Expected 1 message after clear, got %d", len(result.history))
	}
	if result.history[0].Role != "notice" {
		t.Errorf("Expected notice, got %s", result.history[0].Role)
	}
	if !strings.Contains(result.history[0].Content, "still on disk") {
		t.Error("Clear notice should mention the session survives on disk")
	}
}

func TestCommand_Unknown(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t)

	newModel, _ := m.handleCommand("/frobnicate")
	result := newModel.(Model)

	if !historyContains(result, "Unknown command /frobnicate") {
		t.Error("Expected unknown command notice")
	}
}

// =============================================================================
// BACKEND GUARD
// =============================================================================

func TestCommand_NoBackend(t *testing.T) {
	t.Parallel()
	commands := []string{
		"/new", "/sessions", "/delete", "/model", "/attach",
		"/search x", "/research x", "/youtube x", "/devices", "/compact",
	}
	for _, cmd := range commands {
		t.Run(cmd, func(t *testing.T) {
			m := NewTestModel(t) // back == nil

			newModel, teaCmd := m.handleCommand(cmd)
			result := newModel.(Model)

			if teaCmd != nil {
				t.Error("Expected no command without a backend")
			}
			if !historyContains(result, "working configuration") {
				t.Errorf("Expected backend-required notice for %s", cmd)
			}
		})
	}
}

// =============================================================================
// ARGUMENT HANDLING
// =============================================================================

func TestCommand_ModelShowsCurrent(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t, WithBackend(&backend{}))

	newModel, _ := m.handleCommand("/model")
	result := newModel.(Model)

	if !historyContains(result, result.cfg.Gemini.Model) {
		t.Error("Expected current model name in notice")
	}
}

func TestCommand_ModelSwitch(t *testing.T) {
	t.Parallel()
	back := newTestBackend(t)
	back.client = gemini.New(gemini.DefaultConfig("test-key"))
	m := NewTestModel(t, WithBackend(back))

	newModel, _ := m.handleCommand("/model gemini-exp-1206")
	result := newModel.(Model)

	if result.cfg.Gemini.Model != "gemini-exp-1206" {
		t.Errorf("Expected model switch, got %s", result.cfg.Gemini.Model)
	}
	if !historyContains(result, "Switched to gemini-exp-1206") {
		t.Error("Expected switch confirmation notice")
	}
}

func TestCommand_UsageLines(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"/search":   "Usage: /search",
		"/research": "Usage: /research",
		"/youtube":  "Usage: /youtube",
	}
	for cmd, want := range cases {
		t.Run(cmd, func(t *testing.T) {
			m := NewTestModel(t, WithBackend(&backend{}))

			newModel, teaCmd := m.handleCommand(cmd)
			result := newModel.(Model)

			if teaCmd != nil {
				t.Error("Expected no command for bare invocation")
			}
			if !historyContains(result, want) {
				t.Errorf("Expected %q notice", want)
			}
		})
	}
}

func TestCommand_YouTubeRejectsNonURL(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t, WithBackend(&backend{}))

	newModel, _ := m.handleCommand("/youtube cat videos please")
	result := newModel.(Model)

	if !historyContains(result, "Usage: /youtube") {
		t.Error("Expected usage notice for a non-URL argument")
	}
}

func TestCommand_CompactUnsaved(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t, WithBackend(&backend{}))

	newModel, _ := m.handleCommand("/compact")
	result := newModel.(Model)

	if !historyContains(result, "Nothing to compact yet") {
		t.Error("Expected nothing-to-compact notice for an unsaved session")
	}
	if result.isLoading {
		t.Error("Compaction should not start for an unsaved session")
	}
}

func TestCommand_AttachOpensPicker(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t, WithBackend(&backend{}))

	newModel, teaCmd := m.handleCommand("/attach")
	result := newModel.(Model)

	if result.viewMode != FilePickerView {
		t.Errorf("Expected FilePickerView, got %v", result.viewMode)
	}
	if teaCmd == nil {
		t.Error("Expected filepicker init command")
	}
}

// =============================================================================
// SESSION COMMANDS
// =============================================================================

func TestCommand_New(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t,
		WithBackend(&backend{}),
		WithSession("old-session", "Old chat", true),
		WithHistory(userMsg("hi"), assistantMsg("hello")),
	)

	newModel, _ := m.handleCommand("/new")
	result := newModel.(Model)

	if result.sessionID == "old-session" {
		t.Error("Expected a new session ID")
	}
	if result.sessionPersist {
		t.Error("New session should not be persisted until the first send")
	}
	if result.turnCount != 0 || result.tokensUsed != 0 {
		t.Error("New session should reset counters")
	}
	if !historyContains(result, "Started a new chat") {
		t.Error("Expected new-chat notice")
	}
}

func TestCommand_DeleteUnsaved(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t, WithBackend(&backend{}))

	newModel, _ := m.handleCommand("/delete")
	result := newModel.(Model)

	if !historyContains(result, "never saved") {
		t.Error("Expected nothing-to-delete notice")
	}
}

func TestCommand_DeletePersisted(t *testing.T) {
	t.Parallel()
	back := newTestBackend(t)
	if err := back.store.CreateSession("sess-1", "Doomed chat", store.KindChat, "test-model"); err != nil {
		t.Fatalf("create session: %v", err)
	}
	m := NewTestModel(t,
		WithBackend(back),
		WithSession("sess-1", "Doomed chat", true),
	)

	newModel, _ := m.handleCommand("/delete")
	result := newModel.(Model)

	if result.sessionID == "sess-1" {
		t.Error("Expected a fresh session after delete")
	}
	if !historyContains(result, "Deleted") {
		t.Error("Expected delete confirmation")
	}
	if _, err := back.store.GetSession("sess-1"); err == nil {
		t.Error("Session row should be gone from the store")
	}
}

func TestSessionKindLabel(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		store.KindChat:     "chat",
		store.KindResearch: "research",
		store.KindYouTube:  "youtube",
		store.KindLive:     "live",
		"someday-maybe":    "chat",
	}
	for kind, want := range cases {
		if got := sessionKindLabel(kind); got != want {
			t.Errorf("sessionKindLabel(%q) = %q, want %q", kind, got, want)
		}
	}
}
