// Package chat provides tests for model construction and lifecycle.
package chat

import (
	"testing"
	"time"

	"omnichat/internal/store"
)

func TestNew_Defaults(t *testing.T) {
	t.Parallel()
	cfg := newTestConfig(t)

	m := New(cfg)

	if !m.isBooting {
		t.Error("A fresh model should report booting until the backend is up")
	}
	if m.sessionTitle != "New chat" {
		t.Errorf("Expected default title, got %q", m.sessionTitle)
	}
	if m.viewMode != ChatView {
		t.Errorf("Expected chat view, got %v", m.viewMode)
	}
	if m.shutdownOnce == nil || m.shutdownCtx == nil {
		t.Error("Shutdown coordination must be wired at construction")
	}
	if m.textarea.Placeholder == "" {
		t.Error("Input placeholder should explain the keybindings")
	}

	if cmd := m.Init(); cmd == nil {
		t.Error("Init should kick off the boot batch")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()
	back := newTestBackend(t)
	m := NewTestModel(t, WithBackend(back), WithSession("sess-x", "x", true))

	m.performShutdown()

	// The store really closed.
	if _, err := back.store.GetSession("sess-x"); err == nil {
		t.Error("Store should reject queries after shutdown")
	}

	// Second call is a no-op, not a double close.
	m.performShutdown()
	(&m).Shutdown()
}

func TestShutdown_RecordsLastSession(t *testing.T) {
	t.Parallel()
	back := newTestBackend(t)
	if err := back.store.CreateSession("sess-last", "t", store.KindChat, "m"); err != nil {
		t.Fatalf("create session: %v", err)
	}

	m := NewTestModel(t, WithBackend(back), WithSession("sess-last", "t", true))
	m.performShutdown()

	// Reopen the same database file to observe the persisted pointer.
	st, err := store.Open(back.store.Path())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st.Close()
	recorded, err := st.LastSessionID()
	if err != nil {
		t.Fatalf("read last session: %v", err)
	}
	if recorded != "sess-last" {
		t.Errorf("Expected last session sess-last, got %q", recorded)
	}
}

func TestToUIMessages(t *testing.T) {
	t.Parallel()
	now := time.Now()
	stored := []store.Message{
		{Role: store.RoleUser, Content: "question", CreatedAt: now},
		{Role: store.RoleModel, Content: "answer", CreatedAt: now},
	}

	out := toUIMessages(stored)
	if len(out) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(out))
	}
	if out[0].Role != "user" || out[1].Role != "assistant" {
		t.Errorf("Role mapping wrong: %s, %s", out[0].Role, out[1].Role)
	}
	if out[1].Content != "answer" {
		t.Errorf("Content should pass through, got %q", out[1].Content)
	}
}

func TestWaitForStream_NilChannel(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t)

	if m.waitForStream() != nil {
		t.Error("No stream channel means no command")
	}
}

func TestWaitForStream_DeliversAndCloses(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t)
	ch := make(chan string, 1)
	m.streamCh = ch

	ch <- "chunk"
	cmd := m.waitForStream()
	if cmd == nil {
		t.Fatal("Expected a command for a live channel")
	}
	if msg, ok := cmd().(streamChunkMsg); !ok || string(msg) != "chunk" {
		t.Errorf("Expected chunk delivery, got %#v", msg)
	}

	close(ch)
	if got := m.waitForStream()(); got != nil {
		t.Errorf("Closed channel should yield nil, got %#v", got)
	}
}
