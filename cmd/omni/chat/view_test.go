// Package chat provides tests for view rendering.
package chat

import (
	"strings"
	"testing"

	"omnichat/internal/media"
)

func TestFormatSize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		n    int64
		want string
	}{
		{512, "512B"},
		{2048, "2.0KB"},
		{1536, "1.5KB"},
		{3 * 1024 * 1024, "3.0MB"},
	}
	for _, tc := range cases {
		if got := formatSize(tc.n); got != tc.want {
			t.Errorf("formatSize(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestFormatTokens(t *testing.T) {
	t.Parallel()
	cases := []struct {
		n    int
		want string
	}{
		{0, "0 tokens"},
		{999, "999 tokens"},
		{1000, "1.0k tokens"},
		{45200, "45.2k tokens"},
	}
	for _, tc := range cases {
		if got := formatTokens(tc.n); got != tc.want {
			t.Errorf("formatTokens(%d) = %q, want %q", tc.n, got, tc.want)
		}
	}
}

func TestView_NotReady(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t)
	m.ready = false

	if got := m.View(); got != "Initializing..." {
		t.Errorf("Expected initializing placeholder, got %q", got)
	}
}

func TestView_BootScreen(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t)
	m.isBooting = true

	view := m.View()
	if !strings.Contains(view, "Starting up") {
		t.Error("Boot screen should say it is starting up")
	}
}

func TestView_ChatLayout(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t, WithHistory(userMsg("hello")))

	view := m.View()
	if !strings.Contains(view, "omni") {
		t.Error("Header should carry the product name")
	}
	if !strings.Contains(view, "/help") {
		t.Error("Footer should point at /help")
	}
}

func TestView_SessionList(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t, WithViewMode(ListView))

	view := m.View()
	if !strings.Contains(view, "Saved sessions") {
		t.Error("List overlay should be titled")
	}
	if !strings.Contains(view, "Esc: back") {
		t.Error("List overlay should hint at Esc")
	}
}

func TestRenderHistory_Roles(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t, WithHistory(
		userMsg("what is the weather"),
		assistantMsg("Sunny."),
		Message{Role: "notice", Content: "Attached photo.png"},
	))

	out := m.renderHistory()
	if !strings.Contains(out, "You") {
		t.Error("Expected user label")
	}
	if !strings.Contains(out, "Omni") {
		t.Error("Expected assistant label")
	}
	if !strings.Contains(out, "Attached photo.png") {
		t.Error("Expected notice content")
	}
}

func TestRenderHistory_StreamingTail(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t, WithLoading(true), WithHistory(userMsg("hi")))
	m.streamingReply = "typing this out"

	if !strings.Contains(m.renderHistory(), "typing this out") {
		t.Error("In-flight reply should render below the history")
	}

	// Once loading stops the tail disappears.
	m.isLoading = false
	if strings.Contains(m.renderHistory(), "typing this out") {
		t.Error("Stale streaming buffer should not render when idle")
	}
}

func TestRenderNotice_ErrorStyling(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t)

	plain := m.renderNotice("Attached file.png")
	if !strings.Contains(plain, "Attached file.png") {
		t.Error("Notice content should survive rendering")
	}

	errNotice := m.renderNotice("Error: it broke")
	if !strings.Contains(errNotice, "it broke") {
		t.Error("Error notice content should survive rendering")
	}
}

func TestSafeRenderMarkdown_NilRenderer(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t)
	m.renderer = nil

	if got := m.safeRenderMarkdown("# plain"); got != "# plain" {
		t.Errorf("Expected passthrough without renderer, got %q", got)
	}
}

func TestRenderStagedBar(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t)

	if m.renderStagedBar() != "" {
		t.Error("Empty staging area should render nothing")
	}

	m = NewTestModel(t, WithStaged(media.StagedFile{Kind: "image", OriginalName: "cat.png"}))
	bar := m.renderStagedBar()
	if !strings.Contains(bar, "cat.png") {
		t.Error("Staged bar should name the file")
	}
}

func TestRenderFooter_ContextBudget(t *testing.T) {
	t.Parallel()
	m := NewTestModel(t)
	m.tokensUsed = 500
	m.cfg.Memory.MaxContextTokens = 1000

	if !strings.Contains(m.renderFooter(), "ctx 50%") {
		t.Error("Footer should show context usage as a percentage of the budget")
	}

	m.cfg.Memory.MaxContextTokens = 0
	if !strings.Contains(m.renderFooter(), "500 tokens") {
		t.Error("Footer should fall back to a raw token count without a budget")
	}
}
