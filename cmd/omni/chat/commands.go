// Command handling for the chat interface. Everything a user types
// starting with "/" lands in handleCommand.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"omnichat/internal/youtube"

	tea "github.com/charmbracelet/bubbletea"
)

const helpText = `## Available Commands

| Command | Description |
|---------|-------------|
| /help | Show this help message |
| /new | Start a fresh session (previous one stays saved) |
| /sessions | Browse and switch saved sessions |
| /delete | Delete the current session and start fresh |
| /model <name> | Switch the Gemini model for this session |
| /attach <path> | Attach a file to your next message |
| /clear | Clear the visible history (storage untouched) |
| /search <query> | Web search with a synthesized answer |
| /research <topic> | Multi-angle research with a cited report |
| /youtube <url> | Summarize a YouTube video |
| /devices | List cameras, microphones, and screens |
| /compact | Fold old turns into a summary now |
| /quit | Exit |

### Keyboard Shortcuts

| Key | Action |
|-----|--------|
| Enter | Send (Alt+Enter for a newline) |
| Up / Down | Recall input history |
| Ctrl+N | New session |
| Ctrl+S | Session list |
| Ctrl+A | Attach a file |
| PgUp / PgDn | Scroll the conversation |
| Esc | Leave the session list or file picker |
| Ctrl+C | Exit |

Pasting a bare YouTube link summarizes it directly. Files dropped into
the inbox directory attach themselves to your next message.`

func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	cmd := parts[0]
	arg := strings.TrimSpace(strings.TrimPrefix(input, cmd))

	m.textarea.Reset()

	switch cmd {
	case "/quit", "/exit", "/q":
		m.performShutdown()
		return m, tea.Quit

	case "/help":
		m.appendAssistant(helpText)
		return m, nil

	case "/clear":
		m.history = []Message{}
		m.viewport.SetContent("")
		m.appendNotice("Cleared the view. The session itself is still on disk.")
		return m, nil

	case "/new":
		if m.requireBackend() {
			return m, nil
		}
		return m.startNewSession()

	case "/sessions":
		if m.requireBackend() {
			return m, nil
		}
		return m.openSessionList()

	case "/delete":
		if m.requireBackend() {
			return m, nil
		}
		return m.deleteCurrentSession()

	case "/model":
		if m.requireBackend() {
			return m, nil
		}
		if arg == "" {
			m.appendNotice(fmt.Sprintf("Current model: %s. Use /model <name> to switch.", m.cfg.Gemini.Model))
			return m, nil
		}
		return m.switchModel(arg)

	case "/attach":
		if m.requireBackend() {
			return m, nil
		}
		if arg == "" {
			m.viewMode = FilePickerView
			return m, m.filepicker.Init()
		}
		m.isLoading = true
		m.statusMessage = "attaching file..."
		return m, tea.Batch(m.spinner.Tick, m.stageFile(arg))

	case "/search":
		if m.requireBackend() {
			return m, nil
		}
		if arg == "" {
			m.appendNotice("Usage: /search <query>")
			return m, nil
		}
		return m.runSearch(arg)

	case "/research":
		if m.requireBackend() {
			return m, nil
		}
		if arg == "" {
			m.appendNotice("Usage: /research <topic>")
			return m, nil
		}
		return m.runResearch(arg)

	case "/youtube":
		if m.requireBackend() {
			return m, nil
		}
		url, ok := youtube.DetectURL(arg)
		if !ok {
			m.appendNotice("Usage: /youtube <video-url>")
			return m, nil
		}
		return m.runYouTubeSummary(url, "")

	case "/devices":
		if m.requireBackend() {
			return m, nil
		}
		return m.runDeviceScan()

	case "/compact":
		if m.requireBackend() {
			return m, nil
		}
		if !m.sessionPersist {
			m.appendNotice("Nothing to compact yet; the session has no stored turns.")
			return m, nil
		}
		return m.runCompaction()

	default:
		m.appendNotice(fmt.Sprintf("Unknown command %s. Try /help.", cmd))
		return m, nil
	}
}

// requireBackend appends a notice and reports true when the backend
// never booted (missing API key, broken store).
func (m *Model) requireBackend() bool {
	if m.back != nil {
		return false
	}
	m.appendNotice("That needs a working configuration. Fix it and restart omni.")
	return true
}

// switchModel repoints this session (and the running client) at a
// different Gemini model.
func (m Model) switchModel(name string) (tea.Model, tea.Cmd) {
	m.cfg.Gemini.Model = name
	m.back.client.SetModel(name)
	if m.sessionPersist {
		_ = m.back.store.SetSessionModel(m.sessionID, name)
	}
	m.appendNotice(fmt.Sprintf("Switched to %s for this session.", name))
	return m, nil
}

func (m Model) runSearch(query string) (tea.Model, tea.Cmd) {
	m.isLoading = true
	m.statusMessage = "searching the web..."
	back := m.back
	parent := m.shutdownCtx
	timeout := m.cfg.GetFetchTimeout()

	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		summary, err := back.searcher.SummarizeSearch(ctx, query)
		if err != nil {
			return errorMsg(err)
		}
		var sb strings.Builder
		sb.WriteString(summary.Answer)
		sb.WriteString("\n\n**Sources**\n\n")
		for _, src := range summary.Sources {
			sb.WriteString(fmt.Sprintf("- [%s](%s)\n", src.Title, src.URL))
		}
		return responseMsg(sb.String())
	})
}

func (m Model) runResearch(topic string) (tea.Model, tea.Cmd) {
	m.isLoading = true
	m.statusMessage = "researching, this takes a few minutes..."
	back := m.back
	parent := m.shutdownCtx

	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 5*time.Minute)
		defer cancel()

		report, err := back.research.Run(ctx, topic)
		if err != nil {
			return errorMsg(err)
		}
		body := fmt.Sprintf("%s\n\n*%d sources, %s. Saved as session %s.*",
			report.Markdown, len(report.Sources),
			report.Duration.Round(time.Second), report.SessionID)
		return responseMsg(body)
	})
}

func (m Model) runYouTubeSummary(url, focus string) (tea.Model, tea.Cmd) {
	m.isLoading = true
	m.statusMessage = "summarizing the video..."
	back := m.back
	parent := m.shutdownCtx

	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 5*time.Minute)
		defer cancel()

		summary, err := back.youtube.Summarize(ctx, url, focus)
		if err != nil {
			return errorMsg(err)
		}
		body := fmt.Sprintf("%s\n\n*Saved as session %s.*", summary.Markdown, summary.SessionID)
		return responseMsg(body)
	})
}

func (m Model) runDeviceScan() (tea.Model, tea.Cmd) {
	m.isLoading = true
	m.statusMessage = "scanning devices..."
	back := m.back
	parent := m.shutdownCtx

	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()

		inv := back.scanner.Scan(ctx)
		return responseMsg(inv.Report())
	})
}

func (m Model) runCompaction() (tea.Model, tea.Cmd) {
	m.isLoading = true
	m.statusMessage = "compacting the conversation..."
	back := m.back
	sessionID := m.sessionID
	parent := m.shutdownCtx

	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
		defer cancel()

		report, err := back.compactor.Manage(ctx, sessionID)
		if err != nil {
			return errorMsg(err)
		}
		if !report.Compacted() {
			return noticeMsg(fmt.Sprintf(
				"Nothing to compact: %d tokens is still under the threshold.",
				report.TokensBefore))
		}
		return noticeMsg(fmt.Sprintf(
			"Compacted %d messages across %d round(s): %d tokens down to %d.",
			report.MessagesSummarized, report.Rounds,
			report.TokensBefore, report.TokensAfter))
	})
}
