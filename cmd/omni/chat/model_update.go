package chat

import (
	"fmt"
	"time"

	"omnichat/internal/logging"
	"omnichat/internal/media"
	"omnichat/internal/memory"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Global keybindings first, regardless of view.
		switch msg.Type {
		case tea.KeyCtrlC:
			// Graceful shutdown before quit
			m.performShutdown()
			return m, tea.Quit

		case tea.KeyCtrlN:
			if !m.isLoading && !m.isBooting && m.back != nil {
				return m.startNewSession()
			}
			return m, nil

		case tea.KeyCtrlS:
			if m.viewMode == ChatView && !m.isBooting && m.back != nil {
				return m.openSessionList()
			}

		case tea.KeyCtrlA:
			if m.viewMode == ChatView && !m.isBooting && m.back != nil {
				m.viewMode = FilePickerView
				return m, m.filepicker.Init()
			}

		case tea.KeyEsc:
			// Esc backs out of overlay views. Quitting is Ctrl+C only,
			// so a stray Esc never kills a long chat.
			if m.viewMode != ChatView {
				m.viewMode = ChatView
			}
			return m, nil
		}

		// Session list handling
		if m.viewMode == ListView {
			if msg.Type == tea.KeyEnter {
				if selected, ok := m.list.SelectedItem().(sessionItem); ok {
					return m.loadSelectedSession(selected.id)
				}
			}
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			return m, cmd
		}

		// File picker handling
		if m.viewMode == FilePickerView {
			var cmd tea.Cmd
			m.filepicker, cmd = m.filepicker.Update(msg)

			if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
				m.viewMode = ChatView
				m.isLoading = true
				m.statusMessage = "attaching file..."
				return m, tea.Batch(cmd, m.spinner.Tick, m.stageFile(path))
			}
			if didSelect, path := m.filepicker.DidSelectDisabledFile(msg); didSelect {
				m.appendNotice(fmt.Sprintf("Cannot attach %s: not a supported media type.", path))
				m.viewMode = ChatView
				return m, cmd
			}
			return m, cmd
		}

		// Chat view handling
		switch msg.Type {
		case tea.KeyEnter:
			// Allow Alt+Enter for newlines
			if msg.Alt {
				break
			}
			// Bracketed paste: don't submit on Enter during paste
			if msg.Paste {
				break
			}
			if !m.isLoading && !m.isBooting {
				return m.handleSubmit()
			}

		case tea.KeyUp:
			// History previous (if at top line)
			if m.textarea.Line() == 0 {
				if m.historyIndex > 0 {
					m.historyIndex--
					m.textarea.SetValue(m.inputHistory[m.historyIndex])
					m.textarea.CursorEnd()
				}
				return m, nil
			}

		case tea.KeyDown:
			// History next (if at bottom line)
			if m.textarea.Line() == m.textarea.LineCount()-1 {
				if m.historyIndex < len(m.inputHistory) {
					m.historyIndex++
					if m.historyIndex == len(m.inputHistory) {
						m.textarea.SetValue("")
					} else {
						m.textarea.SetValue(m.inputHistory[m.historyIndex])
						m.textarea.CursorEnd()
					}
				}
				return m, nil
			}

		case tea.KeyPgUp, tea.KeyPgDown:
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

		// Regular key input
		if !m.isLoading {
			m.textarea, tiCmd = m.textarea.Update(msg)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4
		footerHeight := 3
		inputHeight := 3
		paddingHeight := 2

		chatWidth := msg.Width - 4
		if chatWidth < 1 {
			chatWidth = 1
		}
		calcHeight := msg.Height - headerHeight - footerHeight - inputHeight - paddingHeight
		if calcHeight < 1 {
			calcHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(chatWidth, calcHeight)
			m.ready = true
		} else {
			m.viewport.Width = chatWidth
			m.viewport.Height = calcHeight
		}

		m.textarea.SetWidth(chatWidth - 4)
		m.list.SetSize(msg.Width, msg.Height-headerHeight)
		m.filepicker.Height = msg.Height - 15
		if m.filepicker.Height < 5 {
			m.filepicker.Height = 5
		}

		// Rebuild the renderer at the new wrap width and re-render.
		if m.renderer != nil {
			if m.styles.Theme.IsDark {
				m.renderer, _ = glamour.NewTermRenderer(
					glamour.WithAutoStyle(),
					glamour.WithWordWrap(chatWidth-4),
				)
			} else {
				m.renderer, _ = glamour.NewTermRenderer(
					glamour.WithStylePath("light"),
					glamour.WithWordWrap(chatWidth-4),
				)
			}
			m.viewport.SetContent(m.renderHistory())
			m.viewport.GotoBottom()
		}

	case spinner.TickMsg:
		if m.isLoading || m.isBooting {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case bootCompleteMsg:
		m.isBooting = false
		if msg.err != nil {
			m.err = msg.err
			m.textarea.Placeholder = "Fix the configuration, then restart omni."
			m.appendNotice(bootFailureNotice(msg.err))
			return m, nil
		}
		m.back = msg.back
		m.sessionID = msg.sessionID
		m.sessionTitle = msg.title
		m.sessionPersist = msg.persisted
		m.tokensUsed = msg.tokens
		if len(msg.messages) > 0 {
			m.history = msg.messages
			m.turnCount = countTurns(msg.messages)
			m.statusMessage = fmt.Sprintf("resumed %q", memory.Preview(msg.title, 40))
		} else {
			m.appendNotice(welcomeBanner(m.cfg))
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, tea.Batch(m.startInbox(), m.healthCheck())

	case streamChunkMsg:
		m.streamingReply += string(msg)
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, m.waitForStream()

	case streamDoneMsg:
		m.isLoading = false
		m.streamCh = nil
		m.streamingReply = ""
		m.statusMessage = ""
		if msg.err != nil {
			m.appendNotice(fmt.Sprintf("Error: %v", msg.err))
			return m, nil
		}
		m.turnCount++
		m.tokensUsed = msg.tokens
		m.appendAssistant(msg.reply)
		if msg.compacted > 0 {
			m.appendNotice(fmt.Sprintf("Context compacted: %d earlier messages folded into a summary.", msg.compacted))
		}

	case responseMsg:
		m.isLoading = false
		m.statusMessage = ""
		m.appendAssistant(string(msg))

	case noticeMsg:
		m.isLoading = false
		m.statusMessage = ""
		m.appendNotice(string(msg))

	case errorMsg:
		m.isLoading = false
		m.statusMessage = ""
		m.err = msg
		logging.Chat("chat error: %v", error(msg))
		m.appendNotice(fmt.Sprintf("Error: %v", error(msg)))

	case sessionsLoadedMsg:
		m.isLoading = false
		items := make([]list.Item, len(msg))
		for i, it := range msg {
			items[i] = it
		}
		m.list.SetItems(items)
		m.viewMode = ListView

	case sessionLoadedMsg:
		m.isLoading = false
		m.viewMode = ChatView
		m.sessionID = msg.id
		m.sessionTitle = msg.title
		m.sessionPersist = true
		m.history = msg.messages
		m.tokensUsed = msg.tokens
		m.turnCount = countTurns(msg.messages)
		m.staged = nil
		if m.back != nil && m.back.watcher != nil {
			m.back.watcher.SetSession(msg.id)
		}
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()

	case stagedMsg:
		m.isLoading = false
		m.statusMessage = ""
		if msg.err != nil {
			m.appendNotice(fmt.Sprintf("Could not attach file: %v", msg.err))
			return m, nil
		}
		m.staged = append(m.staged, *msg.file)
		m.appendNotice(fmt.Sprintf("Attached %s (%s). It goes out with your next message.",
			msg.file.OriginalName, formatSize(msg.file.Size)))

	case inboxMsg:
		file := media.StagedFile(msg)
		m.staged = append(m.staged, file)
		m.appendNotice(fmt.Sprintf("Picked up %s from the inbox.", file.OriginalName))
		return m, m.waitForInbox()

	case healthMsg:
		if msg.err != nil {
			m.appendNotice(fmt.Sprintf("Connectivity check failed: %v\n\nReplies will not work until this is fixed.", msg.err))
		} else {
			m.statusMessage = fmt.Sprintf("%s ready (%s)", m.cfg.Gemini.Model, msg.latency.Round(time.Millisecond))
		}
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

// countTurns counts completed user turns in a restored history.
func countTurns(msgs []Message) int {
	n := 0
	for _, msg := range msgs {
		if msg.Role == "user" {
			n++
		}
	}
	return n
}
