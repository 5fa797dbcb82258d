// Session management for the chat interface: the session list overlay,
// switching, and starting over.
package chat

import (
	"fmt"

	"omnichat/internal/memory"
	"omnichat/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// openSessionList loads saved sessions off the UI thread and flips to
// the list overlay when they arrive.
func (m Model) openSessionList() (tea.Model, tea.Cmd) {
	m.isLoading = true
	m.statusMessage = "loading sessions..."
	back := m.back

	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		sessions, err := back.store.ListSessions("", 50)
		if err != nil {
			return errorMsg(err)
		}
		items := make([]sessionItem, 0, len(sessions))
		for _, sess := range sessions {
			title := sess.Title
			if title == "" {
				title = "(untitled)"
			}
			items = append(items, sessionItem{
				id:   sess.ID,
				kind: sessionKindLabel(sess.Kind),
				date: sess.UpdatedAt.Format("2006-01-02 15:04"),
				desc: memory.Preview(title, 70),
			})
		}
		return sessionsLoadedMsg(items)
	})
}

// loadSelectedSession switches the chat over to a stored session.
func (m Model) loadSelectedSession(id string) (tea.Model, tea.Cmd) {
	m.isLoading = true
	m.statusMessage = "loading session..."
	back := m.back

	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		sess, err := back.store.GetSession(id)
		if err != nil {
			return errorMsg(fmt.Errorf("load session %s: %w", id, err))
		}
		stored, err := back.store.Messages(id)
		if err != nil {
			return errorMsg(fmt.Errorf("load session %s: %w", id, err))
		}
		_ = back.store.SetLastSessionID(id)
		return sessionLoadedMsg{
			id:       sess.ID,
			title:    sess.Title,
			messages: toUIMessages(stored),
			tokens:   back.counter.CountHistory(stored),
		}
	})
}

// startNewSession leaves the current conversation on disk and begins a
// fresh one. The new session row is created lazily on the first send.
func (m Model) startNewSession() (tea.Model, tea.Cmd) {
	m.sessionID = uuid.NewString()
	m.sessionTitle = "New chat"
	m.sessionPersist = false
	m.history = []Message{}
	m.staged = nil
	m.turnCount = 0
	m.tokensUsed = 0
	m.streamingReply = ""
	m.viewMode = ChatView
	if m.back != nil && m.back.watcher != nil {
		m.back.watcher.SetSession(m.sessionID)
	}
	m.appendNotice("Started a new chat. The previous one stays under /sessions.")
	return m, nil
}

// deleteCurrentSession removes the active session's rows and staged
// media, then starts over.
func (m Model) deleteCurrentSession() (tea.Model, tea.Cmd) {
	if !m.sessionPersist {
		m.appendNotice("This chat was never saved; nothing to delete.")
		return m, nil
	}
	id := m.sessionID
	title := m.sessionTitle
	if err := m.back.store.DeleteSession(id); err != nil {
		m.appendNotice("Could not delete the session: " + err.Error())
		return m, nil
	}
	_ = m.back.media.CleanupSession(id)

	next, cmd := m.startNewSession()
	model := next.(Model)
	model.history = []Message{}
	model.appendNotice(fmt.Sprintf("Deleted %q and started fresh.", memory.Preview(title, 40)))
	return model, cmd
}

// sessionKindLabel renders a short badge for the session list.
func sessionKindLabel(kind string) string {
	switch kind {
	case store.KindResearch:
		return "research"
	case store.KindYouTube:
		return "youtube"
	case store.KindLive:
		return "live"
	default:
		return "chat"
	}
}
