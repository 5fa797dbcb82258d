// Natural language input processing for the chat interface.
package chat

import (
	"context"
	"strings"
	"time"

	"omnichat/internal/gemini"
	"omnichat/internal/logging"
	"omnichat/internal/media"
	"omnichat/internal/memory"
	"omnichat/internal/store"
	"omnichat/internal/youtube"

	tea "github.com/charmbracelet/bubbletea"
)

// chatSystemPrompt frames every conversation turn.
const chatSystemPrompt = "You are a helpful assistant that always responds " +
	"in a polite, upbeat and positive manner."

// handleSubmit processes user input submission.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}

	// Check for special commands
	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	// Boot failed: there is nothing to talk to yet.
	if m.back == nil {
		m.appendNotice("The assistant is not available. Fix the configuration and restart omni.")
		m.textarea.Reset()
		return m, nil
	}

	// A pasted YouTube link goes straight to the summarizer.
	if url, ok := youtube.DetectURL(input); ok && strings.TrimSpace(strings.TrimPrefix(input, url)) == "" {
		m.textarea.Reset()
		return m.runYouTubeSummary(url, "")
	}

	// Add user message to history
	m.history = append(m.history, Message{
		Role:    "user",
		Content: input,
		Time:    time.Now(),
	})
	// Append to input history
	if len(m.inputHistory) == 0 || m.inputHistory[len(m.inputHistory)-1] != input {
		m.inputHistory = append(m.inputHistory, input)
	}
	m.historyIndex = len(m.inputHistory)

	m.textarea.Reset()
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()

	// Create the session row lazily on the first send, titled from it.
	if !m.sessionPersist {
		m.sessionTitle = memory.Preview(input, 60)
		if err := m.back.store.CreateSession(m.sessionID, m.sessionTitle, store.KindChat, m.cfg.Gemini.Model); err != nil {
			m.appendNotice("Could not save the session: " + err.Error())
			return m, nil
		}
		_ = m.back.store.SetLastSessionID(m.sessionID)
		m.sessionPersist = true
	}

	m.isLoading = true
	m.statusMessage = "thinking..."

	// Staged attachments ride along exactly once.
	staged := m.staged
	m.staged = nil

	ch := make(chan string, 64)
	m.streamCh = ch

	return m, tea.Batch(
		m.spinner.Tick,
		m.startStream(input, staged, ch),
		m.waitForStream(),
	)
}

// startStream runs the whole model exchange off the UI thread: persist
// the user turn, stream the reply into ch, persist the reply, then
// compact if the session crossed its token budget. The returned
// streamDoneMsg carries the authoritative full reply; chunks dropped
// by a busy UI frame cost nothing.
func (m Model) startStream(input string, staged []media.StagedFile, ch chan string) tea.Cmd {
	back := m.back
	cfg := m.cfg
	sessionID := m.sessionID
	parent := m.shutdownCtx

	return func() tea.Msg {
		defer close(ch)

		ctx, cancel := context.WithTimeout(parent, cfg.GetGeminiTimeout())
		defer cancel()

		prior, err := back.store.Messages(sessionID)
		if err != nil {
			return streamDoneMsg{err: err}
		}
		contents := memory.ToContents(prior)

		parts := []gemini.Part{{Text: input}}
		var attachRefs []string
		if len(staged) > 0 {
			payload, err := back.media.BuildParts(ctx, back.client, staged)
			if err != nil {
				return streamDoneMsg{err: err}
			}
			parts = append(parts, payload.Parts...)
			for _, f := range staged {
				attachRefs = append(attachRefs, f.Path)
			}
		}
		contents = append(contents, gemini.Content{Role: gemini.RoleUser, Parts: parts})

		// The user turn is written before the call so a crash or a
		// failed request never loses what was typed.
		seq, err := back.store.NextSeq(sessionID)
		if err != nil {
			return streamDoneMsg{err: err}
		}
		if err := back.store.AppendMessage(store.Message{
			SessionID:     sessionID,
			Seq:           seq,
			Role:          store.RoleUser,
			Content:       input,
			Attachments:   attachRefs,
			TokenEstimate: back.counter.CountString(input),
		}); err != nil {
			return streamDoneMsg{err: err}
		}

		logging.Chat("sending turn: session=%s chars=%d attachments=%d",
			sessionID, len(input), len(attachRefs))

		chunks, errs := back.client.StreamChat(ctx, chatSystemPrompt, contents)
		var reply strings.Builder
		for chunk := range chunks {
			reply.WriteString(chunk)
			select {
			case ch <- chunk:
			default:
			}
		}
		if err := <-errs; err != nil {
			return streamDoneMsg{err: err}
		}
		replyText := reply.String()

		seq, err = back.store.NextSeq(sessionID)
		if err != nil {
			return streamDoneMsg{reply: replyText, err: err}
		}
		if err := back.store.AppendMessage(store.Message{
			SessionID:     sessionID,
			Seq:           seq,
			Role:          store.RoleModel,
			Content:       replyText,
			TokenEstimate: back.counter.CountString(replyText),
		}); err != nil {
			return streamDoneMsg{reply: replyText, err: err}
		}
		_ = back.store.TouchSession(sessionID, "")

		compacted := 0
		if report, err := back.compactor.Manage(ctx, sessionID); err != nil {
			logging.Get(logging.CategoryMemory).Warn("compaction failed: %v", err)
		} else if report.Compacted() {
			compacted = report.MessagesSummarized
		}

		tokens := 0
		if after, err := back.store.Messages(sessionID); err == nil {
			tokens = back.counter.CountHistory(after)
		}

		return streamDoneMsg{reply: replyText, tokens: tokens, compacted: compacted}
	}
}

// stageFile copies one file into the staging area off the UI thread.
func (m Model) stageFile(path string) tea.Cmd {
	back := m.back
	sessionID := m.sessionID
	return func() tea.Msg {
		file, err := back.media.Attach(sessionID, path)
		if err != nil {
			return stagedMsg{err: err}
		}
		return stagedMsg{file: file}
	}
}
