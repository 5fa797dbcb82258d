// Package chat provides the interactive TUI for omni.
// The chat functionality is split across multiple files:
//   - model_types.go: Model struct, view modes, tea message types
//   - model.go: construction, Init, boot, lifecycle (this file)
//   - model_update.go: the Update loop
//   - commands.go: /command handling
//   - process.go: message sending and streaming
//   - session.go: session list, switching, persistence
//   - view.go: rendering
//   - welcome.go: first-paint banner and health check
package chat

import (
	"context"
	"os"
	"sync"
	"time"

	"omnichat/cmd/omni/ui"
	"omnichat/internal/config"
	"omnichat/internal/devices"
	"omnichat/internal/gemini"
	"omnichat/internal/logging"
	"omnichat/internal/media"
	"omnichat/internal/memory"
	"omnichat/internal/research"
	"omnichat/internal/store"
	"omnichat/internal/websearch"
	"omnichat/internal/youtube"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
)

const inputPlaceholder = "Ask me anything... (Enter to send, Alt+Enter for newline, /help for commands)"

// New builds the chat model. Only UI components are constructed here;
// storage, logging, and the Gemini client come up in the boot command
// so the first frame paints immediately.
func New(cfg *config.Config) Model {
	styles := ui.DefaultStyles()

	ta := textarea.New()
	ta.Placeholder = inputPlaceholder
	ta.Focus()
	ta.Prompt = "│ "
	ta.CharLimit = 8192
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.FocusedStyle.Prompt = styles.Prompt
	ta.FocusedStyle.Text = styles.UserInput

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	li := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	li.Title = "Saved Sessions"
	li.SetShowStatusBar(false)

	fp := filepicker.New()
	fp.AllowedTypes = []string{".png", ".jpg", ".jpeg", ".mp4", ".avi", ".mov", ".mp3", ".wav", ".txt", ".pdf"}
	if home, err := os.UserHomeDir(); err == nil {
		fp.CurrentDirectory = home
	}

	var renderer *glamour.TermRenderer
	if styles.Theme.IsDark {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
	} else {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("light"),
			glamour.WithWordWrap(80),
		)
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	return Model{
		textarea:       ta,
		viewport:       vp,
		spinner:        sp,
		list:           li,
		filepicker:     fp,
		styles:         styles,
		renderer:       renderer,
		viewMode:       ChatView,
		history:        []Message{},
		isBooting:      true,
		sessionTitle:   "New chat",
		cfg:            cfg,
		shutdownOnce:   &sync.Once{},
		shutdownCtx:    shutdownCtx,
		shutdownCancel: shutdownCancel,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		tea.EnableMouseCellMotion,
		m.performBoot(),
	)
}

// performBoot brings up storage and the model client off the UI
// thread, restoring the previous session when one exists.
func (m Model) performBoot() tea.Cmd {
	cfg := m.cfg
	return func() tea.Msg {
		if err := logging.Initialize(cfg.DataDir()); err != nil {
			return bootCompleteMsg{err: err}
		}
		logging.Boot("chat interface starting (model %s)", cfg.Gemini.Model)

		st, err := store.Open(cfg.DatabasePath())
		if err != nil {
			return bootCompleteMsg{err: err}
		}

		client, err := bootClient(cfg)
		if err != nil {
			st.Close()
			return bootCompleteMsg{err: err}
		}

		mgr := media.NewManager(cfg.MediaRoot(), cfg.Media.MaxFileBytes, cfg.Media.MaxPayloadBytes)
		counter := memory.NewTokenCounter()

		back := &backend{
			store:     st,
			client:    client,
			media:     mgr,
			counter:   counter,
			compactor: memory.NewCompactor(st, client, compactorConfig(cfg)),
			searcher:  bootSearcher(cfg, client),
			youtube:   youtube.NewSummarizer(client, youtube.NewMetadataClient(""), st),
			scanner:   devices.New(),
		}
		back.research = bootResearch(cfg, client, st)

		// Last session restore. A missing or deleted session falls
		// through to a fresh one.
		msg := bootCompleteMsg{back: back, sessionID: uuid.NewString(), title: "New chat"}
		if lastID, err := st.LastSessionID(); err == nil && lastID != "" {
			if sess, err := st.GetSession(lastID); err == nil && sess.Kind == store.KindChat {
				stored, err := st.Messages(sess.ID)
				if err == nil {
					msg.sessionID = sess.ID
					msg.title = sess.Title
					msg.persisted = true
					msg.messages = toUIMessages(stored)
					msg.tokens = counter.CountHistory(stored)
				}
			}
		}

		return msg
	}
}

// bootClient mirrors the CLI client construction; kept separate so the
// TUI can boot without a key and show the hint instead of dying.
func bootClient(cfg *config.Config) (*gemini.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gc := gemini.DefaultConfig(cfg.Gemini.APIKey)
	gc.Model = cfg.Gemini.Model
	gc.BaseURL = cfg.Gemini.BaseURL
	gc.Timeout = cfg.GetGeminiTimeout()
	gc.MaxOutputTokens = cfg.Gemini.MaxOutputTokens
	gc.Temperature = cfg.Gemini.Temperature
	return gemini.New(gc), nil
}

func compactorConfig(cfg *config.Config) memory.Config {
	mc := memory.DefaultConfig()
	if cfg.Memory.SummarizeThreshold > 0 {
		mc.SummarizeThreshold = cfg.Memory.SummarizeThreshold
	}
	if cfg.Memory.HardLimit > 0 {
		mc.HardLimit = cfg.Memory.HardLimit
	}
	if cfg.Memory.SummarizeFraction > 0 {
		mc.CompactFraction = cfg.Memory.SummarizeFraction
	}
	return mc
}

func bootSearcher(cfg *config.Config, client *gemini.Client) *websearch.Summarizer {
	search := websearch.NewClient(cfg.Search.BaseURL)
	search.SetLimit(cfg.Search.MaxResults)
	reader := websearch.NewReader()
	if cfg.Search.RenderFallback {
		reader.SetRenderer(websearch.NewRodRenderer())
	}
	return websearch.NewSummarizer(search, reader, client, 3)
}

func bootResearch(cfg *config.Config, client *gemini.Client, st *store.Store) *research.Agent {
	search := websearch.NewClient(cfg.Search.BaseURL)
	search.SetLimit(cfg.Search.MaxResults)
	reader := websearch.NewReader()
	if cfg.Search.RenderFallback {
		reader.SetRenderer(websearch.NewRodRenderer())
	}
	return research.NewAgent(search, reader, client, st, research.DefaultConfig())
}

// startInbox launches the media inbox watcher once the backend is up.
// Returns nil when the inbox is disabled.
func (m Model) startInbox() tea.Cmd {
	if m.back == nil || !m.cfg.Media.InboxEnabled {
		return nil
	}
	watcher := media.NewWatcher(m.back.media, m.cfg.InboxDir())
	watcher.SetSession(m.sessionID)
	if err := watcher.Start(m.shutdownCtx); err != nil {
		logging.Media("inbox watcher unavailable: %v", err)
		return nil
	}
	m.back.watcher = watcher
	return m.waitForInbox()
}

// waitForInbox relays one watcher event into the update loop, then
// re-arms itself.
func (m Model) waitForInbox() tea.Cmd {
	if m.back == nil || m.back.watcher == nil {
		return nil
	}
	ch := m.back.watcher.Events()
	return func() tea.Msg {
		file, ok := <-ch
		if !ok {
			return nil
		}
		return inboxMsg(file)
	}
}

// waitForStream returns the next streamed chunk, re-armed from Update
// after every chunk until the channel closes.
func (m Model) waitForStream() tea.Cmd {
	ch := m.streamCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		chunk, ok := <-ch
		if !ok {
			return nil
		}
		return streamChunkMsg(chunk)
	}
}

// Shutdown gracefully stops background goroutines and releases
// resources. Safe to call multiple times. MUST run before tea.Quit so
// the watcher and the store do not outlive the program.
func (m *Model) Shutdown() {
	m.shutdownOnce.Do(func() {
		if m.shutdownCancel != nil {
			m.shutdownCancel()
		}
		if m.back == nil {
			return
		}
		if m.back.watcher != nil {
			m.back.watcher.Stop()
		}
		if m.back.store != nil {
			_ = m.back.store.SetLastSessionID(m.sessionID)
			m.back.store.Close()
		}
		logging.CloseAll()
	})
}

// performShutdown is a value-receiver wrapper for Shutdown() so it can
// be called from Update(). Safe because Shutdown uses sync.Once behind
// a pointer.
func (m Model) performShutdown() {
	modelPtr := &m
	modelPtr.Shutdown()
}

// appendNotice adds a transient system line to the history.
func (m *Model) appendNotice(text string) {
	m.history = append(m.history, Message{Role: "notice", Content: text, Time: time.Now()})
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

// appendAssistant adds an assistant reply to the history.
func (m *Model) appendAssistant(text string) {
	m.history = append(m.history, Message{Role: "assistant", Content: text, Time: time.Now()})
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

// toUIMessages converts stored turns into render messages.
func toUIMessages(stored []store.Message) []Message {
	out := make([]Message, 0, len(stored))
	for _, msg := range stored {
		role := "user"
		if msg.Role == store.RoleModel {
			role = "assistant"
		}
		out = append(out, Message{Role: role, Content: msg.Content, Time: msg.CreatedAt})
	}
	return out
}
