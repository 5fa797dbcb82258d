package chat

import (
	"context"
	"sync"
	"time"

	"omnichat/cmd/omni/ui"
	"omnichat/internal/config"
	"omnichat/internal/devices"
	"omnichat/internal/gemini"
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
	"github.com/charmbracelet/glamour"
)

// ViewMode determines which component is focused/active
type ViewMode int

const (
	ChatView ViewMode = iota
	ListView
	FilePickerView
)

// sessionItem is a list item for the session picker
type sessionItem struct {
	id, kind, date, desc string
}

func (i sessionItem) Title() string       { return i.date + "  [" + i.kind + "]" }
func (i sessionItem) Description() string { return i.desc }
func (i sessionItem) FilterValue() string { return i.id + " " + i.desc }

// Message represents a single message in the chat history
type Message struct {
	Role    string // "user", "assistant" or "notice"
	Content string
	Time    time.Time
}

// backend holds the services the chat interface drives. Built during
// the async boot so a slow disk or network never blocks the first
// paint.
type backend struct {
	store     *store.Store
	client    *gemini.Client
	media     *media.Manager
	watcher   *media.Watcher
	compactor *memory.Compactor
	counter   *memory.TokenCounter
	searcher  *websearch.Summarizer
	research  *research.Agent
	youtube   *youtube.Summarizer
	scanner   *devices.Scanner
}

// Model is the main model for the interactive chat interface
type Model struct {
	// =========================================================================
	// UI COMPONENTS
	// =========================================================================
	textarea   textarea.Model
	viewport   viewport.Model
	spinner    spinner.Model
	list       list.Model
	filepicker filepicker.Model
	styles     ui.Styles
	renderer   *glamour.TermRenderer

	viewMode ViewMode

	// =========================================================================
	// STATE
	// =========================================================================
	history       []Message
	isLoading     bool
	isBooting     bool
	err           error
	width         int
	height        int
	ready         bool
	statusMessage string

	// Streaming reply currently being assembled
	streamingReply string
	streamCh       chan string

	// Input history (Up/Down recall)
	inputHistory []string
	historyIndex int

	// =========================================================================
	// SESSION STATE
	// =========================================================================
	sessionID      string
	sessionTitle   string
	sessionPersist bool // session row exists in the store
	turnCount      int
	tokensUsed     int

	// Staged attachments for the next message
	staged []media.StagedFile

	// =========================================================================
	// BACKEND
	// =========================================================================
	cfg  *config.Config
	back *backend

	// Shutdown coordination. Pointer so Model copies share the Once.
	shutdownOnce   *sync.Once
	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// Messages for tea updates
type (
	// bootCompleteMsg delivers the backend once storage, logging, and
	// the restored session are ready. err disables everything but the
	// UI shell.
	bootCompleteMsg struct {
		back      *backend
		sessionID string
		title     string
		persisted bool
		messages  []Message
		tokens    int
		err       error
	}

	responseMsg string // complete assistant reply from an async command
	noticeMsg   string // transient status line, not persisted
	errorMsg    error

	streamChunkMsg string
	streamDoneMsg  struct {
		reply     string
		tokens    int
		compacted int // messages folded away, 0 when no compaction ran
		err       error
	}

	sessionsLoadedMsg []sessionItem
	sessionLoadedMsg  struct {
		id       string
		title    string
		messages []Message
		tokens   int
	}

	stagedMsg struct {
		file *media.StagedFile
		err  error
	}
	inboxMsg media.StagedFile

	healthMsg struct {
		latency time.Duration
		err     error
	}
)
