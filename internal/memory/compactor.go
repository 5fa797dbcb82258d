package memory

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"omnichat/internal/logging"
	"omnichat/internal/store"
)

// =============================================================================
// Context Compactor
// =============================================================================
// Long sessions eventually outgrow the model's context window. The
// compactor watches the token total and, past a threshold, folds the
// oldest tenth of the history into an LLM-written summary installed as
// the first turn pair. Summaries also land in the recall table so they
// stay searchable after further compaction rounds.

// Summary turn markers. The summary pair sits at the head of a
// compacted history; a later round folds it into the next summary.
const (
	summaryPrefix = "[Conversation summary]\n"
	summaryAck    = "Understood. Continuing from that summary."
)

const summarySystemPrompt = "You compress chat history. Summarize the " +
	"conversation excerpt concisely, keeping user goals, decisions, facts " +
	"established, and unresolved questions. Write plain prose, max 300 words."

// Summarizer is the LLM surface the compactor needs.
type Summarizer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Config holds the compaction thresholds.
type Config struct {
	// SummarizeThreshold triggers the first compaction round.
	SummarizeThreshold int
	// HardLimit triggers additional rounds until the history fits.
	HardLimit int
	// CompactFraction is the share of tokens folded per round.
	CompactFraction float64
}

// DefaultConfig returns thresholds sized for a 1M-token context model.
func DefaultConfig() Config {
	return Config{
		SummarizeThreshold: 800_000,
		HardLimit:          900_000,
		CompactFraction:    0.10,
	}
}

// Report describes what one Manage call did.
type Report struct {
	SessionID          string
	Rounds             int
	MessagesSummarized int
	TokensBefore       int
	TokensAfter        int
}

// Compacted reports whether any summarization happened.
func (r *Report) Compacted() bool {
	return r != nil && r.Rounds > 0
}

// Compactor manages a session's context budget.
type Compactor struct {
	store   *store.Store
	llm     Summarizer
	counter *TokenCounter
	cfg     Config
}

// NewCompactor creates a compactor over the given store and LLM.
func NewCompactor(st *store.Store, llm Summarizer, cfg Config) *Compactor {
	if cfg.SummarizeThreshold <= 0 {
		cfg = DefaultConfig()
	}
	return &Compactor{
		store:   st,
		llm:     llm,
		counter: NewTokenCounter(),
		cfg:     cfg,
	}
}

// Manage checks a session's token total and compacts as needed.
// Returns a report; Rounds is zero when nothing was done.
func (c *Compactor) Manage(ctx context.Context, sessionID string) (*Report, error) {
	timer := logging.StartTimer(logging.CategoryMemory, "Manage")
	defer timer.Stop()

	report := &Report{SessionID: sessionID}

	msgs, err := c.store.Messages(sessionID)
	if err != nil {
		return nil, err
	}
	total := c.counter.CountHistory(msgs)
	report.TokensBefore = total
	report.TokensAfter = total

	if total <= c.cfg.SummarizeThreshold {
		return report, nil
	}

	logging.Memory("Context over threshold: session=%s tokens=%d threshold=%d",
		sessionID, total, c.cfg.SummarizeThreshold)

	// First round fires past the summarize threshold; further rounds
	// only while the history still exceeds the hard limit.
	for {
		summarized, err := c.compactOnce(ctx, sessionID, msgs, total)
		if err != nil {
			return report, err
		}
		if summarized == 0 {
			break
		}
		report.Rounds++
		report.MessagesSummarized += summarized

		msgs, err = c.store.Messages(sessionID)
		if err != nil {
			return report, err
		}
		total = c.counter.CountHistory(msgs)
		if total <= c.cfg.HardLimit {
			break
		}
		logging.Memory("Still over hard limit after round %d: tokens=%d", report.Rounds, total)
	}

	report.TokensAfter = total

	if report.Compacted() {
		logging.Memory("Compaction done: session=%s rounds=%d summarized=%d tokens %d -> %d",
			sessionID, report.Rounds, report.MessagesSummarized, report.TokensBefore, report.TokensAfter)
		logging.Usage().Log(logging.UsageEvent{
			EventType: logging.UsageCompaction,
			SessionID: sessionID,
			Success:   true,
			Tokens:    report.TokensAfter,
			Message: fmt.Sprintf("rounds=%d summarized=%d tokens=%d->%d",
				report.Rounds, report.MessagesSummarized, report.TokensBefore, report.TokensAfter),
		})
	}

	return report, nil
}

// compactOnce folds the oldest tenth of the history into a summary.
// Returns the number of messages summarized (0 when nothing was done).
func (c *Compactor) compactOnce(ctx context.Context, sessionID string, msgs []store.Message, total int) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	target := int(float64(total) * c.cfg.CompactFraction)

	// Walk the oldest messages while they fit the target.
	cut := 0
	cutTokens := 0
	for _, msg := range msgs {
		t := c.counter.EffectiveTokens(msg)
		if cutTokens+t > target {
			break
		}
		cut++
		cutTokens += t
	}

	// Keep user/model pairs intact.
	cut -= cut % 2

	// The head must actually shrink the history. Re-summarizing a lone
	// previous summary pair buys nothing, so pull the next pair in too.
	minCut := 2
	if strings.HasPrefix(msgs[0].Content, summaryPrefix) {
		minCut = 4
	}
	if cut < minCut {
		cut = minCut
	}

	// Always keep the most recent pair for continuity.
	if cut > len(msgs)-2 {
		cut = len(msgs) - 2
		cut -= cut % 2
	}
	if cut < minCut {
		return 0, nil
	}

	head := msgs[:cut]
	summary := c.summarize(ctx, head)
	if summary == "" {
		return 0, nil
	}

	counter := c.counter
	summaryMsg := store.Message{
		Role:          store.RoleUser,
		Content:       summaryPrefix + summary,
		TokenEstimate: counter.CountString(summaryPrefix + summary),
	}
	ackMsg := store.Message{
		Role:          store.RoleModel,
		Content:       summaryAck,
		TokenEstimate: counter.CountString(summaryAck),
	}

	compacted := make([]store.Message, 0, len(msgs)-cut+2)
	compacted = append(compacted, summaryMsg, ackMsg)
	compacted = append(compacted, msgs[cut:]...)

	if err := c.store.ReplaceMessages(sessionID, compacted); err != nil {
		return 0, fmt.Errorf("failed to install compacted history: %w", err)
	}

	// Keep the summary findable after it is itself compacted away.
	if err := c.store.AddRecall(ctx, sessionID, summary, map[string]interface{}{
		"type":  "compaction",
		"turns": cut,
	}); err != nil {
		logging.Get(logging.CategoryMemory).Warn("Failed to store compaction summary in recall: %v", err)
	}

	logging.MemoryDebug("Compacted %d messages (%d tokens) into %d-token summary",
		cut, c.counter.CountHistory(head), summaryMsg.TokenEstimate)
	return cut, nil
}

// summarize asks the LLM for a summary, degrading to a mechanical one
// when the call fails.
func (c *Compactor) summarize(ctx context.Context, head []store.Message) string {
	prompt := buildSummaryPrompt(head)

	if c.llm != nil {
		summary, err := c.llm.Complete(ctx, summarySystemPrompt, prompt)
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary)
		}
		if err != nil {
			logging.Get(logging.CategoryMemory).Warn("Summary LLM call failed, using fallback: %v", err)
		}
	}

	return simpleSummary(head)
}

// buildSummaryPrompt lays the excerpt out as role-tagged turns.
func buildSummaryPrompt(head []store.Message) string {
	var sb strings.Builder
	sb.WriteString("Conversation excerpt to summarize:\n\n")
	for _, msg := range head {
		sb.WriteString(strings.ToUpper(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Summary:")
	return sb.String()
}

// simpleSummary lists the first line of each turn. Lossy, but keeps
// the compaction loop moving when the LLM is unreachable.
func simpleSummary(head []store.Message) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Earlier conversation (%d turns):\n", len(head)))
	for _, msg := range head {
		line := msg.Content
		if idx := strings.IndexByte(line, '\n'); idx >= 0 {
			line = line[:idx]
		}
		if utf8.RuneCountInString(line) > 120 {
			runes := []rune(line)
			line = string(runes[:120])
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n", msg.Role, line))
	}
	return sb.String()
}
