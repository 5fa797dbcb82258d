// Package research runs multi-angle web research and writes a
// structured report. A query is planned into several search angles,
// the result pages are fetched concurrently, and the collected text
// is handed to the model with an investigative-journalist brief.
package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"omnichat/internal/logging"
	"omnichat/internal/store"
	"omnichat/internal/websearch"
)

const (
	// maxQueryBytes guards against a runaway query payload. Anything
	// larger is truncated to truncatedQueryBytes before planning.
	maxQueryBytes       = 10 * 1024 * 1024
	truncatedQueryBytes = 5 * 1024 * 1024
)

// Searcher finds candidate pages for a search angle.
type Searcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// PageReader turns a URL into readable text.
type PageReader interface {
	ReadPage(ctx context.Context, url string) (string, error)
}

// LLM is the completion surface the agent needs.
type LLM interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config bounds a research run.
type Config struct {
	MaxSources      int // pages read into the report
	ConcurrentFetch int // parallel page fetches
}

// DefaultConfig returns the bounds used by the CLI.
func DefaultConfig() Config {
	return Config{
		MaxSources:      8,
		ConcurrentFetch: 4,
	}
}

// Progress reports what the agent is doing, for UIs that show status
// while a run is in flight.
type Progress struct {
	Stage  string
	Detail string
}

// Source is a page that informed the report.
type Source struct {
	URL   string
	Title string
}

// Report is the outcome of a research run.
type Report struct {
	SessionID string
	Query     string
	Markdown  string
	Angles    []string
	Sources   []Source
	Duration  time.Duration
}

// Agent orchestrates plan, search, read, and write.
type Agent struct {
	search Searcher
	reader PageReader
	llm    LLM
	store  *store.Store
	cfg    Config

	// OnProgress, when set, receives stage transitions.
	OnProgress func(Progress)
}

// NewAgent wires the agent. st may be nil to skip persistence.
func NewAgent(search Searcher, reader PageReader, llm LLM, st *store.Store, cfg Config) *Agent {
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = DefaultConfig().MaxSources
	}
	if cfg.ConcurrentFetch <= 0 {
		cfg.ConcurrentFetch = DefaultConfig().ConcurrentFetch
	}
	return &Agent{search: search, reader: reader, llm: llm, store: st, cfg: cfg}
}

func (a *Agent) progress(stage, format string, args ...interface{}) {
	detail := fmt.Sprintf(format, args...)
	logging.Research("%s: %s", stage, detail)
	if a.OnProgress != nil {
		a.OnProgress(Progress{Stage: stage, Detail: detail})
	}
}

// pageDigest is one fetched page ready for the report prompt.
type pageDigest struct {
	source Source
	text   string
}

// Run researches a query end to end and returns the written report.
func (a *Agent) Run(ctx context.Context, query string) (*Report, error) {
	start := time.Now()
	query = guardQuerySize(query)
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty research query")
	}

	timer := logging.StartTimer(logging.CategoryResearch, "research run")
	defer timer.Stop()

	a.progress("planning", "breaking %q into search angles", shorten(query, 80))
	angles := a.planAngles(ctx, query)

	a.progress("searching", "running %d search(es)", len(angles))
	candidates := a.collectCandidates(ctx, angles)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no search results for any angle of %q", shorten(query, 80))
	}

	a.progress("reading", "fetching up to %d of %d candidate page(s)", a.cfg.MaxSources, len(candidates))
	digests := a.fetchPages(ctx, candidates)
	if len(digests) == 0 {
		return nil, fmt.Errorf("none of the candidate pages could be read")
	}

	a.progress("writing", "composing report from %d source(s)", len(digests))
	markdown, err := a.llm.Complete(ctx, reportSystemPrompt(), buildReportPrompt(query, digests))
	if err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	report := &Report{
		Query:    query,
		Markdown: markdown,
		Angles:   angles,
		Duration: time.Since(start),
	}
	for _, d := range digests {
		report.Sources = append(report.Sources, d.source)
	}

	if a.store != nil {
		if err := a.persist(report); err != nil {
			logging.ResearchDebug("persist report: %v", err)
		}
	}

	a.progress("done", "report ready (%d sources, %v)", len(report.Sources), report.Duration.Round(time.Second))
	return report, nil
}

// collectCandidates searches every angle and dedupes results by URL,
// keeping first-seen order.
func (a *Agent) collectCandidates(ctx context.Context, angles []string) []websearch.Result {
	seen := make(map[string]bool)
	var candidates []websearch.Result
	for _, angle := range angles {
		results, err := a.search.Search(ctx, angle)
		if err != nil {
			logging.ResearchDebug("search %q: %v", angle, err)
			continue
		}
		for _, res := range results {
			if seen[res.URL] {
				continue
			}
			seen[res.URL] = true
			candidates = append(candidates, res)
		}
	}
	return candidates
}

// fetchPages reads candidate pages concurrently, preserving candidate
// order in the result. Failed pages are dropped.
func (a *Agent) fetchPages(ctx context.Context, candidates []websearch.Result) []pageDigest {
	if len(candidates) > a.cfg.MaxSources {
		candidates = candidates[:a.cfg.MaxSources]
	}

	var mu sync.Mutex
	texts := make([]string, len(candidates))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.cfg.ConcurrentFetch)
	for i, cand := range candidates {
		i, cand := i, cand
		eg.Go(func() error {
			text, err := a.reader.ReadPage(egCtx, cand.URL)
			if err != nil {
				logging.ResearchDebug("read %s: %v", cand.URL, err)
				return nil
			}
			mu.Lock()
			texts[i] = text
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	var digests []pageDigest
	for i, cand := range candidates {
		if texts[i] == "" {
			continue
		}
		digests = append(digests, pageDigest{
			source: Source{URL: cand.URL, Title: cand.Title},
			text:   texts[i],
		})
	}
	return digests
}

// persist stores the run as a research session: the query as the user
// turn, the report as the model turn.
func (a *Agent) persist(report *Report) error {
	id := uuid.NewString()
	title := shorten(report.Query, 60)
	if err := a.store.CreateSession(id, title, store.KindResearch, ""); err != nil {
		return err
	}
	if err := a.store.AppendMessage(store.Message{
		SessionID: id,
		Seq:       1,
		Role:      store.RoleUser,
		Content:   report.Query,
	}); err != nil {
		return err
	}
	if err := a.store.AppendMessage(store.Message{
		SessionID: id,
		Seq:       2,
		Role:      store.RoleModel,
		Content:   report.Markdown,
	}); err != nil {
		return err
	}
	report.SessionID = id
	return nil
}

// guardQuerySize truncates unreasonably large queries instead of
// sending them to the planner.
func guardQuerySize(query string) string {
	if len(query) <= maxQueryBytes {
		return query
	}
	logging.Research("query is %.2fMB, truncating to %dMB",
		float64(len(query))/(1024*1024), truncatedQueryBytes/(1024*1024))
	cut := truncatedQueryBytes
	for cut > 0 && !utf8RuneStart(query[cut]) {
		cut--
	}
	return query[:cut]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// shorten clamps a string for titles and log lines.
func shorten(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
