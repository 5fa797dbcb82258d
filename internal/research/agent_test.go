package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"omnichat/internal/store"
	"omnichat/internal/websearch"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]websearch.Result
	queries []string
}

func (f *fakeSearcher) Search(ctx context.Context, query string) ([]websearch.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.results[query], nil
}

type fakeReader struct {
	mu    sync.Mutex
	pages map[string]string
	fail  map[string]bool
	calls int
}

func (f *fakeReader) ReadPage(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[url] {
		return "", errors.New("fetch failed")
	}
	text, ok := f.pages[url]
	if !ok {
		return "", errors.New("unknown page")
	}
	return text, nil
}

// scriptedLLM returns canned replies in order.
type scriptedLLM struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	systems []string
	prompts []string
}

func (f *scriptedLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.prompts)
	f.systems = append(f.systems, systemPrompt)
	f.prompts = append(f.prompts, userPrompt)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return "", errors.New("no scripted reply")
}

func testAgent(t *testing.T, search Searcher, reader PageReader, llm LLM, persist bool) *Agent {
	t.Helper()
	var st *store.Store
	if persist {
		var err error
		st, err = store.Open(":memory:")
		if err != nil {
			t.Fatalf("open store: %v", err)
		}
		t.Cleanup(func() { st.Close() })
	}
	return NewAgent(search, reader, llm, st, Config{})
}

func TestRun_FullPipeline(t *testing.T) {
	search := &fakeSearcher{results: map[string][]websearch.Result{
		"angle one": {
			{URL: "https://a.example", Title: "A"},
			{URL: "https://b.example", Title: "B"},
		},
		"angle two": {
			{URL: "https://b.example", Title: "B again"},
			{URL: "https://c.example", Title: "C"},
		},
	}}
	reader := &fakeReader{pages: map[string]string{
		"https://a.example": "text of A",
		"https://b.example": "text of B",
		"https://c.example": "text of C",
	}}
	llm := &scriptedLLM{replies: []string{
		`["angle one", "angle two"]`,
		"### Big Headline\n\nreport body",
	}}

	agent := testAgent(t, search, reader, llm, true)
	var stages []string
	agent.OnProgress = func(p Progress) { stages = append(stages, p.Stage) }

	report, err := agent.Run(context.Background(), "what is happening?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.Markdown != "### Big Headline\n\nreport body" {
		t.Errorf("markdown = %q", report.Markdown)
	}
	if len(report.Angles) != 2 {
		t.Errorf("angles = %v", report.Angles)
	}

	// Duplicate URLs collapse, order follows first sighting.
	wantSources := []string{"https://a.example", "https://b.example", "https://c.example"}
	if len(report.Sources) != len(wantSources) {
		t.Fatalf("sources = %+v", report.Sources)
	}
	for i, want := range wantSources {
		if report.Sources[i].URL != want {
			t.Errorf("source[%d] = %q, want %q", i, report.Sources[i].URL, want)
		}
	}

	// The report call carries the brief and the page text.
	if len(llm.prompts) != 2 {
		t.Fatalf("LLM calls = %d, want 2", len(llm.prompts))
	}
	if !strings.Contains(llm.systems[1], "investigative journalist") {
		t.Errorf("report system prompt = %q", shorten(llm.systems[1], 80))
	}
	for _, want := range []string{"Research topic: what is happening?", "text of A", "text of C", "Source 3"} {
		if !strings.Contains(llm.prompts[1], want) {
			t.Errorf("report prompt missing %q", want)
		}
	}

	wantStages := []string{"planning", "searching", "reading", "writing", "done"}
	if len(stages) != len(wantStages) {
		t.Fatalf("stages = %v", stages)
	}
	for i, want := range wantStages {
		if stages[i] != want {
			t.Errorf("stage[%d] = %q, want %q", i, stages[i], want)
		}
	}
}

func TestRun_PersistsSession(t *testing.T) {
	search := &fakeSearcher{results: map[string][]websearch.Result{
		"the topic": {{URL: "https://a.example", Title: "A"}},
	}}
	reader := &fakeReader{pages: map[string]string{"https://a.example": "content"}}
	llm := &scriptedLLM{
		errs:    []error{errors.New("planner down")},
		replies: []string{"", "the report"},
	}

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	agent := NewAgent(search, reader, llm, st, Config{})

	report, err := agent.Run(context.Background(), "the topic")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.SessionID == "" {
		t.Fatal("expected a persisted session id")
	}

	sess, err := st.GetSession(report.SessionID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if sess.Kind != store.KindResearch {
		t.Errorf("kind = %q", sess.Kind)
	}

	msgs, err := st.Messages(report.SessionID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if msgs[0].Role != store.RoleUser || msgs[0].Content != "the topic" {
		t.Errorf("first message = %+v", msgs[0])
	}
	if msgs[1].Role != store.RoleModel || msgs[1].Content != "the report" {
		t.Errorf("second message = %+v", msgs[1])
	}
}

func TestRun_PlanFailureFallsBackToQuery(t *testing.T) {
	search := &fakeSearcher{results: map[string][]websearch.Result{
		"raw query": {{URL: "https://a.example", Title: "A"}},
	}}
	reader := &fakeReader{pages: map[string]string{"https://a.example": "content"}}
	llm := &scriptedLLM{
		errs:    []error{errors.New("planner down")},
		replies: []string{"", "report"},
	}

	agent := testAgent(t, search, reader, llm, false)
	report, err := agent.Run(context.Background(), "raw query")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Angles) != 1 || report.Angles[0] != "raw query" {
		t.Errorf("angles = %v", report.Angles)
	}
	if len(search.queries) != 1 || search.queries[0] != "raw query" {
		t.Errorf("searches = %v", search.queries)
	}
}

func TestRun_DeadPagesAreDropped(t *testing.T) {
	search := &fakeSearcher{results: map[string][]websearch.Result{
		"q": {
			{URL: "https://dead.example", Title: "dead"},
			{URL: "https://alive.example", Title: "alive"},
		},
	}}
	reader := &fakeReader{
		pages: map[string]string{"https://alive.example": "content"},
		fail:  map[string]bool{"https://dead.example": true},
	}
	llm := &scriptedLLM{replies: []string{`["q"]`, "report"}}

	agent := testAgent(t, search, reader, llm, false)
	report, err := agent.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Sources) != 1 || report.Sources[0].Title != "alive" {
		t.Errorf("sources = %+v", report.Sources)
	}
}

func TestRun_NoResultsAnywhere(t *testing.T) {
	search := &fakeSearcher{results: map[string][]websearch.Result{}}
	llm := &scriptedLLM{replies: []string{`["q"]`}}

	agent := testAgent(t, search, &fakeReader{}, llm, false)
	if _, err := agent.Run(context.Background(), "q"); err == nil {
		t.Fatal("expected an error with no search results")
	}
	// Only the planning call happened.
	if len(llm.prompts) != 1 {
		t.Errorf("LLM calls = %d, want 1", len(llm.prompts))
	}
}

func TestRun_AllPagesFail(t *testing.T) {
	search := &fakeSearcher{results: map[string][]websearch.Result{
		"q": {{URL: "https://dead.example", Title: "dead"}},
	}}
	reader := &fakeReader{fail: map[string]bool{"https://dead.example": true}}
	llm := &scriptedLLM{replies: []string{`["q"]`}}

	agent := testAgent(t, search, reader, llm, false)
	if _, err := agent.Run(context.Background(), "q"); err == nil {
		t.Fatal("expected an error when every page fails")
	}
}

func TestRun_MaxSourcesCap(t *testing.T) {
	var results []websearch.Result
	pages := map[string]string{}
	for i := 0; i < 6; i++ {
		url := fmt.Sprintf("https://p%d.example", i)
		results = append(results, websearch.Result{URL: url, Title: fmt.Sprintf("p%d", i)})
		pages[url] = "content"
	}
	search := &fakeSearcher{results: map[string][]websearch.Result{"q": results}}
	reader := &fakeReader{pages: pages}
	llm := &scriptedLLM{replies: []string{`["q"]`, "report"}}

	agent := NewAgent(search, reader, llm, nil, Config{MaxSources: 2})
	report, err := agent.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Sources) != 2 {
		t.Errorf("sources = %d, want 2", len(report.Sources))
	}
	if reader.calls != 2 {
		t.Errorf("reader calls = %d, want 2", reader.calls)
	}
}

func TestGuardQuerySize(t *testing.T) {
	small := "normal question"
	if got := guardQuerySize(small); got != small {
		t.Errorf("small query changed: %q", got)
	}

	huge := strings.Repeat("ab", 6*1024*1024) // 12MB
	got := guardQuerySize(huge)
	if len(got) > truncatedQueryBytes {
		t.Errorf("truncated to %d bytes, want <= %d", len(got), truncatedQueryBytes)
	}

	// Truncation never splits a multi-byte rune.
	wide := strings.Repeat("日", 4*1024*1024) // 12MB of 3-byte runes
	got = guardQuerySize(wide)
	if !utf8.ValidString(got) {
		t.Error("truncation split a rune")
	}
	if len(got) > truncatedQueryBytes {
		t.Errorf("truncated to %d bytes, want <= %d", len(got), truncatedQueryBytes)
	}
}
