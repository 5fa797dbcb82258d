package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeLLM struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.prompts = append(f.prompts, userPrompt)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// testStack wires a search server and page servers into a Summarizer.
func testStack(t *testing.T, llm *fakeLLM, pageBodies ...string) *Summarizer {
	t.Helper()

	var pageURLs []string
	for _, body := range pageBodies {
		body := body
		ps := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		}))
		t.Cleanup(ps.Close)
		pageURLs = append(pageURLs, ps.URL)
	}

	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [`)
		for i, u := range pageURLs {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"url": %q, "title": "page %d", "content": "desc"}`, u, i)
		}
		fmt.Fprint(w, `]}`)
	}))
	t.Cleanup(search.Close)

	return NewSummarizer(NewClient(search.URL), NewReader(), llm, 0)
}

func TestSummarizeSearch(t *testing.T) {
	llm := &fakeLLM{reply: "The best option is X."}
	s := testStack(t, llm,
		`<html><body><p>alpha page content</p></body></html>`,
		`<html><body><p>beta page content</p></body></html>`,
	)

	summary, err := s.SummarizeSearch(context.Background(), "what is the best option?")
	if err != nil {
		t.Fatalf("SummarizeSearch: %v", err)
	}
	if summary.Answer != "The best option is X." {
		t.Errorf("answer = %q", summary.Answer)
	}
	if len(summary.Sources) != 2 {
		t.Errorf("sources = %d, want 2", len(summary.Sources))
	}

	if len(llm.prompts) != 1 {
		t.Fatalf("LLM calls = %d, want 1", len(llm.prompts))
	}
	prompt := llm.prompts[0]
	for _, want := range []string{
		"Based on the following web content, what is the best option?",
		"alpha page content",
		"beta page content",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestSummarizeSearch_SkipsDeadPages(t *testing.T) {
	llm := &fakeLLM{reply: "answer"}

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer dead.Close()
	alive := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>still here</p></body></html>`)
	}))
	defer alive.Close()

	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"results": [
			{"url": %q, "title": "dead", "content": ""},
			{"url": %q, "title": "alive", "content": ""}
		]}`, dead.URL, alive.URL)
	}))
	defer search.Close()

	s := NewSummarizer(NewClient(search.URL), NewReader(), llm, 0)
	summary, err := s.SummarizeSearch(context.Background(), "q")
	if err != nil {
		t.Fatalf("SummarizeSearch: %v", err)
	}
	if len(summary.Sources) != 1 || summary.Sources[0].Title != "alive" {
		t.Errorf("sources = %+v", summary.Sources)
	}
}

func TestSummarizeSearch_NoResults(t *testing.T) {
	llm := &fakeLLM{}
	s := testStack(t, llm)
	if _, err := s.SummarizeSearch(context.Background(), "q"); err == nil {
		t.Fatal("expected an error when the search returns nothing")
	}
	if len(llm.prompts) != 0 {
		t.Errorf("LLM should not be called, got %d calls", len(llm.prompts))
	}
}

func TestSummarizeSearch_AllPagesDead(t *testing.T) {
	llm := &fakeLLM{}
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer dead.Close()
	search := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"results": [{"url": %q, "title": "dead", "content": ""}]}`, dead.URL)
	}))
	defer search.Close()

	s := NewSummarizer(NewClient(search.URL), NewReader(), llm, 0)
	if _, err := s.SummarizeSearch(context.Background(), "q"); err == nil {
		t.Fatal("expected an error when every page fails")
	}
}

func TestSummarizeURL(t *testing.T) {
	llm := &fakeLLM{reply: "A short summary."}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><article>Long article text here.</article></body></html>`)
	}))
	defer ts.Close()

	s := NewSummarizer(NewClient("http://unused.invalid"), NewReader(), llm, 0)
	summary, err := s.SummarizeURL(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("SummarizeURL: %v", err)
	}
	if summary != "A short summary." {
		t.Errorf("summary = %q", summary)
	}
	if !strings.Contains(llm.prompts[0], "concise summary") || !strings.Contains(llm.prompts[0], "Long article text") {
		t.Errorf("prompt = %q", llm.prompts[0])
	}
}

func TestSummarizeURL_LLMFailure(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("quota")}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>text</p></body></html>`)
	}))
	defer ts.Close()

	s := NewSummarizer(NewClient("http://unused.invalid"), NewReader(), llm, 0)
	if _, err := s.SummarizeURL(context.Background(), ts.URL); err == nil {
		t.Fatal("expected the LLM error to surface")
	}
}
