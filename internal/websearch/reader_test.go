package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const samplePage = `<html>
<head>
  <title>Sample Article</title>
  <style>body { color: red; }</style>
  <script>console.log("tracking")</script>
</head>
<body>
  <nav>Home About</nav>
  <article>
    <h1>Inflation   is
       back</h1>
    <p>Prices rose again this quarter.</p>
  </article>
  <script>moreTracking();</script>
  <noscript>Please enable JavaScript</noscript>
</body>
</html>`

func TestExtractText(t *testing.T) {
	text, err := ExtractText(samplePage)
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	for _, want := range []string{"Inflation is back", "Prices rose again this quarter.", "Home About"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q: %q", want, text)
		}
	}
	for _, banned := range []string{"console.log", "moreTracking", "color: red", "enable JavaScript"} {
		if strings.Contains(text, banned) {
			t.Errorf("text should not contain %q: %q", banned, text)
		}
	}
	if strings.Contains(text, "  ") {
		t.Errorf("whitespace not collapsed: %q", text)
	}
}

func TestPageTitle(t *testing.T) {
	if got := PageTitle(samplePage); got != "Sample Article" {
		t.Errorf("title = %q", got)
	}
	if got := PageTitle("<p>no title</p>"); got != "" {
		t.Errorf("expected empty title, got %q", got)
	}
}

func TestReadPage(t *testing.T) {
	var gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, samplePage)
	}))
	defer ts.Close()

	r := NewReader()
	text, err := r.ReadPage(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !strings.Contains(text, "Prices rose again") {
		t.Errorf("text = %q", text)
	}
	if !strings.HasPrefix(gotUA, "Mozilla/5.0") {
		t.Errorf("user agent = %q", gotUA)
	}
}

func TestReadPage_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	if _, err := NewReader().ReadPage(context.Background(), ts.URL); err == nil {
		t.Fatal("expected an error for HTTP 404")
	}
}

type fakeRenderer struct {
	html  string
	err   error
	calls int
}

func (f *fakeRenderer) Render(ctx context.Context, url string) (string, error) {
	f.calls++
	return f.html, f.err
}

func TestReadPage_RendererFallback(t *testing.T) {
	// A JS shell: almost no text until scripts run.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><div id="root"></div><script>boot()</script></body></html>`)
	}))
	defer ts.Close()

	renderer := &fakeRenderer{html: `<html><body><p>Hydrated content about coffee makers and more, enough text to count as a real page after rendering.</p></body></html>`}
	r := NewReader()
	r.SetRenderer(renderer)

	text, err := r.ReadPage(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if renderer.calls != 1 {
		t.Errorf("renderer calls = %d, want 1", renderer.calls)
	}
	if !strings.Contains(text, "Hydrated content") {
		t.Errorf("expected rendered text, got %q", text)
	}
}

func TestReadPage_RendererNotUsedForRealPages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, samplePage)
		// Pad the page so the extracted text clears the render floor.
		for i := 0; i < 20; i++ {
			fmt.Fprintf(w, "<p>paragraph %d with enough words to matter</p>", i)
		}
	}))
	defer ts.Close()

	renderer := &fakeRenderer{html: "<p>should never be seen</p>"}
	r := NewReader()
	r.SetRenderer(renderer)

	if _, err := r.ReadPage(context.Background(), ts.URL); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if renderer.calls != 0 {
		t.Errorf("renderer calls = %d, want 0", renderer.calls)
	}
}

func TestReadPage_RendererFailureKeepsPlainText(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>thin</p></body></html>`)
	}))
	defer ts.Close()

	renderer := &fakeRenderer{err: fmt.Errorf("chrome not installed")}
	r := NewReader()
	r.SetRenderer(renderer)

	text, err := r.ReadPage(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("ReadPage should fall back to plain text, got %v", err)
	}
	if !strings.Contains(text, "thin") {
		t.Errorf("text = %q", text)
	}
}
