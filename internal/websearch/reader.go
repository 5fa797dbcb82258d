package websearch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"omnichat/internal/logging"
)

// maxPageBytes bounds how much of a page is read. Pages past 1MB are
// ads and framework payload, not prose.
const maxPageBytes = 1 << 20

// renderFloor is the extracted-text length under which a page is
// assumed to be a JavaScript shell worth re-rendering.
const renderFloor = 200

// Renderer loads a page in a real browser and returns the rendered
// HTML. Used as a fallback for pages that serve an empty shell to
// plain HTTP clients.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Reader fetches pages and reduces them to plain text.
type Reader struct {
	http      *http.Client
	userAgent string
	renderer  Renderer
}

// NewReader creates a reader with no JS fallback.
func NewReader() *Reader {
	return &Reader{
		http:      &http.Client{Timeout: 20 * time.Second},
		userAgent: "Mozilla/5.0",
	}
}

// SetRenderer installs a JS fallback for shell pages.
func (r *Reader) SetRenderer(renderer Renderer) {
	r.renderer = renderer
}

// ReadPage fetches a URL and returns its visible text. If the plain
// fetch yields almost nothing and a renderer is installed, the page
// is loaded again in a browser before giving up.
func (r *Reader) ReadPage(ctx context.Context, pageURL string) (string, error) {
	body, err := r.fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}
	text, err := ExtractText(body)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", pageURL, err)
	}

	if len(text) < renderFloor && r.renderer != nil {
		logging.SearchDebug("%s looks like a JS shell (%d chars), rendering", pageURL, len(text))
		rendered, rerr := r.renderer.Render(ctx, pageURL)
		if rerr != nil {
			logging.SearchWarn("render %s: %v", pageURL, rerr)
			return text, nil
		}
		if rtext, perr := ExtractText(rendered); perr == nil && len(rtext) > len(text) {
			return rtext, nil
		}
	}
	return text, nil
}

func (r *Reader) fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: HTTP %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ExtractText parses HTML and returns its text content with scripts
// and styles removed and whitespace collapsed to single spaces.
func ExtractText(htmlSrc string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)

	return strings.Join(strings.Fields(sb.String()), " "), nil
}

// PageTitle returns the contents of the first <title> element, or "".
func PageTitle(htmlSrc string) string {
	doc, err := html.Parse(strings.NewReader(htmlSrc))
	if err != nil {
		return ""
	}
	var title string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
			title = strings.TrimSpace(n.FirstChild.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return title
}
