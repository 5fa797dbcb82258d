// Package websearch queries a local SearXNG instance and turns the
// pages it finds into text a model can summarize. SearXNG runs as a
// metasearch aggregator on localhost, so queries never hit a search
// engine with an API key.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"omnichat/internal/logging"
)

// DefaultBaseURL is where a stock SearXNG docker-compose listens.
const DefaultBaseURL = "http://localhost:4000"

// DefaultResultLimit caps how many results a search returns.
const DefaultResultLimit = 5

// Result is one search hit.
type Result struct {
	URL         string
	Title       string
	Description string
}

// Client queries the SearXNG JSON API.
type Client struct {
	baseURL string
	http    *http.Client
	limit   int
}

// NewClient creates a client for the SearXNG instance at baseURL.
// An empty baseURL selects the default local instance.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		limit:   DefaultResultLimit,
	}
}

// SetLimit changes how many results Search returns.
func (c *Client) SetLimit(n int) {
	if n > 0 {
		c.limit = n
	}
}

// searxResponse mirrors the fields we read from the SearXNG JSON API.
type searxResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs a query and returns the top results.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("pageno", "1")
	params.Set("language", "en")

	reqURL := c.baseURL + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w (is SearXNG running at %s?)", err, c.baseURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var parsed searxResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	results := make([]Result, 0, c.limit)
	for _, item := range parsed.Results {
		if len(results) >= c.limit {
			break
		}
		if item.URL == "" {
			continue
		}
		results = append(results, Result{
			URL:         item.URL,
			Title:       item.Title,
			Description: item.Content,
		})
	}

	logging.Search("query %q returned %d result(s) in %v", query, len(results), time.Since(start).Round(time.Millisecond))
	return results, nil
}
