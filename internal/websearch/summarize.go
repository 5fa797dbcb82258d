package websearch

import (
	"context"
	"fmt"
	"strings"

	"omnichat/internal/logging"
)

// LLM is the completion surface the summarizer needs.
type LLM interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SearchSummary is an answer grounded in fetched pages.
type SearchSummary struct {
	Query   string
	Answer  string
	Sources []Result
}

// Summarizer answers a query by searching, reading the result pages,
// and asking the model to digest them. It leans on the model's large
// context window; several full pages of text go into one prompt.
type Summarizer struct {
	search *Client
	reader *Reader
	llm    LLM
	pages  int
}

// NewSummarizer wires a search client, a page reader, and a model.
// pages caps how many result pages are read; 0 selects 3.
func NewSummarizer(search *Client, reader *Reader, llm LLM, pages int) *Summarizer {
	if pages <= 0 {
		pages = 3
	}
	return &Summarizer{search: search, reader: reader, llm: llm, pages: pages}
}

// SummarizeSearch searches for the query, reads the top pages, and
// returns a model-written answer with the pages that informed it.
// Pages that fail to fetch are dropped rather than failing the whole
// answer.
func (s *Summarizer) SummarizeSearch(ctx context.Context, query string) (*SearchSummary, error) {
	results, err := s.search.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no search results for %q", query)
	}

	var texts []string
	var sources []Result
	for _, res := range results {
		if len(sources) >= s.pages {
			break
		}
		text, err := s.reader.ReadPage(ctx, res.URL)
		if err != nil {
			logging.SearchWarn("skipping %s: %v", res.URL, err)
			continue
		}
		if text == "" {
			continue
		}
		texts = append(texts, text)
		sources = append(sources, res)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("none of the result pages for %q could be read", query)
	}

	prompt := fmt.Sprintf("Based on the following web content, %s\n\nContent:\n%s",
		query, strings.Join(texts, "\n\n"))
	answer, err := s.llm.Complete(ctx, "", prompt)
	if err != nil {
		return nil, fmt.Errorf("summarize search: %w", err)
	}

	logging.Search("answered %q from %d page(s)", query, len(sources))
	return &SearchSummary{Query: query, Answer: answer, Sources: sources}, nil
}

// SummarizeURL reads a single page and returns a concise summary.
func (s *Summarizer) SummarizeURL(ctx context.Context, pageURL string) (string, error) {
	text, err := s.reader.ReadPage(ctx, pageURL)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("%s has no readable text", pageURL)
	}

	prompt := fmt.Sprintf("Please provide a concise summary of the following content. "+
		"Focus on the main points and key information:\n\n%s", text)
	summary, err := s.llm.Complete(ctx, "", prompt)
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", pageURL, err)
	}
	return summary, nil
}
