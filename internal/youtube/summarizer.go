package youtube

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"omnichat/internal/gemini"
	"omnichat/internal/logging"
	"omnichat/internal/store"
)

// DefaultPlaylistLimit caps how many playlist entries get their own
// summary in one run.
const DefaultPlaylistLimit = 5

// LLM is the multimodal completion surface the summarizer needs. The
// video travels as a file URI part, so plain text completion is not
// enough here.
type LLM interface {
	CompleteChat(ctx context.Context, systemPrompt string, history []gemini.Content) (string, error)
}

// MetadataLookup resolves titles and playlist contents ahead of the
// model call.
type MetadataLookup interface {
	Lookup(ctx context.Context, url string) (*Metadata, error)
}

// Summary is the result of one summarizer run.
type Summary struct {
	SessionID string
	URL       string
	Title     string
	Markdown  string
	Duration  time.Duration
}

// Summarizer turns YouTube URLs into timestamped markdown summaries.
type Summarizer struct {
	llm           LLM
	meta          MetadataLookup
	store         *store.Store
	playlistLimit int
}

// NewSummarizer wires a summarizer. meta and st may be nil: without
// metadata the summary loses its title, without a store it is not
// persisted.
func NewSummarizer(llm LLM, meta MetadataLookup, st *store.Store) *Summarizer {
	return &Summarizer{
		llm:           llm,
		meta:          meta,
		store:         st,
		playlistLimit: DefaultPlaylistLimit,
	}
}

// Summarize analyzes the video (or the first few playlist entries)
// behind rawURL and returns a markdown summary with timestamp anchors.
// focus is an optional steering hint woven into the prompt.
func (s *Summarizer) Summarize(ctx context.Context, rawURL, focus string) (*Summary, error) {
	norm, err := Normalize(rawURL)
	if err != nil {
		return nil, err
	}
	timer := logging.StartTimer(logging.CategoryYouTube, "video summary")
	defer timer.StopWithInfo()
	start := time.Now()

	var meta *Metadata
	if s.meta != nil {
		meta, err = s.meta.Lookup(ctx, norm)
		if err != nil {
			// The model reads the video from the URL alone, so a
			// failed lookup only costs us the title.
			logging.YouTubeDebug("metadata lookup failed for %s: %v", norm, err)
			meta = nil
		}
	}

	summary := &Summary{URL: norm}
	if meta != nil {
		summary.Title = meta.Title
	}

	var markdown string
	if meta != nil && meta.Playlist && len(meta.Items) > 0 {
		markdown, err = s.playlistMarkdown(ctx, meta, focus)
	} else {
		markdown, err = s.videoMarkdown(ctx, norm, focus)
	}
	if err != nil {
		return nil, err
	}
	summary.Markdown = markdown
	summary.Duration = time.Since(start)

	if err := s.persist(summary, focus); err != nil {
		logging.YouTubeDebug("summary for %s not persisted: %v", norm, err)
	}
	logging.YouTube("summarized %s in %s (%d chars)",
		norm, summary.Duration.Round(time.Millisecond), len(markdown))
	return summary, nil
}

// videoMarkdown summarizes a single video. The video itself is
// attached as a file URI part ahead of the instruction text.
func (s *Summarizer) videoMarkdown(ctx context.Context, videoURL, focus string) (string, error) {
	prompt := "Analyze this YouTube video and provide a detailed summary with timestamps and key points: " + videoURL
	if focus != "" {
		prompt += "\n\nPay particular attention to: " + focus
	}
	turn := gemini.Content{
		Role: gemini.RoleUser,
		Parts: []gemini.Part{
			{FileData: &gemini.FileData{FileURI: videoURL}},
			{Text: prompt},
		},
	}
	out, err := s.llm.CompleteChat(ctx, analystSystemPrompt(), []gemini.Content{turn})
	if err != nil {
		return "", fmt.Errorf("summarize %s: %w", videoURL, err)
	}
	return out, nil
}

// playlistMarkdown summarizes the first playlistLimit entries and
// stitches them under a playlist header. Entries that fail are
// skipped; the run fails only when none survive.
func (s *Summarizer) playlistMarkdown(ctx context.Context, meta *Metadata, focus string) (string, error) {
	items := meta.Items
	if len(items) > s.playlistLimit {
		items = items[:s.playlistLimit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# 📚 Playlist Summary: %s\n\n", meta.Title)
	fmt.Fprintf(&b, "Covering the first %d of %d videos.\n", len(items), len(meta.Items))

	done := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		md, err := s.videoMarkdown(ctx, item.URL, focus)
		if err != nil {
			logging.YouTubeDebug("skipping playlist entry %s: %v", item.URL, err)
			continue
		}
		b.WriteString("\n---\n\n")
		b.WriteString(md)
		done++
	}
	if done == 0 {
		return "", fmt.Errorf("no videos in playlist %s could be summarized", meta.URL)
	}
	return b.String(), nil
}

// persist stores the run as a youtube session: URL and focus as the
// user turn, the summary as the model turn.
func (s *Summarizer) persist(sum *Summary, focus string) error {
	if s.store == nil {
		return nil
	}
	id := uuid.NewString()
	title := sum.Title
	if title == "" {
		title = sum.URL
	}
	if err := s.store.CreateSession(id, shorten(title, 60), store.KindYouTube, ""); err != nil {
		return err
	}
	userTurn := sum.URL
	if focus != "" {
		userTurn += "\nFocus: " + focus
	}
	if err := s.store.AppendMessage(store.Message{
		SessionID: id,
		Seq:       1,
		Role:      store.RoleUser,
		Content:   userTurn,
	}); err != nil {
		return err
	}
	if err := s.store.AppendMessage(store.Message{
		SessionID: id,
		Seq:       2,
		Role:      store.RoleModel,
		Content:   sum.Markdown,
	}); err != nil {
		return err
	}
	sum.SessionID = id
	return nil
}

func analystSystemPrompt() string {
	return `You are an expert YouTube content analyst with a keen eye for detail. Your
expertise covers video content analysis and summarization, key point
extraction, timestamp creation, topic identification, technical explanation
simplification, educational content breakdown, visual content description and
narrative structure analysis.

Work in four phases:

1. Analysis: extract the video content and metadata, identify the main topics
   and themes, recognize key points and important moments, and note visual
   elements.
2. Organization: create meaningful timestamps for major sections, group
   related content together, identify the narrative structure, and highlight
   key demonstrations or examples.
3. Summary: provide a concise overview of the video, summarize the main
   points in order, include relevant timestamps for easy navigation, and
   maintain the original meaning and context.
4. Presentation: format the summary with clear sections, use bullet points
   for key information, include timestamps in [HH:MM:SS] format, and make the
   summary easy to scan and navigate.

Respond in exactly this markdown shape:

# 📽️ Video Summary: {Video Title}

## 📝 Overview
{Concise overview of the video content and purpose}

## ⏱️ Key Timestamps
- [00:00:00] Introduction
{List of key timestamps with descriptions}

## 🔑 Main Points
{Bullet points of the main ideas and concepts}

## 💡 Key Takeaways
{Summary of the most important lessons or conclusions}`
}

func shorten(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
