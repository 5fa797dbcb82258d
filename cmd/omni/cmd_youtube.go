package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omnichat/internal/logging"
	"omnichat/internal/youtube"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	youtubeFocus   string
	youtubeTimeout time.Duration
)

// youtubeCmd summarizes a YouTube video or playlist
var youtubeCmd = &cobra.Command{
	Use:   "youtube [url]",
	Short: "Summarize a YouTube video or playlist with timestamps",
	Long: `Produces a structured markdown summary of a YouTube video: key points
with [MM:SS] timestamp anchors, notable quotes, and a short conclusion.
Playlists are summarized entry by entry, up to the first few videos.

The model reads the video directly; nothing is downloaded locally.

Examples:
  omni youtube https://www.youtube.com/watch?v=dQw4w9WgXcQ
  omni youtube --focus "the benchmark numbers" https://youtu.be/abc123`,
	Args: cobra.ExactArgs(1),
	RunE: runYouTube,
}

func init() {
	youtubeCmd.Flags().StringVar(&youtubeFocus, "focus", "", "Aspect of the video to focus the summary on")
	youtubeCmd.Flags().DurationVar(&youtubeTimeout, "timeout", 5*time.Minute, "Summarization deadline")
}

func runYouTube(cmd *cobra.Command, args []string) error {
	rawURL := args[0]
	if _, ok := youtube.DetectURL(rawURL); !ok {
		return fmt.Errorf("%q does not look like a YouTube URL", rawURL)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	defer logging.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), youtubeTimeout)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	logger.Info("Summarizing video", zap.String("url", rawURL))
	fmt.Fprintln(os.Stderr, "Analyzing video, this takes a moment...")

	summarizer := youtube.NewSummarizer(client, youtube.NewMetadataClient(""), st)
	summary, err := summarizer.Summarize(ctx, rawURL, youtubeFocus)
	if err != nil {
		return fmt.Errorf("summarization failed: %w", err)
	}

	if err := printMarkdown(summary.Markdown); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\n%s, saved as session %s\n",
		summary.Duration.Round(time.Second), summary.SessionID)
	return nil
}
