package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omnichat/internal/logging"
	"omnichat/internal/research"
	"omnichat/internal/websearch"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var researchTimeout time.Duration

// researchCmd runs the multi-angle research agent
var researchCmd = &cobra.Command{
	Use:   "research [query]",
	Short: "Research a topic from multiple angles and write a report",
	Long: `Plans several search angles for the query, searches each through the
configured SearXNG instance, reads the most promising pages, and has
the model synthesize a cited markdown report.

The report is also saved as a session, so it shows up in
'omni sessions' and can be reopened in the chat interface.

Example:
  omni research "what replaced the Raft leader lease in modern systems"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().DurationVar(&researchTimeout, "timeout", 5*time.Minute, "Overall research deadline")
}

func runResearch(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithTimeout(context.Background(), researchTimeout)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	query := joinArgs(args)
	logger.Info("Starting research", zap.String("query", query))

	search := websearch.NewClient(cfg.Search.BaseURL)
	search.SetLimit(cfg.Search.MaxResults)
	reader := websearch.NewReader()
	if cfg.Search.RenderFallback {
		reader.SetRenderer(websearch.NewRodRenderer())
	}

	agent := research.NewAgent(search, reader, client, st, research.DefaultConfig())
	agent.OnProgress = func(p research.Progress) {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", p.Stage, p.Detail)
	}

	report, err := agent.Run(ctx, query)
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	if err := printMarkdown(report.Markdown); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\n%d sources, %s, saved as session %s\n",
		len(report.Sources), report.Duration.Round(time.Second), report.SessionID)
	return nil
}

// printMarkdown renders markdown for terminals and prints it raw when
// stdout is a pipe.
func printMarkdown(markdown string) error {
	if !stdoutIsTTY() {
		fmt.Println(markdown)
		return nil
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		fmt.Println(markdown)
		return nil
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		fmt.Println(markdown)
		return nil
	}
	fmt.Print(out)
	return nil
}
