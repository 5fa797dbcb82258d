package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"omnichat/internal/config"
	"omnichat/internal/gemini"
	"omnichat/internal/logging"
	"omnichat/internal/media"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	askAttach []string
	askSystem string
	askStream bool
)

// askCmd sends a one-shot prompt, optionally with attachments
var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Ask a one-shot question without opening the chat interface",
	Long: `Sends a single prompt to the model and prints the reply.

Attachments are staged the same way the chat interface stages them:
plain text is inlined, small images and documents travel inline with
the request, and anything larger goes through the Files API first.

Examples:
  omni ask "explain the difference between a mutex and a semaphore"
  omni ask --attach diagram.png "what does this architecture show?"
  omni ask --stream "write a haiku about terminals"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringSliceVarP(&askAttach, "attach", "a", nil, "File to attach (repeatable)")
	askCmd.Flags().StringVar(&askSystem, "system", "", "System prompt override")
	askCmd.Flags().BoolVar(&askStream, "stream", false, "Stream the reply as it is generated")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	if err := logging.Initialize(cfg.DataDir()); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetGeminiTimeout())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	prompt := joinArgs(args)
	logger.Debug("Sending one-shot prompt", zap.Int("attachments", len(askAttach)))

	parts := []gemini.Part{{Text: prompt}}
	if len(askAttach) > 0 {
		attached, cleanup, err := stageAttachments(ctx, cfg, client)
		if err != nil {
			return err
		}
		defer cleanup()
		parts = append(parts, attached...)
	}

	history := []gemini.Content{{Role: gemini.RoleUser, Parts: parts}}

	if askStream {
		chunks, errs := client.StreamChat(ctx, askSystem, history)
		for chunk := range chunks {
			fmt.Print(chunk)
		}
		fmt.Println()
		if err := <-errs; err != nil {
			return fmt.Errorf("stream failed: %w", err)
		}
		return nil
	}

	reply, err := client.CompleteChat(ctx, askSystem, history)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	fmt.Println(reply)
	return nil
}

// stageAttachments copies --attach files through the media pipeline
// under a throwaway session and converts them to request parts. The
// returned cleanup removes the staged copies.
func stageAttachments(ctx context.Context, cfg *config.Config, client *gemini.Client) ([]gemini.Part, func(), error) {
	mgr := media.NewManager(cfg.MediaRoot(), cfg.Media.MaxFileBytes, cfg.Media.MaxPayloadBytes)
	sessionID := "ask-" + uuid.NewString()
	cleanup := func() { _ = mgr.CleanupSession(sessionID) }

	var staged []media.StagedFile
	for _, path := range askAttach {
		sf, err := mgr.Attach(sessionID, path)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("cannot attach %s: %w", path, err)
		}
		staged = append(staged, *sf)
	}

	payload, err := mgr.BuildParts(ctx, client, staged)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("cannot build attachment parts: %w", err)
	}
	for _, name := range payload.Skipped {
		fmt.Fprintf(os.Stderr, "skipped %s (over the payload budget)\n", name)
	}
	return payload.Parts, cleanup, nil
}
