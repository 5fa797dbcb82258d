package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"omnichat/internal/live"
	"omnichat/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	liveVideo       string
	liveCameraIndex int
	liveScreenIndex int
	liveNoSpeech    bool
	liveVoice       string
	liveChild       bool
)

// liveCmd runs the hands-free voice conversation loop
var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Hold a hands-free voice conversation with optional video context",
	Long: `Captures the microphone continuously, detects utterances by silence,
sends each one to the model together with the newest camera or screen
frame, and reads the reply aloud through the platform TTS command.

The capture pipeline runs as a supervised child process, so a crashed
recorder or a wedged ffmpeg never takes the terminal down with it.
Press Ctrl+C to stop; the transcript is saved as a session.

Requires ffmpeg on PATH for video, and arecord (Linux), rec (macOS) or
ffmpeg (Windows) for audio. Run 'omni devices' to check what is
available.

Examples:
  omni live
  omni live --video screen --no-speech
  omni live --video camera --camera-index 2`,
	RunE: runLive,
}

func init() {
	liveCmd.Flags().StringVar(&liveVideo, "video", "camera", "Video context: camera, screen, or none")
	liveCmd.Flags().IntVar(&liveCameraIndex, "camera-index", 0, "Camera device index")
	liveCmd.Flags().IntVar(&liveScreenIndex, "screen-index", 0, "Screen to capture (macOS only)")
	liveCmd.Flags().BoolVar(&liveNoSpeech, "no-speech", false, "Print replies instead of speaking them")
	liveCmd.Flags().StringVar(&liveVoice, "voice", "", "Platform TTS voice name")
	liveCmd.Flags().BoolVar(&liveChild, "child", false, "")
	_ = liveCmd.Flags().MarkHidden("child")
}

func runLive(cmd *cobra.Command, args []string) error {
	switch live.VideoMode(liveVideo) {
	case live.ModeCamera, live.ModeScreen, live.ModeNone:
	default:
		return fmt.Errorf("invalid --video %q: want camera, screen, or none", liveVideo)
	}
	if liveChild {
		return runLiveChild()
	}
	return runLiveParent()
}

// runLiveParent re-execs the binary with --child under a supervisor
// and relays its output until the user interrupts.
func runLiveParent() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot resolve own binary: %w", err)
	}

	childArgs := []string{"live", "--child",
		"--video", liveVideo,
		"--camera-index", strconv.Itoa(liveCameraIndex),
		"--screen-index", strconv.Itoa(liveScreenIndex),
	}
	if liveNoSpeech {
		childArgs = append(childArgs, "--no-speech")
	}
	if liveVoice != "" {
		childArgs = append(childArgs, "--voice", liveVoice)
	}
	if configPath != "" {
		childArgs = append(childArgs, "--config", configPath)
	}
	if dataDir != "" {
		childArgs = append(childArgs, "--data-dir", dataDir)
	}
	if modelName != "" {
		childArgs = append(childArgs, "--model", modelName)
	}
	if verbose {
		childArgs = append(childArgs, "--verbose")
	}

	sup := live.NewSupervisor(exe, childArgs...)
	if err := sup.Start(); err != nil {
		return fmt.Errorf("cannot start live session: %w", err)
	}
	logger.Info("Live child started", zap.Int("pid", sup.Pid()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nStopping live session...")
			sup.Stop()
			return nil
		case <-ticker.C:
			if sup.Running() {
				continue
			}
			if err := sup.ExitErr(); err != nil {
				if tail := sup.StderrTail(); tail != "" {
					fmt.Fprintln(os.Stderr, tail)
				}
				return fmt.Errorf("live session died: %w", err)
			}
			return nil
		}
	}
}

// runLiveChild owns the actual capture pipeline. It prints one line
// per event so the parent's terminal doubles as the transcript.
func runLiveChild() error {
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

	mode := live.VideoMode(liveVideo)
	frames := live.NewFrameSource(mode, liveCameraIndex)
	if mode == live.ModeScreen && liveScreenIndex > 0 && runtime.GOOS == "darwin" {
		frames.SetDevice(fmt.Sprintf("Capture screen %d", liveScreenIndex))
	}

	speaker := live.NewSpeaker("")
	if liveVoice != "" {
		speaker.SetVoice(liveVoice)
	} else if cfg.Live.Voice != "" {
		speaker.SetVoice(cfg.Live.Voice)
	}
	if liveNoSpeech || !cfg.Live.SpeakReplies {
		speaker.SetMuted(true)
	}

	ctrl := live.NewController(live.NewAudioSource(nil), frames, client, speaker, st, live.Config{
		Mode:             mode,
		CameraIndex:      liveCameraIndex,
		SilenceThreshold: cfg.Live.SilenceThreshold,
		SilenceDuration:  cfg.GetSilenceDuration(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("cannot start capture: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		signal.Stop(sigCh)
		ctrl.Stop()
	}()

	fmt.Printf("Live session started (video: %s). Speak when ready.\n", mode)
	for ev := range ctrl.Events() {
		switch ev.Kind {
		case live.EventUtterance:
			fmt.Printf("you: (%.1fs of speech)\n", ev.Duration.Seconds())
		case live.EventReplyStarted:
			fmt.Println("    ...")
		case live.EventReplyText:
			fmt.Printf("omni: %s\n", ev.Text)
		case live.EventError:
			fmt.Fprintf(os.Stderr, "error: %v\n", ev.Err)
		case live.EventStopped:
			// Events channel closes right after this.
		}
	}

	if id := ctrl.SessionID(); id != "" {
		fmt.Printf("Transcript saved as session %s\n", id)
	}
	return nil
}
