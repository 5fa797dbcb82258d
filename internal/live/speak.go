package live

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"omnichat/internal/logging"
)

// Speaker reads replies aloud through the platform TTS command. The
// Speaking flag lets the capture side drop mic input while audio is
// playing, so the model does not hear itself.
type Speaker struct {
	tmpDir string
	cmdFor func(file string) []string

	mu       sync.Mutex
	speaking bool
	muted    bool
	warned   bool
}

// NewSpeaker builds a speaker writing its temp files under tmpDir
// (empty means the system temp dir).
func NewSpeaker(tmpDir string) *Speaker {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &Speaker{
		tmpDir: tmpDir,
		cmdFor: func(file string) []string { return ttsCmd(runtime.GOOS, file, "") },
	}
}

// SetVoice selects a named platform voice. Empty keeps the system
// default. Call before the first Speak.
func (s *Speaker) SetVoice(voice string) {
	s.cmdFor = func(file string) []string { return ttsCmd(runtime.GOOS, file, voice) }
}

// ttsCmd picks the platform text-to-speech invocation. Every variant
// reads the text from a file, which avoids shell quoting of the reply.
// Windows ignores the voice and uses the synthesizer default.
func ttsCmd(goos, file, voice string) []string {
	switch goos {
	case "darwin":
		cmd := []string{"say"}
		if voice != "" {
			cmd = append(cmd, "-v", voice)
		}
		return append(cmd, "-f", file)
	case "windows":
		path := strings.ReplaceAll(file, "'", "''")
		script := "Add-Type -AssemblyName System.Speech; " +
			"$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; " +
			"$s.Speak([System.IO.File]::ReadAllText('" + path + "'))"
		return []string{"powershell", "-Command", script}
	default:
		cmd := []string{"espeak"}
		if voice != "" {
			cmd = append(cmd, "-v", voice)
		}
		return append(cmd, "-f", file)
	}
}

// SetMuted toggles speech output.
func (s *Speaker) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

// Speaking reports whether a reply is currently playing.
func (s *Speaker) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// Speak voices the text and blocks until playback finishes. A missing
// TTS binary degrades to silence with a single warning.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	muted := s.muted
	s.mu.Unlock()
	if muted || strings.TrimSpace(text) == "" {
		return nil
	}

	f, err := os.CreateTemp(s.tmpDir, "response_*.txt")
	if err != nil {
		return fmt.Errorf("tts temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return fmt.Errorf("tts temp file: %w", err)
	}
	f.Close()

	cmd := s.cmdFor(f.Name())
	if _, err := exec.LookPath(cmd[0]); err != nil {
		s.mu.Lock()
		if !s.warned {
			s.warned = true
			logging.LiveWarn("text-to-speech unavailable: %q not on PATH", cmd[0])
		}
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.speaking = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.speaking = false
		s.mu.Unlock()
	}()

	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	if err := c.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tts playback: %w", err)
	}
	return nil
}
