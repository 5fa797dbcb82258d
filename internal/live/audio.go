package live

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"sync"

	"omnichat/internal/logging"
)

// PCM capture format. The capture commands below are pinned to this
// shape; the segmenter and WAV encoder assume it.
const (
	SampleRate   = 16000
	ChunkSamples = 1024
)

// ErrNoRecorder is returned when no capture binary is installed.
type ErrNoRecorder struct {
	Binary string
}

func (e *ErrNoRecorder) Error() string {
	return fmt.Sprintf("audio capture needs %q on PATH (install alsa-utils, sox, or ffmpeg)", e.Binary)
}

// AudioSource captures raw 16 kHz mono s16le PCM from the default
// microphone by piping a recorder's stdout. The command is swappable
// for tests. A source is single use: once stopped it cannot be
// restarted.
type AudioSource struct {
	cmd []string

	mu      sync.Mutex
	proc    *exec.Cmd
	chunks  chan []int16
	running bool
	doneCh  chan struct{}
}

// NewAudioSource builds a source using the platform recorder. A
// non-empty cmd overrides it.
func NewAudioSource(cmd []string) *AudioSource {
	if len(cmd) == 0 {
		cmd = recorderCmd(runtime.GOOS)
	}
	return &AudioSource{
		cmd:    cmd,
		chunks: make(chan []int16, 8),
	}
}

// recorderCmd picks the capture command for an OS. Every variant
// writes raw s16le 16 kHz mono to stdout.
func recorderCmd(goos string) []string {
	switch goos {
	case "darwin":
		return []string{"rec", "-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-r", "16000", "-c", "1", "-"}
	case "windows":
		return []string{"ffmpeg", "-hide_banner", "-loglevel", "error",
			"-f", "dshow", "-i", "audio=default",
			"-f", "s16le", "-ar", "16000", "-ac", "1", "-"}
	default:
		return []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "raw", "-"}
	}
}

// Chunks delivers captured PCM in ChunkSamples pieces. The channel is
// closed when the recorder exits or Stop is called.
func (a *AudioSource) Chunks() <-chan []int16 {
	return a.chunks
}

// Start launches the recorder and begins streaming chunks.
func (a *AudioSource) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return fmt.Errorf("audio source already running")
	}
	if _, err := exec.LookPath(a.cmd[0]); err != nil {
		return &ErrNoRecorder{Binary: a.cmd[0]}
	}

	proc := exec.CommandContext(ctx, a.cmd[0], a.cmd[1:]...)
	stdout, err := proc.StdoutPipe()
	if err != nil {
		return fmt.Errorf("recorder stdout: %w", err)
	}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("start %s: %w", a.cmd[0], err)
	}
	a.proc = proc
	a.running = true
	a.doneCh = make(chan struct{})
	logging.Live("audio capture started (%s, %d Hz)", a.cmd[0], SampleRate)

	go a.pump(stdout)
	return nil
}

// pump reads fixed-size chunks from the recorder until EOF.
func (a *AudioSource) pump(r io.Reader) {
	defer close(a.doneCh)
	defer close(a.chunks)

	buf := make([]byte, ChunkSamples*2)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				logging.LiveWarn("audio capture read: %v", err)
			}
			return
		}
		chunk := make([]int16, ChunkSamples)
		for i := range chunk {
			chunk[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
		}
		a.chunks <- chunk
	}
}

// Stop kills the recorder and waits for the pump to drain.
func (a *AudioSource) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	proc := a.proc
	done := a.doneCh
	a.mu.Unlock()

	if proc.Process != nil {
		_ = proc.Process.Kill()
	}
	go func() {
		for range a.chunks {
		}
	}()
	<-done
	_ = proc.Wait()
	logging.Live("audio capture stopped")
}
