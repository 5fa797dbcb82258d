package live

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"omnichat/internal/logging"
)

// VideoMode selects what the live loop watches.
type VideoMode string

const (
	ModeCamera VideoMode = "camera"
	ModeScreen VideoMode = "screen"
	ModeNone   VideoMode = "none"
)

const (
	// DefaultFrameInterval is roughly one frame per second, matching
	// the pace the model can usefully consume alongside speech.
	DefaultFrameInterval = time.Second

	frameWidth  = 640
	frameHeight = 480
	grabTimeout = 10 * time.Second
)

// FrameSource keeps a current JPEG of the camera or screen by running
// a one-shot ffmpeg grab every interval. Latest hands the newest frame
// to whoever builds the next model turn.
type FrameSource struct {
	mode     VideoMode
	device   string
	interval time.Duration
	grab     func(ctx context.Context) ([]byte, error)

	mu      sync.Mutex
	latest  []byte
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewFrameSource builds a source for the given mode and camera index.
func NewFrameSource(mode VideoMode, cameraIndex int) *FrameSource {
	f := &FrameSource{
		mode:     mode,
		device:   defaultDevice(runtime.GOOS, mode, cameraIndex),
		interval: DefaultFrameInterval,
	}
	f.grab = f.execGrab
	return f
}

// SetDevice overrides the capture device. Windows cameras need their
// DirectShow name here; the devices scanner reports it.
func (f *FrameSource) SetDevice(device string) {
	f.device = device
}

func defaultDevice(goos string, mode VideoMode, cameraIndex int) string {
	if mode != ModeCamera {
		return ""
	}
	switch goos {
	case "darwin":
		return fmt.Sprintf("%d:none", cameraIndex)
	case "windows":
		return ""
	default:
		return fmt.Sprintf("/dev/video%d", cameraIndex)
	}
}

// frameCmd builds the one-shot grab command: a single JPEG frame at
// 640x480 on stdout. Returns nil when the platform needs a device name
// that was not provided.
func frameCmd(goos string, mode VideoMode, device string) []string {
	base := []string{"ffmpeg", "-hide_banner", "-loglevel", "error"}
	size := fmt.Sprintf("%dx%d", frameWidth, frameHeight)
	scale := fmt.Sprintf("scale=%d:%d", frameWidth, frameHeight)
	out := []string{"-frames:v", "1", "-f", "image2", "-c:v", "mjpeg", "-"}

	switch mode {
	case ModeCamera:
		switch goos {
		case "darwin":
			return append(append(base,
				"-f", "avfoundation", "-framerate", "30", "-video_size", size, "-i", device), out...)
		case "windows":
			if device == "" {
				return nil
			}
			return append(append(base,
				"-f", "dshow", "-video_size", size, "-i", "video="+device), out...)
		default:
			return append(append(base,
				"-f", "v4l2", "-video_size", size, "-i", device), out...)
		}
	case ModeScreen:
		switch goos {
		case "darwin":
			return append(append(base,
				"-f", "avfoundation", "-i", "Capture screen 0", "-vf", scale), out...)
		case "windows":
			return append(append(base,
				"-f", "gdigrab", "-i", "desktop", "-vf", scale), out...)
		default:
			return append(append(base,
				"-f", "x11grab", "-video_size", size, "-i", ":0.0"), out...)
		}
	}
	return nil
}

// execGrab runs the platform grab command and returns the JPEG bytes.
func (f *FrameSource) execGrab(ctx context.Context) ([]byte, error) {
	cmd := frameCmd(runtime.GOOS, f.mode, f.device)
	if cmd == nil {
		return nil, fmt.Errorf("no capture device for %s mode (set one with the devices scanner)", f.mode)
	}
	if _, err := exec.LookPath(cmd[0]); err != nil {
		return nil, fmt.Errorf("frame capture needs %q on PATH", cmd[0])
	}

	ctx, cancel := context.WithTimeout(ctx, grabTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	c.Stdout = &stdout
	c.Stderr = &stderr
	if err := c.Run(); err != nil {
		return nil, fmt.Errorf("grab %s: %v (%s)", f.mode, err, firstLine(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("grab %s produced no frame", f.mode)
	}
	return stdout.Bytes(), nil
}

// Start probes one frame synchronously, then refreshes in the
// background. A probe failure is returned so callers can fall back to
// running without video.
func (f *FrameSource) Start(ctx context.Context) error {
	if f.mode == ModeNone {
		return nil
	}
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return fmt.Errorf("frame source already running")
	}
	f.mu.Unlock()

	img, err := f.grab(ctx)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.latest = img
	f.running = true
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	f.mu.Unlock()

	logging.Live("%s capture started (%dx%d every %s)", f.mode, frameWidth, frameHeight, f.interval)
	go f.loop(ctx)
	return nil
}

func (f *FrameSource) loop(ctx context.Context) {
	defer close(f.doneCh)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stopCh:
			return
		case <-ticker.C:
			img, err := f.grab(ctx)
			if err != nil {
				logging.LiveDebug("frame grab: %v", err)
				continue
			}
			f.mu.Lock()
			f.latest = img
			f.mu.Unlock()
		}
	}
}

// Latest returns the newest frame, if any.
func (f *FrameSource) Latest() ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.latest) == 0 {
		return nil, false
	}
	return f.latest, true
}

// Stop halts the refresh loop. Safe to call more than once.
func (f *FrameSource) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	close(f.stopCh)
	done := f.doneCh
	f.mu.Unlock()
	<-done
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
