package devices

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"omnichat/internal/logging"
)

const (
	probeTimeout   = 15 * time.Second
	maxCameraIndex = 10
)

type options struct {
	goos      string
	root      string
	screenCmd []string
	micCmd    []string
	enumCmd   []string
	detailCmd func(device string) []string
	probeCmd  func(device string) []string
	timeout   time.Duration
}

// defaultOptions returns the probe commands for a platform. Tests
// inject their own.
func defaultOptions(goos string) *options {
	o := &options{
		goos:    goos,
		root:    "/",
		timeout: probeTimeout,
	}
	switch goos {
	case "darwin":
		o.screenCmd = []string{"system_profiler", "SPDisplaysDataType"}
		o.enumCmd = []string{"ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", ""}
		o.probeCmd = func(device string) []string { return grabCmd("avfoundation", device) }
	case "windows":
		o.screenCmd = []string{"powershell", "-Command",
			"Get-CimInstance Win32_DesktopMonitor | Format-List ScreenWidth,ScreenHeight"}
		o.enumCmd = []string{"ffmpeg", "-hide_banner", "-list_devices", "true", "-f", "dshow", "-i", "dummy"}
		o.probeCmd = func(device string) []string { return grabCmd("dshow", "video="+device) }
	default:
		o.screenCmd = []string{"xrandr"}
		o.micCmd = []string{"arecord", "-l"}
		o.detailCmd = func(device string) []string {
			return []string{"v4l2-ctl", "--device", device, "--all"}
		}
		o.probeCmd = func(device string) []string { return grabCmd("v4l2", device) }
	}
	return o
}

// grabCmd captures a single JPEG frame to stdout, verifying a camera
// actually delivers frames.
func grabCmd(backend, input string) []string {
	return []string{"ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", backend, "-i", input,
		"-frames:v", "1", "-f", "image2", "-c:v", "mjpeg", "-"}
}

// Scanner probes capture hardware.
type Scanner struct {
	opts *options
}

// New builds a scanner for the current platform.
func New() *Scanner {
	return &Scanner{opts: defaultOptions(runtime.GOOS)}
}

// Scan runs all three probes and collects their notes.
func (s *Scanner) Scan(ctx context.Context) *Inventory {
	timer := logging.StartTimer(logging.CategoryDevices, "device scan")
	defer timer.StopWithInfo()

	inv := &Inventory{}
	var notes []string

	cams, n := s.ScanCameras(ctx)
	inv.Cameras = cams
	notes = append(notes, n...)

	screens, n := s.ScanScreens(ctx)
	inv.Screens = screens
	notes = append(notes, n...)

	mics, n := s.ScanMicrophones(ctx)
	inv.Microphones = mics
	notes = append(notes, n...)

	inv.Notes = notes
	logging.Devices("scan found %d cameras, %d screens, %d microphones",
		len(inv.Cameras), len(inv.Screens), len(inv.Microphones))
	return inv
}

// ScanCameras probes camera indices 0-9 the way the platform exposes
// them: /dev/video* nodes on Linux, the ffmpeg device listing on
// macOS and Windows. Every found camera is verified with a one-frame
// capture.
func (s *Scanner) ScanCameras(ctx context.Context) ([]Camera, []string) {
	switch s.opts.goos {
	case "darwin", "windows":
		return s.scanCamerasAV(ctx)
	default:
		return s.scanCamerasV4L2(ctx)
	}
}

func (s *Scanner) scanCamerasV4L2(ctx context.Context) ([]Camera, []string) {
	var cams []Camera
	var notes []string
	detailMissing := false
	probeMissing := false

	for i := 0; i < maxCameraIndex; i++ {
		device := filepath.Join(s.opts.root, "dev", fmt.Sprintf("video%d", i))
		if _, err := os.Stat(device); err != nil {
			continue
		}
		cam := Camera{Index: i, Device: device, Backend: "v4l2"}
		cam.Name = s.sysfsCameraName(i)

		if s.opts.detailCmd != nil {
			cmd := s.opts.detailCmd(device)
			if _, err := exec.LookPath(cmd[0]); err != nil {
				detailMissing = true
			} else if stdout, _, err := runWithTimeout(ctx, s.opts.timeout, cmd); err == nil {
				cam.Width, cam.Height = parseV4L2Size(stdout.String())
				cam.FPS = parseV4L2FPS(stdout.String())
			}
		}

		cam.Working = s.probeFrame(ctx, device, &probeMissing)
		logging.DevicesDebug("camera %d (%s): working=%v %dx%d",
			cam.Index, cam.Device, cam.Working, cam.Width, cam.Height)
		cams = append(cams, cam)
	}

	if detailMissing {
		notes = append(notes, "v4l2-ctl not found, camera details unavailable")
	}
	if probeMissing {
		notes = append(notes, "ffmpeg not found, cameras not verified")
	}
	return cams, notes
}

func (s *Scanner) sysfsCameraName(index int) string {
	path := filepath.Join(s.opts.root, "sys", "class", "video4linux",
		fmt.Sprintf("video%d", index), "name")
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *Scanner) scanCamerasAV(ctx context.Context) ([]Camera, []string) {
	if _, err := exec.LookPath(s.opts.enumCmd[0]); err != nil {
		return nil, []string{fmt.Sprintf("%s not found, camera scan skipped", s.opts.enumCmd[0])}
	}
	// The device listing goes to stderr and the command exits
	// nonzero, that is its normal behavior.
	_, stderr, _ := runWithTimeout(ctx, s.opts.timeout, s.opts.enumCmd)

	var cams []Camera
	probeMissing := false
	if s.opts.goos == "windows" {
		video, _ := parseDShow(stderr.String())
		for i, name := range video {
			cam := Camera{Index: i, Device: name, Name: name, Backend: "dshow"}
			cam.Working = s.probeFrame(ctx, name, &probeMissing)
			cams = append(cams, cam)
		}
	} else {
		video, _ := parseAVFoundation(stderr.String())
		for _, e := range video {
			// avfoundation lists screen capture inputs alongside
			// cameras; those belong to the screen scan.
			if strings.HasPrefix(e.name, "Capture screen") {
				continue
			}
			device := fmt.Sprintf("%d", e.index)
			cam := Camera{Index: e.index, Device: device, Name: e.name, Backend: "avfoundation"}
			cam.Working = s.probeFrame(ctx, device, &probeMissing)
			cams = append(cams, cam)
		}
	}

	var notes []string
	if probeMissing {
		notes = append(notes, "ffmpeg not found, cameras not verified")
	}
	return cams, notes
}

// probeFrame runs the one-frame capture. A missing capture binary is
// recorded once through missing instead of failing every index.
func (s *Scanner) probeFrame(ctx context.Context, device string, missing *bool) bool {
	cmd := s.opts.probeCmd(device)
	if _, err := exec.LookPath(cmd[0]); err != nil {
		*missing = true
		return false
	}
	stdout, stderr, err := runWithTimeout(ctx, s.opts.timeout, cmd)
	if err != nil {
		logging.DevicesDebug("probe %s: %v (%s)", device, err, headLine(stderr.String()))
		return false
	}
	return stdout.Len() > 0
}

// ScanScreens lists displays: xrandr on Linux, system_profiler on
// macOS, WMI on Windows. On Linux the virtual screen spanning all
// monitors comes back as the Combined entry at index 0.
func (s *Scanner) ScanScreens(ctx context.Context) ([]Screen, []string) {
	if _, err := exec.LookPath(s.opts.screenCmd[0]); err != nil {
		return nil, []string{fmt.Sprintf("%s not found, screen scan skipped", s.opts.screenCmd[0])}
	}
	stdout, stderr, err := runWithTimeout(ctx, s.opts.timeout, s.opts.screenCmd)
	if err != nil {
		logging.DevicesDebug("screen scan: %v (%s)", err, headLine(stderr.String()))
		return nil, []string{fmt.Sprintf("screen scan failed: %v", err)}
	}

	var screens []Screen
	switch s.opts.goos {
	case "darwin":
		screens = parseSystemProfiler(stdout.String())
	case "windows":
		screens = parseWMIScreens(stdout.String())
	default:
		screens = parseXrandr(stdout.String())
	}
	for _, sc := range screens {
		logging.DevicesDebug("screen %d (%s): %dx%d at %d,%d primary=%v combined=%v",
			sc.Index, sc.Name, sc.Width, sc.Height, sc.X, sc.Y, sc.Primary, sc.Combined)
	}
	return screens, nil
}

// ScanMicrophones lists audio capture devices: arecord on Linux, the
// audio half of the ffmpeg device listing elsewhere.
func (s *Scanner) ScanMicrophones(ctx context.Context) ([]Microphone, []string) {
	switch s.opts.goos {
	case "darwin", "windows":
		return s.scanMicsAV(ctx)
	default:
		return s.scanMicsALSA(ctx)
	}
}

func (s *Scanner) scanMicsALSA(ctx context.Context) ([]Microphone, []string) {
	if _, err := exec.LookPath(s.opts.micCmd[0]); err != nil {
		return nil, []string{fmt.Sprintf("%s not found, microphone scan skipped", s.opts.micCmd[0])}
	}
	stdout, stderr, err := runWithTimeout(ctx, s.opts.timeout, s.opts.micCmd)
	if err != nil {
		logging.DevicesDebug("microphone scan: %v (%s)", err, headLine(stderr.String()))
		return nil, []string{fmt.Sprintf("microphone scan failed: %v", err)}
	}
	return parseArecord(stdout.String()), nil
}

func (s *Scanner) scanMicsAV(ctx context.Context) ([]Microphone, []string) {
	if _, err := exec.LookPath(s.opts.enumCmd[0]); err != nil {
		return nil, []string{fmt.Sprintf("%s not found, microphone scan skipped", s.opts.enumCmd[0])}
	}
	_, stderr, _ := runWithTimeout(ctx, s.opts.timeout, s.opts.enumCmd)

	var mics []Microphone
	if s.opts.goos == "windows" {
		_, audio := parseDShow(stderr.String())
		for i, name := range audio {
			mics = append(mics, Microphone{Card: i, Name: name})
		}
	} else {
		_, audio := parseAVFoundation(stderr.String())
		for _, e := range audio {
			mics = append(mics, Microphone{Card: e.index, Name: e.name})
		}
	}
	return mics, nil
}

// CameraTest is the outcome of a single-frame capture check.
type CameraTest struct {
	Index  int
	Device string
	Width  int
	Height int
	Bytes  int
}

// TestCamera grabs one frame from the given camera and reports the
// frame's dimensions. Unlike the scans this fails loudly, it backs an
// explicit check the user asked for.
func (s *Scanner) TestCamera(ctx context.Context, index int) (*CameraTest, error) {
	device, err := s.deviceForIndex(ctx, index)
	if err != nil {
		return nil, err
	}
	cmd := s.opts.probeCmd(device)
	if _, err := exec.LookPath(cmd[0]); err != nil {
		return nil, fmt.Errorf("camera test needs %q on PATH", cmd[0])
	}
	stdout, stderr, err := runWithTimeout(ctx, s.opts.timeout, cmd)
	if err != nil {
		return nil, fmt.Errorf("camera %d capture failed: %v (%s)", index, err, headLine(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("camera %d produced no frame", index)
	}

	test := &CameraTest{Index: index, Device: device, Bytes: stdout.Len()}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(stdout.Bytes())); err == nil {
		test.Width = cfg.Width
		test.Height = cfg.Height
	}
	logging.Devices("camera %d delivered a %dx%d frame (%d bytes)",
		index, test.Width, test.Height, test.Bytes)
	return test, nil
}

func (s *Scanner) deviceForIndex(ctx context.Context, index int) (string, error) {
	switch s.opts.goos {
	case "darwin":
		return fmt.Sprintf("%d", index), nil
	case "windows":
		cams, _ := s.scanCamerasAV(ctx)
		for _, cam := range cams {
			if cam.Index == index {
				return cam.Device, nil
			}
		}
		return "", fmt.Errorf("camera %d not found", index)
	default:
		device := filepath.Join(s.opts.root, "dev", fmt.Sprintf("video%d", index))
		if _, err := os.Stat(device); err != nil {
			return "", fmt.Errorf("camera %d not found: no %s", index, device)
		}
		return device, nil
	}
}

// run executes cmd with LANG=C appended last so it wins over the
// inherited locale and parsers see stable output.
func run(ctx context.Context, cmd []string) (stdout, stderr *bytes.Buffer, err error) {
	stdout = &bytes.Buffer{}
	stderr = &bytes.Buffer{}
	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	c.Stdout = stdout
	c.Stderr = stderr
	c.Env = append(os.Environ(), "LANG=C")
	err = c.Run()
	return stdout, stderr, err
}

func runWithTimeout(ctx context.Context, timeout time.Duration, cmd []string) (stdout, stderr *bytes.Buffer, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return run(ctx, cmd)
}

func headLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
