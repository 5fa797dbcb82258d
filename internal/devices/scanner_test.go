package devices

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeFixture drops content into a temp file and returns its path.
func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeRoot builds a /dev and /sys tree with the given camera indices.
func fakeRoot(t *testing.T, indices ...int) string {
	t.Helper()
	root := t.TempDir()
	for _, i := range indices {
		dev := filepath.Join(root, "dev")
		if err := os.MkdirAll(dev, 0o755); err != nil {
			t.Fatal(err)
		}
		node := filepath.Join(dev, "video"+itoa(i))
		if err := os.WriteFile(node, nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func itoa(i int) string {
	return string(rune('0' + i))
}

func testOptions(goos, root string) *options {
	return &options{
		goos:    goos,
		root:    root,
		timeout: 5 * time.Second,
	}
}

func TestScanCamerasV4L2(t *testing.T) {
	root := fakeRoot(t, 0, 2)
	nameDir := filepath.Join(root, "sys", "class", "video4linux", "video0")
	if err := os.MkdirAll(nameDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nameDir, "name"), []byte("Integrated Camera: IR\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	detail := writeFixture(t, "v4l2.txt", v4l2Fixture)

	opts := testOptions("linux", root)
	opts.detailCmd = func(device string) []string { return []string{"cat", detail} }
	opts.probeCmd = func(device string) []string {
		if strings.HasSuffix(device, "video0") {
			return []string{"printf", "jpegbytes"}
		}
		return []string{"false"}
	}
	s := &Scanner{opts: opts}

	cams, notes := s.ScanCameras(context.Background())
	if len(notes) != 0 {
		t.Errorf("notes = %v", notes)
	}
	if len(cams) != 2 {
		t.Fatalf("cameras = %+v, want 2", cams)
	}
	if cams[0].Index != 0 || !cams[0].Working || cams[0].Name != "Integrated Camera: IR" {
		t.Errorf("camera 0 = %+v", cams[0])
	}
	if cams[0].Width != 1280 || cams[0].Height != 720 || cams[0].FPS != 30.0 {
		t.Errorf("camera 0 details = %+v", cams[0])
	}
	if cams[1].Index != 2 || cams[1].Working || cams[1].Name != "" {
		t.Errorf("camera 2 = %+v", cams[1])
	}
}

func TestScanCamerasV4L2MissingTools(t *testing.T) {
	root := fakeRoot(t, 0)
	opts := testOptions("linux", root)
	opts.detailCmd = func(device string) []string { return []string{"no-such-v4l2-ctl-xyz", device} }
	opts.probeCmd = func(device string) []string { return []string{"no-such-ffmpeg-xyz", device} }
	s := &Scanner{opts: opts}

	cams, notes := s.ScanCameras(context.Background())
	if len(cams) != 1 || cams[0].Working {
		t.Fatalf("cameras = %+v", cams)
	}
	joined := strings.Join(notes, "; ")
	if !strings.Contains(joined, "details unavailable") || !strings.Contains(joined, "not verified") {
		t.Errorf("notes = %v", notes)
	}
}

func TestScanCamerasV4L2NoNodes(t *testing.T) {
	s := &Scanner{opts: testOptions("linux", t.TempDir())}
	cams, notes := s.ScanCameras(context.Background())
	if len(cams) != 0 || len(notes) != 0 {
		t.Errorf("cameras = %+v, notes = %v", cams, notes)
	}
}

// enumToStderr mimics the ffmpeg device listing, which prints to
// stderr and exits nonzero.
func enumToStderr(t *testing.T, fixture string) []string {
	t.Helper()
	path := writeFixture(t, "enum.txt", fixture)
	return []string{"sh", "-c", "cat " + path + " >&2; exit 1"}
}

func TestScanCamerasDShow(t *testing.T) {
	opts := testOptions("windows", "/")
	opts.enumCmd = enumToStderr(t, dshowFixture)
	opts.probeCmd = func(device string) []string {
		if device == "Integrated Camera" {
			return []string{"printf", "jpegbytes"}
		}
		return []string{"false"}
	}
	s := &Scanner{opts: opts}

	cams, notes := s.ScanCameras(context.Background())
	if len(notes) != 0 {
		t.Errorf("notes = %v", notes)
	}
	if len(cams) != 2 {
		t.Fatalf("cameras = %+v, want 2", cams)
	}
	if cams[0].Device != "Integrated Camera" || !cams[0].Working || cams[0].Backend != "dshow" {
		t.Errorf("camera 0 = %+v", cams[0])
	}
	if cams[1].Device != "OBS Virtual Camera" || cams[1].Working {
		t.Errorf("camera 1 = %+v", cams[1])
	}
}

func TestScanCamerasAVFoundationSkipsScreenInputs(t *testing.T) {
	opts := testOptions("darwin", "/")
	opts.enumCmd = enumToStderr(t, avfFixture)
	opts.probeCmd = func(device string) []string { return []string{"printf", "jpegbytes"} }
	s := &Scanner{opts: opts}

	cams, _ := s.ScanCameras(context.Background())
	if len(cams) != 1 {
		t.Fatalf("cameras = %+v, want only the real camera", cams)
	}
	if cams[0].Name != "FaceTime HD Camera" || cams[0].Device != "0" || cams[0].Backend != "avfoundation" {
		t.Errorf("camera = %+v", cams[0])
	}
}

func TestScanCamerasEnumMissing(t *testing.T) {
	opts := testOptions("windows", "/")
	opts.enumCmd = []string{"no-such-ffmpeg-xyz", "-list_devices"}
	s := &Scanner{opts: opts}

	cams, notes := s.ScanCameras(context.Background())
	if len(cams) != 0 {
		t.Errorf("cameras = %+v", cams)
	}
	if len(notes) != 1 || !strings.Contains(notes[0], "skipped") {
		t.Errorf("notes = %v", notes)
	}
}

func TestScanScreensXrandr(t *testing.T) {
	opts := testOptions("linux", "/")
	opts.screenCmd = []string{"cat", writeFixture(t, "xrandr.txt", xrandrFixture)}
	s := &Scanner{opts: opts}

	screens, notes := s.ScanScreens(context.Background())
	if len(notes) != 0 {
		t.Errorf("notes = %v", notes)
	}
	if len(screens) != 3 {
		t.Fatalf("screens = %+v, want 3", screens)
	}
	if !screens[0].Combined {
		t.Error("index 0 should be the combined virtual screen")
	}
	if !screens[1].Primary || screens[1].Name != "eDP-1" {
		t.Errorf("screen 1 = %+v", screens[1])
	}
}

func TestScanScreensMissingTool(t *testing.T) {
	opts := testOptions("linux", "/")
	opts.screenCmd = []string{"no-such-xrandr-xyz"}
	s := &Scanner{opts: opts}

	screens, notes := s.ScanScreens(context.Background())
	if len(screens) != 0 {
		t.Errorf("screens = %+v", screens)
	}
	if len(notes) != 1 || !strings.Contains(notes[0], "skipped") {
		t.Errorf("notes = %v", notes)
	}
}

func TestScanMicrophonesALSA(t *testing.T) {
	opts := testOptions("linux", "/")
	opts.micCmd = []string{"cat", writeFixture(t, "arecord.txt", arecordFixture)}
	s := &Scanner{opts: opts}

	mics, notes := s.ScanMicrophones(context.Background())
	if len(notes) != 0 {
		t.Errorf("notes = %v", notes)
	}
	if len(mics) != 2 || mics[0].Name != "ALC3235 Analog" {
		t.Errorf("microphones = %+v", mics)
	}
}

func TestScanMicrophonesAVFoundation(t *testing.T) {
	opts := testOptions("darwin", "/")
	opts.enumCmd = enumToStderr(t, avfFixture)
	s := &Scanner{opts: opts}

	mics, _ := s.ScanMicrophones(context.Background())
	if len(mics) != 1 || mics[0].Name != "MacBook Pro Microphone" {
		t.Errorf("microphones = %+v", mics)
	}
}

func TestScanAggregatesNotes(t *testing.T) {
	opts := testOptions("linux", t.TempDir())
	opts.screenCmd = []string{"no-such-xrandr-xyz"}
	opts.micCmd = []string{"no-such-arecord-xyz"}
	s := &Scanner{opts: opts}

	inv := s.Scan(context.Background())
	if len(inv.Cameras) != 0 || len(inv.Screens) != 0 || len(inv.Microphones) != 0 {
		t.Errorf("inventory = %+v", inv)
	}
	if len(inv.Notes) != 2 {
		t.Errorf("notes = %v", inv.Notes)
	}
}

func TestTestCamera(t *testing.T) {
	root := fakeRoot(t, 3)

	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	frame := filepath.Join(t.TempDir(), "frame.jpg")
	if err := os.WriteFile(frame, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	opts := testOptions("linux", root)
	opts.probeCmd = func(device string) []string { return []string{"cat", frame} }
	s := &Scanner{opts: opts}

	res, err := s.TestCamera(context.Background(), 3)
	if err != nil {
		t.Fatalf("TestCamera: %v", err)
	}
	if res.Width != 4 || res.Height != 2 {
		t.Errorf("frame size = %dx%d, want 4x2", res.Width, res.Height)
	}
	if res.Bytes == 0 || !strings.HasSuffix(res.Device, "video3") {
		t.Errorf("result = %+v", res)
	}
}

func TestTestCameraMissingDevice(t *testing.T) {
	s := &Scanner{opts: testOptions("linux", t.TempDir())}
	if _, err := s.TestCamera(context.Background(), 7); err == nil {
		t.Fatal("expected error for a camera that does not exist")
	}
}

func TestTestCameraFailedCapture(t *testing.T) {
	root := fakeRoot(t, 0)
	opts := testOptions("linux", root)
	opts.probeCmd = func(device string) []string { return []string{"false"} }
	s := &Scanner{opts: opts}
	if _, err := s.TestCamera(context.Background(), 0); err == nil {
		t.Fatal("expected capture failure")
	}
}
