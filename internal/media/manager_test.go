package media

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestKindForPath(t *testing.T) {
	cases := []struct {
		path string
		want Kind
	}{
		{"photo.PNG", KindImage},
		{"shot.jpg", KindImage},
		{"shot.jpeg", KindImage},
		{"movie.mp4", KindVideo},
		{"clip.avi", KindVideo},
		{"clip.mov", KindVideo},
		{"song.mp3", KindAudio},
		{"voice.wav", KindAudio},
		{"readme.txt", KindText},
		{"paper.pdf", KindText},
	}
	for _, tc := range cases {
		got, err := KindForPath(tc.path)
		if err != nil {
			t.Errorf("KindForPath(%q): %v", tc.path, err)
			continue
		}
		if got != tc.want {
			t.Errorf("KindForPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}

	if _, err := KindForPath("archive.zip"); err == nil {
		t.Error("expected an error for an unsupported extension")
	}
}

func TestMIMEForPath(t *testing.T) {
	cases := map[string]string{
		"a.png":  "image/png",
		"a.JPG":  "image/jpeg",
		"a.mp4":  "video/mp4",
		"a.mov":  "video/quicktime",
		"a.mp3":  "audio/mpeg",
		"a.wav":  "audio/wav",
		"a.txt":  "text/plain",
		"a.pdf":  "application/pdf",
		"a.blob": "application/octet-stream",
	}
	for path, want := range cases {
		if got := MIMEForPath(path); got != want {
			t.Errorf("MIMEForPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestAttach(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	m := NewManager(root, 0, 0)

	path := writeFile(t, src, "cat.png", []byte("png-bytes"))
	staged, err := m.Attach("sess-1", path)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if staged.Kind != KindImage {
		t.Errorf("kind = %q, want %q", staged.Kind, KindImage)
	}
	if staged.MIME != "image/png" {
		t.Errorf("mime = %q, want image/png", staged.MIME)
	}
	if staged.OriginalName != "cat.png" {
		t.Errorf("original name = %q, want cat.png", staged.OriginalName)
	}
	if !strings.HasSuffix(staged.Path, ".png") {
		t.Errorf("staged path %q should keep the extension", staged.Path)
	}
	if filepath.Dir(staged.Path) != filepath.Join(root, "sess-1") {
		t.Errorf("staged outside the session dir: %s", staged.Path)
	}

	data, err := os.ReadFile(staged.Path)
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if !bytes.Equal(data, []byte("png-bytes")) {
		t.Error("staged content differs from source")
	}

	// Identical content stages to the identical path.
	again, err := m.Attach("sess-1", path)
	if err != nil {
		t.Fatalf("second Attach: %v", err)
	}
	if again.Path != staged.Path {
		t.Errorf("re-attach path %q, want %q", again.Path, staged.Path)
	}
}

func TestAttach_RejectsOversized(t *testing.T) {
	m := NewManager(t.TempDir(), 10, 0)
	path := writeFile(t, t.TempDir(), "big.png", bytes.Repeat([]byte("x"), 11))
	if _, err := m.Attach("s", path); err == nil {
		t.Fatal("expected a size limit error")
	}
}

func TestAttach_RejectsUnsupported(t *testing.T) {
	m := NewManager(t.TempDir(), 0, 0)
	path := writeFile(t, t.TempDir(), "tool.exe", []byte("mz"))
	if _, err := m.Attach("s", path); err == nil {
		t.Fatal("expected an unsupported type error")
	}
}

func TestStageBytes(t *testing.T) {
	m := NewManager(t.TempDir(), 0, 0)
	staged, err := m.StageBytes("live-1", "frame.jpg", []byte("jpeg-frame"))
	if err != nil {
		t.Fatalf("StageBytes: %v", err)
	}
	if staged.Kind != KindImage || staged.Size != 10 {
		t.Errorf("staged = %+v", staged)
	}
	if _, err := os.Stat(staged.Path); err != nil {
		t.Errorf("staged file missing: %v", err)
	}

	if _, err := m.StageBytes("", "frame.jpg", []byte("x")); err == nil {
		t.Error("expected an error for an empty session id")
	}
}

func TestSessionFilesAndCleanup(t *testing.T) {
	root := t.TempDir()
	src := t.TempDir()
	m := NewManager(root, 0, 0)

	if _, err := m.Attach("s1", writeFile(t, src, "a.png", []byte("aaa"))); err != nil {
		t.Fatalf("Attach a.png: %v", err)
	}
	if _, err := m.Attach("s1", writeFile(t, src, "b.mp3", []byte("bbb"))); err != nil {
		t.Fatalf("Attach b.mp3: %v", err)
	}
	if _, err := m.Attach("s2", writeFile(t, src, "c.txt", []byte("ccc"))); err != nil {
		t.Fatalf("Attach c.txt: %v", err)
	}

	files, err := m.SessionFiles("s1")
	if err != nil {
		t.Fatalf("SessionFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 staged files, got %d", len(files))
	}

	// Unknown session lists as empty, not an error.
	none, err := m.SessionFiles("nope")
	if err != nil || len(none) != 0 {
		t.Fatalf("unknown session: %d files, err %v", len(none), err)
	}

	if err := m.CleanupSession("s1"); err != nil {
		t.Fatalf("CleanupSession: %v", err)
	}
	files, err = m.SessionFiles("s1")
	if err != nil || len(files) != 0 {
		t.Fatalf("after cleanup: %d files, err %v", len(files), err)
	}

	// Other sessions keep their media.
	files, _ = m.SessionFiles("s2")
	if len(files) != 1 {
		t.Errorf("s2 should keep its file, got %d", len(files))
	}
}

func TestRemoveStaged(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, 0, 0)

	staged, err := m.StageBytes("s", "pic.png", []byte("data"))
	if err != nil {
		t.Fatalf("StageBytes: %v", err)
	}
	if err := m.RemoveStaged(staged.Path); err != nil {
		t.Fatalf("RemoveStaged: %v", err)
	}
	if _, err := os.Stat(staged.Path); !os.IsNotExist(err) {
		t.Error("staged file should be gone")
	}
}

func TestRemoveStaged_OutsideRoot(t *testing.T) {
	m := NewManager(t.TempDir(), 0, 0)
	outside := writeFile(t, t.TempDir(), "x.png", []byte("x"))

	if err := m.RemoveStaged(outside); err == nil {
		t.Fatal("expected an error for a path outside the media root")
	}
	if _, err := os.Stat(outside); err != nil {
		t.Error("file outside the root should survive")
	}
}
