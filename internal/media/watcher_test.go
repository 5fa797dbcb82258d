package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testWatcher(t *testing.T) (*Watcher, *Manager, string) {
	t.Helper()
	root := t.TempDir()
	inbox := t.TempDir()
	m := NewManager(root, 0, 0)
	w := NewWatcher(m, inbox)
	w.debounceDur = 50 * time.Millisecond
	return w, m, inbox
}

func waitForEvent(t *testing.T, w *Watcher) StagedFile {
	t.Helper()
	select {
	case staged := <-w.Events():
		return staged
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a staged file")
		return StagedFile{}
	}
}

func TestWatcher_StagesDroppedFile(t *testing.T) {
	w, _, inbox := testWatcher(t)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeFile(t, inbox, "shot.png", []byte("screenshot"))

	staged := waitForEvent(t, w)
	if staged.OriginalName != "shot.png" {
		t.Errorf("original name = %q", staged.OriginalName)
	}
	if staged.Kind != KindImage {
		t.Errorf("kind = %q", staged.Kind)
	}
	if _, err := os.Stat(staged.Path); err != nil {
		t.Errorf("staged file missing: %v", err)
	}

	// The inbox copy is consumed.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(filepath.Join(inbox, "shot.png")); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("inbox file was not removed")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWatcher_IgnoresUnsupportedFiles(t *testing.T) {
	w, _, inbox := testWatcher(t)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeFile(t, inbox, "junk.zip", []byte("zipzip"))
	writeFile(t, inbox, "real.jpg", []byte("jpeg"))

	// Only the supported file arrives.
	staged := waitForEvent(t, w)
	if staged.OriginalName != "real.jpg" {
		t.Errorf("staged %q, want real.jpg", staged.OriginalName)
	}

	select {
	case extra := <-w.Events():
		t.Errorf("unexpected extra event for %q", extra.OriginalName)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_SetSession(t *testing.T) {
	w, m, inbox := testWatcher(t)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	w.SetSession("sess-42")
	writeFile(t, inbox, "doc.txt", []byte("hello"))

	staged := waitForEvent(t, w)
	wantDir := filepath.Join(m.Root(), "sess-42")
	if filepath.Dir(staged.Path) != wantDir {
		t.Errorf("staged under %q, want %q", filepath.Dir(staged.Path), wantDir)
	}
}

func TestWatcher_Scan(t *testing.T) {
	w, _, inbox := testWatcher(t)

	// Files dropped before the watcher started.
	writeFile(t, inbox, "old1.png", []byte("one"))
	writeFile(t, inbox, "old2.txt", []byte("two"))
	writeFile(t, inbox, "skip.bin", []byte("three"))

	if n := w.Scan(); n != 2 {
		t.Fatalf("Scan staged %d files, want 2", n)
	}

	names := map[string]bool{}
	for i := 0; i < 2; i++ {
		names[waitForEvent(t, w).OriginalName] = true
	}
	if !names["old1.png"] || !names["old2.txt"] {
		t.Errorf("staged names = %v", names)
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w, _, _ := testWatcher(t)
	if w.Watching() {
		t.Fatal("should not be watching before Start")
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !w.Watching() {
		t.Fatal("should be watching after Start")
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}
	w.Stop()
	if w.Watching() {
		t.Fatal("should not be watching after Stop")
	}
	// A second Stop is harmless.
	w.Stop()
}
