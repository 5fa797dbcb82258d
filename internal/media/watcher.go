package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"omnichat/internal/logging"
)

// Watcher watches an inbox directory and stages supported files
// dropped into it, so a screenshot saved to the inbox attaches to the
// active session without leaving the chat. Editors and download
// managers write files in bursts, so events are debounced until a
// file has settled.
type Watcher struct {
	mu          sync.Mutex
	manager     *Manager
	watcher     *fsnotify.Watcher
	dir         string
	sessionID   string
	events      chan StagedFile
	debounce    map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a watcher that stages files from dir through
// manager. Staged files go to the "inbox" session until SetSession
// points them elsewhere.
func NewWatcher(manager *Manager, dir string) *Watcher {
	return &Watcher{
		manager:     manager,
		dir:         dir,
		sessionID:   "inbox",
		events:      make(chan StagedFile, 16),
		debounce:    make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// SetSession points newly staged files at a session.
func (w *Watcher) SetSession(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if id != "" {
		w.sessionID = id
	}
}

// Events delivers files staged from the inbox.
func (w *Watcher) Events() <-chan StagedFile {
	return w.events
}

// Watching reports whether the watcher is running.
func (w *Watcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start creates the inbox directory if needed and begins watching it.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("watcher already running")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.watcher = fw
	w.running = true
	go w.run(ctx)
	logging.Media("inbox watcher started on %s", w.dir)
	return nil
}

// Stop shuts the watcher down and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
	logging.Media("inbox watcher stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.MediaError("inbox watcher: %v", err)
		case <-ticker.C:
			w.drainDebounced()
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if _, err := KindForPath(ev.Name); err != nil {
		return
	}
	switch {
	case ev.Op&fsnotify.Create != 0, ev.Op&fsnotify.Write != 0:
		w.mu.Lock()
		w.debounce[ev.Name] = time.Now()
		w.mu.Unlock()
	case ev.Op&fsnotify.Remove != 0, ev.Op&fsnotify.Rename != 0:
		w.mu.Lock()
		delete(w.debounce, ev.Name)
		w.mu.Unlock()
	}
	// Chmod-only events are ignored.
}

// drainDebounced stages files whose last event is old enough that the
// writer is done with them.
func (w *Watcher) drainDebounced() {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, last := range w.debounce {
		if now.Sub(last) >= w.debounceDur {
			ready = append(ready, path)
			delete(w.debounce, path)
		}
	}
	session := w.sessionID
	w.mu.Unlock()

	for _, path := range ready {
		w.stage(path, session)
	}
}

func (w *Watcher) stage(path, sessionID string) {
	staged, err := w.manager.Attach(sessionID, path)
	if err != nil {
		logging.MediaWarn("inbox file %s not staged: %v", filepath.Base(path), err)
		return
	}
	// The inbox copy is redundant once staged.
	if err := os.Remove(path); err != nil {
		logging.MediaDebug("could not remove inbox file %s: %v", path, err)
	}
	select {
	case w.events <- *staged:
	default:
		logging.MediaWarn("event channel full, dropping %s", staged.OriginalName)
	}
}

// Scan stages everything already sitting in the inbox. Called on
// startup so files dropped while the app was closed are not missed.
func (w *Watcher) Scan() int {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			logging.MediaError("inbox scan: %v", err)
		}
		return 0
	}
	w.mu.Lock()
	session := w.sessionID
	w.mu.Unlock()

	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if _, err := KindForPath(path); err != nil {
			continue
		}
		w.stage(path, session)
		n++
	}
	if n > 0 {
		logging.Media("inbox scan staged %d file(s)", n)
	}
	return n
}
