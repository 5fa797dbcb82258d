package live

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"omnichat/internal/logging"
)

const (
	stopGracePeriod = 2 * time.Second
	stderrTailSize  = 4096
)

// Supervisor runs the live loop as a child process so the TUI stays
// responsive and a wedged capture stack can always be killed. Graceful
// stop is SIGTERM, escalating to SIGKILL after a grace period.
type Supervisor struct {
	bin  string
	args []string

	mu       sync.Mutex
	cmd      *exec.Cmd
	waitCh   chan error
	tail     *tailBuffer
	running  bool
	exitErr  error
	killWait time.Duration
}

// NewSupervisor prepares a supervisor for `bin args...`. The caller
// typically passes its own executable with a child-mode subcommand.
func NewSupervisor(bin string, args ...string) *Supervisor {
	return &Supervisor{
		bin:      bin,
		args:     args,
		killWait: stopGracePeriod,
	}
}

// Start launches the child. The child's stdout flows to ours; stderr
// is kept in a tail buffer for diagnostics on unexpected exit.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("live process already running")
	}

	tail := &tailBuffer{max: stderrTailSize}
	cmd := exec.Command(s.bin, s.args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = tail
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start live process: %w", err)
	}

	s.cmd = cmd
	s.tail = tail
	s.running = true
	s.exitErr = nil
	s.waitCh = make(chan error, 1)
	go func() { s.waitCh <- cmd.Wait() }()

	logging.Live("live process started (pid %d)", cmd.Process.Pid)
	return nil
}

// Running polls the child. An unexpected exit flips the state and
// logs the stderr tail.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.poll()
	return s.running
}

// poll consumes a pending exit. Callers hold the lock.
func (s *Supervisor) poll() {
	select {
	case err := <-s.waitCh:
		s.running = false
		s.exitErr = err
		if err != nil {
			logging.LiveError("live process exited unexpectedly: %v\n%s", err, s.tail.String())
		}
	default:
	}
}

// Pid returns the child's pid, or 0 when nothing runs.
func (s *Supervisor) Pid() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.cmd == nil || s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}

// ExitErr reports how the last child ended, nil for a clean exit.
func (s *Supervisor) ExitErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitErr
}

// StderrTail returns the last stderr output of the child.
func (s *Supervisor) StderrTail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tail == nil {
		return ""
	}
	return s.tail.String()
}

// Stop terminates the child: SIGTERM first, SIGKILL if it lingers
// past the grace period. Idempotent.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.poll()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cmd := s.cmd
	wait := s.waitCh
	grace := s.killWait
	s.mu.Unlock()

	terminate(cmd)
	var err error
	select {
	case err = <-wait:
	case <-time.After(grace):
		logging.LiveWarn("live process ignored SIGTERM, killing")
		_ = cmd.Process.Kill()
		err = <-wait
	}

	s.mu.Lock()
	s.running = false
	s.exitErr = err
	s.mu.Unlock()
	logging.Live("live process stopped")
}

// terminate asks the child to exit. Windows has no SIGTERM delivery,
// so it goes straight to Kill there.
func terminate(cmd *exec.Cmd) {
	if runtime.GOOS == "windows" {
		_ = cmd.Process.Kill()
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
