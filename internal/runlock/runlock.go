// Package runlock keeps at most one harvester per host with a pid file.
// A second invocation while one is running is a normal condition, not an
// error: the caller logs and exits cleanly.
package runlock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// ErrAlreadyRunning indicates another live process holds the pid file.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Guard is a host-local single-instance lock backed by a pid file.
type Guard struct {
	path   string
	logger *slog.Logger
}

// New creates a guard over the given pid file path.
func New(path string, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{path: path, logger: logger}
}

// Acquire takes the pid file. A pid file left behind by a dead process is
// removed and retried once.
func (g *Guard) Acquire() error {
	if err := g.tryCreate(); err == nil {
		return nil
	} else if !os.IsExist(err) {
		return fmt.Errorf("create pid file %s: %w", g.path, err)
	}

	pid, err := g.readPID()
	if err == nil && processAlive(pid) {
		return fmt.Errorf("%w: pid %d holds %s", ErrAlreadyRunning, pid, g.path)
	}

	g.logger.Warn("removing stale pid file", "path", g.path, "pid", pid)
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale pid file %s: %w", g.path, err)
	}
	if err := g.tryCreate(); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyRunning, g.path)
		}
		return fmt.Errorf("create pid file %s: %w", g.path, err)
	}
	return nil
}

// Release removes the pid file if this process still owns it.
func (g *Guard) Release() {
	pid, err := g.readPID()
	if err != nil || pid != os.Getpid() {
		return
	}
	if err := os.Remove(g.path); err != nil && !os.IsNotExist(err) {
		g.logger.Warn("release pid file", "path", g.path, "error", err)
	}
}

func (g *Guard) tryCreate() error {
	f, err := os.OpenFile(g.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "%d\n", os.Getpid())
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(g.path)
		return werr
	}
	return nil
}

func (g *Guard) readPID() (int, error) {
	raw, err := os.ReadFile(g.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("pid file %s: %w", g.path, err)
	}
	return pid, nil
}

// processAlive reports whether a process with the given pid exists. Signal 0
// performs the permission and existence checks without delivering anything.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
