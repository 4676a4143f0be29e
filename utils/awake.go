package utils

import (
	"os/exec"
	"runtime"
	"sync"
)

// AwakeGuard keeps the machine from sleeping while a run is in progress.
// Acquire and Release are best-effort and never fail the run.
type AwakeGuard interface {
	Acquire()
	Release()
}

// NoopAwakeGuard does nothing.
type NoopAwakeGuard struct{}

func (NoopAwakeGuard) Acquire() {}
func (NoopAwakeGuard) Release() {}

// InhibitGuard holds an OS sleep inhibitor child process for the lifetime of
// the run: caffeinate on macOS, systemd-inhibit on Linux.
type InhibitGuard struct {
	logger *Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewAwakeGuard returns an InhibitGuard when enabled and the platform has a
// known inhibitor binary, otherwise a NoopAwakeGuard.
func NewAwakeGuard(enabled bool, logger *Logger) AwakeGuard {
	if !enabled || inhibitCommand() == nil {
		return NoopAwakeGuard{}
	}
	return &InhibitGuard{logger: logger}
}

func inhibitCommand() []string {
	switch runtime.GOOS {
	case "darwin":
		if path, err := exec.LookPath("caffeinate"); err == nil {
			return []string{path, "-dimsu"}
		}
	case "linux":
		if path, err := exec.LookPath("systemd-inhibit"); err == nil {
			return []string{path, "--what=idle:sleep", "--who=maps-scraper",
				"--why=scrape in progress", "sleep", "infinity"}
		}
	}
	return nil
}

// Acquire starts the inhibitor. Calling it twice is a no-op.
func (g *InhibitGuard) Acquire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cmd != nil {
		return
	}

	args := inhibitCommand()
	if args == nil {
		return
	}
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		g.logger.Warn("[awake] Could not start sleep inhibitor: %v", err)
		return
	}
	g.cmd = cmd
	g.logger.Debug("[awake] Sleep inhibitor started (pid %d)", cmd.Process.Pid)
}

// Release stops the inhibitor if it is running.
func (g *InhibitGuard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cmd == nil {
		return
	}

	if err := g.cmd.Process.Kill(); err != nil {
		g.logger.Warn("[awake] Could not stop sleep inhibitor: %v", err)
	}
	_ = g.cmd.Wait()
	g.cmd = nil
}
