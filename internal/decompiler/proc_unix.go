//go:build unix

package decompiler

import (
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// processGroup owns the decompiler's process group for one invocation.
type processGroup struct {
	cmd   *exec.Cmd
	grace time.Duration

	mu       sync.Mutex
	escalate *time.Timer
	released bool
}

// configureProcess places the decompiler in its own process group. On
// cancellation the whole group gets SIGTERM, escalated to SIGKILL after grace.
// A zero grace sends SIGKILL straight away.
func configureProcess(cmd *exec.Cmd, grace time.Duration) *processGroup {
	g := &processGroup{cmd: cmd, grace: grace}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = g.terminate
	return g
}

func (g *processGroup) terminate() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return nil
	}

	pgid := -g.cmd.Process.Pid
	if g.grace <= 0 {
		return unix.Kill(pgid, unix.SIGKILL)
	}
	if err := unix.Kill(pgid, unix.SIGTERM); err != nil {
		return unix.Kill(pgid, unix.SIGKILL)
	}
	g.escalate = time.AfterFunc(g.grace, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if !g.released {
			_ = unix.Kill(pgid, unix.SIGKILL)
		}
	})
	return nil
}

// release runs once Wait has reaped the group leader. Anything the leader left
// behind in its group is killed, and no signal is sent to the group id after
// this returns.
func (g *processGroup) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return
	}
	g.released = true
	if g.escalate != nil {
		g.escalate.Stop()
	}
	if g.cmd.Process == nil {
		return
	}
	// ESRCH means the leader had no surviving children.
	_ = unix.Kill(-g.cmd.Process.Pid, unix.SIGKILL)
}

// killedByHost reports a SIGKILL we did not send, which on Linux almost always
// means the OOM killer or an rlimit reaped the process.
func killedByHost(exitErr *exec.ExitError) bool {
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return false
	}
	return status.Signaled() && status.Signal() == syscall.SIGKILL
}
