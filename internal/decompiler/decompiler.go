// Package decompiler runs the external decompiler executable against a staged
// file and classifies how the run ended.
//
// Each invocation spawns exactly one process, bounded by a wall-clock timeout
// and a combined stdout+stderr ceiling. Arguments are passed as an argv slice;
// no shell is involved. The process runs in its own process group so that a
// timeout or output overflow terminates it together with any children.
package decompiler

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"decompapi/internal/config"
	"decompapi/internal/model"
)

// waitDelaySlack is added to the kill grace period before Wait gives up on a
// cancelled process, and bounds how long output is drained after it exits.
const waitDelaySlack = time.Second

var errOutputLimit = errors.New("decompiler output exceeded limit")

// Invoker runs the decompiler.
type Invoker interface {
	// Invoke runs the decompiler against path. It never returns an error;
	// every failure is expressed as an Outcome on the result.
	Invoke(ctx context.Context, path string, opts model.DecompileOptions) model.InvocationResult
	// Available reports whether the configured executable can be resolved.
	Available() error
}

type execInvoker struct {
	cfg config.DecompilerConfig
}

// New returns an Invoker for the executable described by cfg.
func New(cfg config.DecompilerConfig) Invoker {
	return &execInvoker{cfg: cfg}
}

func (e *execInvoker) Available() error {
	_, err := exec.LookPath(e.cfg.Path)
	return err
}

func (e *execInvoker) Invoke(ctx context.Context, path string, opts model.DecompileOptions) model.InvocationResult {
	start := time.Now()

	timeoutCtx, cancelTimeout := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancelTimeout()
	runCtx, cancelRun := context.WithCancelCause(timeoutCtx)
	defer cancelRun(nil)

	out := newCappedOutput(e.cfg.MaxOutputBytes, func() { cancelRun(errOutputLimit) })

	cmd := exec.CommandContext(runCtx, e.cfg.Path, e.argv(path, opts)...)
	cmd.Env = sanitizedEnvironment()
	group := configureProcess(cmd, e.cfg.KillGrace)
	cmd.WaitDelay = e.cfg.KillGrace + waitDelaySlack

	err := e.run(cmd, group, out)

	res := model.InvocationResult{
		Stdout:   out.StdoutString(),
		Stderr:   out.StderrString(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	classify(&res, err, cmd.ProcessState, out.Tripped(), timeoutCtx, ctx)
	return res
}

// run starts cmd with its output wired to out through pipes owned here, so
// Wait returns as soon as the leader exits even if a descendant still holds
// the write ends. The group is released right after, which closes those ends.
func (e *execInvoker) run(cmd *exec.Cmd, group *processGroup, out *cappedOutput) error {
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return err
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return err
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	startErr := cmd.Start()
	stdoutW.Close()
	stderrW.Close()
	if startErr != nil {
		stdoutR.Close()
		stderrR.Close()
		return startErr
	}
	defer stdoutR.Close()
	defer stderrR.Close()

	var drained sync.WaitGroup
	for _, p := range []struct {
		r *os.File
		w io.Writer
	}{{stdoutR, out.Stdout()}, {stderrR, out.Stderr()}} {
		drained.Add(1)
		go func(r *os.File, w io.Writer) {
			defer drained.Done()
			_, _ = io.Copy(w, r)
		}(p.r, p.w)
	}

	waitErr := cmd.Wait()
	group.release()

	done := make(chan struct{})
	go func() {
		drained.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitDelaySlack):
		// A descendant escaped the group and kept a pipe open.
		stdoutR.Close()
		stderrR.Close()
		<-done
	}
	return waitErr
}

// argv is [dialect] <path> [format flag] [--encode-key n].
func (e *execInvoker) argv(path string, opts model.DecompileOptions) []string {
	args := make([]string, 0, 5)
	if opts.Dialect != model.DialectDefault {
		args = append(args, string(opts.Dialect))
	}
	args = append(args, path)
	if e.cfg.FormatFlag != "" {
		args = append(args, e.cfg.FormatFlag)
	}
	if opts.EncodeKey != nil {
		args = append(args, "--encode-key", strconv.Itoa(int(*opts.EncodeKey)))
	}
	return args
}

// classify checks the contexts before looking at the exit status: once a
// context fired, the exit status only reflects the signal we sent. Truncated
// output is never reported as a success, even if the process beat the kill.
func classify(res *model.InvocationResult, err error, state *os.ProcessState, tripped bool, timeoutCtx, parent context.Context) {
	if tripped {
		res.Outcome = model.OutcomeOutputLimit
		return
	}

	if err == nil || (errors.Is(err, exec.ErrWaitDelay) && state != nil && state.Success()) {
		res.Outcome = model.OutcomeCompleted
		res.ExitCode = 0
		return
	}

	if perr := parent.Err(); perr != nil && !errors.Is(perr, context.DeadlineExceeded) {
		res.Outcome = model.OutcomeFailed
		res.Detail = "request cancelled: " + perr.Error()
		return
	}
	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		res.Outcome = model.OutcomeTimedOut
		return
	}

	if notInvocable(err) {
		res.Outcome = model.OutcomeNotFound
		res.Detail = err.Error()
		return
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if killedByHost(exitErr) {
			res.Outcome = model.OutcomeOutputLimit
			res.Detail = exitErr.Error()
			return
		}
		res.Outcome = model.OutcomeCompleted
		res.ExitCode = exitErr.ExitCode()
		return
	}

	res.Outcome = model.OutcomeFailed
	res.Detail = err.Error()
}

func notInvocable(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr) ||
		errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission)
}

// sanitizedEnvironment keeps the service's own secrets (database credentials
// and the like) out of the decompiler's environment.
func sanitizedEnvironment() []string {
	safeVars := []string{"PATH", "HOME", "LANG", "LC_ALL", "TMPDIR", "TZ"}
	env := make([]string, 0, len(safeVars))
	for _, name := range safeVars {
		if value, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+value)
		}
	}
	return env
}
