// Package runner implements the monitored sub-service worker: spawn,
// stream output, and the restart/backoff ladder.
package runner

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/kodflow/agld/internal/kernel"
	"github.com/kodflow/agld/internal/logging"
	"github.com/kodflow/agld/internal/svcstate"
)

// Target is the narrow view of a sub-service the Runner updates. The
// supervisor's Service type implements it alongside action.Target.
type Target interface {
	State() svcstate.State
	SetState(state svcstate.State, message string)
}

// Config holds the spawn parameters a Runner copies into locals at
// construction, so the owning sub-service may be released independently
// (spec §4.3/§4.4: "the SubService may be nilled at any time").
type Config struct {
	Name    string
	Command string
	WorkDir string
	Env     []string
	// ReplaceEnv requests Env replace rather than augment the parent
	// process's own environment (manifest option soReplaceEnv).
	ReplaceEnv bool
	// Breakaway requests a job/process-group that survives independently
	// of the supervisor's own job (manifest option soWinJobCloseChildren).
	Breakaway bool

	RetryStableSec         int
	AbortExitCodes         []int
	StopRunAbortTimeoutSec int

	// Redirect is optional; when nil, console output is discarded.
	Redirect *logging.RedirectWriter
	Kernel   *kernel.Kernel
	Target   Target

	// Warn receives non-fatal operational messages (redirect I/O
	// failures, spawn errors). May be nil.
	Warn func(format string, args ...any)
}

// Runner owns exactly one child process spawn-through-exit cycle at a
// time, looping according to the retry/backoff ladder until Abort is
// called or the sub-service's policy pauses it indefinitely.
type Runner struct {
	cfg Config

	abortCh   chan struct{}
	abortOnce sync.Once
	retryCh   chan struct{}
	doneCh    chan struct{}

	mu             sync.Mutex
	abortRequested bool
	exitCode       int
}

// New constructs a Runner. It does not start the worker; call Execute in
// its own goroutine.
func New(cfg Config) *Runner {
	return &Runner{
		cfg:     cfg,
		abortCh: make(chan struct{}),
		retryCh: make(chan struct{}, 1),
		doneCh:  make(chan struct{}),
	}
}

// Abort requests the Runner terminate its current spawn (if any) and
// exit the loop instead of restarting. Idempotent.
func (r *Runner) Abort() {
	r.mu.Lock()
	r.abortRequested = true
	r.mu.Unlock()
	r.abortOnce.Do(func() { close(r.abortCh) })
}

// RetryNow releases a Paused backoff wait immediately without requesting
// abort. A no-op if the Runner isn't currently waiting.
func (r *Runner) RetryNow() {
	select {
	case r.retryCh <- struct{}{}:
	default:
	}
}

// Done returns a channel closed once Execute has returned.
func (r *Runner) Done() <-chan struct{} { return r.doneCh }

// ExitCode returns the most recently observed exit code of the spawn.
func (r *Runner) ExitCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exitCode
}

func (r *Runner) isAborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abortRequested
}

func (r *Runner) setExitCode(code int) {
	r.mu.Lock()
	r.exitCode = code
	r.mu.Unlock()
}

// Execute runs the spawn/monitor/backoff loop until aborted. It never
// returns early on a transient failure: every exit code is handled by
// the retry policy, including spawn failures (treated as Failed with a
// message, still subject to restart).
func (r *Runner) Execute() {
	defer close(r.doneCh)

	retryStableSec := r.cfg.RetryStableSec
	abortCodes := make(map[int]bool, len(r.cfg.AbortExitCodes))
	for _, c := range r.cfg.AbortExitCodes {
		abortCodes[c] = true
	}

	var firstUnstable time.Time

	for {
		if r.isAborted() {
			return
		}

		startTick := time.Now()
		exitCode, spawnErr := r.spawnAndWait()
		r.setExitCode(exitCode)

		if spawnErr != nil {
			r.setState(svcstate.Failed, fmt.Sprintf("spawn error: %v", spawnErr))
		} else {
			r.setState(svcstate.Stopped, fmt.Sprintf("Stopped (ExitCode=%d)", exitCode))
		}

		if r.isAborted() {
			return
		}

		if retryStableSec == 0 || abortCodes[exitCode] {
			r.setState(svcstate.Paused, "Wait for abort or /retry")
			if !r.waitForRetryOrAbort(0) {
				return
			}
			continue
		}

		elapsed := time.Since(startTick)
		if elapsed >= time.Duration(retryStableSec)*time.Second {
			firstUnstable = time.Time{}
			continue
		}

		if firstUnstable.IsZero() {
			firstUnstable = startTick
		}
		pauseSec := backoffSeconds(time.Since(firstUnstable))
		jitter := time.Duration(rand.Int63n(int64(pauseSec)*100)) * time.Millisecond

		r.setState(svcstate.Paused, fmt.Sprintf("Wait %d sec", pauseSec))
		if !r.waitForRetryOrAbort(time.Duration(pauseSec)*time.Second + jitter) {
			return
		}
	}
}

// backoffSeconds implements the ladder of spec invariant 5: 2→15→30→60→
// 120→240, stepped by elapsed-since-first-unstable-run minute thresholds
// 0, 1, 5, 10, 30, 60, never exceeding 240.
func backoffSeconds(sinceFirstUnstable time.Duration) int {
	minutes := sinceFirstUnstable.Minutes()
	switch {
	case minutes > 60:
		return 240
	case minutes > 30:
		return 120
	case minutes > 10:
		return 60
	case minutes > 5:
		return 30
	case minutes >= 1:
		return 15
	default:
		return 2
	}
}

// waitForRetryOrAbort blocks until abort, a retry-now signal, or d
// elapses (d == 0 waits indefinitely for one of the first two). It
// returns false if the wait ended because of abort.
func (r *Runner) waitForRetryOrAbort(d time.Duration) bool {
	var timerCh <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		timerCh = t.C
	}
	select {
	case <-r.abortCh:
		return false
	case <-r.retryCh:
		return true
	case <-timerCh:
		return true
	}
}

func (r *Runner) setState(state svcstate.State, message string) {
	if r.cfg.Target == nil {
		return
	}
	r.cfg.Target.SetState(state, message)
}

func (r *Runner) warnf(format string, args ...any) {
	if r.cfg.Warn != nil {
		r.cfg.Warn(format, args...)
	}
}

// spawnAndWait runs exactly one child-process lifetime: build, start,
// stream output, wait for exit (or abort-triggered termination).
func (r *Runner) spawnAndWait() (int, error) {
	cmd, err := r.buildCommand()
	if err != nil {
		return -1, err
	}

	if r.cfg.Kernel != nil {
		r.cfg.Kernel.Process.Prepare(cmd, r.cfg.Breakaway)
	}

	out := &redirectAdapter{runner: r}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		return -1, err
	}
	out.pid = cmd.Process.Pid
	r.onRedirect("", out.pid)

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	select {
	case err := <-waitCh:
		return exitCodeFromErr(err), nil
	case <-r.abortCh:
		if r.cfg.Kernel != nil {
			_ = r.cfg.Kernel.Process.Terminate(cmd, time.Duration(r.stopTimeout())*time.Second)
		}
		return exitCodeFromErr(<-waitCh), nil
	}
}

func (r *Runner) stopTimeout() int {
	if r.cfg.StopRunAbortTimeoutSec <= 0 {
		return 10
	}
	return r.cfg.StopRunAbortTimeoutSec
}

// buildCommand tokenizes cfg.Command the way a shell would split
// unquoted words (manifests are administrator authored, not external
// input) and applies the working directory and environment.
func (r *Runner) buildCommand() (*exec.Cmd, error) {
	fields := strings.Fields(r.cfg.Command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	cmd := exec.Command(fields[0], fields[1:]...)
	if r.cfg.WorkDir != "" {
		cmd.Dir = r.cfg.WorkDir
	}
	if r.cfg.ReplaceEnv {
		cmd.Env = append([]string{}, r.cfg.Env...)
	} else if len(r.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), r.cfg.Env...)
	}
	return cmd, nil
}

// onRedirect implements spec §4.4's OnRedirect(text, pid): an empty text
// marks the Starting->Running transition; non-empty text is forwarded to
// the redirect writer, which handles rotation internally. It returns
// true once abort has been requested, telling the output adapter to stop
// copying further bytes.
func (r *Runner) onRedirect(text string, pid int) bool {
	if r.isAborted() {
		return true
	}

	if text == "" {
		if r.cfg.Target != nil && r.cfg.Target.State() == svcstate.Starting {
			r.setState(svcstate.Running, fmt.Sprintf("Running (PID=%d)", pid))
		}
		return false
	}

	if r.cfg.Redirect != nil {
		if _, err := r.cfg.Redirect.Write([]byte(text)); err != nil {
			r.warnf("redirect write failed for %s, disabling further capture: %v", r.cfg.Name, err)
			r.cfg.Redirect = nil
		}
	}
	return false
}

// redirectAdapter turns cmd.Stdout/Stderr writes into OnRedirect calls.
// Returning io.EOF once aborted stops exec's copy goroutine without
// touching the child process itself; termination of the child is the
// caller's job via kernel.Process.Terminate.
type redirectAdapter struct {
	runner *Runner
	pid    int
}

func (a *redirectAdapter) Write(p []byte) (int, error) {
	if a.runner.onRedirect(string(p), a.pid) {
		return 0, io.EOF
	}
	return len(p), nil
}

func exitCodeFromErr(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
