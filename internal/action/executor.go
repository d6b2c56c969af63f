package action

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kodflow/agld/internal/config"
	"github.com/kodflow/agld/internal/expand"
	"github.com/kodflow/agld/internal/svcstate"
)

// Target is the narrow view of a live sub-service the executor needs. The
// supervisor's Service type implements it; keeping the interface here (not
// the concrete Service) avoids a supervisor<->action import cycle.
type Target interface {
	Manifest() *config.Manifest
	State() svcstate.State
	SetState(s svcstate.State, message string)
	// StartMonitored dispatches the "start" verb: it must raise if a
	// monitored start is already in flight (Service.started != "").
	StartMonitored(param string) error
	// StopMonitored dispatches the "stop" verb.
	StopMonitored(param string) error
	// ServiceControl dispatches the Windows-only "service" verb; it
	// updates the target's observable state itself and reports whether
	// the operation should count as a successful verb effect.
	ServiceControl(ctx Context, name string) (bool, error)
}

// Executor parses and dispatches action strings against a Target.
type Executor struct {
	Expander   *expand.Expander
	HTTPClient *http.Client
}

// New builds an Executor. timeoutMS is the shared HTTP probe timeout from
// SupervisorSettings.
func New(expander *expand.Expander, timeoutMS int) *Executor {
	return &Executor{
		Expander: expander,
		HTTPClient: &http.Client{
			Timeout: time.Duration(timeoutMS) * time.Millisecond,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Run parses raw and dispatches it against target in ctx. It returns an
// error only for structural failures that the caller must propagate
// (unexpected exit/HTTP status or a dispatch error under Start/Stop, and
// any "only a single start is allowed"-style invariant violation).
func (e *Executor) Run(target Target, ctx Context, raw string) error {
	act, err := Parse(raw, ctx)
	if err != nil {
		return err
	}

	rawParam := act.Param
	if rawParam == "" {
		rawParam = target.Manifest().Run
	}

	param, err := e.Expander.Expand(target.Manifest(), rawParam)
	if err != nil {
		return fmt.Errorf("expanding action parameter: %w", err)
	}

	for _, verb := range act.Verbs {
		ok, err := e.effect(target, ctx, verb, act, param)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return nil
}

// effect dispatches a single verb, returning whether it reported success.
func (e *Executor) effect(target Target, ctx Context, verb string, act *Action, param string) (bool, error) {
	switch verb {
	case "exec":
		return e.execVerb(param)
	case "wait":
		return e.waitVerb(target, ctx, act, param)
	case "http", "https":
		return e.httpVerb(target, ctx, act, verb, param)
	case "sleep":
		return e.sleepVerb(param)
	case "start":
		if err := target.StartMonitored(param); err != nil {
			return false, err
		}
		return true, nil
	case "stop":
		if err := target.StopMonitored(param); err != nil {
			return false, err
		}
		return true, nil
	case "service":
		return target.ServiceControl(ctx, param)
	default:
		return false, nil
	}
}

// execVerb spawns the command and returns without waiting for completion
// (spawn-and-forget).
func (e *Executor) execVerb(param string) (bool, error) {
	cmd, err := buildCommand(context.Background(), param)
	if err != nil {
		return false, err
	}
	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("exec %q: %w", param, err)
	}
	go cmd.Wait() // reap without blocking the caller
	return true, nil
}

// waitVerb spawns the command and blocks for its exit code, comparing it
// against the action's expected result (default 0).
func (e *Executor) waitVerb(target Target, ctx Context, act *Action, param string) (bool, error) {
	cmd, err := buildCommand(context.Background(), param)
	if err != nil {
		return false, err
	}
	err = cmd.Run()

	code := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			code = exitErr.ExitCode()
		} else {
			return false, fmt.Errorf("wait %q: %w", param, err)
		}
	}

	expected := act.ExpectedOrDefault("wait")
	if code != expected {
		reason := fmt.Sprintf("wait %q returned %d but expected %d", param, code, expected)
		return e.handleMismatch(target, ctx, reason)
	}
	if ctx == Watch {
		target.SetState(svcstate.Running, fmt.Sprintf("wait %q returned %d", param, code))
	}
	return true, nil
}

// httpVerb performs the probe GET and compares its status code.
func (e *Executor) httpVerb(target Target, ctx Context, act *Action, verb, param string) (bool, error) {
	// param is the post-expansion remainder after the verb's own colon
	// (e.g. "//127.0.0.1:8080/health"); glue the scheme back on to
	// recover the full URL.
	url := verb + ":" + param

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("building request for %q: %w", url, err)
	}

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		reason := fmt.Sprintf("%s request to %s failed: %v", verb, url, err)
		return e.handleMismatch(target, ctx, reason)
	}
	defer resp.Body.Close()

	expected := act.ExpectedOrDefault(verb)
	if resp.StatusCode != expected {
		reason := fmt.Sprintf("http returned %d but expected %d", resp.StatusCode, expected)
		return e.handleMismatch(target, ctx, reason)
	}
	if ctx == Watch {
		target.SetState(svcstate.Running, fmt.Sprintf("http %d", resp.StatusCode))
	}
	return true, nil
}

// sleepVerb parses param as milliseconds and blocks for that long. An
// unparseable parameter is treated as a non-success verb, not an error.
func (e *Executor) sleepVerb(param string) (bool, error) {
	ms, err := strconv.Atoi(strings.TrimSpace(param))
	if err != nil {
		return false, nil
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
	return true, nil
}

// handleMismatch applies spec §4.3's expected-status policy: Start/Stop
// raise, Watch records Failed and reports the verb as handled (so the
// caller does not also raise).
func (e *Executor) handleMismatch(target Target, ctx Context, reason string) (bool, error) {
	if ctx == Watch {
		target.SetState(svcstate.Failed, reason)
		return true, nil
	}
	return false, fmt.Errorf("%s", reason)
}

// buildCommand splits param into an executable and arguments the way a
// shell would tokenize unquoted words (the manifest is administrator
// authored, not external input).
func buildCommand(ctx context.Context, param string) (*exec.Cmd, error) {
	fields := strings.Fields(param)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return exec.CommandContext(ctx, fields[0], fields[1:]...), nil
}
