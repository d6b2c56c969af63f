// Package supervisor orchestrates the sub-service set: level-ordered
// start/stop, the watchdog loop, and the per-sub-service state machine.
package supervisor

import (
	"fmt"
	"sync"
	"time"

	"github.com/kodflow/agld/internal/action"
	"github.com/kodflow/agld/internal/config"
	"github.com/kodflow/agld/internal/expand"
	"github.com/kodflow/agld/internal/kernel"
	"github.com/kodflow/agld/internal/kernel/ports"
	"github.com/kodflow/agld/internal/logging"
	"github.com/kodflow/agld/internal/runner"
	"github.com/kodflow/agld/internal/svcstate"
)

// Service is one manifest's live state: a SubService in spec terms. It
// implements both action.Target and runner.Target.
type Service struct {
	manifest *config.Manifest
	expander *expand.Expander
	kernel   *kernel.Kernel
	onChange func(s *Service)
	logWarn  func(format string, args ...any)

	mu           sync.Mutex
	state        svcstate.State
	stateMessage string
	started      string
	runner       *runner.Runner

	// nextWatch is the next watchdog tick deadline in Unix milliseconds;
	// zero means "not on the watch schedule".
	nextWatch int64
}

// newService constructs a Service for m. Not exported: Services are
// created only by the Supervisor during manifest load (spec §4.5).
func newService(m *config.Manifest, expander *expand.Expander, k *kernel.Kernel, onChange func(s *Service), logWarn func(string, ...any)) *Service {
	return &Service{
		manifest: m,
		expander: expander,
		kernel:   k,
		onChange: onChange,
		logWarn:  logWarn,
		state:    svcstate.Stopped,
	}
}

// Manifest returns the parsed manifest backing this Service.
func (s *Service) Manifest() *config.Manifest { return s.manifest }

// State returns the Service's current observable state.
func (s *Service) State() svcstate.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StateString returns the current state's display name, for the state
// publisher's snapshot records.
func (s *Service) StateString() string { return s.State().String() }

// StateMessage returns the short human string accompanying State.
func (s *Service) StateMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateMessage
}

// SetState is best-effort: it must never panic, matching spec §4.4's
// thread-safety invariant that SetState calls never propagate exceptions.
func (s *Service) SetState(state svcstate.State, message string) {
	s.mu.Lock()
	s.state = state
	s.stateMessage = message
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange(s)
	}
}

// Level returns the manifest's level.
func (s *Service) Level() int { return s.manifest.Level }

// Name returns the manifest's name.
func (s *Service) Name() string { return s.manifest.Name }

// HasWatch reports whether this Service carries any watch actions.
func (s *Service) HasWatch() bool { return len(s.manifest.Watch) > 0 }

// ScheduleWatch arms the next watchdog deadline watchDelaySec from now.
func (s *Service) ScheduleWatch(now time.Time) {
	s.mu.Lock()
	s.nextWatch = now.Add(time.Duration(s.manifest.WatchDelaySec) * time.Second).UnixMilli()
	s.mu.Unlock()
}

// DueForWatch reports whether the watchdog should run this Service's
// watch actions at now, per spec §4.5 ("nextWatch != 0 and now >= nextWatch").
func (s *Service) DueForWatch(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextWatch != 0 && now.UnixMilli() >= s.nextWatch
}

func (s *Service) rearmWatch(now time.Time) {
	s.ScheduleWatch(now)
}

// isMonitored reports whether a Runner currently owns this Service.
func (s *Service) isMonitored() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runner != nil
}

// StartMonitored implements action.Target: spawn a monitored Runner for
// param, enforcing the single-start invariant.
func (s *Service) StartMonitored(param string) error {
	s.mu.Lock()
	if s.started != "" {
		s.mu.Unlock()
		return fmt.Errorf("only a single start is allowed for %s", s.manifest.Name)
	}
	s.started = param
	s.mu.Unlock()

	redirect, err := s.openRedirect()
	if err != nil {
		s.clearStarted()
		return err
	}

	env, err := s.expandEnv()
	if err != nil {
		s.clearStarted()
		return err
	}

	workDir, err := s.expander.Expand(s.manifest, s.manifest.StartWorkDir)
	if err != nil {
		s.clearStarted()
		return err
	}

	s.SetState(svcstate.Starting, param)

	r := runner.New(runner.Config{
		Name:                   s.manifest.Name,
		Command:                param,
		WorkDir:                workDir,
		Env:                    env,
		ReplaceEnv:             s.manifest.HasOption(config.OptReplaceEnv),
		Breakaway:              s.manifest.HasOption(config.OptWinJobCloseChildren),
		RetryStableSec:         s.manifest.EffectiveRetryStableSec(),
		AbortExitCodes:         s.manifest.AbortExitCodes,
		StopRunAbortTimeoutSec: s.manifest.StopRunAbortTimeoutSec,
		Redirect:               redirect,
		Kernel:                 s.kernel,
		Target:                 s,
		Warn:                   s.logWarn,
	})

	s.mu.Lock()
	s.runner = r
	s.mu.Unlock()

	go func() {
		r.Execute()
		s.mu.Lock()
		s.runner = nil
		s.mu.Unlock()
	}()

	return nil
}

func (s *Service) clearStarted() {
	s.mu.Lock()
	s.started = ""
	s.mu.Unlock()
}

// StopMonitored implements action.Target: abort the live Runner (if any)
// and wait for it to clear, bounded by max(1s, 3*stopRunAbortTimeoutSec).
func (s *Service) StopMonitored(param string) error {
	s.mu.Lock()
	if s.started == "" {
		s.mu.Unlock()
		return nil
	}
	if param != s.started {
		started := s.started
		s.mu.Unlock()
		return fmt.Errorf("stop parameter %q does not match started %q for %s", param, started, s.manifest.Name)
	}
	r := s.runner
	s.mu.Unlock()

	defer s.clearStarted()

	if r == nil {
		if s.logWarn != nil {
			s.logWarn("nothing running for %s", s.manifest.Name)
		}
		return nil
	}

	s.SetState(svcstate.Stopping, "")
	r.Abort()

	timeoutSec := s.manifest.StopRunAbortTimeoutSec
	deadline := 3 * time.Duration(timeoutSec) * time.Second
	if deadline < time.Second {
		deadline = time.Second
	}

	const poll = 10 * time.Millisecond
	elapsed := time.Duration(0)
	for {
		if !s.isMonitored() {
			return nil
		}
		if elapsed >= deadline {
			if s.logWarn != nil {
				s.logWarn("timeout waiting for %s to stop", s.manifest.Name)
			}
			return nil
		}
		time.Sleep(poll)
		elapsed += poll
	}
}

// ServiceControl implements action.Target's Windows "service" verb
// binding. On platforms without SCM support the Start and Stop cases return
// ports.ErrNotSupported and the Watch case records Failed; the action
// package's allow-list drops the verb on every platform but Windows, so
// this is not reached there through an action string.
func (s *Service) ServiceControl(ctx action.Context, name string) (bool, error) {
	if s.kernel == nil || s.kernel.Service == nil {
		return false, ports.ErrNotSupported
	}

	switch ctx {
	case action.Start:
		if err := s.kernel.Service.StartService(name); err != nil {
			return false, err
		}
		return true, nil
	case action.Stop:
		if err := s.kernel.Service.StopService(name); err != nil {
			return false, err
		}
		return true, nil
	case action.Watch:
		running, err := s.kernel.Service.QueryService(name)
		if err != nil {
			s.SetState(svcstate.Failed, err.Error())
			return true, nil
		}
		if running {
			s.SetState(svcstate.Running, fmt.Sprintf("service %s running", name))
		} else {
			s.SetState(svcstate.Stopped, fmt.Sprintf("service %s stopped", name))
		}
		return true, nil
	default:
		return false, nil
	}
}

func (s *Service) openRedirect() (*logging.RedirectWriter, error) {
	if s.manifest.RedirectLogFile == "" {
		return nil, nil
	}
	path, err := s.expander.Expand(s.manifest, s.manifest.RedirectLogFile)
	if err != nil {
		return nil, fmt.Errorf("expanding redirect_log_file: %w", err)
	}
	return logging.OpenRedirectWriter(path, s.manifest.RedirectLogRotateFiles, s.manifest.RedirectLogRotateBytes)
}

// expandEnv expands every "KEY=VALUE" pair in start_env.
func (s *Service) expandEnv() ([]string, error) {
	if len(s.manifest.StartEnv) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(s.manifest.StartEnv))
	for _, kv := range s.manifest.StartEnv {
		expanded, err := s.expander.Expand(s.manifest, kv)
		if err != nil {
			return nil, fmt.Errorf("expanding start_env %q: %w", kv, err)
		}
		out = append(out, expanded)
	}
	return out, nil
}
