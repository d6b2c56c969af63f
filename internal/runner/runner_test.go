package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodflow/agld/internal/kernel"
	"github.com/kodflow/agld/internal/svcstate"
)

// scriptExiting writes an executable shell script that exits with code,
// working around buildCommand's plain strings.Fields tokenization (no
// shell quoting support, matching the action executor's own buildCommand).
func scriptExiting(t *testing.T, code int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exit.sh")
	content := fmt.Sprintf("#!/bin/sh\nexit %d\n", code)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

func scriptSleepThenExit(t *testing.T, sleepSeconds float64, code int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sleep_exit.sh")
	content := fmt.Sprintf("#!/bin/sh\nsleep %v\nexit %d\n", sleepSeconds, code)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

type fakeTarget struct {
	mu       sync.Mutex
	state    svcstate.State
	messages []string
}

func (f *fakeTarget) State() svcstate.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTarget) SetState(state svcstate.State, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
	f.messages = append(f.messages, message)
}

func (f *fakeTarget) lastMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return ""
	}
	return f.messages[len(f.messages)-1]
}

func TestRunnerAbortExitCodePauses(t *testing.T) {
	target := &fakeTarget{state: svcstate.Starting}
	r := New(Config{
		Name:           "abort-me",
		Command:        scriptExiting(t, 7),
		RetryStableSec: 60,
		AbortExitCodes: []int{7},
		Target:         target,
	})

	go r.Execute()

	require.Eventually(t, func() bool {
		return target.State() == svcstate.Paused
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Wait for abort or /retry", target.lastMessage())

	r.Abort()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not exit after Abort")
	}
}

func TestRunnerRetryStableSecZeroDisablesRestart(t *testing.T) {
	target := &fakeTarget{state: svcstate.Starting}
	r := New(Config{
		Name:           "disabled",
		Command:        scriptExiting(t, 0),
		RetryStableSec: 0,
		Target:         target,
	})

	go r.Execute()

	require.Eventually(t, func() bool {
		return target.State() == svcstate.Paused
	}, 2*time.Second, 10*time.Millisecond)

	r.Abort()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not exit after Abort")
	}
}

func TestRunnerFastRestartOnStableRun(t *testing.T) {
	target := &fakeTarget{state: svcstate.Starting}
	r := New(Config{
		Name: "stable",
		// retryStableSec is tiny: a child that runs slightly longer than
		// it crosses the "stable run" threshold on every exit, so the
		// loop takes the immediate-restart branch repeatedly instead of
		// ever entering backoff.
		Command:        scriptSleepThenExit(t, 1.1, 0),
		RetryStableSec: 1,
		Target:         target,
	})
	go r.Execute()
	time.Sleep(2500 * time.Millisecond)
	r.Abort()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not exit after Abort")
	}

	target.mu.Lock()
	defer target.mu.Unlock()
	for _, m := range target.messages {
		assert.NotContains(t, m, "Wait ", "a stable run must restart without a backoff pause")
	}
}

func TestRunnerAbortDuringLongRunningSpawnTerminates(t *testing.T) {
	target := &fakeTarget{state: svcstate.Starting}
	r := New(Config{
		Name:                   "long-runner",
		Command:                "sleep 30",
		RetryStableSec:         60,
		StopRunAbortTimeoutSec: 1,
		Kernel:                 kernel.New(),
		Target:                 target,
	})

	go r.Execute()

	require.Eventually(t, func() bool {
		return target.State() == svcstate.Running
	}, 2*time.Second, 10*time.Millisecond)

	start := time.Now()
	r.Abort()
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not exit after Abort")
	}
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestBackoffSecondsLadder(t *testing.T) {
	cases := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 2},
		{30 * time.Second, 2},
		{61 * time.Second, 15},
		{5*time.Minute + 1*time.Second, 30},
		{10*time.Minute + 1*time.Second, 60},
		{30*time.Minute + 1*time.Second, 120},
		{60*time.Minute + 1*time.Second, 240},
		{2 * time.Hour, 240},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, backoffSeconds(c.elapsed), "elapsed=%s", c.elapsed)
	}
}
