package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodflow/agld/internal/config"
	"github.com/kodflow/agld/internal/svcstate"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644))
}

// scriptExiting writes an executable script exiting with code, working
// around buildCommand's plain strings.Fields tokenization (no shell
// quoting, matching the action executor's own buildCommand).
func scriptExiting(t *testing.T, code int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exit.sh")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("#!/bin/sh\nexit %d\n", code)), 0o755))
	return path
}

func testSettings(dir string) *config.Settings {
	return &config.Settings{
		ManifestFolder:       dir,
		ManifestExt:          ".yaml",
		HTTPProbeTimeoutMS:   2000,
		LevelStartTimeoutSec: 5,
	}
}

func TestSupervisorStartStopLevelOrdering(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "web", `
name: web
level: 20
start: ["start:sleep 30"]
stop: ["stop:sleep 30"]
retry_stable_sec: 0
`)
	writeManifest(t, dir, "db", `
name: db
level: 10
start: ["start:sleep 30"]
stop: ["stop:sleep 30"]
retry_stable_sec: 0
`)

	sv := New(testSettings(dir), nil, nil, nil)
	require.NoError(t, sv.Load())

	services := sv.Services()
	require.Len(t, services, 2)
	assert.Equal(t, "db", services[0].Name())
	assert.Equal(t, "web", services[1].Name())

	require.NoError(t, sv.Start())

	require.Eventually(t, func() bool {
		for _, s := range sv.Services() {
			if s.State() != svcstate.Running {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	sv.Stop()

	for _, s := range sv.Services() {
		assert.Equal(t, svcstate.Stopped, s.State())
	}
}

func TestSupervisorDisabledManifestExcluded(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "off", `
name: off
level: 0
run: /bin/true
`)
	writeManifest(t, dir, "on", `
name: on
level: 5
run: /bin/true
`)

	sv := New(testSettings(dir), nil, nil, nil)
	require.NoError(t, sv.Load())

	services := sv.Services()
	require.Len(t, services, 1)
	assert.Equal(t, "on", services[0].Name())
}

func TestServiceStartMonitoredRejectsDoubleStart(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "svc", `
name: svc
level: 1
retry_stable_sec: 60
`)
	sv := New(testSettings(dir), nil, nil, nil)
	require.NoError(t, sv.Load())
	s := sv.Services()[0]

	require.NoError(t, s.StartMonitored("sleep 30"))
	err := s.StartMonitored("sleep 30")
	assert.ErrorContains(t, err, "only a single start is allowed")

	require.NoError(t, s.StopMonitored("sleep 30"))
}

func TestServiceStopMonitoredMismatchedParamErrors(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "svc", `
name: svc
level: 1
retry_stable_sec: 60
`)
	sv := New(testSettings(dir), nil, nil, nil)
	require.NoError(t, sv.Load())
	s := sv.Services()[0]

	require.NoError(t, s.StartMonitored("sleep 30"))
	err := s.StopMonitored("sleep 60")
	assert.ErrorContains(t, err, "does not match started")

	require.NoError(t, s.StopMonitored("sleep 30"))
}

func TestSupervisorResumeRetriesPausedServices(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "flaky", `
name: flaky
level: 1
retry_stable_sec: 0
`)
	sv := New(testSettings(dir), nil, nil, nil)
	require.NoError(t, sv.Load())
	s := sv.Services()[0]
	script := scriptExiting(t, 3)

	require.NoError(t, s.StartMonitored(script))

	require.Eventually(t, func() bool {
		return s.State() == svcstate.Paused
	}, 2*time.Second, 10*time.Millisecond)

	sv.Resume()

	require.Eventually(t, func() bool {
		return s.State() == svcstate.Paused
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.StopMonitored(script))
}
