//go:build !windows

package adapters

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixProcessControlPrepareSetsProcessGroup(t *testing.T) {
	pc := NewUnixProcessControl()
	cmd := exec.Command("sleep", "1")
	pc.Prepare(cmd, false)
	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid)
}

func TestUnixProcessControlTerminateGraceful(t *testing.T) {
	pc := NewUnixProcessControl()
	cmd := exec.Command("sleep", "30")
	pc.Prepare(cmd, false)
	require.NoError(t, cmd.Start())

	err := pc.Terminate(cmd, 2*time.Second)
	assert.Error(t, err) // sleep exits non-zero on SIGTERM
}

func TestUnixProcessControlTerminateNilProcessIsNoop(t *testing.T) {
	pc := NewUnixProcessControl()
	cmd := &exec.Cmd{}
	err := pc.Terminate(cmd, time.Second)
	assert.NoError(t, err)
}
