package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodflow/agld/internal/svcstate"
)

func TestRecorderRecordAndHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	r := &Recorder{Journal: j}
	r.Record("web", svcstate.Starting, "start:web")
	r.Record("web", svcstate.Running, "Running (PID=1)")

	history, err := r.History("web", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, svcstate.Running, history[0].State)
	assert.Equal(t, "Running (PID=1)", history[0].Message)
}

func TestRecorderHistoryUnknownServiceIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	r := &Recorder{Journal: j}
	history, err := r.History("nope", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}
