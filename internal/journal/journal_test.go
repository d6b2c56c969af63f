package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodflow/agld/internal/svcstate"
)

func TestJournalRecordAndHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	base := time.Unix(1700000000, 0)
	require.NoError(t, j.Record("web", Event{Timestamp: base, State: svcstate.Starting, Message: "start:web"}))
	require.NoError(t, j.Record("web", Event{Timestamp: base.Add(time.Second), State: svcstate.Running, Message: "Running (PID=42)"}))
	require.NoError(t, j.Record("db", Event{Timestamp: base, State: svcstate.Starting, Message: "start:db"}))

	history, err := j.History("web", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, svcstate.Running, history[0].State, "History must return newest first")
	assert.Equal(t, svcstate.Starting, history[1].State)
}

func TestJournalHistoryLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	base := time.Unix(1700000000, 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record("svc", Event{Timestamp: base.Add(time.Duration(i) * time.Second), State: svcstate.Running}))
	}

	history, err := j.History("svc", 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestJournalHistoryUnknownServiceIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	history, err := j.History("nope", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}
