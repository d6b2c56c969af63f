package journal

import (
	"time"

	"github.com/kodflow/agld/internal/supervisor"
	"github.com/kodflow/agld/internal/svcstate"
)

// Recorder adapts a Journal to supervisor.Recorder. Record errors are
// swallowed to warn rather than disrupt the state-change path; Warn may
// be nil.
type Recorder struct {
	Journal *Journal
	Warn    func(format string, args ...any)
}

// Record implements supervisor.Recorder.
func (r *Recorder) Record(name string, state svcstate.State, message string) {
	err := r.Journal.Record(name, Event{
		Timestamp: time.Now(),
		State:     state,
		Message:   message,
	})
	if err != nil && r.Warn != nil {
		r.Warn("journal record failed for %s: %v", name, err)
	}
}

// History implements supervisor.Recorder.
func (r *Recorder) History(name string, limit int) ([]supervisor.HistoryEntry, error) {
	events, err := r.Journal.History(name, limit)
	if err != nil {
		return nil, err
	}
	out := make([]supervisor.HistoryEntry, len(events))
	for i, ev := range events {
		out[i] = supervisor.HistoryEntry{Timestamp: ev.Timestamp, State: ev.State, Message: ev.Message}
	}
	return out, nil
}
