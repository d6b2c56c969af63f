// Package svcstate defines the observable sub-service state enum shared by
// the runner, the action executor and the supervisor.
package svcstate

// State is the observable lifecycle state of a sub-service.
type State int

const (
	// Starting means a monitored start has been dispatched but the child
	// has not yet reported readiness.
	Starting State = iota
	// Running means the monitored child has reported readiness (or a
	// watch probe last succeeded).
	Running
	// Stopping means a stop has been signaled and the supervisor is
	// waiting for the runner to clear its back-reference.
	Stopping
	// Stopped means the sub-service has no active runner and was not
	// abandoned due to an error.
	Stopped
	// Paused means an unstable/aborting child is waiting for a retry or
	// abort signal before it may restart.
	Paused
	// Failed means the last action or health probe reported failure.
	Failed
	// ErrorRetrievingState is the transient state a watch tick resets to
	// before running its probe actions.
	ErrorRetrievingState
)

// String renders the state the way it is persisted to the state file.
func (s State) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	case Paused:
		return "Paused"
	case Failed:
		return "Failed"
	case ErrorRetrievingState:
		return "ErrorRetrievingState"
	default:
		return "Unknown"
	}
}
