// Package ports defines the interfaces for OS abstraction, following the
// same split the teacher repository uses between a port (this package)
// and per-platform adapters.
package ports

import (
	"os/exec"
	"time"
)

// ProcessControl groups the platform-specific process-group and
// termination operations a monitored Runner needs.
type ProcessControl interface {
	// Prepare configures cmd so the supervisor can manage its process
	// group / job before it is started. breakaway requests a child that
	// owns its own job/group, so tearing it down doesn't cascade to
	// siblings (soWinJobCloseChildren).
	Prepare(cmd *exec.Cmd, breakaway bool)

	// Terminate asks the process to exit gracefully, waits up to
	// graceTimeout, and force-kills it if it is still alive afterward.
	// It returns once the process has exited or the hard-kill attempt
	// has been issued.
	Terminate(cmd *exec.Cmd, graceTimeout time.Duration) error
}

// ServiceControl is the Windows-only "service" verb's SCM binding.
// Non-Windows adapters return ErrNotSupported from every method.
type ServiceControl interface {
	StartService(name string) error
	StopService(name string) error
	QueryService(name string) (running bool, err error)
}
