//go:build !windows

package adapters

import "github.com/kodflow/agld/internal/kernel/ports"

// NewProcessControl returns this platform's ProcessControl adapter.
func NewProcessControl() ports.ProcessControl { return NewUnixProcessControl() }

// NewServiceControl returns this platform's ServiceControl adapter.
func NewServiceControl() ports.ServiceControl { return NewUnixServiceControl() }
