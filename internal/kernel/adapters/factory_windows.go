//go:build windows

package adapters

import "github.com/kodflow/agld/internal/kernel/ports"

// NewProcessControl returns this platform's ProcessControl adapter.
func NewProcessControl() ports.ProcessControl { return NewWindowsProcessControl() }

// NewServiceControl returns this platform's ServiceControl adapter.
func NewServiceControl() ports.ServiceControl { return NewWindowsServiceControl() }
