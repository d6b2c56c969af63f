// Package kernel aggregates the platform-specific process and service
// control adapters behind the ports interfaces, mirroring the teacher's
// own kernel package.
package kernel

import (
	"github.com/kodflow/agld/internal/kernel/adapters"
	"github.com/kodflow/agld/internal/kernel/ports"
)

// Kernel exposes the OS primitives a Runner and the "service" verb need,
// without either caring which platform they run on.
type Kernel struct {
	Process ports.ProcessControl
	Service ports.ServiceControl
}

// Default is the process-wide Kernel, wired to the current platform's
// adapters at init.
var Default = New()

// New builds a Kernel using this platform's adapters.
func New() *Kernel {
	return &Kernel{
		Process: adapters.NewProcessControl(),
		Service: adapters.NewServiceControl(),
	}
}
