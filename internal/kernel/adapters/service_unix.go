//go:build !windows

package adapters

import "github.com/kodflow/agld/internal/kernel/ports"

// UnixServiceControl rejects every call: the "service" verb is
// Windows-only, and the action package already filters it out of
// non-Windows action lists before it reaches here.
type UnixServiceControl struct{}

// NewUnixServiceControl builds a UnixServiceControl.
func NewUnixServiceControl() *UnixServiceControl {
	return &UnixServiceControl{}
}

func (UnixServiceControl) StartService(name string) error { return ports.ErrNotSupported }
func (UnixServiceControl) StopService(name string) error  { return ports.ErrNotSupported }
func (UnixServiceControl) QueryService(name string) (bool, error) {
	return false, ports.ErrNotSupported
}
