//go:build !wireinject

package bootstrap

import (
	"log"
)

// InitializeApp is the real, hand-maintained injector (no Wire codegen
// toolchain is run by this build); it must stay in lockstep with the
// provider set declared in wire.go.
func InitializeApp(configPath string, logger *log.Logger) (*App, error) {
	settings, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return NewAppWithHealth(settings, logger)
}
