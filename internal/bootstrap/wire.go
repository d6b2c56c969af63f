//go:build wireinject

// This file is never compiled into the real binary; it documents the
// injector's dependency graph for `go run github.com/google/wire/cmd/wire`
// to regenerate wire_gen.go from, the way the teacher's own bootstrap
// package does.
package bootstrap

import (
	"log"

	"github.com/google/wire"
)

// InitializeApp builds the fully wired App from a settings file path.
func InitializeApp(configPath string, logger *log.Logger) (*App, error) {
	wire.Build(
		LoadConfig,
		NewAppWithHealth,
	)
	return nil, nil
}
