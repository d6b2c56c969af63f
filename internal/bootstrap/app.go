// Package bootstrap wires settings, kernel adapters, the event journal,
// and the supervisor into one composition root, the way the teacher's
// own (unused) bootstrap tree intended to — here it is actually wired
// into cmd/agld.
package bootstrap

import (
	"fmt"
	"log"

	"github.com/kodflow/agld/internal/config"
	"github.com/kodflow/agld/internal/journal"
	"github.com/kodflow/agld/internal/statefile"
	"github.com/kodflow/agld/internal/supervisor"
)

// App is the fully wired daemon: a Supervisor plus the resources its
// Publisher/Recorder depend on, kept here so main can close them cleanly.
type App struct {
	Supervisor *supervisor.Supervisor
	Store      *statefile.Store
	Journal    *journal.Journal
}

// Close releases the journal database (the state-file Store keeps no open
// handle). Safe to call on a partially constructed App.
func (a *App) Close() error {
	if a.Journal != nil {
		return a.Journal.Close()
	}
	return nil
}

// LoadConfig reads and default-applies the Settings file at configPath.
func LoadConfig(configPath string) (*config.Settings, error) {
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	return settings, nil
}

// NewAppWithHealth is the injector's terminal provider: it assembles the
// state-file store, the event journal, and the Supervisor that ties them
// together via Publisher/Recorder.
func NewAppWithHealth(settings *config.Settings, logger *log.Logger) (*App, error) {
	store, err := statefile.Open(settings.StateFilePath)
	if err != nil {
		return nil, fmt.Errorf("opening state file: %w", err)
	}

	journalPath := settings.StateFilePath + ".journal"
	j, err := journal.Open(journalPath)
	if err != nil {
		return nil, fmt.Errorf("opening event journal: %w", err)
	}

	publisher := &statefile.Publisher{
		Store:  store,
		HTMLID: settings.HTMLID,
		Warn:   logger.Printf,
	}
	recorder := &journal.Recorder{Journal: j, Warn: logger.Printf}

	sv := supervisor.New(settings, logger, publisher, recorder)

	return &App{Supervisor: sv, Store: store, Journal: j}, nil
}
