// Package main provides the entry point for agld, a cross-platform
// process supervisor daemon with manifest-driven sub-services.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/kodflow/agld/internal/bootstrap"
	"github.com/kodflow/agld/internal/config"
	"github.com/kodflow/agld/internal/statefile"
)

var (
	version    = "dev"
	configPath string
)

func main() {
	flag.StringVar(&configPath, "config", "/etc/agld/agld.yaml", "path to the agld settings file")
	showVersion := flag.Bool("version", false, "show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("agld %s\n", version)
		return
	}

	args := flag.Args()
	verb := "run"
	if len(args) > 0 {
		verb = args[0]
		args = args[1:]
	}

	var err error
	switch verb {
	case "run":
		err = runDaemon()
	case "list":
		err = listState()
	case "settings":
		err = printSettings()
	case "new":
		err = newManifest(args)
	case "retry", "resume":
		err = resume()
	default:
		err = fmt.Errorf("unknown verb %q (want run, list, settings, new, retry)", verb)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "agld: %v\n", err)
		os.Exit(1)
	}
}

// runDaemon loads the settings and manifest set, starts the Supervisor,
// and blocks on signals: SIGHUP triggers Resume, SIGTERM/SIGINT triggers
// a graceful Stop (spec §5: "Start/Stop/Resume run on the caller's
// goroutine, normally the signal-handling loop in cmd/agld").
func runDaemon() error {
	logger := log.New(os.Stderr, "agld: ", log.LstdFlags)

	app, err := bootstrap.InitializeApp(configPath, logger)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer app.Close()

	if err := app.Supervisor.Start(); err != nil {
		return fmt.Errorf("starting: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGHUP:
			logger.Printf("received SIGHUP, resuming paused sub-services")
			app.Supervisor.Resume()
		case syscall.SIGTERM, syscall.SIGINT:
			logger.Printf("received %s, stopping", sig)
			app.Supervisor.Stop()
			return nil
		}
	}
	return nil
}

// listState reads the binary state file and prints its rows as a table;
// the one reader of the snapshot format outside the daemon itself.
func listState() error {
	settings, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		return err
	}

	records, err := statefile.Read(settings.StateFilePath)
	if err != nil {
		return fmt.Errorf("reading state file: %w", err)
	}

	fmt.Printf("%-24s %-10s %s\n", "NAME", "STATE", "INFO")
	for _, r := range records {
		fmt.Printf("%-24s %-10s %s\n", r.Name, r.State, r.Info)
	}
	return nil
}

// printSettings loads the settings file and reports the discovered
// manifest count, without starting anything.
func printSettings() error {
	settings, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		return err
	}

	manifests, err := config.Discover(settings.ManifestFolder, settings.ManifestExt)
	if err != nil {
		return fmt.Errorf("discovering manifests: %w", err)
	}

	fmt.Printf("manifest_folder: %s\n", settings.ManifestFolder)
	fmt.Printf("manifest_ext: %s\n", settings.ManifestExt)
	fmt.Printf("state_file: %s\n", settings.StateFilePath)
	fmt.Printf("manifests found: %d\n", len(manifests))
	return nil
}

// newManifest writes a minimal manifest file for name, running exe with
// the given params, to the settings' manifest folder (spec.md's one
// carve-back from the "embedding program" Non-goal: "except for the
// manifest format it emits").
func newManifest(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: agld new <name> <exe> [params...]")
	}
	name, exe, params := args[0], args[1], args[2:]

	run := exe
	for _, p := range params {
		run += " " + p
	}

	settings, err := bootstrap.LoadConfig(configPath)
	if err != nil {
		return err
	}

	m := &config.Manifest{
		Name:  name,
		Run:   run,
		Level: 1,
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	path := settings.ManifestFolder + "/" + name + settings.ManifestExt
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}

	fmt.Printf("wrote %s\n", path)
	return nil
}

// resume is a placeholder verb for an already-running daemon: in this
// single-binary build, /retry is delivered by sending SIGHUP to the
// running process, which runDaemon translates into Supervisor.Resume.
func resume() error {
	return fmt.Errorf("retry/resume: send SIGHUP to the running agld process")
}
