//go:build windows

package expand

import (
	"os"
	"path/filepath"
)

// wellKnownPaths returns the host's canonical directories for the system
// path tokens the expander recognizes (CommonData, UserData, TempFolder, Log).
func wellKnownPaths() map[string]string {
	programData := os.Getenv("ProgramData")
	if programData == "" {
		programData = `C:\ProgramData`
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	return map[string]string{
		"CommonData": filepath.Join(programData, "agld"),
		"UserData":   filepath.Join(home, "agld"),
		"TempFolder": os.TempDir(),
		"Log":        filepath.Join(programData, "agld", "log"),
	}
}
