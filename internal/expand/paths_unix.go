//go:build !windows

package expand

import (
	"os"
	"path/filepath"
	"runtime"
)

// wellKnownPaths returns the host's canonical directories for the system
// path tokens the expander recognizes (CommonData, UserData, TempFolder, Log).
func wellKnownPaths() map[string]string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	common := "/var/lib/agld"
	if runtime.GOOS == "darwin" {
		common = "/Library/Application Support/agld"
	}

	return map[string]string{
		"CommonData": common,
		"UserData":   filepath.Join(home, ".agld"),
		"TempFolder": os.TempDir(),
		"Log":        "/var/log/agld",
	}
}
