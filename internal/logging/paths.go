package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.textdex/logs, or a directory under the system
// temp dir when there is no home directory.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".textdex", "logs")
	}
	return filepath.Join(home, ".textdex", "logs")
}

// DefaultLogPath returns the log file written with --debug or log.file.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "textdex.log")
}
