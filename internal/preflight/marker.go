package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio"
)

// MarkerFile records when the data root last passed every check.
const MarkerFile = ".doctor-passed"

// MarkPassed records now as the last successful check of dataDir.
func MarkPassed(dataDir string, now time.Time) error {
	path := filepath.Join(dataDir, MarkerFile)
	if err := renameio.WriteFile(path, []byte(now.UTC().Format(time.RFC3339)), 0o644); err != nil {
		return fmt.Errorf("write marker file: %w", err)
	}
	return nil
}

// LastPassed returns when dataDir last passed every check, or the zero time
// if it never has.
func LastPassed(dataDir string) time.Time {
	content, err := os.ReadFile(filepath.Join(dataDir, MarkerFile))
	if err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(string(content)))
	if err != nil {
		return time.Time{}
	}
	return t
}
