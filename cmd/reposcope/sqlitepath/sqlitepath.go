// Package sqlitepath resolves the SQLite entity store used by "reposcope serve".
package sqlitepath

import (
	"os"
	"path/filepath"

	"github.com/papercomputeco/reposcope/pkg/dotdir"
)

// ResolveSQLitePath returns override when set, then the first existing
// database among the well known locations, and finally the default file in
// the resolved .reposcope/ directory.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return dotdir.NewManager().Path(configDir, dotdir.DatabaseFile)
}

func sqliteCandidates() []string {
	return []string{
		dotdir.DatabaseFile,
		filepath.Join(".reposcope", dotdir.DatabaseFile),
	}
}
