// Package dotdir resolves the .reposcope/ working directory that holds
// config.toml, the default SQLite databases, and the server log file.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirName = ".reposcope"

	// DatabaseFile is the default SQLite entity store inside the directory.
	DatabaseFile = "reposcope.db"

	// LogFile receives JSON logs from long running commands.
	LogFile = "reposcope.log"
)

// Manager resolves the .reposcope/ directory. The zero value is not usable;
// call NewManager.
type Manager struct {
	getwd   func() (string, error)
	homeDir func() (string, error)
}

func NewManager() *Manager {
	return &Manager{getwd: os.Getwd, homeDir: os.UserHomeDir}
}

// Target returns the absolute .reposcope/ directory to use, creating it if
// it does not exist yet. An override wins. Otherwise the nearest .reposcope/
// in the working directory or one of its parents is used, and failing that
// ~/.reposcope/.
func (m *Manager) Target(override string) (string, error) {
	dir := override
	if dir == "" {
		var err error
		if dir, err = m.discover(); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating reposcope directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

// Path returns name inside the resolved directory.
func (m *Manager) Path(override, name string) (string, error) {
	dir, err := m.Target(override)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (m *Manager) discover() (string, error) {
	if cwd, err := m.getwd(); err == nil {
		if dir, ok := findUp(cwd); ok {
			return dir, nil
		}
	}

	home, err := m.homeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// findUp walks from start towards the filesystem root looking for a
// .reposcope directory.
func findUp(start string) (string, bool) {
	for dir := start; ; {
		candidate := filepath.Join(dir, dirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
