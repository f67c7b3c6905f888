package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the per-project state directory.
const DirName = ".aiq"

const (
	configFile   = "quality.config.json"
	progressFile = "progress.json"
	historyFile  = "history.db"
)

// Workspace is the project an invocation operates on. It is built once per
// invocation and handed to every component that touches project state.
type Workspace struct {
	Dir string
}

// NewWorkspace returns a Workspace rooted at dir, or at the current working
// directory when dir is empty.
func NewWorkspace(dir string) (Workspace, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Workspace{}, fmt.Errorf("get working directory: %w", err)
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Workspace{}, fmt.Errorf("resolve %s: %w", dir, err)
	}
	return Workspace{Dir: abs}, nil
}

// StateDir returns the .aiq directory.
func (w Workspace) StateDir() string {
	return filepath.Join(w.Dir, DirName)
}

// ConfigPath returns the path of the configuration document.
func (w Workspace) ConfigPath() string {
	return filepath.Join(w.StateDir(), configFile)
}

// ProgressPath returns the path of the progress document.
func (w Workspace) ProgressPath() string {
	return filepath.Join(w.StateDir(), progressFile)
}

// HistoryPath returns the path of the local run-history database.
func (w Workspace) HistoryPath() string {
	return filepath.Join(w.StateDir(), historyFile)
}

// QualityDir returns the project-local quality asset directory.
func (w Workspace) QualityDir() string {
	return filepath.Join(w.Dir, "quality")
}
