package config

import (
	"fmt"
	"os"
)

// Store reads and writes the configuration and progress documents of one
// workspace. It holds no cached state; every call goes to disk.
type Store struct {
	ws Workspace
}

// NewStore creates a Store for ws.
func NewStore(ws Workspace) *Store {
	return &Store{ws: ws}
}

// Workspace returns the workspace the store operates on.
func (s *Store) Workspace() Workspace {
	return s.ws
}

// EnsureResult reports which documents EnsureDefaults created.
type EnsureResult struct {
	WroteConfig   bool
	WroteProgress bool
}

// EnsureDefaults writes the default configuration and progress documents,
// each only if absent. Existing files are never touched.
func (s *Store) EnsureDefaults() (EnsureResult, error) {
	var res EnsureResult

	if !exists(s.ws.ConfigPath()) {
		if err := WriteJSON(s.ws.ConfigPath(), DefaultConfig()); err != nil {
			return res, fmt.Errorf("write default config: %w", err)
		}
		res.WroteConfig = true
	}
	if !exists(s.ws.ProgressPath()) {
		if err := WriteJSON(s.ws.ProgressPath(), DefaultProgress()); err != nil {
			return res, fmt.Errorf("write default progress: %w", err)
		}
		res.WroteProgress = true
	}
	return res, nil
}

// LoadConfig returns the configuration, or the zero Config when the file is
// missing or malformed.
func (s *Store) LoadConfig() Config {
	return LoadJSON(s.ws.ConfigPath(), Config{})
}

// LoadProgress returns the progress record, or the zero Progress when the
// file is missing or malformed.
func (s *Store) LoadProgress() Progress {
	return LoadJSON(s.ws.ProgressPath(), Progress{})
}

// SaveConfig persists cfg.
func (s *Store) SaveConfig(cfg Config) error {
	return WriteJSON(s.ws.ConfigPath(), cfg)
}

// SaveProgress persists p.
func (s *Store) SaveProgress(p Progress) error {
	return WriteJSON(s.ws.ProgressPath(), p)
}

// UpdateProgress performs a read-modify-write of the progress record. A
// missing or malformed record starts from DefaultProgress. Keys in the file
// that Progress does not model are preserved.
func (s *Store) UpdateProgress(fn func(*Progress)) error {
	p := LoadJSON(s.ws.ProgressPath(), DefaultProgress())
	fn(&p)
	return MergeJSON(s.ws.ProgressPath(), p)
}

// SetStage sets current_stage and persists immediately, leaving every other
// progress field as it was.
func (s *Store) SetStage(n int) error {
	return s.UpdateProgress(func(p *Progress) {
		p.CurrentStage = n
	})
}

// RecordRun stores the outcome of a finished run in progress.last_run.
func (s *Store) RecordRun(run LastRun) error {
	return s.UpdateProgress(func(p *Progress) {
		p.LastRun = &run
	})
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
