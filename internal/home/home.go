// Package home manages the leaflet home directory layout: configuration
// and per-run processing artifacts.
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the leaflet home directory.
	DefaultDirName = ".leaflet"

	// RunsDirName is the subdirectory holding per-run artifacts.
	RunsDirName = "runs"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the leaflet home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.leaflet).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// RunsPath returns the path to the runs directory.
func (d *Dir) RunsPath() string {
	return filepath.Join(d.path, RunsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	if err := os.MkdirAll(d.RunsPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// RunDir returns the artifact directory for a processing run.
func (d *Dir) RunDir(runID string) string {
	return filepath.Join(d.RunsPath(), runID)
}

// CapturesDir returns the directory for full-page captures of a run.
func (d *Dir) CapturesDir(runID string) string {
	return filepath.Join(d.RunDir(runID), "captures")
}

// CapturePath returns the path to a specific page capture.
// Page numbers are 1-indexed.
func (d *Dir) CapturePath(runID string, pageNum int) string {
	return filepath.Join(d.CapturesDir(runID), fmt.Sprintf("page_%04d.png", pageNum))
}

// ChunksPath returns the path to a run's chunk output file.
func (d *Dir) ChunksPath(runID string) string {
	return filepath.Join(d.RunDir(runID), "chunks.jsonl")
}

// ResultPath returns the path to a run's result manifest.
func (d *Dir) ResultPath(runID string) string {
	return filepath.Join(d.RunDir(runID), "result.json")
}

// EnsureRunDir creates the artifact directories for a run.
func (d *Dir) EnsureRunDir(runID string) error {
	return os.MkdirAll(d.CapturesDir(runID), 0o755)
}
