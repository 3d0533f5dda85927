// Package home manages the rotator home directory layout.
//
// The home directory owns all state the rotator keeps besides the log files
// themselves: the config store and the per-directory lock files.
//
// Layout:
//
//	<root>/
//	  config.json  or  config.yaml  or  config.db   (config store, type-dependent)
//	  locks/
//	    <uuid>.lock                                 (one per locked log directory)
//	  metrics.prom                                   (textfile metrics of one-shot runs)
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

// Name is the directory name under the platform config directory.
const Name = "iislogrotator"

// Dir represents a rotator home directory.
type Dir struct {
	root string
}

// New creates a Dir with an explicit root path.
func New(root string) Dir {
	return Dir{root: root}
}

// Default returns a Dir using the platform-appropriate default location:
//   - Linux:   ~/.config/iislogrotator
//   - macOS:   ~/Library/Application Support/iislogrotator
//   - Windows: %APPDATA%/iislogrotator
func Default() (Dir, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return Dir{}, fmt.Errorf("determine config directory: %w", err)
	}
	return Dir{root: filepath.Join(base, Name)}, nil
}

// Root returns the home directory path.
func (d Dir) Root() string {
	return d.root
}

// ConfigPath returns the config store path for a store type: "json",
// "yaml" or "sqlite". Other types have no file and return "".
func (d Dir) ConfigPath(storeType string) string {
	switch storeType {
	case "json":
		return filepath.Join(d.root, "config.json")
	case "yaml":
		return filepath.Join(d.root, "config.yaml")
	case "sqlite":
		return filepath.Join(d.root, "config.db")
	}
	return ""
}

// LocksDir returns the directory holding log directory lock files.
func (d Dir) LocksDir() string {
	return filepath.Join(d.root, "locks")
}

// MetricsPath returns the default textfile metrics path.
func (d Dir) MetricsPath() string {
	return filepath.Join(d.root, "metrics.prom")
}

// EnsureExists creates the home directory (and parents) if it doesn't exist.
func (d Dir) EnsureExists() error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create home directory %s: %w", d.root, err)
	}
	return nil
}
