// Copyright (c) 2025 sfkit authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package xdg resolves the XDG base directories used by sfkit. Directories
// are created with private permissions on first use.
package xdg

import (
	"os"
	"path/filepath"
)

// App is the directory name under each base directory.
const App = "sfkit"

// ConfigDir returns $XDG_CONFIG_HOME/sfkit, falling back to ~/.config/sfkit.
func ConfigDir() (string, error) {
	return dir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns $XDG_STATE_HOME/sfkit, falling back to ~/.local/state/sfkit.
// The file keyring backend keeps its encrypted items here.
func StateDir() (string, error) {
	return dir("XDG_STATE_HOME", ".local", "state")
}

func dir(env string, fallback ...string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(append([]string{home}, fallback...)...)
	}
	d := filepath.Join(base, App)
	if err := os.MkdirAll(d, 0o700); err != nil {
		return "", err
	}
	return d, nil
}
