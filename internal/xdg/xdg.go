// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Bazaarcore Contributors

// Package xdg provides XDG Base Directory paths for the identity service.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	appName    = "identity"
	configName = "identity.yaml"
)

// ConfigDir returns the XDG config directory for the service.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file path.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), configName)
}

// FindConfig returns ConfigFile if it exists and is a regular file, or "".
func FindConfig() string {
	path := ConfigFile()
	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			// Unreadable is reported by the loader, not hidden here.
			return path
		}
		return ""
	}
	if !info.Mode().IsRegular() {
		return ""
	}
	return path
}
