// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package config loads sqlbatch.toml project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the configuration file looked up from the working directory upwards.
const FileName = "sqlbatch.toml"

// EnvironmentConfig overrides top-level settings for a named environment.
type EnvironmentConfig struct {
	Variables   map[string]string `toml:"variables"`
	DatabaseURL string            `toml:"database_url"`
	Schema      string            `toml:"schema"`
}

// Config is the project configuration.
type Config struct {
	Variables          map[string]string            `toml:"variables"`
	Environments       map[string]EnvironmentConfig `toml:"environments"`
	DatabaseURL        string                       `toml:"database_url"`
	ScriptsDir         string                       `toml:"scripts_dir"`
	Separator          string                       `toml:"separator"`
	Schema             string                       `toml:"schema"`
	JournalTable       string                       `toml:"journal_table"`
	DefaultEnvironment string                       `toml:"default_environment"`

	// FilePath is the file the configuration was read from, empty if none was found.
	FilePath string `toml:"-"`
}

// Dir returns the directory relative paths in the configuration are resolved against.
func (c *Config) Dir() string {
	if c == nil || c.FilePath == "" {
		return ""
	}

	return filepath.Dir(c.FilePath)
}

// Load reads the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config

	if err = toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	cfg.FilePath = path

	return &cfg, nil
}

// Find looks for sqlbatch.toml in dir and its parents, stopping at the project root.
//
// An empty configuration is returned if no file was found.
func Find(dir string) (*Config, error) {
	for {
		path := filepath.Join(dir, FileName)

		_, err := os.Stat(path)

		switch {
		case err == nil:
			return Load(path)
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("checking config %q: %w", path, err)
		}

		if isProjectRoot(dir) {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}

		dir = parent
	}

	return &Config{}, nil
}

func isProjectRoot(dir string) bool {
	for _, marker := range []string{".git", "go.mod"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}

	return false
}
