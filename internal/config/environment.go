// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultEnvironment is used when neither the caller nor the configuration name one.
const DefaultEnvironment = "local"

// ErrUnknownEnvironment is returned for environments defined neither in the configuration nor in a dotenv file.
var ErrUnknownEnvironment = errors.New("unknown environment")

// Environment is a fully resolved environment.
type Environment struct {
	Variables    map[string]string
	Name         string
	DatabaseURL  string
	ScriptsDir   string
	Separator    string
	Schema       string
	JournalTable string

	// DotenvPath is the dotenv file consulted for the environment, it might not exist.
	DotenvPath string
}

// ResolveEnvironment merges top-level settings, the named environment and its .env.<name> file.
//
// Precedence, lowest first: top-level settings, [environments.<name>], .env.<name>.
// The dotenv file may set DATABASE_URL, SQLBATCH_SCHEMA and SQLBATCH_VAR_<name> variables.
func ResolveEnvironment(cfg *Config, name string) (*Environment, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = cfg.DefaultEnvironment
	}

	if name == "" {
		name = DefaultEnvironment
	}

	env := &Environment{
		Name:         name,
		Variables:    maps.Clone(cfg.Variables),
		DatabaseURL:  cfg.DatabaseURL,
		ScriptsDir:   cfg.ScriptsDir,
		Separator:    cfg.Separator,
		Schema:       cfg.Schema,
		JournalTable: cfg.JournalTable,
	}

	if env.Variables == nil {
		env.Variables = map[string]string{}
	}

	envConfig, defined := cfg.Environments[name]
	if defined {
		if envConfig.DatabaseURL != "" {
			env.DatabaseURL = envConfig.DatabaseURL
		}

		if envConfig.Schema != "" {
			env.Schema = envConfig.Schema
		}

		maps.Copy(env.Variables, envConfig.Variables)
	}

	baseDir := cfg.Dir()
	if baseDir == "" {
		if wd, err := os.Getwd(); err == nil {
			baseDir = wd
		}
	}

	env.DotenvPath = filepath.Join(baseDir, ".env."+name)

	fromDotenv, err := env.applyDotenv()
	if err != nil {
		return nil, err
	}

	if len(cfg.Environments) > 0 && !defined && !fromDotenv {
		return nil, fmt.Errorf("%w %q: not defined in %s and %s not found", ErrUnknownEnvironment, name, FileName, env.DotenvPath)
	}

	if env.ScriptsDir != "" && !filepath.IsAbs(env.ScriptsDir) && cfg.Dir() != "" {
		env.ScriptsDir = filepath.Join(cfg.Dir(), env.ScriptsDir)
	}

	return env, nil
}

func (env *Environment) applyDotenv() (bool, error) {
	info, err := os.Stat(env.DotenvPath)

	switch {
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("checking %s: %w", env.DotenvPath, err)
	case info.IsDir():
		return false, nil
	}

	values, err := godotenv.Read(env.DotenvPath)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", env.DotenvPath, err)
	}

	if value := values["DATABASE_URL"]; value != "" {
		env.DatabaseURL = value
	}

	if value := values["SQLBATCH_SCHEMA"]; value != "" {
		env.Schema = value
	}

	for key, value := range values {
		if name, ok := strings.CutPrefix(key, "SQLBATCH_VAR_"); ok && name != "" {
			env.Variables[name] = value
		}
	}

	return true, nil
}
