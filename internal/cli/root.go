// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cli implements the sqlbatch command line.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cosi-project/sqlbatch/internal/config"
	"github.com/cosi-project/sqlbatch/pkg/script"
)

// Options configures the command line.
type Options struct {
	// Logger overrides the logger built from the --verbose flag.
	Logger *zap.Logger
}

// Option configures the command line.
type Option func(*Options)

// WithLogger sets the logger used by all commands.
func WithLogger(logger *zap.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

type flags struct {
	configPath string
	env        string
	url        string
	dir        string
	separator  string
	schema     string
	vars       []string
	verbose    bool
}

// settings are the flags merged over the resolved configuration environment.
type settings struct {
	logger      *zap.Logger
	variables   script.Variables
	environment string
	url         string
	dir         string
	separator   string
	schema      string
	table       string
}

type app struct {
	options Options
	flags   flags
}

// NewRootCommand builds the sqlbatch command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	a := &app{}

	for _, opt := range opts {
		opt(&a.options)
	}

	root := &cobra.Command{
		Use:          "sqlbatch",
		Short:        "sqlbatch runs batched SQL scripts against a database",
		SilenceUsage: true,
	}

	pflags := root.PersistentFlags()
	pflags.StringVar(&a.flags.configPath, "config", "", "path to "+config.FileName+" (default: search from the working directory upwards)")
	pflags.StringVar(&a.flags.env, "env", "", "environment name")
	pflags.StringVar(&a.flags.url, "url", "", "database URL, overrides the configuration")
	pflags.StringVar(&a.flags.dir, "dir", "", "scripts directory, overrides the configuration")
	pflags.StringVar(&a.flags.separator, "separator", "", "batch separator keyword (default GO)")
	pflags.StringVar(&a.flags.schema, "schema", "", "value of the $schema$ variable")
	pflags.StringArrayVar(&a.flags.vars, "var", nil, "script variable as name=value, can be repeated")
	pflags.BoolVarP(&a.flags.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.upgradeCommand(),
		a.statusCommand(),
		a.splitCommand(),
	)

	return root
}

func (a *app) settings() (*settings, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}

	env, err := config.ResolveEnvironment(cfg, a.flags.env)
	if err != nil {
		return nil, err
	}

	s := &settings{
		environment: env.Name,
		variables:   script.Variables(env.Variables),
		url:         override(env.DatabaseURL, a.flags.url),
		dir:         override(env.ScriptsDir, a.flags.dir),
		separator:   override(env.Separator, a.flags.separator),
		schema:      override(env.Schema, a.flags.schema),
		table:       env.JournalTable,
	}

	if s.dir == "" {
		s.dir = "."
	}

	cliVars, err := parseVariables(a.flags.vars)
	if err != nil {
		return nil, err
	}

	s.variables = s.variables.Merge(cliVars)

	if s.logger, err = a.logger(); err != nil {
		return nil, err
	}

	return s, nil
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.flags.configPath != "" {
		return config.Load(a.flags.configPath)
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	return config.Find(wd)
}

func (a *app) logger() (*zap.Logger, error) {
	if a.options.Logger != nil {
		return a.options.Logger, nil
	}

	if a.flags.verbose {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

func override(value, flag string) string {
	if flag != "" {
		return flag
	}

	return value
}

func parseVariables(pairs []string) (script.Variables, error) {
	vars := make(script.Variables, len(pairs))

	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid variable %q, expected name=value", pair)
		}

		vars[name] = value
	}

	return vars, nil
}
