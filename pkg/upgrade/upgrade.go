// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package upgrade applies pending scripts and journals them.
package upgrade

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cosi-project/sqlbatch/pkg/executor"
	"github.com/cosi-project/sqlbatch/pkg/journal"
	"github.com/cosi-project/sqlbatch/pkg/provider"
	"github.com/cosi-project/sqlbatch/pkg/script"
)

// Result is the outcome of PerformUpgrade.
type Result struct {
	// Error is the failure which stopped the upgrade, if any.
	Error error

	// ErrorScript is the script which failed, nil on success.
	ErrorScript *script.Script

	// Scripts are the scripts executed and journaled successfully, in order.
	Scripts []script.Script
}

// Successful returns true if every pending script was executed.
func (r *Result) Successful() bool {
	return r.Error == nil
}

// Options configures the upgrade engine.
type Options struct {
	// Logger is the logger to use for logging.
	Logger *zap.Logger

	// Variables are passed to every script execution.
	Variables script.Variables
}

// Option configures the upgrade engine.
type Option func(*Options)

// DefaultOptions returns default engine options.
func DefaultOptions() Options {
	return Options{
		Logger: zap.NewNop(),
	}
}

// WithLogger sets the logger for the engine.
func WithLogger(logger *zap.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithVariables adds variables passed to every script execution.
func WithVariables(variables script.Variables) Option {
	return func(opts *Options) {
		opts.Variables = opts.Variables.Merge(variables)
	}
}

// Engine runs scripts which are not yet recorded in the journal.
type Engine struct {
	provider provider.Provider
	journal  journal.Journal
	executor *executor.Executor
	options  Options
}

// NewEngine creates an upgrade engine.
func NewEngine(p provider.Provider, j journal.Journal, exec *executor.Executor, opts ...Option) (*Engine, error) {
	if p == nil || j == nil || exec == nil {
		return nil, errors.New("provider, journal and executor are required")
	}

	options := DefaultOptions()

	for _, opt := range opts {
		opt(&options)
	}

	return &Engine{
		provider: p,
		journal:  j,
		executor: exec,
		options:  options,
	}, nil
}

// ScriptsToExecute returns the provider scripts missing from the journal, in provider order.
func (e *Engine) ScriptsToExecute(ctx context.Context) ([]script.Script, error) {
	scripts, err := e.provider.Scripts(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing scripts: %w", err)
	}

	executed, err := e.journal.ExecutedScripts(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}

	seen := make(map[string]struct{}, len(executed))

	for _, name := range executed {
		seen[name] = struct{}{}
	}

	pending := make([]script.Script, 0, len(scripts))

	for _, s := range scripts {
		if _, ok := seen[s.Name]; !ok {
			pending = append(pending, s)
		}
	}

	return pending, nil
}

// IsUpgradeRequired returns true if some scripts are pending.
func (e *Engine) IsUpgradeRequired(ctx context.Context) (bool, error) {
	pending, err := e.ScriptsToExecute(ctx)
	if err != nil {
		return false, err
	}

	return len(pending) > 0, nil
}

// PerformUpgrade executes pending scripts in order, journaling each one after it succeeds.
//
// The first failure stops the upgrade: the returned Result names the failed script,
// and the error is returned as well.
func (e *Engine) PerformUpgrade(ctx context.Context) (*Result, error) {
	logger := e.options.Logger

	result := &Result{}

	pending, err := e.ScriptsToExecute(ctx)
	if err != nil {
		result.Error = err

		return result, err
	}

	if len(pending) == 0 {
		logger.Info("no new scripts need to be executed")

		return result, nil
	}

	logger.Info("beginning database upgrade", zap.Int("pending", len(pending)))

	for _, s := range pending {
		if err = e.executor.Execute(ctx, s, e.options.Variables); err != nil {
			return e.fail(result, s, err)
		}

		if err = e.journal.StoreExecuted(ctx, s); err != nil {
			return e.fail(result, s, fmt.Errorf("journaling script %q: %w", s.Name, err))
		}

		result.Scripts = append(result.Scripts, s)
	}

	logger.Info("upgrade successful", zap.Int("executed", len(result.Scripts)))

	return result, nil
}

func (e *Engine) fail(result *Result, s script.Script, err error) (*Result, error) {
	e.options.Logger.Error("upgrade failed",
		zap.String("script", s.Name),
		zap.Int("executed", len(result.Scripts)),
		zap.Error(err),
	)

	result.Error = err
	result.ErrorScript = &s

	return result, err
}
