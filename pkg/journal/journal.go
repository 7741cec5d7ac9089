// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package journal records which scripts were already executed.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cosi-project/sqlbatch/internal/lexer"
	"github.com/cosi-project/sqlbatch/pkg/script"
)

// DefaultTableName is the default journal table.
const DefaultTableName = "schema_versions"

// ErrInvalidTableName is returned for table names which can't be used unquoted.
var ErrInvalidTableName = errors.New("invalid journal table name")

// Journal tracks executed scripts.
type Journal interface {
	// ExecutedScripts returns names of executed scripts in execution order.
	ExecutedScripts(ctx context.Context) ([]string, error)

	// StoreExecuted records a successfully executed script.
	StoreExecuted(ctx context.Context, s script.Script) error
}

// Null is a journal which remembers nothing, so every script always runs.
type Null struct{}

// ExecutedScripts implements Journal.
func (Null) ExecutedScripts(context.Context) ([]string, error) {
	return nil, nil
}

// StoreExecuted implements Journal.
func (Null) StoreExecuted(context.Context, script.Script) error {
	return nil
}

// Options configures table-backed journals.
type Options struct {
	// Logger is the logger to use for logging.
	Logger *zap.Logger

	// Now returns the time recorded for executed scripts.
	Now func() time.Time

	// TableName is the journal table, optionally schema-qualified.
	//
	// Default is "schema_versions".
	TableName string
}

// Option configures table-backed journals.
type Option func(*Options)

// DefaultOptions returns default journal options.
func DefaultOptions() Options {
	return Options{
		Logger:    zap.NewNop(),
		Now:       time.Now,
		TableName: DefaultTableName,
	}
}

// WithLogger sets the logger for the journal.
func WithLogger(logger *zap.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithTableName sets the journal table name.
func WithTableName(name string) Option {
	return func(opts *Options) {
		opts.TableName = name
	}
}

// WithClock sets the time source for applied timestamps.
func WithClock(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Now = now
	}
}

func buildOptions(opts []Option) (Options, error) {
	options := DefaultOptions()

	for _, opt := range opts {
		opt(&options)
	}

	if err := validateTableName(options.TableName); err != nil {
		return Options{}, err
	}

	return options, nil
}

// validateTableName accepts identifiers and schema-qualified identifiers.
//
// The table name is interpolated into statements, so nothing else is allowed.
func validateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidTableName)
	}

	for i := range len(name) {
		c := name[i]
		if c != '.' && (!lexer.IsIdentifierByte(c) || c >= 0x80) {
			return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
		}
	}

	if name[0] == '.' || name[len(name)-1] == '.' {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}

	return nil
}
