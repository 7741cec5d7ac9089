// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package executor runs scripts batch by batch over a single connection.
package executor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cosi-project/sqlbatch/pkg/preprocess"
	"github.com/cosi-project/sqlbatch/pkg/script"
	"github.com/cosi-project/sqlbatch/pkg/splitter"
)

// DefaultSchema is the value of the schema variable if neither the options nor the caller set it.
const DefaultSchema = "public"

// Executor executes scripts.
//
// Executor keeps no state between calls, so it can run scripts concurrently
// as long as the connector hands out independent connections.
type Executor struct {
	connector Connector
	pipeline  *preprocess.Pipeline
	splitter  *splitter.Splitter
	options   Options
}

// Options configures the executor.
type Options struct {
	// Logger is the logger to use for logging.
	Logger *zap.Logger

	// Variables are substituted into every script, call variables take precedence.
	Variables script.Variables

	// Schema is the default value of the schema variable.
	//
	// Default is "public".
	Schema string

	// Separator is the batch separator keyword.
	//
	// Default is "GO".
	Separator string

	// Classifiers recognize driver errors, consulted after the connector's own classifier.
	Classifiers []Classifier

	// PipelineOptions configure the preprocessor pipeline.
	PipelineOptions []preprocess.Option
}

// Option configures the executor.
type Option func(*Options)

// DefaultOptions returns default executor options.
func DefaultOptions() Options {
	return Options{
		Logger:    zap.NewNop(),
		Schema:    DefaultSchema,
		Separator: splitter.DefaultSeparator,
	}
}

// WithLogger sets the logger for the executor.
func WithLogger(logger *zap.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithVariables adds variables substituted into every script.
func WithVariables(variables script.Variables) Option {
	return func(opts *Options) {
		opts.Variables = opts.Variables.Merge(variables)
	}
}

// WithSchema sets the default value of the schema variable.
func WithSchema(schema string) Option {
	return func(opts *Options) {
		opts.Schema = schema
	}
}

// WithSeparator sets the batch separator keyword.
func WithSeparator(separator string) Option {
	return func(opts *Options) {
		opts.Separator = separator
	}
}

// WithClassifiers adds driver error classifiers.
func WithClassifiers(classifiers ...Classifier) Option {
	return func(opts *Options) {
		opts.Classifiers = append(opts.Classifiers, classifiers...)
	}
}

// WithPreprocessors appends preprocessors applied after variable substitution.
func WithPreprocessors(preprocessors ...preprocess.Preprocessor) Option {
	return func(opts *Options) {
		opts.PipelineOptions = append(opts.PipelineOptions, preprocess.WithPreprocessors(preprocessors...))
	}
}

// WithVariablesDisabled turns off variable substitution.
func WithVariablesDisabled() Option {
	return func(opts *Options) {
		opts.PipelineOptions = append(opts.PipelineOptions, preprocess.WithVariablesDisabled())
	}
}

// New creates an executor which runs scripts over connections opened by connector.
func New(connector Connector, opts ...Option) (*Executor, error) {
	if connector == nil {
		return nil, errors.New("connector is required")
	}

	options := DefaultOptions()

	for _, opt := range opts {
		opt(&options)
	}

	split, err := splitter.New(splitter.WithSeparator(options.Separator))
	if err != nil {
		return nil, err
	}

	return &Executor{
		connector: connector,
		pipeline:  preprocess.NewPipeline(options.PipelineOptions...),
		splitter:  split,
		options:   options,
	}, nil
}

// Batches preprocesses the script and returns its batches without executing them.
func (e *Executor) Batches(s script.Script, variables script.Variables) ([]splitter.Batch, error) {
	text, err := e.pipeline.Process(s.Contents, e.variables(variables))
	if err != nil {
		return nil, fmt.Errorf("preprocessing script %q: %w", s.Name, err)
	}

	return e.splitter.Batches(text), nil
}

// Execute runs the script batches in order over one connection.
//
// Execution stops at the first failing batch, which is reported as *ExecutionError.
// No transaction is started: each batch runs with the connection's own semantics.
func (e *Executor) Execute(ctx context.Context, s script.Script, variables script.Variables) (err error) {
	logger := e.options.Logger.With(zap.String("script", s.Name))

	logger.Info("executing script")

	batches, err := e.Batches(s, variables)
	if err != nil {
		fields := []zap.Field{zap.String("message", err.Error())}

		var undefined *preprocess.UndefinedVariableError

		if errors.As(err, &undefined) {
			fields = append(fields, zap.String("variable", undefined.Name), zap.Int("script_line", undefined.Line))
		}

		logger.Error("failed to prepare script", fields...)
		logger.Error("script execution failed", zap.Error(err), zap.String("text", s.Contents))

		return err
	}

	conn, err := e.connector.Open(ctx)
	if err != nil {
		err = fmt.Errorf("opening connection for script %q: %w", s.Name, err)

		logger.Error("failed to open connection", zap.String("message", err.Error()))
		logger.Error("script execution failed", zap.Error(err))

		return err
	}

	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to release connection", zap.Error(closeErr))

			if err == nil {
				err = fmt.Errorf("releasing connection for script %q: %w", s.Name, closeErr)
			}
		}
	}()

	for _, batch := range batches {
		if execErr := conn.Exec(ctx, batch.Text); execErr != nil {
			failure := e.classify(s.Name, batch, execErr)

			logFailure(logger, failure)

			return failure
		}
	}

	logger.Debug("script executed", zap.Int("batches", len(batches)))

	return nil
}

func (e *Executor) variables(variables script.Variables) script.Variables {
	return e.options.Variables.Merge(variables).WithSchema(e.options.Schema)
}

func (e *Executor) classifiers() []Classifier {
	classifiers := make([]Classifier, 0, len(e.options.Classifiers)+2)

	if c, ok := e.connector.(Classifier); ok {
		classifiers = append(classifiers, c)
	}

	classifiers = append(classifiers, e.options.Classifiers...)

	return append(classifiers, ConnectivityClassifier)
}

func (e *Executor) classify(scriptName string, batch splitter.Batch, err error) *ExecutionError {
	diag := Diagnostic{
		Kind:    KindUnclassified,
		Message: err.Error(),
	}

	for _, classifier := range e.classifiers() {
		if d, ok := classifier.Classify(err, batch.Text); ok {
			diag = d

			break
		}
	}

	failure := &ExecutionError{
		Err:        err,
		Script:     scriptName,
		Code:       diag.Code,
		Procedure:  diag.Procedure,
		Message:    diag.Message,
		Batch:      batch.Text,
		Kind:       diag.Kind,
		BatchIndex: batch.Index,
		Line:       diag.Line,
	}

	if diag.Line > 0 {
		failure.ScriptLine = batch.Line + diag.Line - 1
	}

	return failure
}

func logFailure(logger *zap.Logger, failure *ExecutionError) {
	logger.Error("script block failed",
		zap.Int("block", failure.BatchIndex),
		zap.Int("block_line", failure.Line),
		zap.Int("script_line", failure.ScriptLine),
		zap.String("procedure", failure.Procedure),
		zap.String("code", failure.Code),
		zap.Stringer("kind", failure.Kind),
		zap.String("message", failure.Message),
	)

	logger.Error("script execution failed",
		zap.Error(failure.Err),
		zap.String("batch", failure.Batch),
	)
}
