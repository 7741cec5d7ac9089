// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package preprocess implements text transformations applied to scripts before splitting.
package preprocess

import (
	"fmt"
	"strings"

	"github.com/siderolabs/gen/panicsafe"

	"github.com/cosi-project/sqlbatch/pkg/script"
)

// Preprocessor transforms script text.
//
// Implementations must be pure: the output depends only on the input text.
type Preprocessor interface {
	Process(text string) (string, error)
}

// Func adapts a function to the Preprocessor interface.
type Func func(text string) (string, error)

// Process implements Preprocessor.
func (f Func) Process(text string) (string, error) {
	return f(text)
}

// Options configures the pipeline.
type Options struct {
	// Preprocessors are applied in order after variable substitution.
	Preprocessors []Preprocessor

	// VariablesDisabled turns off variable substitution.
	//
	// Useful for scripts relying on $tag$ dollar quoting.
	VariablesDisabled bool
}

// Option configures the pipeline.
type Option func(*Options)

// WithPreprocessors appends preprocessors to the pipeline.
func WithPreprocessors(preprocessors ...Preprocessor) Option {
	return func(opts *Options) {
		opts.Preprocessors = append(opts.Preprocessors, preprocessors...)
	}
}

// WithVariablesDisabled turns off variable substitution.
func WithVariablesDisabled() Option {
	return func(opts *Options) {
		opts.VariablesDisabled = true
	}
}

// Pipeline applies variable substitution and then registered preprocessors.
type Pipeline struct {
	options Options
}

// NewPipeline creates a new pipeline.
func NewPipeline(opts ...Option) *Pipeline {
	var options Options

	for _, opt := range opts {
		opt(&options)
	}

	return &Pipeline{options: options}
}

// Process runs every stage over text, each stage receiving the previous stage's output.
//
// A panicking stage fails the pipeline with an error instead of crashing the caller.
func (p *Pipeline) Process(text string, variables script.Variables) (string, error) {
	if !p.options.VariablesDisabled {
		var err error

		text, err = SubstituteVariables(text, variables)
		if err != nil {
			return "", err
		}
	}

	for i, preprocessor := range p.options.Preprocessors {
		var (
			out string
			err error
		)

		if err = panicsafe.RunErrF(func() error {
			out, err = preprocessor.Process(text)

			return err
		})(); err != nil {
			return "", fmt.Errorf("preprocessor %d (%T): %w", i, preprocessor, err)
		}

		text = out
	}

	return text, nil
}

// Replace returns a preprocessor replacing old/new string pairs, as strings.NewReplacer does.
func Replace(oldnew ...string) Preprocessor {
	replacer := strings.NewReplacer(oldnew...)

	return Func(func(text string) (string, error) {
		return replacer.Replace(text), nil
	})
}

// TrimTrailingWhitespace strips trailing blanks from every line.
func TrimTrailingWhitespace() Preprocessor {
	return Func(func(text string) (string, error) {
		lines := strings.Split(text, "\n")

		for i, line := range lines {
			lines[i] = strings.TrimRight(line, " \t\r")
		}

		return strings.Join(lines, "\n"), nil
	})
}
