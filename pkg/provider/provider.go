// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package provider discovers migration scripts.
package provider

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/cosi-project/sqlbatch/pkg/script"
)

// Provider supplies scripts in execution order.
type Provider interface {
	Scripts(ctx context.Context) ([]script.Script, error)
}

// Static provides a fixed list of scripts in the given order.
type Static []script.Script

// Scripts implements Provider.
func (s Static) Scripts(context.Context) ([]script.Script, error) {
	return slices.Clone(s), nil
}

// FSOptions configures the filesystem provider.
type FSOptions struct {
	// Filter selects script files by their path relative to the directory.
	//
	// Default accepts files with the .sql extension.
	Filter func(name string) bool

	// Dir is the directory inside the filesystem holding scripts.
	//
	// Default is ".".
	Dir string

	// Recursive enables scanning subdirectories.
	Recursive bool
}

// FSOption configures the filesystem provider.
type FSOption func(*FSOptions)

// DefaultFSOptions returns default filesystem provider options.
func DefaultFSOptions() FSOptions {
	return FSOptions{
		Filter: func(name string) bool {
			return strings.EqualFold(path.Ext(name), ".sql")
		},
		Dir: ".",
	}
}

// WithDir sets the scripts directory.
func WithDir(dir string) FSOption {
	return func(opts *FSOptions) {
		opts.Dir = dir
	}
}

// WithFilter sets the script file filter.
func WithFilter(filter func(name string) bool) FSOption {
	return func(opts *FSOptions) {
		opts.Filter = filter
	}
}

// WithRecursive enables scanning subdirectories.
func WithRecursive() FSOption {
	return func(opts *FSOptions) {
		opts.Recursive = true
	}
}

// FS provides scripts stored in a filesystem, e.g. embed.FS or os.DirFS.
//
// Script names are slash-separated paths relative to the directory, scripts are ordered by name.
type FS struct {
	fsys    fs.FS
	options FSOptions
}

// Check interface implementation.
var _ Provider = &FS{}

// NewFS creates a filesystem provider.
func NewFS(fsys fs.FS, opts ...FSOption) *FS {
	options := DefaultFSOptions()

	for _, opt := range opts {
		opt(&options)
	}

	options.Dir = path.Clean(options.Dir)

	return &FS{
		fsys:    fsys,
		options: options,
	}
}

// Scripts implements Provider.
func (p *FS) Scripts(ctx context.Context) ([]script.Script, error) {
	var scripts []script.Script

	err := fs.WalkDir(p.fsys, p.options.Dir, func(filePath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if filePath != p.options.Dir && !p.options.Recursive {
				return fs.SkipDir
			}

			return nil
		}

		name := strings.TrimPrefix(strings.TrimPrefix(filePath, p.options.Dir), "/")
		if p.options.Dir == "." {
			name = filePath
		}

		if !p.options.Filter(name) {
			return nil
		}

		contents, err := fs.ReadFile(p.fsys, filePath)
		if err != nil {
			return fmt.Errorf("reading script %q: %w", filePath, err)
		}

		scripts = append(scripts, script.New(name, string(contents)))

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning scripts in %q: %w", p.options.Dir, err)
	}

	slices.SortFunc(scripts, func(a, b script.Script) int {
		return cmp.Compare(a.Name, b.Name)
	})

	return scripts, nil
}
