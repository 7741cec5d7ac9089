// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package preprocess_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosi-project/sqlbatch/pkg/preprocess"
	"github.com/cosi-project/sqlbatch/pkg/script"
)

func TestSubstituteVariables(t *testing.T) {
	t.Parallel()

	vars := script.Variables{
		"schema": "app",
		"owner":  "o'brien",
		"empty":  "",
	}

	for _, test := range []struct { //nolint:govet
		name string

		text     string
		expected string
	}{
		{
			name:     "no placeholders",
			text:     "SELECT 1",
			expected: "SELECT 1",
		},
		{
			name:     "placeholder",
			text:     "CREATE TABLE $schema$.users (id INT)",
			expected: "CREATE TABLE app.users (id INT)",
		},
		{
			name:     "repeated placeholders",
			text:     "$schema$.a JOIN $schema$.b$empty$",
			expected: "app.a JOIN app.b",
		},
		{
			name:     "placeholder inside string literal",
			text:     "SELECT 'owner: $owner$'",
			expected: "SELECT 'owner: o'brien'",
		},
		{
			name:     "placeholders inside comments are kept",
			text:     "-- $missing$\n/* $other$ */ SELECT $schema$",
			expected: "-- $missing$\n/* $other$ */ SELECT app",
		},
		{
			name:     "positional parameters and dollar signs",
			text:     "SELECT $1, $$ body $$, price$ FROM t",
			expected: "SELECT $1, $$ body $$, price$ FROM t",
		},
		{
			name:     "trailing dollar",
			text:     "SELECT $schema",
			expected: "SELECT $schema",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			out, err := preprocess.SubstituteVariables(test.text, vars)
			require.NoError(t, err)
			assert.Equal(t, test.expected, out)
		})
	}
}

func TestSubstituteUndefinedVariable(t *testing.T) {
	t.Parallel()

	_, err := preprocess.SubstituteVariables("SELECT 1\nGO\nSELECT * FROM $missing$.t", script.Variables{})
	require.Error(t, err)
	require.ErrorIs(t, err, preprocess.ErrUndefinedVariable)

	var undefinedErr *preprocess.UndefinedVariableError

	require.ErrorAs(t, err, &undefinedErr)
	assert.Equal(t, "missing", undefinedErr.Name)
	assert.Equal(t, 3, undefinedErr.Line)
}

func TestPipelineOrder(t *testing.T) {
	t.Parallel()

	var calls []string

	stage := func(name string) preprocess.Preprocessor {
		return preprocess.Func(func(text string) (string, error) {
			calls = append(calls, name)

			return text + "|" + name, nil
		})
	}

	pipeline := preprocess.NewPipeline(
		preprocess.WithPreprocessors(stage("a"), stage("b")),
		preprocess.WithPreprocessors(preprocess.Replace("|", ";")),
	)

	out, err := pipeline.Process("$x$", script.Variables{"x": "v"})
	require.NoError(t, err)

	assert.Equal(t, "v;a;b", out)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestPipelineErrors(t *testing.T) {
	t.Parallel()

	failing := preprocess.Func(func(string) (string, error) {
		return "", errors.New("boom")
	})

	panicking := preprocess.Func(func(string) (string, error) {
		panic("unexpected")
	})

	_, err := preprocess.NewPipeline(preprocess.WithPreprocessors(failing)).Process("x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	_, err = preprocess.NewPipeline(preprocess.WithPreprocessors(panicking)).Process("x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected")

	_, err = preprocess.NewPipeline(preprocess.WithPreprocessors(failing)).Process("$undefined$", nil)
	require.ErrorIs(t, err, preprocess.ErrUndefinedVariable, "substitution runs before other stages")
}

func TestPipelineVariablesDisabled(t *testing.T) {
	t.Parallel()

	text := "CREATE FUNCTION f() RETURNS int AS $body$ SELECT 1 $body$ LANGUAGE sql"

	out, err := preprocess.NewPipeline(preprocess.WithVariablesDisabled()).Process(text, nil)
	require.NoError(t, err)
	assert.Equal(t, text, out)
}

func TestTrimTrailingWhitespace(t *testing.T) {
	t.Parallel()

	out, err := preprocess.TrimTrailingWhitespace().Process("SELECT 1  \t\r\nGO \n")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1\nGO\n", out)
	assert.False(t, strings.Contains(out, "\r"))
}
