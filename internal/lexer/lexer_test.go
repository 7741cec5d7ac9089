// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cosi-project/sqlbatch/internal/lexer"
)

// states returns the state observed before consuming each position the scanner stops at.
func states(text string) map[int]lexer.State {
	result := map[int]lexer.State{}

	sc := lexer.New(text)

	for !sc.Done() {
		result[sc.Pos()] = sc.State()

		sc.Next()
	}

	return result
}

func TestScannerStates(t *testing.T) {
	t.Parallel()

	for _, test := range []struct { //nolint:govet
		name string

		text     string
		pos      int
		expected lexer.State
	}{
		{
			name:     "plain",
			text:     "SELECT 1",
			pos:      3,
			expected: lexer.Normal,
		},
		{
			name:     "line comment",
			text:     "-- GO\nSELECT",
			pos:      3,
			expected: lexer.InLineComment,
		},
		{
			name:     "after line comment",
			text:     "-- GO\nSELECT",
			pos:      6,
			expected: lexer.Normal,
		},
		{
			name:     "block comment",
			text:     "/* a\nGO\n*/",
			pos:      5,
			expected: lexer.InBlockComment,
		},
		{
			name:     "block comment does not nest",
			text:     "/* /* */ x */",
			pos:      9,
			expected: lexer.Normal,
		},
		{
			name:     "string literal",
			text:     "'a\nGO\n'",
			pos:      3,
			expected: lexer.InStringLiteral,
		},
		{
			name:     "doubled quote stays in literal",
			text:     "'it''s\nGO'",
			pos:      7,
			expected: lexer.InStringLiteral,
		},
		{
			name:     "comment markers inside literal",
			text:     "'-- /*' x",
			pos:      8,
			expected: lexer.Normal,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			st, ok := states(test.text)[test.pos]
			assert.True(t, ok, "scanner skipped position %d", test.pos)
			assert.Equal(t, test.expected, st, "state at %d", test.pos)
		})
	}
}

func TestScannerLineStart(t *testing.T) {
	t.Parallel()

	sc := lexer.New("a\nb")
	assert.True(t, sc.AtLineStart())

	sc.Next()
	assert.False(t, sc.AtLineStart())

	sc.Next()
	assert.True(t, sc.AtLineStart())

	sc.Seek(100)
	assert.True(t, sc.Done())
	assert.Equal(t, lexer.Normal, sc.State())
}

func TestHasCode(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		text     string
		expected bool
	}{
		{text: "", expected: false},
		{text: " \r\n\t", expected: false},
		{text: "-- only comment", expected: false},
		{text: "/* block */", expected: false},
		{text: ";\n/* tail */", expected: false},
		{text: "; -- tail\n;", expected: false},
		{text: "/* unterminated", expected: false},
		{text: "/* a */ SELECT 1", expected: true},
		{text: "-- note\nx", expected: true},
		{text: "''", expected: true},
		{text: "INSERT INTO t VALUES (1); -- tail", expected: true},
	} {
		assert.Equal(t, test.expected, lexer.HasCode(test.text), "%q", test.text)
	}
}
