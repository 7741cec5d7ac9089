// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package lexer tracks the lexical context of SQL script text.
//
// The scanner knows only enough SQL to tell whether a position is inside a
// string literal or a comment. It never interprets statements.
package lexer

import "strings"

// State is the lexical context at the scanner position.
type State int

// Lexical states.
const (
	Normal State = iota
	InLineComment
	InBlockComment
	InStringLiteral
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Normal:
		return "Normal"
	case InLineComment:
		return "InLineComment"
	case InBlockComment:
		return "InBlockComment"
	case InStringLiteral:
		return "InStringLiteral"
	default:
		return "Unknown"
	}
}

// Scanner walks script text left to right with one byte of lookahead.
//
// All tokens the scanner reacts to are ASCII, so scanning bytes is safe
// for UTF-8 input: continuation bytes never match.
type Scanner struct {
	text  string
	pos   int
	state State
}

// New creates a scanner positioned at the start of text.
func New(text string) *Scanner {
	return &Scanner{text: text}
}

// Pos returns the offset of the next unconsumed byte.
func (s *Scanner) Pos() int {
	return s.pos
}

// State returns the lexical state at Pos.
func (s *Scanner) State() State {
	return s.state
}

// Done reports whether the whole text was consumed.
func (s *Scanner) Done() bool {
	return s.pos >= len(s.text)
}

// AtLineStart reports whether Pos is the first byte of a line.
func (s *Scanner) AtLineStart() bool {
	return s.pos == 0 || s.text[s.pos-1] == '\n'
}

// Seek moves the scanner to pos in Normal state.
//
// Seek is only valid for positions known to be outside of literals and comments.
func (s *Scanner) Seek(pos int) {
	s.pos = min(pos, len(s.text))
	s.state = Normal
}

// Advance skips n bytes keeping the current state.
//
// The skipped bytes must not contain quotes or comment markers.
func (s *Scanner) Advance(n int) {
	s.pos = min(s.pos+n, len(s.text))
}

// Next consumes one lexical unit and updates the state.
//
// Two-byte tokens ("--", "/*", "*/" and the doubled quote) are consumed at once,
// so a state change always happens on a token boundary.
func (s *Scanner) Next() {
	if s.Done() {
		return
	}

	switch s.state {
	case Normal:
		switch {
		case s.hasPrefix("--"):
			s.state = InLineComment
			s.pos += 2
		case s.hasPrefix("/*"):
			s.state = InBlockComment
			s.pos += 2
		case s.text[s.pos] == '\'':
			s.state = InStringLiteral
			s.pos++
		default:
			s.pos++
		}
	case InLineComment:
		if s.text[s.pos] == '\n' {
			s.state = Normal
		}

		s.pos++
	case InBlockComment:
		// block comments do not nest: the first terminator closes the comment
		if s.hasPrefix("*/") {
			s.state = Normal
			s.pos += 2

			return
		}

		s.pos++
	case InStringLiteral:
		switch {
		case s.hasPrefix("''"):
			s.pos += 2
		case s.text[s.pos] == '\'':
			s.state = Normal
			s.pos++
		default:
			s.pos++
		}
	}
}

func (s *Scanner) hasPrefix(prefix string) bool {
	return strings.HasPrefix(s.text[s.pos:], prefix)
}

// IsIdentifierByte reports whether c may appear inside an SQL identifier.
//
// Bytes of multi-byte UTF-8 sequences are treated as identifier bytes.
func IsIdentifierByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '$', c == '#', c == '@':
		return true
	default:
		return c >= 0x80
	}
}

// IsBlank reports whether c is horizontal whitespace.
func IsBlank(c byte) bool {
	return c == ' ' || c == '\t' || c == '\v' || c == '\f'
}

// HasCode reports whether text contains anything besides comments, whitespace and
// statement terminators.
func HasCode(text string) bool {
	sc := New(text)

	for !sc.Done() {
		if sc.State() == Normal && !sc.hasPrefix("--") && !sc.hasPrefix("/*") {
			switch text[sc.Pos()] {
			case ' ', '\t', '\v', '\f', '\r', '\n', ';':
			default:
				return true
			}
		}

		sc.Next()
	}

	return false
}
