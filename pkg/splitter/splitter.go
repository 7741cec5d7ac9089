// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package splitter partitions script text into independently executable batches.
//
// A batch boundary is a line which contains only the separator keyword (GO by default),
// optionally followed by a semicolon and a same-line comment. Separator text inside
// string literals and comments never splits.
package splitter

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/siderolabs/gen/xslices"

	"github.com/cosi-project/sqlbatch/internal/lexer"
)

// DefaultSeparator is the conventional batch separator keyword.
const DefaultSeparator = "GO"

// ErrInvalidSeparator is returned for separators which can't be matched as a keyword.
var ErrInvalidSeparator = errors.New("invalid batch separator")

// Batch is a single executable unit of a script.
type Batch struct {
	// Text is the trimmed batch text, never empty.
	Text string

	// Index is the zero-based position of the batch within the script.
	Index int

	// Line is the 1-based line of the first batch character within the script text.
	Line int
}

// Options configures the splitter.
type Options struct {
	// Separator is the batch separator keyword, matched case-insensitively.
	//
	// Default is "GO".
	Separator string
}

// Option configures the splitter.
type Option func(*Options)

// DefaultOptions returns default splitter options.
func DefaultOptions() Options {
	return Options{
		Separator: DefaultSeparator,
	}
}

// WithSeparator sets the batch separator keyword.
func WithSeparator(separator string) Option {
	return func(opts *Options) {
		opts.Separator = separator
	}
}

// Splitter splits scripts into batches.
//
// Splitter is stateless and safe for concurrent use.
type Splitter struct {
	options Options
}

// New creates a new Splitter.
func New(opts ...Option) (*Splitter, error) {
	options := DefaultOptions()

	for _, opt := range opts {
		opt(&options)
	}

	if options.Separator == "" {
		return nil, fmt.Errorf("%w: empty keyword", ErrInvalidSeparator)
	}

	for i := range len(options.Separator) {
		if !lexer.IsIdentifierByte(options.Separator[i]) {
			return nil, fmt.Errorf("%w: %q is not a keyword", ErrInvalidSeparator, options.Separator)
		}
	}

	return &Splitter{options: options}, nil
}

var defaultSplitter = &Splitter{options: DefaultOptions()}

// Split splits text on the default separator and returns the batch texts.
func Split(text string) []string {
	return xslices.Map(defaultSplitter.Batches(text), func(b Batch) string { return b.Text })
}

// Split returns the batch texts of the script text.
func (s *Splitter) Split(text string) []string {
	return xslices.Map(s.Batches(text), func(b Batch) string { return b.Text })
}

// Batches scans text once and returns the batches in source order.
func (s *Splitter) Batches(text string) []Batch {
	var (
		batches []Batch
		lines   = lineCounter{text: text, line: 1}
		start   int
	)

	emit := func(end int) {
		raw := text[start:end]

		trimmed := strings.TrimLeftFunc(raw, unicode.IsSpace)
		if trimmed = strings.TrimRightFunc(trimmed, unicode.IsSpace); trimmed == "" {
			return
		}

		offset := start + len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace))

		batches = append(batches, Batch{
			Text:  trimmed,
			Index: len(batches),
			Line:  lines.at(offset),
		})
	}

	sc := lexer.New(text)

	for !sc.Done() {
		if sc.State() == lexer.Normal && sc.AtLineStart() {
			if next, ok := s.matchSeparatorLine(text, sc.Pos()); ok {
				emit(sc.Pos())

				start = next
				sc.Seek(next)

				continue
			}
		}

		sc.Next()
	}

	emit(len(text))

	return batches
}

// matchSeparatorLine checks whether the line starting at pos is a separator line.
//
// It returns the offset of the first byte after the line terminator.
func (s *Splitter) matchSeparatorLine(text string, pos int) (int, bool) {
	i := skipBlanks(text, pos)

	keyword := s.options.Separator
	if len(text)-i < len(keyword) || !strings.EqualFold(text[i:i+len(keyword)], keyword) {
		return 0, false
	}

	i += len(keyword)

	if i < len(text) && lexer.IsIdentifierByte(text[i]) {
		// keyword is a prefix of a longer identifier, e.g. GOTO
		return 0, false
	}

	i = skipBlanks(text, i)

	if i < len(text) && text[i] == ';' {
		i = skipBlanks(text, i+1)
	}

	for i < len(text) {
		if strings.HasPrefix(text[i:], "--") {
			if eol := strings.IndexByte(text[i:], '\n'); eol >= 0 {
				i += eol
			} else {
				i = len(text)
			}

			break
		}

		if !strings.HasPrefix(text[i:], "/*") {
			break
		}

		// a block comment may trail the separator only if it closes on the same line
		closing := strings.Index(text[i+2:], "*/")
		if closing < 0 {
			return 0, false
		}

		end := i + 2 + closing + 2
		if strings.ContainsRune(text[i:end], '\n') {
			return 0, false
		}

		i = skipBlanks(text, end)
	}

	if i < len(text) && text[i] == '\r' {
		i++
	}

	switch {
	case i == len(text):
		return i, true
	case text[i] == '\n':
		return i + 1, true
	default:
		return 0, false
	}
}

func skipBlanks(text string, i int) int {
	for i < len(text) && lexer.IsBlank(text[i]) {
		i++
	}

	return i
}

// lineCounter maps monotonically increasing offsets to line numbers.
type lineCounter struct {
	text string
	pos  int
	line int
}

func (c *lineCounter) at(offset int) int {
	c.line += strings.Count(c.text[c.pos:offset], "\n")
	c.pos = offset

	return c.line
}
