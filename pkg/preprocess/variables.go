// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package preprocess

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cosi-project/sqlbatch/internal/lexer"
	"github.com/cosi-project/sqlbatch/pkg/script"
)

// ErrUndefinedVariable is matched by errors about placeholders without a value.
var ErrUndefinedVariable = errors.New("undefined variable")

// UndefinedVariableError reports a placeholder naming a variable with no value.
type UndefinedVariableError struct {
	Name string
	Line int
}

// Error implements error interface.
func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("variable %q on line %d has no value defined", e.Name, e.Line)
}

// Is implements errors.Is.
func (e *UndefinedVariableError) Is(target error) bool {
	return target == ErrUndefinedVariable
}

// SubstituteVariables replaces $name$ placeholders with variable values.
//
// Placeholders inside comments are left as is. A placeholder naming a variable
// which is not defined fails the substitution. Text which doesn't form a
// placeholder ($1, $$, a lone $) passes through unchanged.
func SubstituteVariables(text string, variables script.Variables) (string, error) {
	if !strings.Contains(text, "$") {
		return text, nil
	}

	var (
		out  strings.Builder
		sc   = lexer.New(text)
		last int
	)

	out.Grow(len(text))

	for !sc.Done() {
		pos := sc.Pos()

		if text[pos] == '$' && (sc.State() == lexer.Normal || sc.State() == lexer.InStringLiteral) {
			if name, end, ok := placeholderAt(text, pos); ok {
				value, defined := variables.Lookup(name)
				if !defined {
					return "", &UndefinedVariableError{
						Name: name,
						Line: 1 + strings.Count(text[:pos], "\n"),
					}
				}

				out.WriteString(text[last:pos])
				out.WriteString(value)

				last = end

				// placeholders never contain quotes or comment markers
				sc.Advance(end - pos)

				continue
			}
		}

		sc.Next()
	}

	out.WriteString(text[last:])

	return out.String(), nil
}

// placeholderAt matches $name$ at pos and returns the name and the offset after the placeholder.
func placeholderAt(text string, pos int) (string, int, bool) {
	i := pos + 1

	for i < len(text) && isVariableByte(text[i]) {
		i++
	}

	if i == pos+1 || i >= len(text) || text[i] != '$' {
		return "", 0, false
	}

	return text[pos+1 : i], i + 1, true
}

func isVariableByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}
