// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package executor

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// Kind classifies batch failures.
type Kind int

// Failure kinds.
const (
	// KindUnclassified is any failure no classifier recognized.
	KindUnclassified Kind = iota
	// KindDriver is a batch rejected by the database, with driver metadata.
	KindDriver
	// KindConnectivity is a broader database or connection failure.
	KindConnectivity
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindUnclassified:
		return "unclassified"
	case KindDriver:
		return "driver"
	case KindConnectivity:
		return "connectivity"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Diagnostic is the metadata a classifier extracts from a driver error.
type Diagnostic struct {
	// Code is the driver error code (SQLSTATE, sqlite result code, ...).
	Code string

	// Procedure is the server routine which raised the error, if known.
	Procedure string

	// Message is the driver message without decorations.
	Message string

	// Kind is the failure class.
	Kind Kind

	// Line is the 1-based line within the batch, zero if unknown.
	Line int
}

// Classifier recognizes driver errors.
//
// Classify returns false for errors it doesn't know about.
type Classifier interface {
	Classify(err error, batch string) (Diagnostic, bool)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(err error, batch string) (Diagnostic, bool)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(err error, batch string) (Diagnostic, bool) {
	return f(err, batch)
}

// ConnectivityClassifier recognizes generic connection failures.
var ConnectivityClassifier = ClassifierFunc(func(err error, _ string) (Diagnostic, bool) {
	var netErr net.Error

	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return Diagnostic{
			Kind:    KindConnectivity,
			Message: err.Error(),
		}, true
	default:
		return Diagnostic{}, false
	}
})

// ExecutionError is returned when a script batch fails.
type ExecutionError struct {
	Err error

	Script    string
	Code      string
	Procedure string
	Message   string

	// Batch is the text of the failed batch.
	Batch string

	Kind       Kind
	BatchIndex int

	// Line is the 1-based line within the batch, zero if unknown.
	Line int

	// ScriptLine is the 1-based line within the preprocessed script, zero if unknown.
	ScriptLine int
}

// Error implements error interface.
func (e *ExecutionError) Error() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "script %q batch %d failed", e.Script, e.BatchIndex)

	if e.Line > 0 {
		fmt.Fprintf(&sb, " at line %d", e.Line)
	}

	if e.Code != "" {
		fmt.Fprintf(&sb, " (code %s)", e.Code)
	}

	fmt.Fprintf(&sb, ": %v", e.Err)

	return sb.String()
}

// Unwrap returns the original driver error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// LineInText converts a 1-based character position in text into a 1-based line number.
//
// Drivers reporting error positions rather than lines use it in their classifiers.
func LineInText(text string, position int) int {
	if position <= 0 {
		return 0
	}

	line := 1

	for i, r := range []rune(text) {
		if i >= position-1 {
			break
		}

		if r == '\n' {
			line++
		}
	}

	return line
}
