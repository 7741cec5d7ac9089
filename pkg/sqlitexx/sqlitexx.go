// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package sqlitexx provides named-parameter statement helpers on top of zombiezen sqlite.
package sqlitexx

import (
	"errors"

	"zombiezen.com/go/sqlite"
)

// Query is a cached prepared statement with bound parameters.
type Query struct {
	stmt *sqlite.Stmt
}

// NewQuery prepares query on conn, reusing the connection statement cache.
//
// NewQuery supports only named parameters.
func NewQuery(conn *sqlite.Conn, query string) (*Query, error) {
	stmt, err := conn.Prepare(query)
	if err != nil {
		return nil, err
	}

	return &Query{stmt: stmt}, nil
}

// BindString binds a string parameter.
func (q *Query) BindString(name, value string) *Query {
	q.stmt.SetText(name, value)

	return q
}

// BindInt64 binds an int64 parameter.
func (q *Query) BindInt64(name string, value int64) *Query {
	q.stmt.SetInt64(name, value)

	return q
}

// Exec executes a statement which returns no rows.
func (q *Query) Exec() (err error) {
	defer q.reset(&err)

	hasRows, err := q.stmt.Step()
	if err == nil && hasRows {
		err = errors.New("sqlitexx: Exec: query returned rows")
	}

	return err
}

// Strings executes the query and collects the text column of every row.
func (q *Query) Strings(column string) (result []string, err error) {
	defer q.reset(&err)

	for {
		hasRow, err := q.stmt.Step()
		if err != nil {
			return nil, err
		}

		if !hasRow {
			return result, nil
		}

		result = append(result, q.stmt.GetText(column))
	}
}

func (q *Query) reset(err *error) {
	resetErr := q.stmt.Reset()

	clearErr := q.stmt.ClearBindings()

	if *err == nil {
		*err = errors.Join(resetErr, clearErr)
	}
}
