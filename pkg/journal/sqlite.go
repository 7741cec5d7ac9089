// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package journal

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/cosi-project/sqlbatch/pkg/script"
	"github.com/cosi-project/sqlbatch/pkg/sqlitexx"
)

// SQLite is a journal stored in a sqlite database.
type SQLite struct {
	db      *sqlitex.Pool
	options Options
}

// Check interface implementation.
var _ Journal = &SQLite{}

// NewSQLite creates a journal stored in the database behind pool.
func NewSQLite(pool *sqlitex.Pool, opts ...Option) (*SQLite, error) {
	options, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return &SQLite{
		db:      pool,
		options: options,
	}, nil
}

func (j *SQLite) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := j.db.Take(ctx)
	if err != nil {
		return fmt.Errorf("taking connection for journal: %w", err)
	}

	defer j.db.Put(conn)

	if err = sqlitex.ExecuteTransient(conn,
		`CREATE TABLE IF NOT EXISTS `+j.options.TableName+` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			script_name TEXT NOT NULL,
			applied INTEGER NOT NULL
		)`, nil); err != nil {
		return fmt.Errorf("creating journal table %q: %w", j.options.TableName, err)
	}

	return fn(conn)
}

// ExecutedScripts implements Journal.
func (j *SQLite) ExecutedScripts(ctx context.Context) ([]string, error) {
	var names []string

	err := j.withConn(ctx, func(conn *sqlite.Conn) error {
		q, err := sqlitexx.NewQuery(conn, `SELECT script_name FROM `+j.options.TableName+` ORDER BY id`)
		if err != nil {
			return fmt.Errorf("preparing journal query: %w", err)
		}

		names, err = q.Strings("script_name")
		if err != nil {
			return fmt.Errorf("reading journal: %w", err)
		}

		return nil
	})

	return names, err
}

// StoreExecuted implements Journal.
func (j *SQLite) StoreExecuted(ctx context.Context, s script.Script) error {
	return j.withConn(ctx, func(conn *sqlite.Conn) error {
		q, err := sqlitexx.NewQuery(conn,
			`INSERT INTO `+j.options.TableName+` (script_name, applied) VALUES ($name, $applied)`,
		)
		if err != nil {
			return fmt.Errorf("preparing journal insert: %w", err)
		}

		if err = q.
			BindString("$name", s.Name).
			BindInt64("$applied", j.options.Now().Unix()).
			Exec(); err != nil {
			return fmt.Errorf("journaling script %q: %w", s.Name, err)
		}

		j.options.Logger.Debug("script journaled", zap.String("script", s.Name))

		return nil
	})
}
