// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package sqlite runs script batches over a pool of zombiezen sqlite connections.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/cosi-project/sqlbatch/internal/lexer"
	"github.com/cosi-project/sqlbatch/pkg/executor"
)

// PoolOptions configures the connection pool opened by OpenPool.
type PoolOptions struct {
	// PoolSize is the maximum number of connections.
	//
	// Default is 4.
	PoolSize int

	// BusyTimeoutMillis sets the busy_timeout pragma on every connection.
	//
	// Default is 5000.
	BusyTimeoutMillis int
}

// PoolOption configures the connection pool.
type PoolOption func(*PoolOptions)

// DefaultPoolOptions returns default pool options.
func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		PoolSize:          4,
		BusyTimeoutMillis: 5000,
	}
}

// WithPoolSize sets the maximum number of pooled connections.
func WithPoolSize(size int) PoolOption {
	return func(opts *PoolOptions) {
		opts.PoolSize = size
	}
}

// WithBusyTimeout sets the busy timeout in milliseconds.
func WithBusyTimeout(millis int) PoolOption {
	return func(opts *PoolOptions) {
		opts.BusyTimeoutMillis = millis
	}
}

// OpenPool opens a connection pool to the database at uri.
//
// Every connection gets the configured busy timeout.
func OpenPool(uri string, opts ...PoolOption) (*sqlitex.Pool, error) {
	options := DefaultPoolOptions()

	for _, opt := range opts {
		opt(&options)
	}

	pool, err := sqlitex.NewPool(uri, sqlitex.PoolOptions{
		PoolSize: options.PoolSize,
		PrepareConn: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteTransient(conn,
				fmt.Sprintf("PRAGMA busy_timeout = %d", options.BusyTimeoutMillis), nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite pool %q: %w", uri, err)
	}

	return pool, nil
}

// Connector takes connections from a pool.
type Connector struct {
	pool *sqlitex.Pool
}

// Check interface implementation.
var (
	_ executor.Connector  = &Connector{}
	_ executor.Classifier = &Connector{}
)

// NewConnector creates a connector over pool.
func NewConnector(pool *sqlitex.Pool) *Connector {
	return &Connector{pool: pool}
}

// Open implements executor.Connector.
func (c *Connector) Open(ctx context.Context) (executor.Conn, error) {
	conn, err := c.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("taking connection: %w", err)
	}

	return &Conn{
		pool: c.pool,
		conn: conn,
	}, nil
}

// Classify implements executor.Classifier.
func (c *Connector) Classify(err error, _ string) (executor.Diagnostic, bool) {
	var connErr *connError

	if !errors.As(err, &connErr) {
		return executor.Diagnostic{}, false
	}

	return classifyConnError(connErr.err), true
}

// Conn is a pooled connection, returned to the pool on Close.
type Conn struct {
	pool *sqlitex.Pool
	conn *sqlite.Conn
}

// connError marks errors raised by the sqlite connection itself.
type connError struct {
	err error
}

func (e *connError) Error() string { return e.err.Error() }

func (e *connError) Unwrap() error { return e.err }

// Exec implements executor.Conn.
//
// Every statement of the batch runs in order outside of any implicit savepoint.
func (c *Conn) Exec(ctx context.Context, text string) error {
	if err := c.exec(ctx, text); err != nil {
		return &connError{err: err}
	}

	return nil
}

func (c *Conn) exec(ctx context.Context, text string) error {
	c.conn.SetInterrupt(ctx.Done())
	defer c.conn.SetInterrupt(nil)

	for {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil
		}

		stmt, trailingBytes, err := c.conn.PrepareTransient(text)
		if err != nil {
			return err
		}

		consumed := len(text) - trailingBytes

		if stmt != nil {
			// comments and bare terminators prepare to an empty statement which can't be stepped
			if lexer.HasCode(text[:consumed]) {
				err = step(stmt)
			} else {
				err = stmt.Finalize()
			}

			if err != nil {
				return err
			}
		}

		if consumed <= 0 {
			return nil
		}

		text = text[consumed:]
	}
}

func step(stmt *sqlite.Stmt) (err error) {
	defer func() {
		finalizeErr := stmt.Finalize()
		if err == nil {
			err = finalizeErr
		}
	}()

	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return err
		}

		if !hasRow {
			return nil
		}
	}
}

// Close implements executor.Conn.
func (c *Conn) Close() error {
	c.pool.Put(c.conn)

	return nil
}
