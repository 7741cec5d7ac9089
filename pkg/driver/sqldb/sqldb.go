// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package sqldb adapts database/sql to the executor connection capability.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cosi-project/sqlbatch/pkg/executor"
)

// Connector hands out dedicated *sql.Conn connections from a *sql.DB.
type Connector struct {
	db          *sql.DB
	classifiers []executor.Classifier
}

// Check interface implementation.
var (
	_ executor.Connector  = &Connector{}
	_ executor.Classifier = &Connector{}
)

// New creates a connector over db.
//
// Classifiers recognize errors of the driver behind db.
func New(db *sql.DB, classifiers ...executor.Classifier) *Connector {
	return &Connector{
		db:          db,
		classifiers: classifiers,
	}
}

// Open implements executor.Connector.
//
// The returned connection is pinned for its lifetime, so session state set by one
// batch is visible to the following batches.
func (c *Connector) Open(ctx context.Context) (executor.Conn, error) {
	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring database connection: %w", err)
	}

	return &Conn{conn: conn}, nil
}

// Classify implements executor.Classifier.
func (c *Connector) Classify(err error, batch string) (executor.Diagnostic, bool) {
	for _, classifier := range c.classifiers {
		if diag, ok := classifier.Classify(err, batch); ok {
			return diag, true
		}
	}

	return executor.Diagnostic{}, false
}

// Conn wraps a *sql.Conn.
type Conn struct {
	conn *sql.Conn
}

// Exec implements executor.Conn.
func (c *Conn) Exec(ctx context.Context, text string) error {
	_, err := c.conn.ExecContext(ctx, text)

	return err
}

// Close implements executor.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}
