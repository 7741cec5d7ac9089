// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package postgres connects the executor to PostgreSQL through lib/pq.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"github.com/cosi-project/sqlbatch/pkg/driver/sqldb"
	"github.com/cosi-project/sqlbatch/pkg/executor"
)

// DriverName is the database/sql driver name registered by lib/pq.
const DriverName = "postgres"

// connectionExceptionClass is the SQLSTATE class of connection failures.
const connectionExceptionClass pq.ErrorClass = "08"

// Open opens a PostgreSQL database handle for dsn.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres database: %w", err)
	}

	return db, nil
}

// NewConnector creates a connector which classifies lib/pq errors.
func NewConnector(db *sql.DB) *sqldb.Connector {
	return sqldb.New(db, Classifier)
}

// Classifier recognizes *pq.Error.
//
// The server reports the error position as a character offset into the batch,
// which is converted to a batch line.
var Classifier = executor.ClassifierFunc(func(err error, batch string) (executor.Diagnostic, bool) {
	var pqErr *pq.Error

	if !errors.As(err, &pqErr) {
		return executor.Diagnostic{}, false
	}

	diag := executor.Diagnostic{
		Kind:      executor.KindDriver,
		Code:      string(pqErr.Code),
		Procedure: pqErr.Where,
		Message:   pqErr.Message,
	}

	if diag.Procedure == "" {
		diag.Procedure = pqErr.Routine
	}

	if pqErr.Code.Class() == connectionExceptionClass {
		diag.Kind = executor.KindConnectivity
	}

	if position, convErr := strconv.Atoi(pqErr.Position); convErr == nil {
		diag.Line = executor.LineInText(batch, position)
	}

	return diag, true
})
