// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package sqlite

import (
	"errors"
	"strconv"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
	"zombiezen.com/go/sqlite"

	"github.com/cosi-project/sqlbatch/pkg/executor"
)

// Classifier recognizes errors of the modernc database/sql driver.
var Classifier = executor.ClassifierFunc(func(err error, _ string) (executor.Diagnostic, bool) {
	var sqliteErr *moderncsqlite.Error

	if !errors.As(err, &sqliteErr) {
		return executor.Diagnostic{}, false
	}

	return executor.Diagnostic{
		Kind:    kindOf(sqliteErr.Code() & 0xff),
		Code:    strconv.Itoa(sqliteErr.Code()),
		Message: sqliteErr.Error(),
	}, true
})

// classifyConnError classifies errors returned by zombiezen connections.
//
// Every error of a pooled connection carries a result code, interrupts included.
func classifyConnError(err error) executor.Diagnostic {
	code := sqlite.ErrCode(err)

	return executor.Diagnostic{
		Kind:    kindOf(int(code.ToPrimary())),
		Code:    code.String(),
		Message: err.Error(),
	}
}

// kindOf maps a primary sqlite result code to a failure kind.
//
// Interrupts come from context cancellation and are not caused by the batch.
func kindOf(primary int) executor.Kind {
	switch primary {
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED,
		sqlite3.SQLITE_INTERRUPT:
		return executor.KindConnectivity
	default:
		return executor.KindDriver
	}
}
