// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package executor

import "context"

// Connector opens connections to the target database.
type Connector interface {
	Open(ctx context.Context) (Conn, error)
}

// Conn is a connection exclusively owned by a single Execute call.
type Conn interface {
	// Exec runs text as a single command, no result set is expected.
	Exec(ctx context.Context, text string) error

	// Close releases the connection.
	Close() error
}

// ConnectorFunc adapts a function to the Connector interface.
type ConnectorFunc func(ctx context.Context) (Conn, error)

// Open implements Connector.
func (f ConnectorFunc) Open(ctx context.Context) (Conn, error) {
	return f(ctx)
}
