// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package journal

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/cosi-project/sqlbatch/pkg/script"
)

// Placeholder renders the n-th (1-based) bind parameter for a driver.
type Placeholder func(n int) string

// Placeholder styles.
var (
	// QuestionPlaceholder is used by sqlite and libsql drivers.
	QuestionPlaceholder Placeholder = func(int) string { return "?" }

	// DollarPlaceholder is used by PostgreSQL drivers.
	DollarPlaceholder Placeholder = func(n int) string { return fmt.Sprintf("$%d", n) }
)

// SQL is a journal stored through database/sql.
type SQL struct {
	db          *sql.DB
	placeholder Placeholder
	options     Options
}

// Check interface implementation.
var _ Journal = &SQL{}

// NewSQL creates a journal stored in db.
func NewSQL(db *sql.DB, placeholder Placeholder, opts ...Option) (*SQL, error) {
	options, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return &SQL{
		db:          db,
		placeholder: placeholder,
		options:     options,
	}, nil
}

func (j *SQL) ensureTable(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS `+j.options.TableName+` (
			script_name VARCHAR(255) NOT NULL,
			applied BIGINT NOT NULL
		)`,
	); err != nil {
		return fmt.Errorf("creating journal table %q: %w", j.options.TableName, err)
	}

	return nil
}

// ExecutedScripts implements Journal.
func (j *SQL) ExecutedScripts(ctx context.Context) ([]string, error) {
	if err := j.ensureTable(ctx); err != nil {
		return nil, err
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT script_name FROM `+j.options.TableName+` ORDER BY applied, script_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}

	defer rows.Close() //nolint:errcheck

	var names []string

	for rows.Next() {
		var name string

		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}

		names = append(names, name)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}

	return names, nil
}

// StoreExecuted implements Journal.
func (j *SQL) StoreExecuted(ctx context.Context, s script.Script) error {
	if err := j.ensureTable(ctx); err != nil {
		return err
	}

	if _, err := j.db.ExecContext(ctx,
		`INSERT INTO `+j.options.TableName+` (script_name, applied) VALUES (`+j.placeholder(1)+`, `+j.placeholder(2)+`)`,
		s.Name,
		j.options.Now().Unix(),
	); err != nil {
		return fmt.Errorf("journaling script %q: %w", s.Name, err)
	}

	j.options.Logger.Debug("script journaled", zap.String("script", s.Name))

	return nil
}
