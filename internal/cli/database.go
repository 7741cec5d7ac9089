// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"                                // postgres driver
	_ "github.com/tursodatabase/libsql-client-go/libsql" // libsql driver
	"go.uber.org/zap"

	"github.com/cosi-project/sqlbatch/internal/config"
	"github.com/cosi-project/sqlbatch/pkg/driver/postgres"
	"github.com/cosi-project/sqlbatch/pkg/driver/sqldb"
	"github.com/cosi-project/sqlbatch/pkg/driver/sqlite"
	"github.com/cosi-project/sqlbatch/pkg/executor"
	"github.com/cosi-project/sqlbatch/pkg/journal"
)

const libsqlDriverName = "libsql"

// target is an opened database with its journal.
type target struct {
	connector executor.Connector
	journal   journal.Journal
	close     func() error
	driver    string
}

// detectDriver picks the driver from the database URL scheme.
func detectDriver(url string) string {
	lower := strings.ToLower(url)

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return postgres.DriverName
	case strings.HasPrefix(lower, "libsql://"), strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return libsqlDriverName
	default:
		return "sqlite"
	}
}

func openTarget(url string, s *settings) (*target, error) {
	if url == "" {
		return nil, errors.New("database URL is not set, use --url or database_url in " + config.FileName)
	}

	journalOpts := []journal.Option{journal.WithLogger(s.logger)}
	if s.table != "" {
		journalOpts = append(journalOpts, journal.WithTableName(s.table))
	}

	driver := detectDriver(url)

	s.logger.Debug("opening database", zap.String("driver", driver))

	switch driver {
	case postgres.DriverName:
		db, err := postgres.Open(url)
		if err != nil {
			return nil, err
		}

		return sqlTarget(driver, db, postgres.NewConnector(db), journal.DollarPlaceholder, journalOpts)
	case libsqlDriverName:
		db, err := sql.Open(libsqlDriverName, url)
		if err != nil {
			return nil, fmt.Errorf("opening libsql database: %w", err)
		}

		return sqlTarget(driver, db, sqldb.New(db), journal.QuestionPlaceholder, journalOpts)
	default:
		pool, err := sqlite.OpenPool(strings.TrimPrefix(url, "sqlite://"))
		if err != nil {
			return nil, err
		}

		j, err := journal.NewSQLite(pool, journalOpts...)
		if err != nil {
			return nil, errors.Join(err, pool.Close())
		}

		return &target{
			driver:    driver,
			connector: sqlite.NewConnector(pool),
			journal:   j,
			close:     pool.Close,
		}, nil
	}
}

func sqlTarget(driver string, db *sql.DB, connector executor.Connector, placeholder journal.Placeholder, opts []journal.Option) (*target, error) {
	j, err := journal.NewSQL(db, placeholder, opts...)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return &target{
		driver:    driver,
		connector: connector,
		journal:   j,
		close:     db.Close,
	}, nil
}
