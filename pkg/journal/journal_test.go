// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package journal_test

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"

	"github.com/cosi-project/sqlbatch/pkg/driver/sqlite"
	"github.com/cosi-project/sqlbatch/pkg/journal"
	"github.com/cosi-project/sqlbatch/pkg/script"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newSQLiteJournal(t *testing.T, opts ...journal.Option) journal.Journal {
	t.Helper()

	pool, err := sqlite.OpenPool("file:" + filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pool.Close())
	})

	j, err := journal.NewSQLite(pool, append([]journal.Option{journal.WithLogger(zaptest.NewLogger(t))}, opts...)...)
	require.NoError(t, err)

	return j
}

func newSQLJournal(t *testing.T, opts ...journal.Option) journal.Journal {
	t.Helper()

	db, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	j, err := journal.NewSQL(db, journal.QuestionPlaceholder, append([]journal.Option{journal.WithLogger(zaptest.NewLogger(t))}, opts...)...)
	require.NoError(t, err)

	return j
}

func TestJournals(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name    string
		journal func(*testing.T, ...journal.Option) journal.Journal
	}{
		{name: "sqlite", journal: newSQLiteJournal},
		{name: "sql", journal: newSQLJournal},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			tick := time.Unix(1_700_000_000, 0)

			j := test.journal(t,
				journal.WithTableName("migrations_log"),
				journal.WithClock(func() time.Time {
					tick = tick.Add(time.Second)

					return tick
				}),
			)

			executed, err := j.ExecutedScripts(t.Context())
			require.NoError(t, err)
			assert.Empty(t, executed)

			require.NoError(t, j.StoreExecuted(t.Context(), script.New("002_b.sql", "")))
			require.NoError(t, j.StoreExecuted(t.Context(), script.New("001_a.sql", "")))

			executed, err = j.ExecutedScripts(t.Context())
			require.NoError(t, err)
			assert.Equal(t, []string{"002_b.sql", "001_a.sql"}, executed)
		})
	}
}

func TestNullJournal(t *testing.T) {
	t.Parallel()

	var j journal.Journal = journal.Null{}

	require.NoError(t, j.StoreExecuted(t.Context(), script.New("a", "")))

	executed, err := j.ExecutedScripts(t.Context())
	require.NoError(t, err)
	assert.Empty(t, executed)
}

func TestInvalidTableName(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"", "bad name", "x; DROP TABLE y", ".t", "t.", "t--"} {
		_, err := journal.NewSQL(nil, journal.DollarPlaceholder, journal.WithTableName(name))
		require.ErrorIs(t, err, journal.ErrInvalidTableName, "name %q", name)
	}

	_, err := journal.NewSQL(nil, journal.DollarPlaceholder, journal.WithTableName("public.schema_versions"))
	require.NoError(t, err)
}
