// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package upgrade_test

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/siderolabs/gen/xslices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/cosi-project/sqlbatch/pkg/driver/sqlite"
	"github.com/cosi-project/sqlbatch/pkg/executor"
	"github.com/cosi-project/sqlbatch/pkg/journal"
	"github.com/cosi-project/sqlbatch/pkg/provider"
	"github.com/cosi-project/sqlbatch/pkg/script"
	"github.com/cosi-project/sqlbatch/pkg/upgrade"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func scriptNames(scripts []script.Script) []string {
	return xslices.Map(scripts, func(s script.Script) string { return s.Name })
}

func setup(t *testing.T, fsys fstest.MapFS) (*upgradeEnv, *sqlitex.Pool) {
	t.Helper()

	logger := zaptest.NewLogger(t)

	pool, err := sqlite.OpenPool("file:" + filepath.Join(t.TempDir(), "upgrade.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pool.Close())
	})

	exec, err := executor.New(sqlite.NewConnector(pool),
		executor.WithLogger(logger),
		executor.WithSchema("main"),
	)
	require.NoError(t, err)

	j, err := journal.NewSQLite(pool, journal.WithLogger(logger))
	require.NoError(t, err)

	return &upgradeEnv{
		fsys:     fsys,
		executor: exec,
		journal:  j,
		logger:   logger,
	}, pool
}

func TestPerformUpgrade(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"001_create.sql": {Data: []byte("CREATE TABLE $schema$.items (id INTEGER PRIMARY KEY, name TEXT)\nGO\n")},
		"002_seed.sql":   {Data: []byte("INSERT INTO items (name) VALUES ('$item$')\nGO\nINSERT INTO items (name) VALUES ('second')\n")},
	}

	env, pool := setup(t, fsys)
	engine := env.engine(t)

	required, err := engine.IsUpgradeRequired(t.Context())
	require.NoError(t, err)
	assert.True(t, required)

	result, err := engine.PerformUpgrade(t.Context())
	require.NoError(t, err)

	assert.True(t, result.Successful())
	assert.Nil(t, result.ErrorScript)
	assert.Equal(t, []string{"001_create.sql", "002_seed.sql"}, scriptNames(result.Scripts))

	assert.Equal(t, 2, countRows(t, pool, "SELECT COUNT(*) FROM items"))
	assert.Equal(t, 1, countRows(t, pool, "SELECT COUNT(*) FROM items WHERE name = 'widget'"))

	required, err = engine.IsUpgradeRequired(t.Context())
	require.NoError(t, err)
	assert.False(t, required)

	result, err = engine.PerformUpgrade(t.Context())
	require.NoError(t, err)
	assert.Empty(t, result.Scripts, "executed scripts must not run again")

	// a new script with a broken second batch stops the upgrade
	fsys["003_broken.sql"] = &fstest.MapFile{Data: []byte("INSERT INTO items (name) VALUES ('third')\nGO\nINSERT INTO missing_table VALUES (1)\n")}
	fsys["004_after.sql"] = &fstest.MapFile{Data: []byte("INSERT INTO items (name) VALUES ('never')\n")}

	result, err = engine.PerformUpgrade(t.Context())
	require.Error(t, err)

	assert.False(t, result.Successful())
	require.NotNil(t, result.ErrorScript)
	assert.Equal(t, "003_broken.sql", result.ErrorScript.Name)
	assert.Empty(t, result.Scripts)

	var execErr *executor.ExecutionError

	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, 1, execErr.BatchIndex)

	// the first batch of the failed script stays applied, nothing after it runs
	assert.Equal(t, 1, countRows(t, pool, "SELECT COUNT(*) FROM items WHERE name = 'third'"))
	assert.Equal(t, 0, countRows(t, pool, "SELECT COUNT(*) FROM items WHERE name = 'never'"))

	executed, err := env.journal.ExecutedScripts(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_create.sql", "002_seed.sql"}, executed)

	pending, err := engine.ScriptsToExecute(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"003_broken.sql", "004_after.sql"}, scriptNames(pending))
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()

	_, err := upgrade.NewEngine(provider.Static{}, journal.Null{}, nil)
	require.Error(t, err)
}

type upgradeEnv struct {
	fsys     fstest.MapFS
	executor *executor.Executor
	journal  journal.Journal
	logger   *zap.Logger
}

func (env *upgradeEnv) engine(t *testing.T) *upgrade.Engine {
	t.Helper()

	engine, err := upgrade.NewEngine(provider.NewFS(env.fsys), env.journal, env.executor,
		upgrade.WithLogger(env.logger),
		upgrade.WithVariables(script.Variables{"item": "widget"}),
	)
	require.NoError(t, err)

	return engine
}

func countRows(t *testing.T, pool *sqlitex.Pool, query string) int {
	t.Helper()

	conn, err := pool.Take(t.Context())
	require.NoError(t, err)

	defer pool.Put(conn)

	count, err := sqlitex.ResultInt(conn.Prep(query))
	require.NoError(t, err)

	return count
}
