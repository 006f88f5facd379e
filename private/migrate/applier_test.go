// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"storj.io/common/testcontext"
	"storj.io/mdschema/private/dbutil"
	"storj.io/mdschema/private/dbutil/dbschema"
	"storj.io/mdschema/private/migrate"
	"storj.io/mdschema/private/migrate/migratetest"
	"storj.io/mdschema/private/tagsql"
)

func testDefinitions() []*migrate.Definition {
	return []*migrate.Definition{
		{
			Scope:   migrate.Shared,
			Version: migrate.Version{Major: 1, Minor: 0},
			Label:   "registry",
			Note:    "registry",
			Up:      migrate.SQL{`CREATE TABLE registry (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`},
			Down:    migrate.SQL{`DROP TABLE registry`},
		},
		{
			Scope:   migrate.Shared,
			Version: migrate.Version{Major: 1, Minor: 1},
			Label:   "registry-seed",
			Up:      migrate.SQL{`INSERT INTO registry (id, name) VALUES (1, 'items')`},
			Down:    migrate.SQL{`DELETE FROM registry WHERE id = 1`},
		},
		{
			Scope:   migrate.PerShard,
			Version: migrate.Version{Major: 1, Minor: 0},
			Label:   "items",
			Up:      migrate.SQL{`CREATE TABLE {{vnode}}.items (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`},
			Down:    migrate.SQL{`DROP TABLE {{vnode}}.items`},
		},
		{
			Scope:   migrate.PerShard,
			Version: migrate.Version{Major: 1, Minor: 1},
			Label:   "items-size",
			Up:      migrate.SQL{`ALTER TABLE {{vnode}}.items ADD COLUMN size INTEGER`},
			Down:    migrate.SQL{`ALTER TABLE {{vnode}}.items DROP COLUMN size`},
		},
		{
			Scope:   migrate.PerShard,
			Version: migrate.Version{Major: 2, Minor: 0},
			Label:   "tags",
			Up:      migrate.SQL{`CREATE TABLE {{vnode}}.tags (item_id INTEGER NOT NULL, tag TEXT NOT NULL)`},
			Down:    migrate.SQL{`DROP TABLE {{vnode}}.tags`},
		},
	}
}

func testCatalog(t *testing.T) *migrate.Catalog {
	catalog, err := migrate.NewCatalog(testDefinitions()...)
	require.NoError(t, err)
	return catalog
}

func versionsOf(records []migrate.Record) []migrate.Version {
	var versions []migrate.Version
	for _, record := range records {
		versions = append(versions, record.Version)
	}
	return versions
}

var (
	allShared   = []migrate.Version{{Major: 1, Minor: 0}, {Major: 1, Minor: 1}}
	allPerShard = []migrate.Version{{Major: 1, Minor: 0}, {Major: 1, Minor: 1}, {Major: 2, Minor: 0}}
)

func requireLedger(ctx *testcontext.Context, t *testing.T, applier *migrate.Applier, schema string, expected []migrate.Version) {
	records, err := applier.Records(ctx, schema)
	require.NoError(t, err)
	require.Equal(t, expected, versionsOf(records), schema)
}

func TestRunIdempotent(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards := db.CreateShards(ctx, t, 3)
		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, testCatalog(t), db.Config())

		report, err := applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)
		require.NoError(t, report.Err())
		require.Equal(t, 2+3*3, report.Count(migrate.Applied))

		requireLedger(ctx, t, applier, db.Shared, allShared)
		snapshots := map[string]*dbschema.Schema{}
		for _, shard := range shards {
			requireLedger(ctx, t, applier, shard.Schema, allPerShard)
			snapshots[shard.Schema] = db.QuerySchema(ctx, t, shard.Schema)
		}

		report, err = applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)
		require.NoError(t, report.Err())
		require.Equal(t, 0, report.Count(migrate.Applied))
		require.Equal(t, 2+3*3, report.Count(migrate.Skipped))

		for _, shard := range shards {
			requireLedger(ctx, t, applier, shard.Schema, allPerShard)
			require.Equal(t, snapshots[shard.Schema], db.QuerySchema(ctx, t, shard.Schema))
		}
	})
}

func TestRunTargets(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards := db.CreateShards(ctx, t, 2)
		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, testCatalog(t), db.Config())

		_, err := applier.Run(ctx, migrate.Targets{PerShard: &migrate.Version{Major: 1, Minor: 5}})
		require.Error(t, err)
		require.True(t, migrate.ErrLoad.Has(err))

		report, err := applier.Run(ctx, migrate.Targets{
			Shared:   &migrate.Version{Major: 1, Minor: 0},
			PerShard: &migrate.Version{Major: 1, Minor: 0},
		})
		require.NoError(t, err)
		require.NoError(t, report.Err())

		requireLedger(ctx, t, applier, db.Shared, allShared[:1])
		for _, shard := range shards {
			requireLedger(ctx, t, applier, shard.Schema, allPerShard[:1])
		}

		report, err = applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)
		require.NoError(t, report.Err())
		require.Equal(t, 1+2*2, report.Count(migrate.Applied))

		requireLedger(ctx, t, applier, db.Shared, allShared)
		for _, shard := range shards {
			requireLedger(ctx, t, applier, shard.Schema, allPerShard)
		}
	})
}

func TestRunScopeOrdering(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards := db.CreateShards(ctx, t, 2)

		defs := testDefinitions()
		// per-shard migrations may rely on everything shared being in place
		defs[2].Up = append(defs[2].Up, `INSERT INTO {{vnode}}.items (id, name) SELECT id, name FROM registry`)
		catalog, err := migrate.NewCatalog(defs...)
		require.NoError(t, err)

		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, catalog, db.Config())
		report, err := applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)
		require.NoError(t, report.Err())

		sharedRecords, err := applier.Records(ctx, db.Shared)
		require.NoError(t, err)
		lastShared := sharedRecords[len(sharedRecords)-1].AppliedAt

		for _, shard := range shards {
			var name string
			row := db.DB.QueryRowContext(ctx, `SELECT name FROM `+dbutil.QuoteIdentifier(shard.Schema, "items")+` WHERE id = 1`)
			require.NoError(t, row.Scan(&name))
			require.Equal(t, "items", name)

			records, err := applier.Records(ctx, shard.Schema)
			require.NoError(t, err)
			require.False(t, records[0].AppliedAt.Before(lastShared))
		}

		// outcomes are reported in execution order
		seenPerShard := false
		for _, outcome := range report.Outcomes {
			if outcome.Scope == migrate.PerShard {
				seenPerShard = true
				continue
			}
			require.False(t, seenPerShard, "shared migration after a per-shard one")
		}
	})
}

func TestRunScopeOrderingMissingShared(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards := db.CreateShards(ctx, t, 2)

		defs := testDefinitions()
		defs[2].Up = append(defs[2].Up, `INSERT INTO {{vnode}}.items (id, name) SELECT id, name FROM registry`)
		catalog, err := migrate.NewCatalog(defs...)
		require.NoError(t, err)

		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, catalog, db.Config())

		// without the shared registry the per-shard migration can not run
		report, err := applier.Run(ctx, migrate.Targets{Shared: &migrate.Base})
		require.NoError(t, err)
		require.Len(t, report.Failures, len(shards))
		for _, failure := range report.Failures {
			require.Equal(t, migrate.PerShard, failure.Scope)
			require.Equal(t, migrate.Version{Major: 1, Minor: 0}, failure.Version)
			require.True(t, migrate.ErrExecution.Has(failure.Err))
		}
		require.Equal(t, 2*2, report.Count(migrate.Blocked))

		requireLedger(ctx, t, applier, db.Shared, nil)
		for _, shard := range shards {
			requireLedger(ctx, t, applier, shard.Schema, nil)
			_, ok := db.QuerySchema(ctx, t, shard.Schema).FindTable("items")
			require.False(t, ok)
		}

		report, err = applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)
		require.NoError(t, report.Err())
		for _, shard := range shards {
			requireLedger(ctx, t, applier, shard.Schema, allPerShard)
		}
	})
}

func TestRunCrashSafety(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards := db.CreateShards(ctx, t, 1)

		defs := testDefinitions()
		good := defs[3].Up
		defs[3].Up = migrate.SQL{
			`ALTER TABLE {{vnode}}.items ADD COLUMN size INTEGER`,
			`INSERT INTO {{vnode}}.missing (id) VALUES (1)`,
		}
		catalog, err := migrate.NewCatalog(defs...)
		require.NoError(t, err)

		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, catalog, db.Config())
		report, err := applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)
		require.Error(t, report.Err())
		require.Len(t, report.Failures, 1)
		require.True(t, migrate.ErrExecution.Has(report.Failures[0].Err))
		require.Equal(t, migrate.Version{Major: 1, Minor: 1}, report.Failures[0].Version)

		// the failed migration left nothing behind
		requireLedger(ctx, t, applier, shards[0].Schema, allPerShard[:1])
		snapshot := db.QuerySchema(ctx, t, shards[0].Schema)
		items, ok := snapshot.FindTable("items")
		require.True(t, ok)
		_, ok = items.FindColumn("size")
		require.False(t, ok)

		// re-running with a fixed migration completes
		defs[3].Up = good
		catalog, err = migrate.NewCatalog(defs...)
		require.NoError(t, err)

		applier = migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, catalog, db.Config())
		report, err = applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)
		require.NoError(t, report.Err())
		requireLedger(ctx, t, applier, shards[0].Schema, allPerShard)
	})
}

func TestRunShardIsolation(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards := db.CreateShards(ctx, t, 3)

		// shard 1 already has a conflicting table
		db.Exec(ctx, t, shards[1], `CREATE TABLE {{vnode}}.items (id INTEGER PRIMARY KEY, name TEXT NOT NULL, size INTEGER)`)

		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, testCatalog(t), db.Config())
		report, err := applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)
		require.Error(t, report.Err())

		require.Len(t, report.Failures, 1)
		failure := report.Failures[0]
		require.Equal(t, migrate.PerShard, failure.Scope)
		require.Equal(t, 1, failure.Shard)
		require.Equal(t, shards[1].Schema, failure.Schema)
		require.Equal(t, migrate.Version{Major: 1, Minor: 0}, failure.Version)
		require.Equal(t, 2, report.Count(migrate.Blocked))

		requireLedger(ctx, t, applier, shards[0].Schema, allPerShard)
		requireLedger(ctx, t, applier, shards[1].Schema, nil)
		requireLedger(ctx, t, applier, shards[2].Schema, allPerShard)

		// after fixing the shard a new run catches up
		db.Exec(ctx, t, shards[1], `DROP TABLE {{vnode}}.items`)

		report, err = applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)
		require.NoError(t, report.Err())
		require.Equal(t, 3, report.Count(migrate.Applied))

		for _, shard := range shards {
			requireLedger(ctx, t, applier, shard.Schema, allPerShard)
		}
	})
}

func TestRunSharedFailureBlocksShards(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards := db.CreateShards(ctx, t, 2)

		_, err := db.DB.ExecContext(ctx, `CREATE TABLE `+dbutil.QuoteIdentifier(db.Shared, "registry")+` (id INTEGER)`)
		require.NoError(t, err)

		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, testCatalog(t), db.Config())
		report, err := applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)
		require.Len(t, report.Failures, 1)
		require.Equal(t, migrate.Shared, report.Failures[0].Scope)
		require.Equal(t, 1+2*3, report.Count(migrate.Blocked))

		for _, shard := range shards {
			requireLedger(ctx, t, applier, shard.Schema, nil)
		}
	})
}

func TestRunZeroShards(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, testCatalog(t), db.Config())

		report, err := applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)
		require.NoError(t, report.Err())
		require.Equal(t, 2, report.Count(migrate.Applied))
		require.Len(t, report.Outcomes, 2)

		requireLedger(ctx, t, applier, db.Shared, allShared)
	})
}

func TestRunConcurrent(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards := db.CreateShards(ctx, t, 3)
		catalog := testCatalog(t)

		const runners = 4
		reports := make([]*migrate.Report, runners)
		var group errgroup.Group
		for i := range reports {
			applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, catalog, db.Config())
			group.Go(func() (err error) {
				reports[i], err = applier.Run(ctx, migrate.Targets{})
				return err
			})
		}
		require.NoError(t, group.Wait())

		applied := 0
		for _, report := range reports {
			require.NoError(t, report.Err())
			applied += report.Count(migrate.Applied)
		}
		// every migration ran exactly once on every schema
		require.Equal(t, 2+3*3, applied)

		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, catalog, db.Config())
		requireLedger(ctx, t, applier, db.Shared, allShared)
		for _, shard := range shards {
			requireLedger(ctx, t, applier, shard.Schema, allPerShard)
		}
	})
}

func TestDowngradeRoundTrip(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards := db.CreateShards(ctx, t, 2)
		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, testCatalog(t), db.Config())

		_, err := applier.Run(ctx, migrate.Targets{PerShard: &migrate.Version{Major: 1, Minor: 0}})
		require.NoError(t, err)

		before := map[string]*dbschema.Schema{}
		for _, shard := range shards {
			before[shard.Schema] = db.QuerySchema(ctx, t, shard.Schema)
		}

		report, err := applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)
		require.NoError(t, report.Err())

		report, err = applier.Downgrade(ctx, migrate.Targets{PerShard: &migrate.Version{Major: 1, Minor: 0}})
		require.NoError(t, err)
		require.NoError(t, report.Err())
		require.Equal(t, 2*2, report.Count(migrate.Applied))

		for _, shard := range shards {
			requireLedger(ctx, t, applier, shard.Schema, allPerShard[:1])
			require.Equal(t, before[shard.Schema], db.QuerySchema(ctx, t, shard.Schema))
		}
		// shared scope is untouched without a target
		requireLedger(ctx, t, applier, db.Shared, allShared)

		// reverting again is a no-op
		report, err = applier.Downgrade(ctx, migrate.Targets{PerShard: &migrate.Version{Major: 1, Minor: 0}})
		require.NoError(t, err)
		require.Equal(t, 0, report.Count(migrate.Applied))

		report, err = applier.Downgrade(ctx, migrate.Targets{Shared: &migrate.Base, PerShard: &migrate.Base})
		require.NoError(t, err)
		require.NoError(t, report.Err())

		requireLedger(ctx, t, applier, db.Shared, nil)
		for _, shard := range shards {
			requireLedger(ctx, t, applier, shard.Schema, nil)
			snapshot := db.QuerySchema(ctx, t, shard.Schema)
			require.Len(t, snapshot.Tables, 1)
			require.Equal(t, migrate.LedgerTable, snapshot.Tables[0].Name)
		}
	})
}

func TestDowngradeMissingDown(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards := db.CreateShards(ctx, t, 1)

		defs := testDefinitions()
		defs[3].Down = nil
		catalog, err := migrate.NewCatalog(defs...)
		require.NoError(t, err)

		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, catalog, db.Config())
		_, err = applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)

		_, err = applier.Downgrade(ctx, migrate.Targets{PerShard: &migrate.Version{Major: 1, Minor: 0}})
		require.Error(t, err)
		require.True(t, migrate.ErrLoad.Has(err))

		// nothing was reverted, not even 2.0 which has a down migration
		requireLedger(ctx, t, applier, shards[0].Schema, allPerShard)
	})
}

func TestDowngradeShardFailureBlocksShared(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards := db.CreateShards(ctx, t, 2)
		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, testCatalog(t), db.Config())

		_, err := applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)

		db.Exec(ctx, t, shards[1], `DROP TABLE {{vnode}}.tags`)

		report, err := applier.Downgrade(ctx, migrate.Targets{Shared: &migrate.Base, PerShard: &migrate.Base})
		require.NoError(t, err)
		require.Len(t, report.Failures, 1)
		require.Equal(t, 1, report.Failures[0].Shard)

		requireLedger(ctx, t, applier, shards[0].Schema, nil)
		requireLedger(ctx, t, applier, shards[1].Schema, allPerShard)
		requireLedger(ctx, t, applier, db.Shared, allShared)
	})
}

func TestDiscover(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards, err := db.Discover(ctx)
		require.NoError(t, err)
		require.Empty(t, shards)

		for _, index := range []int{2, 10, 0, 1} {
			db.CreateShard(ctx, t, index)
		}
		// neither a shard name nor a representable index
		for _, unrelated := range []string{db.Prefix + "x1", db.Prefix + "99999999999999999999"} {
			if db.Impl == dbutil.SQLite {
				_, err = db.DB.ExecContext(ctx, `ATTACH DATABASE ':memory:' AS `+dbutil.QuoteIdentifier(unrelated))
			} else {
				_, err = db.DB.ExecContext(ctx, `CREATE SCHEMA `+dbutil.QuoteIdentifier(unrelated))
				defer func() {
					_, err := db.DB.ExecContext(ctx, `DROP SCHEMA `+dbutil.QuoteIdentifier(unrelated))
					require.NoError(t, err)
				}()
			}
			require.NoError(t, err)
		}

		shards, err = db.Discover(ctx)
		require.NoError(t, err)

		var indexes []int
		for _, shard := range shards {
			indexes = append(indexes, shard.Index)
		}
		require.Equal(t, []int{0, 1, 2, 10}, indexes)
		require.Equal(t, db.Prefix+"10", shards[3].Schema)

		_, err = migrate.Discoverer{Impl: db.Impl, Prefix: "Bad-Prefix"}.Discover(ctx, db.DB)
		require.True(t, migrate.ErrDiscovery.Has(err))
	})
}

func TestStatus(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		db.CreateShards(ctx, t, 2)
		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, testCatalog(t), db.Config())

		statuses, err := applier.Status(ctx)
		require.NoError(t, err)
		require.Len(t, statuses, 3)
		require.Equal(t, migrate.Shared, statuses[0].Scope)
		require.Equal(t, migrate.Base, statuses[0].Current)
		require.Equal(t, 2, statuses[0].Pending)
		require.Equal(t, 3, statuses[1].Pending)

		_, err = applier.Run(ctx, migrate.Targets{PerShard: &migrate.Version{Major: 1, Minor: 1}})
		require.NoError(t, err)

		statuses, err = applier.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, migrate.Version{Major: 1, Minor: 1}, statuses[0].Current)
		require.Equal(t, 0, statuses[0].Pending)
		for _, status := range statuses[1:] {
			require.Equal(t, migrate.PerShard, status.Scope)
			require.Equal(t, migrate.Version{Major: 1, Minor: 1}, status.Current)
			require.Equal(t, 1, status.Pending)
		}
	})
}

// cancelingDB cancels the run as soon as a statement containing marker executes.
type cancelingDB struct {
	tagsql.DB
	marker string
	cancel context.CancelFunc
}

func (db *cancelingDB) BeginTx(ctx context.Context, txOptions *sql.TxOptions) (tagsql.Tx, error) {
	tx, err := db.DB.BeginTx(ctx, txOptions)
	if err != nil {
		return nil, err
	}
	return &cancelingTx{Tx: tx, db: db}, nil
}

type cancelingTx struct {
	tagsql.Tx
	db *cancelingDB
}

func (tx *cancelingTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	if strings.Contains(query, tx.db.marker) {
		tx.db.cancel()
	}
	return tx.Tx.ExecContext(ctx, query, args...)
}

func TestRunCanceledDuringMigration(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards := db.CreateShards(ctx, t, 1)

		canceled, cancel := context.WithCancel(ctx)
		defer cancel()

		wrapped := &cancelingDB{DB: db.DB, marker: "ADD COLUMN size", cancel: cancel}
		applier := migrate.NewApplier(zaptest.NewLogger(t), wrapped, db.Impl, testCatalog(t), db.Config())

		report, err := applier.Run(canceled, migrate.Targets{})
		require.ErrorIs(t, err, context.Canceled)
		require.NotNil(t, report)
		require.NoError(t, report.Err())

		// the migration in flight committed, the next one never started
		requireLedger(ctx, t, applier, db.Shared, allShared)
		requireLedger(ctx, t, applier, shards[0].Schema, allPerShard[:2])
		items, ok := db.QuerySchema(ctx, t, shards[0].Schema).FindTable("items")
		require.True(t, ok)
		_, ok = items.FindColumn("size")
		require.True(t, ok)
		_, ok = db.QuerySchema(ctx, t, shards[0].Schema).FindTable("tags")
		require.False(t, ok)

		applier = migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, testCatalog(t), db.Config())
		report, err = applier.Run(ctx, migrate.Targets{})
		require.NoError(t, err)
		require.NoError(t, report.Err())
		require.Equal(t, 1, report.Count(migrate.Applied))
		requireLedger(ctx, t, applier, shards[0].Schema, allPerShard)
	})
}

func TestRunCanceled(t *testing.T) {
	migratetest.Run(t, func(ctx *testcontext.Context, t *testing.T, db *migratetest.Database) {
		shards := db.CreateShards(ctx, t, 1)
		applier := migrate.NewApplier(zaptest.NewLogger(t), db.DB, db.Impl, testCatalog(t), db.Config())

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := applier.Run(canceled, migrate.Targets{})
		require.Error(t, err)

		requireLedger(ctx, t, applier, db.Shared, nil)
		requireLedger(ctx, t, applier, shards[0].Schema, nil)
	})
}
