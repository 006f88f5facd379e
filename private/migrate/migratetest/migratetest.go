// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package migratetest runs tests against every supported database implementation.
package migratetest

import (
	"strconv"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // registers the sqlite driver

	"storj.io/common/testcontext"
	"storj.io/mdschema/private/dbutil"
	"storj.io/mdschema/private/dbutil/dbschema"
	"storj.io/mdschema/private/dbutil/pgutil"
	"storj.io/mdschema/private/dbutil/pgutil/pgtest"
	"storj.io/mdschema/private/dbutil/sqliteutil"
	"storj.io/mdschema/private/migrate"
	"storj.io/mdschema/private/tagsql"
)

// Database is a database prepared for a single test.
type Database struct {
	DB     tagsql.DB
	Impl   dbutil.Implementation
	Prefix string
	Shared string
}

// Run runs test against sqlite and, when configured, against postgres.
//
// Every postgres run uses its own shard prefix and shared schema, so tests
// can run in parallel on the same database.
func Run(t *testing.T, test func(ctx *testcontext.Context, t *testing.T, db *Database)) {
	t.Run("sqlite", func(t *testing.T) {
		ctx := testcontext.New(t)
		defer ctx.Cleanup()

		db, err := tagsql.Open(ctx, "sqlite", ":memory:")
		require.NoError(t, err)
		defer ctx.Check(db.Close)

		// attached databases only exist on the connection that attached them
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		test(ctx, t, &Database{
			DB:     db,
			Impl:   dbutil.SQLite,
			Prefix: migrate.DefaultShardPrefix,
			Shared: dbutil.SQLite.DefaultSchema(),
		})
	})

	t.Run("postgres", func(t *testing.T) {
		connstr := pgtest.PickPostgres(t)

		ctx := testcontext.New(t)
		defer ctx.Cleanup()

		db, err := tagsql.Open(ctx, "pgx", connstr)
		require.NoError(t, err)
		defer ctx.Check(db.Close)

		unique := "t" + pgutil.CreateRandomTestingSchemaName(6)
		database := &Database{
			DB:     db,
			Impl:   dbutil.Postgres,
			Prefix: unique + "_shard_",
			Shared: unique + "_shared",
		}
		require.NoError(t, pgutil.CreateSchema(ctx, db, database.Shared))
		defer func() {
			shards, err := database.Discover(ctx)
			require.NoError(t, err)
			for _, shard := range shards {
				require.NoError(t, pgutil.DropSchema(ctx, db, shard.Schema))
			}
			require.NoError(t, pgutil.DropSchema(ctx, db, database.Shared))
		}()

		test(ctx, t, database)
	})
}

// Config returns an applier configuration for the database.
func (db *Database) Config() migrate.Config {
	return migrate.Config{
		Parallelism:  4,
		ShardPrefix:  db.Prefix,
		SharedSchema: db.Shared,
	}
}

// Discover lists the shard schemas of the database.
func (db *Database) Discover(ctx *testcontext.Context) ([]migrate.Shard, error) {
	return migrate.Discoverer{Impl: db.Impl, Prefix: db.Prefix}.Discover(ctx, db.DB)
}

// CreateShard creates an empty shard schema with the specified index.
func (db *Database) CreateShard(ctx *testcontext.Context, t testing.TB, index int) migrate.Shard {
	shard := migrate.Shard{Index: index, Schema: db.Prefix + strconv.Itoa(index)}

	switch db.Impl {
	case dbutil.SQLite:
		_, err := db.DB.ExecContext(ctx, `ATTACH DATABASE ':memory:' AS `+dbutil.QuoteIdentifier(shard.Schema))
		require.NoError(t, err)
	default:
		require.NoError(t, pgutil.CreateSchema(ctx, db.DB, shard.Schema))
	}
	return shard
}

// CreateShards creates shard schemas with the indexes 0 to n-1.
func (db *Database) CreateShards(ctx *testcontext.Context, t testing.TB, n int) []migrate.Shard {
	shards := make([]migrate.Shard, 0, n)
	for i := 0; i < n; i++ {
		shards = append(shards, db.CreateShard(ctx, t, i))
	}
	return shards
}

// QuerySchema loads the structure of the named schema.
func (db *Database) QuerySchema(ctx *testcontext.Context, t testing.TB, schema string) *dbschema.Schema {
	var snapshot *dbschema.Schema
	var err error
	switch db.Impl {
	case dbutil.SQLite:
		snapshot, err = sqliteutil.QuerySchema(ctx, db.DB, schema)
	default:
		snapshot, err = pgutil.QuerySchema(ctx, db.DB, schema)
	}
	require.NoError(t, err)
	return snapshot
}

// Exec runs a statement, replacing the placeholder with the quoted schema of shard.
func (db *Database) Exec(ctx *testcontext.Context, t testing.TB, shard migrate.Shard, query string) {
	def, err := migrate.Render(&migrate.Definition{Up: migrate.SQL{query}}, shard)
	require.NoError(t, err)
	_, err = db.DB.ExecContext(ctx, def.Up[0])
	require.NoError(t, err)
}
