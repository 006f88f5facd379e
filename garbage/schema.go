// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package garbage

import (
	"storj.io/mdschema/private/dbutil"
	"storj.io/mdschema/private/migrate"
)

const (
	// BatchTable is the snapshot of deleted objects in the shared schema.
	BatchTable = "garbage_batch"
	// BatchIDTable holds the single row with the current batch identifier.
	BatchIDTable = "garbage_batch_id"
	// DeletedObjectTable is the per-shard table of deleted objects.
	DeletedObjectTable = "manta_bucket_deleted_object"
)

// Definition returns the shared migration creating the garbage batch tables.
// On postgres it also creates the collect_garbage and refresh_garbage_batch
// functions, which do the same as Collector.Collect and Collector.Refresh.
func Definition(impl dbutil.Implementation, version migrate.Version) *migrate.Definition {
	def := &migrate.Definition{
		Scope:   migrate.Shared,
		Version: version,
		Label:   "garbage-batch",
		Note:    "garbage batch",
	}

	if impl != dbutil.Postgres {
		def.Up = migrate.SQL{
			`CREATE TABLE garbage_batch_id (
				id       INTEGER PRIMARY KEY CHECK (id = 1),
				batch_id TEXT NOT NULL
			)`,
			`INSERT INTO garbage_batch_id (id, batch_id) VALUES (1, '00000000-0000-0000-0000-000000000000')`,
			`CREATE TABLE garbage_batch (
				shard_index    INTEGER NOT NULL,
				schema_name    TEXT NOT NULL,
				id             TEXT NOT NULL,
				owner          TEXT NOT NULL,
				bucket_id      TEXT NOT NULL,
				name           TEXT NOT NULL,
				content_length INTEGER NOT NULL,
				created        TIMESTAMP NOT NULL,
				PRIMARY KEY (schema_name, id)
			)`,
		}
		def.Down = migrate.SQL{
			`DROP TABLE garbage_batch`,
			`DROP TABLE garbage_batch_id`,
		}
		return def
	}

	def.Up = migrate.SQL{
		`CREATE TABLE garbage_batch_id (
			id       INTEGER PRIMARY KEY CHECK (id = 1),
			batch_id UUID NOT NULL
		)`,
		`INSERT INTO garbage_batch_id (id, batch_id) VALUES (1, '00000000-0000-0000-0000-000000000000')`,
		`CREATE TABLE garbage_batch (
			shard_index    INTEGER NOT NULL,
			schema_name    TEXT NOT NULL,
			id             UUID NOT NULL,
			owner          UUID NOT NULL,
			bucket_id      UUID NOT NULL,
			name           TEXT NOT NULL,
			content_length BIGINT NOT NULL,
			created        TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (schema_name, id)
		)`,
		`CREATE FUNCTION collect_garbage(lim INTEGER, prefix TEXT DEFAULT 'manta_bucket_')
		RETURNS TABLE (
			shard_index    INTEGER,
			schema_name    TEXT,
			id             UUID,
			owner          UUID,
			bucket_id      UUID,
			name           TEXT,
			content_length BIGINT,
			created        TIMESTAMPTZ
		)
		LANGUAGE plpgsql STABLE
		SET search_path FROM CURRENT
		AS $$
		DECLARE
			shard     RECORD;
			remaining INTEGER := lim;
			fetched   INTEGER;
		BEGIN
			FOR shard IN
				SELECT nspname::TEXT AS schema, substring(nspname FROM length(prefix) + 1)::INTEGER AS idx
				FROM pg_namespace
				WHERE left(nspname, length(prefix)) = prefix
					AND substring(nspname FROM length(prefix) + 1) ~ '^[0-9]{1,9}$'
					AND nspname ~ '^[a-z_][a-z0-9_]*$'
				ORDER BY idx
			LOOP
				EXIT WHEN remaining <= 0;
				CONTINUE WHEN to_regclass(format('%I.manta_bucket_deleted_object', shard.schema)) IS NULL;

				RETURN QUERY EXECUTE format(
					'SELECT $1, $2, id, owner, bucket_id, name, content_length, created
					FROM %I.manta_bucket_deleted_object ORDER BY id LIMIT $3',
					shard.schema
				) USING shard.idx, shard.schema, remaining;

				GET DIAGNOSTICS fetched = ROW_COUNT;
				remaining := remaining - fetched;
			END LOOP;
		END;
		$$`,
		`CREATE FUNCTION refresh_garbage_batch(lim INTEGER, prefix TEXT DEFAULT 'manta_bucket_')
		RETURNS UUID
		LANGUAGE plpgsql
		SET search_path FROM CURRENT
		AS $$
		DECLARE
			next_id UUID := gen_random_uuid();
		BEGIN
			PERFORM 1 FROM garbage_batch_id WHERE garbage_batch_id.id = 1 FOR UPDATE;

			DELETE FROM garbage_batch;
			INSERT INTO garbage_batch (shard_index, schema_name, id, owner, bucket_id, name, content_length, created)
				SELECT * FROM collect_garbage(lim, prefix);

			UPDATE garbage_batch_id SET batch_id = next_id WHERE garbage_batch_id.id = 1;
			RETURN next_id;
		END;
		$$`,
	}
	def.Down = migrate.SQL{
		`DROP FUNCTION refresh_garbage_batch(INTEGER, TEXT)`,
		`DROP FUNCTION collect_garbage(INTEGER, TEXT)`,
		`DROP TABLE garbage_batch`,
		`DROP TABLE garbage_batch_id`,
	}
	return def
}
