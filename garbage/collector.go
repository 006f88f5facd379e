// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package garbage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"storj.io/common/uuid"
	"storj.io/mdschema/private/dbutil"
	"storj.io/mdschema/private/dbutil/txutil"
	"storj.io/mdschema/private/migrate"
	"storj.io/mdschema/private/tagsql"
)

// Collector builds and consumes garbage batches.
//
// architecture: Service
type Collector struct {
	log    *zap.Logger
	db     tagsql.DB
	impl   dbutil.Implementation
	shards migrate.Config
	config Config
}

// NewCollector creates a new garbage collector. Shard schemas and the shared
// schema are found the same way as the migration applier finds them.
func NewCollector(log *zap.Logger, db tagsql.DB, impl dbutil.Implementation, shards migrate.Config, config Config) *Collector {
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	return &Collector{
		log:    log,
		db:     db,
		impl:   impl,
		shards: shards.WithDefaults(impl),
		config: config,
	}
}

func (collector *Collector) sharedTable(name string) string {
	return dbutil.QuoteIdentifier(collector.shards.SharedSchema, name)
}

func (collector *Collector) rebind(query string) string {
	return dbutil.Rebind(collector.impl, query)
}

func (collector *Collector) limit(limit int) int {
	if limit <= 0 {
		return collector.config.BatchSize
	}
	return limit
}

// discover returns the shards that already have a deleted-object table.
// Shards provisioned after the last migration run are skipped until then.
func (collector *Collector) discover(ctx context.Context) ([]migrate.Shard, error) {
	shards, err := migrate.Discoverer{
		Impl:   collector.impl,
		Prefix: collector.shards.ShardPrefix,
	}.Discover(ctx, collector.db)
	if err != nil {
		return nil, Error.Wrap(err)
	}

	migrated := shards[:0]
	for _, shard := range shards {
		ok, err := collector.hasDeletedObjects(ctx, shard)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		if !ok {
			collector.log.Debug("skipping unmigrated shard", zap.String("schema", shard.Schema))
			continue
		}
		migrated = append(migrated, shard)
	}
	return migrated, nil
}

func (collector *Collector) hasDeletedObjects(ctx context.Context, shard migrate.Shard) (exists bool, err error) {
	switch collector.impl {
	case dbutil.SQLite:
		var count int
		err = collector.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM `+dbutil.QuoteIdentifier(shard.Schema)+`.sqlite_master
			WHERE type = 'table' AND name = ?
		`, DeletedObjectTable).Scan(&count)
		exists = count > 0
	default:
		err = collector.db.QueryRowContext(ctx,
			`SELECT to_regclass($1) IS NOT NULL`,
			dbutil.QuoteIdentifier(shard.Schema, DeletedObjectTable),
		).Scan(&exists)
	}
	return exists, err
}

// Collect returns at most limit deleted objects, walking the shards in index
// order and stopping as soon as the limit is reached.
func (collector *Collector) Collect(ctx context.Context, limit int) (_ []Row, err error) {
	defer mon.Task()(&ctx)(&err)

	limit = collector.limit(limit)
	shards, err := collector.discover(ctx)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for _, shard := range shards {
		remaining := limit - len(rows)
		if remaining <= 0 {
			break
		}

		found, err := collector.collectShard(ctx, shard, remaining)
		if err != nil {
			return nil, Error.Wrap(err)
		}
		rows = append(rows, found...)
	}
	return rows, nil
}

func (collector *Collector) collectShard(ctx context.Context, shard migrate.Shard, limit int) (_ []Row, err error) {
	rows, err := collector.db.QueryContext(ctx, collector.rebind(`
		SELECT id, owner, bucket_id, name, content_length, created
		FROM `+dbutil.QuoteIdentifier(shard.Schema, DeletedObjectTable)+`
		ORDER BY id
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	var found []Row
	for rows.Next() {
		row := Row{Shard: shard.Index, Schema: shard.Schema}
		if err := scanObject(rows, &row); err != nil {
			return nil, err
		}
		found = append(found, row)
	}
	return found, rows.Err()
}

func scanObject(rows tagsql.Rows, row *Row, prefix ...interface{}) error {
	var id, owner, bucketID string
	dest := append(prefix, &id, &owner, &bucketID, &row.Name, &row.ContentLength, &row.Created)
	if err := rows.Scan(dest...); err != nil {
		return err
	}

	var err, group error
	row.ID, err = uuid.FromString(id)
	group = errs.Combine(group, err)
	row.Owner, err = uuid.FromString(owner)
	group = errs.Combine(group, err)
	row.BucketID, err = uuid.FromString(bucketID)
	group = errs.Combine(group, err)
	return group
}

// Refresh replaces the garbage batch with at most limit deleted objects and
// assigns it a new identifier. Readers see either the old or the new batch.
func (collector *Collector) Refresh(ctx context.Context, limit int) (batchID uuid.UUID, err error) {
	defer mon.Task()(&ctx)(&err)

	limit = collector.limit(limit)
	shards, err := collector.discover(ctx)
	if err != nil {
		return uuid.UUID{}, err
	}

	err = txutil.WithTx(ctx, collector.db, nil, func(ctx context.Context, tx tagsql.Tx) error {
		if _, err := collector.lockBatchID(ctx, tx); err != nil {
			return err
		}
		batchID, err = collector.refresh(ctx, tx, shards, limit)
		return err
	})
	if err != nil {
		return uuid.UUID{}, Error.Wrap(err)
	}

	collector.log.Debug("garbage batch refreshed", zap.Stringer("batch", batchID))
	return batchID, nil
}

// lockBatchID returns the current batch identifier, holding its row until the
// transaction ends.
func (collector *Collector) lockBatchID(ctx context.Context, tx tagsql.Tx) (uuid.UUID, error) {
	query := `SELECT batch_id FROM ` + collector.sharedTable(BatchIDTable) + ` WHERE id = 1`
	if collector.impl == dbutil.Postgres {
		query += ` FOR UPDATE`
	}
	return scanBatchID(tx.QueryRowContext(ctx, query))
}

func scanBatchID(row *sql.Row) (uuid.UUID, error) {
	var batchID string
	err := row.Scan(&batchID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.UUID{}, Error.New("garbage batch id not found")
	}
	if err != nil {
		return uuid.UUID{}, err
	}
	return uuid.FromString(batchID)
}

// refresh rebuilds the snapshot from shards and rotates the batch identifier.
func (collector *Collector) refresh(ctx context.Context, tx tagsql.Tx, shards []migrate.Shard, limit int) (uuid.UUID, error) {
	_, err := tx.ExecContext(ctx, `DELETE FROM `+collector.sharedTable(BatchTable))
	if err != nil {
		return uuid.UUID{}, err
	}

	remaining := int64(limit)
	for _, shard := range shards {
		if remaining <= 0 {
			break
		}

		result, err := tx.ExecContext(ctx, collector.rebind(`
			INSERT INTO `+collector.sharedTable(BatchTable)+`
				(shard_index, schema_name, id, owner, bucket_id, name, content_length, created)
			SELECT CAST(? AS INTEGER), CAST(? AS TEXT), id, owner, bucket_id, name, content_length, created
			FROM `+dbutil.QuoteIdentifier(shard.Schema, DeletedObjectTable)+`
			ORDER BY id
			LIMIT ?
		`), shard.Index, shard.Schema, remaining)
		if err != nil {
			return uuid.UUID{}, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return uuid.UUID{}, err
		}
		remaining -= affected
	}

	batchID, err := uuid.New()
	if err != nil {
		return uuid.UUID{}, err
	}
	_, err = tx.ExecContext(ctx, collector.rebind(`
		UPDATE `+collector.sharedTable(BatchIDTable)+` SET batch_id = ? WHERE id = 1
	`), batchID.String())
	if err != nil {
		return uuid.UUID{}, err
	}

	mon.IntVal("garbage_batch_size").Observe(int64(limit) - remaining)
	return batchID, nil
}

// Current returns the current garbage batch.
func (collector *Collector) Current(ctx context.Context) (_ *Batch, err error) {
	defer mon.Task()(&ctx)(&err)

	var txOpts *sql.TxOptions
	if collector.impl == dbutil.Postgres {
		txOpts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}

	var batch *Batch
	err = txutil.WithTx(ctx, collector.db, txOpts, func(ctx context.Context, tx tagsql.Tx) error {
		batchID, err := scanBatchID(tx.QueryRowContext(ctx,
			`SELECT batch_id FROM `+collector.sharedTable(BatchIDTable)+` WHERE id = 1`))
		if err != nil {
			return err
		}

		rows, err := collector.batchRows(ctx, tx)
		if err != nil {
			return err
		}

		batch = &Batch{ID: batchID, Rows: rows}
		return nil
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return batch, nil
}

func (collector *Collector) batchRows(ctx context.Context, tx tagsql.Tx) (_ []Row, err error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT shard_index, schema_name, id, owner, bucket_id, name, content_length, created
		FROM `+collector.sharedTable(BatchTable)+`
		ORDER BY shard_index, id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	var batch []Row
	for rows.Next() {
		var row Row
		if err := scanObject(rows, &row, &row.Shard, &row.Schema); err != nil {
			return nil, err
		}
		batch = append(batch, row)
	}
	return batch, rows.Err()
}

// Delete acknowledges the batch: the listed deleted objects are removed from
// their shards and the batch is refreshed with at most limit new objects, all
// in one transaction. It returns the identifier of the new batch.
//
// ErrStaleBatch is returned when batchID is not the current batch.
func (collector *Collector) Delete(ctx context.Context, batchID uuid.UUID, limit int) (next uuid.UUID, err error) {
	defer mon.Task()(&ctx)(&err)

	limit = collector.limit(limit)
	shards, err := collector.discover(ctx)
	if err != nil {
		return uuid.UUID{}, err
	}

	var deleted int64
	err = txutil.WithTx(ctx, collector.db, nil, func(ctx context.Context, tx tagsql.Tx) error {
		deleted = 0

		current, err := collector.lockBatchID(ctx, tx)
		if err != nil {
			return err
		}
		if current != batchID {
			return ErrStaleBatch.New("batch %s was replaced by %s", batchID, current)
		}

		rows, err := collector.batchRows(ctx, tx)
		if err != nil {
			return err
		}

		for _, row := range rows {
			if err := migrate.ValidSchemaName(row.Schema); err != nil {
				return err
			}
			result, err := tx.ExecContext(ctx, collector.rebind(`
				DELETE FROM `+dbutil.QuoteIdentifier(row.Schema, DeletedObjectTable)+`
				WHERE owner = ? AND bucket_id = ? AND name = ? AND id = ?
			`), row.Owner.String(), row.BucketID.String(), row.Name, row.ID.String())
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			deleted += affected
		}

		next, err = collector.refresh(ctx, tx, shards, limit)
		return err
	})
	if err != nil {
		if ErrStaleBatch.Has(err) {
			return uuid.UUID{}, err
		}
		return uuid.UUID{}, Error.Wrap(err)
	}

	collector.log.Info("garbage batch deleted",
		zap.Stringer("batch", batchID),
		zap.Int64("objects", deleted),
		zap.Stringer("next batch", next))
	return next, nil
}
