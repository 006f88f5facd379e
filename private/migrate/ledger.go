// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate

import (
	"context"
	"time"

	"github.com/zeebo/errs"

	"storj.io/mdschema/private/dbutil"
	"storj.io/mdschema/private/dbutil/txutil"
	"storj.io/mdschema/private/tagsql"
)

// LedgerTable is the name of the table recording applied migrations in each schema.
const LedgerTable = "schema_version"

// Record is an applied migration.
type Record struct {
	Version   Version
	AppliedAt time.Time
	Note      string
}

// ledger is the version table of a single schema.
type ledger struct {
	impl   dbutil.Implementation
	schema string
}

func (ledger ledger) table() string {
	return dbutil.QuoteIdentifier(ledger.schema, LedgerTable)
}

func (ledger ledger) rebind(query string) string {
	return dbutil.Rebind(ledger.impl, query)
}

// ensure creates the ledger table when it does not exist yet.
func (ledger ledger) ensure(ctx context.Context, db tagsql.DB) error {
	timestamp := "TIMESTAMPTZ"
	if ledger.impl == dbutil.SQLite {
		timestamp = "TIMESTAMP"
	}

	err := txutil.WithTx(ctx, db, nil, func(ctx context.Context, tx tagsql.Tx) error {
		_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+ledger.table()+` (
			major      INTEGER NOT NULL,
			minor      INTEGER NOT NULL,
			applied_at `+timestamp+` NOT NULL,
			note       TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (major, minor)
		)`)
		return err
	})
	// concurrent creation in postgres can collide on the catalog
	if isUniqueViolation(ledger.impl, err) || isDuplicateObject(ledger.impl, err) {
		return nil
	}
	return err
}

// exists checks for the ledger table without creating it.
func (ledger ledger) exists(ctx context.Context, db tagsql.DB) (bool, error) {
	var count int
	var err error
	switch ledger.impl {
	case dbutil.SQLite:
		err = db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM `+dbutil.QuoteIdentifier(ledger.schema)+`.sqlite_master
			WHERE type = 'table' AND name = ?
		`, LedgerTable).Scan(&count)
	default:
		err = db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		`, ledger.schema, LedgerTable).Scan(&count)
	}
	return count > 0, err
}

// lock serializes concurrent guards on the same schema until the transaction ends.
// SQLite allows a single writer, so it needs no explicit lock.
func (ledger ledger) lock(ctx context.Context, tx tagsql.Tx) error {
	if ledger.impl != dbutil.Postgres {
		return nil
	}
	_, err := tx.ExecContext(ctx, `LOCK TABLE `+ledger.table()+` IN SHARE ROW EXCLUSIVE MODE`)
	return err
}

func (ledger ledger) has(ctx context.Context, tx tagsql.Tx, version Version) (bool, error) {
	var count int
	err := tx.QueryRowContext(ctx, ledger.rebind(`
		SELECT COUNT(*) FROM `+ledger.table()+` WHERE major = ? AND minor = ?
	`), version.Major, version.Minor).Scan(&count)
	return count > 0, err
}

func (ledger ledger) insert(ctx context.Context, tx tagsql.Tx, version Version, note string) error {
	_, err := tx.ExecContext(ctx, ledger.rebind(`
		INSERT INTO `+ledger.table()+` (major, minor, applied_at, note) VALUES (?, ?, ?, ?)
	`), version.Major, version.Minor, time.Now().UTC(), note)
	if isUniqueViolation(ledger.impl, err) {
		return errLedgerConflict
	}
	return err
}

func (ledger ledger) remove(ctx context.Context, tx tagsql.Tx, version Version) error {
	result, err := tx.ExecContext(ctx, ledger.rebind(`
		DELETE FROM `+ledger.table()+` WHERE major = ? AND minor = ?
	`), version.Major, version.Minor)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errLedgerConflict
	}
	return nil
}

func (ledger ledger) records(ctx context.Context, db tagsql.DB) (records []Record, err error) {
	rows, err := db.QueryContext(ctx, `
		SELECT major, minor, applied_at, note FROM `+ledger.table()+` ORDER BY major, minor
	`)
	if err != nil {
		return nil, err
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	for rows.Next() {
		var record Record
		err := rows.Scan(&record.Version.Major, &record.Version.Minor, &record.AppliedAt, &record.Note)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
