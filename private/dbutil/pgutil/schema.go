// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package pgutil contains utilities for postgres.
package pgutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/zeebo/errs"

	"storj.io/mdschema/private/dbutil"
	"storj.io/mdschema/private/tagsql"
)

// Error is the default error class for pgutil.
var Error = errs.Class("pgutil")

// CreateRandomTestingSchemaName creates a random schema name string, usable
// without quoting.
func CreateRandomTestingSchemaName(n int) string {
	data := make([]byte, n)
	_, _ = rand.Read(data)
	return hex.EncodeToString(data)
}

// CreateSchema creates a schema if it doesn't exist.
func CreateSchema(ctx context.Context, db tagsql.DB, schema string) (err error) {
	for try := 0; try < 5; try++ {
		_, err = db.ExecContext(ctx, `CREATE SCHEMA IF NOT EXISTS `+dbutil.QuoteIdentifier(schema)+`;`)

		// Postgres `CREATE SCHEMA IF NOT EXISTS` may return "duplicate key value violates unique constraint".
		// In that case, we will retry rather than doing anything more complicated.
		//
		// See more in: https://stackoverflow.com/a/29908840/192220
		if IsUniqueViolation(err) || IsDuplicateObject(err) {
			continue
		}
		return Error.Wrap(err)
	}

	return Error.Wrap(err)
}

// DropSchema drops the named schema and everything in it.
func DropSchema(ctx context.Context, db tagsql.DB, schema string) error {
	_, err := db.ExecContext(ctx, `DROP SCHEMA `+dbutil.QuoteIdentifier(schema)+` CASCADE;`)
	return Error.Wrap(err)
}
