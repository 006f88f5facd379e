// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package sqliteutil contains utilities for the sqlite dialect.
package sqliteutil

import (
	"errors"

	"github.com/zeebo/errs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Error is the default sqliteutil errs class.
var Error = errs.Class("sqliteutil")

// ErrorCode returns the extended sqlite result code, or 0 when err is not a sqlite error.
func ErrorCode(err error) int {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code()
	}
	return 0
}

// IsConstraintError checks if given error is about constraint violation.
func IsConstraintError(err error) bool {
	code := ErrorCode(err)
	return code&0xff == sqlite3.SQLITE_CONSTRAINT
}

// IsUniqueViolation checks whether err is a unique or primary key violation.
func IsUniqueViolation(err error) bool {
	switch ErrorCode(err) {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// IsBusy checks whether err means the database was locked by another connection.
func IsBusy(err error) bool {
	switch ErrorCode(err) & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}
