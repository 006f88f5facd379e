// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package pgutil

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorCode returns the error code associated with any postgres error in the chain of
// errors walked by unwrapping. It returns an empty string when there is none.
func ErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsConstraintError checks if given error is about constraint violation.
func IsConstraintError(err error) bool {
	return pgerrcode.IsIntegrityConstraintViolation(ErrorCode(err))
}

// IsUniqueViolation checks whether the error is a unique or primary key violation.
func IsUniqueViolation(err error) bool {
	return ErrorCode(err) == pgerrcode.UniqueViolation
}

// IsDuplicateObject checks whether the error complains about creating a
// relation, schema or other object that already exists.
func IsDuplicateObject(err error) bool {
	switch ErrorCode(err) {
	case pgerrcode.DuplicateTable, pgerrcode.DuplicateSchema, pgerrcode.DuplicateObject:
		return true
	}
	return false
}

// NeedsRetry checks whether the transaction that failed with err can be
// restarted from the beginning.
func NeedsRetry(err error) bool {
	switch ErrorCode(err) {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true
	}
	return false
}
