// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate

import (
	"context"

	"storj.io/mdschema/private/dbutil"
	"storj.io/mdschema/private/dbutil/pgutil"
	"storj.io/mdschema/private/dbutil/sqliteutil"
	"storj.io/mdschema/private/tagsql"
)

// direction is whether a migration is applied or reverted.
type direction int

const (
	up direction = iota
	down
)

func (dir direction) String() string {
	if dir == down {
		return "down"
	}
	return "up"
}

// guard decides inside the migration transaction whether the body should run.
// Upgrades run when the ledger row is absent, downgrades when it is present.
//
// The ledger is read in the same transaction that runs the body, so the
// decision is never based on a cached or stale view.
func guard(ctx context.Context, tx tagsql.Tx, ledger ledger, version Version, dir direction) (proceed bool, err error) {
	if err := ledger.lock(ctx, tx); err != nil {
		return false, ErrGuard.Wrap(err)
	}

	present, err := ledger.has(ctx, tx, version)
	if err != nil {
		return false, ErrGuard.Wrap(err)
	}

	if dir == down {
		return present, nil
	}
	return !present, nil
}

func isUniqueViolation(impl dbutil.Implementation, err error) bool {
	if err == nil {
		return false
	}
	if impl == dbutil.SQLite {
		return sqliteutil.IsUniqueViolation(err)
	}
	return pgutil.IsUniqueViolation(err)
}

func isDuplicateObject(impl dbutil.Implementation, err error) bool {
	if err == nil || impl == dbutil.SQLite {
		return false
	}
	return pgutil.IsDuplicateObject(err)
}
