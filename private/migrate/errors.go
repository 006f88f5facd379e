// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package migrate evolves the shared schema and every shard schema of a
// sharded metadata database through a catalog of versioned migrations.
package migrate

import (
	"errors"

	"github.com/zeebo/errs"
)

var (
	// Error is the default migrate errs class.
	Error = errs.Class("migrate")
	// ErrLoad is returned when the catalog or its source is invalid. The database is never touched.
	ErrLoad = errs.Class("migration load")
	// ErrDiscovery is returned when the shard schemas cannot be listed.
	ErrDiscovery = errs.Class("shard discovery")
	// ErrGuard is when the ledger could not be checked for a migration.
	ErrGuard = errs.Class("migration guard")
	// ErrExecution is when a migration body or its ledger update failed.
	ErrExecution = errs.Class("migration execution")
)

// errLedgerConflict means a concurrent run recorded the same migration first.
var errLedgerConflict = errors.New("ledger conflict")
