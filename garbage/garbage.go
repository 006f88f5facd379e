// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package garbage materializes bounded batches of deleted objects from all
// shard schemas into the shared schema, for consumption by the garbage
// collector.
package garbage

import (
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"

	"storj.io/common/uuid"
)

var (
	mon = monkit.Package()

	// Error is the default garbage errs class.
	Error = errs.Class("garbage")

	// ErrStaleBatch is returned when a batch is acknowledged after it was replaced.
	ErrStaleBatch = errs.Class("stale garbage batch")
)

// Config contains configurable values for garbage batches.
type Config struct {
	BatchSize int `help:"maximum number of deleted objects in a garbage batch" default:"1000"`
}

// Row is a deleted object waiting for collection.
type Row struct {
	Shard         int
	Schema        string
	ID            uuid.UUID
	Owner         uuid.UUID
	BucketID      uuid.UUID
	Name          string
	ContentLength int64
	Created       time.Time
}

// Batch is the materialized garbage snapshot with its identifier.
type Batch struct {
	ID   uuid.UUID
	Rows []Row
}
