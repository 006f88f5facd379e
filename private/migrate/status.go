// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate

import (
	"context"
)

// SchemaStatus is the migration state of a single schema.
type SchemaStatus struct {
	Scope  Scope
	Schema string
	Shard  int // -1 for the shared schema
	// Current is the highest applied version, Base when nothing was applied.
	Current Version
	// Pending is the number of catalog migrations not applied yet.
	Pending int
}

// Status reports the state of the shared schema and every shard schema.
// It only reads and never creates ledger tables.
func (applier *Applier) Status(ctx context.Context) (_ []SchemaStatus, err error) {
	defer mon.Task()(&ctx)(&err)

	shards, err := applier.Discover(ctx)
	if err != nil {
		return nil, err
	}

	targets := []target{applier.sharedTarget()}
	for _, shard := range shards {
		targets = append(targets, target{scope: PerShard, schema: shard.Schema, shard: shard.Index})
	}

	statuses := make([]SchemaStatus, 0, len(targets))
	for _, target := range targets {
		records, err := applier.Records(ctx, target.schema)
		if err != nil {
			return nil, err
		}

		applied := map[Version]bool{}
		status := SchemaStatus{
			Scope:   target.scope,
			Schema:  target.schema,
			Shard:   target.shard,
			Current: Base,
		}
		for _, record := range records {
			applied[record.Version] = true
			if status.Current.Less(record.Version) {
				status.Current = record.Version
			}
		}
		for _, def := range applier.catalog.Ascending(target.scope) {
			if !applied[def.Version] {
				status.Pending++
			}
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Records returns the ledger of the schema in version order.
func (applier *Applier) Records(ctx context.Context, schema string) (_ []Record, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := ValidSchemaName(schema); err != nil {
		return nil, err
	}

	ledger := ledger{impl: applier.impl, schema: schema}
	exists, err := ledger.exists(ctx, applier.db)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if !exists {
		return nil, nil
	}

	records, err := ledger.records(ctx, applier.db)
	return records, Error.Wrap(err)
}
