// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate

import (
	"context"
	"errors"

	"github.com/spacemonkeygo/monkit/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storj.io/mdschema/private/dbutil"
	"storj.io/mdschema/private/dbutil/txutil"
	"storj.io/mdschema/private/tagsql"
)

var mon = monkit.Package()

// Applier applies the catalog to the shared schema and all shard schemas.
//
// The ledger tables in the database are the only coordination between
// concurrent appliers, so any number of them may run at the same time and
// any run may be interrupted and repeated.
type Applier struct {
	log     *zap.Logger
	db      tagsql.DB
	impl    dbutil.Implementation
	catalog *Catalog
	config  Config
}

// NewApplier creates a new applier.
func NewApplier(log *zap.Logger, db tagsql.DB, impl dbutil.Implementation, catalog *Catalog, config Config) *Applier {
	return &Applier{
		log:     log,
		db:      db,
		impl:    impl,
		catalog: catalog,
		config:  config.WithDefaults(impl),
	}
}

// target is a schema a migration applies to.
type target struct {
	scope  Scope
	schema string
	shard  int
}

func (target target) outcome(version Version, status Status) Outcome {
	return Outcome{
		Scope:   target.scope,
		Schema:  target.schema,
		Shard:   target.shard,
		Version: version,
		Status:  status,
	}
}

func (applier *Applier) sharedTarget() target {
	return target{scope: Shared, schema: applier.config.SharedSchema, shard: -1}
}

// Discover returns the current shard schemas.
func (applier *Applier) Discover(ctx context.Context) ([]Shard, error) {
	return Discoverer{Impl: applier.impl, Prefix: applier.config.ShardPrefix}.Discover(ctx, applier.db)
}

// Run applies the shared migrations and then the per-shard migrations up to targets.
//
// Per-shard failures do not stop other shards; they are collected in the report.
// The returned error is only set for failures that stop the whole run, such as
// an invalid catalog, failing shard discovery or cancellation.
func (applier *Applier) Run(ctx context.Context, targets Targets) (_ *Report, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := ValidSchemaName(applier.config.SharedSchema); err != nil {
		return nil, ErrLoad.Wrap(err)
	}
	for _, scope := range []Scope{Shared, PerShard} {
		if err := applier.catalog.checkTarget(scope, targets.For(scope)); err != nil {
			return nil, err
		}
	}

	shards, err := applier.Discover(ctx)
	if err != nil {
		return nil, err
	}

	applier.log.Info("applying migrations",
		zap.String("shared schema", applier.config.SharedSchema),
		zap.Int("shards", len(shards)))

	report := &Report{}

	shared := applier.catalog.Ascending(Shared)
	if target := targets.Shared; target != nil {
		shared = applier.catalog.Until(Shared, *target)
	}
	sharedFailed, err := applier.runShared(ctx, shared, up, report)
	if err != nil {
		return report, err
	}

	perShard := applier.catalog.Ascending(PerShard)
	if target := targets.PerShard; target != nil {
		perShard = applier.catalog.Until(PerShard, *target)
	}
	if _, err := applier.runShards(ctx, perShard, shards, up, sharedFailed, report); err != nil {
		return report, err
	}

	applier.log.Info("migrations finished",
		zap.Int("applied", report.Count(Applied)),
		zap.Int("skipped", report.Count(Skipped)),
		zap.Int("blocked", report.Count(Blocked)),
		zap.Int("failed", report.Count(Failed)))

	return report, nil
}

// Downgrade reverts the per-shard migrations and then the shared migrations
// newer than targets. A nil target leaves the scope untouched.
func (applier *Applier) Downgrade(ctx context.Context, targets Targets) (_ *Report, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := ValidSchemaName(applier.config.SharedSchema); err != nil {
		return nil, ErrLoad.Wrap(err)
	}

	plan := map[Scope][]*Definition{}
	for _, scope := range []Scope{PerShard, Shared} {
		target := targets.For(scope)
		if target == nil {
			continue
		}
		if err := applier.catalog.checkTarget(scope, target); err != nil {
			return nil, err
		}
		defs := applier.catalog.Descending(scope, *target)
		for _, def := range defs {
			if def.Down.Empty() {
				return nil, ErrLoad.New("%s: cannot downgrade, no down statements", def)
			}
		}
		plan[scope] = defs
	}

	shards, err := applier.Discover(ctx)
	if err != nil {
		return nil, err
	}

	applier.log.Info("reverting migrations",
		zap.String("shared schema", applier.config.SharedSchema),
		zap.Int("shards", len(shards)))

	report := &Report{}

	shardFailed, err := applier.runShards(ctx, plan[PerShard], shards, down, false, report)
	if err != nil {
		return report, err
	}

	// shared objects may still be used by shards that could not be reverted
	if shardFailed {
		for _, def := range plan[Shared] {
			report.add(applier.sharedTarget().outcome(def.Version, Blocked), nil)
		}
		return report, nil
	}

	if _, err := applier.runShared(ctx, plan[Shared], down, report); err != nil {
		return report, err
	}

	applier.log.Info("downgrade finished",
		zap.Int("reverted", report.Count(Applied)),
		zap.Int("skipped", report.Count(Skipped)),
		zap.Int("blocked", report.Count(Blocked)),
		zap.Int("failed", report.Count(Failed)))

	return report, nil
}

// runShared applies defs in order to the shared schema. After a failure the
// remaining migrations are blocked.
func (applier *Applier) runShared(ctx context.Context, defs []*Definition, dir direction, report *Report) (failed bool, err error) {
	target := applier.sharedTarget()
	for _, def := range defs {
		if failed {
			report.add(target.outcome(def.Version, Blocked), nil)
			continue
		}
		if err := ctx.Err(); err != nil {
			return failed, err
		}

		status, err := applier.apply(ctx, def, target, dir)
		report.add(target.outcome(def.Version, status), err)
		failed = status == Failed
	}
	return failed, nil
}

// runShards applies each of defs to all shards before starting the next one.
// A shard that failed is blocked for the remaining migrations.
func (applier *Applier) runShards(ctx context.Context, defs []*Definition, shards []Shard, dir direction, blockAll bool, report *Report) (failed bool, err error) {
	blocked := make([]bool, len(shards))
	for i := range blocked {
		blocked[i] = blockAll
	}

	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			return failed, err
		}

		var group errgroup.Group
		group.SetLimit(applier.config.Parallelism)

		for i, shard := range shards {
			target := target{scope: PerShard, schema: shard.Schema, shard: shard.Index}
			if blocked[i] {
				report.add(target.outcome(def.Version, Blocked), nil)
				continue
			}

			group.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}

				rendered, err := Render(def, shard)
				if err != nil {
					blocked[i] = true
					report.add(target.outcome(def.Version, Failed), ErrExecution.Wrap(err))
					return nil
				}

				status, err := applier.apply(ctx, rendered, target, dir)
				if status == Failed {
					blocked[i] = true
				}
				report.add(target.outcome(def.Version, status), err)
				return nil
			})
		}

		_ = group.Wait()
	}

	if err := ctx.Err(); err != nil {
		return true, err
	}
	for _, isBlocked := range blocked {
		if isBlocked && !blockAll {
			return true, nil
		}
	}
	return false, nil
}

// apply runs a single migration on a single schema.
func (applier *Applier) apply(ctx context.Context, def *Definition, target target, dir direction) (_ Status, err error) {
	defer mon.Task()(&ctx)(&err)

	log := applier.log.With(
		zap.Stringer("scope", target.scope),
		zap.String("schema", target.schema),
		zap.Stringer("version", def.Version),
		zap.Stringer("direction", dir))

	// transactions must commit or roll back even when ctx is canceled
	txctx := context.WithoutCancel(ctx)

	ledger := ledger{impl: applier.impl, schema: target.schema}
	if err := ledger.ensure(txctx, applier.db); err != nil {
		err = ErrGuard.Wrap(err)
		log.Error("unable to create ledger", zap.Error(err))
		mon.Counter("migration_failed").Inc(1)
		return Failed, err
	}

	body := def.Up
	if dir == down {
		body = def.Down
	}

	status := Skipped
	err = txutil.WithTx(txctx, applier.db, nil, func(ctx context.Context, tx tagsql.Tx) error {
		status = Skipped

		if err := applier.setSearchPath(ctx, tx, target); err != nil {
			return ErrExecution.Wrap(err)
		}

		proceed, err := guard(ctx, tx, ledger, def.Version, dir)
		if err != nil || !proceed {
			return err
		}

		if err := body.Run(ctx, tx); err != nil {
			return ErrExecution.Wrap(err)
		}

		if dir == up {
			err = ledger.insert(ctx, tx, def.Version, def.Note)
		} else {
			err = ledger.remove(ctx, tx, def.Version)
		}
		if err != nil {
			if errors.Is(err, errLedgerConflict) {
				return err
			}
			return ErrExecution.Wrap(err)
		}

		status = Applied
		return nil
	})
	switch {
	case errors.Is(err, errLedgerConflict):
		log.Debug("recorded by a concurrent run")
		mon.Counter("migration_skipped").Inc(1)
		return Skipped, nil
	case err != nil:
		if !ErrGuard.Has(err) && !ErrExecution.Has(err) {
			err = ErrExecution.Wrap(err)
		}
		log.Error("migration failed", zap.Error(err))
		mon.Counter("migration_failed").Inc(1)
		return Failed, err
	case status == Applied:
		log.Info(def.Label)
		mon.Counter("migration_applied").Inc(1)
	default:
		log.Debug("already in place")
		mon.Counter("migration_skipped").Inc(1)
	}
	return status, nil
}

// setSearchPath makes unqualified names resolve to the target schema first.
func (applier *Applier) setSearchPath(ctx context.Context, tx tagsql.Tx, target target) error {
	if applier.impl != dbutil.Postgres {
		return nil
	}

	path := dbutil.QuoteIdentifier(applier.config.SharedSchema)
	if target.scope == PerShard {
		path = dbutil.QuoteIdentifier(target.schema) + ", " + path
	}
	_, err := tx.ExecContext(ctx, `SET LOCAL search_path TO `+path)
	return err
}
