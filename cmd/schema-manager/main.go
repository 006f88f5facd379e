// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver
	"github.com/spacemonkeygo/monkit/v3"
	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // registers the sqlite driver

	"storj.io/common/cfgstruct"
	"storj.io/common/fpath"
	"storj.io/common/process"
	"storj.io/common/uuid"
	"storj.io/mdschema/garbage"
	"storj.io/mdschema/private/dbutil"
	"storj.io/mdschema/private/migrate"
	"storj.io/mdschema/private/tagsql"
	"storj.io/mdschema/schema"
)

var mon = monkit.Package()

// Config is the configuration of the schema manager.
type Config struct {
	Database     string `help:"database connection string, postgres://... or sqlite://... for development" default:""`
	Catalog      string `help:"directory with shared/ and vnode/ migrations, the garbage batch migration is added as shared 1.1; empty uses the built-in migrations" default:""`
	SharedTarget string `help:"shared version to migrate to, empty means latest on run and untouched on downgrade" default:""`
	VnodeTarget  string `help:"vnode version to migrate to, empty means latest on run and untouched on downgrade" default:""`

	Migrate migrate.Config
	Garbage garbage.Config
	Pool    dbutil.PoolConfig
}

var (
	rootCmd = &cobra.Command{
		Use:   "schema-manager",
		Short: "Versioned schema migrations for the buckets metadata database",
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Apply pending migrations to the shared schema and all vnode schemas",
		RunE:  cmdRun,
	}
	downgradeCmd = &cobra.Command{
		Use:   "downgrade",
		Short: "Revert migrations newer than the targets, vnode schemas first",
		RunE:  cmdDowngrade,
	}
	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the version of every schema",
		RunE:  cmdStatus,
	}
	garbageCmd = &cobra.Command{
		Use:   "garbage",
		Short: "Inspect and maintain the garbage batch",
	}
	garbageRefreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild the garbage batch and rotate its id",
		RunE:  cmdGarbageRefresh,
	}
	garbageShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the current garbage batch",
		RunE:  cmdGarbageShow,
	}
	garbageDeleteCmd = &cobra.Command{
		Use:   "delete <batch-id>",
		Short: "Delete the objects of the current garbage batch and refresh it",
		Args:  cobra.ExactArgs(1),
		RunE:  cmdGarbageDelete,
	}

	runCfg  Config
	confDir string
)

func init() {
	defaultConfDir := fpath.ApplicationDir("storj", "schema-manager")
	cfgstruct.SetupFlag(zap.L(), rootCmd, &confDir, "config-dir", defaultConfDir, "main directory for schema-manager configuration")
	defaults := cfgstruct.DefaultsFlag(rootCmd)

	rootCmd.AddCommand(runCmd, downgradeCmd, statusCmd, garbageCmd)
	garbageCmd.AddCommand(garbageRefreshCmd, garbageShowCmd, garbageDeleteCmd)

	for _, cmd := range []*cobra.Command{runCmd, downgradeCmd, statusCmd, garbageRefreshCmd, garbageShowCmd, garbageDeleteCmd} {
		process.Bind(cmd, &runCfg, defaults, cfgstruct.ConfDir(confDir))
	}
}

func main() {
	logger, _, _ := process.NewLogger("schema-manager")
	zap.ReplaceGlobals(logger)

	process.Exec(rootCmd)
}

// openDatabase opens the configured database.
func openDatabase(ctx context.Context, config Config) (tagsql.DB, dbutil.Implementation, error) {
	if config.Database == "" {
		return nil, dbutil.Unknown, errs.New("database connection string is required")
	}

	driver, source, impl, err := dbutil.SplitConnStr(config.Database)
	if err != nil {
		return nil, dbutil.Unknown, err
	}

	db, err := tagsql.Open(ctx, driver, source)
	if err != nil {
		return nil, dbutil.Unknown, err
	}
	dbutil.Configure(db, "schema-manager", config.Pool, mon)
	if impl == dbutil.SQLite {
		// attached vnode databases only exist on the connection that attached them
		db.SetMaxOpenConns(1)
	}
	return db, impl, nil
}

func loadCatalog(config Config) (*migrate.Catalog, error) {
	if config.Catalog == "" {
		return schema.Catalog()
	}
	return schema.Load(os.DirFS(config.Catalog))
}

func parseTargets(config Config) (targets migrate.Targets, err error) {
	if config.SharedTarget != "" {
		version, err := migrate.ParseVersion(config.SharedTarget)
		if err != nil {
			return targets, err
		}
		targets.Shared = &version
	}
	if config.VnodeTarget != "" {
		version, err := migrate.ParseVersion(config.VnodeTarget)
		if err != nil {
			return targets, err
		}
		targets.PerShard = &version
	}
	return targets, nil
}

// withApplier opens the database and catalog and calls fn with an applier.
func withApplier(cmd *cobra.Command, fn func(ctx context.Context, applier *migrate.Applier) error) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	catalog, err := loadCatalog(runCfg)
	if err != nil {
		return err
	}

	db, impl, err := openDatabase(ctx, runCfg)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	return fn(ctx, migrate.NewApplier(log.Named("migrate"), db, impl, catalog, runCfg.Migrate))
}

func cmdRun(cmd *cobra.Command, args []string) (err error) {
	targets, err := parseTargets(runCfg)
	if err != nil {
		return err
	}

	return withApplier(cmd, func(ctx context.Context, applier *migrate.Applier) error {
		report, err := applier.Run(ctx, targets)
		if err != nil {
			return err
		}
		printReport(report)
		return report.Err()
	})
}

func cmdDowngrade(cmd *cobra.Command, args []string) (err error) {
	targets, err := parseTargets(runCfg)
	if err != nil {
		return err
	}
	if targets.Shared == nil && targets.PerShard == nil {
		return errs.New("downgrade needs --shared-target or --vnode-target")
	}

	return withApplier(cmd, func(ctx context.Context, applier *migrate.Applier) error {
		report, err := applier.Downgrade(ctx, targets)
		if err != nil {
			return err
		}
		printReport(report)
		return report.Err()
	})
}

func cmdStatus(cmd *cobra.Command, args []string) (err error) {
	return withApplier(cmd, func(ctx context.Context, applier *migrate.Applier) error {
		statuses, err := applier.Status(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "SCOPE\tSHARD\tSCHEMA\tVERSION\tPENDING")
		for _, status := range statuses {
			shard := "-"
			if status.Shard >= 0 {
				shard = strconv.Itoa(status.Shard)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", status.Scope, shard, status.Schema, status.Current, status.Pending)
		}
		return tw.Flush()
	})
}

func printReport(report *migrate.Report) {
	fmt.Printf("applied: %d, skipped: %d, blocked: %d, failed: %d\n",
		report.Count(migrate.Applied),
		report.Count(migrate.Skipped),
		report.Count(migrate.Blocked),
		report.Count(migrate.Failed))
	for _, failure := range report.Failures {
		fmt.Println(failure.Error())
	}
}

// withCollector opens the database and calls fn with a garbage collector.
func withCollector(cmd *cobra.Command, fn func(ctx context.Context, collector *garbage.Collector) error) (err error) {
	ctx, _ := process.Ctx(cmd)
	log := zap.L()

	db, impl, err := openDatabase(ctx, runCfg)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	return fn(ctx, garbage.NewCollector(log.Named("garbage"), db, impl, runCfg.Migrate, runCfg.Garbage))
}

func cmdGarbageRefresh(cmd *cobra.Command, args []string) (err error) {
	return withCollector(cmd, func(ctx context.Context, collector *garbage.Collector) error {
		batchID, err := collector.Refresh(ctx, 0)
		if err != nil {
			return err
		}
		fmt.Println(batchID)
		return nil
	})
}

func cmdGarbageShow(cmd *cobra.Command, args []string) (err error) {
	return withCollector(cmd, func(ctx context.Context, collector *garbage.Collector) error {
		batch, err := collector.Current(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("batch %s, %d objects\n", batch.ID, len(batch.Rows))
		tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "SHARD\tID\tOWNER\tBUCKET\tNAME\tSIZE")
		for _, row := range batch.Rows {
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n", row.Shard, row.ID, row.Owner, row.BucketID, row.Name, row.ContentLength)
		}
		return tw.Flush()
	})
}

func cmdGarbageDelete(cmd *cobra.Command, args []string) (err error) {
	batchID, err := uuid.FromString(args[0])
	if err != nil {
		return errs.New("invalid batch id %q: %w", args[0], err)
	}

	return withCollector(cmd, func(ctx context.Context, collector *garbage.Collector) error {
		next, err := collector.Delete(ctx, batchID, 0)
		if err != nil {
			return err
		}
		fmt.Println(next)
		return nil
	})
}
