// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil

import (
	"time"

	"github.com/spacemonkeygo/monkit/v3"

	"storj.io/mdschema/private/tagsql"
)

// PoolConfig bounds the connections opened towards the database.
type PoolConfig struct {
	MaxIdleConns    int           `help:"maximum number of idle database connections, -1 means the stdlib default" default:"4"`
	MaxOpenConns    int           `help:"maximum number of open database connections, -1 means the stdlib default" default:"8"`
	ConnMaxLifetime time.Duration `help:"maximum database connection lifetime, -1 means the stdlib default" default:"30m"`
}

// Configure sets connection boundaries and adds db_stats monitoring to monkit.
func Configure(db tagsql.DB, dbName string, config PoolConfig, mon *monkit.Scope) {
	if config.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.MaxOpenConns >= 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.ConnMaxLifetime >= 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	mon.Chain(monkit.StatSourceFunc(
		func(cb func(key monkit.SeriesKey, field string, val float64)) {
			key := monkit.NewSeriesKey("db_stats").WithTag("db_name", dbName)
			monkit.StatSourceFromStruct(key, db.Stats()).Stats(cb)
		}))
}
