// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate

import "storj.io/mdschema/private/dbutil"

// DefaultShardPrefix is the schema name prefix of shard schemas.
const DefaultShardPrefix = "manta_bucket_"

// Config contains configurable values for applying migrations.
type Config struct {
	Parallelism  int    `help:"maximum number of shard schemas migrated concurrently" default:"4"`
	ShardPrefix  string `help:"schema name prefix of shard schemas, followed by the shard index" default:"manta_bucket_"`
	SharedSchema string `help:"schema holding the shared tables and functions, empty means the database default" default:""`
}

// WithDefaults fills in the values left empty.
func (config Config) WithDefaults(impl dbutil.Implementation) Config {
	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}
	if config.ShardPrefix == "" {
		config.ShardPrefix = DefaultShardPrefix
	}
	if config.SharedSchema == "" {
		config.SharedSchema = impl.DefaultSchema()
	}
	return config
}
