// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/errs"

	"storj.io/mdschema/private/dbutil"
	"storj.io/mdschema/private/tagsql"
)

// Shard is a shard schema found in the database.
type Shard struct {
	Index  int
	Schema string
}

// Discoverer finds the shard schemas of a database.
type Discoverer struct {
	Impl   dbutil.Implementation
	Prefix string
}

// Discover returns the shard schemas present right now, ordered by index.
// Schemas created afterwards are picked up by the next call.
func (discoverer Discoverer) Discover(ctx context.Context, db tagsql.DB) (_ []Shard, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := ValidSchemaName(discoverer.Prefix); err != nil {
		return nil, ErrDiscovery.Wrap(err)
	}
	rxShard := regexp.MustCompile(`^` + regexp.QuoteMeta(discoverer.Prefix) + `(\d{1,9})$`)

	names, err := discoverer.schemaNames(ctx, db)
	if err != nil {
		return nil, ErrDiscovery.Wrap(err)
	}

	var shards []Shard
	for _, name := range names {
		matches := rxShard.FindStringSubmatch(name)
		if matches == nil {
			continue
		}
		index, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		shards = append(shards, Shard{Index: index, Schema: name})
	}

	sort.Slice(shards, func(i, k int) bool {
		if shards[i].Index != shards[k].Index {
			return shards[i].Index < shards[k].Index
		}
		return shards[i].Schema < shards[k].Schema
	})
	return shards, nil
}

func (discoverer Discoverer) schemaNames(ctx context.Context, db tagsql.DB) (names []string, err error) {
	var rows tagsql.Rows
	switch discoverer.Impl {
	case dbutil.Postgres:
		rows, err = db.QueryContext(ctx, `SELECT nspname FROM pg_namespace WHERE nspname LIKE $1`, escapeLike(discoverer.Prefix)+"%")
	case dbutil.SQLite:
		rows, err = db.QueryContext(ctx, `SELECT name FROM pragma_database_list`)
	default:
		return nil, errs.New("unsupported implementation %v", discoverer.Impl)
	}
	if err != nil {
		return nil, err
	}
	defer func() { err = errs.Combine(err, rows.Close()) }()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
