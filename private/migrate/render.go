// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate

import (
	"regexp"
	"strings"

	"storj.io/mdschema/private/dbutil"
)

// Placeholder is replaced with the quoted shard schema name when rendering
// per-shard migrations.
const Placeholder = "{{vnode}}"

// maxIdentifierLength is the postgres NAMEDATALEN limit.
const maxIdentifierLength = 63

var rxSchemaName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidSchemaName checks that name is safe to use as a schema name.
func ValidSchemaName(name string) error {
	if len(name) > maxIdentifierLength || !rxSchemaName.MatchString(name) {
		return Error.New("invalid schema name %q", name)
	}
	return nil
}

// Render returns a copy of def with every placeholder replaced by the quoted
// schema name of shard.
func Render(def *Definition, shard Shard) (*Definition, error) {
	if err := ValidSchemaName(shard.Schema); err != nil {
		return nil, err
	}

	quoted := dbutil.QuoteIdentifier(shard.Schema)
	rendered := *def
	rendered.Up = renderSQL(def.Up, quoted)
	rendered.Down = renderSQL(def.Down, quoted)
	return &rendered, nil
}

func renderSQL(sql SQL, quoted string) SQL {
	if sql == nil {
		return nil
	}
	rendered := make(SQL, len(sql))
	for i, query := range sql {
		rendered[i] = strings.ReplaceAll(query, Placeholder, quoted)
	}
	return rendered
}
