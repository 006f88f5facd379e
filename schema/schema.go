// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package schema contains the migrations of the buckets metadata database.
package schema

import (
	"embed"
	"io/fs"

	"storj.io/mdschema/garbage"
	"storj.io/mdschema/private/dbutil"
	"storj.io/mdschema/private/migrate"
)

//go:embed migrations
var migrations embed.FS

// GarbageVersion is the shared version creating the garbage batch tables.
var GarbageVersion = migrate.Version{Major: 1, Minor: 1}

// Source returns the migration source tree.
func Source() fs.FS {
	source, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return source
}

// Definitions returns all migrations of the metadata database.
func Definitions() ([]*migrate.Definition, error) {
	return LoadDefinitions(Source())
}

// LoadDefinitions reads the migrations of source and adds the garbage batch
// migration at GarbageVersion. Source must provide shared 1.0 and must not
// provide its own shared GarbageVersion.
func LoadDefinitions(source fs.FS) ([]*migrate.Definition, error) {
	defs, err := migrate.LoadDefinitions(source)
	if err != nil {
		return nil, err
	}
	return append(defs, garbage.Definition(dbutil.Postgres, GarbageVersion)), nil
}

// Catalog returns the validated catalog of the metadata database.
func Catalog() (*migrate.Catalog, error) {
	return Load(Source())
}

// Load returns the validated catalog of source together with the garbage
// batch migration.
func Load(source fs.FS) (*migrate.Catalog, error) {
	defs, err := LoadDefinitions(source)
	if err != nil {
		return nil, err
	}
	return migrate.NewCatalog(defs...)
}
