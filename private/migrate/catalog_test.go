// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"storj.io/mdschema/private/migrate"
)

func shared(major, minor int, up string) *migrate.Definition {
	return &migrate.Definition{
		Scope:   migrate.Shared,
		Version: migrate.Version{Major: major, Minor: minor},
		Label:   "shared",
		Up:      migrate.SQL{up},
	}
}

func vnode(major, minor int, up, down string) *migrate.Definition {
	def := &migrate.Definition{
		Scope:   migrate.PerShard,
		Version: migrate.Version{Major: major, Minor: minor},
		Label:   "vnode",
		Up:      migrate.SQL{up},
	}
	if down != "" {
		def.Down = migrate.SQL{down}
	}
	return def
}

func TestCatalogOrder(t *testing.T) {
	catalog, err := migrate.NewCatalog(
		vnode(2, 0, "CREATE TABLE {{vnode}}.c (id INTEGER)", ""),
		vnode(1, 1, "CREATE TABLE {{vnode}}.b (id INTEGER)", ""),
		shared(1, 0, "CREATE TABLE s (id INTEGER)"),
		vnode(1, 0, "CREATE TABLE {{vnode}}.a (id INTEGER)", ""),
		vnode(2, 1, "CREATE TABLE {{vnode}}.d (id INTEGER)", ""),
	)
	require.NoError(t, err)

	versions := func(defs []*migrate.Definition) []migrate.Version {
		var versions []migrate.Version
		for _, def := range defs {
			versions = append(versions, def.Version)
		}
		return versions
	}

	require.Equal(t, []migrate.Version{{1, 0}, {1, 1}, {2, 0}, {2, 1}}, versions(catalog.Ascending(migrate.PerShard)))
	require.Equal(t, []migrate.Version{{1, 0}}, versions(catalog.Ascending(migrate.Shared)))
	require.Equal(t, []migrate.Version{{1, 0}, {1, 1}}, versions(catalog.Until(migrate.PerShard, migrate.Version{1, 1})))
	require.Equal(t, []migrate.Version{{2, 1}, {2, 0}}, versions(catalog.Descending(migrate.PerShard, migrate.Version{1, 1})))
	require.Equal(t, []migrate.Version{{2, 1}, {2, 0}, {1, 1}, {1, 0}}, versions(catalog.Descending(migrate.PerShard, migrate.Base)))
	require.Empty(t, catalog.Until(migrate.PerShard, migrate.Base))

	latest, ok := catalog.Latest(migrate.PerShard)
	require.True(t, ok)
	require.Equal(t, migrate.Version{2, 1}, latest)

	// sequences are restartable
	first := catalog.Ascending(migrate.PerShard)
	first[0] = nil
	require.NotNil(t, catalog.Ascending(migrate.PerShard)[0])

	empty, err := migrate.NewCatalog()
	require.NoError(t, err)
	_, ok = empty.Latest(migrate.Shared)
	require.False(t, ok)
	require.Empty(t, empty.Ascending(migrate.PerShard))
}

func TestCatalogValidation(t *testing.T) {
	for _, tt := range []struct {
		name string
		defs []*migrate.Definition
	}{
		{"duplicate", []*migrate.Definition{
			vnode(1, 0, "CREATE TABLE {{vnode}}.a (id INTEGER)", ""),
			vnode(1, 0, "CREATE TABLE {{vnode}}.b (id INTEGER)", ""),
		}},
		{"first minor not zero", []*migrate.Definition{
			shared(1, 1, "CREATE TABLE a (id INTEGER)"),
		}},
		{"minor not reset", []*migrate.Definition{
			shared(1, 0, "CREATE TABLE a (id INTEGER)"),
			shared(2, 1, "CREATE TABLE b (id INTEGER)"),
		}},
		{"vnode without placeholder", []*migrate.Definition{
			vnode(1, 0, "CREATE TABLE a (id INTEGER)", ""),
		}},
		{"vnode down without placeholder", []*migrate.Definition{
			vnode(1, 0, "CREATE TABLE {{vnode}}.a (id INTEGER)", "DROP TABLE a"),
		}},
		{"shared with placeholder", []*migrate.Definition{
			shared(1, 0, "CREATE TABLE {{vnode}}.a (id INTEGER)"),
		}},
		{"unknown placeholder", []*migrate.Definition{
			vnode(1, 0, "CREATE TABLE {{vnode}}.a (id INTEGER); CREATE TABLE {{shard}}.b (id INTEGER)", ""),
		}},
		{"empty up", []*migrate.Definition{
			shared(1, 0, "  "),
		}},
		{"unknown scope", []*migrate.Definition{
			{Scope: migrate.Scope(7), Up: migrate.SQL{"SELECT 1"}},
		}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := migrate.NewCatalog(tt.defs...)
			require.Error(t, err)
			require.True(t, migrate.ErrLoad.Has(err), err)
		})
	}

	// the same version in different scopes is fine
	_, err := migrate.NewCatalog(
		shared(1, 0, "CREATE TABLE a (id INTEGER)"),
		vnode(1, 0, "CREATE TABLE {{vnode}}.a (id INTEGER)", "DROP TABLE {{vnode}}.a"),
	)
	require.NoError(t, err)
}

func TestVersion(t *testing.T) {
	v, err := migrate.ParseVersion("2.10")
	require.NoError(t, err)
	require.Equal(t, migrate.Version{Major: 2, Minor: 10}, v)
	require.Equal(t, "2.10", v.String())

	base, err := migrate.ParseVersion("base")
	require.NoError(t, err)
	require.Equal(t, migrate.Base, base)
	require.True(t, base.Less(migrate.Version{}))

	for _, bad := range []string{"", "1", "1.", ".1", "a.b", "-1.0", "1.-1"} {
		_, err := migrate.ParseVersion(bad)
		require.Error(t, err, bad)
	}

	require.True(t, migrate.Version{1, 9}.Less(migrate.Version{2, 0}))
	require.True(t, migrate.Version{2, 0}.Less(migrate.Version{2, 1}))
	require.False(t, migrate.Version{2, 1}.Less(migrate.Version{2, 1}))
	require.Equal(t, 0, migrate.Version{2, 1}.Compare(migrate.Version{2, 1}))
}
