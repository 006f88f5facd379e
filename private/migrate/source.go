// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate

import (
	"errors"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// matches 1.0-initial.up.sql; version numbers have no leading zeros.
var rxSourceFile = regexp.MustCompile(`^(0|[1-9]\d{0,8})\.(0|[1-9]\d{0,8})-([a-z0-9][a-z0-9_-]*)\.(up|down)\.sql$`)

// LoadFS loads and validates a catalog from a migration source tree.
//
// The tree has a "shared" and a "vnode" directory, each containing
// <major>.<minor>-<label>.up.sql files with optional matching .down.sql files.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	defs, err := LoadDefinitions(fsys)
	if err != nil {
		return nil, err
	}
	return NewCatalog(defs...)
}

// LoadDefinitions reads the migration definitions from a migration source
// tree without validating them as a whole.
func LoadDefinitions(fsys fs.FS) ([]*Definition, error) {
	root, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, ErrLoad.Wrap(err)
	}
	for _, entry := range root {
		if entry.IsDir() && entry.Name() != Shared.String() && entry.Name() != PerShard.String() {
			return nil, ErrLoad.New("unknown migration directory %q", entry.Name())
		}
	}

	var defs []*Definition
	for _, scope := range []Scope{Shared, PerShard} {
		scoped, err := loadScope(fsys, scope)
		if err != nil {
			return nil, err
		}
		defs = append(defs, scoped...)
	}
	return defs, nil
}

func loadScope(fsys fs.FS, scope Scope) ([]*Definition, error) {
	dir := scope.String()

	entries, err := fs.ReadDir(fsys, dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ErrLoad.Wrap(err)
	}

	byVersion := map[Version]*Definition{}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			return nil, ErrLoad.New("unexpected directory %q", path.Join(dir, name))
		}
		if path.Ext(name) != ".sql" {
			continue
		}

		matches := rxSourceFile.FindStringSubmatch(name)
		if matches == nil {
			return nil, ErrLoad.New("invalid migration file name %q", path.Join(dir, name))
		}
		major, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, ErrLoad.New("invalid major version in %q", path.Join(dir, name))
		}
		minor, err := strconv.Atoi(matches[2])
		if err != nil {
			return nil, ErrLoad.New("invalid minor version in %q", path.Join(dir, name))
		}
		version := Version{Major: major, Minor: minor}
		label := matches[3]

		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, ErrLoad.Wrap(err)
		}
		if strings.TrimSpace(string(data)) == "" {
			return nil, ErrLoad.New("empty migration file %q", path.Join(dir, name))
		}

		def, ok := byVersion[version]
		if !ok {
			def = &Definition{
				Scope:   scope,
				Version: version,
				Label:   label,
				Note:    strings.NewReplacer("-", " ", "_", " ").Replace(label),
			}
			byVersion[version] = def
		} else if def.Label != label {
			return nil, ErrLoad.New("%s: conflicting labels %q and %q", def, def.Label, label)
		}

		if matches[4] == "up" {
			def.Up = SQL{string(data)}
		} else {
			def.Down = SQL{string(data)}
		}
	}

	defs := make([]*Definition, 0, len(byVersion))
	for _, def := range byVersion {
		if def.Up == nil {
			return nil, ErrLoad.New("%s: down migration without up migration", def)
		}
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, k int) bool {
		return defs[i].Version.Less(defs[k].Version)
	})
	return defs, nil
}
