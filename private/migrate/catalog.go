// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/zeebo/errs"

	"storj.io/mdschema/private/tagsql"
)

// Definition describes a single migration.
type Definition struct {
	Scope   Scope
	Version Version
	Label   string
	// Note is stored in the ledger alongside the version.
	Note string

	Up   SQL
	Down SQL
}

// String implements fmt.Stringer.
func (def *Definition) String() string {
	return def.Scope.String() + "/" + def.Version.String() + "-" + def.Label
}

// SQL statements that are executed on the database.
type SQL []string

// Run runs the SQL statements.
func (sql SQL) Run(ctx context.Context, tx tagsql.Tx) (err error) {
	for _, query := range sql {
		_, err := tx.ExecContext(ctx, query)
		if err != nil {
			return errs.Wrap(err)
		}
	}
	return nil
}

// Empty returns whether there is nothing to execute.
func (sql SQL) Empty() bool {
	for _, query := range sql {
		if strings.TrimSpace(query) != "" {
			return false
		}
	}
	return true
}

func (sql SQL) contains(s string) bool {
	for _, query := range sql {
		if strings.Contains(query, s) {
			return true
		}
	}
	return false
}

// matches any {{...}} placeholder.
var rxPlaceholder = regexp.MustCompile(`\{\{[^}]*\}\}`)

func (sql SQL) placeholders() []string {
	var found []string
	for _, query := range sql {
		found = append(found, rxPlaceholder.FindAllString(query, -1)...)
	}
	return found
}

// Catalog is the validated, ordered set of migrations.
type Catalog struct {
	scopes map[Scope][]*Definition
}

// NewCatalog validates the definitions and orders them per scope.
func NewCatalog(defs ...*Definition) (*Catalog, error) {
	catalog := &Catalog{scopes: map[Scope][]*Definition{}}

	for _, def := range defs {
		if def == nil {
			return nil, ErrLoad.New("nil definition")
		}
		if err := def.validate(); err != nil {
			return nil, err
		}
		catalog.scopes[def.Scope] = append(catalog.scopes[def.Scope], def)
	}

	for scope, list := range catalog.scopes {
		sort.SliceStable(list, func(i, k int) bool {
			return list[i].Version.Less(list[k].Version)
		})

		for i, def := range list {
			if i == 0 {
				if def.Version.Minor != 0 {
					return nil, ErrLoad.New("%s: first %s migration must have minor version 0", def, scope)
				}
				continue
			}

			prev := list[i-1]
			switch {
			case prev.Version == def.Version:
				return nil, ErrLoad.New("%s: duplicate version, also defined by %s", def, prev)
			case prev.Version.Major != def.Version.Major && def.Version.Minor != 0:
				return nil, ErrLoad.New("%s: minor version must reset to 0 when major version increases", def)
			}
		}
	}

	return catalog, nil
}

func (def *Definition) validate() error {
	switch {
	case def.Scope != Shared && def.Scope != PerShard:
		return ErrLoad.New("%s: unknown scope", def)
	case def.Version.Major < 0 || def.Version.Minor < 0:
		return ErrLoad.New("%s: negative version", def)
	case def.Up.Empty():
		return ErrLoad.New("%s: missing up statements", def)
	}

	for _, placeholder := range append(def.Up.placeholders(), def.Down.placeholders()...) {
		if placeholder != Placeholder {
			return ErrLoad.New("%s: unknown placeholder %s", def, placeholder)
		}
		if def.Scope == Shared {
			return ErrLoad.New("%s: shared migrations must not reference %s", def, Placeholder)
		}
	}

	if def.Scope == PerShard {
		if !def.Up.contains(Placeholder) {
			return ErrLoad.New("%s: up statements must reference %s", def, Placeholder)
		}
		if !def.Down.Empty() && !def.Down.contains(Placeholder) {
			return ErrLoad.New("%s: down statements must reference %s", def, Placeholder)
		}
	}

	return nil
}

// Ascending returns all migrations of the scope in ascending order.
func (catalog *Catalog) Ascending(scope Scope) []*Definition {
	return append([]*Definition(nil), catalog.scopes[scope]...)
}

// Until returns the ascending migrations of the scope up to and including target.
func (catalog *Catalog) Until(scope Scope, target Version) []*Definition {
	var defs []*Definition
	for _, def := range catalog.scopes[scope] {
		if target.Less(def.Version) {
			break
		}
		defs = append(defs, def)
	}
	return defs
}

// Descending returns the migrations of the scope after target, highest first.
func (catalog *Catalog) Descending(scope Scope, target Version) []*Definition {
	var defs []*Definition
	list := catalog.scopes[scope]
	for i := len(list) - 1; i >= 0; i-- {
		if !target.Less(list[i].Version) {
			break
		}
		defs = append(defs, list[i])
	}
	return defs
}

// Latest returns the highest version of the scope.
func (catalog *Catalog) Latest(scope Scope) (Version, bool) {
	list := catalog.scopes[scope]
	if len(list) == 0 {
		return Version{}, false
	}
	return list[len(list)-1].Version, true
}

// Find returns the migration with the specified version.
func (catalog *Catalog) Find(scope Scope, version Version) (*Definition, bool) {
	for _, def := range catalog.scopes[scope] {
		if def.Version == version {
			return def, true
		}
	}
	return nil, false
}

// checkTarget verifies that target is Base or a version known to the catalog.
func (catalog *Catalog) checkTarget(scope Scope, target *Version) error {
	if target == nil || *target == Base {
		return nil
	}
	if _, ok := catalog.Find(scope, *target); !ok {
		return ErrLoad.New("unknown %s target version %s", scope, target)
	}
	return nil
}
