// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil

import (
	"strings"

	"github.com/zeebo/errs"
)

// Error is the default error class for dbutil.
var Error = errs.Class("dbutil")

// SplitConnStr returns the driver name, data source and implementation for
// the given connection string.
//
// Postgres connection strings are handed to the driver unchanged, sqlite ones
// have their scheme stripped, e.g. "sqlite://:memory:" becomes ":memory:".
func SplitConnStr(s string) (driver, source string, impl Implementation, err error) {
	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return "", "", Unknown, Error.New("database connection string must contain a scheme: %q", s)
	}

	impl = ImplementationForScheme(scheme)
	switch impl {
	case Postgres:
		return impl.DriverName(), s, impl, nil
	case SQLite:
		if rest == "" {
			return "", "", Unknown, Error.New("sqlite connection string is missing a path: %q", s)
		}
		return impl.DriverName(), rest, impl, nil
	default:
		return "", "", Unknown, Error.New("unsupported database scheme %q", scheme)
	}
}
