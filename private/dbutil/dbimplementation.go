// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil

// Implementation type of valid DBs.
type Implementation int

const (
	// Unknown is an unknown db type.
	Unknown Implementation = iota
	// Postgres is a Postgresdb type.
	Postgres
	// SQLite is a sqlite type, used for development and tests.
	SQLite
)

// ImplementationForScheme returns the Implementation that is used for
// the url with the provided scheme.
func ImplementationForScheme(scheme string) Implementation {
	switch scheme {
	case "pgx", "postgres", "postgresql":
		return Postgres
	case "sqlite", "sqlite3", "file":
		return SQLite
	default:
		return Unknown
	}
}

// String returns the default name for a given implementation.
func (impl Implementation) String() string {
	switch impl {
	case Postgres:
		return "postgres"
	case SQLite:
		return "sqlite"
	default:
		return "<unknown>"
	}
}

// DefaultSchema returns the schema unqualified names resolve to.
func (impl Implementation) DefaultSchema() string {
	switch impl {
	case Postgres:
		return "public"
	case SQLite:
		return "main"
	default:
		return ""
	}
}

// DriverName returns the database/sql driver registered for the implementation.
func (impl Implementation) DriverName() string {
	switch impl {
	case Postgres:
		return "pgx"
	case SQLite:
		return "sqlite"
	default:
		return ""
	}
}
