// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil

import (
	"github.com/jackc/pgx/v5"
)

// QuoteIdentifier quotes an identifier, joining the parts with dots, so that
// it can be embedded into a statement. Both postgres and sqlite accept the
// double quoted form.
func QuoteIdentifier(parts ...string) string {
	return pgx.Identifier(parts).Sanitize()
}
