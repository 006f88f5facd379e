// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package dbutil

import (
	"strconv"
)

// Rebind converts `?` placeholders into the form expected by the
// implementation. Placeholders inside quoted strings and identifiers are kept.
func Rebind(impl Implementation, query string) string {
	if impl != Postgres {
		return query
	}

	out := make([]byte, 0, len(query)+10)

	j := 1
	var quote byte
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '?':
			out = append(out, '$')
			out = append(out, strconv.Itoa(j)...)
			j++
			continue
		}
		out = append(out, ch)
	}

	return string(out)
}
