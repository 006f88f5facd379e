// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate

import (
	"strconv"
	"strings"
)

// Version is a migration version. Major versions mark changes that need a
// matching code deploy, minor versions are compatible changes.
type Version struct {
	Major int
	Minor int
}

// Base is the version before any migration was applied.
// Downgrading to Base reverts every migration of a scope.
var Base = Version{Major: -1}

// Compare returns -1, 0 or 1 when v is before, equal to or after other.
func (v Version) Compare(other Version) int {
	switch {
	case v.Major < other.Major:
		return -1
	case v.Major > other.Major:
		return 1
	case v.Minor < other.Minor:
		return -1
	case v.Minor > other.Minor:
		return 1
	}
	return 0
}

// Less returns whether v is ordered before other.
func (v Version) Less(other Version) bool { return v.Compare(other) < 0 }

// String implements fmt.Stringer.
func (v Version) String() string {
	if v == Base {
		return "base"
	}
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// ParseVersion parses "major.minor" or "base".
func ParseVersion(s string) (Version, error) {
	if s == "base" {
		return Base, nil
	}

	majorText, minorText, ok := strings.Cut(s, ".")
	if !ok {
		return Version{}, Error.New("invalid version %q: expected major.minor", s)
	}
	major, err := strconv.ParseUint(majorText, 10, 31)
	if err != nil {
		return Version{}, Error.New("invalid major version %q", s)
	}
	minor, err := strconv.ParseUint(minorText, 10, 31)
	if err != nil {
		return Version{}, Error.New("invalid minor version %q", s)
	}
	return Version{Major: int(major), Minor: int(minor)}, nil
}

// Scope says where a migration applies.
type Scope int

const (
	// Shared migrations apply once to the shared schema.
	Shared Scope = iota
	// PerShard migrations apply to every shard schema.
	PerShard
)

// String implements fmt.Stringer.
func (scope Scope) String() string {
	switch scope {
	case Shared:
		return "shared"
	case PerShard:
		return "vnode"
	default:
		return "scope(" + strconv.Itoa(int(scope)) + ")"
	}
}

// Targets are the versions a run stops at. A nil target means the latest
// catalog version when upgrading and leaves the scope alone when downgrading.
type Targets struct {
	Shared   *Version
	PerShard *Version
}

// For returns the target of the scope.
func (targets Targets) For(scope Scope) *Version {
	if scope == Shared {
		return targets.Shared
	}
	return targets.PerShard
}
