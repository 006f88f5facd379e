// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package migrate

import (
	"fmt"
	"sync"

	"github.com/zeebo/errs"
)

// Status is the outcome of a migration on a single schema.
type Status int

const (
	// Applied means the migration body ran and the ledger was updated.
	Applied Status = iota
	// Skipped means the ledger already was in the desired state.
	Skipped
	// Blocked means an earlier failure prevented the attempt.
	Blocked
	// Failed means the migration was rolled back.
	Failed
)

// String implements fmt.Stringer.
func (status Status) String() string {
	switch status {
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	case Blocked:
		return "blocked"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(status))
	}
}

// Outcome is the result of one migration on one schema.
type Outcome struct {
	Scope   Scope
	Schema  string
	Shard   int // -1 for the shared schema
	Version Version
	Status  Status
}

// Failure is a migration that failed on one schema.
type Failure struct {
	Scope   Scope
	Schema  string
	Shard   int // -1 for the shared schema
	Version Version
	Err     error
}

// Error implements error.
func (failure *Failure) Error() string {
	if failure.Scope == Shared {
		return fmt.Sprintf("shared migration %s on %q: %v", failure.Version, failure.Schema, failure.Err)
	}
	return fmt.Sprintf("vnode migration %s on shard %d (%q): %v", failure.Version, failure.Shard, failure.Schema, failure.Err)
}

// Unwrap returns the underlying error.
func (failure *Failure) Unwrap() error { return failure.Err }

// Report collects the outcomes of a run.
type Report struct {
	mu       sync.Mutex
	Outcomes []Outcome
	Failures []*Failure
}

func (report *Report) add(outcome Outcome, err error) {
	report.mu.Lock()
	defer report.mu.Unlock()

	report.Outcomes = append(report.Outcomes, outcome)
	if outcome.Status == Failed {
		report.Failures = append(report.Failures, &Failure{
			Scope:   outcome.Scope,
			Schema:  outcome.Schema,
			Shard:   outcome.Shard,
			Version: outcome.Version,
			Err:     err,
		})
	}
}

// Count returns the number of outcomes with the specified status.
func (report *Report) Count(status Status) int {
	report.mu.Lock()
	defer report.mu.Unlock()

	count := 0
	for _, outcome := range report.Outcomes {
		if outcome.Status == status {
			count++
		}
	}
	return count
}

// Err combines all failures. It is nil when nothing failed.
func (report *Report) Err() error {
	report.mu.Lock()
	defer report.mu.Unlock()

	var group errs.Group
	for _, failure := range report.Failures {
		group.Add(failure)
	}
	return group.Err()
}
