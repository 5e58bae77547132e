// Package store defines the persisted state contract (spec §3, §4.4): the
// JobState/RunLog data model and the StateStore interface every backend
// (in-memory for tests, Postgres in production) implements identically.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/crontabber/crontabber/internal/runnererr"
)

// ErrRowLocked is returned by UpsertPreRun when another invocation already
// holds (or recently claimed) the row's ongoing marker (spec §4.4, §4.8).
var ErrRowLocked = errors.New("row claim lost to a concurrent invocation")

// ErrNotFound is returned by the in-memory backend's CommitSuccess and
// CommitFailure when no row exists for the identifier.
var ErrNotFound = errors.New("job state not found")

// JobState is the mutable, persisted per-job record (spec §3).
type JobState struct {
	Identifier   string
	NextRunTime  time.Time
	FirstRunTime time.Time
	LastRunTime  time.Time
	LastSuccess  *time.Time
	ErrorCount   int
	LastError    *runnererr.Fault
	Ongoing      *time.Time
	DependsOn    []string
}

// RunLogEntry is one append-only attempt record (spec §3).
type RunLogEntry struct {
	ID             int64
	Identifier     string
	Timestamp      time.Time
	Success        bool
	ErrorKind      string
	ErrorMessage   string
	ErrorTraceback string
	Duration       time.Duration
}

// StateStore is the ACID-KV-with-transactions contract of spec §4.4. Every
// method is a single transaction.
type StateStore interface {
	// Get returns the job's state, or (nil, nil) if no row exists yet.
	Get(ctx context.Context, identifier string) (*JobState, error)

	// UpsertPreRun attempts to claim identifier for execution starting at
	// startedAt. It succeeds if the row is absent, its ongoing marker is nil,
	// or that marker is older than maxOngoingAge (a stale, reclaimable claim).
	// On success it sets ongoing=startedAt, last_run_time=startedAt, and — only
	// if the row did not previously exist — first_run_time=firstRunTimeIfNew
	// and depends_on=dependsOn. On failure it returns ErrRowLocked.
	UpsertPreRun(ctx context.Context, identifier string, startedAt time.Time, firstRunTimeIfNew time.Time, dependsOn []string, maxOngoingAge time.Duration) error

	// CommitSuccess records a successful attempt: clears ongoing/last_error,
	// resets error_count, advances next_run_time, sets last_success, and
	// appends a RunLog row.
	CommitSuccess(ctx context.Context, identifier string, finishedAt, nextDue time.Time, duration time.Duration) error

	// CommitFailure records a failed attempt: clears ongoing, sets last_error,
	// increments error_count, sets next_run_time to nextDue, and appends a
	// RunLog row.
	CommitFailure(ctx context.Context, identifier string, finishedAt, nextDue time.Time, duration time.Duration, fault *runnererr.Fault) error

	// Reset deletes the JobState row. RunLog rows are left intact. A reset of
	// a never-run job is a no-op (spec testable property 8).
	Reset(ctx context.Context, identifier string) error

	// LatestRunLog returns the most recent attempt recorded for identifier, or
	// (nil, nil) if none exists.
	LatestRunLog(ctx context.Context, identifier string) (*RunLogEntry, error)

	// GateAcquire claims the process-level singleton gate (spec §4.8). It
	// succeeds if the gate is unclaimed or its claim is older than
	// maxOngoingAge. On failure it returns ErrRowLocked.
	GateAcquire(ctx context.Context, claimedAt time.Time, owner string, maxOngoingAge time.Duration) error

	// GateRelease clears the process-level gate.
	GateRelease(ctx context.Context, owner string) error
}
