// Package duetime implements the due-time decision for non-backfill jobs
// (spec §4.5): when last-success plus frequency, anchor-adjusted, or
// last-run plus retry backoff, whichever applies.
package duetime

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/crontabber/crontabber/internal/freq"
	"github.com/crontabber/crontabber/internal/registry"
	"github.com/crontabber/crontabber/internal/store"
)

// DefaultBaseBackoff is the initial retry delay after a failure (spec §4.5,
// §6: base_backoff_seconds default).
const DefaultBaseBackoff = 30 * time.Minute

// Backoff returns the retry delay after n consecutive failures:
// min(base * 2^(n-1), frequency).
func Backoff(errorCount int, base, frequency time.Duration) time.Duration {
	if errorCount <= 0 {
		return 0
	}
	d := base << (errorCount - 1) // base * 2^(n-1)
	if d <= 0 || d > frequency {  // overflow or exceeds cap
		return frequency
	}
	return d
}

// At computes the due-at instant for descriptor desc given its current state.
// A nil state means the job has never run and is due immediately, represented
// by the zero time.Time (which compares before any real "now").
func At(desc *registry.JobDescriptor, state *store.JobState, baseBackoff time.Duration) (time.Time, error) {
	if state == nil {
		return time.Time{}, nil
	}

	if state.LastError != nil {
		return state.LastRunTime.Add(Backoff(state.ErrorCount, baseBackoff, desc.Frequency)), nil
	}

	if state.LastSuccess == nil {
		return time.Time{}, nil
	}

	due := state.LastSuccess.Add(desc.Frequency)
	if desc.Anchor == nil {
		return due, nil
	}
	return nextAnchorOnOrAfter(due, *desc.Anchor)
}

// nextAnchorOnOrAfter returns the first instant at or after t whose
// wall-clock time of day matches anchor, in t's time zone — the datastore's
// session zone, never the host's (spec §4.5, §9). It is built on a daily
// cron.Schedule ("MM HH * * *") rather than re-deriving calendar arithmetic
// by hand.
func nextAnchorOnOrAfter(t time.Time, anchor freq.Anchor) (time.Time, error) {
	schedule, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", anchor.Minute, anchor.Hour))
	if err != nil {
		return time.Time{}, err
	}

	candidate := schedule.Next(t.Add(-25 * time.Hour))
	for candidate.Before(t) {
		candidate = schedule.Next(candidate)
	}
	return candidate, nil
}

// IsDue reports whether dueAt has arrived by now.
func IsDue(dueAt, now time.Time) bool {
	return !dueAt.After(now)
}
