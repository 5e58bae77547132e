// Package backfill implements the date arithmetic of the backfill engine of
// spec §4.6: for a backfillable job, it computes the ordered list of calendar
// dates still owed. The runner invokes the job once per date and commits
// between calls.
package backfill

import (
	"time"

	"github.com/crontabber/crontabber/internal/store"
)

// AlignedFloor returns the frequency-aligned floor of now, used to establish
// first_run_time the very first time a backfill job is ever attempted (spec
// §4.6). Truncation is relative to the zero time, which is itself a period
// boundary for any whole-day frequency, so the result always lands on a
// midnight-aligned boundary in the datastore's session time zone.
func AlignedFloor(now time.Time, frequency time.Duration) time.Time {
	return now.Truncate(frequency)
}

// OwedDates returns the ordered, gap-free list of calendar dates a backfill
// job still owes an execution for, up to and including the largest date
// at-or-before now. state must be non-nil (the caller creates it, setting
// FirstRunTime via AlignedFloor, before computing owed dates).
func OwedDates(state *store.JobState, frequency time.Duration, now time.Time) []time.Time {
	start := state.FirstRunTime
	if !state.NextRunTime.IsZero() {
		start = state.NextRunTime
	}

	var dates []time.Time
	for !start.After(now) {
		dates = append(dates, start)
		start = start.Add(frequency)
	}
	return dates
}
