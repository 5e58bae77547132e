// Package runner implements the single invocation lifecycle of spec §4.7: one
// process gate, one pass over the dependency-ordered job list, one commit per
// job, one exit code. Nothing here loops or daemonizes — a process exits the
// moment this pass is done.
package runner

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/crontabber/crontabber/internal/backfill"
	"github.com/crontabber/crontabber/internal/corelog"
	"github.com/crontabber/crontabber/internal/duetime"
	"github.com/crontabber/crontabber/internal/events"
	"github.com/crontabber/crontabber/internal/graph"
	"github.com/crontabber/crontabber/internal/lock"
	"github.com/crontabber/crontabber/internal/registry"
	"github.com/crontabber/crontabber/internal/runnererr"
	"github.com/crontabber/crontabber/internal/store"
)

// Options configures a single invocation (spec §6 flags, minus the
// admin-only operations handled by internal/admin).
type Options struct {
	BaseBackoff   time.Duration
	MaxOngoingAge time.Duration
	OnlyJob       string // --job: run (or force-run) a single identifier
	Force         bool   // --force: ignore due-time, run OnlyJob unconditionally
	Now           func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// JobResult is the outcome of attempting a single configured job.
type JobResult struct {
	Identifier string
	IsBackfill bool
	Ran        bool
	Skipped    bool
	SkipReason string
	Err        error
}

// Report summarizes one full invocation (spec §4.9, §7): per-job results plus
// the aggregate exit code.
type Report struct {
	Results  []JobResult
	ExitCode int
}

// anyFailures reports whether at least one job in the report failed.
func (r Report) anyFailures() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

// anyRowLockLost reports whether a job's row claim was lost to a concurrent
// invocation (spec §4.7.3.d, §6: exit code 2, distinct from an ordinary job
// failure).
func (r Report) anyRowLockLost() bool {
	for _, res := range r.Results {
		if runnererr.Is(res.Err, runnererr.KindLockHeldRow) {
			return true
		}
	}
	return false
}

// Run executes one full pass over the dependency-ordered registry, exactly
// as a single crontabber invocation does (spec §4.7):
//
//  1. Acquire the process-level gate; if held, return immediately with a
//     LockHeld/Process report and no job attempted.
//  2. Walk jobs in dependency order. For each: skip if an upstream dependency
//     failed this run (BlockedByFailure); skip if not due yet, unless
//     Options.Force targets it via OnlyJob; otherwise claim the row, execute
//     (normal or backfill), and commit the outcome.
//  3. Release the gate and return the aggregate report.
func Run(ctx context.Context, s store.StateStore, reg *registry.Registry, emitter events.Emitter, logger corelog.Logger, opts Options) (Report, error) {
	now := opts.now()

	gate, err := lock.AcquireGate(ctx, s, now, opts.MaxOngoingAge)
	if err != nil {
		events.Emit(ctx, emitter, logger, events.TypeGateDenied, map[string]any{"error": err.Error()})
		return Report{}, runnererr.Wrap(runnererr.KindLockHeldProcess, "", err)
	}
	defer func() {
		if releaseErr := gate.Release(ctx); releaseErr != nil && logger != nil {
			logger.Warn("failed to release process gate", "error", releaseErr)
		}
	}()
	events.Emit(ctx, emitter, logger, events.TypeGateAcquired, map[string]any{"owner": gate.Owner()})

	order, err := graph.Order(reg)
	if err != nil {
		return Report{}, err
	}

	failed := make(map[string]bool, len(order))
	report := Report{}

	for _, id := range order {
		if opts.OnlyJob != "" && id != opts.OnlyJob {
			continue
		}

		desc, _ := reg.Get(id)
		result := runOne(ctx, s, desc, failed, emitter, logger, opts, now)
		report.Results = append(report.Results, result)
		if result.Err != nil {
			failed[id] = true
		}
		if runnererr.Is(result.Err, runnererr.KindLockHeldRow) {
			// spec §4.7.3.d: a lost row claim stops the walk immediately
			// rather than continuing on to unrelated jobs.
			break
		}
		if runnererr.Is(result.Err, runnererr.KindStoreError) {
			// A backing-store fault is fatal for the rest of this invocation;
			// the stale-claim threshold lets a later invocation recover.
			break
		}
	}

	report.ExitCode = exitCode(report)
	return report, nil
}

// runOne attempts a single job: blocked-by-failure check, due-time/backfill
// evaluation, row claim, execution, and commit.
func runOne(ctx context.Context, s store.StateStore, desc *registry.JobDescriptor, failed map[string]bool, emitter events.Emitter, logger corelog.Logger, opts Options, now time.Time) JobResult {
	id := desc.Identifier

	for dep := range desc.DependsOn {
		if failed[dep] {
			events.Emit(ctx, emitter, logger, events.TypeJobSkipped, map[string]any{"job": id, "reason": "blocked_by_failure", "dependency": dep})
			return JobResult{
				Identifier: id,
				IsBackfill: desc.IsBackfill,
				Skipped:    true,
				SkipReason: "blocked_by_failure",
				Err: runnererr.Newf(runnererr.KindBlockedByFailure, "", "job %q blocked: dependency %q failed this run", id, dep),
			}
		}
	}

	state, err := s.Get(ctx, id)
	if err != nil {
		return JobResult{Identifier: id, IsBackfill: desc.IsBackfill, Err: runnererr.Wrap(runnererr.KindStoreError, "", err)}
	}

	forced := opts.Force && opts.OnlyJob == id
	if !forced && !desc.IsBackfill {
		dueAt, err := duetime.At(desc, state, opts.BaseBackoff)
		if err != nil {
			return JobResult{Identifier: id, IsBackfill: desc.IsBackfill, Err: err}
		}
		if !duetime.IsDue(dueAt, now) {
			return JobResult{Identifier: id, IsBackfill: desc.IsBackfill, Skipped: true, SkipReason: "not_due"}
		}
	}

	firstRunTimeIfNew := now
	if desc.IsBackfill {
		firstRunTimeIfNew = backfill.AlignedFloor(now, desc.Frequency)
	}
	dependsOnSlice := make([]string, 0, len(desc.DependsOn))
	for dep := range desc.DependsOn {
		dependsOnSlice = append(dependsOnSlice, dep)
	}

	if err := s.UpsertPreRun(ctx, id, now, firstRunTimeIfNew, dependsOnSlice, opts.MaxOngoingAge); err != nil {
		events.Emit(ctx, emitter, logger, events.TypeRowDenied, map[string]any{"job": id, "error": err.Error()})
		return JobResult{Identifier: id, IsBackfill: desc.IsBackfill, Err: runnererr.Wrap(runnererr.KindLockHeldRow, "", err)}
	}

	events.Emit(ctx, emitter, logger, events.TypeJobStarted, map[string]any{"job": id, "backfill": desc.IsBackfill})

	if desc.IsBackfill {
		return runBackfill(ctx, s, desc, state, emitter, logger, now, forced)
	}
	return runOnce(ctx, s, desc, emitter, logger, now)
}

// runOnce executes a normal (non-backfill) job a single time and commits the
// single outcome.
func runOnce(ctx context.Context, s store.StateStore, desc *registry.JobDescriptor, emitter events.Emitter, logger corelog.Logger, now time.Time) JobResult {
	id := desc.Identifier
	start := now
	execErr := executeOnce(ctx, desc)
	duration := time.Since(start)
	nextDue := now.Add(desc.Frequency)

	if execErr != nil {
		fault := runnererr.CaptureFault(execErr, nil, string(debug.Stack()))
		if commitErr := s.CommitFailure(ctx, id, now, nextDue, duration, fault); commitErr != nil && logger != nil {
			logger.Error("failed to commit failure", "job", id, "error", commitErr)
		}
		events.Emit(ctx, emitter, logger, events.TypeJobFailed, map[string]any{"job": id, "error": execErr.Error()})
		return JobResult{Identifier: id, Ran: true, Err: runnererr.Wrap(runnererr.KindJobFailure, "", execErr)}
	}

	if commitErr := s.CommitSuccess(ctx, id, now, nextDue, duration); commitErr != nil {
		return JobResult{Identifier: id, Ran: true, Err: runnererr.Wrap(runnererr.KindStoreError, "", commitErr)}
	}
	events.Emit(ctx, emitter, logger, events.TypeJobSucceeded, map[string]any{"job": id})
	return JobResult{Identifier: id, Ran: true}
}

// runBackfill executes a backfill job once per owed calendar date, in order,
// committing after every single date (spec §4.6, S4, S5): a date that
// succeeds gets its own RunLog row and advances next_run_time to the
// following date; the first date that fails stops the loop right there, so a
// later invocation resumes at that same date instead of skipping past it.
func runBackfill(ctx context.Context, s store.StateStore, desc *registry.JobDescriptor, state *store.JobState, emitter events.Emitter, logger corelog.Logger, now time.Time, forced bool) JobResult {
	id := desc.Identifier

	var owed []time.Time
	if forced {
		owed = []time.Time{now}
	} else {
		floor := state
		if floor == nil {
			floor = &store.JobState{FirstRunTime: backfill.AlignedFloor(now, desc.Frequency)}
		}
		owed = backfill.OwedDates(floor, desc.Frequency, now)
	}

	result := JobResult{Identifier: id, IsBackfill: true}
	for _, day := range owed {
		start := time.Now()
		execErr := executeDate(ctx, desc, day)
		duration := time.Since(start)
		nextDue := day.Add(desc.Frequency)
		result.Ran = true

		if execErr != nil {
			fault := runnererr.CaptureFault(execErr, nil, string(debug.Stack()))
			// next_run_time stays on the failed date so the next invocation retries it.
			if commitErr := s.CommitFailure(ctx, id, now, day, duration, fault); commitErr != nil && logger != nil {
				logger.Error("failed to commit backfill failure", "job", id, "date", day, "error", commitErr)
			}
			events.Emit(ctx, emitter, logger, events.TypeJobFailed, map[string]any{"job": id, "date": day, "error": execErr.Error()})
			result.Err = runnererr.Wrap(runnererr.KindJobFailure, "", execErr)
			return result
		}

		if commitErr := s.CommitSuccess(ctx, id, now, nextDue, duration); commitErr != nil {
			result.Err = runnererr.Wrap(runnererr.KindStoreError, "", commitErr)
			return result
		}
		events.Emit(ctx, emitter, logger, events.TypeJobSucceeded, map[string]any{"job": id, "date": day})
	}
	return result
}

// executeOnce runs a non-backfill job's Execute method, recovering from a
// panic into an error so a single misbehaving job can never take down the
// invocation (spec §9).
func executeOnce(ctx context.Context, desc *registry.JobDescriptor) (execErr error) {
	defer func() {
		if r := recover(); r != nil {
			execErr = runnererr.Newf(runnererr.KindJobFailure, "", "job %q panicked: %v", desc.Identifier, r)
		}
	}()
	runnable, ok := desc.App.(registry.Runnable)
	if !ok {
		return runnererr.Newf(runnererr.KindConfigError, "", "job %q does not implement Execute", desc.Identifier)
	}
	return runnable.Execute(ctx)
}

// executeDate runs a backfill job's ExecuteDate method for a single owed
// date, with the same panic recovery as executeOnce.
func executeDate(ctx context.Context, desc *registry.JobDescriptor, day time.Time) (execErr error) {
	defer func() {
		if r := recover(); r != nil {
			execErr = runnererr.Newf(runnererr.KindJobFailure, "", "job %q panicked on date %s: %v", desc.Identifier, day, r)
		}
	}()
	runnable, ok := desc.App.(registry.BackfillRunnable)
	if !ok {
		return runnererr.Newf(runnererr.KindConfigError, "", "job %q marked backfill but does not implement ExecuteDate", desc.Identifier)
	}
	return runnable.ExecuteDate(ctx, day)
}

// exitCode derives the process exit code from the report (spec §6, §7): zero
// only if every attempted job succeeded or was cleanly skipped; 2 if a row
// claim was lost to a concurrent invocation (distinct from an ordinary job
// failure); 1 for any other failure.
func exitCode(r Report) int {
	if r.anyRowLockLost() {
		return 2
	}
	if r.anyFailures() {
		return 1
	}
	return 0
}
