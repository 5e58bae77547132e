// Package admin implements the operator-facing, non-executing commands of
// spec §4.2: listing configured jobs with their last-run summary, resetting
// a job's persisted state, and validating configuration without running
// anything.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crontabber/crontabber/internal/graph"
	"github.com/crontabber/crontabber/internal/registry"
	"github.com/crontabber/crontabber/internal/store"
)

// JobSummary is one row of --list output: a configured job plus its most
// recent persisted state and run log entry, if any.
type JobSummary struct {
	Identifier  string
	ClassPath   string
	Frequency   time.Duration
	DependsOn   []string
	IsBackfill  bool
	NextRunTime time.Time
	LastRun     *store.RunLogEntry
}

// List returns a JobSummary per configured job, in dependency-respecting
// display order, joining each descriptor against its persisted state and
// latest run log entry (spec §4.2: --list reports both configuration and
// history).
func List(ctx context.Context, s store.StateStore, reg *registry.Registry) ([]JobSummary, error) {
	order, err := graph.Order(reg)
	if err != nil {
		order = reg.Order // configtest-style listing still needs to show something even with a cycle
	}

	summaries := make([]JobSummary, 0, len(order))
	for _, id := range order {
		desc, ok := reg.Get(id)
		if !ok {
			continue
		}
		summary := JobSummary{
			Identifier: desc.Identifier,
			ClassPath:  desc.ClassPath,
			Frequency:  desc.Frequency,
			IsBackfill: desc.IsBackfill,
		}
		for dep := range desc.DependsOn {
			summary.DependsOn = append(summary.DependsOn, dep)
		}

		state, err := s.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading state for %q: %w", id, err)
		}
		if state != nil {
			summary.NextRunTime = state.NextRunTime
		}

		lastRun, err := s.LatestRunLog(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading run log for %q: %w", id, err)
		}
		summary.LastRun = lastRun

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// FormatList renders summaries as the plain-text table --list prints to
// stdout.
func FormatList(summaries []JobSummary) string {
	var b strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&b, "%s (%s)\n", s.Identifier, s.ClassPath)
		fmt.Fprintf(&b, "  frequency: %s", s.Frequency)
		if len(s.DependsOn) > 0 {
			fmt.Fprintf(&b, "  depends_on: %s", strings.Join(s.DependsOn, ", "))
		}
		b.WriteString("\n")
		if !s.NextRunTime.IsZero() {
			fmt.Fprintf(&b, "  next_run_time: %s\n", s.NextRunTime.Format(time.RFC3339))
		} else {
			b.WriteString("  next_run_time: (never run)\n")
		}
		if s.LastRun != nil {
			status := "success"
			if !s.LastRun.Success {
				status = fmt.Sprintf("failure (%s: %s)", s.LastRun.ErrorKind, s.LastRun.ErrorMessage)
			}
			fmt.Fprintf(&b, "  last_run: %s %s\n", s.LastRun.Timestamp.Format(time.RFC3339), status)
		}
	}
	return b.String()
}

// Reset clears identifier's persisted state (spec §4.2: --reset-job), so its
// next invocation treats it as never having run. RunLog history is untouched.
func Reset(ctx context.Context, s store.StateStore, identifier string) error {
	return s.Reset(ctx, identifier)
}

// ConfigTest validates configuration without executing any job, returning
// every error found rather than stopping at the first (spec §4.2:
// --configtest).
func ConfigTest(reg *registry.Registry, buildErrs []error) []error {
	errs := append([]error(nil), buildErrs...)
	if len(buildErrs) == 0 {
		if _, err := graph.Order(reg); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
