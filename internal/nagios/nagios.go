// Package nagios renders a Report as a Nagios-plugin-compatible status line
// and exit code, for the --nagios flag (spec §4.9).
package nagios

import (
	"context"
	"fmt"
	"strings"

	"github.com/crontabber/crontabber/internal/runner"
	"github.com/crontabber/crontabber/internal/runnererr"
	"github.com/crontabber/crontabber/internal/store"
)

// Status is the three-level Nagios severity.
type Status int

const (
	OK Status = iota
	Warning
	Critical
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Warning:
		return "WARNING"
	default:
		return "CRITICAL"
	}
}

// ExitCode returns the Nagios plugin exit code for s (0/1/2).
func (s Status) ExitCode() int {
	switch s {
	case OK:
		return 0
	case Warning:
		return 1
	default:
		return 2
	}
}

// Summarize classifies a Report per spec §4.9: any non-backfill job failure
// is CRITICAL. A failure confined to backfill jobs is WARNING only while each
// such job has failed at most once in a row — a backfill job gets another
// chance on every subsequent invocation, so a single miss is not yet
// alarming. Once a backfill job's persisted error_count exceeds one, it has
// failed on consecutive invocations and is escalated to CRITICAL the same as
// a live job.
func Summarize(ctx context.Context, s store.StateStore, report runner.Report) (Status, string) {
	var critical, warning []string

	for _, res := range report.Results {
		if res.Err == nil {
			continue
		}
		if runnererr.Is(res.Err, runnererr.KindBlockedByFailure) {
			continue
		}
		if res.IsBackfill && !repeatedFailure(ctx, s, res.Identifier) {
			warning = append(warning, res.Identifier)
			continue
		}
		critical = append(critical, res.Identifier)
	}

	if len(critical) == 0 && len(warning) == 0 {
		return OK, fmt.Sprintf("OK - %d jobs checked, all succeeded or were skipped", len(report.Results))
	}
	if len(critical) > 0 {
		return Critical, fmt.Sprintf("CRITICAL - failed jobs: %s", strings.Join(critical, ", "))
	}
	return Warning, fmt.Sprintf("WARNING - backfill jobs behind: %s", strings.Join(warning, ", "))
}

// repeatedFailure reports whether identifier's persisted state shows more
// than one consecutive failure. A lookup error is treated as a repeated
// failure: with no evidence the job is only newly behind, the safer default
// is to escalate rather than stay silent.
func repeatedFailure(ctx context.Context, s store.StateStore, identifier string) bool {
	if s == nil {
		return false
	}
	state, err := s.Get(ctx, identifier)
	if err != nil {
		return true
	}
	if state == nil {
		return false
	}
	return state.ErrorCount > 1
}
