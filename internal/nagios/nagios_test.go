package nagios

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/crontabber/crontabber/internal/runner"
	"github.com/crontabber/crontabber/internal/runnererr"
	"github.com/crontabber/crontabber/internal/store/memory"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSummarize_OK(t *testing.T) {
	report := runner.Report{Results: []runner.JobResult{
		{Identifier: "a", Ran: true},
		{Identifier: "b", Skipped: true, SkipReason: "not_due"},
	}}
	status, line := Summarize(context.Background(), memory.New(), report)
	assert.Equal(t, OK, status)
	assert.Equal(t, 0, status.ExitCode())
	assert.Contains(t, line, "OK")
}

func TestSummarize_CriticalOnLiveJobFailure(t *testing.T) {
	report := runner.Report{Results: []runner.JobResult{
		{Identifier: "a", Ran: true, Err: runnererr.New(runnererr.KindJobFailure, "", "boom")},
	}}
	status, line := Summarize(context.Background(), memory.New(), report)
	assert.Equal(t, Critical, status)
	assert.Equal(t, 2, status.ExitCode())
	assert.Contains(t, line, "a")
}

func TestSummarize_WarningOnSingleBackfillFailure(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	assert.NoError(t, s.UpsertPreRun(ctx, "a", epoch, epoch, nil, 0))
	assert.NoError(t, s.CommitFailure(ctx, "a", epoch, epoch, 0, &runnererr.Fault{Kind: "error", Message: "boom"}))

	report := runner.Report{Results: []runner.JobResult{
		{Identifier: "a", IsBackfill: true, Ran: true, Err: runnererr.New(runnererr.KindJobFailure, "", "boom")},
	}}
	status, line := Summarize(ctx, s, report)
	assert.Equal(t, Warning, status)
	assert.Equal(t, 1, status.ExitCode())
	assert.Contains(t, line, "a")
}

func TestSummarize_CriticalOnRepeatedBackfillFailure(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	assert.NoError(t, s.UpsertPreRun(ctx, "a", epoch, epoch, nil, 0))
	assert.NoError(t, s.CommitFailure(ctx, "a", epoch, epoch, 0, &runnererr.Fault{Kind: "error", Message: "boom"}))
	assert.NoError(t, s.UpsertPreRun(ctx, "a", epoch, epoch, nil, 0))
	assert.NoError(t, s.CommitFailure(ctx, "a", epoch, epoch, 0, &runnererr.Fault{Kind: "error", Message: "boom again"}))

	report := runner.Report{Results: []runner.JobResult{
		{Identifier: "a", IsBackfill: true, Ran: true, Err: runnererr.New(runnererr.KindJobFailure, "", "boom again")},
	}}
	status, line := Summarize(ctx, s, report)
	assert.Equal(t, Critical, status)
	assert.Equal(t, 2, status.ExitCode())
	assert.Contains(t, line, "a")
}

func TestSummarize_IgnoresBlockedByFailure(t *testing.T) {
	report := runner.Report{Results: []runner.JobResult{
		{Identifier: "a", Skipped: true, Err: runnererr.New(runnererr.KindBlockedByFailure, "", "blocked")},
	}}
	status, _ := Summarize(context.Background(), memory.New(), report)
	assert.Equal(t, OK, status)
}
