package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/crontabber/crontabber/internal/store"
)

func TestUpsertPreRun_ClaimsNewRow(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	err := s.UpsertPreRun(ctx, "job-a", now, now, nil, time.Hour)
	assert.NoError(t, err)

	state, err := s.Get(ctx, "job-a")
	assert.NoError(t, err)
	assert.Equal(t, now, state.FirstRunTime)
	assert.Equal(t, now, state.LastRunTime)
}

func TestUpsertPreRun_RejectsConcurrentClaim(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	assert.NoError(t, s.UpsertPreRun(ctx, "job-a", now, now, nil, time.Hour))
	err := s.UpsertPreRun(ctx, "job-a", now.Add(time.Minute), now, nil, time.Hour)
	assert.ErrorIs(t, err, store.ErrRowLocked)
}

func TestUpsertPreRun_ReclaimsStaleOngoing(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	assert.NoError(t, s.UpsertPreRun(ctx, "job-a", now, now, nil, time.Hour))
	err := s.UpsertPreRun(ctx, "job-a", now.Add(2*time.Hour), now, nil, time.Hour)
	assert.NoError(t, err)
}

func TestCommitSuccess_ResetsErrorState(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	assert.NoError(t, s.UpsertPreRun(ctx, "job-a", now, now, nil, time.Hour))
	assert.NoError(t, s.CommitSuccess(ctx, "job-a", now, now.Add(time.Hour), 50*time.Millisecond))

	state, err := s.Get(ctx, "job-a")
	assert.NoError(t, err)
	assert.Nil(t, state.Ongoing)
	assert.Equal(t, 0, state.ErrorCount)
	assert.NotNil(t, state.LastSuccess)

	entry, err := s.LatestRunLog(ctx, "job-a")
	assert.NoError(t, err)
	assert.True(t, entry.Success)
}

func TestCommitFailure_IncrementsErrorCount(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	assert.NoError(t, s.UpsertPreRun(ctx, "job-a", now, now, nil, time.Hour))
	assert.NoError(t, s.CommitFailure(ctx, "job-a", now, now.Add(time.Hour), 10*time.Millisecond, nil))

	state, err := s.Get(ctx, "job-a")
	assert.NoError(t, err)
	assert.Equal(t, 1, state.ErrorCount)
	assert.Nil(t, state.Ongoing)
}

func TestReset_ClearsStateOnly(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	assert.NoError(t, s.UpsertPreRun(ctx, "job-a", now, now, nil, time.Hour))
	assert.NoError(t, s.CommitSuccess(ctx, "job-a", now, now.Add(time.Hour), time.Millisecond))
	assert.NoError(t, s.Reset(ctx, "job-a"))

	state, err := s.Get(ctx, "job-a")
	assert.NoError(t, err)
	assert.Nil(t, state)

	entry, err := s.LatestRunLog(ctx, "job-a")
	assert.NoError(t, err)
	assert.NotNil(t, entry, "run log survives reset")
}

func TestGateAcquireRelease(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	assert.NoError(t, s.GateAcquire(ctx, now, "owner-1", time.Hour))
	err := s.GateAcquire(ctx, now.Add(time.Minute), "owner-2", time.Hour)
	assert.ErrorIs(t, err, store.ErrRowLocked)

	assert.NoError(t, s.GateRelease(ctx, "owner-1"))
	assert.NoError(t, s.GateAcquire(ctx, now.Add(time.Minute), "owner-2", time.Hour))
}
