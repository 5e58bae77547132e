// Package lock implements the two-level mutual-exclusion protocol of spec
// §4.8: a process-level gate guarding the whole invocation, and a per-job row
// claim (store.StateStore.UpsertPreRun) guarding each job step. Both honor
// max_ongoing_age so a crashed invocation cannot wedge the system forever.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/crontabber/crontabber/internal/store"
)

// Gate is a held process-level lock; Release must be called exactly once.
type Gate struct {
	owner string
	store store.StateStore
}

// AcquireGate claims the process-level singleton gate. It fails with
// store.ErrRowLocked if another invocation holds an unexpired claim.
func AcquireGate(ctx context.Context, s store.StateStore, now time.Time, maxOngoingAge time.Duration) (*Gate, error) {
	owner := uuid.New().String()
	if err := s.GateAcquire(ctx, now, owner, maxOngoingAge); err != nil {
		return nil, err
	}
	return &Gate{owner: owner, store: s}, nil
}

// Release clears the gate this invocation holds.
func (g *Gate) Release(ctx context.Context) error {
	return g.store.GateRelease(ctx, g.owner)
}

// Owner returns the UUID stamped on this invocation's gate claim. The runner
// attaches it to the gate-acquired event; RunLog rows do not carry it.
func (g *Gate) Owner() string { return g.owner }
