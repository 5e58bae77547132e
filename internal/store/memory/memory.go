// Package memory implements store.StateStore in-memory, grounded on the
// teacher's MemoryJobStore: a mutex-guarded map plus an append-only slice per
// job for the run log. It backs unit and BDD tests; production deployments
// use internal/store/postgres instead.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/crontabber/crontabber/internal/runnererr"
	"github.com/crontabber/crontabber/internal/store"
)

// Store is an in-memory store.StateStore.
type Store struct {
	mu      sync.Mutex
	jobs    map[string]*store.JobState
	runLogs map[string][]store.RunLogEntry
	nextID  int64

	gateOwner   string
	gateClaimed time.Time
	gateHeld    bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		jobs:    make(map[string]*store.JobState),
		runLogs: make(map[string][]store.RunLogEntry),
	}
}

func (s *Store) Get(_ context.Context, identifier string) (*store.JobState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[identifier]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (s *Store) UpsertPreRun(_ context.Context, identifier string, startedAt, firstRunTimeIfNew time.Time, dependsOn []string, maxOngoingAge time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, exists := s.jobs[identifier]
	if !exists {
		s.jobs[identifier] = &store.JobState{
			Identifier:   identifier,
			FirstRunTime: firstRunTimeIfNew,
			LastRunTime:  startedAt,
			Ongoing:      &startedAt,
			DependsOn:    dependsOn,
		}
		return nil
	}

	if j.Ongoing != nil && startedAt.Sub(*j.Ongoing) <= maxOngoingAge {
		return store.ErrRowLocked
	}

	j.LastRunTime = startedAt
	j.Ongoing = &startedAt
	return nil
}

func (s *Store) CommitSuccess(_ context.Context, identifier string, finishedAt, nextDue time.Time, duration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := s.jobs[identifier]
	if j == nil {
		return store.ErrNotFound
	}
	success := finishedAt
	j.LastSuccess = &success
	j.Ongoing = nil
	j.LastError = nil
	j.ErrorCount = 0
	j.NextRunTime = nextDue

	s.appendLog(identifier, store.RunLogEntry{
		Identifier: identifier,
		Timestamp:  finishedAt,
		Success:    true,
		Duration:   duration,
	})
	return nil
}

func (s *Store) CommitFailure(_ context.Context, identifier string, finishedAt, nextDue time.Time, duration time.Duration, fault *runnererr.Fault) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := s.jobs[identifier]
	if j == nil {
		return store.ErrNotFound
	}
	j.Ongoing = nil
	j.LastError = fault
	j.ErrorCount++
	j.NextRunTime = nextDue

	entry := store.RunLogEntry{
		Identifier: identifier,
		Timestamp:  finishedAt,
		Success:    false,
		Duration:   duration,
	}
	if fault != nil {
		entry.ErrorKind = fault.Kind
		entry.ErrorMessage = fault.Message
		entry.ErrorTraceback = fault.Traceback
	}
	s.appendLog(identifier, entry)
	return nil
}

func (s *Store) appendLog(identifier string, entry store.RunLogEntry) {
	s.nextID++
	entry.ID = s.nextID
	s.runLogs[identifier] = append(s.runLogs[identifier], entry)
}

func (s *Store) Reset(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, identifier)
	return nil
}

func (s *Store) LatestRunLog(_ context.Context, identifier string) (*store.RunLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.runLogs[identifier]
	if len(log) == 0 {
		return nil, nil
	}
	cp := log[len(log)-1]
	return &cp, nil
}

func (s *Store) GateAcquire(_ context.Context, claimedAt time.Time, owner string, maxOngoingAge time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gateHeld && claimedAt.Sub(s.gateClaimed) <= maxOngoingAge {
		return store.ErrRowLocked
	}
	s.gateHeld = true
	s.gateOwner = owner
	s.gateClaimed = claimedAt
	return nil
}

func (s *Store) GateRelease(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gateOwner == owner {
		s.gateHeld = false
		s.gateOwner = ""
	}
	return nil
}
