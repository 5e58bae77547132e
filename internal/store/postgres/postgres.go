// Package postgres implements store.StateStore against the normative
// crontabber/crontabber_log schema (spec §6), grounded on the pack's
// pgx/v5-based schedule-repository examples: pgxpool for connection pooling,
// explicit transactions for every compound write, and SELECT ... FOR UPDATE
// for the row-level claim. A racing invocation waits on that row lock only
// until the claiming transaction commits, then sees the ongoing marker and
// gets ErrRowLocked.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crontabber/crontabber/internal/runnererr"
	"github.com/crontabber/crontabber/internal/store"
)

// Schema is the DDL for the two normative tables plus the single-row
// process-level gate. Column names on crontabber/crontabber_log are normative
// for cross-implementation compatibility with prior deployments (spec §6).
const Schema = `
CREATE TABLE IF NOT EXISTS crontabber (
	app_name     TEXT PRIMARY KEY,
	next_run     TIMESTAMPTZ,
	first_run    TIMESTAMPTZ,
	last_run     TIMESTAMPTZ,
	last_success TIMESTAMPTZ,
	error_count  INT NOT NULL DEFAULT 0,
	depends_on   TEXT[],
	last_error   JSONB,
	ongoing      TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS crontabber_log (
	id              SERIAL PRIMARY KEY,
	app_name        TEXT NOT NULL,
	log_time        TIMESTAMPTZ NOT NULL,
	duration        INTERVAL NOT NULL,
	success         BOOL NOT NULL,
	exc_type        TEXT,
	exc_value       TEXT,
	exc_traceback   TEXT
);

CREATE TABLE IF NOT EXISTS crontabber_gate (
	id         BOOL PRIMARY KEY DEFAULT TRUE CHECK (id),
	owner      TEXT,
	claimed_at TIMESTAMPTZ
);
`

// Store is a Postgres-backed store.StateStore.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, fixing the session time zone to UTC at connection
// time per spec §9 ("must fix the session time zone at connection time to
// avoid drift") — anchor-time-of-day comparisons elsewhere in the core always
// operate in this session zone, never the host's.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ConnConfig.RuntimeParams["timezone"] = "UTC"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() { s.pool.Close() }

// Migrate applies Schema. Safe to call repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *Store) Get(ctx context.Context, identifier string) (*store.JobState, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT app_name, next_run, first_run, last_run, last_success,
		       error_count, depends_on, last_error, ongoing
		FROM crontabber WHERE app_name = $1`, identifier)
	j, err := scanJobState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return j, nil
}

func (s *Store) UpsertPreRun(ctx context.Context, identifier string, startedAt, firstRunTimeIfNew time.Time, dependsOn []string, maxOngoingAge time.Duration) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT ongoing FROM crontabber WHERE app_name = $1 FOR UPDATE`, identifier)
	var ongoing *time.Time
	err = row.Scan(&ongoing)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `
			INSERT INTO crontabber (app_name, first_run, last_run, ongoing, depends_on, error_count)
			VALUES ($1, $2, $3, $3, $4, 0)`,
			identifier, firstRunTimeIfNew, startedAt, dependsOn)
		if err != nil {
			return storeErr(err)
		}
	case err != nil:
		return storeErr(err)
	default:
		if ongoing != nil && startedAt.Sub(*ongoing) <= maxOngoingAge {
			return store.ErrRowLocked
		}
		_, err = tx.Exec(ctx, `UPDATE crontabber SET last_run = $2, ongoing = $2 WHERE app_name = $1`, identifier, startedAt)
		if err != nil {
			return storeErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *Store) CommitSuccess(ctx context.Context, identifier string, finishedAt, nextDue time.Time, duration time.Duration) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		UPDATE crontabber
		SET last_success = $2, ongoing = NULL, last_error = NULL, error_count = 0, next_run = $3
		WHERE app_name = $1`, identifier, finishedAt, nextDue)
	if err != nil {
		return storeErr(err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO crontabber_log (app_name, log_time, duration, success)
		VALUES ($1, $2, $3, TRUE)`, identifier, finishedAt, toInterval(duration))
	if err != nil {
		return storeErr(err)
	}

	return storeErr(tx.Commit(ctx))
}

func (s *Store) CommitFailure(ctx context.Context, identifier string, finishedAt, nextDue time.Time, duration time.Duration, fault *runnererr.Fault) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	errJSON, err := json.Marshal(fault)
	if err != nil {
		return storeErr(err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE crontabber
		SET ongoing = NULL, last_error = $2, error_count = error_count + 1, next_run = $3
		WHERE app_name = $1`, identifier, errJSON, nextDue)
	if err != nil {
		return storeErr(err)
	}

	var kind, msg, trace string
	if fault != nil {
		kind, msg, trace = fault.Kind, fault.Message, fault.Traceback
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO crontabber_log (app_name, log_time, duration, success, exc_type, exc_value, exc_traceback)
		VALUES ($1, $2, $3, FALSE, $4, $5, $6)`, identifier, finishedAt, toInterval(duration), kind, msg, trace)
	if err != nil {
		return storeErr(err)
	}

	return storeErr(tx.Commit(ctx))
}

func (s *Store) Reset(ctx context.Context, identifier string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM crontabber WHERE app_name = $1`, identifier)
	return storeErr(err)
}

func (s *Store) LatestRunLog(ctx context.Context, identifier string) (*store.RunLogEntry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, app_name, log_time, duration, success, exc_type, exc_value, exc_traceback
		FROM crontabber_log WHERE app_name = $1
		ORDER BY log_time DESC, id DESC LIMIT 1`, identifier)

	var e store.RunLogEntry
	var excType, excValue, excTrace *string
	var duration pgtype.Interval
	err := row.Scan(&e.ID, &e.Identifier, &e.Timestamp, &duration, &e.Success, &excType, &excValue, &excTrace)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	e.Duration = fromInterval(duration)
	if excType != nil {
		e.ErrorKind = *excType
	}
	if excValue != nil {
		e.ErrorMessage = *excValue
	}
	if excTrace != nil {
		e.ErrorTraceback = *excTrace
	}
	return &e, nil
}

func (s *Store) GateAcquire(ctx context.Context, claimedAt time.Time, owner string, maxOngoingAge time.Duration) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT owner, claimed_at FROM crontabber_gate WHERE id = TRUE FOR UPDATE`)
	var curOwner *string
	var curClaimed *time.Time
	err = row.Scan(&curOwner, &curClaimed)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		_, err = tx.Exec(ctx, `INSERT INTO crontabber_gate (id, owner, claimed_at) VALUES (TRUE, $1, $2)`, owner, claimedAt)
		if err != nil {
			return storeErr(err)
		}
	case err != nil:
		return storeErr(err)
	default:
		if curClaimed != nil && claimedAt.Sub(*curClaimed) <= maxOngoingAge {
			return store.ErrRowLocked
		}
		_, err = tx.Exec(ctx, `UPDATE crontabber_gate SET owner = $1, claimed_at = $2 WHERE id = TRUE`, owner, claimedAt)
		if err != nil {
			return storeErr(err)
		}
	}

	return storeErr(tx.Commit(ctx))
}

func (s *Store) GateRelease(ctx context.Context, owner string) error {
	_, err := s.pool.Exec(ctx, `UPDATE crontabber_gate SET owner = NULL, claimed_at = NULL WHERE id = TRUE AND owner = $1`, owner)
	return storeErr(err)
}

func scanJobState(row pgx.Row) (*store.JobState, error) {
	var j store.JobState
	var firstRun, lastRun, lastSuccess, ongoing *time.Time
	var dependsOn []string
	var lastErrorJSON []byte

	err := row.Scan(&j.Identifier, &j.NextRunTime, &firstRun, &lastRun, &lastSuccess,
		&j.ErrorCount, &dependsOn, &lastErrorJSON, &ongoing)
	if err != nil {
		return nil, err
	}
	if firstRun != nil {
		j.FirstRunTime = *firstRun
	}
	if lastRun != nil {
		j.LastRunTime = *lastRun
	}
	j.LastSuccess = lastSuccess
	j.Ongoing = ongoing
	j.DependsOn = dependsOn
	if len(lastErrorJSON) > 0 {
		var f runnererr.Fault
		if err := json.Unmarshal(lastErrorJSON, &f); err == nil {
			j.LastError = &f
		}
	}
	return &j, nil
}

// toInterval converts a Go duration to the microsecond-resolution form
// pgtype.Interval expects, leaving months/days at zero since run durations
// never approach calendar-unit magnitude.
func toInterval(d time.Duration) pgtype.Interval {
	return pgtype.Interval{Microseconds: d.Microseconds(), Valid: true}
}

func fromInterval(iv pgtype.Interval) time.Duration {
	if !iv.Valid {
		return 0
	}
	return time.Duration(iv.Microseconds)*time.Microsecond +
		time.Duration(iv.Days)*24*time.Hour +
		time.Duration(iv.Months)*30*24*time.Hour
}

// storeErr classifies a backing-store error per spec §7: any failure other
// than pgx.ErrNoRows (handled by callers directly) is a StoreError — fatal for
// this invocation, recovered on the next one via the stale-claim mechanism.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return runnererr.Newf(runnererr.KindStoreError, "", "postgres error %s: %s", pgErr.Code, pgErr.Message)
	}
	return runnererr.Wrap(runnererr.KindStoreError, "", err)
}
