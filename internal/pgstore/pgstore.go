// Package pgstore provides the PostgreSQL runstate.Store backend for
// platform deployment.
//
// It carries the same contract as the SQLite backend: SaveState commits
// the snapshot and the log entry in one transaction, and nav_events
// ordering uses seq, never timestamps. Snapshots and result payloads are
// stored as JSONB so platform tooling can query into them.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/artpromedia/aivo-sequencing/internal/engine"
	"github.com/artpromedia/aivo-sequencing/internal/runstate"
)

//go:embed schema.sql
var schemaSQL string

// Store is the PostgreSQL runstate.Store backend.
type Store struct {
	pool *pgxpool.Pool
}

var _ runstate.Store = (*Store)(nil)

// Open creates a connection pool to PostgreSQL and ensures the run-state
// schema exists. The schema statements are idempotent, so concurrent
// platform nodes can open the same database.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// CreateRegistration inserts a new registration record.
// Returns runstate.ErrExists when the ID is already taken.
func (s *Store) CreateRegistration(ctx context.Context, reg *runstate.Registration) error {
	// Seeds round-trip through BIGINT; two's complement keeps the full
	// uint64 range
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO registrations
		(id, course_id, learner_id, seed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`,
		reg.ID,
		reg.CourseID,
		reg.LearnerID,
		int64(reg.Seed),
		reg.CreatedAt,
		reg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create registration %s: %w", reg.ID, runstate.ErrExists)
	}
	return nil
}

// ReadRegistration loads a registration by ID.
// Returns runstate.ErrNotFound when absent.
func (s *Store) ReadRegistration(ctx context.Context, id string) (*runstate.Registration, error) {
	var reg runstate.Registration
	var seed int64
	err := s.pool.QueryRow(ctx, `
		SELECT id, course_id, learner_id, seed, created_at, updated_at
		FROM registrations
		WHERE id = $1
	`, id).Scan(&reg.ID, &reg.CourseID, &reg.LearnerID, &seed, &reg.CreatedAt, &reg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("registration %s: %w", id, runstate.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read registration: %w", err)
	}

	reg.Seed = uint64(seed)
	reg.CreatedAt = reg.CreatedAt.UTC()
	reg.UpdatedAt = reg.UpdatedAt.UTC()
	return &reg, nil
}

// SaveState replaces the registration's snapshot and appends ev to its
// event log in one transaction. The next per-registration sequence number
// is assigned inside the transaction, written into ev.Seq and returned;
// it is 0 when ev is nil.
func (s *Store) SaveState(ctx context.Context, registrationID string, snap *engine.SessionSnapshot, ev *runstate.NavEvent) (int64, error) {
	data, err := marshalSnapshot(snap)
	if err != nil {
		return 0, fmt.Errorf("save state: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("save state: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var one int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM registrations WHERE id = $1 FOR UPDATE`, registrationID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("save state for %s: %w", registrationID, runstate.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("save state: check registration: %w", err)
	}

	now := time.Now().UTC()

	_, err = tx.Exec(ctx, `
		INSERT INTO state_snapshots (registration_id, snapshot, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (registration_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`, registrationID, data, now)
	if err != nil {
		return 0, fmt.Errorf("save state: write snapshot: %w", err)
	}

	var seq int64
	if ev != nil {
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(seq), 0) + 1
			FROM nav_events
			WHERE registration_id = $1
		`, registrationID).Scan(&seq)
		if err != nil {
			return 0, fmt.Errorf("save state: next seq: %w", err)
		}

		resultJSON, merr := marshalResult(ev.Result)
		if merr != nil {
			return 0, fmt.Errorf("save state: %w", merr)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO nav_events
			(registration_id, seq, kind, request, result, delivered, ended, exception, at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			registrationID,
			seq,
			string(ev.Kind),
			ev.Request,
			resultJSON,
			ev.Delivered,
			ev.Ended,
			ev.Exception,
			formatInstant(ev.At),
		)
		if err != nil {
			return 0, fmt.Errorf("save state: append event: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE registrations SET updated_at = $1 WHERE id = $2`, now, registrationID,
	)
	if err != nil {
		return 0, fmt.Errorf("save state: touch registration: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("save state: commit: %w", err)
	}
	if ev != nil {
		ev.Seq = seq
	}
	return seq, nil
}

// ReadState loads the registration's latest session snapshot.
// Returns runstate.ErrNotFound when no state has been saved yet.
func (s *Store) ReadState(ctx context.Context, registrationID string) (*engine.SessionSnapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `
		SELECT snapshot FROM state_snapshots WHERE registration_id = $1
	`, registrationID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("state for %s: %w", registrationID, runstate.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	return unmarshalSnapshot(data)
}

// ReadEvents returns the registration's events with seq greater than
// afterSeq in ascending sequence order. afterSeq 0 reads the whole log.
//
// Returns an empty slice, not nil, when no events match.
func (s *Store) ReadEvents(ctx context.Context, registrationID string, afterSeq int64) ([]runstate.NavEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, kind, request, result, delivered, ended, exception, at
		FROM nav_events
		WHERE registration_id = $1 AND seq > $2
		ORDER BY seq ASC
	`, registrationID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []runstate.NavEvent{}
	for rows.Next() {
		var ev runstate.NavEvent
		var kind string
		var result []byte
		var at string
		err := rows.Scan(&ev.Seq, &kind, &ev.Request, &result, &ev.Delivered, &ev.Ended, &ev.Exception, &at)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.Kind = runstate.EventKind(kind)
		if ev.Result, err = unmarshalResult(result); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ev.At, err = parseInstant(at); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
