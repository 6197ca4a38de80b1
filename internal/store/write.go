package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/artpromedia/aivo-sequencing/internal/engine"
	"github.com/artpromedia/aivo-sequencing/internal/runstate"
)

// CreateRegistration inserts a new registration record.
// Returns runstate.ErrExists when the ID is already taken.
func (s *Store) CreateRegistration(ctx context.Context, reg *runstate.Registration) error {
	// Seeds round-trip through int64; two's complement keeps the full
	// uint64 range
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO registrations
		(id, course_id, learner_id, seed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		reg.ID,
		reg.CourseID,
		reg.LearnerID,
		int64(reg.Seed),
		formatInstant(reg.CreatedAt),
		formatInstant(reg.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create registration: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create registration: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("create registration %s: %w", reg.ID, runstate.ErrExists)
	}
	return nil
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("save state: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var one int
	err = tx.QueryRowContext(ctx,
		`SELECT 1 FROM registrations WHERE id = ?`, registrationID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("save state for %s: %w", registrationID, runstate.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("save state: check registration: %w", err)
	}

	now := formatInstant(time.Now())

	_, err = tx.ExecContext(ctx, `
		INSERT INTO state_snapshots (registration_id, snapshot, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(registration_id) DO UPDATE SET
			snapshot = excluded.snapshot,
			updated_at = excluded.updated_at
	`, registrationID, data, now)
	if err != nil {
		return 0, fmt.Errorf("save state: write snapshot: %w", err)
	}

	var seq int64
	if ev != nil {
		err = tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(seq), 0) + 1
			FROM nav_events
			WHERE registration_id = ?
		`, registrationID).Scan(&seq)
		if err != nil {
			return 0, fmt.Errorf("save state: next seq: %w", err)
		}

		resultJSON, merr := marshalResult(ev.Result)
		if merr != nil {
			return 0, fmt.Errorf("save state: %w", merr)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO nav_events
			(registration_id, seq, kind, request, result, delivered, ended, exception, at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
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

	_, err = tx.ExecContext(ctx,
		`UPDATE registrations SET updated_at = ? WHERE id = ?`, now, registrationID,
	)
	if err != nil {
		return 0, fmt.Errorf("save state: touch registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("save state: commit: %w", err)
	}
	if ev != nil {
		ev.Seq = seq
	}
	return seq, nil
}
