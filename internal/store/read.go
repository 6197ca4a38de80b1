package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artpromedia/aivo-sequencing/internal/engine"
	"github.com/artpromedia/aivo-sequencing/internal/runstate"
)

// ReadRegistration loads a registration by ID.
// Returns runstate.ErrNotFound when absent.
func (s *Store) ReadRegistration(ctx context.Context, id string) (*runstate.Registration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, course_id, learner_id, seed, created_at, updated_at
		FROM registrations
		WHERE id = ?
	`, id)

	var reg runstate.Registration
	var seed int64
	var created, updated string
	err := row.Scan(&reg.ID, &reg.CourseID, &reg.LearnerID, &seed, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("registration %s: %w", id, runstate.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read registration: %w", err)
	}

	reg.Seed = uint64(seed)
	if reg.CreatedAt, err = parseInstant(created); err != nil {
		return nil, fmt.Errorf("read registration: %w", err)
	}
	if reg.UpdatedAt, err = parseInstant(updated); err != nil {
		return nil, fmt.Errorf("read registration: %w", err)
	}
	return &reg, nil
}

// ReadState loads the registration's latest session snapshot.
// Returns runstate.ErrNotFound when no state has been saved yet.
func (s *Store) ReadState(ctx context.Context, registrationID string) (*engine.SessionSnapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT snapshot FROM state_snapshots WHERE registration_id = ?
	`, registrationID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, request, result, delivered, ended, exception, at
		FROM nav_events
		WHERE registration_id = ? AND seq > ?
		ORDER BY seq ASC
	`, registrationID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []runstate.NavEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (runstate.NavEvent, error) {
	var ev runstate.NavEvent
	var kind string
	var result sql.NullString
	var at string
	err := rows.Scan(&ev.Seq, &kind, &ev.Request, &result, &ev.Delivered, &ev.Ended, &ev.Exception, &at)
	if err != nil {
		return runstate.NavEvent{}, fmt.Errorf("scan event: %w", err)
	}

	ev.Kind = runstate.EventKind(kind)
	if ev.Result, err = unmarshalResult(result); err != nil {
		return runstate.NavEvent{}, fmt.Errorf("scan event: %w", err)
	}
	if ev.At, err = parseInstant(at); err != nil {
		return runstate.NavEvent{}, fmt.Errorf("scan event: %w", err)
	}
	return ev, nil
}
