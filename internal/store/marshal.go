package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/artpromedia/aivo-sequencing/internal/engine"
	"github.com/artpromedia/aivo-sequencing/internal/runstate"
)

// marshalSnapshot converts a session snapshot to JSON TEXT for storage.
// Map keys marshal sorted, so identical states store identical bytes.
func marshalSnapshot(snap *engine.SessionSnapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}

// unmarshalSnapshot parses JSON TEXT back into a session snapshot.
func unmarshalSnapshot(data string) (*engine.SessionSnapshot, error) {
	var snap engine.SessionSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// marshalResult converts a reported result to JSON TEXT, NULL when the
// event carries none.
func marshalResult(r *runstate.ReportedResult) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal result: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalResult parses the result column, nil when NULL.
func unmarshalResult(data sql.NullString) (*runstate.ReportedResult, error) {
	if !data.Valid {
		return nil, nil
	}
	var r runstate.ReportedResult
	if err := json.Unmarshal([]byte(data.String), &r); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &r, nil
}

// formatInstant renders an instant as RFC 3339 UTC TEXT with nanosecond
// precision.
func formatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseInstant parses a stored instant.
func parseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse instant %q: %w", s, err)
	}
	return t, nil
}
