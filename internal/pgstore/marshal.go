package pgstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/artpromedia/aivo-sequencing/internal/engine"
	"github.com/artpromedia/aivo-sequencing/internal/runstate"
)

// marshalSnapshot converts a session snapshot to JSON for the JSONB
// column.
func marshalSnapshot(snap *engine.SessionSnapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return data, nil
}

// unmarshalSnapshot parses a JSONB snapshot back into its struct form.
// JSONB re-serializes with its own key order; that is invisible after
// unmarshalling.
func unmarshalSnapshot(data []byte) (*engine.SessionSnapshot, error) {
	var snap engine.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// marshalResult converts a reported result to JSON, nil (SQL NULL) when
// the event carries none.
func marshalResult(r *runstate.ReportedResult) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return data, nil
}

// unmarshalResult parses the result column, nil when NULL.
func unmarshalResult(data []byte) (*runstate.ReportedResult, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var r runstate.ReportedResult
	if err := json.Unmarshal(data, &r); err != nil {
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
