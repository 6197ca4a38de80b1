package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
	"github.com/artpromedia/aivo-sequencing/internal/engine"
	"github.com/artpromedia/aivo-sequencing/internal/runstate"
	"github.com/artpromedia/aivo-sequencing/internal/store"
)

var traceAt = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

// seedTraceStore points the configuration at a throwaway store holding one
// registration with a four-event log: a delivery, a result report, a
// rejected request and the session end.
func seedTraceStore(t *testing.T) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "trace.db")

	t.Setenv("AIVOSEQ_CONFIG_PATH", "")
	t.Setenv("AIVOSEQ_STORE_PATH", dbPath)
	t.Setenv("AIVOSEQ_POSTGRES_URL", "")
	t.Setenv("AIVOSEQ_REDIS_URL", "")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	reg := &runstate.Registration{
		ID:        "reg-trace",
		CourseID:  "course-101",
		LearnerID: "learner-9",
		Seed:      7,
		CreatedAt: traceAt,
		UpdatedAt: traceAt,
	}
	require.NoError(t, st.CreateRegistration(ctx, reg))

	events := []runstate.NavEvent{
		{Kind: runstate.EventNavigation, Request: "start", Delivered: "lesson-01", At: traceAt},
		{Kind: runstate.EventResult, Result: &runstate.ReportedResult{Completion: activity.CompletionCompleted}, At: traceAt.Add(time.Minute)},
		{Kind: runstate.EventNavigation, Request: "continue", Exception: "NB.2.1-12", At: traceAt.Add(2 * time.Minute)},
		{Kind: runstate.EventNavigation, Request: "exitAll", Ended: true, At: traceAt.Add(3 * time.Minute)},
	}
	snap := &engine.SessionSnapshot{Current: "lesson-01", Tree: &activity.Snapshot{}}
	for i := range events {
		_, err := st.SaveState(ctx, "reg-trace", snap, &events[i])
		require.NoError(t, err)
	}
}

func TestTraceCommand_Timeline(t *testing.T) {
	seedTraceStore(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--registration", "reg-trace"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "Trace for Registration: reg-trace")
	assert.Contains(t, output, "Course: course-101  Learner: learner-9")
	assert.Contains(t, output, "[1] start -> deliver lesson-01")
	assert.Contains(t, output, "[2] result completion=completed -> ok")
	assert.Contains(t, output, "[3] continue -> NB.2.1-12")
	assert.Contains(t, output, "[4] exitAll -> ended")
	assert.Contains(t, output, "Total Events: 4")
	assert.Contains(t, output, "Navigations:  3")
	assert.Contains(t, output, "Reports:      1")
	assert.Contains(t, output, "Deliveries:   1")
	assert.Contains(t, output, "Exceptions:   1")
}

func TestTraceCommand_KindFilter(t *testing.T) {
	seedTraceStore(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--registration", "reg-trace", "--kind", "result"})

	err := cmd.Execute()
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "[2] result completion=completed -> ok")
	assert.NotContains(t, output, "[1] start")
	assert.NotContains(t, output, "[4] exitAll")

	// Stats always summarize the full log
	assert.Contains(t, output, "Total Events: 4")
}

func TestTraceCommand_JSON(t *testing.T) {
	seedTraceStore(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--registration", "reg-trace"})

	err := cmd.Execute()
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "reg-trace", data["registration"])
	assert.Equal(t, "course-101", data["course_id"])

	timeline, ok := data["timeline"].([]interface{})
	require.True(t, ok)
	assert.Len(t, timeline, 4)

	stats, ok := data["stats"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(4), stats["total_events"])
}

func TestTraceCommand_InvalidKind(t *testing.T) {
	seedTraceStore(t)

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--registration", "reg-trace", "--kind", "bogus"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid kind "bogus"`)
}

func TestTraceCommand_UnknownRegistration(t *testing.T) {
	seedTraceStore(t)

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--registration", "ghost"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to read registration ghost")
}

func TestTraceCommand_NoEvents(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	t.Setenv("AIVOSEQ_CONFIG_PATH", "")
	t.Setenv("AIVOSEQ_STORE_PATH", dbPath)
	t.Setenv("AIVOSEQ_POSTGRES_URL", "")
	t.Setenv("AIVOSEQ_REDIS_URL", "")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	reg := &runstate.Registration{
		ID: "reg-idle", CourseID: "course-101", LearnerID: "learner-9",
		CreatedAt: traceAt, UpdatedAt: traceAt,
	}
	require.NoError(t, st.CreateRegistration(context.Background(), reg))
	require.NoError(t, st.Close())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--registration", "reg-idle"})

	err = cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "(no events)")
	assert.Contains(t, buf.String(), "Total Events: 0")
}

func TestTraceCommand_RequiresRegistrationFlag(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"registration" not set`)
}

func TestTraceCommand_VerboseShowsTimestamps(t *testing.T) {
	seedTraceStore(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true}
	cmd := NewTraceCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--registration", "reg-trace"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "At: 2025-03-01T09:00:00Z")
}
