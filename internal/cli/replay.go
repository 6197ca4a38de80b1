package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
	"github.com/artpromedia/aivo-sequencing/internal/config"
	"github.com/artpromedia/aivo-sequencing/internal/engine"
	"github.com/artpromedia/aivo-sequencing/internal/runstate"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Registration string
	Course       string
}

// ReplayResult holds the replay verification result.
type ReplayResult struct {
	Registration  string `json:"registration"`
	Events        int    `json:"events"`
	Deterministic bool   `json:"deterministic"`
	Divergence    string `json:"divergence,omitempty"`
	StateMatch    bool   `json:"state_match"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild a registration's state from its log",
		Long: `Rebuild a registration's state by replaying its navigation log.

Feeds the recorded events through a fresh session over the given course
with the registration's seed and the recorded instants, verifying that
every outcome still holds and that the rebuilt state matches the saved
snapshot. A divergence means the course definition no longer agrees
with the log, usually because it changed after the events were written.

Exit codes:
  0 - Replay deterministic and state matches
  1 - Divergence or state mismatch
  2 - Command error (registration not found, course mismatch, etc.)

Examples:
  aivoseq replay --registration 0190f8a3-... --course ./courses/algebra.cue
  aivoseq replay --registration 0190f8a3-... --course ./courses/algebra --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Registration, "registration", "", "registration ID to replay (required)")
	_ = cmd.MarkFlagRequired("registration")
	cmd.Flags().StringVar(&opts.Course, "course", "", "course the registration was enrolled in (required)")
	_ = cmd.MarkFlagRequired("course")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	reg, err := st.ReadRegistration(ctx, opts.Registration)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read registration %s", opts.Registration), err)
	}

	def, err := LoadValidCourse(opts.Course)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load course", err)
	}
	if def.CourseID != reg.CourseID {
		return NewExitError(ExitCommandError, fmt.Sprintf(
			"registration %s belongs to course %q, got %q", reg.ID, reg.CourseID, def.CourseID))
	}
	tree, err := activity.NewTree(*def)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build activity tree", err)
	}

	events, err := st.ReadEvents(ctx, reg.ID, 0)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	if len(events) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{
				Registration:  reg.ID,
				Deterministic: true,
				StateMatch:    true,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No events recorded for registration: %s\n", reg.ID)
		return nil
	}

	clock := runstate.NewPinnedClock(reg.CreatedAt)
	sess := engine.NewSession(tree,
		engine.WithClock(clock),
		engine.WithRandomSeed(reg.Seed),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Replay is a verification pass, not a run
	)

	result := ReplayResult{
		Registration:  reg.ID,
		Events:        len(events),
		Deterministic: true,
	}

	if replayErr := runstate.Replay(sess, clock, events); replayErr != nil {
		var div *runstate.DivergenceError
		if !errors.As(replayErr, &div) {
			return WrapExitError(ExitCommandError, "replay failed", replayErr)
		}
		result.Deterministic = false
		result.Divergence = div.Error()
	}

	if result.Deterministic {
		saved, readErr := st.ReadState(ctx, reg.ID)
		if readErr != nil {
			return WrapExitError(ExitCommandError, "failed to read saved state", readErr)
		}
		match, cmpErr := runstate.SameState(sess.Snapshot(), saved)
		if cmpErr != nil {
			return WrapExitError(ExitCommandError, "failed to compare states", cmpErr)
		}
		result.StateMatch = match
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}

	return outputReplayText(cmd, result)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	ok := result.Deterministic && result.StateMatch

	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !ok {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_REPLAY",
			Message: replayFailureMessage(result),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !ok {
		return NewExitError(ExitFailure, replayFailureMessage(result))
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult) error {
	w := cmd.OutOrStdout()

	if result.Deterministic && result.StateMatch {
		fmt.Fprintf(w, "✓ Registration: %s\n", result.Registration)
		fmt.Fprintf(w, "  Events replayed: %d\n", result.Events)
		fmt.Fprintln(w, "  Rebuilt state matches the saved snapshot")
		return nil
	}

	fmt.Fprintf(w, "✗ Registration: %s\n", result.Registration)
	fmt.Fprintf(w, "  Events replayed: %d\n", result.Events)
	if result.Divergence != "" {
		fmt.Fprintf(w, "  %s\n", result.Divergence)
	} else {
		fmt.Fprintln(w, "  Rebuilt state does not match the saved snapshot")
	}

	return NewExitError(ExitFailure, replayFailureMessage(result))
}

// replayFailureMessage names what went wrong with a failed replay.
func replayFailureMessage(result ReplayResult) string {
	if !result.Deterministic {
		return "replay diverged from the recorded log"
	}
	return "replayed state does not match the saved snapshot"
}
