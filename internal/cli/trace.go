package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpromedia/aivo-sequencing/internal/config"
	"github.com/artpromedia/aivo-sequencing/internal/runstate"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Registration string
	Kind         string // optional - "navigation" or "result"
}

// TimelineEntry is one navigation event rendered for the trace timeline.
type TimelineEntry struct {
	Seq     int64     `json:"seq"`
	Kind    string    `json:"kind"`
	Input   string    `json:"input"`
	Outcome string    `json:"outcome"`
	At      time.Time `json:"at"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Navigations int `json:"navigations"`
	Reports     int `json:"reports"`
	Exceptions  int `json:"exceptions"`
	Deliveries  int `json:"deliveries"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Registration string          `json:"registration"`
	CourseID     string          `json:"course_id"`
	LearnerID    string          `json:"learner_id"`
	Timeline     []TimelineEntry `json:"timeline"`
	Stats        TraceStats      `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print a registration's navigation log",
		Long: `Print the recorded navigation log of a registration.

Each entry shows the orchestrator call (navigation request or result
report) and its recorded outcome: the delivered activity, the session
end, or the exception code that rejected it. Ordering follows the
per-registration sequence number, never timestamps.

Examples:
  aivoseq trace --registration 0190f8a3-...
  aivoseq trace --registration 0190f8a3-... --kind navigation
  aivoseq trace --registration 0190f8a3-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Registration, "registration", "", "registration ID to trace (required)")
	_ = cmd.MarkFlagRequired("registration")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind (navigation|result)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Kind != "" && opts.Kind != string(runstate.EventNavigation) && opts.Kind != string(runstate.EventResult) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid kind %q: must be navigation or result", opts.Kind))
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

	events, err := st.ReadEvents(ctx, opts.Registration, 0)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	result := TraceResult{
		Registration: reg.ID,
		CourseID:     reg.CourseID,
		LearnerID:    reg.LearnerID,
		Timeline:     buildTimeline(events, opts.Kind),
		Stats:        buildTraceStats(events),
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}

	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTimeline renders the events, optionally filtered to one kind.
func buildTimeline(events []runstate.NavEvent, kindFilter string) []TimelineEntry {
	timeline := make([]TimelineEntry, 0, len(events))
	for _, ev := range events {
		if kindFilter != "" && string(ev.Kind) != kindFilter {
			continue
		}
		timeline = append(timeline, TimelineEntry{
			Seq:     ev.Seq,
			Kind:    string(ev.Kind),
			Input:   ev.Describe(),
			Outcome: ev.Outcome(),
			At:      ev.At,
		})
	}
	return timeline
}

// buildTraceStats summarizes the full log, ignoring any kind filter.
func buildTraceStats(events []runstate.NavEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, ev := range events {
		switch ev.Kind {
		case runstate.EventNavigation:
			stats.Navigations++
		case runstate.EventResult:
			stats.Reports++
		}
		if ev.Exception != "" {
			stats.Exceptions++
		}
		if ev.Delivered != "" {
			stats.Deliveries++
		}
	}
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for Registration: %s\n", result.Registration)
	fmt.Fprintf(w, "Course: %s  Learner: %s\n", result.CourseID, result.LearnerID)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, entry := range result.Timeline {
			fmt.Fprintf(w, "  [%d] %s -> %s\n", entry.Seq, entry.Input, entry.Outcome)
			if verbose {
				fmt.Fprintf(w, "       At: %s\n", entry.At.Format(time.RFC3339))
			}
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Navigations:  %d\n", result.Stats.Navigations)
	fmt.Fprintf(w, "  Reports:      %d\n", result.Stats.Reports)
	fmt.Fprintf(w, "  Deliveries:   %d\n", result.Stats.Deliveries)
	fmt.Fprintf(w, "  Exceptions:   %d\n", result.Stats.Exceptions)

	return nil
}
