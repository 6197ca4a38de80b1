package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
	"github.com/artpromedia/aivo-sequencing/internal/config"
	"github.com/artpromedia/aivo-sequencing/internal/engine"
	"github.com/artpromedia/aivo-sequencing/internal/harness"
	"github.com/artpromedia/aivo-sequencing/internal/lock"
	"github.com/artpromedia/aivo-sequencing/internal/pgstore"
	"github.com/artpromedia/aivo-sequencing/internal/runstate"
	"github.com/artpromedia/aivo-sequencing/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Registration string
	Learner      string

	// IDs allows overriding the registration ID generator (for testing).
	// If nil, defaults to runstate.UUIDv7Generator.
	IDs runstate.IDGenerator
}

// RunResult holds the outcome of one persisted scenario run.
type RunResult struct {
	Registration string   `json:"registration"`
	Scenario     string   `json:"scenario"`
	Events       int      `json:"events"`
	Resumed      bool     `json:"resumed,omitempty"`
	Pass         bool     `json:"pass"`
	Errors       []string `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Execute a scenario against the persistent store",
		Long: `Execute a scenario against a registration in the persistent store.

Creates a registration (or resumes the one named by --registration),
drives the session step by step, and saves the snapshot plus one
navigation event per step. The store comes from configuration:
PostgreSQL when AIVOSEQ_POSTGRES_URL is set, embedded SQLite otherwise.
With AIVOSEQ_REDIS_URL set, the registration is locked for the
duration of the run.

Exit codes:
  0 - Scenario passed
  1 - Expectations or final assertions failed
  2 - Command error (store not reachable, course invalid, etc.)

Examples:
  aivoseq run ./scenarios/linear-walk.yaml
  aivoseq run ./scenarios/linear-walk.yaml --learner learner-7
  aivoseq run ./scenarios/resume.yaml --registration 0190f8a3-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPersisted(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Registration, "registration", "", "registration ID to create or resume (default: new UUIDv7)")
	cmd.Flags().StringVar(&opts.Learner, "learner", "local", "learner ID recorded on new registrations")

	return cmd
}

func runPersisted(opts *RunOptions, scenarioPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	logLevel, _ := cfg.Log.SlogLevel() // Load already validated the level
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	scenario, err := harness.LoadScenario(scenarioPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	def, err := LoadValidCourse(scenario.Course)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load course", err)
	}
	tree, err := activity.NewTree(*def)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build activity tree", err)
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing store", "error", closeErr)
		}
	}()

	gen := opts.IDs
	if gen == nil {
		gen = runstate.UUIDv7Generator{}
	}
	registrationID := opts.Registration
	if registrationID == "" {
		registrationID = gen.NewID()
	}

	if cfg.Redis.URL != "" {
		client, connErr := lock.Connect(cfg.Redis.URL)
		if connErr != nil {
			return WrapExitError(ExitCommandError, "failed to connect to redis", connErr)
		}
		lease, lockErr := lock.New(client, cfg.Redis.LockTTL.Std()).Acquire(ctx, registrationID)
		if lockErr != nil {
			return WrapExitError(ExitCommandError, "failed to lock registration", lockErr)
		}
		defer func() {
			if releaseErr := lease.Release(ctx); releaseErr != nil {
				logger.Error("error releasing registration lock", "error", releaseErr)
			}
		}()
	}

	now := time.Now().UTC()
	reg := &runstate.Registration{
		ID:        registrationID,
		CourseID:  def.CourseID,
		LearnerID: opts.Learner,
		Seed:      scenario.Seed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	resumed := false
	err = st.CreateRegistration(ctx, reg)
	switch {
	case errors.Is(err, runstate.ErrExists):
		existing, readErr := st.ReadRegistration(ctx, registrationID)
		if readErr != nil {
			return WrapExitError(ExitCommandError, "failed to read registration", readErr)
		}
		if existing.CourseID != def.CourseID {
			return NewExitError(ExitCommandError, fmt.Sprintf(
				"registration %s belongs to course %q, scenario course is %q",
				registrationID, existing.CourseID, def.CourseID))
		}
		reg = existing
		resumed = true
	case err != nil:
		return WrapExitError(ExitCommandError, "failed to create registration", err)
	}

	// The registration's seed wins over the scenario's: selection draws
	// must reproduce what the learner already saw.
	clock := runstate.NewPinnedClock(now)
	sess := engine.NewSession(tree,
		engine.WithClock(clock),
		engine.WithRandomSeed(reg.Seed),
		engine.WithLogger(logger),
	)

	if resumed {
		snap, readErr := st.ReadState(ctx, registrationID)
		switch {
		case errors.Is(readErr, runstate.ErrNotFound):
			// Registration exists but was never driven; start fresh
		case readErr != nil:
			return WrapExitError(ExitCommandError, "failed to read saved state", readErr)
		default:
			if restoreErr := sess.RestoreSnapshot(snap); restoreErr != nil {
				return WrapExitError(ExitCommandError, "failed to restore saved state", restoreErr)
			}
		}
	}

	result := harness.NewResult()
	for i, step := range scenario.Steps {
		at := time.Now().UTC()
		clock.Pin(at)

		var ev runstate.NavEvent
		if step.Request != "" {
			req, parseErr := engine.ParseNavigationRequest(step.Request)
			if parseErr != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("steps[%d]", i), parseErr)
			}
			del, navErr := sess.ProcessNavigation(req)
			ev = runstate.NavigationEvent(req, del, navErr, at)
		} else {
			r, convErr := step.Report.EngineResult()
			if convErr != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("steps[%d]", i), convErr)
			}
			callErr := sess.RecordResult(r)
			ev = runstate.ResultEvent(r, callErr, at)
		}

		seq, saveErr := st.SaveState(ctx, registrationID, sess.Snapshot(), &ev)
		if saveErr != nil {
			return WrapExitError(ExitCommandError, "failed to save state", saveErr)
		}
		result.Trace = append(result.Trace, ev)

		logger.Debug("step recorded",
			"registration", registrationID,
			"seq", seq,
			"request", ev.Describe(),
			"outcome", ev.Outcome(),
		)

		if step.Expect != nil {
			if want, got := step.Expect.Outcome(), ev.Outcome(); want != got {
				result.AddError(fmt.Sprintf("steps[%d] (%s): expected %s, got %s", i, ev.Describe(), want, got))
			}
		}
	}

	for _, want := range scenario.Final {
		harness.CheckTracking(result, sess.Tree(), want)
	}

	runResult := RunResult{
		Registration: registrationID,
		Scenario:     scenario.Name,
		Events:       len(result.Trace),
		Resumed:      resumed,
		Pass:         result.Pass,
		Errors:       result.Errors,
	}

	logger.Info("scenario executed",
		"registration", registrationID,
		"scenario", scenario.Name,
		"events", runResult.Events,
		"pass", runResult.Pass,
	)

	if opts.Format == "json" {
		return outputRunJSON(cmd, runResult)
	}
	return outputRunText(cmd, runResult)
}

// openStore selects the run-state backend from configuration: PostgreSQL
// when a URL is configured, the embedded SQLite store otherwise.
func openStore(ctx context.Context, cfg config.Config) (runstate.Store, error) {
	if cfg.Postgres.URL != "" {
		return pgstore.Open(ctx, cfg.Postgres.URL)
	}
	return store.Open(cfg.Store.Path)
}

// outputRunJSON outputs the run result as JSON.
func outputRunJSON(cmd *cobra.Command, result RunResult) error {
	status := "ok"
	if !result.Pass {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}
	if !result.Pass {
		response.Error = &CLIError{
			Code:    "E_RUN_FAILED",
			Message: fmt.Sprintf("%d expectation(s) failed", len(result.Errors)),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d expectation(s) failed", len(result.Errors)))
	}
	return nil
}

// outputRunText outputs the run result as text.
func outputRunText(cmd *cobra.Command, result RunResult) error {
	w := cmd.OutOrStdout()

	if result.Pass {
		fmt.Fprintf(w, "✓ %s\n", result.Scenario)
	} else {
		fmt.Fprintf(w, "✗ %s\n", result.Scenario)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "Registration: %s (%d event(s) recorded)\n", result.Registration, result.Events)

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("%d expectation(s) failed", len(result.Errors)))
	}
	return nil
}
