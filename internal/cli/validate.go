package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
	"github.com/artpromedia/aivo-sequencing/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <course>",
		Short: "Compile and validate a course definition",
		Long: `Compile a CUE course definition and check its semantics.

Reports schema problems with source positions and semantic problems
(duplicate identifiers, undeliverable leaves, out-of-range thresholds)
with their error codes. All semantic errors are collected in one run.

Exit codes:
  0 - Course is valid
  1 - Course failed compilation or validation
  2 - Command error (path not found, etc.)

Examples:
  aivoseq validate ./courses/algebra.cue
  aivoseq validate ./courses/algebra --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, coursePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	def, err := LoadCourse(coursePath)
	if err != nil {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
		}
		if loadErr.Code == ErrCodeNotFound {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			return NewExitError(ExitCommandError, loadErr.Error())
		}
		// Compile failures are course content problems, reported like
		// validation errors
		return outputValidationErrors(formatter, []compiler.ValidationError{{
			Field:   "course",
			Message: loadErr.Error(),
			Code:    loadErr.Code,
		}})
	}

	formatter.VerboseLog("Compiled course %q: %d activities", def.CourseID, countActivities(def))

	validationErrors := compiler.Validate(def)
	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter, def)
}

// countActivities counts the nodes of a definition tree.
func countActivities(def *activity.Definition) int {
	var walk func(n activity.Node) int
	walk = func(n activity.Node) int {
		count := 1
		for _, child := range n.Children {
			count += walk(child)
		}
		return count
	}
	return walk(def.Root)
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, def *activity.Definition) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}

	fmt.Fprintf(formatter.Writer, "✓ Course %q valid\n", def.CourseID)
	return nil
}

// outputValidationErrors outputs validation errors and fails the command.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Errors: errs,
			},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", err.Error())
	}
	fmt.Fprintln(formatter.Writer)

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
