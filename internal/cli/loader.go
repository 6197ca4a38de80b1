package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/artpromedia/aivo-sequencing/internal/activity"
	"github.com/artpromedia/aivo-sequencing/internal/compiler"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeCompileFailed = "E004" // Course failed to compile
	ErrCodeNotFound      = "E005" // Path not found
)

// LoadError represents an error that occurred while loading a course.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadCourse compiles the course at path, a single CUE file or a package
// directory. Compile failures come back as *LoadError with position info
// where CUE provides it; semantic validation is the caller's concern.
func LoadCourse(path string) (*activity.Definition, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("course not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing course: %v", err)}
	}

	var def *activity.Definition
	if info.IsDir() {
		def, err = compiler.CompileDir(path)
	} else {
		def, err = compiler.CompileFile(path)
	}
	if err != nil {
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) {
			return nil, &LoadError{
				Code:    ErrCodeCompileFailed,
				Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
				Pos:     compileErr.Pos,
			}
		}
		return nil, &LoadError{Code: ErrCodeCompileFailed, Message: err.Error()}
	}

	return def, nil
}

// LoadValidCourse compiles the course and runs semantic validation,
// returning the definition only when both pass. Used by commands that need
// a runnable course rather than a validation report.
func LoadValidCourse(path string) (*activity.Definition, error) {
	def, err := LoadCourse(path)
	if err != nil {
		return nil, err
	}
	if errs := compiler.Validate(def); len(errs) > 0 {
		return nil, &LoadError{
			Code:    errs[0].Code,
			Message: fmt.Sprintf("course failed validation: %s", errs[0].Error()),
		}
	}
	return def, nil
}
