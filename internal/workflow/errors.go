package workflow

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Sentinels matched by the typed errors below via errors.Is.
var (
	ErrMissingArtifact = errors.New("missing artifact")
	ErrParse           = errors.New("unexpected tool output")
)

// MissingArtifactError lists every required file that is absent.
type MissingArtifactError struct {
	Paths []string
}

func (e *MissingArtifactError) Error() string {
	return "Required files are missing: " + strings.Join(e.Paths, ", ")
}

func (e *MissingArtifactError) Is(target error) bool { return target == ErrMissingArtifact }

// ParseFailure reports that a tool's stdout lacked the token a stage needs.
type ParseFailure struct {
	Tool     string
	Expected string
	Output   string
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("could not find %s in %s output", e.Expected, e.Tool)
}

func (e *ParseFailure) Is(target error) bool { return target == ErrParse }

// SuggestedError decorates an error with remediation hints. The wrapped
// error stays reachable through errors.As.
type SuggestedError struct {
	Err   error
	Hints []string
}

func (e *SuggestedError) Error() string         { return e.Err.Error() }
func (e *SuggestedError) Unwrap() error         { return e.Err }
func (e *SuggestedError) Suggestions() []string { return e.Hints }

// Suggest attaches explicit hints to err.
func Suggest(err error, hints ...string) error {
	if err == nil {
		return nil
	}
	return &SuggestedError{Err: err, Hints: hints}
}

// ValidateFilesExist returns a MissingArtifactError naming every path that
// does not exist, or nil.
func ValidateFilesExist(paths ...string) error {
	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return &MissingArtifactError{Paths: missing}
	}
	return nil
}
