package merge

import (
	"fmt"
	"strings"
)

// MalformedGuardError reports a file whose guard triple is missing, mismatched
// or not closed before end of file.
type MalformedGuardError struct {
	Path  string
	State State // Last state reached.
}

func (e *MalformedGuardError) Error() string {
	return fmt.Sprintf("invalid file %q: state %s", e.Path, e.State)
}

// MissingIncludeError reports a file that could not be read.
type MissingIncludeError struct {
	Path         string
	IncludedFrom string // Empty for the root file.
	Err          error
}

func (e *MissingIncludeError) Error() string {
	if e.IncludedFrom == "" {
		return fmt.Sprintf("cannot read %q: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("cannot read %q (included from %q): %v", e.Path, e.IncludedFrom, e.Err)
}

func (e *MissingIncludeError) Unwrap() error {
	return e.Err
}

// CycleError reports a local include of a file that is still being resolved.
type CycleError struct {
	Chain []string // From the first occurrence of the repeated file back to itself.
}

func (e *CycleError) Error() string {
	return "include cycle: " + strings.Join(e.Chain, " -> ")
}
