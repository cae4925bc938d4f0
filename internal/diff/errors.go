package diff

import (
	"errors"
	"fmt"
	"strings"
)

// ComparisonFailedError is returned by Compare when non-ignored differences
// remain. The full diff list is kept for debugging.
type ComparisonFailedError struct {
	Diffs []Entry
}

// Error implements the error interface.
func (e *ComparisonFailedError) Error() string {
	lines := make([]string, len(e.Diffs))
	for i, d := range e.Diffs {
		lines[i] = d.String()
	}
	return fmt.Sprintf("comparison failed with %d difference(s): %s", len(e.Diffs), strings.Join(lines, "; "))
}

// IsComparisonFailed returns true if the error is a ComparisonFailedError.
// Uses errors.As to handle wrapped errors.
func IsComparisonFailed(err error) bool {
	var cf *ComparisonFailedError
	return errors.As(err, &cf)
}

// DiffsOf returns the diff list carried by err, or nil.
func DiffsOf(err error) []Entry {
	var cf *ComparisonFailedError
	if errors.As(err, &cf) {
		return cf.Diffs
	}
	return nil
}
