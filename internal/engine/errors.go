package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while capturing or replaying a
// scope.
//
// Runtime errors include:
//   - Duplicate correlation: Begin called twice for one id
//   - Missing correlation id: a replay mode started without an id
//   - Missing recording: no timeline exists for the replayed operation
//   - No matching recording: every candidate entry was rejected
//   - Malformed entry: a recorded entry violates its structural invariants
//   - Sink failure: the sink could not read or write a scope
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// CorrelationID identifies the affected scope.
	CorrelationID string

	// Op identifies the operation (for replay errors).
	Op string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeDuplicateCorrelation indicates Begin was called for an id that
	// is already registered.
	ErrCodeDuplicateCorrelation RuntimeErrorCode = "DUPLICATE_CORRELATION"

	// ErrCodeMissingCorrelationID indicates a replay mode started without an id.
	ErrCodeMissingCorrelationID RuntimeErrorCode = "MISSING_CORRELATION_ID"

	// ErrCodeMissingRecording indicates the operation has no timeline.
	ErrCodeMissingRecording RuntimeErrorCode = "MISSING_RECORDING"

	// ErrCodeNoMatchingRecording indicates no entry matched the live arguments.
	ErrCodeNoMatchingRecording RuntimeErrorCode = "NO_MATCHING_RECORDING"

	// ErrCodeMalformedEntry indicates a recorded entry is structurally invalid.
	ErrCodeMalformedEntry RuntimeErrorCode = "MALFORMED_ENTRY"

	// ErrCodeSinkFailure indicates the sink could not serve a read or write.
	ErrCodeSinkFailure RuntimeErrorCode = "SINK_FAILURE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.CorrelationID != "" && e.Op != "":
		msg = fmt.Sprintf("%s (correlation=%s, op=%s)", msg, e.CorrelationID, e.Op)
	case e.CorrelationID != "":
		msg = fmt.Sprintf("%s (correlation=%s)", msg, e.CorrelationID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsDuplicateCorrelationError returns true if Begin found the id already
// registered. Uses errors.As to handle wrapped errors.
func IsDuplicateCorrelationError(err error) bool {
	return hasCode(err, ErrCodeDuplicateCorrelation)
}

// IsMissingCorrelationIDError returns true if a replay mode started without an id.
func IsMissingCorrelationIDError(err error) bool {
	return hasCode(err, ErrCodeMissingCorrelationID)
}

// IsMissingRecordingError returns true if the replayed operation had no timeline.
func IsMissingRecordingError(err error) bool {
	return hasCode(err, ErrCodeMissingRecording)
}

// IsNoMatchingRecordingError returns true if no recorded entry matched.
func IsNoMatchingRecordingError(err error) bool {
	return hasCode(err, ErrCodeNoMatchingRecording)
}

// IsMalformedEntryError returns true if a recorded entry was structurally invalid.
func IsMalformedEntryError(err error) bool {
	return hasCode(err, ErrCodeMalformedEntry)
}

// IsSinkError returns true if the sink failed.
func IsSinkError(err error) bool {
	return hasCode(err, ErrCodeSinkFailure)
}

// NewDuplicateCorrelationError creates a RuntimeError for a second Begin.
func NewDuplicateCorrelationError(id string) *RuntimeError {
	return &RuntimeError{
		Code:          ErrCodeDuplicateCorrelation,
		Message:       "correlation id already has an active scope",
		CorrelationID: id,
	}
}

// NewMissingCorrelationIDError creates a RuntimeError for a replay mode
// started without an id.
func NewMissingCorrelationIDError(mode Mode) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMissingCorrelationID,
		Message: fmt.Sprintf("mode %s requires a correlation id", mode),
	}
}

// NewMissingRecordingError creates a RuntimeError for an operation that was
// never recorded in the scope.
func NewMissingRecordingError(id, op string) *RuntimeError {
	return &RuntimeError{
		Code:          ErrCodeMissingRecording,
		Message:       "no recording for operation",
		CorrelationID: id,
		Op:            op,
	}
}

// NewNoMatchingRecordingError creates a RuntimeError when every candidate
// entry was rejected.
func NewNoMatchingRecordingError(id, op string, candidates int) *RuntimeError {
	return &RuntimeError{
		Code:          ErrCodeNoMatchingRecording,
		Message:       fmt.Sprintf("no recorded invocation matches the live arguments (%d candidates)", candidates),
		CorrelationID: id,
		Op:            op,
		Details: map[string]string{
			"candidates": fmt.Sprintf("%d", candidates),
		},
	}
}

// NewMalformedEntryError creates a RuntimeError for an entry that violates
// its structural invariants.
func NewMalformedEntryError(id, op string, seq int64, cause error) *RuntimeError {
	return &RuntimeError{
		Code:          ErrCodeMalformedEntry,
		Message:       fmt.Sprintf("recorded entry %d is malformed", seq),
		CorrelationID: id,
		Op:            op,
		Details: map[string]string{
			"seq": fmt.Sprintf("%d", seq),
		},
		Err: cause,
	}
}

// NewSinkError creates a RuntimeError wrapping a sink failure.
func NewSinkError(id, action string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:          ErrCodeSinkFailure,
		Message:       fmt.Sprintf("sink %s failed", action),
		CorrelationID: id,
		Err:           cause,
	}
}

// RecordedError is an error returned by a replayed invocation. It carries the
// type name and message captured when the original call failed.
type RecordedError struct {
	TypeName string `json:"type"`
	Message  string `json:"message"`
}

// Error implements the error interface.
func (e *RecordedError) Error() string {
	return e.Message
}

// IsRecordedError returns true if err was replayed from a recording.
func IsRecordedError(err error) bool {
	var re *RecordedError
	return errors.As(err, &re)
}

// recordedErrorOf converts a live error into its recorded form.
func recordedErrorOf(err error) *RecordedError {
	var re *RecordedError
	if errors.As(err, &re) {
		return re
	}
	return &RecordedError{TypeName: fmt.Sprintf("%T", err), Message: err.Error()}
}
