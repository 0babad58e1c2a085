package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrEmptyCallID is returned when an invocation has no call ID.
	ErrEmptyCallID = errors.New("call id is empty")

	// ErrDuplicateCallID is returned when two invocations in a batch share an ID.
	ErrDuplicateCallID = errors.New("duplicate call id in batch")

	// ErrArgumentValidation marks a call whose arguments failed validation.
	ErrArgumentValidation = errors.New("argument validation failed")

	// ErrToolExecution marks a call whose handler returned an error.
	ErrToolExecution = errors.New("tool execution failed")

	// ErrCallTimeout marks a call whose own timeout elapsed.
	ErrCallTimeout = errors.New("call timed out")

	// ErrCallCancelled marks a call stopped by batch cancellation or a
	// sibling failure before reaching its own terminal state.
	ErrCallCancelled = errors.New("call cancelled")

	// ErrOutcomeCorrelation is returned when merged outcomes do not match
	// the input batch one-to-one. It indicates a dispatcher bug.
	ErrOutcomeCorrelation = errors.New("outcome set does not match batch")
)

// UnknownToolError reports an invocation naming a tool absent from the
// resolver. It aborts the whole batch before any dispatch.
type UnknownToolError struct {
	CallID string
	Tool   string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q (call %s)", e.Tool, e.CallID)
}

// CallError describes the failure of a single invocation. Kind is one of
// the sentinel errors above and is matchable via errors.Is.
type CallError struct {
	CallID    string
	Tool      string
	Arguments map[string]interface{}
	Kind      error
	Cause     error
}

func (e *CallError) Error() string {
	msg := fmt.Sprintf("tool %q (call %s): %v", e.Tool, e.CallID, e.Kind)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if len(e.Arguments) > 0 {
		msg += fmt.Sprintf(" (arguments: %v)", e.Arguments)
	}

	return msg
}

// Unwrap exposes both the failure kind and the underlying cause.
func (e *CallError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}

	return errs
}

// AggregateError collects every failing call of a batch into one error.
// It never reports only the first failure.
type AggregateError struct {
	Failures []*CallError
}

func (e *AggregateError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}

	return fmt.Sprintf("%d tool call(s) failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes the individual call failures for errors.Is / errors.As.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}

	return errs
}

// PendingCall identifies a call that had not finished when the batch
// deadline elapsed.
type PendingCall struct {
	CallID string
	Tool   string
	Lane   Lane
}

// BatchTimeoutError reports that the shared batch deadline elapsed with
// work still pending. It enumerates every unfinished call.
type BatchTimeoutError struct {
	Deadline time.Duration
	Pending  []PendingCall
}

func (e *BatchTimeoutError) Error() string {
	parts := make([]string, 0, len(e.Pending))
	for _, p := range e.Pending {
		parts = append(parts, fmt.Sprintf("%s (call %s, lane %s)", p.Tool, p.CallID, p.Lane))
	}

	return fmt.Sprintf("batch deadline %v elapsed with %d call(s) pending: %s",
		e.Deadline, len(e.Pending), strings.Join(parts, ", "))
}
