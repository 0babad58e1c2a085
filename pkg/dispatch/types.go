package dispatch

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Lane identifies one of the three execution strategies.
type Lane string

const (
	// LaneInline runs calls one at a time on the caller's goroutine.
	LaneInline Lane = "inline"
	// LaneConcurrent runs calls as sibling goroutines under the batch context.
	LaneConcurrent Lane = "concurrent"
	// LaneIsolated runs calls on a bounded worker pool.
	LaneIsolated Lane = "isolated"
)

// Handler is the function signature for tool execution.
type Handler func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Capabilities describes how a tool is allowed to execute. ComputeHeavy
// takes precedence over AsyncCapable when routing.
type Capabilities struct {
	AsyncCapable bool
	ComputeHeavy bool
}

// ResolvedTool is everything the dispatcher needs to run one tool.
type ResolvedTool struct {
	Handler      Handler
	Capabilities Capabilities

	// Timeout overrides the dispatcher's default per-call timeout when > 0.
	Timeout time.Duration

	// ValidateArguments checks the argument payload before execution.
	// May be nil when the tool accepts anything.
	ValidateArguments func(args map[string]interface{}) error
}

// Resolver supplies tool lookups to the dispatcher. A tool registry is the
// usual implementation.
type Resolver interface {
	Resolve(name string) (ResolvedTool, bool)
}

// Invocation is one requested tool call within a batch. Immutable once
// created.
type Invocation struct {
	ID        string                 `json:"id"`
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// Outcome is the terminal result of one invocation. Exactly one of Result
// and Err is meaningful; Err is empty on success.
type Outcome struct {
	ID        string                 `json:"id"`
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Result    interface{}            `json:"result,omitempty"`
	Err       string                 `json:"error,omitempty"`
}

// Failed reports whether the outcome carries a failure.
func (o Outcome) Failed() bool {
	return o.Err != ""
}

// Batch is the full set of invocations requested in a single model turn.
type Batch struct {
	ID          string       `json:"id"`
	Invocations []Invocation `json:"invocations"`
}

// NewBatch assembles a batch with a generated ID and verifies that call IDs
// are unique and non-empty.
func NewBatch(invocations ...Invocation) (Batch, error) {
	id, err := gonanoid.New()
	if err != nil {
		return Batch{}, fmt.Errorf("failed to generate batch id: %w", err)
	}

	b := Batch{
		ID:          id,
		Invocations: invocations,
	}
	if err := b.validate(); err != nil {
		return Batch{}, err
	}

	return b, nil
}

// validate checks the unique-ID invariant.
func (b Batch) validate() error {
	seen := make(map[string]struct{}, len(b.Invocations))
	for _, inv := range b.Invocations {
		if inv.ID == "" {
			return fmt.Errorf("call for tool %q: %w", inv.Tool, ErrEmptyCallID)
		}
		if _, ok := seen[inv.ID]; ok {
			return fmt.Errorf("call id %q: %w", inv.ID, ErrDuplicateCallID)
		}
		seen[inv.ID] = struct{}{}
	}

	return nil
}

// BatchRecord is the post-hoc description of one executed batch, handed to
// a Recorder.
type BatchRecord struct {
	BatchID   string
	StartedAt time.Time
	Duration  time.Duration
	Status    string // ok, failed, timeout, aborted
	Calls     []CallRecord
}

// CallRecord describes one invocation's terminal state for recording.
// Arguments are the raw invocation arguments; recorders that persist them
// are expected to redact secret-shaped values first.
type CallRecord struct {
	CallID    string
	Tool      string
	Lane      Lane
	State     State
	Duration  time.Duration
	Arguments map[string]interface{}
	Error     string
}

// Recorder receives a record of every executed batch. Implementations must
// tolerate being called from multiple goroutines.
type Recorder interface {
	RecordBatch(ctx context.Context, rec BatchRecord) error
}
