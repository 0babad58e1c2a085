package dispatch

import (
	"sync"
	"time"
)

// State tracks an invocation through dispatch.
type State string

const (
	StatePending    State = "pending"
	StateClassified State = "classified"
	StateDispatched State = "dispatched"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateTimedOut   State = "timed_out"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether the state is a terminal one.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut, StateCancelled:
		return true
	default:
		return false
	}
}

// Record tracks the lane and state of every invocation in one batch. It is
// safe for concurrent use by the lanes.
type Record struct {
	batchID string
	order   []string
	entries map[string]*recordEntry
	mu      sync.Mutex
}

type recordEntry struct {
	tool     string
	args     map[string]interface{}
	lane     Lane
	state    State
	duration time.Duration
	errText  string
}

func newRecord(b Batch) *Record {
	r := &Record{
		batchID: b.ID,
		order:   make([]string, 0, len(b.Invocations)),
		entries: make(map[string]*recordEntry, len(b.Invocations)),
	}
	for _, inv := range b.Invocations {
		r.order = append(r.order, inv.ID)
		r.entries[inv.ID] = &recordEntry{tool: inv.Tool, args: inv.Arguments, state: StatePending}
	}

	return r
}

func (r *Record) classify(id string, lane Lane) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		e.lane = lane
		e.state = StateClassified
	}
}

func (r *Record) dispatch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		e.state = StateDispatched
	}
}

func (r *Record) finish(id string, state State, duration time.Duration, errText string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[id]; ok {
		e.state = state
		e.duration = duration
		e.errText = errText
	}
}

// BatchID returns the ID of the tracked batch.
func (r *Record) BatchID() string {
	return r.batchID
}

// LaneOf returns the lane an invocation was classified into.
func (r *Record) LaneOf(id string) (Lane, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return "", false
	}

	return e.lane, true
}

// StateOf returns the current state of an invocation.
func (r *Record) StateOf(id string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return "", false
	}

	return e.state, true
}

// unfinished lists every call that did not run to its own completion: calls
// still in flight plus calls cancelled before finishing, in input order.
func (r *Record) unfinished() []PendingCall {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []PendingCall
	for _, id := range r.order {
		e := r.entries[id]
		if !e.state.Terminal() || e.state == StateCancelled {
			out = append(out, PendingCall{CallID: id, Tool: e.tool, Lane: e.lane})
		}
	}

	return out
}

// calls snapshots the record for journaling, in input order.
func (r *Record) calls() []CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]CallRecord, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		out = append(out, CallRecord{
			CallID:    id,
			Tool:      e.tool,
			Lane:      e.lane,
			State:     e.state,
			Duration:  e.duration,
			Arguments: e.args,
			Error:     e.errText,
		})
	}

	return out
}
