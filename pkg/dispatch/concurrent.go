package dispatch

import (
	"context"
	"sync"
)

// runConcurrent executes calls as sibling goroutines under the batch
// context. The lane is best-effort: one child failing does not cancel its
// siblings, and the lane does not return until every child has reached a
// terminal state. If any child failed, a single AggregateError naming all
// of them is returned after the join.
func (d *Dispatcher) runConcurrent(ctx context.Context, calls []plannedCall, rec *Record) ([]Outcome, error) {
	outcomes := make([]Outcome, len(calls))
	failures := make([]*CallError, len(calls))

	var wg sync.WaitGroup
	for i, pc := range calls {
		wg.Add(1)
		go func(idx int, pc plannedCall) {
			defer wg.Done()
			outcomes[idx], failures[idx] = d.runCall(ctx, pc, rec, LaneConcurrent)
		}(i, pc)
	}
	wg.Wait()

	var failed []*CallError
	for _, f := range failures {
		if f != nil {
			failed = append(failed, f)
		}
	}
	if len(failed) > 0 {
		return nil, &AggregateError{Failures: failed}
	}

	return outcomes, nil
}
