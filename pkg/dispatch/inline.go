package dispatch

import "context"

// runInline executes calls strictly in order on the caller's goroutine.
// The first failure stops the lane immediately; later calls are never
// attempted and stay in the Classified state.
func (d *Dispatcher) runInline(ctx context.Context, calls []plannedCall, rec *Record) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(calls))

	for _, pc := range calls {
		outcome, callErr := d.runCall(ctx, pc, rec, LaneInline)
		if callErr != nil {
			return nil, callErr
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}
