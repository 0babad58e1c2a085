package dispatch

import "context"

// runIsolated executes calls on a bounded pool of workers. The lane is
// fail-fast: the first failure cancels the lane context, so queued units
// that have not started are dropped and marked cancelled, and in-flight
// units are cancelled best-effort through their contexts. Every submitted
// unit is accounted for before the lane returns, and the pool is torn down
// on every exit path.
func (d *Dispatcher) runIsolated(ctx context.Context, calls []plannedCall, rec *Record) ([]Outcome, error) {
	laneCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := newWorkerPool(d.poolSizeValue(), len(calls), d.logger)
	pool.start(laneCtx)
	defer pool.wait()

	type unit struct {
		outcome Outcome
		err     *CallError
	}
	results := make(chan unit, len(calls))

	for _, pc := range calls {
		pc := pc
		// Queued units count as dispatched; dropping one is a
		// cancellation, not a silent loss.
		rec.dispatch(pc.inv.ID)
		pool.submit(poolTask{
			run: func() {
				d.poolBusy(1)
				defer d.poolBusy(-1)

				outcome, callErr := d.runCall(laneCtx, pc, rec, LaneIsolated)
				results <- unit{outcome: outcome, err: callErr}
			},
			drop: func() {
				rec.finish(pc.inv.ID, StateCancelled, 0, "dropped before start")
				d.observeCall(pc.inv.Tool, LaneIsolated, "cancelled", 0)
				results <- unit{err: &CallError{
					CallID:    pc.inv.ID,
					Tool:      pc.inv.Tool,
					Arguments: pc.inv.Arguments,
					Kind:      ErrCallCancelled,
				}}
			},
		})
	}
	pool.seal()

	outcomes := make([]Outcome, 0, len(calls))
	var failed []*CallError
	for range calls {
		u := <-results
		if u.err != nil {
			failed = append(failed, u.err)
			cancel()
			continue
		}
		outcomes = append(outcomes, u.outcome)
	}

	if len(failed) > 0 {
		return nil, &AggregateError{Failures: failed}
	}

	return outcomes, nil
}
