// Package dispatch executes batches of model-requested tool calls across
// three lanes: inline (sequential, fail-fast), concurrent (goroutine per
// call, best-effort), and isolated (bounded worker pool, fail-fast).
//
// Invariants:
// - Call IDs are unique within a batch.
// - Every submitted call ends in exactly one outcome or one error entry.
// - Compute-heavy tools never run on the concurrent lane.
// - The batch deadline bounds the concurrent and isolated lanes together.
//
// Usage:
//
//	d, _ := dispatch.NewDispatcher(registry, dispatch.Options{PoolSize: 4})
//	batch, _ := dispatch.NewBatch(dispatch.Invocation{ID: "call_1", Tool: "echo", Arguments: map[string]interface{}{"text": "hi"}})
//	outcomes, err := d.Execute(ctx, batch)
package dispatch
