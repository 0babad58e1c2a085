package dispatch

// plannedCall pairs an invocation with its resolved tool.
type plannedCall struct {
	inv  Invocation
	tool ResolvedTool
}

// classified holds the three disjoint lane assignments of a batch, each in
// input order.
type classified struct {
	inline     []plannedCall
	concurrent []plannedCall
	isolated   []plannedCall
}

// classifyBatch partitions a batch by declared tool capabilities. A tool
// that is both compute-heavy and async-capable goes to the isolated lane so
// CPU-bound work never crowds the concurrent lane. An unknown tool aborts
// the whole batch before any dispatch.
func classifyBatch(batch Batch, resolver Resolver, rec *Record) (classified, error) {
	var cls classified

	for _, inv := range batch.Invocations {
		tool, ok := resolver.Resolve(inv.Tool)
		if !ok {
			return classified{}, &UnknownToolError{CallID: inv.ID, Tool: inv.Tool}
		}

		pc := plannedCall{inv: inv, tool: tool}
		switch {
		case tool.Capabilities.ComputeHeavy:
			cls.isolated = append(cls.isolated, pc)
			rec.classify(inv.ID, LaneIsolated)
		case tool.Capabilities.AsyncCapable:
			cls.concurrent = append(cls.concurrent, pc)
			rec.classify(inv.ID, LaneConcurrent)
		default:
			cls.inline = append(cls.inline, pc)
			rec.classify(inv.ID, LaneInline)
		}
	}

	return cls, nil
}
