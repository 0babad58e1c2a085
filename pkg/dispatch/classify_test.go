package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBatchRouting(t *testing.T) {
	resolver := testResolver{
		"plain": {},
		"async": {Capabilities: Capabilities{AsyncCapable: true}},
		"heavy": {Capabilities: Capabilities{ComputeHeavy: true}},
		"both":  {Capabilities: Capabilities{AsyncCapable: true, ComputeHeavy: true}},
	}

	batch := Batch{
		ID: "b1",
		Invocations: []Invocation{
			{ID: "c1", Tool: "plain"},
			{ID: "c2", Tool: "async"},
			{ID: "c3", Tool: "heavy"},
			{ID: "c4", Tool: "both"},
		},
	}
	rec := newRecord(batch)

	cls, err := classifyBatch(batch, resolver, rec)
	require.NoError(t, err)

	assert.Len(t, cls.inline, 1)
	assert.Len(t, cls.concurrent, 1)
	assert.Len(t, cls.isolated, 2)

	// Compute-heavy wins over async-capable.
	lane, ok := rec.LaneOf("c4")
	require.True(t, ok)
	assert.Equal(t, LaneIsolated, lane)

	for id, want := range map[string]Lane{
		"c1": LaneInline,
		"c2": LaneConcurrent,
		"c3": LaneIsolated,
	} {
		lane, ok := rec.LaneOf(id)
		require.True(t, ok)
		assert.Equal(t, want, lane, "lane of %s", id)

		state, _ := rec.StateOf(id)
		assert.Equal(t, StateClassified, state)
	}
}

func TestClassifyBatchPreservesInputOrder(t *testing.T) {
	resolver := testResolver{"plain": {}}

	batch := Batch{
		ID: "b1",
		Invocations: []Invocation{
			{ID: "c3", Tool: "plain"},
			{ID: "c1", Tool: "plain"},
			{ID: "c2", Tool: "plain"},
		},
	}

	cls, err := classifyBatch(batch, resolver, newRecord(batch))
	require.NoError(t, err)
	require.Len(t, cls.inline, 3)
	assert.Equal(t, "c3", cls.inline[0].inv.ID)
	assert.Equal(t, "c1", cls.inline[1].inv.ID)
	assert.Equal(t, "c2", cls.inline[2].inv.ID)
}

func TestClassifyBatchUnknownTool(t *testing.T) {
	batch := Batch{
		ID:          "b1",
		Invocations: []Invocation{{ID: "c1", Tool: "ghost"}},
	}

	_, err := classifyBatch(batch, testResolver{}, newRecord(batch))
	require.Error(t, err)

	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.Tool)
	assert.Equal(t, "c1", unknown.CallID)
}
