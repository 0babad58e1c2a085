package tool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopHandler(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	return nil, nil
}

func TestRegister(t *testing.T) {
	reg := NewRegistry()

	def := Definition{
		Name:        "echo",
		Description: "Echo tool",
		Parameters: []Parameter{
			{Name: "text", Type: "string", Description: "Text to echo", Required: true},
		},
		Handler: noopHandler,
	}

	require.NoError(t, reg.Register(def))

	got := reg.Get("echo")
	require.NotNil(t, got)
	assert.Equal(t, "echo", got.Name)
	assert.Equal(t, 1, reg.Count())
}

func TestRegisterDuplicateName(t *testing.T) {
	reg := NewRegistry()

	def := Definition{Name: "echo", Description: "Echo tool", Handler: noopHandler}
	require.NoError(t, reg.Register(def))

	err := reg.Register(def)
	assert.ErrorContains(t, err, "already registered")
}

func TestRegisterInvalidDefinition(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name string
		def  Definition
	}{
		{
			name: "empty name",
			def:  Definition{Description: "Test", Handler: noopHandler},
		},
		{
			name: "empty description",
			def:  Definition{Name: "test", Handler: noopHandler},
		},
		{
			name: "nil handler",
			def:  Definition{Name: "test", Description: "Test"},
		},
		{
			name: "negative timeout",
			def:  Definition{Name: "test", Description: "Test", Handler: noopHandler, Timeout: -time.Second},
		},
		{
			name: "bad parameter type",
			def: Definition{
				Name:        "test",
				Description: "Test",
				Handler:     noopHandler,
				Parameters:  []Parameter{{Name: "x", Type: "uuid", Description: "x"}},
			},
		},
		{
			name: "parameter missing description",
			def: Definition{
				Name:        "test",
				Description: "Test",
				Handler:     noopHandler,
				Parameters:  []Parameter{{Name: "x", Type: "string"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, reg.Register(tt.def))
		})
	}
}

func TestUnregister(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(Definition{Name: "echo", Description: "Echo tool", Handler: noopHandler}))
	reg.Unregister("echo")

	assert.Nil(t, reg.Get("echo"))
	assert.Equal(t, 0, reg.Count())

	_, ok := reg.Resolve("echo")
	assert.False(t, ok)
}

func TestValidateArguments(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(Definition{
		Name:        "search",
		Description: "Search tool",
		Parameters: []Parameter{
			{Name: "query", Type: "string", Description: "Query string", Required: true},
			{Name: "limit", Type: "integer", Description: "Max results"},
		},
		Handler: noopHandler,
	}))

	assert.NoError(t, reg.ValidateArguments("search", map[string]interface{}{"query": "weather"}))
	assert.NoError(t, reg.ValidateArguments("search", map[string]interface{}{"query": "weather", "limit": 3}))

	// Missing required parameter
	assert.Error(t, reg.ValidateArguments("search", map[string]interface{}{"limit": 3}))

	// Wrong type
	assert.Error(t, reg.ValidateArguments("search", map[string]interface{}{"query": 42}))

	// Unknown parameter
	assert.Error(t, reg.ValidateArguments("search", map[string]interface{}{"query": "x", "verbose": true}))

	// Unknown tool
	assert.Error(t, reg.ValidateArguments("nope", nil))
}

func TestResolveCarriesCapabilitiesAndTimeout(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(Definition{
		Name:         "crunch",
		Description:  "Heavy tool",
		Handler:      noopHandler,
		AsyncCapable: true,
		ComputeHeavy: true,
		Timeout:      3 * time.Second,
	}))

	resolved, ok := reg.Resolve("crunch")
	require.True(t, ok)
	assert.True(t, resolved.Capabilities.AsyncCapable)
	assert.True(t, resolved.Capabilities.ComputeHeavy)
	assert.Equal(t, 3*time.Second, resolved.Timeout)
	assert.NotNil(t, resolved.Handler)
	require.NotNil(t, resolved.ValidateArguments)
	assert.NoError(t, resolved.ValidateArguments(nil))
}

func TestList(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Definition{Name: "a", Description: "A", Handler: noopHandler}))
	require.NoError(t, reg.Register(Definition{Name: "b", Description: "B", Handler: noopHandler}))

	assert.ElementsMatch(t, []string{"a", "b"}, reg.List())
}
