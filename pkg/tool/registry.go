package tool

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/mirel/lanes/pkg/dispatch"
)

// Parameter defines a parameter for a tool
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Definition defines a tool's metadata, handler, and execution capabilities
type Definition struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Parameters  []Parameter      `json:"parameters"`
	Handler     dispatch.Handler `json:"-"`

	// AsyncCapable marks a tool that mostly waits (network, disk) and may
	// share the concurrent lane.
	AsyncCapable bool `json:"async_capable"`

	// ComputeHeavy marks a CPU-bound tool; it is routed to the isolated
	// lane even when also async-capable.
	ComputeHeavy bool `json:"compute_heavy"`

	// Timeout overrides the dispatcher's per-call default when > 0.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Registry manages tool definitions and their compiled argument schemas.
// It implements dispatch.Resolver.
type Registry struct {
	tools   map[string]*Definition
	schemas map[string]*gojsonschema.Schema
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	r := &Registry{
		tools:   make(map[string]*Definition),
		schemas: make(map[string]*gojsonschema.Schema),
	}

	log.Info().Msg("Tool registry initialized")

	return r
}

// Register validates a definition, compiles its argument schema, and adds
// the tool. Validation happens here, once, not on every call.
func (r *Registry) Register(def Definition) error {
	if err := validateDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileSchema(def)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %q is already registered", def.Name)
	}

	r.tools[def.Name] = &def
	r.schemas[def.Name] = schema

	log.Info().
		Str("tool", def.Name).
		Bool("async_capable", def.AsyncCapable).
		Bool("compute_heavy", def.ComputeHeavy).
		Msg("Tool registered")

	return nil
}

// Unregister removes a tool
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tools, name)
	delete(r.schemas, name)

	log.Info().Str("tool", name).Msg("Tool unregistered")
}

// Get returns a tool definition by name
func (r *Registry) Get(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.tools[name]
}

// List returns all registered tool names
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]string, 0, len(r.tools))
	for name := range r.tools {
		tools = append(tools, name)
	}

	return tools
}

// Count returns the number of registered tools
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// ValidateArguments validates an argument payload against a tool's schema
func (r *Registry) ValidateArguments(name string, args map[string]interface{}) error {
	r.mu.RLock()
	schema := r.schemas[name]
	r.mu.RUnlock()

	if schema == nil {
		return fmt.Errorf("tool not found: %s", name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errors := []string{}
		for _, e := range result.Errors() {
			errors = append(errors, e.String())
		}
		return fmt.Errorf("validation errors: %v", errors)
	}

	return nil
}

// Resolve implements dispatch.Resolver
func (r *Registry) Resolve(name string) (dispatch.ResolvedTool, bool) {
	r.mu.RLock()
	def := r.tools[name]
	r.mu.RUnlock()

	if def == nil {
		return dispatch.ResolvedTool{}, false
	}

	return dispatch.ResolvedTool{
		Handler: def.Handler,
		Capabilities: dispatch.Capabilities{
			AsyncCapable: def.AsyncCapable,
			ComputeHeavy: def.ComputeHeavy,
		},
		Timeout: def.Timeout,
		ValidateArguments: func(args map[string]interface{}) error {
			return r.ValidateArguments(name, args)
		},
	}, true
}

// validateDefinition validates a tool definition
func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}
	if def.Timeout < 0 {
		return fmt.Errorf("tool timeout cannot be negative")
	}

	// Validate parameters
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if param.Type == "" {
			return fmt.Errorf("parameter type cannot be empty for %s", param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}

		validTypes := map[string]bool{
			"string": true, "number": true, "boolean": true,
			"object": true, "array": true, "integer": true,
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}

	return nil
}

// compileSchema builds and compiles a JSON Schema from tool parameters
func compileSchema(def Definition) (*gojsonschema.Schema, error) {
	schemaMap := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           make(map[string]interface{}),
	}

	properties := schemaMap["properties"].(map[string]interface{})
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}

		if param.Default != nil {
			paramSchema["default"] = param.Default
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	if len(required) > 0 {
		schemaMap["required"] = required
	}

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}
