// Package tool registers structured tools and resolves them for dispatch.
//
// Invariants:
// - Tool names are unique.
// - Argument schemas are compiled and validated once, at registration.
// - Declared capabilities (async-capable, compute-heavy) drive lane routing.
//
// Usage:
//
//	reg := tool.NewRegistry()
//	_ = reg.Register(tool.Definition{
//		Name: "echo",
//		Description: "Echo input",
//		Parameters: []tool.Parameter{{Name: "text", Type: "string", Description: "text", Required: true}},
//		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) { return args["text"], nil },
//	})
package tool
