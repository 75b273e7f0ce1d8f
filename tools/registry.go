package tools

import (
	"fmt"
)

// Registry maps tool names to implementations
type Registry map[string]Tool

// NewRegistry creates a new tool registry exposing the reference lookup and the
// arithmetic evaluator to the reasoning provider.
func NewRegistry(resolver LookupResolver) (*Registry, error) {
	tools := map[string]Tool{
		"reference_lookup":    NewReferenceLookup(resolver),
		"evaluate_expression": NewEvaluateExpression(),
	}

	registry := Registry(tools)
	return &registry, nil
}

// GetTools returns all tools in the registry as a slice
func (r *Registry) GetTools() []Tool {
	tools := make([]Tool, 0, len(*r))
	for _, tool := range *r {
		tools = append(tools, tool)
	}
	return tools
}

// GetTool retrieves a tool by name from the registry
func (r Registry) GetTool(name string) (Tool, error) {
	tool, exists := r[name]
	if !exists {
		return nil, fmt.Errorf("tool %q not found in registry", name)
	}
	return tool, nil
}
