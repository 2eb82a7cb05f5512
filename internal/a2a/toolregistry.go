package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool is one callable capability exposed through a ToolExecutor.
type Tool struct {
	Name        string
	Description string
	Execute     func(ctx context.Context, params json.RawMessage) (any, error)

	schema *jsonschema.Schema
}

// ToolRegistry is a name-keyed set of Tools whose parameter schemas are
// compiled once at registration time.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewToolRegistry builds an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]*Tool)}
}

// Register compiles schemaJSON and adds tool under name, rejecting malformed
// schemas immediately rather than at call time.
func (r *ToolRegistry) Register(tool Tool, schemaJSON []byte) error {
	schema, err := jsonschema.CompileString(tool.Name+".schema.json", string(schemaJSON))
	if err != nil {
		return fmt.Errorf("compile tool schema %q: %w", tool.Name, err)
	}
	tool.schema = schema

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name] = &tool
	return nil
}

// Get returns the Tool registered under name.
func (r *ToolRegistry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns the names of every registered tool.
func (r *ToolRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Validate checks params against tool's compiled parameter schema.
func (r *ToolRegistry) Validate(name string, params json.RawMessage) error {
	tool, ok := r.Get(name)
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}
	var v any
	if err := json.Unmarshal(params, &v); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	if err := tool.schema.Validate(v); err != nil {
		return fmt.Errorf("validate params for %q: %w", name, err)
	}
	return nil
}

// Execute validates params then runs the tool.
func (r *ToolRegistry) Execute(ctx context.Context, name string, params json.RawMessage) (any, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	if err := r.Validate(name, params); err != nil {
		return nil, err
	}
	return tool.Execute(ctx, params)
}
