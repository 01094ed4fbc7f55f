// Package tools implements the tool registry and dispatcher the agent
// orchestrator drives. Every tool carries a JSON Schema for its arguments;
// the dispatcher rejects calls that do not validate before any side effect
// happens.
package tools

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/mnemo-ai/mnemo/internal/domain"
)

// Handler executes a tool call with already-validated arguments.
type Handler func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// Descriptor describes a callable tool to both the registry consumers and
// the model deciding which tool to call.
type Descriptor struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Tool pairs a descriptor with its handler.
type Tool struct {
	Descriptor
	Handler Handler
}

// Registry holds the registered tools. Registration happens at startup;
// lookups are concurrent with dispatches.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registeredTool
}

type registeredTool struct {
	tool     Tool
	resolved *jsonschema.Resolved
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*registeredTool)}
}

// Register adds a tool. A second registration under the same name is
// rejected rather than silently replacing the first.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "tool name is required")
	}
	if tool.Handler == nil {
		return domain.NewDomainError(domain.ErrCodeValidation, "tool handler is required")
	}

	var resolved *jsonschema.Resolved
	if tool.InputSchema != nil {
		var err error
		resolved, err = tool.InputSchema.Resolve(nil)
		if err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeSchema,
				"invalid input schema for tool "+tool.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; exists {
		return domain.ErrDuplicateTool
	}
	r.tools[tool.Name] = &registeredTool{tool: tool, resolved: resolved}
	return nil
}

// MustRegister panics on registration failure; used for the built-in tools
// wired at startup where a failure is a programming error.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

func (r *Registry) get(name string) (*registeredTool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.tools[name]
	if !ok {
		return nil, domain.ErrUnknownTool
	}
	return rt, nil
}

// Descriptors returns all registered descriptors sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.tools))
	for _, rt := range r.tools {
		out = append(out, rt.tool.Descriptor)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
