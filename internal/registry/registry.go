// Package registry holds the set of tools the gateway can execute: their
// descriptors, argument schemas, and handlers.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/codewheel/toolgate/internal/policy"
	"github.com/codewheel/toolgate/internal/ratelimit"
	"github.com/codewheel/toolgate/internal/result"
)

// Handler executes a tool's domain logic. It runs only after the gateway has
// authorized and validated the call.
type Handler func(ctx context.Context, args map[string]any) result.Output

// Registration describes one tool offered through the gateway.
type Registration struct {
	ID          string
	Category    string
	Operation   policy.OperationKind
	WriteKind   policy.WriteKind
	RateClass   ratelimit.OpClass
	Description string

	// ArgSchema is an optional JSON Schema for the tool's arguments,
	// compiled once at registration.
	ArgSchema map[string]any

	Handler Handler
}

// Tool is a registered tool ready for execution.
type Tool struct {
	Descriptor  policy.ToolDescriptor
	RateClass   ratelimit.OpClass
	Description string
	Handler     Handler

	schema *jsonschema.Schema
}

// HasSchema reports whether the tool validates its arguments.
func (t *Tool) HasSchema() bool { return t.schema != nil }

// ValidateArgs checks the arguments against the tool's schema. Returns nil
// when no schema is registered.
func (t *Tool) ValidateArgs(args map[string]any) error {
	if t.schema == nil {
		return nil
	}
	// Round-trip through JSON so typed values (int, struct) normalize to
	// what the schema validator expects.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("arguments are not serializable: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return fmt.Errorf("arguments are not valid JSON: %w", err)
	}
	if err := t.schema.Validate(normalized); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// Registry is the in-process tool catalog. Registration happens at startup;
// lookups are concurrent.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. The write kind defaults from the category table when
// missing, and the rate class defaults from the operation kind (writes charge
// the write buckets, triggers the structure bucket).
func (r *Registry) Register(reg Registration) error {
	if reg.ID == "" {
		return fmt.Errorf("Register: tool ID is required")
	}
	if reg.Handler == nil {
		return fmt.Errorf("Register: tool %q has no handler", reg.ID)
	}

	desc := policy.NewToolDescriptor(reg.ID, reg.Category, reg.Operation, reg.WriteKind)

	rateClass := reg.RateClass
	if rateClass == "" {
		switch reg.Operation {
		case policy.OpTrigger:
			rateClass = ratelimit.OpClassStructure
		default:
			rateClass = ratelimit.OpClassWrite
		}
	}

	tool := &Tool{
		Descriptor:  desc,
		RateClass:   rateClass,
		Description: reg.Description,
		Handler:     reg.Handler,
	}

	if reg.ArgSchema != nil {
		sch, err := compileSchema(reg.ID, reg.ArgSchema)
		if err != nil {
			return fmt.Errorf("Register %q: %w", reg.ID, err)
		}
		tool.schema = sch
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[reg.ID]; exists {
		return fmt.Errorf("Register: tool %q already registered", reg.ID)
	}
	r.tools[reg.ID] = tool
	return nil
}

// Get returns the tool by ID, or nil when unknown.
func (r *Registry) Get(id string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[id]
}

// List returns every registered tool sorted by ID. An optional query filters
// by case-insensitive substring match on ID, category, or description.
func (r *Registry) List(query string) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(query)
	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		if q != "" && !matchesQuery(t, q) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Descriptor.ID < out[j].Descriptor.ID
	})
	return out
}

func matchesQuery(t *Tool, q string) bool {
	return strings.Contains(strings.ToLower(t.Descriptor.ID), q) ||
		strings.Contains(strings.ToLower(t.Descriptor.Category), q) ||
		strings.Contains(strings.ToLower(t.Description), q)
}

func compileSchema(toolID string, schema map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("invalid argument schema: %w", err)
	}
	var obj any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("schema unmarshal: %w", err)
	}

	c := jsonschema.NewCompiler()
	resource := toolID + ".schema.json"
	if err := c.AddResource(resource, obj); err != nil {
		return nil, fmt.Errorf("schema compile: %w", err)
	}
	sch, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("schema compile: %w", err)
	}
	return sch, nil
}
