// Package tools holds the tool catalogue and the dispatch registry that the
// chat orchestrator executes model tool requests through.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ankicli/internal/anki"
	"ankicli/internal/llm"
	"ankicli/internal/logging"
)

// ExecutionMode declares how the orchestrator must run a tool.
type ExecutionMode int

const (
	// ModeSync tools run inline on the orchestrator goroutine.
	ModeSync ExecutionMode = iota
	// ModeBackground tools run on their own goroutine while the
	// orchestrator polls a progress channel.
	ModeBackground
)

func (m ExecutionMode) String() string {
	switch m {
	case ModeSync:
		return "sync"
	case ModeBackground:
		return "background"
	default:
		return fmt.Sprintf("ExecutionMode(%d)", int(m))
	}
}

// Definition describes one tool as presented to the model.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
	Mode        ExecutionMode          `json:"-"`
}

// Handler executes a tool. Returned errors are mapped to result strings at
// the Execute boundary; handlers never need to format their own failures.
type Handler func(ctx context.Context, input map[string]interface{}) (string, error)

// Registry maps tool names to definitions and handlers.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	defs      map[string]Definition
	handlers  map[string]Handler
	notes     map[string]string
	execCount map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:      make(map[string]Definition),
		handlers:  make(map[string]Handler),
		notes:     make(map[string]string),
		execCount: make(map[string]int),
	}
}

// Register adds or replaces a tool.
func (r *Registry) Register(def Definition, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.defs[def.Name] = def
	r.handlers[def.Name] = handler
}

// SetNotes installs per-tool user notes, appended to descriptions when the
// catalogue is rendered for the model.
func (r *Registry) SetNotes(notes map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = make(map[string]string, len(notes))
	for k, v := range notes {
		r.notes[k] = v
	}
}

// Definition returns the descriptor for a tool name.
func (r *Registry) Definition(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Mode returns the execution mode for a tool; unknown names run sync so the
// Execute boundary can produce the unknown-tool result.
func (r *Registry) Mode(name string) ExecutionMode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs[name].Mode
}

// Specs renders the catalogue for the model, with user notes appended to
// descriptions, in registration order.
func (r *Registry) Specs() []llm.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		def := r.defs[name]
		desc := def.Description
		if note := r.notes[name]; note != "" {
			desc = fmt.Sprintf("%s\n\nUSER NOTE: %s", desc, note)
		}
		specs = append(specs, llm.ToolSpec{
			Name:        def.Name,
			Description: desc,
			InputSchema: def.InputSchema,
		})
	}
	return specs
}

// ExecCount returns how many times a tool has been executed.
func (r *Registry) ExecCount(name string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.execCount[name]
}

// Execute runs a tool and always returns a result string for the model:
// unknown tools, handler errors, and panics all become text. Anki failures
// keep their distinct prefix so the model can tell them from tool bugs.
func (r *Registry) Execute(ctx context.Context, name string, input map[string]interface{}) (result string) {
	r.mu.RLock()
	handler, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		logging.ToolsError("unknown tool requested: %s", name)
		return fmt.Sprintf("Unknown tool: %s", name)
	}

	r.mu.Lock()
	r.execCount[name]++
	r.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			logging.ToolsError("tool %s panicked: %v", name, rec)
			result = fmt.Sprintf("Error: %v", rec)
		}
	}()

	logging.Tools("executing %s", name)
	out, err := handler(ctx, input)
	if err != nil {
		var ankiErr *anki.AnkiError
		if errors.As(err, &ankiErr) {
			logging.ToolsError("tool %s anki error: %v", name, err)
			return fmt.Sprintf("Anki error: %s", ankiErr.Message)
		}
		logging.ToolsError("tool %s failed: %v", name, err)
		return fmt.Sprintf("Error: %s", err)
	}
	return out
}
