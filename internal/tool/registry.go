package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"
)

// Registry manages tool registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry, replacing any tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tools.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	return tools
}

// Names returns all tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Suggest returns the registered name closest to the given one, if any name
// is within a small edit distance.
func (r *Registry) Suggest(name string) (string, bool) {
	const maxDistance = 3

	best := ""
	bestDistance := maxDistance + 1
	for _, candidate := range r.Names() {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDistance {
			best = candidate
			bestDistance = d
		}
	}
	return best, best != ""
}

// NotFoundError is returned when a tool name has no registration.
type NotFoundError struct {
	Name       string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("tool %q not found (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("tool %q not found", e.Name)
}

// Lookup retrieves a tool or returns a NotFoundError with a suggestion.
func (r *Registry) Lookup(name string) (Tool, error) {
	if t, ok := r.Get(name); ok {
		return t, nil
	}
	suggestion, _ := r.Suggest(name)
	return nil, &NotFoundError{Name: name, Suggestion: suggestion}
}

// DefaultRegistry creates a registry with all reference tools.
func DefaultRegistry(workDir string) *Registry {
	r := NewRegistry()
	r.Register(NewBashTool(workDir))
	r.Register(NewReadTool(workDir))
	r.Register(NewWriteTool(workDir))
	r.Register(NewGlobTool(workDir))
	r.Register(NewWebFetchTool())
	return r
}
