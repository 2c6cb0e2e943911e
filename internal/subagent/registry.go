// Package subagent implements the task tool: validation, sequential and
// parallel dispatch of sub-agent tasks under a depth guard, and per-task
// child session journals.
package subagent

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/agentcore/turncore/internal/entity"
)

var taskIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)

// ValidTaskID reports whether id matches the required task-id shape.
func ValidTaskID(id string) bool { return taskIDPattern.MatchString(id) }

// DefinitionRegistry looks up sub-agent personas by name. Discovery order
// on name collision (project → user → bundled) is enforced by whoever
// populates the registry, not by lookup itself.
type DefinitionRegistry interface {
	Lookup(name string) (entity.SubAgentDefinition, bool)
	Names() []string
}

// InMemoryDefinitionRegistry is a concurrency-safe DefinitionRegistry.
type InMemoryDefinitionRegistry struct {
	mu    sync.RWMutex
	defs  map[string]entity.SubAgentDefinition
}

// NewInMemoryDefinitionRegistry builds an empty registry.
func NewInMemoryDefinitionRegistry() *InMemoryDefinitionRegistry {
	return &InMemoryDefinitionRegistry{defs: make(map[string]entity.SubAgentDefinition)}
}

// Put registers or overwrites a definition. Later sources overwrite earlier
// ones only if the caller calls Put in discovery order; PutIfAbsent should
// be used when later sources must be skipped on name collision instead.
func (r *InMemoryDefinitionRegistry) Put(def entity.SubAgentDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
}

// PutIfAbsent registers def only if no definition with that name exists yet.
func (r *InMemoryDefinitionRegistry) PutIfAbsent(def entity.SubAgentDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; !exists {
		r.defs[def.Name] = def
	}
}

// Lookup implements DefinitionRegistry.
func (r *InMemoryDefinitionRegistry) Lookup(name string) (entity.SubAgentDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	return d, ok
}

// Names implements DefinitionRegistry, sorted for deterministic listings.
func (r *InMemoryDefinitionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.defs))
	for n := range r.defs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ValidationError is returned for pre-dispatch validation failures: the
// caller should surface it as an error ToolResult with an empty details
// list and spawn no sub-agent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Task is one requested unit of sub-agent work.
type Task struct {
	ID          string
	Description string
	Assignment  string
}

// Request is the decoded task tool invocation.
type Request struct {
	Agent          string
	Context        string
	SchemaOverride []byte // raw JTD schema, nil if absent
	Parallel       bool
	Tasks          []Task
}

// Validate runs the three pre-dispatch checks in order: agent exists,
// every task id matches the required shape, and currentDepth < maxDepth.
func Validate(req Request, registry DefinitionRegistry, currentDepth, maxDepth int) error {
	if _, ok := registry.Lookup(req.Agent); !ok {
		return &ValidationError{Message: fmt.Sprintf("unknown sub-agent %q", req.Agent)}
	}
	for _, t := range req.Tasks {
		if !ValidTaskID(t.ID) {
			return &ValidationError{Message: fmt.Sprintf("invalid task id %q", t.ID)}
		}
	}
	if currentDepth >= maxDepth {
		return &ValidationError{Message: fmt.Sprintf("Maximum recursion depth (%d) reached", maxDepth)}
	}
	return nil
}

// DefaultMaxDepth is the default sub-agent recursion cap.
const DefaultMaxDepth = 2
