package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/agentcore/turncore/internal/entity"
)

// TodoItem is one entry of the session's shared todo list.
type TodoItem struct {
	Content string `json:"content"`
	Status  string `json:"status"` // pending, in_progress, completed
}

// TodoListener observes todo list replacements. Listeners receive an
// immutable snapshot and are invoked under the state's lock; they must not
// call back into the TodoState.
type TodoListener func(items []TodoItem)

// TodoState is the session-scoped mutable todo list shared across tools.
// Writers replace the entire list; readers get copies. It is scoped per
// session and passed into tool constructors rather than held globally.
type TodoState struct {
	mu        sync.Mutex
	items     []TodoItem
	listeners []TodoListener
}

// NewTodoState builds an empty todo state.
func NewTodoState() *TodoState {
	return &TodoState{}
}

// Items returns a copy of the current list.
func (s *TodoState) Items() []TodoItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TodoItem, len(s.items))
	copy(out, s.items)
	return out
}

// Replace swaps in a new list and notifies listeners with a snapshot.
func (s *TodoState) Replace(items []TodoItem) {
	snapshot := make([]TodoItem, len(items))
	copy(snapshot, items)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = snapshot
	for _, l := range s.listeners {
		l(snapshot)
	}
}

// Subscribe registers a listener for future replacements.
func (s *TodoState) Subscribe(l TodoListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// TodoTool lets the model replace the session todo list. The state is
// shared with whatever renderer the driver attaches.
type TodoTool struct {
	state *TodoState
}

// NewTodoTool builds the todo tool over a shared state.
func NewTodoTool(state *TodoState) *TodoTool {
	return &TodoTool{state: state}
}

func (t *TodoTool) Name() string { return "todo_write" }
func (t *TodoTool) Kind() Kind   { return KindThink }

func (t *TodoTool) Description() string {
	return "Replace the session todo list with a new set of items. " +
		"Each item has content and a status of pending, in_progress, or completed."
}

func (t *TodoTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"todos": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"content": {"type": "string"},
						"status": {"type": "string", "enum": ["pending", "in_progress", "completed"]}
					},
					"required": ["content", "status"]
				}
			}
		},
		"required": ["todos"]
	}`)
}

// Execute replaces the shared list and echoes a one-line-per-item summary.
func (t *TodoTool) Execute(ctx context.Context, args entity.Args, progress ProgressSink) (*Result, error) {
	raw, err := json.Marshal(args.Raw()["todos"])
	if err != nil {
		return ErrorResult(fmt.Sprintf("decode todos: %v", err)), nil
	}
	var items []TodoItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return ErrorResult("todos must be a list of {content, status} objects"), nil
	}
	t.state.Replace(items)

	var b strings.Builder
	fmt.Fprintf(&b, "%d todos\n", len(items))
	for _, it := range items {
		fmt.Fprintf(&b, "[%s] %s\n", it.Status, it.Content)
	}
	return &Result{
		Content: []entity.TextContent{{Text: strings.TrimRight(b.String(), "\n")}},
		Details: items,
	}, nil
}
