package subagent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentcore/turncore/internal/entity"
	"github.com/agentcore/turncore/internal/tool"
	"go.uber.org/zap"
)

const toolName = "task"

// TaskTool delegates work to recursively spawned sub-agents. Children run
// their own turn loops with the task tool itself excluded from their
// registries; the depth cap is a second guard on top of that.
type TaskTool struct {
	runner   *Runner
	maxDepth int
	logger   *zap.Logger
}

// NewTaskTool builds the task tool. maxDepth <= 0 selects DefaultMaxDepth.
func NewTaskTool(runner *Runner, maxDepth int, logger *zap.Logger) *TaskTool {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &TaskTool{runner: runner, maxDepth: maxDepth, logger: logger}
}

func (t *TaskTool) Name() string    { return toolName }
func (t *TaskTool) Kind() tool.Kind { return tool.KindOrchestrate }

func (t *TaskTool) Description() string {
	return "Delegate one or more tasks to a named sub-agent. Each task runs in an " +
		"isolated turn loop with its own session. Set parallel=true only for tasks " +
		"that do not depend on each other's results."
}

func (t *TaskTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"agent": {"type": "string"},
			"context": {"type": "string"},
			"schema": {"type": "object"},
			"parallel": {"type": "boolean"},
			"tasks": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"id": {"type": "string"},
						"description": {"type": "string"},
						"assignment": {"type": "string"}
					},
					"required": ["id", "assignment"]
				}
			}
		},
		"required": ["agent", "tasks"]
	}`)
}

// taskWire mirrors the declared parameter shape for decoding.
type taskWire struct {
	Agent    string          `json:"agent"`
	Context  string          `json:"context"`
	Schema   json.RawMessage `json:"schema"`
	Parallel bool            `json:"parallel"`
	Tasks    []struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		Assignment  string `json:"assignment"`
	} `json:"tasks"`
}

// Execute validates the request up front — unknown agent, malformed task
// id, or exceeded depth returns an error result with an empty details list
// and spawns nothing.
func (t *TaskTool) Execute(ctx context.Context, args entity.Args, progress tool.ProgressSink) (*tool.Result, error) {
	req, err := decodeRequest(args)
	if err != nil {
		return validationFailure(err.Error()), nil
	}
	if len(req.Tasks) == 0 {
		return validationFailure("task requires at least one task"), nil
	}

	depth := DepthFromContext(ctx)
	if err := Validate(req, t.runner.Definitions(), depth, t.maxDepth); err != nil {
		return validationFailure(err.Error()), nil
	}

	if t.logger != nil {
		t.logger.Info("spawning sub-agent tasks",
			zap.String("agent", req.Agent),
			zap.Int("tasks", len(req.Tasks)),
			zap.Bool("parallel", req.Parallel),
			zap.Int("depth", depth+1),
		)
	}

	results := t.runner.Run(ctx, req, progress)

	return &tool.Result{
		Content: []entity.TextContent{{Text: summarizeResults(results)}},
		Details: results,
	}, nil
}

func decodeRequest(args entity.Args) (Request, error) {
	raw, err := json.Marshal(args.Raw())
	if err != nil {
		return Request{}, fmt.Errorf("decode task request: %w", err)
	}
	var wire taskWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Request{}, fmt.Errorf("decode task request: %w", err)
	}

	req := Request{
		Agent:          wire.Agent,
		Context:        wire.Context,
		SchemaOverride: wire.Schema,
		Parallel:       wire.Parallel,
	}
	for _, task := range wire.Tasks {
		req.Tasks = append(req.Tasks, Task{ID: task.ID, Description: task.Description, Assignment: task.Assignment})
	}
	return req, nil
}

func validationFailure(message string) *tool.Result {
	return &tool.Result{
		Content: []entity.TextContent{{Text: message}},
		Details: []entity.SubAgentResult{},
		IsError: true,
	}
}

func summarizeResults(results []entity.SubAgentResult) string {
	var b strings.Builder
	succeeded := 0
	for _, r := range results {
		if r.Succeeded() {
			succeeded++
		}
	}
	fmt.Fprintf(&b, "%d/%d tasks succeeded\n", succeeded, len(results))
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, statusLine(r))
		if r.Output != "" {
			b.WriteString(indent(r.Output))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	var b strings.Builder
	for _, line := range lines {
		b.WriteString("   ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
