// Package batchtool implements the batch tool: concurrent fan-out over
// independent tool invocations with per-invocation failure isolation.
package batchtool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/agentcore/turncore/internal/entity"
	"github.com/agentcore/turncore/internal/safego"
	"github.com/agentcore/turncore/internal/tool"
	"go.uber.org/zap"
)

const (
	toolName       = "batch"
	maxInvocations = 25
)

// forbiddenTools may not be fanned out through batch: nesting batch would
// allow unbounded concurrency, and task fan-out is governed by the
// sub-agent orchestrator's own depth and parallelism rules.
var forbiddenTools = map[string]bool{
	"batch": true,
	"task":  true,
}

// Invocation is one requested (tool, input) pair.
type Invocation struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

// CallResult is the outcome of one invocation within a batch. Results are
// returned in declared order regardless of completion order.
type CallResult struct {
	Tool    string `json:"tool"`
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
}

// Tool executes up to maxInvocations independent tool calls concurrently.
// A failure in one invocation never cancels or alters the outcome of any
// other.
type Tool struct {
	registry tool.Registry
	logger   *zap.Logger
}

// New builds the batch tool over registry.
func New(registry tool.Registry, logger *zap.Logger) *Tool {
	return &Tool{registry: registry, logger: logger}
}

func (t *Tool) Name() string    { return toolName }
func (t *Tool) Kind() tool.Kind { return tool.KindOrchestrate }

func (t *Tool) Description() string {
	return "Run up to 25 independent tool invocations concurrently and return every outcome. " +
		"Use this when several tool calls do not depend on each other's results."
}

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"invocations": {
				"type": "array",
				"items": {
					"type": "object",
					"properties": {
						"tool": {"type": "string"},
						"input": {"type": "object"}
					},
					"required": ["tool", "input"]
				}
			}
		},
		"required": ["invocations"]
	}`)
}

// Execute validates the invocation list up front and returns immediately
// with an error result if any entry is invalid; no partial dispatch happens
// for an invalid batch.
func (t *Tool) Execute(ctx context.Context, args entity.Args, progress tool.ProgressSink) (*tool.Result, error) {
	invocations, err := decodeInvocations(args)
	if err != nil {
		return tool.ErrorResult(err.Error()), nil
	}
	if len(invocations) == 0 {
		return tool.ErrorResult("batch requires at least one invocation"), nil
	}
	if len(invocations) > maxInvocations {
		return tool.ErrorResult(fmt.Sprintf("batch accepts at most %d invocations, got %d", maxInvocations, len(invocations))), nil
	}
	for _, inv := range invocations {
		if forbiddenTools[inv.Tool] {
			return tool.ErrorResult(fmt.Sprintf("tool %q cannot be invoked through batch", inv.Tool)), nil
		}
		if !t.registry.Has(inv.Tool) {
			return tool.ErrorResult(fmt.Sprintf("unknown tool %q", inv.Tool)), nil
		}
	}

	results := make([]CallResult, len(invocations))
	var wg sync.WaitGroup
	for i, inv := range invocations {
		wg.Add(1)
		i, inv := i, inv
		safego.Go(t.logger, "batch-invocation", func() {
			defer wg.Done()
			results[i] = t.runOne(ctx, inv)
		})
	}
	wg.Wait()

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	if t.logger != nil {
		t.logger.Debug("batch completed",
			zap.Int("invocations", len(results)),
			zap.Int("succeeded", succeeded),
		)
	}

	return &tool.Result{
		Content: []entity.TextContent{{Text: summarize(results, succeeded)}},
		Details: results,
	}, nil
}

func (t *Tool) runOne(ctx context.Context, inv Invocation) CallResult {
	target, ok := t.registry.Lookup(inv.Tool)
	if !ok {
		return CallResult{Tool: inv.Tool, Error: fmt.Sprintf("tool %q not found", inv.Tool)}
	}
	args, err := entity.NewArgs(inv.Input)
	if err != nil {
		return CallResult{Tool: inv.Tool, Error: err.Error()}
	}

	var (
		result  *tool.Result
		execErr error
	)
	panicked := safego.Run(t.logger, "batch-"+inv.Tool, func() {
		result, execErr = target.Execute(ctx, args, tool.NoopProgress)
	})
	if panicked {
		return CallResult{Tool: inv.Tool, Error: "tool panicked"}
	}
	if execErr != nil {
		return CallResult{Tool: inv.Tool, Error: execErr.Error()}
	}
	if result == nil {
		return CallResult{Tool: inv.Tool, Success: true}
	}
	if result.IsError {
		return CallResult{Tool: inv.Tool, Output: result.Text(), Error: result.Text()}
	}
	return CallResult{Tool: inv.Tool, Success: true, Output: result.Text()}
}

func decodeInvocations(args entity.Args) ([]Invocation, error) {
	raw, err := json.Marshal(args.Raw()["invocations"])
	if err != nil {
		return nil, fmt.Errorf("decode invocations: %w", err)
	}
	var invocations []Invocation
	if err := json.Unmarshal(raw, &invocations); err != nil {
		return nil, fmt.Errorf("invocations must be a list of {tool, input} objects: %w", err)
	}
	return invocations, nil
}

func summarize(results []CallResult, succeeded int) string {
	var b strings.Builder
	failed := len(results) - succeeded
	if failed == 0 {
		fmt.Fprintf(&b, "%d/%d succeeded\n", succeeded, len(results))
	} else {
		fmt.Fprintf(&b, "%d/%d succeeded, %d failed\n", succeeded, len(results), failed)
	}
	for i, r := range results {
		if r.Success {
			fmt.Fprintf(&b, "%d. %s: ok\n", i+1, r.Tool)
		} else {
			fmt.Fprintf(&b, "%d. %s: failed: %s\n", i+1, r.Tool, r.Error)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
