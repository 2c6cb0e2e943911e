// Package submit implements the submit_result tool offered only to
// sub-agents: it validates their final result against a JTD-derived
// JSON-Schema and terminates the sub-agent's turn loop on acceptance.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/agentcore/turncore/internal/entity"
	"github.com/agentcore/turncore/internal/jtd"
	"github.com/agentcore/turncore/internal/tool"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Status is the sub-agent's self-reported outcome.
type Status string

const (
	StatusSuccess Status = "success"
	StatusAborted Status = "aborted"
)

// Outcome is the validated payload handed to the completion callback.
type Outcome struct {
	Status Status
	Result any
	Error  string
}

// CompletionFunc is invoked exactly once, on the call that the submitter
// accepts as final (successful validation, or any aborted submission).
type CompletionFunc func(Outcome)

const toolName = "submit_result"

// Tool is the submit_result tool bound to one sub-agent run.
type Tool struct {
	schema *jsonschema.Schema // nil if the sub-agent carries no output schema
	onDone CompletionFunc

	mu   sync.Mutex
	done bool
}

// New builds a submit_result tool. outputSchema is the sub-agent
// definition's JTD schema (nil if the definition declares none); schemaOverride,
// when present, takes precedence over the definition's own schema.
func New(outputSchema, schemaOverride json.RawMessage, onDone CompletionFunc) (*Tool, error) {
	raw := outputSchema
	if len(schemaOverride) > 0 {
		raw = schemaOverride
	}
	t := &Tool{onDone: onDone}
	if len(raw) == 0 {
		return t, nil
	}

	var jtdSchema jtd.Schema
	if err := json.Unmarshal(raw, &jtdSchema); err != nil {
		return nil, fmt.Errorf("decode JTD output schema: %w", err)
	}
	jsonSchemaBytes, err := jtd.Marshal(jtdSchema)
	if err != nil {
		return nil, fmt.Errorf("convert JTD output schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	const url = "mem://submit/output.json"
	if err := compiler.AddResource(url, bytes.NewReader(jsonSchemaBytes)); err != nil {
		return nil, fmt.Errorf("load output schema: %w", err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile output schema: %w", err)
	}
	t.schema = compiled
	return t, nil
}

func (t *Tool) Name() string        { return toolName }
func (t *Tool) Description() string { return "Submit the final structured result for this task and end the run." }
func (t *Tool) Kind() tool.Kind      { return tool.KindOrchestrate }

func (t *Tool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"result": {},
			"status": {"type": "string", "enum": ["success", "aborted"]},
			"error": {"type": "string"}
		},
		"required": ["status"]
	}`)
}

// Execute validates the submission and, if accepted, invokes the
// completion callback. The tool never returns a Go error: every outcome
// (including validation failure) is communicated via the ToolResult so the
// calling turn loop keeps running until submission succeeds.
func (t *Tool) Execute(ctx context.Context, args entity.Args, progress tool.ProgressSink) (*tool.Result, error) {
	status := Status(args.String("status"))
	if status != StatusSuccess && status != StatusAborted {
		return tool.ErrorResult(fmt.Sprintf("status must be %q or %q", StatusSuccess, StatusAborted)), nil
	}

	errText := args.String("error")

	if status == StatusAborted {
		t.complete(Outcome{Status: status, Error: errText})
		return tool.TextResult("task marked aborted"), nil
	}

	result := args.Raw()["result"]

	if t.schema != nil {
		if err := t.schema.Validate(result); err != nil {
			return tool.ErrorResult(formatValidationErrors(err)), nil
		}
	}

	t.complete(Outcome{Status: status, Result: result})
	return tool.TextResult("result accepted"), nil
}

func (t *Tool) complete(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	if t.onDone != nil {
		t.onDone(o)
	}
}

// Done reports whether a terminal submission has already been accepted.
func (t *Tool) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func formatValidationErrors(err error) string {
	var lines []string
	if ve, ok := err.(*jsonschema.ValidationError); ok {
		for _, cause := range ve.Causes {
			lines = append(lines, cause.Error())
		}
	}
	if len(lines) == 0 {
		lines = []string{err.Error()}
	}
	return "validation failed, call submit_result again:\n" + strings.Join(lines, "\n")
}
