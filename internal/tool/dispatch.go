package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/agentcore/turncore/internal/entity"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

// Dispatcher validates arguments against a tool's declared schema and then
// executes it, translating any failure into an error ToolResult rather than
// propagating it to the turn loop.
type Dispatcher struct {
	registry Registry
	logger   *zap.Logger

	mu      sync.Mutex
	schemas map[string]*jsonschema.Schema // compiled, keyed by tool name
}

// NewDispatcher builds a Dispatcher over registry.
func NewDispatcher(registry Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger, schemas: make(map[string]*jsonschema.Schema)}
}

// Dispatch looks up, validates, and executes one tool invocation, reporting
// incremental progress through progress and returning a fully-formed
// ToolResultMessage. It returns no error: every failure is reported as an
// error result inside the returned message, which is never nil.
func (d *Dispatcher) Dispatch(ctx context.Context, call entity.ToolInvocation, resultID string, progress ProgressSink) *entity.ToolResultMessage {
	t, ok := d.registry.Lookup(call.ToolName)
	if !ok {
		return errorMessage(resultID, call, fmt.Sprintf("tool %q not found", call.ToolName))
	}

	if err := d.validate(t, call.Arguments); err != nil {
		return errorMessage(resultID, call, fmt.Sprintf("invalid arguments for %q: %v", call.ToolName, err))
	}

	start := time.Now()
	result, err := t.Execute(ctx, call.Arguments, progress)
	duration := time.Since(start)

	if err != nil {
		if d.logger != nil {
			d.logger.Warn("tool execution failed",
				zap.String("tool", call.ToolName),
				zap.String("tool_call_id", call.ToolCallID),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
		}
		return errorMessage(resultID, call, err.Error())
	}
	if result == nil {
		result = TextResult("")
	}

	if d.logger != nil {
		d.logger.Debug("tool execution completed",
			zap.String("tool", call.ToolName),
			zap.String("tool_call_id", call.ToolCallID),
			zap.Duration("duration", duration),
			zap.Bool("is_error", result.IsError),
		)
	}

	return entity.NewToolResultMessage(resultID, call.ToolCallID, call.ToolName, result.Content, result.Details, result.IsError)
}

func errorMessage(resultID string, call entity.ToolInvocation, message string) *entity.ToolResultMessage {
	return entity.NewToolResultMessage(resultID, call.ToolCallID, call.ToolName,
		[]entity.TextContent{{Text: message}}, nil, true)
}

// validate compiles (once, cached) and runs the tool's parameter schema
// against the decoded argument map.
func (d *Dispatcher) validate(t Tool, args entity.Args) error {
	schema, err := d.compiledSchema(t)
	if err != nil {
		return err
	}
	if schema == nil {
		return nil
	}
	return schema.Validate(args.Raw())
}

func (d *Dispatcher) compiledSchema(t Tool) (*jsonschema.Schema, error) {
	raw := t.Schema()
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.schemas[t.Name()]; ok {
		return s, nil
	}

	url := "mem://tool/" + t.Name() + ".json"
	compiler := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := compiler.AddResource(url, jsonDocReader(doc)); err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	d.schemas[t.Name()] = schema
	return schema, nil
}

// jsonDocReader re-encodes a decoded document so jsonschema.Compiler.AddResource,
// which expects an io.Reader, receives canonical JSON bytes.
func jsonDocReader(doc any) *bytes.Reader {
	b, _ := json.Marshal(doc)
	return bytes.NewReader(b)
}
