package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentcore/turncore/internal/entity"
	"go.uber.org/zap"
)

type echoTool struct {
	schema json.RawMessage
	fail   error
}

func (e *echoTool) Name() string            { return "echo" }
func (e *echoTool) Description() string     { return "echoes its message argument" }
func (e *echoTool) Kind() Kind               { return KindThink }
func (e *echoTool) Schema() json.RawMessage { return e.schema }

func (e *echoTool) Execute(ctx context.Context, args entity.Args, progress ProgressSink) (*Result, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	msg, err := args.RequiredString("message")
	if err != nil {
		return ErrorResult(err.Error()), nil
	}
	return TextResult(msg), nil
}

func newCall(t *testing.T, toolName string, args map[string]any) entity.ToolInvocation {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	decoded, err := entity.NewArgs(raw)
	if err != nil {
		t.Fatalf("decode args: %v", err)
	}
	return entity.ToolInvocation{ToolCallID: "call-1", ToolName: toolName, Arguments: decoded}
}

func TestDispatch_Success(t *testing.T) {
	reg := NewInMemoryRegistry()
	schema := json.RawMessage(`{"type":"object","properties":{"message":{"type":"string"}},"required":["message"]}`)
	if err := reg.Register(&echoTool{schema: schema}); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(reg, zap.NewNop())

	call := newCall(t, "echo", map[string]any{"message": "hi"})
	result := d.Dispatch(context.Background(), call, "msg-1", NoopProgress)

	if result.IsError {
		t.Fatalf("expected success, got error: %s", result.Text())
	}
	if result.Text() != "hi" {
		t.Fatalf("expected echoed text, got %q", result.Text())
	}
	if result.ToolCallID != "call-1" {
		t.Fatalf("tool call id not propagated: %q", result.ToolCallID)
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	reg := NewInMemoryRegistry()
	d := NewDispatcher(reg, zap.NewNop())

	call := newCall(t, "missing", map[string]any{})
	result := d.Dispatch(context.Background(), call, "msg-1", NoopProgress)

	if !result.IsError {
		t.Fatalf("expected error result for unknown tool")
	}
}

func TestDispatch_SchemaRejectsBeforeExecute(t *testing.T) {
	reg := NewInMemoryRegistry()
	schema := json.RawMessage(`{"type":"object","properties":{"message":{"type":"string"}},"required":["message"]}`)
	tool := &echoTool{schema: schema}
	if err := reg.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(reg, zap.NewNop())

	call := newCall(t, "echo", map[string]any{"message": 42})
	result := d.Dispatch(context.Background(), call, "msg-1", NoopProgress)

	if !result.IsError {
		t.Fatalf("expected schema validation to reject non-string message")
	}
}

func TestDispatch_ExecuteErrorBecomesErrorResult(t *testing.T) {
	reg := NewInMemoryRegistry()
	boom := &echoTool{fail: context.DeadlineExceeded}
	if err := reg.Register(boom); err != nil {
		t.Fatalf("register: %v", err)
	}
	d := NewDispatcher(reg, zap.NewNop())

	call := newCall(t, "echo", map[string]any{"message": "hi"})
	result := d.Dispatch(context.Background(), call, "msg-1", NoopProgress)

	if !result.IsError {
		t.Fatalf("expected execute error to be translated into an error result")
	}
}
