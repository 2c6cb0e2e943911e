package batchtool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/agentcore/turncore/internal/entity"
	"github.com/agentcore/turncore/internal/tool"
	"go.uber.org/zap"
)

type fakeTool struct {
	name string
	fn   func(args entity.Args) (*tool.Result, error)
}

func (f *fakeTool) Name() string             { return f.name }
func (f *fakeTool) Description() string      { return "test tool" }
func (f *fakeTool) Kind() tool.Kind          { return tool.KindRead }
func (f *fakeTool) Schema() json.RawMessage  { return nil }

func (f *fakeTool) Execute(ctx context.Context, args entity.Args, progress tool.ProgressSink) (*tool.Result, error) {
	return f.fn(args)
}

func newBatchArgs(t *testing.T, invocations []map[string]any) entity.Args {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"invocations": invocations})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	args, err := entity.NewArgs(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return args
}

func newRegistry(t *testing.T, tools ...tool.Tool) tool.Registry {
	t.Helper()
	reg := tool.NewInMemoryRegistry()
	for _, tl := range tools {
		if err := reg.Register(tl); err != nil {
			t.Fatalf("register %s: %v", tl.Name(), err)
		}
	}
	return reg
}

func TestBatch_PartialFailure(t *testing.T) {
	read := &fakeTool{name: "read", fn: func(args entity.Args) (*tool.Result, error) {
		if args.String("path") == "nope.txt" {
			return nil, errors.New("no such file: nope.txt")
		}
		return tool.TextResult("contents of " + args.String("path")), nil
	}}
	b := New(newRegistry(t, read), zap.NewNop())

	args := newBatchArgs(t, []map[string]any{
		{"tool": "read", "input": map[string]any{"path": "exists.txt"}},
		{"tool": "read", "input": map[string]any{"path": "nope.txt"}},
	})
	result, err := b.Execute(context.Background(), args, tool.NoopProgress)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("batch itself should not error: %s", result.Text())
	}

	details, ok := result.Details.([]CallResult)
	if !ok {
		t.Fatalf("details type %T", result.Details)
	}
	if len(details) != 2 {
		t.Fatalf("want 2 results, got %d", len(details))
	}
	if !details[0].Success || details[1].Success {
		t.Fatalf("want success=[true,false], got [%v,%v]", details[0].Success, details[1].Success)
	}
	if details[1].Error == "" {
		t.Fatal("failed invocation should carry its error message")
	}
	if !strings.Contains(result.Text(), "1/2 succeeded, 1 failed") {
		t.Fatalf("summary missing counts: %q", result.Text())
	}
}

func TestBatch_OrderPreserved(t *testing.T) {
	echo := &fakeTool{name: "echo", fn: func(args entity.Args) (*tool.Result, error) {
		return tool.TextResult(args.String("v")), nil
	}}
	b := New(newRegistry(t, echo), zap.NewNop())

	var invocations []map[string]any
	want := []string{"a", "b", "c", "d", "e"}
	for _, v := range want {
		invocations = append(invocations, map[string]any{"tool": "echo", "input": map[string]any{"v": v}})
	}
	result, err := b.Execute(context.Background(), newBatchArgs(t, invocations), tool.NoopProgress)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	details := result.Details.([]CallResult)
	for i, v := range want {
		if details[i].Output != v {
			t.Fatalf("result %d: want %q, got %q", i, v, details[i].Output)
		}
	}
}

func TestBatch_Validation(t *testing.T) {
	echo := &fakeTool{name: "echo", fn: func(args entity.Args) (*tool.Result, error) {
		return tool.TextResult("ok"), nil
	}}
	b := New(newRegistry(t, echo), zap.NewNop())

	cases := []struct {
		name        string
		invocations []map[string]any
		wantErr     string
	}{
		{"empty list", nil, "at least one"},
		{"unknown tool", []map[string]any{{"tool": "ghost", "input": map[string]any{}}}, "unknown tool"},
		{"forbidden batch", []map[string]any{{"tool": "batch", "input": map[string]any{}}}, "cannot be invoked"},
		{"forbidden task", []map[string]any{{"tool": "task", "input": map[string]any{}}}, "cannot be invoked"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := b.Execute(context.Background(), newBatchArgs(t, tc.invocations), tool.NoopProgress)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if !result.IsError {
				t.Fatal("want validation error result")
			}
			if !strings.Contains(result.Text(), tc.wantErr) {
				t.Fatalf("want %q in %q", tc.wantErr, result.Text())
			}
		})
	}
}

func TestBatch_LimitExceeded(t *testing.T) {
	echo := &fakeTool{name: "echo", fn: func(args entity.Args) (*tool.Result, error) {
		return tool.TextResult("ok"), nil
	}}
	b := New(newRegistry(t, echo), zap.NewNop())

	var invocations []map[string]any
	for i := 0; i < maxInvocations+1; i++ {
		invocations = append(invocations, map[string]any{"tool": "echo", "input": map[string]any{}})
	}
	result, err := b.Execute(context.Background(), newBatchArgs(t, invocations), tool.NoopProgress)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("want limit error")
	}
	if !strings.Contains(result.Text(), "at most 25") {
		t.Fatalf("want limit message, got %q", result.Text())
	}
}

func TestBatch_PanicIsolated(t *testing.T) {
	boom := &fakeTool{name: "boom", fn: func(args entity.Args) (*tool.Result, error) {
		panic("kaboom")
	}}
	echo := &fakeTool{name: "echo", fn: func(args entity.Args) (*tool.Result, error) {
		return tool.TextResult("ok"), nil
	}}
	b := New(newRegistry(t, boom, echo), zap.NewNop())

	args := newBatchArgs(t, []map[string]any{
		{"tool": "boom", "input": map[string]any{}},
		{"tool": "echo", "input": map[string]any{}},
	})
	result, err := b.Execute(context.Background(), args, tool.NoopProgress)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	details := result.Details.([]CallResult)
	if details[0].Success {
		t.Fatal("panicking invocation should fail")
	}
	if !details[1].Success || details[1].Output != "ok" {
		t.Fatal("sibling invocation must be unaffected by a panic")
	}
}
