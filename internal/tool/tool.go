// Package tool defines the uniform tool invocation surface: the Tool
// contract, its registry, and the dispatcher that validates arguments and
// translates failures into error ToolResults instead of propagating them.
package tool

import (
	"context"
	"encoding/json"

	"github.com/agentcore/turncore/internal/entity"
)

// Kind loosely categorizes a tool's effect, for callers that want to make
// policy decisions (confirmation prompts, audit logging) without knowing
// every tool by name.
type Kind string

const (
	KindRead        Kind = "read"
	KindEdit        Kind = "edit"
	KindExecute     Kind = "execute"
	KindDelete      Kind = "delete"
	KindSearch      Kind = "search"
	KindFetch       Kind = "fetch"
	KindThink       Kind = "think"
	KindCommunicate Kind = "communicate"
	KindOrchestrate Kind = "orchestrate" // task, batch, submit_result
)

// ProgressSink receives incremental textual progress from a running tool,
// surfaced to callers as ToolExecutionUpdate events.
type ProgressSink interface {
	Progress(partial string)
}

// ProgressSinkFunc adapts a function to ProgressSink.
type ProgressSinkFunc func(partial string)

// Progress implements ProgressSink.
func (f ProgressSinkFunc) Progress(partial string) {
	if f != nil {
		f(partial)
	}
}

// NoopProgress discards all progress updates.
var NoopProgress ProgressSink = ProgressSinkFunc(nil)

// Definition describes a tool's calling surface for the model provider.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON-Schema object
}

// Result is the outcome of one tool execution. IsError distinguishes a
// handled failure (surfaced to the model as text) from success; it never
// aborts the turn loop.
type Result struct {
	Content  []entity.TextContent
	IsError  bool
	Details  any
	Metadata map[string]any
}

// Text concatenates the result's text content blocks.
func (r *Result) Text() string {
	var out string
	for _, c := range r.Content {
		out += c.Text
	}
	return out
}

// ErrorResult builds a single-block error Result.
func ErrorResult(message string) *Result {
	return &Result{Content: []entity.TextContent{{Text: message}}, IsError: true}
}

// TextResult builds a single-block success Result.
func TextResult(text string) *Result {
	return &Result{Content: []entity.TextContent{{Text: text}}}
}

// Tool is the contract every dispatchable tool implements. Execute may
// suspend; implementations must honor ctx cancellation and return promptly
// once it is done.
type Tool interface {
	Name() string
	Description() string
	Kind() Kind
	Schema() json.RawMessage
	Execute(ctx context.Context, args entity.Args, progress ProgressSink) (*Result, error)
}

// DefinitionOf builds t's Definition from its Name/Description/Schema.
func DefinitionOf(t Tool) Definition {
	return Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()}
}
