package loop

import (
	"context"

	"github.com/agentcore/turncore/internal/entity"
	"github.com/agentcore/turncore/internal/tool"
)

// ThinkingEffort selects how much reasoning budget the provider should
// spend, independent of provider-specific interpretation.
type ThinkingEffort string

const (
	ThinkingOff     ThinkingEffort = "off"
	ThinkingMinimal ThinkingEffort = "minimal"
	ThinkingLow     ThinkingEffort = "low"
	ThinkingMedium  ThinkingEffort = "medium"
	ThinkingHigh    ThinkingEffort = "high"
	ThinkingXHigh   ThinkingEffort = "xhigh"
)

// StreamOptions configures one model provider stream call.
type StreamOptions struct {
	Model        string
	Thinking     ThinkingEffort
	SystemPrompt string
}

// StreamEventKind tags one unit yielded by a ModelProvider stream.
type StreamEventKind string

const (
	StreamContentBlock StreamEventKind = "contentBlock"
	StreamUsage        StreamEventKind = "usage"
	StreamStopReason   StreamEventKind = "stopReason"
)

// StreamEvent is one unit of a model provider's streamed response.
type StreamEvent struct {
	Kind       StreamEventKind
	Block      entity.ContentBlock
	BlockIndex int
	Usage      entity.Usage
	StopReason entity.StopReason
	ErrorText  string // populated when StopReason == StopReasonError
}

// ModelProvider is the turn loop's sole dependency on an inference backend.
// Stream must honor ctx cancellation cooperatively: once ctx is done it
// should close the channel promptly rather than block.
type ModelProvider interface {
	Stream(ctx context.Context, messages []entity.Message, tools []tool.Definition, opts StreamOptions) (<-chan StreamEvent, error)
}

// SummaryAdapter satisfies compactor.SummaryProvider by running a one-shot
// turn against the same ModelProvider used for the main loop.
type SummaryAdapter struct {
	Provider ModelProvider
	Model    string
}

// Summarize implements compactor.SummaryProvider.
func (a SummaryAdapter) Summarize(ctx context.Context, prompt string) (string, error) {
	return Summarize(ctx, a.Provider, a.Model, prompt)
}

// Summarize runs a one-shot, non-streaming turn against provider.
func Summarize(ctx context.Context, provider ModelProvider, model string, prompt string) (string, error) {
	msgs := []entity.Message{entity.NewUserMessage("", prompt, nil)}
	events, err := provider.Stream(ctx, msgs, nil, StreamOptions{Model: model, Thinking: ThinkingLow})
	if err != nil {
		return "", err
	}
	var text string
	for ev := range events {
		if ev.Kind == StreamContentBlock {
			if tb, ok := ev.Block.(entity.TextBlock); ok {
				text += tb.Text
			}
		}
	}
	return text, nil
}
