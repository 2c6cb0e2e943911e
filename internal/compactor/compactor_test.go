package compactor

import (
	"context"
	"strings"
	"testing"

	"github.com/agentcore/turncore/internal/entity"
)

type stubProvider struct {
	summary string
	err     error
}

func (s stubProvider) Summarize(ctx context.Context, prompt string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.summary, nil
}

func textMsg(id, role, text string) entity.Message {
	switch role {
	case "user":
		return entity.NewUserMessage(id, text, nil)
	case "bash":
		return &entity.BashExecutionMessage{Command: text, Output: text}
	default:
		m := entity.NewAssistantMessage(id)
		m.Content = []entity.ContentBlock{entity.TextBlock{Text: text}}
		m.StopReason = entity.StopReasonStop
		return m
	}
}

func TestCutIndex_LandsOnTurnBoundary(t *testing.T) {
	messages := []entity.Message{
		textMsg("1", "user", "start the task"),
		textMsg("2", "assistant", strings.Repeat("x", 4000)),
		textMsg("3", "user", "continue"),
		textMsg("4", "assistant", strings.Repeat("y", 4000)),
	}

	cut := CutIndex(messages, 10) // tiny budget forces a cut near the tail

	if !messages[cut].Role().IsTurnBoundary() {
		t.Fatalf("cut index %d (role %s) is not a turn boundary", cut, messages[cut].Role())
	}
}

func TestShouldCompact_TriggersOverThreshold(t *testing.T) {
	cfg := Config{ContextWindow: 1000, ReserveTokens: 100, KeepRecentTokens: 400, Enabled: true}
	c := New(cfg, stubProvider{summary: "s"})

	messages := []entity.Message{
		textMsg("1", "user", strings.Repeat("a", 4000)), // ~1000 tokens
	}
	if !c.ShouldCompact(messages) {
		t.Fatalf("expected compaction to trigger when estimate exceeds window-reserve")
	}
}

func TestCompact_ProducesSummaryAndRetainsSuffix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KeepRecentTokens = 1
	c := New(cfg, stubProvider{summary: "summary text"})

	messages := []entity.Message{
		textMsg("1", "user", "hello"),
		textMsg("2", "assistant", "hi there"),
		textMsg("3", "user", "do the thing"),
	}

	result, err := c.Compact(context.Background(), messages, "summary-id")
	if err != nil {
		t.Fatalf("compact: %v", err)
	}

	first, ok := result.Messages[0].(*entity.CompactionSummaryMessage)
	if !ok {
		t.Fatalf("expected first message to be a summary, got %T", result.Messages[0])
	}
	if first.Summary != "summary text" {
		t.Fatalf("unexpected summary: %q", first.Summary)
	}
	if len(result.Messages) < 2 {
		t.Fatalf("expected retained suffix alongside summary, got %d messages", len(result.Messages))
	}
}

func TestPrune_TruncatesOldLargeToolResults(t *testing.T) {
	big := strings.Repeat("z", 600)
	old := entity.NewToolResultMessage("t1", "call-1", "bash", []entity.TextContent{{Text: big}}, nil, false)
	recent := entity.NewToolResultMessage("t2", "call-2", "bash", []entity.TextContent{{Text: "short"}}, nil, false)

	messages := []entity.Message{old, recent}
	pruned := Prune(messages, 0)

	prunedOld := pruned[0].(*entity.ToolResultMessage)
	if len(prunedOld.Text()) >= len(big) {
		t.Fatalf("expected old large tool result to be truncated, got length %d", len(prunedOld.Text()))
	}
	if !strings.Contains(prunedOld.Text(), "truncated") {
		t.Fatalf("expected truncation marker in pruned text")
	}
}
