// Package compactor estimates context size, decides when and where to cut
// the message list, and substitutes a generated summary for the discarded
// prefix using an authoritative-Usage-plus-heuristic token accounting
// model.
package compactor

import (
	"encoding/json"

	"github.com/agentcore/turncore/internal/entity"
)

// EstimateTokens approximates the token cost of a message using the
// character_count/4 heuristic over its text content and, for assistant
// messages, its tool-call argument strings.
func EstimateTokens(m entity.Message) int {
	chars := 0
	switch msg := m.(type) {
	case *entity.UserMessage:
		chars += len(msg.Text)
	case *entity.AssistantMessage:
		for _, b := range msg.Content {
			switch block := b.(type) {
			case entity.TextBlock:
				chars += len(block.Text)
			case entity.ThinkingBlock:
				chars += len(block.Text)
			case entity.ToolCallBlock:
				chars += len(block.Arguments)
			}
		}
	case *entity.ToolResultMessage:
		chars += len(msg.Text())
	case *entity.CustomMessage:
		if b, err := json.Marshal(msg.Payload); err == nil {
			chars += len(b)
		}
	case *entity.BashExecutionMessage:
		chars += len(msg.Command) + len(msg.Output)
	case *entity.BranchSummaryMessage:
		chars += len(msg.Summary)
	case *entity.CompactionSummaryMessage:
		chars += len(msg.Summary)
	}
	return chars / 4
}

// ContextEstimate computes the context token estimate for messages: the
// authoritative Usage of the last assistant message with a non-error stop
// reason, plus a heuristic estimate of every message after that anchor (or
// of every message, if no anchor exists).
func ContextEstimate(messages []entity.Message) int {
	anchor := -1
	authoritative := 0
	for i := len(messages) - 1; i >= 0; i-- {
		am, ok := messages[i].(*entity.AssistantMessage)
		if !ok || am.StopReason == entity.StopReasonError {
			continue
		}
		anchor = i
		authoritative = am.Usage.Total()
		break
	}

	trailing := 0
	for i := anchor + 1; i < len(messages); i++ {
		trailing += EstimateTokens(messages[i])
	}
	return authoritative + trailing
}
