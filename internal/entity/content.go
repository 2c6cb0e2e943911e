package entity

import "encoding/json"

// ContentBlockType tags the variant of an AssistantMessage content block.
type ContentBlockType string

const (
	BlockText     ContentBlockType = "text"
	BlockThinking ContentBlockType = "reasoning"
	BlockToolCall ContentBlockType = "toolCall"
)

// ContentBlock is one ordered element of an AssistantMessage's content list.
type ContentBlock interface {
	Type() ContentBlockType
}

// TextBlock is plain assistant-visible text.
type TextBlock struct {
	Text string
}

func (TextBlock) Type() ContentBlockType { return BlockText }

// MarshalJSON stamps the block with its discriminator so it can round-trip
// through an untyped ContentBlock slice.
func (b TextBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type ContentBlockType `json:"type"`
		Text string           `json:"text"`
	}{BlockText, b.Text})
}

// ThinkingBlock carries model reasoning traces, when the provider exposes them.
type ThinkingBlock struct {
	Text string
}

func (ThinkingBlock) Type() ContentBlockType { return BlockThinking }

// MarshalJSON stamps the block with its discriminator.
func (b ThinkingBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type ContentBlockType `json:"type"`
		Text string           `json:"text"`
	}{BlockThinking, b.Text})
}

// ToolCallBlock is an assistant-issued tool invocation awaiting a result.
// Exactly one ToolResultMessage per ToolCallID must be appended before the
// next assistant turn begins.
type ToolCallBlock struct {
	ToolCallID string
	ToolName   string
	Arguments  json.RawMessage
}

func (ToolCallBlock) Type() ContentBlockType { return BlockToolCall }

// MarshalJSON stamps the block with its discriminator.
func (b ToolCallBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       ContentBlockType `json:"type"`
		ToolCallID string           `json:"toolCallId"`
		ToolName   string           `json:"toolName"`
		Arguments  json.RawMessage  `json:"arguments"`
	}{BlockToolCall, b.ToolCallID, b.ToolName, b.Arguments})
}

// TextContent is the simplified content unit carried by tool results —
// renderers may interpret richer payloads via Details.
type TextContent struct {
	Text string
}
