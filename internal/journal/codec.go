package journal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentcore/turncore/internal/entity"
)

// message kind tags used in MessagePayload.Kind, stable across journal
// format versions regardless of internal Go type names.
const (
	kindUser              = "user"
	kindAssistant         = "assistant"
	kindToolResult        = "toolResult"
	kindCustom            = "custom"
	kindBashExecution     = "bashExecution"
	kindBranchSummary     = "branchSummary"
	kindCompactionSummary = "compactionSummary"
)

// encodeMessage converts a Message to its on-disk representation.
func encodeMessage(m entity.Message) (MessagePayload, error) {
	var kind string
	switch m.(type) {
	case *entity.UserMessage:
		kind = kindUser
	case *entity.AssistantMessage:
		kind = kindAssistant
	case *entity.ToolResultMessage:
		kind = kindToolResult
	case *entity.CustomMessage:
		kind = kindCustom
	case *entity.BashExecutionMessage:
		kind = kindBashExecution
	case *entity.BranchSummaryMessage:
		kind = kindBranchSummary
	case *entity.CompactionSummaryMessage:
		kind = kindCompactionSummary
	default:
		return MessagePayload{}, fmt.Errorf("encode message: unsupported type %T", m)
	}
	data, err := json.Marshal(m)
	if err != nil {
		return MessagePayload{}, fmt.Errorf("encode message: %w", err)
	}
	return MessagePayload{Kind: kind, Data: data}, nil
}

// decodeMessage reverses encodeMessage.
func decodeMessage(p MessagePayload) (entity.Message, error) {
	switch p.Kind {
	case kindUser:
		var m entity.UserMessage
		if err := json.Unmarshal(p.Data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case kindAssistant:
		var m assistantWire
		if err := json.Unmarshal(p.Data, &m); err != nil {
			return nil, err
		}
		return m.toEntity()
	case kindToolResult:
		var m entity.ToolResultMessage
		if err := json.Unmarshal(p.Data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case kindCustom:
		var m entity.CustomMessage
		if err := json.Unmarshal(p.Data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case kindBashExecution:
		var m entity.BashExecutionMessage
		if err := json.Unmarshal(p.Data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case kindBranchSummary:
		var m entity.BranchSummaryMessage
		if err := json.Unmarshal(p.Data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	case kindCompactionSummary:
		var m entity.CompactionSummaryMessage
		if err := json.Unmarshal(p.Data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	default:
		return nil, fmt.Errorf("decode message: unknown kind %q", p.Kind)
	}
}

// assistantWire mirrors entity.AssistantMessage but decodes Content as a
// tagged-union list, since encoding/json cannot unmarshal into an interface
// slice directly.
type assistantWire struct {
	ID         string                   `json:"id"`
	At         time.Time                `json:"timestamp"`
	Content    []json.RawMessage        `json:"Content"`
	StopReason entity.StopReason        `json:"StopReason"`
	Usage      entity.Usage             `json:"Usage"`
	Provider   string                   `json:"Provider"`
	Model      string                   `json:"Model"`
	ErrorText  string                   `json:"ErrorText"`
}

func (w assistantWire) toEntity() (*entity.AssistantMessage, error) {
	blocks := make([]entity.ContentBlock, 0, len(w.Content))
	for _, raw := range w.Content {
		block, err := decodeContentBlock(raw)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	m := entity.NewAssistantMessage(w.ID)
	m.At = w.At
	m.Content = blocks
	m.StopReason = w.StopReason
	m.Usage = w.Usage
	m.Provider = w.Provider
	m.Model = w.Model
	m.ErrorText = w.ErrorText
	return m, nil
}

func decodeContentBlock(raw json.RawMessage) (entity.ContentBlock, error) {
	var tagged struct {
		Type entity.ContentBlockType `json:"type"`
	}
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return nil, fmt.Errorf("decode content block: %w", err)
	}
	switch tagged.Type {
	case entity.BlockText:
		var b struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return entity.TextBlock{Text: b.Text}, nil
	case entity.BlockThinking:
		var b struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return entity.ThinkingBlock{Text: b.Text}, nil
	case entity.BlockToolCall:
		var b struct {
			ToolCallID string          `json:"toolCallId"`
			ToolName   string          `json:"toolName"`
			Arguments  json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return entity.ToolCallBlock{ToolCallID: b.ToolCallID, ToolName: b.ToolName, Arguments: b.Arguments}, nil
	default:
		return nil, fmt.Errorf("decode content block: unknown type %q", tagged.Type)
	}
}
