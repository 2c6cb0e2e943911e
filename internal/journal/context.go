package journal

import (
	"encoding/json"
	"fmt"

	"github.com/agentcore/turncore/internal/entity"
)

// ModelDescriptor names the provider/model pair in effect after replay.
type ModelDescriptor struct {
	Provider string
	Model    string
}

// BuiltContext is the result of replaying a journal's entries into
// messages plus the model descriptor and thinking level in effect.
type BuiltContext struct {
	Messages      []entity.Message
	Model         *ModelDescriptor
	ThinkingLevel string
}

// BuildContext replays entries in order, honoring compaction markers by
// skipping message entries older than the most recent compaction's
// FirstKeptEntryID and prepending its summary as a synthetic message.
// Replay is deterministic: the same entries always yield an equal context.
func BuildContext(entries []Entry) (BuiltContext, error) {
	firstKeptEntryID := ""
	var pendingSummary *entity.CompactionSummaryMessage

	for _, e := range entries {
		if e.Type != EntryCompaction {
			continue
		}
		var p CompactionPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return BuiltContext{}, fmt.Errorf("decode compaction payload at entry %s: %w", e.ID, err)
		}
		firstKeptEntryID = p.FirstKeptEntryID
		pendingSummary = entity.NewCompactionSummaryMessage(e.ID, p.Summary, p.TokensBefore)
		pendingSummary.At = e.Timestamp
	}

	var out BuiltContext
	skipping := firstKeptEntryID != ""
	if pendingSummary != nil {
		out.Messages = append(out.Messages, pendingSummary)
	}

	for _, e := range entries {
		if skipping {
			if e.ID == firstKeptEntryID {
				skipping = false
			} else {
				continue
			}
		}

		switch e.Type {
		case EntryMessage:
			var p MessagePayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return BuiltContext{}, fmt.Errorf("decode message payload at entry %s: %w", e.ID, err)
			}
			m, err := decodeMessage(p)
			if err != nil {
				return BuiltContext{}, fmt.Errorf("decode message at entry %s: %w", e.ID, err)
			}
			out.Messages = append(out.Messages, m)
		case EntryModelChange:
			var p ModelChangePayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return BuiltContext{}, fmt.Errorf("decode model-change payload at entry %s: %w", e.ID, err)
			}
			out.Model = &ModelDescriptor{Provider: p.Provider, Model: p.Model}
		case EntryThinkingLevelChange:
			var p ThinkingLevelChangePayload
			if err := json.Unmarshal(e.Payload, &p); err != nil {
				return BuiltContext{}, fmt.Errorf("decode thinking-level payload at entry %s: %w", e.ID, err)
			}
			out.ThinkingLevel = p.Level
		case EntryCompaction, EntryBranch:
			// compaction entries are consumed in the pass above; branch
			// markers carry no message of their own.
		}
	}

	return out, nil
}
