package compactor

import "github.com/agentcore/turncore/internal/entity"

const (
	pruneThresholdChars = 500
	pruneKeepChars       = 200
	pruneMarker          = "\n...[truncated]"
)

// Prune rewrites tool-result messages older than the protected suffix
// (the last keepRecentTokens worth of messages) whose text exceeds 500
// characters, truncating them to their first 200 characters plus a marker.
// It returns a new slice; messages is not mutated.
func Prune(messages []entity.Message, keepRecentTokens int) []entity.Message {
	protectedFrom := len(messages)
	budget := 0
	for i := len(messages) - 1; i >= 0; i-- {
		cost := EstimateTokens(messages[i])
		if i != len(messages)-1 && budget+cost > keepRecentTokens {
			break
		}
		budget += cost
		protectedFrom = i
	}

	out := make([]entity.Message, len(messages))
	copy(out, messages)
	for i := 0; i < protectedFrom; i++ {
		tr, ok := out[i].(*entity.ToolResultMessage)
		if !ok {
			continue
		}
		text := tr.Text()
		if len(text) <= pruneThresholdChars {
			continue
		}
		truncated := *tr
		truncated.Content = []entity.TextContent{{Text: text[:pruneKeepChars] + pruneMarker}}
		out[i] = &truncated
	}
	return out
}
