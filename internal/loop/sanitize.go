package loop

import (
	"github.com/agentcore/turncore/internal/entity"
	"github.com/google/uuid"
)

// repairDanglingToolCalls closes any assistant tool-call block that has no
// paired ToolResultMessage anywhere in the list by inserting a synthetic
// aborted result directly after the owning assistant message. This runs
// before every model call, so a crash or abort that slipped past the tool
// phase can never send an unpaired tool call back to the provider.
func repairDanglingToolCalls(messages []entity.Message) ([]entity.Message, int) {
	resolved := make(map[string]bool)
	for _, m := range messages {
		if tr, ok := m.(*entity.ToolResultMessage); ok {
			resolved[tr.ToolCallID] = true
		}
	}

	repaired := 0
	out := make([]entity.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, m)
		am, ok := m.(*entity.AssistantMessage)
		if !ok {
			continue
		}
		for _, call := range am.ToolCalls() {
			if resolved[call.ToolCallID] {
				continue
			}
			resolved[call.ToolCallID] = true
			out = append(out, entity.NewToolResultMessage(uuid.NewString(), call.ToolCallID, call.ToolName,
				[]entity.TextContent{{Text: "aborted before a result was recorded"}}, nil, true))
			repaired++
		}
	}
	return out, repaired
}
