package compactor

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentcore/turncore/internal/entity"
	"github.com/agentcore/turncore/internal/journal"
)

// SummaryProvider generates the structured summary text; the request is
// itself sent as a user turn to the model provider. loop.SummaryAdapter
// adapts the turn loop's ModelProvider to this narrower interface.
type SummaryProvider interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Config tunes the compactor's trigger and cut-point behavior.
type Config struct {
	ContextWindow   int
	ReserveTokens   int
	KeepRecentTokens int
	Enabled         bool
	PruningEnabled  bool
}

// DefaultConfig returns sane production defaults for a 200k-token model.
func DefaultConfig() Config {
	return Config{
		ContextWindow:    200_000,
		ReserveTokens:    20_000,
		KeepRecentTokens: 40_000,
		Enabled:          true,
		PruningEnabled:   true,
	}
}

// Compactor decides when the in-memory message list has grown too large and
// builds its compacted replacement; it journals nothing itself —
// AppendJournalEntry records the compaction marker that lets BuildContext
// reconstruct the same state on replay.
type Compactor struct {
	cfg      Config
	provider SummaryProvider
}

// New builds a Compactor.
func New(cfg Config, provider SummaryProvider) *Compactor {
	return &Compactor{cfg: cfg, provider: provider}
}

// ShouldCompact reports whether the current message list exceeds the
// trigger threshold.
func (c *Compactor) ShouldCompact(messages []entity.Message) bool {
	if !c.cfg.Enabled {
		return false
	}
	return ContextEstimate(messages) > c.cfg.ContextWindow-c.cfg.ReserveTokens
}

// PruneIfEnabled applies tool-result pruning when the config enables it,
// reporting whether any message was rewritten.
func (c *Compactor) PruneIfEnabled(messages []entity.Message) ([]entity.Message, bool) {
	if !c.cfg.PruningEnabled {
		return messages, false
	}
	pruned := Prune(messages, c.cfg.KeepRecentTokens)
	for i := range pruned {
		if pruned[i] != messages[i] {
			return pruned, true
		}
	}
	return messages, false
}

// CutIndex selects the boundary at which to cut the message list by
// walking back from the end to within keepRecentTokens, then further back
// to the nearest turn boundary so an assistant turn and its tool results
// are never split.
func CutIndex(messages []entity.Message, keepRecentTokens int) int {
	if len(messages) == 0 {
		return 0
	}

	firstKept := len(messages) - 1
	budget := 0
	for i := len(messages) - 1; i >= 0; i-- {
		cost := EstimateTokens(messages[i])
		if budget+cost > keepRecentTokens && i != len(messages)-1 {
			break
		}
		budget += cost
		firstKept = i
	}

	cut := firstKept
	for i := firstKept; i >= 0; i-- {
		if messages[i].Role().IsTurnBoundary() {
			cut = i
			break
		}
	}
	return cut
}

// Result is the outcome of a successful compaction pass.
type Result struct {
	Messages     []entity.Message
	Summary      string
	TokensBefore int
	CutIndex     int
}

// Compact builds a summary of messages[:cutIndex] and returns the new
// message list with a CompactionSummaryMessage substituted for the
// discarded prefix. It does not journal anything; callers append the
// returned summary to the session journal themselves so they control the
// FirstKeptEntryID they reference.
func (c *Compactor) Compact(ctx context.Context, messages []entity.Message, summaryMessageID string) (Result, error) {
	tokensBefore := ContextEstimate(messages)
	cut := CutIndex(messages, c.cfg.KeepRecentTokens)

	prompt := buildSummaryPrompt(messages[:cut])
	summary, err := c.provider.Summarize(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("generate compaction summary: %w", err)
	}

	out := make([]entity.Message, 0, 1+len(messages)-cut)
	out = append(out, entity.NewCompactionSummaryMessage(summaryMessageID, summary, tokensBefore))
	out = append(out, messages[cut:]...)

	return Result{Messages: out, Summary: summary, TokensBefore: tokensBefore, CutIndex: cut}, nil
}

// AppendJournalEntry records the compaction in j, referencing the entry id
// that anchors the retained suffix.
func AppendJournalEntry(j *journal.Journal, result Result, firstKeptEntryID string) (journal.Entry, error) {
	return j.Append(journal.EntryCompaction, journal.CompactionPayload{
		Summary:          result.Summary,
		TokensBefore:     result.TokensBefore,
		FirstKeptEntryID: firstKeptEntryID,
	})
}

const summaryInstructions = `Summarize the conversation above so it can replace the messages being discarded. Cover:
- Goals: what the user is ultimately trying to accomplish
- Instructions: constraints or preferences the user stated
- Discoveries: facts learned about the code or environment
- Accomplishments: work already completed
- Relevant files: paths touched or referenced, with a one-line note on each

Be concise. Do not restate full file contents; name paths and summarize changes.`

func buildSummaryPrompt(messages []entity.Message) string {
	var b strings.Builder
	for _, m := range messages {
		text := transcriptLine(m)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s] %s\n", m.Role(), text)
	}
	b.WriteString("\n")
	b.WriteString(summaryInstructions)
	return b.String()
}

func transcriptLine(m entity.Message) string {
	switch msg := m.(type) {
	case *entity.UserMessage:
		return msg.Text
	case *entity.AssistantMessage:
		return msg.Text()
	case *entity.ToolResultMessage:
		return fmt.Sprintf("(%s result) %s", msg.ToolName, msg.Text())
	case *entity.BashExecutionMessage:
		return fmt.Sprintf("$ %s\n%s", msg.Command, msg.Output)
	case *entity.BranchSummaryMessage:
		return msg.Summary
	case *entity.CompactionSummaryMessage:
		return msg.Summary
	default:
		return ""
	}
}
