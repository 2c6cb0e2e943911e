package loop

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agentcore/turncore/internal/compactor"
	"github.com/agentcore/turncore/internal/entity"
	"github.com/agentcore/turncore/internal/journal"
	"github.com/agentcore/turncore/internal/safego"
	"github.com/agentcore/turncore/internal/tool"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config tunes one Loop instance.
type Config struct {
	Model              string
	Thinking           ThinkingEffort
	SystemPromptPreamble string
	MaxOverflowRetries int // bounded reactive-compaction retries on provider overflow errors (default 3)
	MaxTurns           int // soft cap on inference turns per run, 0 = unbounded; sub-agents set this

	// ThinkingOverrides maps model-family substrings to a thinking effort
	// overriding Thinking for matching models.
	ThinkingOverrides map[string]ThinkingEffort
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{Thinking: ThinkingMedium, MaxOverflowRetries: 3}
}

// Result is the outcome of one run started by Submit: the final assistant message plus
// the message list as it stood at Terminal.
type Result struct {
	FinalMessage *entity.AssistantMessage
	Messages     []entity.Message
	StopReason   entity.StopReason
}

// Loop drives one conversation's Idle->Turn->ToolPhase->Turn|Terminal state
// machine. A Loop instance owns exactly one session journal and drives at
// most one run at a time — a Submit during a run queues its message instead
// of starting a second run, the same way the journal enforces a single
// writer per session file.
type Loop struct {
	registry   tool.Registry
	dispatcher *tool.Dispatcher
	provider   ModelProvider
	journal    *journal.Journal
	compactor  *compactor.Compactor
	logger     *zap.Logger
	cfg        Config

	mu       sync.Mutex
	messages []entity.Message
	entryIDs map[string]string // message id -> journal entry id, for compaction markers
	pending  []string          // follow-up user messages queued while a run is in progress
	running  bool
}

// New builds a Loop over an already-open journal. Callers that want to
// resume a prior session should replay it first and seed messages via
// Seed.
func New(registry tool.Registry, dispatcher *tool.Dispatcher, provider ModelProvider, j *journal.Journal, c *compactor.Compactor, logger *zap.Logger, cfg Config) *Loop {
	return &Loop{
		registry:   registry,
		dispatcher: dispatcher,
		provider:   provider,
		journal:    j,
		compactor:  c,
		logger:     logger,
		cfg:        cfg,
		entryIDs:   make(map[string]string),
	}
}

// Seed replaces the in-memory message list, e.g. after replaying a journal.
func (l *Loop) Seed(messages []entity.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = messages
}

// Submit enqueues userText. If no run is currently in progress it starts
// one; otherwise the message is delivered at the next Turn transition and
// never interleaved into an in-flight turn.
func (l *Loop) Submit(ctx context.Context, userText string) (*Result, <-chan entity.Event, error) {
	l.mu.Lock()
	if l.running {
		l.pending = append(l.pending, userText)
		l.mu.Unlock()
		return nil, nil, nil
	}
	l.running = true
	l.mu.Unlock()

	result, events := l.run(ctx, userText)
	return result, events, nil
}

func (l *Loop) run(ctx context.Context, firstUserText string) (*Result, <-chan entity.Event) {
	events := make(chan entity.Event)
	result := &Result{}
	sm := newMachine()

	safego.Go(l.logger, "turn-loop", func() {
		defer close(events)
		defer func() {
			l.mu.Lock()
			l.running = false
			l.mu.Unlock()
		}()
		l.drive(ctx, firstUserText, result, events, sm)
	})

	return result, events
}

// emit sends e to the subscriber, blocking rather than dropping it — event
// ordering must hold even against a slow consumer.
func (l *Loop) emit(events chan<- entity.Event, e entity.Event) {
	events <- e
}

func (l *Loop) drive(ctx context.Context, firstUserText string, result *Result, events chan<- entity.Event, sm *machine) {
	_ = sm.transition(StateTurn)
	l.emit(events, entity.NewEvent(entity.EventAgentStart))

	nextUserText := firstUserText
	turns := 0
	for {
		l.appendUser(nextUserText)
		turns++

		stop, assistant, err := l.runTurn(ctx, events)
		if err != nil {
			result.StopReason = entity.StopReasonError
			l.emit(events, entity.Event{Type: entity.EventAgentEnd, Err: err})
			return
		}

		if stop == entity.StopReasonAborted {
			result.FinalMessage = assistant
			result.StopReason = stop
			result.Messages = l.snapshot()
			l.emit(events, entity.Event{Type: entity.EventTurnEnd, Message: assistant})
			l.emit(events, entity.NewEvent(entity.EventAgentEnd))
			return
		}

		if stop == entity.StopReasonToolUse {
			_ = sm.transition(StateToolPhase)
			aborted := l.runToolPhase(ctx, assistant, events)
			_ = sm.transition(StateTurn)
			if aborted {
				result.FinalMessage = assistant
				result.StopReason = entity.StopReasonAborted
				result.Messages = l.snapshot()
				l.emit(events, entity.Event{Type: entity.EventTurnEnd, Message: assistant})
				l.emit(events, entity.NewEvent(entity.EventAgentEnd))
				return
			}
			if l.cfg.MaxTurns > 0 && turns >= l.cfg.MaxTurns {
				if l.logger != nil {
					l.logger.Warn("turn cap reached, ending run", zap.Int("turns", turns))
				}
				result.FinalMessage = assistant
				result.StopReason = entity.StopReasonLength
				result.Messages = l.snapshot()
				l.emit(events, entity.Event{Type: entity.EventTurnEnd, Message: assistant})
				l.emit(events, entity.NewEvent(entity.EventAgentEnd))
				return
			}
			nextUserText = "" // continue the same turn with tool results already appended
			continue
		}

		// Terminal stop reasons: stop, length, error.
		result.FinalMessage = assistant
		result.StopReason = stop
		result.Messages = l.snapshot()
		l.emit(events, entity.Event{Type: entity.EventTurnEnd, Message: assistant})

		if follow, ok := l.popPending(); ok {
			nextUserText = follow
			_ = sm.transition(StateTurn)
			continue
		}

		l.emit(events, entity.NewEvent(entity.EventAgentEnd))
		return
	}
}

func (l *Loop) popPending() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return "", false
	}
	next := l.pending[0]
	l.pending = l.pending[1:]
	return next, true
}

func (l *Loop) appendUser(text string) {
	if text == "" {
		return
	}
	msg := entity.NewUserMessage(uuid.NewString(), text, nil)
	l.appendMessage(msg)
}

func (l *Loop) appendMessage(m entity.Message) {
	l.mu.Lock()
	l.messages = append(l.messages, m)
	l.mu.Unlock()
	if l.journal == nil {
		return
	}
	entry, err := l.journal.AppendMessage(m)
	if err != nil {
		if l.logger != nil {
			l.logger.Error("journal append failed", zap.Error(err))
		}
		return
	}
	l.mu.Lock()
	l.entryIDs[m.ID()] = entry.ID
	l.mu.Unlock()
}

// applyCompaction swaps in the compacted message list and records a
// compaction marker in the journal referencing the journal entry of the
// first retained message (messages[result.CutIndex] from the pre-compaction
// list), so BuildContext replays to the same context. Both the proactive
// and the overflow-retry compaction paths go through here.
func (l *Loop) applyCompaction(result compactor.Result, messages []entity.Message) {
	l.mu.Lock()
	l.messages = result.Messages
	firstKeptEntryID := ""
	if result.CutIndex < len(messages) {
		firstKeptEntryID = l.entryIDs[messages[result.CutIndex].ID()]
	}
	l.mu.Unlock()

	if l.journal == nil {
		return
	}
	if firstKeptEntryID == "" && l.logger != nil {
		l.logger.Warn("no journal entry for first kept message, replay will keep full history",
			zap.Int("cut_index", result.CutIndex))
	}
	entry, err := compactor.AppendJournalEntry(l.journal, result, firstKeptEntryID)
	if err != nil {
		if l.logger != nil {
			l.logger.Error("journal compaction append failed", zap.Error(err))
		}
		return
	}

	// On replay the summary message takes the compaction entry's id, so a
	// later compaction that cuts at the summary resolves through the map too.
	l.mu.Lock()
	l.entryIDs[result.Messages[0].ID()] = entry.ID
	l.mu.Unlock()
}

func (l *Loop) snapshot() []entity.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]entity.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// runTurn drives one model inference: compaction check, stream, and the
// resulting assistant message. It returns the finalized stop reason.
func (l *Loop) runTurn(ctx context.Context, events chan<- entity.Event) (entity.StopReason, *entity.AssistantMessage, error) {
	if err := ctx.Err(); err != nil {
		return entity.StopReasonAborted, l.finalizeAborted(events, nil), nil
	}

	l.emit(events, entity.NewEvent(entity.EventTurnStart))

	messages := l.snapshot()
	if repairedMsgs, repaired := repairDanglingToolCalls(messages); repaired > 0 {
		if l.logger != nil {
			l.logger.Warn("repaired dangling tool calls", zap.Int("count", repaired))
		}
		l.mu.Lock()
		l.messages = repairedMsgs
		l.mu.Unlock()
		messages = repairedMsgs
	}
	if l.compactor != nil {
		if pruned, changed := l.compactor.PruneIfEnabled(messages); changed {
			l.mu.Lock()
			l.messages = pruned
			l.mu.Unlock()
			messages = pruned
		}
	}
	if l.compactor != nil && l.compactor.ShouldCompact(messages) {
		result, err := l.compactor.Compact(ctx, messages, uuid.NewString())
		if err == nil {
			l.applyCompaction(result, messages)
			messages = l.snapshot()
		} else if l.logger != nil {
			l.logger.Warn("compaction failed, continuing uncompacted", zap.Error(err))
		}
	}

	assistantID := uuid.NewString()
	stub := entity.NewAssistantMessage(assistantID)
	l.emit(events, entity.Event{Type: entity.EventMessageStart, Message: stub})

	overflowRetries := 0
retry:
	toolDefs := l.registry.Definitions()
	opts := StreamOptions{
		Model:        l.cfg.Model,
		Thinking:     ResolveThinking(l.cfg.Model, l.cfg.Thinking, l.cfg.ThinkingOverrides),
		SystemPrompt: l.cfg.SystemPromptPreamble,
	}
	stream, err := l.provider.Stream(ctx, messages, toolDefs, opts)
	if err != nil {
		if isOverflowError(err) && overflowRetries < l.cfg.MaxOverflowRetries && l.compactor != nil {
			overflowRetries++
			result, cErr := l.compactor.Compact(ctx, messages, uuid.NewString())
			if cErr == nil {
				l.applyCompaction(result, messages)
				messages = l.snapshot()
				goto retry
			}
		}
		return "", nil, fmt.Errorf("model provider stream: %w", err)
	}

	assistant := entity.NewAssistantMessage(assistantID)
	var blocks []entity.ContentBlock

	for {
		select {
		case <-ctx.Done():
			assistant.Content = blocks
			assistant.StopReason = entity.StopReasonAborted
			l.appendMessage(assistant)
			l.emit(events, entity.Event{Type: entity.EventMessageEnd, Message: assistant})
			return entity.StopReasonAborted, assistant, nil
		case ev, ok := <-stream:
			if !ok {
				assistant.Content = blocks
				if assistant.StopReason == "" {
					assistant.StopReason = entity.StopReasonStop
				}
				l.appendMessage(assistant)
				l.emit(events, entity.Event{Type: entity.EventMessageEnd, Message: assistant})
				return assistant.StopReason, assistant, nil
			}
			switch ev.Kind {
			case StreamContentBlock:
				blocks = append(blocks, ev.Block)
				assistant.Content = blocks
				l.emit(events, entity.Event{Type: entity.EventMessageUpdate, Message: assistant})
			case StreamUsage:
				assistant.Usage = assistant.Usage.Add(ev.Usage)
			case StreamStopReason:
				assistant.StopReason = ev.StopReason
				assistant.ErrorText = ev.ErrorText
				if ev.StopReason == entity.StopReasonError {
					assistant.Content = blocks
					l.appendMessage(assistant)
					l.emit(events, entity.Event{Type: entity.EventMessageEnd, Message: assistant})
					return entity.StopReasonError, assistant, nil
				}
			}
		}
	}
}

func (l *Loop) finalizeAborted(events chan<- entity.Event, assistant *entity.AssistantMessage) *entity.AssistantMessage {
	if assistant == nil {
		assistant = entity.NewAssistantMessage(uuid.NewString())
	}
	assistant.StopReason = entity.StopReasonAborted
	l.appendMessage(assistant)
	l.emit(events, entity.Event{Type: entity.EventMessageEnd, Message: assistant})
	return assistant
}

// runToolPhase dispatches every tool call in assistant's content list, in
// order, appending a ToolResultMessage for each before returning control to
// the next Turn. It returns true if the phase ended due to cancellation, in
// which case every outstanding call has a synthetic aborted result.
func (l *Loop) runToolPhase(ctx context.Context, assistant *entity.AssistantMessage, events chan<- entity.Event) (aborted bool) {
	calls := assistant.ToolCalls()
	for i, block := range calls {
		if ctx.Err() != nil {
			l.appendSyntheticAborted(calls[i:], events)
			return true
		}

		invocation := entity.ToolInvocation{ToolCallID: block.ToolCallID, ToolName: block.ToolName}
		args, err := entity.NewArgs(block.Arguments)
		if err != nil {
			args, _ = entity.NewArgs(nil)
		}
		invocation.Arguments = args

		l.emit(events, entity.Event{
			Type:       entity.EventToolExecutionStart,
			ToolCallID: block.ToolCallID,
			ToolName:   block.ToolName,
			Arguments:  block.Arguments,
		})

		resultID := uuid.NewString()
		progress := tool.ProgressSinkFunc(func(partial string) {
			l.emit(events, entity.Event{Type: entity.EventToolExecutionDelta, ToolCallID: block.ToolCallID, ToolName: block.ToolName, PartialResult: partial})
		})
		resultMsg := l.dispatcher.Dispatch(ctx, invocation, resultID, progress)

		l.emit(events, entity.Event{
			Type:       entity.EventToolExecutionEnd,
			ToolCallID: block.ToolCallID,
			ToolName:   block.ToolName,
			Result:     resultMsg,
			IsError:    resultMsg.IsError,
		})

		l.appendMessage(resultMsg)
	}
	return false
}

func (l *Loop) appendSyntheticAborted(remaining []entity.ToolCallBlock, events chan<- entity.Event) {
	for _, block := range remaining {
		resultMsg := entity.NewToolResultMessage(uuid.NewString(), block.ToolCallID, block.ToolName,
			[]entity.TextContent{{Text: "aborted before execution"}}, nil, true)
		l.emit(events, entity.Event{Type: entity.EventToolExecutionEnd, ToolCallID: block.ToolCallID, ToolName: block.ToolName, Result: resultMsg, IsError: true})
		l.appendMessage(resultMsg)
	}
}

func isOverflowError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context") && (strings.Contains(msg, "too long") ||
		strings.Contains(msg, "overflow") || strings.Contains(msg, "too many tokens") ||
		strings.Contains(msg, "maximum context"))
}

// waitFor is a cancellable sleep: it returns ctx.Err() if ctx is done before
// d elapses, nil otherwise.
func waitFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
