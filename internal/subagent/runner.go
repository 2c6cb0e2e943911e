package subagent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agentcore/turncore/internal/compactor"
	"github.com/agentcore/turncore/internal/entity"
	"github.com/agentcore/turncore/internal/journal"
	"github.com/agentcore/turncore/internal/loop"
	"github.com/agentcore/turncore/internal/safego"
	"github.com/agentcore/turncore/internal/submit"
	"github.com/agentcore/turncore/internal/tool"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// maxOutputChars bounds the textual output a sub-agent hands back to
	// its parent; longer outputs are cut and flagged Truncated.
	maxOutputChars = 32000

	// DefaultTaskTimeout is the per-task wall-clock budget.
	DefaultTaskTimeout = 5 * time.Minute

	// DefaultMaxTurns is the per-task soft cap on inference turns.
	DefaultMaxTurns = 25
)

// RunnerOptions configures a Runner. Provider, ParentRegistry, and
// Definitions are required; everything else has a usable zero value.
type RunnerOptions struct {
	Provider        loop.ModelProvider
	ParentRegistry  tool.Registry
	Definitions     DefinitionRegistry
	CompactorConfig compactor.Config
	Logger          *zap.Logger
	SessionsDir     string // "" disables child session journals
	ParentSessionID string
	Model           string // inherited default model for children
	TaskTimeout     time.Duration
	MaxTurns        int
}

// Runner executes validated task requests by spinning up one child turn
// loop per task, each with its own tool registry, submit tool, and
// optional session journal.
type Runner struct {
	opts RunnerOptions
}

// NewRunner builds a Runner.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	return &Runner{opts: opts}
}

// Definitions exposes the definition registry for pre-dispatch validation.
func (r *Runner) Definitions() DefinitionRegistry { return r.opts.Definitions }

// Run executes every task in req. The request must already have passed
// Validate. Results are returned in declared task order for both modes.
func (r *Runner) Run(ctx context.Context, req Request, progress tool.ProgressSink) []entity.SubAgentResult {
	def, _ := r.opts.Definitions.Lookup(req.Agent)

	if !req.Parallel {
		results := make([]entity.SubAgentResult, 0, len(req.Tasks))
		for i, task := range req.Tasks {
			result := r.runTask(ctx, def, req, task)
			results = append(results, result)
			emitSequentialProgress(progress, i+1, len(req.Tasks), result)
		}
		return results
	}

	tracker := newProgressTracker(req.Tasks, progress)
	results := make([]entity.SubAgentResult, len(req.Tasks))
	var wg sync.WaitGroup
	for i, task := range req.Tasks {
		wg.Add(1)
		i, task := i, task
		safego.Go(r.opts.Logger, "subagent-task", func() {
			defer wg.Done()
			tracker.start(i)
			result := r.runTask(ctx, def, req, task)
			results[i] = result
			tracker.finish(i, result)
		})
	}
	wg.Wait()
	return results
}

// runTask drives one child turn loop to completion. A failure inside one
// task never cancels its siblings: every error is folded into the returned
// SubAgentResult.
func (r *Runner) runTask(ctx context.Context, def entity.SubAgentDefinition, req Request, task Task) entity.SubAgentResult {
	start := time.Now()
	result := entity.SubAgentResult{
		ID:          task.ID,
		Agent:       req.Agent,
		Description: task.Description,
		Task:        task.Assignment,
	}

	childCtx, cancel := context.WithTimeout(WithDepth(ctx, DepthFromContext(ctx)+1), r.opts.TaskTimeout)
	defer cancel()

	var (
		outcomeMu sync.Mutex
		outcome   *submit.Outcome
	)
	submitTool, err := submit.New(def.OutputSchema, req.SchemaOverride, func(o submit.Outcome) {
		outcomeMu.Lock()
		outcome = &o
		outcomeMu.Unlock()
		cancel()
	})
	if err != nil {
		result.Error = fmt.Sprintf("build submit tool: %v", err)
		result.ExitCode = 1
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	childRegistry, err := r.childRegistry(def, submitTool)
	if err != nil {
		result.Error = err.Error()
		result.ExitCode = 1
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	var childJournal *journal.Journal
	if r.opts.SessionsDir != "" {
		path := filepath.Join(r.opts.SessionsDir, fmt.Sprintf("subagent-%s-%s.jsonl", r.opts.ParentSessionID, task.ID))
		if err := os.MkdirAll(r.opts.SessionsDir, 0o755); err == nil {
			if j, jerr := journal.Open(path); jerr == nil {
				childJournal = j
				result.SessionFile = path
				defer childJournal.Close()
			} else if r.opts.Logger != nil {
				r.opts.Logger.Warn("child journal open failed, continuing without",
					zap.String("path", path), zap.Error(jerr))
			}
		}
	}

	model := r.opts.Model
	if def.ModelPreference != "" {
		model = def.ModelPreference
	}

	var comp *compactor.Compactor
	if r.opts.CompactorConfig.Enabled {
		comp = compactor.New(r.opts.CompactorConfig, loop.SummaryAdapter{Provider: r.opts.Provider, Model: model})
	}

	dispatcher := tool.NewDispatcher(childRegistry, r.opts.Logger)
	childLoop := loop.New(childRegistry, dispatcher, r.opts.Provider, childJournal, comp, r.opts.Logger, loop.Config{
		Model:                model,
		SystemPromptPreamble: def.SystemPrompt,
		MaxOverflowRetries:   3,
		MaxTurns:             r.opts.MaxTurns,
	})

	prompt := task.Assignment
	if req.Context != "" {
		prompt = req.Context + "\n\n" + task.Assignment
	}

	runResult, events, err := childLoop.Submit(childCtx, prompt)
	if err != nil {
		result.Error = fmt.Sprintf("start sub-agent: %v", err)
		result.ExitCode = 1
		result.DurationMs = time.Since(start).Milliseconds()
		return result
	}

	var tokens entity.Usage
	for ev := range events {
		if ev.Type == entity.EventMessageEnd {
			if am, ok := ev.Message.(*entity.AssistantMessage); ok {
				tokens = tokens.Add(am.Usage)
			}
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	result.Tokens = tokens

	outcomeMu.Lock()
	final := outcome
	outcomeMu.Unlock()

	switch {
	case final != nil && final.Status == submit.StatusSuccess:
		result.Output, result.Truncated = renderOutcome(final.Result)
	case final != nil:
		result.Aborted = true
		result.Error = final.Error
		result.ExitCode = 1
	case runResult.StopReason == entity.StopReasonAborted:
		result.Aborted = true
		result.ExitCode = 1
		if ctx.Err() == nil && childCtx.Err() == context.DeadlineExceeded {
			result.Error = "task timed out"
		}
	case runResult.StopReason == entity.StopReasonError:
		result.ExitCode = 1
		if runResult.FinalMessage != nil {
			result.Error = runResult.FinalMessage.ErrorText
		}
		if result.Error == "" {
			result.Error = "model stream failed"
		}
	default:
		if runResult.FinalMessage != nil {
			result.Output, result.Truncated = truncateOutput(runResult.FinalMessage.Text())
		}
	}

	if r.opts.Logger != nil {
		r.opts.Logger.Info("sub-agent task finished",
			zap.String("agent", req.Agent),
			zap.String("task_id", task.ID),
			zap.Int64("duration_ms", result.DurationMs),
			zap.Int("tokens", tokens.Total()),
			zap.Bool("aborted", result.Aborted),
		)
	}
	return result
}

// childRegistry copies the parent's tools into a fresh registry, dropping
// the task tool, honoring the definition's allow-list, and adding the
// per-task submit tool.
func (r *Runner) childRegistry(def entity.SubAgentDefinition, submitTool tool.Tool) (tool.Registry, error) {
	allowed := map[string]bool{}
	for _, name := range def.AllowedTools {
		allowed[name] = true
	}

	child := tool.NewInMemoryRegistry()
	for _, d := range r.opts.ParentRegistry.Definitions() {
		if d.Name == "task" {
			continue
		}
		if len(allowed) > 0 && !allowed[d.Name] {
			continue
		}
		t, ok := r.opts.ParentRegistry.Lookup(d.Name)
		if !ok {
			continue
		}
		if err := child.Register(t); err != nil {
			return nil, fmt.Errorf("build child registry: %w", err)
		}
	}
	if err := child.Register(submitTool); err != nil {
		return nil, fmt.Errorf("register submit tool: %w", err)
	}
	return child, nil
}

func renderOutcome(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return truncateOutput(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v), false
		}
		return truncateOutput(string(b))
	}
}

func truncateOutput(s string) (string, bool) {
	if len(s) <= maxOutputChars {
		return s, false
	}
	return s[:maxOutputChars], true
}

// NewTaskID generates an id for callers that submit tasks without one.
func NewTaskID() string {
	return uuid.NewString()[:8]
}
