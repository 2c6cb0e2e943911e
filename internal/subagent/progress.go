package subagent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/agentcore/turncore/internal/entity"
	"github.com/agentcore/turncore/internal/tool"
)

// emitSequentialProgress reports one completed task in sequential mode.
func emitSequentialProgress(progress tool.ProgressSink, done, total int, result entity.SubAgentResult) {
	if progress == nil {
		return
	}
	progress.Progress(fmt.Sprintf("[%d/%d] %s", done, total, statusLine(result)))
}

// progressTracker shares cross-task progress in parallel mode through
// immutable snapshots: one mutex guards the (completed, active) pair and
// every emission renders the full state sorted by declared index, never a
// delta.
type progressTracker struct {
	mu        sync.Mutex
	tasks     []Task
	completed map[int]entity.SubAgentResult
	active    map[int]bool
	progress  tool.ProgressSink
}

func newProgressTracker(tasks []Task, progress tool.ProgressSink) *progressTracker {
	return &progressTracker{
		tasks:     tasks,
		completed: make(map[int]entity.SubAgentResult, len(tasks)),
		active:    make(map[int]bool, len(tasks)),
		progress:  progress,
	}
}

func (t *progressTracker) start(index int) {
	t.mu.Lock()
	t.active[index] = true
	snapshot := t.render()
	t.mu.Unlock()
	t.emit(snapshot)
}

func (t *progressTracker) finish(index int, result entity.SubAgentResult) {
	t.mu.Lock()
	delete(t.active, index)
	t.completed[index] = result
	snapshot := t.render()
	t.mu.Unlock()
	t.emit(snapshot)
}

// render must be called with mu held.
func (t *progressTracker) render() string {
	var b strings.Builder
	for i, task := range t.tasks {
		switch {
		case t.active[i]:
			fmt.Fprintf(&b, "%d. %s: running\n", i+1, task.ID)
		default:
			result, done := t.completed[i]
			if !done {
				fmt.Fprintf(&b, "%d. %s: queued\n", i+1, task.ID)
				continue
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, statusLine(result))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (t *progressTracker) emit(snapshot string) {
	if t.progress != nil {
		t.progress.Progress(snapshot)
	}
}

func statusLine(r entity.SubAgentResult) string {
	status := "ok"
	switch {
	case r.Aborted:
		status = "aborted"
	case r.Error != "" || r.ExitCode != 0:
		status = "failed"
	}
	line := fmt.Sprintf("%s: %s (%.1fs, %d tokens)", r.ID, status, float64(r.DurationMs)/1000, r.Tokens.Total())
	if r.Error != "" {
		line += ": " + r.Error
	}
	return line
}
