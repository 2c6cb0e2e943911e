package entity

import "encoding/json"

// SourceKind records where a SubAgentDefinition was discovered.
type SourceKind string

const (
	SourceProject SourceKind = "project"
	SourceUser    SourceKind = "user"
	SourceBuiltin SourceKind = "builtin"
)

// SubAgentDefinition describes one invocable sub-agent persona, typically
// loaded from a markdown file with YAML front matter.
type SubAgentDefinition struct {
	Name            string
	Description     string
	Source          SourceKind
	SourcePath      string
	SystemPrompt    string
	AllowedTools    []string
	OutputSchema    json.RawMessage // JTD schema source, nil if unstructured
	ModelPreference string
}

// SubAgentResult is the outcome of one completed or aborted sub-agent task.
type SubAgentResult struct {
	ID          string
	Agent       string
	Description string
	Task        string
	ExitCode    int
	Output      string
	Truncated   bool
	DurationMs  int64
	Tokens      Usage
	Error       string
	Aborted     bool
	SessionFile string
}

// Succeeded reports whether the task completed without error or abort.
func (r SubAgentResult) Succeeded() bool {
	return !r.Aborted && r.Error == "" && r.ExitCode == 0
}
