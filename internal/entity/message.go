package entity

import "time"

// Role tags the variant of a Message. Messages whose Role is in
// {RoleUser, RoleBashExecution, RoleBranchSummary} are turn boundaries — safe
// anchors for compaction cut points.
type Role string

const (
	RoleUser              Role = "user"
	RoleAssistant         Role = "assistant"
	RoleToolResult        Role = "toolResult"
	RoleCustom            Role = "custom"
	RoleBashExecution     Role = "bashExecution"
	RoleBranchSummary     Role = "branchSummary"
	RoleCompactionSummary Role = "compactionSummary"
)

// StopReason is the terminal state of one assistant turn.
type StopReason string

const (
	StopReasonStop    StopReason = "stop"
	StopReasonToolUse StopReason = "toolUse"
	StopReasonLength  StopReason = "length"
	StopReasonError   StopReason = "error"
	StopReasonAborted StopReason = "aborted"
)

// IsTurnBoundary reports whether r anchors a safe compaction cut point.
func (r Role) IsTurnBoundary() bool {
	switch r {
	case RoleUser, RoleBashExecution, RoleBranchSummary:
		return true
	default:
		return false
	}
}

// Attachment is a user-supplied file or media reference.
type Attachment struct {
	Name     string
	MimeType string
	URL      string
	Data     []byte
}

// Message is the tagged variant every layer of the core passes around.
// Every concrete message type carries a stable logical id and wall-clock
// timestamp.
type Message interface {
	ID() string
	Role() Role
	Timestamp() time.Time
}

// base is embedded by every concrete message variant. Its fields are
// exported so encoding/json promotes them into the variant's own JSON
// object; ID()/Timestamp() use different Go identifiers to avoid shadowing
// the struct fields they expose.
type base struct {
	MsgID string    `json:"id"`
	At    time.Time `json:"timestamp"`
}

func (b base) ID() string { return b.MsgID }

func (b base) Timestamp() time.Time { return b.At }

func newBase(id string, ts time.Time) base {
	if ts.IsZero() {
		ts = time.Now()
	}
	return base{MsgID: id, At: ts}
}

// UserMessage carries user-authored text and attachments.
type UserMessage struct {
	base
	Text        string
	Attachments []Attachment
}

func (UserMessage) Role() Role { return RoleUser }

// NewUserMessage constructs a UserMessage with a fresh timestamp.
func NewUserMessage(id, text string, attachments []Attachment) *UserMessage {
	return &UserMessage{base: newBase(id, time.Time{}), Text: text, Attachments: attachments}
}

// AssistantMessage carries an ordered content list, a stop reason, usage,
// and provider/model descriptors.
type AssistantMessage struct {
	base
	Content    []ContentBlock
	StopReason StopReason
	Usage      Usage
	Provider   string
	Model      string
	ErrorText  string // populated when StopReason == StopReasonError
}

func (AssistantMessage) Role() Role { return RoleAssistant }

// NewAssistantMessage constructs an AssistantMessage with a fresh timestamp.
func NewAssistantMessage(id string) *AssistantMessage {
	return &AssistantMessage{base: newBase(id, time.Time{})}
}

// ToolCalls returns the ToolCallBlocks in Content, preserving order.
func (m *AssistantMessage) ToolCalls() []ToolCallBlock {
	var calls []ToolCallBlock
	for _, b := range m.Content {
		if tc, ok := b.(ToolCallBlock); ok {
			calls = append(calls, tc)
		}
	}
	return calls
}

// Text concatenates all TextBlocks in Content.
func (m *AssistantMessage) Text() string {
	var out string
	for _, b := range m.Content {
		if t, ok := b.(TextBlock); ok {
			out += t.Text
		}
	}
	return out
}

// ToolResultMessage references the originating tool call and carries the
// tool's result content.
type ToolResultMessage struct {
	base
	ToolCallID string
	ToolName   string
	Content    []TextContent
	Details    any
	IsError    bool
}

func (ToolResultMessage) Role() Role { return RoleToolResult }

// NewToolResultMessage constructs a ToolResultMessage with a fresh timestamp.
func NewToolResultMessage(id, toolCallID, toolName string, content []TextContent, details any, isError bool) *ToolResultMessage {
	return &ToolResultMessage{
		base:       newBase(id, time.Time{}),
		ToolCallID: toolCallID,
		ToolName:   toolName,
		Content:    content,
		Details:    details,
		IsError:    isError,
	}
}

// Text concatenates all text content of the tool result.
func (m *ToolResultMessage) Text() string {
	var out string
	for _, c := range m.Content {
		out += c.Text
	}
	return out
}

// CustomMessage is an auxiliary variant used for journal replay of
// driver-specific annotations that are not part of the model conversation.
type CustomMessage struct {
	base
	Kind    string
	Payload any
}

func (CustomMessage) Role() Role { return RoleCustom }

// BashExecutionMessage records a shell command run outside the model
// conversation (e.g. a user-issued !command). It is a turn boundary.
type BashExecutionMessage struct {
	base
	Command  string
	Output   string
	ExitCode int
}

func (BashExecutionMessage) Role() Role { return RoleBashExecution }

// BranchSummaryMessage marks where a session journal branch diverged from
// its parent line. It is a turn boundary.
type BranchSummaryMessage struct {
	base
	Summary string
}

func (BranchSummaryMessage) Role() Role { return RoleBranchSummary }

// CompactionSummaryMessage is the synthetic message substituted for the
// truncated history by a compaction pass.
type CompactionSummaryMessage struct {
	base
	Summary      string
	TokensBefore int
}

func (CompactionSummaryMessage) Role() Role { return RoleCompactionSummary }

// NewCompactionSummaryMessage constructs a CompactionSummaryMessage with a
// fresh timestamp.
func NewCompactionSummaryMessage(id, summary string, tokensBefore int) *CompactionSummaryMessage {
	return &CompactionSummaryMessage{base: newBase(id, time.Time{}), Summary: summary, TokensBefore: tokensBefore}
}
