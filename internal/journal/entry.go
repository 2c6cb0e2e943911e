// Package journal implements the single-writer, append-only session log:
// one JSON record per line, replayable into a message list, following a
// write-ahead-log pattern where the log itself is the system of record.
package journal

import (
	"encoding/json"
	"time"
)

// EntryType tags the variant of a journal record's payload.
type EntryType string

const (
	EntryMessage             EntryType = "message"
	EntryModelChange         EntryType = "modelChange"
	EntryThinkingLevelChange EntryType = "thinkingLevelChange"
	EntryCompaction          EntryType = "compaction"
	EntryBranch              EntryType = "branch"
)

// Entry is one immutable journal record. ParentID chains entries into a DAG:
// on the main line ParentID of entry n+1 equals the ID of entry n; a branch
// diverges by referencing an older parent.
type Entry struct {
	ID        string          `json:"id"`
	ParentID  string          `json:"parentId"`
	Timestamp time.Time       `json:"timestamp"`
	Type      EntryType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// MessagePayload is the payload of an EntryMessage record. Kind identifies
// the concrete entity.Message variant so decoding can dispatch correctly.
type MessagePayload struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// ModelChangePayload is the payload of an EntryModelChange record.
type ModelChangePayload struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ThinkingLevelChangePayload is the payload of an EntryThinkingLevelChange record.
type ThinkingLevelChangePayload struct {
	Level string `json:"level"`
}

// CompactionPayload is the payload of an EntryCompaction record,
// referencing the summary text and the entry id of the first retained
// message.
type CompactionPayload struct {
	Summary          string `json:"summary"`
	TokensBefore     int    `json:"tokensBefore"`
	FirstKeptEntryID string `json:"firstKeptEntryId"`
}

// BranchPayload is the payload of an EntryBranch record.
type BranchPayload struct {
	Summary string `json:"summary"`
}
