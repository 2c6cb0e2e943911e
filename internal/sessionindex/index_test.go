package sessionindex

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/agentcore/turncore/internal/entity"
	"github.com/agentcore/turncore/internal/journal"
	"go.uber.org/zap"
)

func newIndex(t *testing.T) *Index {
	t.Helper()
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	return New(db, zap.NewNop())
}

func writeJournal(t *testing.T, dir, name, userText string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	j, err := journal.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()
	if _, err := j.AppendMessage(entity.NewUserMessage("u1", userText, nil)); err != nil {
		t.Fatalf("append: %v", err)
	}
	return path
}

func TestIndex_RecordAndQuery(t *testing.T) {
	ix := newIndex(t)
	ctx := context.Background()

	if err := ix.Record(ctx, SessionModel{ID: "s1", Path: "/tmp/s1.jsonl", EntryCount: 3}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ix.Record(ctx, SessionModel{ID: "c1", ParentSessionID: "s1", TaskID: "t1", Path: "/tmp/c1.jsonl"}); err != nil {
		t.Fatalf("record child: %v", err)
	}

	row, err := ix.FindByID(ctx, "s1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if row.EntryCount != 3 {
		t.Fatalf("row mismatch: %+v", row)
	}

	children, err := ix.FindChildren(ctx, "s1")
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 1 || children[0].TaskID != "t1" {
		t.Fatalf("children mismatch: %+v", children)
	}

	if _, err := ix.FindByID(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestIndex_RecordIsUpsert(t *testing.T) {
	ix := newIndex(t)
	ctx := context.Background()

	if err := ix.Record(ctx, SessionModel{ID: "s1", Path: "/tmp/s1.jsonl", EntryCount: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := ix.Record(ctx, SessionModel{ID: "s1", Path: "/tmp/s1.jsonl", EntryCount: 7}); err != nil {
		t.Fatalf("re-record: %v", err)
	}
	row, err := ix.FindByID(ctx, "s1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if row.EntryCount != 7 {
		t.Fatalf("row not refreshed: %+v", row)
	}
	rows, err := ix.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("upsert duplicated the row: %d", len(rows))
	}
}

func TestIndex_RebuildFromJournals(t *testing.T) {
	dir := t.TempDir()
	writeJournal(t, dir, "main.jsonl", "fix the login bug")
	writeJournal(t, dir, "subagent-main-review.jsonl", "review the fix")

	ix := newIndex(t)
	n, err := ix.Rebuild(context.Background(), dir)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 indexed, got %d", n)
	}

	row, err := ix.FindByID(context.Background(), "main")
	if err != nil {
		t.Fatalf("find main: %v", err)
	}
	if row.FirstUserText != "fix the login bug" || row.EntryCount != 1 {
		t.Fatalf("main row mismatch: %+v", row)
	}

	children, err := ix.FindChildren(context.Background(), "main")
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(children) != 1 || children[0].TaskID != "review" {
		t.Fatalf("child row mismatch: %+v", children)
	}
}
