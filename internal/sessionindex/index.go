// Package sessionindex maintains a gorm-backed secondary index over
// session journal files: list sessions, look one up by id, and find the
// child sessions a parent spawned. The append-only journal files remain
// the source of truth; the index can always be rebuilt from them with
// Rebuild.
package sessionindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/agentcore/turncore/internal/entity"
	"github.com/agentcore/turncore/internal/journal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when a session id is not in the index.
var ErrNotFound = errors.New("session not found")

// subagentFileName extracts (parentSessionID, taskID) from a child journal
// file name of the form subagent-<parent>-<task>.jsonl.
var subagentFileName = regexp.MustCompile(`^subagent-(.+?)-([a-zA-Z0-9_-]{1,32})\.jsonl$`)

// Open connects to the index database. dbType is "sqlite" or "postgres".
func Open(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbType {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported index database type: %s", dbType)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect index database: %w", err)
	}
	if err := db.AutoMigrate(&SessionModel{}); err != nil {
		return nil, fmt.Errorf("migrate index database: %w", err)
	}
	return db, nil
}

// Index is the query and maintenance surface over the sessions table.
type Index struct {
	db     *gorm.DB
	logger *zap.Logger
}

// New builds an Index over an opened database.
func New(db *gorm.DB, logger *zap.Logger) *Index {
	return &Index{db: db, logger: logger}
}

// Record inserts or refreshes the row for one journal file.
func (ix *Index) Record(ctx context.Context, m SessionModel) error {
	if err := ix.db.WithContext(ctx).Save(&m).Error; err != nil {
		return fmt.Errorf("save session row: %w", err)
	}
	return nil
}

// List returns indexed sessions, most recently updated first; a limit > 0
// caps the number of rows returned, otherwise every session is listed.
func (ix *Index) List(ctx context.Context, limit int) ([]SessionModel, error) {
	q := ix.db.WithContext(ctx).Order("updated_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []SessionModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return rows, nil
}

// FindByID returns the row for one session id.
func (ix *Index) FindByID(ctx context.Context, id string) (SessionModel, error) {
	var row SessionModel
	err := ix.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return SessionModel{}, ErrNotFound
	}
	if err != nil {
		return SessionModel{}, fmt.Errorf("find session: %w", err)
	}
	return row, nil
}

// FindChildren returns the sub-agent sessions spawned by parentID, oldest
// first.
func (ix *Index) FindChildren(ctx context.Context, parentID string) ([]SessionModel, error) {
	var rows []SessionModel
	err := ix.db.WithContext(ctx).
		Where("parent_session_id = ?", parentID).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find children: %w", err)
	}
	return rows, nil
}

// Rebuild scans dir for *.jsonl journals and re-derives every row from
// file content. Unreadable or malformed journals are skipped with a
// warning; the rebuild indexes the rest.
func (ix *Index) Rebuild(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("scan sessions dir: %w", err)
	}

	indexed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		row, err := describeJournal(path, e.Name())
		if err != nil {
			if ix.logger != nil {
				ix.logger.Warn("skipping unindexable journal", zap.String("path", path), zap.Error(err))
			}
			continue
		}
		if err := ix.Record(ctx, row); err != nil {
			return indexed, err
		}
		indexed++
	}
	return indexed, nil
}

// describeJournal derives a SessionModel from one journal file.
func describeJournal(path, fileName string) (SessionModel, error) {
	j, err := journal.Open(path)
	if err != nil {
		return SessionModel{}, err
	}
	defer j.Close()

	entries, err := j.ReadAll()
	if err != nil {
		return SessionModel{}, err
	}

	row := SessionModel{
		ID:          strings.TrimSuffix(fileName, ".jsonl"),
		Path:        path,
		EntryCount:  len(entries),
		LeafEntryID: j.GetLeafID(),
	}
	if m := subagentFileName.FindStringSubmatch(fileName); m != nil {
		row.ParentSessionID = m[1]
		row.TaskID = m[2]
	}
	if len(entries) > 0 {
		row.CreatedAt = entries[0].Timestamp
		row.UpdatedAt = entries[len(entries)-1].Timestamp
	}

	built, err := journal.BuildContext(entries)
	if err == nil {
		for _, msg := range built.Messages {
			if um, ok := msg.(*entity.UserMessage); ok {
				row.FirstUserText = firstLine(um.Text)
				break
			}
		}
	}
	return row, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 200
	if len(s) > max {
		s = s[:max]
	}
	return s
}
