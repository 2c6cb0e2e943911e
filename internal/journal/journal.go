package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/agentcore/turncore/internal/entity"
	"github.com/google/uuid"
)

// Journal is a single-writer, append-only session log backed by a
// line-delimited JSON file. Concurrent writers for the same file are not
// supported by design — callers serialize through one *Journal instance,
// which itself serializes writes with mu.
type Journal struct {
	path string

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	leafID string
}

// Open creates or appends to the journal file at path. If the file already
// exists, its last entry becomes the current leaf so subsequent appends
// chain correctly without a separate Replay call.
func Open(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	j := &Journal{path: path, file: f, writer: bufio.NewWriterSize(f, 64*1024)}

	entries, err := readAll(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read journal for leaf recovery: %w", err)
	}
	if len(entries) > 0 {
		j.leafID = entries[len(entries)-1].ID
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek journal to end: %w", err)
	}
	return j, nil
}

// Path returns the file backing this journal.
func (j *Journal) Path() string { return j.path }

// GetLeafID returns the id of the last appended entry, or "" if the journal
// is empty. It is the ParentID a caller should use for the next append.
func (j *Journal) GetLeafID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.leafID
}

// Append writes one new entry with the given type and payload, parented on
// the current leaf, and returns the new entry. The journal is fsynced
// before Append returns so a crash cannot lose an acknowledged append.
func (j *Journal) Append(entryType EntryType, payload any) (Entry, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal journal payload: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	e := Entry{
		ID:        uuid.NewString(),
		ParentID:  j.leafID,
		Timestamp: time.Now(),
		Type:      entryType,
		Payload:   data,
	}
	line, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal journal entry: %w", err)
	}
	if _, err := j.writer.Write(append(line, '\n')); err != nil {
		return Entry{}, fmt.Errorf("write journal entry: %w", err)
	}
	if err := j.writer.Flush(); err != nil {
		return Entry{}, fmt.Errorf("flush journal: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return Entry{}, fmt.Errorf("fsync journal: %w", err)
	}

	j.leafID = e.ID
	return e, nil
}

// AppendMessage is a convenience wrapper over Append for EntryMessage records.
func (j *Journal) AppendMessage(m entity.Message) (Entry, error) {
	payload, err := encodeMessage(m)
	if err != nil {
		return Entry{}, err
	}
	return j.Append(EntryMessage, payload)
}

// Close flushes and closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		return err
	}
	return j.file.Close()
}

// ReadAll reads every entry currently persisted, in append order.
func (j *Journal) ReadAll() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.writer.Flush(); err != nil {
		return nil, err
	}
	f, err := os.Open(j.path)
	if err != nil {
		return nil, fmt.Errorf("open journal for read: %w", err)
	}
	defer f.Close()
	return readAll(f)
}

func readAll(f *os.File) ([]Entry, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var entries []Entry
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("decode journal line: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return entries, nil
}
