package auditlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
)

// auditFileName is the JSONL log file inside the audit directory.
const auditFileName = "audit.jsonl"

// FileStore appends audit records as JSON lines to a single file. A mutex
// serializes appends because the pipeline writes from worker goroutines.
type FileStore struct {
	mu   sync.Mutex
	path string
	file *os.File
}

var _ contract.AuditStore = (*FileStore)(nil) // Compile-time check

// NewFileStore opens (creating if needed) the JSONL audit log under dir.
// An empty dir falls back to the default audit directory.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = contract.GetAuditDirPath()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory %q: %w", dir, err)
	}

	path := filepath.Join(dir, auditFileName)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log %q: %w. Check that the directory is writable", path, err)
	}

	return &FileStore{path: path, file: file}, nil
}

// Path returns the log file location.
func (fs *FileStore) Path() string {
	return fs.path
}

// Append writes one record as a single line. The line is written with one
// Write call so concurrent appenders never interleave.
func (fs *FileStore) Append(record schema.AuditRecord) error {
	data, _ := json.Marshal(record)
	line := append(data, '\n')

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.file == nil {
		return errors.New("audit store is closed")
	}
	if _, err := fs.file.Write(line); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// Records reads the log back, oldest first, filtered to one kind. An empty
// kind returns everything; a missing file is an empty log. A line that does
// not parse is an integrity failure and errors out rather than being
// skipped.
func (fs *FileStore) Records(kind schema.AuditKind) ([]schema.AuditRecord, error) {
	file, err := os.Open(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open audit log %q: %w", fs.path, err)
	}
	defer func() { _ = file.Close() }()

	var records []schema.AuditRecord
	dec := json.NewDecoder(file)
	for line := 1; ; line++ {
		var record schema.AuditRecord
		if err := dec.Decode(&record); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("corrupt audit record at line %d of %q: %w", line, fs.path, err)
		}
		if kind == "" || record.Kind == kind {
			records = append(records, record)
		}
	}
	return records, nil
}

// GetStatus summarizes the log contents.
func (fs *FileStore) GetStatus() (schema.AuditStatus, error) {
	fs.mu.Lock()
	connected := fs.file != nil
	fs.mu.Unlock()

	status := schema.AuditStatus{
		Backend:       string(schema.JSONLBackend),
		Location:      fs.path,
		Connected:     connected,
		RecordsByKind: make(map[string]int),
	}

	records, err := fs.Records("")
	if err != nil {
		return status, err
	}

	status.TotalRecords = len(records)
	for _, record := range records {
		status.RecordsByKind[string(record.Kind)]++
		if status.OldestRecordTime.IsZero() || record.Timestamp.Before(status.OldestRecordTime) {
			status.OldestRecordTime = record.Timestamp
		}
		if record.Timestamp.After(status.LastRecordTime) {
			status.LastRecordTime = record.Timestamp
		}
	}
	return status, nil
}

// Close flushes and closes the log file. Closing twice is harmless.
func (fs *FileStore) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.file == nil {
		return nil
	}
	err := fs.file.Close()
	fs.file = nil
	return err
}
