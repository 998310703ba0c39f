package auditlog

import (
	"errors"
	"sync"

	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
)

// MemoryStore keeps audit records in process memory. It backs ephemeral
// runs, such as MCP tool calls, where a persistent trail is unwanted but
// callers still read back what the run decided.
type MemoryStore struct {
	mu      sync.Mutex
	records []schema.AuditRecord
	closed  bool
}

var _ contract.AuditStore = (*MemoryStore)(nil) // Compile-time check

// NewMemoryStore returns an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append adds a record to the in-memory log.
func (m *MemoryStore) Append(record schema.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("audit store is closed")
	}
	m.records = append(m.records, record)
	return nil
}

// Records returns a copy of the records of one kind in insertion order.
// An empty kind returns every record.
func (m *MemoryStore) Records(kind schema.AuditKind) ([]schema.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []schema.AuditRecord
	for _, record := range m.records {
		if kind == "" || record.Kind == kind {
			records = append(records, record)
		}
	}
	return records, nil
}

// GetStatus returns status information about the in-memory store.
func (m *MemoryStore) GetStatus() (schema.AuditStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := schema.AuditStatus{
		Backend:       "memory",
		Connected:     !m.closed,
		TotalRecords:  len(m.records),
		RecordsByKind: make(map[string]int),
	}
	for i, record := range m.records {
		status.RecordsByKind[string(record.Kind)]++
		if i == 0 || record.Timestamp.Before(status.OldestRecordTime) {
			status.OldestRecordTime = record.Timestamp
		}
		if record.Timestamp.After(status.LastRecordTime) {
			status.LastRecordTime = record.Timestamp
		}
	}
	return status, nil
}

// Close marks the store closed. Held records stay readable.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
