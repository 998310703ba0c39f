// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"github.com/quantumclean/heatshield/schema"
)

// AuditSink defines the append-only destination for audit records.
// Implementations never update or delete a record once it is written.
type AuditSink interface {
	// Append writes one record to the end of the log.
	Append(record schema.AuditRecord) error

	// Close flushes buffered records and releases the underlying resources.
	Close() error
}

// AuditReader defines read access over previously appended records.
// This allows watermark tracing and status reporting to be tested
// without a real log on disk.
type AuditReader interface {
	// Records returns records of the given kind, oldest first.
	// An empty kind returns every record.
	Records(kind schema.AuditKind) ([]schema.AuditRecord, error)
}

// AuditStore combines writing and reading with status inspection.
// The concrete backends (JSONL, SQLite, MySQL, PostgreSQL) implement it.
type AuditStore interface {
	AuditSink
	AuditReader

	// GetStatus returns status information about the audit store.
	GetStatus() (schema.AuditStatus, error)
}
