// Package auditlog stores the append-only audit trail: gate decisions,
// scrub events and watermark batches. Records are appended, never updated
// or deleted, across JSONL, SQLite, MySQL and PostgreSQL backends.
package auditlog

import (
	"fmt"
	"sync"

	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
)

// auditTable is the name of the table for SQL-backed audit logs.
const auditTable = "heatshield_audit_log"

// Open creates the audit store the config asks for.
func Open(cfg *contract.Config) (contract.AuditStore, error) {
	switch cfg.AuditBackend {
	case schema.JSONLBackend:
		return NewFileStore(cfg.AuditDir)
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
		return NewSQLStore(cfg.AuditBackend, cfg.AuditDBConnect)
	case schema.NoneBackend:
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unsupported audit backend: %s", cfg.AuditBackend)
	}
}

// StoreManager guards the process-wide audit store.
type StoreManager struct {
	sync.RWMutex // Protects the store pointer during initialization
	store        contract.AuditStore
}

// GetAuditStore returns the active audit store. Before InitStore it returns
// a NopStore so callers never need a nil check.
func (mgr *StoreManager) GetAuditStore() contract.AuditStore {
	mgr.RLock()
	defer mgr.RUnlock()
	if mgr.store == nil {
		return NopStore{}
	}
	return mgr.store
}

// Global Manager instance for main logic.
var (
	Manager   = &StoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// InitStore initializes the global audit store from the config.
func InitStore(cfg *contract.Config) error {
	var initErr error

	initOnce.Do(func() {
		// This function body runs exactly once, even with concurrent calls.
		store, err := Open(cfg)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize audit store: %w", err)
			return
		}

		Manager.Lock()
		Manager.store = store
		Manager.Unlock()
	})

	// After once.Do, initErr holds any error from the initialization block.
	return initErr
}

// CloseStore should be called on application shutdown.
func CloseStore() { // called in main defer
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.store != nil {
			_ = Manager.store.Close()
		}
	})
}

// NopStore discards appends and reports nothing. It backs the none backend
// and the uninitialized manager.
type NopStore struct{}

var _ contract.AuditStore = NopStore{} // Compile-time check

// Append discards the record.
func (NopStore) Append(schema.AuditRecord) error { return nil }

// Records always reports an empty log.
func (NopStore) Records(schema.AuditKind) ([]schema.AuditRecord, error) { return nil, nil }

// GetStatus reports a disconnected store.
func (NopStore) GetStatus() (schema.AuditStatus, error) {
	return schema.AuditStatus{Backend: string(schema.NoneBackend), Connected: false}, nil
}

// Close is a no-op.
func (NopStore) Close() error { return nil }
