package auditlog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quantumclean/heatshield/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteAuditExport_RequiresOutputFile(t *testing.T) {
	err := ExecuteAuditExport("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output-file is required")
}

func TestExecuteAuditExport_NoRecords(t *testing.T) {
	// Pin the manager to its uninitialized state so the export sees an
	// empty log regardless of test order.
	Manager.Lock()
	Manager.store = nil
	Manager.Unlock()

	err := ExecuteAuditExport("out")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audit records found")
}

func TestExecuteAuditExport_WritesParquet(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	require.NoError(t, store.Append(schema.NewGateDecisionRecord("unit-1", schema.KAnonymityGate, true, "", recordedAt)))
	require.NoError(t, store.Append(schema.NewWatermarkBatchRecord("batch-1", 1, 2, recordedAt)))

	Manager.Lock()
	Manager.store = store
	Manager.Unlock()
	defer func() {
		Manager.Lock()
		Manager.store = nil
		Manager.Unlock()
	}()

	outBase := filepath.Join(t.TempDir(), "audit_export")
	require.NoError(t, ExecuteAuditExport(outBase))

	info, err := os.Stat(outBase + ".audit_log.parquet")
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
