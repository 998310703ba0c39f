package auditlog

import (
	"testing"
	"time"

	"github.com/quantumclean/heatshield/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLStore_SQLite(t *testing.T) {
	// Use in-memory SQLite for testing
	store, err := NewSQLStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	require.NotNil(t, store)
	defer func() { _ = store.Close() }()

	// Append one record of each kind
	gate := schema.NewGateDecisionRecord("unit-1", schema.KAnonymityGate, false, "group size 3 below minimum 5", recordedAt)
	scrub := schema.NewScrubEventRecord("unit-1", map[string]int{"PHONE": 2, "EMAIL": 1}, "pattern", recordedAt.Add(time.Second))
	batch := schema.NewWatermarkBatchRecord("batch-7", 2, 4, recordedAt.Add(2*time.Second))
	require.NoError(t, store.Append(gate))
	require.NoError(t, store.Append(scrub))
	require.NoError(t, store.Append(batch))

	// Read everything back in insertion order
	records, err := store.Records("")
	require.NoError(t, err)
	require.Len(t, records, 3)

	got := records[0]
	assert.Equal(t, schema.GateDecisionKind, got.Kind)
	assert.Equal(t, "unit-1", got.UnitID)
	assert.Equal(t, schema.KAnonymityGate, got.Gate)
	require.NotNil(t, got.Passed)
	assert.False(t, *got.Passed)
	assert.Equal(t, "group size 3 below minimum 5", got.Detail)
	assert.True(t, got.Timestamp.Equal(recordedAt))
	assert.Nil(t, got.Tier)
	assert.Empty(t, got.BatchID)

	got = records[1]
	assert.Equal(t, schema.ScrubEventKind, got.Kind)
	assert.Equal(t, map[string]int{"PHONE": 2, "EMAIL": 1}, got.Entities)
	assert.Nil(t, got.Passed)

	got = records[2]
	assert.Equal(t, schema.WatermarkBatchKind, got.Kind)
	assert.Equal(t, "batch-7", got.BatchID)
	require.NotNil(t, got.Tier)
	assert.Equal(t, 2, *got.Tier)
	require.NotNil(t, got.Clusters)
	assert.Equal(t, 4, *got.Clusters)
}

func TestSQLStore_KindFilter(t *testing.T) {
	store, err := NewSQLStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Append(schema.NewGateDecisionRecord("unit-1", schema.TimeDelayGate, true, "", recordedAt)))
	require.NoError(t, store.Append(schema.NewScrubEventRecord("unit-1", map[string]int{"NAME": 1}, "pattern", recordedAt)))
	require.NoError(t, store.Append(schema.NewGateDecisionRecord("unit-2", schema.TimeDelayGate, true, "", recordedAt)))

	decisions, err := store.Records(schema.GateDecisionKind)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, "unit-1", decisions[0].UnitID)
	assert.Equal(t, "unit-2", decisions[1].UnitID)

	scrubs, err := store.Records(schema.ScrubEventKind)
	require.NoError(t, err)
	assert.Len(t, scrubs, 1)
}

func TestSQLStore_PayloadRoundTrip(t *testing.T) {
	// The fingerprint must survive storage so a leaked export can be
	// traced back to its batch later.
	store, err := NewSQLStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.Append(schema.NewWatermarkBatchRecord("batch-42", 3, 9, recordedAt)))

	records, err := store.Records(schema.WatermarkBatchKind)
	require.NoError(t, err)
	require.Len(t, records, 1)

	payload, ok := records[0].Payload()
	require.True(t, ok)
	want := schema.NewWatermarkPayload(3, "batch-42", recordedAt)
	assert.Equal(t, want, payload)
	assert.Equal(t, want.Fingerprint(), payload.Fingerprint())
}

func TestSQLStore_GetStatus(t *testing.T) {
	store, err := NewSQLStore(schema.SQLiteBackend, ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	// Empty store
	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Backend)
	assert.Equal(t, ":memory:", status.Location)
	assert.True(t, status.Connected)
	assert.Equal(t, 0, status.TotalRecords)

	require.NoError(t, store.Append(schema.NewGateDecisionRecord("unit-1", schema.KAnonymityGate, true, "", recordedAt)))
	require.NoError(t, store.Append(schema.NewGateDecisionRecord("unit-1", schema.TimeDelayGate, true, "", recordedAt.Add(time.Minute))))
	require.NoError(t, store.Append(schema.NewScrubEventRecord("unit-1", map[string]int{"PHONE": 1}, "pattern", recordedAt.Add(2*time.Minute))))
	require.NoError(t, store.Append(schema.NewWatermarkBatchRecord("batch-1", 1, 1, recordedAt.Add(3*time.Minute))))

	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, 4, status.TotalRecords)
	assert.Equal(t, map[string]int{
		"gate_decision":   2,
		"scrub_event":     1,
		"watermark_batch": 1,
	}, status.RecordsByKind)
	assert.True(t, status.OldestRecordTime.Equal(recordedAt))
	assert.True(t, status.LastRecordTime.Equal(recordedAt.Add(3*time.Minute)))
}

func TestSQLStore_UnsupportedBackend(t *testing.T) {
	_, err := NewSQLStore(schema.JSONLBackend, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported SQL audit backend")
}

func TestQuoteTableName(t *testing.T) {
	assert.Equal(t, "`heatshield_audit_log`", quoteTableName(auditTable, schema.MySQLBackend))
	assert.Equal(t, `"heatshield_audit_log"`, quoteTableName(auditTable, schema.SQLiteBackend))
	assert.Equal(t, `"heatshield_audit_log"`, quoteTableName(auditTable, schema.PostgreSQLBackend))
}

func TestWithParseTime(t *testing.T) {
	assert.Equal(t, "user:pw@tcp(localhost:3306)/audit?parseTime=true",
		withParseTime("user:pw@tcp(localhost:3306)/audit"))

	// Already set stays untouched
	dsn := "user:pw@tcp(localhost:3306)/audit?parseTime=true"
	assert.Equal(t, dsn, withParseTime(dsn))

	// Unparseable strings pass through
	assert.Equal(t, "%%%", withParseTime("%%%"))
}
