package schema

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermarkPayloadFingerprint(t *testing.T) {
	ts := time.Date(2025, 6, 8, 12, 34, 56, 0, time.UTC)
	p := NewWatermarkPayload(2, "batch-7", ts)

	// Bucketing floors the epoch to 10-minute windows.
	assert.Equal(t, ts.Unix()/600, p.TimestampBucket)

	// The fingerprint is the first 4 bytes of the digest, big-endian.
	sum := sha256.Sum256([]byte(fmt.Sprintf("2:batch-7:%d", p.TimestampBucket)))
	want := binary.BigEndian.Uint32(sum[:4])
	assert.Equal(t, want, p.Fingerprint())
}

func TestWatermarkPayloadBucketStability(t *testing.T) {
	base := time.Date(2025, 6, 8, 12, 30, 0, 0, time.UTC)

	// Two timestamps inside the same 10-minute bucket share a fingerprint.
	a := NewWatermarkPayload(1, "batch-1", base)
	b := NewWatermarkPayload(1, "batch-1", base.Add(9*time.Minute+59*time.Second))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint(), "same bucket means same fingerprint")

	// Crossing the bucket boundary changes it.
	c := NewWatermarkPayload(1, "batch-1", base.Add(10*time.Minute))
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint(), "next bucket means a different fingerprint")

	// Tier and batch are both part of the key.
	d := NewWatermarkPayload(2, "batch-1", base)
	e := NewWatermarkPayload(1, "batch-2", base)
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), e.Fingerprint())
}

func TestNewGateDecisionRecord(t *testing.T) {
	ts := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)
	rec := NewGateDecisionRecord("unit-1", KAnonymityGate, false, "k_anonymity_fail: 3<5", ts)

	assert.Equal(t, GateDecisionKind, rec.Kind)
	assert.Equal(t, "unit-1", rec.UnitID)
	assert.Equal(t, KAnonymityGate, rec.Gate)
	require.NotNil(t, rec.Passed)
	assert.False(t, *rec.Passed)
	assert.Equal(t, "k_anonymity_fail: 3<5", rec.Detail)

	// Fields of other kinds stay unset.
	assert.Nil(t, rec.Tier)
	assert.Nil(t, rec.Clusters)
	assert.Nil(t, rec.Entities)
}

func TestNewScrubEventRecord(t *testing.T) {
	ts := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)
	rec := NewScrubEventRecord("unit-2", map[string]int{"PHONE_NUMBER": 2, "EMAIL": 1}, "recognizer=regex", ts)

	assert.Equal(t, ScrubEventKind, rec.Kind)
	assert.Equal(t, "unit-2", rec.UnitID)
	assert.Equal(t, 2, rec.Entities["PHONE_NUMBER"])
	assert.Equal(t, 1, rec.Entities["EMAIL"])
	assert.Equal(t, "recognizer=regex", rec.Detail)
}

func TestNewWatermarkBatchRecord(t *testing.T) {
	ts := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)
	rec := NewWatermarkBatchRecord("batch-9", 3, 17, ts)

	assert.Equal(t, WatermarkBatchKind, rec.Kind)
	assert.Equal(t, "batch-9", rec.BatchID)
	require.NotNil(t, rec.Tier)
	assert.Equal(t, 3, *rec.Tier)
	require.NotNil(t, rec.Clusters)
	assert.Equal(t, 17, *rec.Clusters)

	// The payload round-trips from the record.
	p, ok := rec.Payload()
	require.True(t, ok)
	assert.Equal(t, 3, p.Tier)
	assert.Equal(t, "batch-9", p.BatchID)
	assert.Equal(t, ts.Unix()/600, p.TimestampBucket)

	// Non-batch records have no payload.
	gateRec := NewGateDecisionRecord("u", TimeDelayGate, true, "", ts)
	_, ok = gateRec.Payload()
	assert.False(t, ok)
}

func TestAuditRecordJSONOmitsUnsetKinds(t *testing.T) {
	ts := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)

	data, err := json.Marshal(NewWatermarkBatchRecord("batch-1", 0, 5, ts))
	require.NoError(t, err)
	payload := string(data)

	// Tier 0 still serializes; gate fields do not.
	assert.Contains(t, payload, `"tier":0`)
	assert.Contains(t, payload, `"clusters_watermarked":5`)
	assert.NotContains(t, payload, `"unit_id"`)
	assert.NotContains(t, payload, `"gate"`)
	assert.NotContains(t, payload, `"passed"`)
	assert.NotContains(t, payload, `"entities"`)

	// A gate record keeps passed=false visible through the pointer.
	data, err = json.Marshal(NewGateDecisionRecord("unit-1", KAnonymityGate, false, "detail", ts))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"passed":false`)
	assert.NotContains(t, string(data), `"batch_id"`)
}
