package schema

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

// BucketSeconds is the watermark timestamp bucket width. Ten-minute buckets
// bound how finely a leaked export can be dated.
const BucketSeconds = 600

// WatermarkPayload identifies one watermarking batch. It is ephemeral,
// recomputed on demand and never stored; only the audit record survives.
type WatermarkPayload struct {
	Tier            int    `json:"tier"`
	BatchID         string `json:"batch_id"`
	TimestampBucket int64  `json:"timestamp_bucket"`
}

// NewWatermarkPayload buckets ts into BucketSeconds-wide windows.
func NewWatermarkPayload(tier int, batchID string, ts time.Time) WatermarkPayload {
	return WatermarkPayload{
		Tier:            tier,
		BatchID:         batchID,
		TimestampBucket: ts.Unix() / BucketSeconds,
	}
}

// Fingerprint derives the 32-bit value embedded into exported text: the
// first 4 bytes, big-endian, of SHA-256 over "{tier}:{batch_id}:{bucket}".
func (p WatermarkPayload) Fingerprint() uint32 {
	key := fmt.Sprintf("%d:%s:%d", p.Tier, p.BatchID, p.TimestampBucket)
	sum := sha256.Sum256([]byte(key))
	return binary.BigEndian.Uint32(sum[:4])
}

// AuditRecord is one line of the append-only audit log. A record is one of
// three kinds and only the fields for its kind are set; the rest stay at
// their zero values and are omitted from JSON. Records are appended, never
// rewritten or deleted.
type AuditRecord struct {
	Kind      AuditKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// gate_decision
	UnitID string   `json:"unit_id,omitempty"`
	Gate   GateName `json:"gate,omitempty"`
	Passed *bool    `json:"passed,omitempty"`
	Detail string   `json:"detail,omitempty"`

	// scrub_event; counts per entity type only, never matched text
	Entities map[string]int `json:"entities,omitempty"`

	// watermark_batch
	BatchID  string `json:"batch_id,omitempty"`
	Tier     *int   `json:"tier,omitempty"`
	Clusters *int   `json:"clusters_watermarked,omitempty"`
}

// NewGateDecisionRecord records one gate's verdict for one unit.
func NewGateDecisionRecord(unitID string, gate GateName, passed bool, detail string, ts time.Time) AuditRecord {
	return AuditRecord{
		Kind:      GateDecisionKind,
		Timestamp: ts,
		UnitID:    unitID,
		Gate:      gate,
		Passed:    &passed,
		Detail:    detail,
	}
}

// NewScrubEventRecord records entity counts removed from one unit's texts.
// The detail names the recognizer that ran, never the matched substrings.
func NewScrubEventRecord(unitID string, entities map[string]int, detail string, ts time.Time) AuditRecord {
	return AuditRecord{
		Kind:      ScrubEventKind,
		Timestamp: ts,
		UnitID:    unitID,
		Detail:    detail,
		Entities:  entities,
	}
}

// NewWatermarkBatchRecord records one watermarking batch.
func NewWatermarkBatchRecord(batchID string, tier, clusters int, ts time.Time) AuditRecord {
	return AuditRecord{
		Kind:      WatermarkBatchKind,
		Timestamp: ts,
		BatchID:   batchID,
		Tier:      &tier,
		Clusters:  &clusters,
	}
}

// Payload reconstructs the watermark payload a batch record would have
// produced at its timestamp. Only meaningful for watermark_batch records.
func (r *AuditRecord) Payload() (WatermarkPayload, bool) {
	if r.Kind != WatermarkBatchKind || r.Tier == nil {
		return WatermarkPayload{}, false
	}
	return NewWatermarkPayload(*r.Tier, r.BatchID, r.Timestamp), true
}

// AuditStatus represents the status of an audit store.
type AuditStatus struct {
	Backend          string         `json:"backend"`
	Location         string         `json:"location"`
	Connected        bool           `json:"connected"`
	TotalRecords     int            `json:"total_records"`
	RecordsByKind    map[string]int `json:"records_by_kind"`
	LastRecordTime   time.Time      `json:"last_record_time"`
	OldestRecordTime time.Time      `json:"oldest_record_time"`
}
