package watermark

import (
	"fmt"
	"time"

	"github.com/quantumclean/heatshield/core/gate"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
)

// ExportUnit is one cleared unit with its export texts watermarked, the
// shape handed to downstream exporters.
type ExportUnit struct {
	UnitID string            `json:"unit_id"`
	ZIP    string            `json:"zip"`
	Window schema.TimeWindow `json:"window"`
	Texts  []string          `json:"texts"`
}

// Apply watermarks every export text of every cleared unit with one shared
// (tier, batchID, ts) triple and appends a single watermark_batch record to
// the audit sink. The append happens before the units are returned; a sink
// failure aborts the batch because an untraceable export must never leave
// the system. A nil sink skips the append.
func Apply(cleared []gate.ClearedUnit, tier int, batchID string, ts time.Time, sink contract.AuditSink) ([]ExportUnit, schema.AuditRecord, error) {
	fp := schema.NewWatermarkPayload(tier, batchID, ts).Fingerprint()

	record := schema.NewWatermarkBatchRecord(batchID, tier, len(cleared), ts)
	if sink != nil {
		if err := sink.Append(record); err != nil {
			return nil, record, fmt.Errorf("failed to append watermark batch record: %w", err)
		}
	}

	exports := make([]ExportUnit, 0, len(cleared))
	for _, c := range cleared {
		unit := c.Unit()
		texts := c.ExportTexts()
		marked := make([]string, len(texts))
		for i, text := range texts {
			marked[i] = encodeFingerprint(text, fp)
		}
		exports = append(exports, ExportUnit{
			UnitID: unit.ID,
			ZIP:    unit.ZIP,
			Window: unit.Window,
			Texts:  marked,
		})
	}
	return exports, record, nil
}
