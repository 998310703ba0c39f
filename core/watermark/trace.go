package watermark

import (
	"errors"
	"fmt"

	"github.com/quantumclean/heatshield/schema"
)

// ErrUnmatchedFingerprint is returned by Trace when a text carries a valid
// payload that matches no recorded batch. The fingerprint is still in the
// error text for manual follow-up.
var ErrUnmatchedFingerprint = errors.New("fingerprint matches no recorded batch")

// Match ties a leaked text back to the batch that exported it.
type Match struct {
	Fingerprint uint32                  `json:"fingerprint"`
	Payload     schema.WatermarkPayload `json:"payload"`
	Record      schema.AuditRecord      `json:"record"`
}

// Trace decodes a text's fingerprint and searches the audit records for the
// watermark batch that produced it. Fingerprints are never stored, so each
// candidate is recomputed from its record's (tier, batch, timestamp) before
// comparing. The first matching record wins; records of other kinds are
// skipped.
func Trace(text string, records []schema.AuditRecord) (*Match, error) {
	fp, err := Decode(text)
	if err != nil {
		return nil, err
	}

	for _, r := range records {
		payload, ok := r.Payload()
		if !ok {
			continue
		}
		if payload.Fingerprint() == fp {
			return &Match{Fingerprint: fp, Payload: payload, Record: r}, nil
		}
	}
	return nil, fmt.Errorf("fingerprint %08x: %w", fp, ErrUnmatchedFingerprint)
}
