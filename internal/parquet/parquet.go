// Package parquet provides data structures and functions for exporting
// attention results and audit records to Parquet files using
// github.com/parquet-go/parquet-go.
package parquet

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/quantumclean/heatshield/schema"
)

// AttentionResultRecord is the flattened Parquet row for one published
// attention result. Nested provenance and trend fields become scalar
// columns so the file queries well from SQL engines.
type AttentionResultRecord struct {
	// ZIP is the 5-digit area the result covers
	ZIP string `parquet:"zip,snappy"`

	// WindowStart and WindowEnd bound the evaluated window (YYYY-MM-DD)
	WindowStart string `parquet:"window_start,snappy"`
	WindowEnd   string `parquet:"window_end,snappy"`

	// State is the classified attention state
	State string `parquet:"state,snappy"`

	// Score and Confidence are the published values in [0,1]
	Score      float64 `parquet:"score,snappy"`
	Confidence float64 `parquet:"confidence,snappy"`

	// EffectiveScore is score times confidence, the classification input
	EffectiveScore float64 `parquet:"effective_score,snappy"`

	// TrendSlope is signals per day; TrendDirection its classification
	TrendSlope     float64 `parquet:"trend_slope,snappy"`
	TrendDirection string  `parquet:"trend_direction,snappy"`

	// ModelVersion and SchemaVersion pin what produced the result
	ModelVersion  string `parquet:"model_version,snappy"`
	SchemaVersion string `parquet:"schema_version,snappy"`

	// InputsHash is the content hash of the input signal multiset
	InputsHash string `parquet:"inputs_hash,snappy"`

	// SignalsN is the number of signals behind the result
	SignalsN int32 `parquet:"signals_n,snappy"`

	// Per-category source counts from the provenance breakdown
	SourcesNews      int32 `parquet:"sources_news,snappy"`
	SourcesCommunity int32 `parquet:"sources_community,snappy"`
	SourcesAdvocacy  int32 `parquet:"sources_advocacy,snappy"`
	SourcesOfficial  int32 `parquet:"sources_official,snappy"`
	SourcesOther     int32 `parquet:"sources_other,snappy"`
	SourcesTotal     int32 `parquet:"sources_total,snappy"`

	// GeneratedAt is when the result was built (TIMESTAMP with nanosecond precision)
	GeneratedAt time.Time `parquet:"generated_at,snappy"`

	// WhyJSON is the JSON-encoded list of explanation reasons (nullable)
	WhyJSON *string `parquet:"why_json,optional,snappy"`
}

// AuditLogRecord is the flattened Parquet row for one audit record. Only
// the fields for the record's kind are set; the rest are null.
type AuditLogRecord struct {
	// Kind is the record type: gate_decision, scrub_event or watermark_batch
	Kind string `parquet:"kind,snappy"`

	// RecordedAt is when the record was appended (TIMESTAMP with nanosecond precision)
	RecordedAt time.Time `parquet:"recorded_at,snappy"`

	// UnitID names the evaluated unit (nullable)
	UnitID *string `parquet:"unit_id,optional,snappy"`

	// Gate names the safety gate for gate_decision records (nullable)
	Gate *string `parquet:"gate,optional,snappy"`

	// Passed is the gate verdict for gate_decision records (nullable)
	Passed *bool `parquet:"passed,optional,snappy"`

	// Detail carries the failure reason or recognizer name (nullable)
	Detail *string `parquet:"detail,optional,snappy"`

	// EntitiesJSON is the JSON-encoded entity count map for scrub_event records (nullable)
	EntitiesJSON *string `parquet:"entities_json,optional,snappy"`

	// BatchID names the export batch for watermark_batch records (nullable)
	BatchID *string `parquet:"batch_id,optional,snappy"`

	// Tier is the consumer tier for watermark_batch records (nullable)
	Tier *int32 `parquet:"tier,optional,snappy"`

	// Clusters is the number of clusters watermarked (nullable)
	Clusters *int32 `parquet:"clusters,optional,snappy"`
}

// WriteAttentionResultsParquet writes a slice of AttentionResultRecord structs to a Parquet file.
func WriteAttentionResultsParquet(data []AttentionResultRecord, outputPath string) error {
	// Create the output file
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Create a Parquet writer using struct schema inference
	// The schema is automatically derived from the AttentionResultRecord struct tags
	writer := parquet.NewGenericWriter[AttentionResultRecord](file)
	defer func() { _ = writer.Close() }()

	// Write all records to the file
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}

	return nil
}

// WriteAuditRecordsParquet writes a slice of AuditLogRecord structs to a Parquet file.
func WriteAuditRecordsParquet(data []AuditLogRecord, outputPath string) error {
	// Create the output file
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Create a Parquet writer using struct schema inference
	// The schema is automatically derived from the AuditLogRecord struct tags
	writer := parquet.NewGenericWriter[AuditLogRecord](file)
	defer func() { _ = writer.Close() }()

	// Write all records to the file
	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}

	return nil
}

// ConvertAttentionResults converts schema.AttentionResult to AttentionResultRecord for Parquet export.
func ConvertAttentionResults(results []schema.AttentionResult) []AttentionResultRecord {
	records := make([]AttentionResultRecord, len(results))
	for i, r := range results {
		var whyJSON *string
		if len(r.Explanation.Why) > 0 {
			data, _ := json.Marshal(r.Explanation.Why)
			s := string(data)
			whyJSON = &s
		}
		records[i] = AttentionResultRecord{
			ZIP:              r.ZIP,
			WindowStart:      r.Window.Start,
			WindowEnd:        r.Window.End,
			State:            string(r.State),
			Score:            r.Score,
			Confidence:       r.Confidence,
			EffectiveScore:   r.EffectiveScore(),
			TrendSlope:       r.Trend.Slope,
			TrendDirection:   string(r.Trend.Direction),
			ModelVersion:     r.Provenance.ModelVersion,
			SchemaVersion:    r.Provenance.SchemaVersion,
			InputsHash:       r.Provenance.InputsHash,
			SignalsN:         int32(r.Provenance.SignalsN),
			SourcesNews:      int32(r.Provenance.Sources.News),
			SourcesCommunity: int32(r.Provenance.Sources.Community),
			SourcesAdvocacy:  int32(r.Provenance.Sources.Advocacy),
			SourcesOfficial:  int32(r.Provenance.Sources.Official),
			SourcesOther:     int32(r.Provenance.Sources.Other),
			SourcesTotal:     int32(r.Provenance.Sources.Total),
			GeneratedAt:      r.Provenance.GeneratedAt,
			WhyJSON:          whyJSON,
		}
	}
	return records
}

// ConvertAuditRecords converts schema.AuditRecord to AuditLogRecord for Parquet export.
func ConvertAuditRecords(records []schema.AuditRecord) []AuditLogRecord {
	rows := make([]AuditLogRecord, len(records))
	for i, r := range records {
		var entitiesJSON *string
		if len(r.Entities) > 0 {
			data, _ := json.Marshal(r.Entities)
			s := string(data)
			entitiesJSON = &s
		}
		rows[i] = AuditLogRecord{
			Kind:         string(r.Kind),
			RecordedAt:   r.Timestamp,
			UnitID:       optionalString(r.UnitID),
			Gate:         optionalString(string(r.Gate)),
			Passed:       r.Passed,
			Detail:       optionalString(r.Detail),
			EntitiesJSON: entitiesJSON,
			BatchID:      optionalString(r.BatchID),
			Tier:         optionalInt32(r.Tier),
			Clusters:     optionalInt32(r.Clusters),
		}
	}
	return rows
}

// optionalString maps empty strings onto null columns.
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// optionalInt32 narrows an optional int onto a null-capable int32 column.
func optionalInt32(p *int) *int32 {
	if p == nil {
		return nil
	}
	v := int32(*p)
	return &v
}

// MockFetchAttentionResults generates sample AttentionResultRecord data for demonstration.
func MockFetchAttentionResults() []AttentionResultRecord {
	now := time.Now().UTC()
	why1 := `["volume well above baseline","signals from 4 distinct sources"]`
	why2 := `["steady activity across the window"]`

	return []AttentionResultRecord{
		{
			ZIP:              "60601",
			WindowStart:      "2025-06-01",
			WindowEnd:        "2025-06-07",
			State:            "ELEVATED_ATTENTION",
			Score:            0.82,
			Confidence:       0.75,
			EffectiveScore:   0.615,
			TrendSlope:       1.4,
			TrendDirection:   "rising",
			ModelVersion:     "2025.08",
			SchemaVersion:    "1",
			InputsHash:       "4f6b1a2c9d8e7f30",
			SignalsN:         23,
			SourcesNews:      9,
			SourcesCommunity: 8,
			SourcesAdvocacy:  3,
			SourcesOfficial:  2,
			SourcesOther:     1,
			SourcesTotal:     23,
			GeneratedAt:      now.Add(-2 * time.Hour),
			WhyJSON:          &why1,
		},
		{
			ZIP:              "60602",
			WindowStart:      "2025-06-01",
			WindowEnd:        "2025-06-07",
			State:            "MODERATE",
			Score:            0.48,
			Confidence:       0.66,
			EffectiveScore:   0.317,
			TrendSlope:       0.05,
			TrendDirection:   "stable",
			ModelVersion:     "2025.08",
			SchemaVersion:    "1",
			InputsHash:       "b91c3e5a7d2f4081",
			SignalsN:         11,
			SourcesNews:      4,
			SourcesCommunity: 5,
			SourcesAdvocacy:  1,
			SourcesOfficial:  1,
			SourcesOther:     0,
			SourcesTotal:     11,
			GeneratedAt:      now.Add(-2 * time.Hour),
			WhyJSON:          &why2,
		},
		{
			ZIP:              "60603",
			WindowStart:      "2025-06-01",
			WindowEnd:        "2025-06-07",
			State:            "QUIET",
			Score:            0.12,
			Confidence:       0.5,
			EffectiveScore:   0.06,
			TrendSlope:       -0.3,
			TrendDirection:   "falling",
			ModelVersion:     "2025.08",
			SchemaVersion:    "1",
			InputsHash:       "0a2d4c6e8f1b3957",
			SignalsN:         6,
			SourcesNews:      2,
			SourcesCommunity: 2,
			SourcesAdvocacy:  0,
			SourcesOfficial:  1,
			SourcesOther:     1,
			SourcesTotal:     6,
			GeneratedAt:      now.Add(-10 * time.Minute),
			WhyJSON:          nil, // Quiet result carries no reasons - nullable field
		},
	}
}

// MockFetchAuditRecords generates sample AuditLogRecord data for demonstration.
func MockFetchAuditRecords() []AuditLogRecord {
	now := time.Now().UTC()
	unitID := "unit-60601-2025W23"
	gate := "k_anonymity"
	passed := true
	detail := "pattern"
	entities := `{"PHONE":2,"ADDRESS":1}`
	batchID := "batch-2025-06-09"
	tier := int32(2)
	clusters := int32(14)

	return []AuditLogRecord{
		{
			Kind:       "gate_decision",
			RecordedAt: now.Add(-1 * time.Hour),
			UnitID:     &unitID,
			Gate:       &gate,
			Passed:     &passed,
		},
		{
			Kind:         "scrub_event",
			RecordedAt:   now.Add(-1 * time.Hour),
			UnitID:       &unitID,
			Detail:       &detail,
			EntitiesJSON: &entities,
		},
		{
			Kind:       "watermark_batch",
			RecordedAt: now.Add(-50 * time.Minute),
			BatchID:    &batchID,
			Tier:       &tier,
			Clusters:   &clusters,
			// UnitID, Gate and Passed stay nil, batch records carry no unit
		},
	}
}
