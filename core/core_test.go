package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/quantumclean/heatshield/core/watermark"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.June, 9, 12, 0, 0, 0, time.UTC)

// recordingSink captures appended records. Appends are locked because the
// pipeline calls the sink from worker goroutines.
type recordingSink struct {
	mu      sync.Mutex
	records []schema.AuditRecord
}

func (s *recordingSink) Append(record schema.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) kinds() map[schema.AuditKind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[schema.AuditKind]int)
	for _, r := range s.records {
		counts[r.Kind]++
	}
	return counts
}

// failingSink rejects every append.
type failingSink struct{}

func (failingSink) Append(schema.AuditRecord) error { return errors.New("disk full") }
func (failingSink) Close() error                    { return nil }

var (
	_ contract.AuditSink = (*recordingSink)(nil)
	_ contract.AuditSink = failingSink{}
)

func pipelineConfig() *contract.Config {
	return &contract.Config{
		MinGroupSize: contract.DefaultMinGroupSize,
		BufferDelay:  contract.DefaultBufferDelay,
		ModelVersion: contract.DefaultModelVersion,
		Workers:      1,
		ResultLimit:  contract.DefaultResultLimit,
		Tier:         1,
		BatchID:      "batch-pipeline",
	}
}

// passingUnit returns a unit that clears every gate at fixedNow.
func passingUnit(id, zip string) *schema.AggregationUnit {
	return &schema.AggregationUnit{
		ID:                 id,
		ZIP:                zip,
		Window:             schema.TimeWindow{Start: "2025-06-01", End: "2025-06-07"},
		RepresentativeText: "several reports of increased activity near the transit hub",
		Signals: []schema.Signal{
			{Text: "crowd gathered downtown", Source: "daily-ledger", Category: schema.NewsSource, ZIP: zip, Date: "2025-06-03"},
			{Text: "unusual vehicles parked for hours", Source: "neighborhood-forum", Category: schema.CommunitySource, ZIP: zip, Date: "2025-06-04"},
			{Text: "more activity than usual this week", Source: "daily-ledger", Category: schema.NewsSource, ZIP: zip, Date: "2025-06-05"},
			{Text: "third sighting reported by residents", Source: "neighborhood-forum", Category: schema.CommunitySource, ZIP: zip, Date: "2025-06-06"},
			{Text: "activity tapering off", Source: "metro-wire", Category: schema.NewsSource, ZIP: zip, Date: "2025-06-07"},
		},
	}
}

func newTestPipeline(cfg *contract.Config, sink contract.AuditSink) *Pipeline {
	return NewPipeline(cfg, sink).WithClock(func() time.Time { return fixedNow })
}

// quietCtx suppresses the run header so tests stay silent.
func quietCtx() context.Context {
	return WithSuppressHeader(context.Background())
}

func TestPipelineRun(t *testing.T) {
	unitA := passingUnit("unit-a", "60601")
	unitA.Signals[2].Text = "more activity, contact 312-555-0188 for details"
	unitB := passingUnit("unit-b", "60601")
	unitB.Signals = unitB.Signals[:3] // below the k-anonymity floor

	sink := &recordingSink{}
	output, err := newTestPipeline(pipelineConfig(), sink).Run(quietCtx(), []*schema.AggregationUnit{unitA, unitB})
	require.NoError(t, err)

	// Decisions cover both units in input order.
	require.Len(t, output.Decisions, 2)
	assert.Equal(t, "unit-a", output.Decisions[0].UnitID)
	assert.True(t, output.Decisions[0].Passed)
	assert.Equal(t, "unit-b", output.Decisions[1].UnitID)
	assert.False(t, output.Decisions[1].Passed)

	// Only the cleared unit produces a result.
	require.Len(t, output.Results, 1)
	result := output.Results[0]
	assert.Equal(t, "60601", result.ZIP)
	assert.Equal(t, contract.DefaultModelVersion, result.Provenance.ModelVersion)
	assert.Equal(t, 5, result.Provenance.SignalsN)
	assert.Equal(t, fixedNow, result.Provenance.GeneratedAt)
	assert.Greater(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 1.0)

	// The export carries scrubbed, watermarked texts.
	require.Len(t, output.Exports, 1)
	export := output.Exports[0]
	assert.Equal(t, "unit-a", export.UnitID)
	require.Len(t, export.Texts, 6)
	wantFp := schema.NewWatermarkPayload(1, "batch-pipeline", fixedNow).Fingerprint()
	for i, text := range export.Texts {
		assert.NotContains(t, text, "312-555-0188", "text %d should be scrubbed", i)
		fp, err := watermark.Decode(text)
		require.NoError(t, err, "text %d should carry the watermark", i)
		assert.Equal(t, wantFp, fp)
	}
	assert.Contains(t, watermark.Strip(export.Texts[3]), "[PHONE]")

	require.NotNil(t, output.BatchRecord)
	assert.Equal(t, schema.WatermarkBatchKind, output.BatchRecord.Kind)
	assert.Equal(t, "batch-pipeline", output.BatchRecord.BatchID)

	// One scrub event, five gate decisions per unit, one batch record.
	kinds := sink.kinds()
	assert.Equal(t, 1, kinds[schema.ScrubEventKind])
	assert.Equal(t, 2*len(schema.AllGates), kinds[schema.GateDecisionKind])
	assert.Equal(t, 1, kinds[schema.WatermarkBatchKind])

	// Input units are never mutated; scrubbing works on copies.
	assert.Contains(t, unitA.Signals[2].Text, "312-555-0188")
}

func TestPipelineScrubBlocksPinpointing(t *testing.T) {
	unit := passingUnit("unit-addr", "60601")
	unit.Signals[1].Text = "loitering near 450 Grove St all day"

	sink := &recordingSink{}
	output, err := newTestPipeline(pipelineConfig(), sink).Run(quietCtx(), []*schema.AggregationUnit{unit})
	require.NoError(t, err)

	// The scrubbed address token still counts as address-grade location, so
	// the unit is held back even though the raw address never surfaces.
	require.Len(t, output.Decisions, 1)
	assert.False(t, output.Decisions[0].Passed)
	reason, ok := output.Decisions[0].Reason(schema.NoPinpointingGate)
	require.True(t, ok)
	assert.False(t, reason.Passed)
	assert.Equal(t, "no_pinpointing_fail: address-grade location in 1 of 6 texts", reason.Detail)

	assert.Empty(t, output.Results)
	assert.Empty(t, output.Exports)
	assert.Nil(t, output.BatchRecord)

	// The scrub itself was recorded.
	require.Equal(t, 1, sink.kinds()[schema.ScrubEventKind])
	var scrubRecord schema.AuditRecord
	for _, r := range sink.records {
		if r.Kind == schema.ScrubEventKind {
			scrubRecord = r
		}
	}
	assert.Equal(t, "unit-addr", scrubRecord.UnitID)
	assert.Equal(t, map[string]int{"ADDRESS": 1}, scrubRecord.Entities)
}

func TestPipelineTierZeroSkipsExport(t *testing.T) {
	cfg := pipelineConfig()
	cfg.Tier = 0

	sink := &recordingSink{}
	output, err := newTestPipeline(cfg, sink).Run(quietCtx(), []*schema.AggregationUnit{passingUnit("unit-a", "60601")})
	require.NoError(t, err)

	require.Len(t, output.Results, 1)
	assert.Empty(t, output.Exports)
	assert.Nil(t, output.BatchRecord)
	assert.Zero(t, sink.kinds()[schema.WatermarkBatchKind])
}

// volumeUnit returns a passing unit with n distinct signals so scores rise
// with n.
func volumeUnit(id, zip string, n int) *schema.AggregationUnit {
	unit := &schema.AggregationUnit{
		ID:                 id,
		ZIP:                zip,
		Window:             schema.TimeWindow{Start: "2025-06-01", End: "2025-06-07"},
		RepresentativeText: "sustained activity reports",
	}
	for i := range n {
		source, category := "daily-ledger", schema.NewsSource
		if i%2 == 1 {
			source, category = "neighborhood-forum", schema.CommunitySource
		}
		unit.Signals = append(unit.Signals, schema.Signal{
			Text:     fmt.Sprintf("report number %d", i),
			Source:   source,
			Category: category,
			ZIP:      zip,
			Date:     fmt.Sprintf("2025-06-%02d", i%7+1),
		})
	}
	return unit
}

func TestPipelineResultLimit(t *testing.T) {
	cfg := pipelineConfig()
	cfg.ResultLimit = 2

	units := []*schema.AggregationUnit{
		volumeUnit("unit-low", "60601", 5),
		volumeUnit("unit-high", "60603", 12),
		volumeUnit("unit-mid", "60602", 8),
	}
	output, err := newTestPipeline(cfg, nil).Run(quietCtx(), units)
	require.NoError(t, err)

	// Results are ranked by effective score and cut at the limit; exports
	// still cover every cleared unit.
	require.Len(t, output.Results, 2)
	assert.Equal(t, "60603", output.Results[0].ZIP)
	assert.Equal(t, "60602", output.Results[1].ZIP)
	assert.Len(t, output.Exports, 3)
}

func TestPipelineConcurrentWorkers(t *testing.T) {
	cfg := pipelineConfig()
	cfg.Workers = 4

	units := make([]*schema.AggregationUnit, 8)
	for i := range units {
		units[i] = passingUnit(fmt.Sprintf("unit-%d", i), "60601")
	}

	sink := &recordingSink{}
	output, err := newTestPipeline(cfg, sink).Run(quietCtx(), units)
	require.NoError(t, err)

	// Decision order matches input order regardless of worker count.
	require.Len(t, output.Decisions, len(units))
	for i, decision := range output.Decisions {
		assert.Equal(t, fmt.Sprintf("unit-%d", i), decision.UnitID)
		assert.True(t, decision.Passed)
	}
	assert.Len(t, output.Exports, len(units))
	assert.Equal(t, len(units)*len(schema.AllGates), sink.kinds()[schema.GateDecisionKind])
}

func TestPipelineSinkFailureAbortsExport(t *testing.T) {
	output, err := newTestPipeline(pipelineConfig(), failingSink{}).Run(quietCtx(), []*schema.AggregationUnit{passingUnit("unit-a", "60601")})

	// Gate and scrub append failures only warn, but an unrecorded watermark
	// batch aborts the run.
	assert.Nil(t, output)
	assert.ErrorContains(t, err, "failed to append watermark batch record")
}

func TestPipelineNilSink(t *testing.T) {
	output, err := newTestPipeline(pipelineConfig(), nil).Run(quietCtx(), []*schema.AggregationUnit{passingUnit("unit-a", "60601")})
	require.NoError(t, err)
	assert.Len(t, output.Results, 1)
	assert.Len(t, output.Exports, 1)
}

func TestPipelineCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	output, err := newTestPipeline(pipelineConfig(), nil).Run(WithSuppressHeader(ctx), []*schema.AggregationUnit{passingUnit("unit-a", "60601")})
	assert.Nil(t, output)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipelineBaselineUnavailable(t *testing.T) {
	cfg := pipelineConfig()
	cfg.BaselineFile = filepath.Join(t.TempDir(), "missing.json")

	// A missing baseline file degrades to no-novelty scoring, never aborts.
	output, err := newTestPipeline(cfg, nil).Run(quietCtx(), []*schema.AggregationUnit{passingUnit("unit-a", "60601")})
	require.NoError(t, err)
	require.Len(t, output.Results, 1)
}

func TestPipelineBaselineFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baseline.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"60601": 0.05}`), 0o644))

	withoutBaseline, err := newTestPipeline(pipelineConfig(), nil).Run(quietCtx(), []*schema.AggregationUnit{passingUnit("unit-a", "60601")})
	require.NoError(t, err)

	cfg := pipelineConfig()
	cfg.BaselineFile = path
	withBaseline, err := newTestPipeline(cfg, nil).Run(quietCtx(), []*schema.AggregationUnit{passingUnit("unit-a", "60601")})
	require.NoError(t, err)

	// Activity far above the quiet baseline scores higher than the same
	// activity scored without novelty.
	require.Len(t, withBaseline.Results, 1)
	require.Len(t, withoutBaseline.Results, 1)
	assert.Greater(t, withBaseline.Results[0].Score, withoutBaseline.Results[0].Score)
}
