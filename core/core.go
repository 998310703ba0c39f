// Package core has the release pipeline: intake, scrubbing, safety gating,
// result building and watermarked export.
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantumclean/heatshield/core/attention"
	"github.com/quantumclean/heatshield/core/gate"
	"github.com/quantumclean/heatshield/core/scrub"
	"github.com/quantumclean/heatshield/core/watermark"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/internal/outwriter"
	"github.com/quantumclean/heatshield/schema"
)

// RunOutput bundles everything one pipeline run produces.
type RunOutput struct {
	Results   []schema.AttentionResult
	Decisions []schema.SafetyDecision
	Exports   []watermark.ExportUnit

	// BatchRecord is the watermark batch audit record, nil when the run's
	// tier skips watermarking.
	BatchRecord *schema.AuditRecord
}

// Pipeline wires the stages together over one config and one audit sink.
// The sink is the only shared mutable destination across worker goroutines
// and serializes its own appends.
type Pipeline struct {
	cfg  *contract.Config
	sink contract.AuditSink
	now  func() time.Time
}

// NewPipeline creates a pipeline. A nil sink disables audit appends.
func NewPipeline(cfg *contract.Config, sink contract.AuditSink) *Pipeline {
	return &Pipeline{cfg: cfg, sink: sink, now: time.Now}
}

// WithClock overrides the pipeline's time source.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run executes the full pipeline over a decoded batch of aggregation units.
// One bad record never aborts the batch; context cancellation between stages
// does. Decisions cover every unit that survived intake, in order; results
// and exports cover only units that cleared the gates.
func (p *Pipeline) Run(ctx context.Context, units []*schema.AggregationUnit) (*RunOutput, error) {
	if !shouldSuppressHeader(ctx) {
		outwriter.LogRunHeader(p.cfg, len(units))
	}

	// --- 1. Intake Validation ---
	prepared := PrepareUnits(units, p.cfg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// --- 2. Scrub Phase ---
	scrubbed := p.scrubUnits(prepared)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// --- 3. Safety Gates ---
	engine := gate.NewEngine(p.cfg, p.sink).WithClock(p.now)
	cleared, decisions := engine.Release(scrubbed)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// --- 4. Result Building ---
	builder := attention.NewBuilder(p.cfg)
	if p.cfg.BaselineFile != "" {
		baseline, err := attention.LoadBaselineFile(p.cfg.BaselineFile)
		if err != nil {
			contract.LogWarn("Novelty baseline unavailable", err)
		} else {
			builder = builder.WithBaseline(baseline)
		}
	}

	now := p.now()
	results := make([]schema.AttentionResult, 0, len(cleared))
	for _, c := range cleared {
		result, err := builder.Build(c.Unit(), c.Decision(), now)
		if err != nil {
			// Fatal to this result, not to the batch.
			contract.LogWarn(fmt.Sprintf("Skipping result for unit %s", c.Unit().ID), err)
			continue
		}
		results = append(results, result)
	}
	results = RankResults(results, p.cfg.ResultLimit)

	output := &RunOutput{Results: results, Decisions: decisions}

	// --- 5. Watermarked Export ---
	// Tier 0 is the internal tier and leaves exports unwatermarked and
	// unproduced; consumer tiers always watermark.
	if p.cfg.Tier > 0 && len(cleared) > 0 {
		exports, record, err := watermark.Apply(cleared, p.cfg.Tier, p.cfg.BatchID, now, p.sink)
		if err != nil {
			return nil, err
		}
		output.Exports = exports
		output.BatchRecord = &record
	}

	return output, nil
}

// newScrubber builds the recognizer chain for a run. A missing advanced
// model degrades to the regex table and keeps going.
func newScrubber(cfg *contract.Config) *scrub.Scrubber {
	if cfg.AdvancedRecognizer {
		s, err := scrub.NewAdvanced(cfg.RecognizerModelPath)
		if err != nil {
			contract.LogWarn("Advanced recognizer unavailable", err)
		}
		return s
	}
	return scrub.New()
}

// scrubUnits redacts every text of every unit across the worker pool and
// appends one scrub_event record per unit with findings. Input units are
// never mutated; scrubbed copies flow on.
func (p *Pipeline) scrubUnits(units []*schema.AggregationUnit) []*schema.AggregationUnit {
	workers := p.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	scrubber := newScrubber(p.cfg)
	idxCh := make(chan int, len(units))
	scrubbed := make([]*schema.AggregationUnit, len(units))
	var wg sync.WaitGroup

	// Start worker pool
	for range workers {
		wg.Go(func() {
			for idx := range idxCh {
				// Each goroutine writes to a *unique* index, which is safe.
				scrubbed[idx] = p.scrubUnit(scrubber, units[idx])
			}
		})
	}

	for idx := range units {
		idxCh <- idx
	}
	close(idxCh)
	wg.Wait()

	return scrubbed
}

// scrubUnit redacts one unit's representative text and every signal text,
// merging entity counts across all of them.
func (p *Pipeline) scrubUnit(scrubber *scrub.Scrubber, unit *schema.AggregationUnit) *schema.AggregationUnit {
	entities := make(map[string]int)

	clean := &schema.AggregationUnit{
		ID:      unit.ID,
		ZIP:     unit.ZIP,
		Window:  unit.Window,
		Signals: make([]schema.Signal, len(unit.Signals)),
	}

	text, found := scrubber.Scrub(unit.RepresentativeText)
	clean.RepresentativeText = text
	mergeEntities(entities, found)

	for i, sig := range unit.Signals {
		sig.Text, found = scrubber.Scrub(sig.Text)
		clean.Signals[i] = sig
		mergeEntities(entities, found)
	}

	if len(entities) > 0 && p.sink != nil {
		record := schema.NewScrubEventRecord(unit.ID, entities, scrubber.Detail(), p.now())
		if err := p.sink.Append(record); err != nil {
			contract.LogWarn("Appending scrub event", err)
		}
	}
	return clean
}

func mergeEntities(into, from map[string]int) {
	for key, n := range from {
		into[key] += n
	}
}
