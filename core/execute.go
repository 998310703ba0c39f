package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/quantumclean/heatshield/core/scrub"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/internal/outwriter"
	"github.com/quantumclean/heatshield/schema"
)

// ExecuteScrub runs the standalone scrubbing pass over a flat signal batch
// and prints the redacted signals. It serves as the main entry point for the
// 'scrub' command. Findings are appended to the audit sink as one batch-level
// scrub event; matched substrings are never recorded.
func ExecuteScrub(ctx context.Context, cfg *contract.Config, sink contract.AuditSink) error {
	start := time.Now()

	signals, err := readSignals(cfg)
	if err != nil {
		return err
	}
	signals = PrepareSignals(signals, cfg)
	if err := ctx.Err(); err != nil {
		return err
	}

	scrubber := newScrubber(cfg)
	scrubbed, entities := scrubSignals(cfg, scrubber, signals)

	if len(entities) > 0 && sink != nil {
		record := schema.NewScrubEventRecord("", entities, scrubber.Detail(), time.Now())
		if err := sink.Append(record); err != nil {
			contract.LogWarn("Appending scrub event", err)
		}
	}

	duration := time.Since(start)
	return outwriter.WriteScrubbedSignals(scrubbed, entities, cfg, duration)
}

// ExecuteGate evaluates a unit batch against the safety gates and prints the
// per-unit decisions. It serves as the main entry point for the 'gate'
// command. Gating alone never watermarks, whatever tier is configured.
func ExecuteGate(ctx context.Context, cfg *contract.Config, sink contract.AuditSink) error {
	start := time.Now()

	units, err := readUnits(cfg)
	if err != nil {
		return err
	}

	runCfg := cfg.Clone()
	runCfg.Tier = 0
	out, err := NewPipeline(runCfg, sink).Run(ctx, units)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	return outwriter.WriteSafetyDecisions(out.Decisions, cfg, duration)
}

// ExecuteResults gates a unit batch, builds attention results for the units
// that cleared, and prints the ranked set. It serves as the main entry point
// for the 'results' command. No watermarking happens on this path.
func ExecuteResults(ctx context.Context, cfg *contract.Config, sink contract.AuditSink) error {
	start := time.Now()

	units, err := readUnits(cfg)
	if err != nil {
		return err
	}

	runCfg := cfg.Clone()
	runCfg.Tier = 0
	out, err := NewPipeline(runCfg, sink).Run(ctx, units)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	return outwriter.WriteAttentionResults(out.Results, cfg, duration)
}

// ExecuteExport runs the full pipeline and prints the watermarked export
// units for the configured tier. It serves as the main entry point for the
// 'export' command.
func ExecuteExport(ctx context.Context, cfg *contract.Config, sink contract.AuditSink) error {
	start := time.Now()

	if cfg.Tier < 1 {
		return fmt.Errorf("export requires a consumer tier of at least 1 (received %d)", cfg.Tier)
	}

	units, err := readUnits(cfg)
	if err != nil {
		return err
	}

	out, err := NewPipeline(cfg, sink).Run(ctx, units)
	if err != nil {
		return err
	}

	duration := time.Since(start)
	return outwriter.WriteExportUnits(out.Exports, cfg, duration)
}

// ExecuteMetrics displays the active scoring model definitions.
// It serves as the main entry point for the 'metrics' command.
func ExecuteMetrics(_ context.Context, cfg *contract.Config) error {
	return outwriter.WriteScoringDefinitions(cfg)
}

// openInput opens the configured input path. "-" and the empty string mean
// stdin, which the returned closer leaves open.
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input %s: %w", path, err)
	}
	return f, nil
}

// readUnits decodes the aggregation-unit batch from the configured input.
func readUnits(cfg *contract.Config) ([]*schema.AggregationUnit, error) {
	in, err := openInput(cfg.InputPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close() }()
	return DecodeUnits(in)
}

// readSignals decodes the flat signal batch from the configured input.
func readSignals(cfg *contract.Config) ([]schema.Signal, error) {
	in, err := openInput(cfg.InputPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = in.Close() }()
	return DecodeSignals(in)
}

// scrubSignals redacts every signal text across the worker pool and returns
// the scrubbed copies plus merged entity counts. Input signals are never
// mutated.
func scrubSignals(cfg *contract.Config, scrubber *scrub.Scrubber, signals []schema.Signal) ([]schema.Signal, map[string]int) {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	idxCh := make(chan int, len(signals))
	scrubbed := make([]schema.Signal, len(signals))
	found := make([]map[string]int, len(signals))
	var wg sync.WaitGroup

	// Start worker pool
	for range workers {
		wg.Go(func() {
			for idx := range idxCh {
				// Each goroutine writes to a *unique* index, which is safe.
				sig := signals[idx]
				sig.Text, found[idx] = scrubber.Scrub(sig.Text)
				scrubbed[idx] = sig
			}
		})
	}

	for idx := range signals {
		idxCh <- idx
	}
	close(idxCh)
	wg.Wait()

	entities := make(map[string]int)
	for _, f := range found {
		mergeEntities(entities, f)
	}
	return scrubbed, entities
}
