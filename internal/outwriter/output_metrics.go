package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
)

// WriteScoringDefinitions displays the active scoring model: weights, state
// thresholds, gates and confidence discounts as configured for this run.
// This is a static display that does not require any signal input.
func WriteScoringDefinitions(cfg *contract.Config) error {
	// Build the complete render model with all processed data
	renderModel := buildScoringRenderModel(cfg)

	switch cfg.Output {
	case schema.JSONOut:
		return printScoringJSON(renderModel, cfg)
	case schema.CSVOut:
		return printScoringCSV(renderModel, cfg)
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return printScoringText(w, renderModel)
		}, "Wrote text")
	}
}

// printScoringText displays the scoring model in human-readable text format.
func printScoringText(w io.Writer, renderModel *schema.ScoringRenderModel) error {
	if _, err := fmt.Fprintf(w, "🛡️ %s\n", renderModel.Title); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "==========================\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Ruleset %s, model %s, schema %s\n", renderModel.RulesetVersion, renderModel.ModelVersion, renderModel.SchemaVersion); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\n"); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "📊 Score\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "   Formula: %s\n", renderModel.Formula); err != nil {
		return err
	}
	for _, weight := range renderModel.Weights {
		if _, err := fmt.Fprintf(w, "   %.2f %s: %s\n", weight.Value, weight.Name, weight.Purpose); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\n"); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "🚦 States (effective = score x confidence)\n"); err != nil {
		return err
	}
	for _, state := range renderModel.States {
		if _, err := fmt.Fprintf(w, "   %s: effective >= %.2f\n", state.Name, state.Threshold); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\n"); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "🔒 Gates (all must pass, in order)\n"); err != nil {
		return err
	}
	for _, gate := range renderModel.Gates {
		if _, err := fmt.Fprintf(w, "   %s: %s [%s]\n", gate.Name, gate.Purpose, gate.Parameter); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "\n"); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "🔻 Confidence Discounts\n"); err != nil {
		return err
	}
	for _, discount := range renderModel.Discounts {
		if _, err := fmt.Fprintf(w, "   x%.2f %s: %s\n", discount.Factor, discount.Name, discount.Applies); err != nil {
			return err
		}
	}

	return nil
}

// printScoringJSON displays the scoring model in JSON format.
func printScoringJSON(renderModel *schema.ScoringRenderModel, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSONScoring(w, renderModel)
	}, "Wrote JSON")
}

// printScoringCSV displays the scoring model in CSV format.
func printScoringCSV(renderModel *schema.ScoringRenderModel, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		writer := csv.NewWriter(w)
		defer writer.Flush()
		return writeCSVScoring(writer, renderModel)
	}, "Wrote CSV")
}

// buildScoringRenderModel constructs the complete render model with all
// active configuration values.
func buildScoringRenderModel(cfg *contract.Config) *schema.ScoringRenderModel {
	weights := cfg.Weights
	if weights == nil {
		weights = schema.GetDefaultScoreWeights()
	}

	purposes := map[schema.WeightKey]string{
		schema.WeightVolume:    "time-decayed signal volume, saturating",
		schema.WeightDiversity: "distinct source categories out of 5",
		schema.WeightNovelty:   "current volume against the historical baseline",
	}
	weightEntries := make([]schema.ScoringWeight, 0, len(weights))
	for _, key := range []schema.WeightKey{schema.WeightVolume, schema.WeightDiversity, schema.WeightNovelty} {
		weightEntries = append(weightEntries, schema.ScoringWeight{
			Name:    key,
			Value:   weights[key],
			Purpose: purposes[key],
		})
	}

	states := []schema.ScoringState{
		{Name: schema.HighState, Threshold: schema.HighThreshold},
		{Name: schema.ElevatedState, Threshold: schema.ElevatedThreshold},
		{Name: schema.ModerateState, Threshold: schema.ModerateThreshold},
		{Name: schema.QuietState, Threshold: 0},
	}

	gates := []schema.ScoringGate{
		{
			Name:      schema.KAnonymityGate,
			Purpose:   "cohort is large enough to hide any one person",
			Parameter: fmt.Sprintf("size >= %d", cfg.MinGroupSize),
		},
		{
			Name:      schema.TimeDelayGate,
			Purpose:   "latest signal has aged past the buffer",
			Parameter: fmt.Sprintf("now - latest >= %s", cfg.BufferDelay),
		},
		{
			Name:      schema.CorroborationGate,
			Purpose:   "more than one vantage point saw the activity",
			Parameter: ">= 2 categories, or one official source",
		},
		{
			Name:      schema.NoPinpointingGate,
			Purpose:   "no location finer than ZIP survives scrubbing",
			Parameter: "no address tokens in export texts",
		},
		{
			Name:      schema.ForbiddenTermGate,
			Purpose:   "operational language stays out of exports",
			Parameter: fmt.Sprintf("%d configured terms", len(cfg.ForbiddenTerms)),
		},
	}

	discounts := []schema.ScoringDiscount{
		{
			Name:    "official_exception",
			Factor:  cfg.OfficialDiscount,
			Applies: "corroboration passed on the single-official-source exception",
		},
		{
			Name:    "short_window",
			Factor:  cfg.ShortWindowDiscount,
			Applies: fmt.Sprintf("window shorter than %d days", cfg.MinTrendWindowDays),
		},
	}

	return &schema.ScoringRenderModel{
		Title:          "Heatshield Scoring Model",
		RulesetVersion: schema.RulesetVersion,
		ModelVersion:   cfg.ModelVersion,
		SchemaVersion:  schema.SchemaVersion,
		Formula:        formatWeightFormula(weights),
		Weights:        weightEntries,
		States:         states,
		Gates:          gates,
		Discounts:      discounts,
	}
}

// formatWeightFormula formats the active weights for display in a formula.
func formatWeightFormula(weights map[schema.WeightKey]float64) string {
	keys := make([]string, 0, len(weights))
	for key := range weights {
		keys = append(keys, string(key))
	}
	sort.Strings(keys)

	var parts []string
	for _, key := range keys {
		if weight := weights[schema.WeightKey(key)]; weight > 0 {
			parts = append(parts, fmt.Sprintf("%.2f*%s", weight, key))
		}
	}
	return "Score = " + strings.Join(parts, " + ")
}

// writeJSONScoring writes the scoring model definitions in JSON format.
func writeJSONScoring(w io.Writer, renderModel *schema.ScoringRenderModel) error {
	return writeJSON(w, renderModel)
}

// writeCSVScoring writes the scoring model definitions in CSV format, one
// row per entry with a kind column to pivot on.
func writeCSVScoring(w *csv.Writer, renderModel *schema.ScoringRenderModel) error {
	// Write header
	header := []string{"Kind", "Name", "Value", "Description"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, weight := range renderModel.Weights {
		record := []string{"weight", string(weight.Name), fmt.Sprintf("%.2f", weight.Value), weight.Purpose}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	for _, state := range renderModel.States {
		record := []string{"state", string(state.Name), fmt.Sprintf("%.2f", state.Threshold), "effective score cutoff"}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	for _, gate := range renderModel.Gates {
		record := []string{"gate", string(gate.Name), gate.Parameter, gate.Purpose}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	for _, discount := range renderModel.Discounts {
		record := []string{"discount", discount.Name, fmt.Sprintf("%.2f", discount.Factor), discount.Applies}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	return nil
}
