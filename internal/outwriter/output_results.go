package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/internal/parquet"
	"github.com/quantumclean/heatshield/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteAttentionResults outputs the attention results, dispatching based on the output format configured.
func WriteAttentionResults(results []schema.AttentionResult, cfg *contract.Config, duration time.Duration) error {
	// Create formatters using helper
	fmtScore, fmtSlope := createFormatters()

	// Dispatcher: Handle different output formats
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeResultJSONResults(results, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeResultCSVResults(results, cfg, fmtScore, fmtSlope); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		if err := writeResultParquetResults(results, cfg); err != nil {
			return fmt.Errorf("error writing Parquet output: %w", err)
		}
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeResultTable(results, cfg, fmtScore, fmtSlope, duration, w)
		}, "Wrote table")
	}
	return nil
}

// writeResultJSONResults handles opening the file and calling the JSON writer.
func writeResultJSONResults(results []schema.AttentionResult, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSONResultsForAttention(w, results)
	}, "Wrote JSON")
}

// writeResultCSVResults handles opening the file and calling the CSV writer.
func writeResultCSVResults(results []schema.AttentionResult, cfg *contract.Config, fmtScore, fmtSlope func(float64) string) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCSVResultsForAttention(w, results, fmtScore, fmtSlope)
	}, "Wrote CSV")
}

// writeResultParquetResults converts the results to flat rows and writes a
// Parquet file. The writer manages its own file handle, so unlike the other
// formats this one cannot stream to stdout.
func writeResultParquetResults(results []schema.AttentionResult, cfg *contract.Config) error {
	if cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}
	rows := parquet.ConvertAttentionResults(results)
	if err := parquet.WriteAttentionResultsParquet(rows, cfg.OutputFile); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "💾 Wrote Parquet to %s\n", cfg.OutputFile)
	return nil
}

// writeResultTable generates and writes the human-readable table.
func writeResultTable(results []schema.AttentionResult, cfg *contract.Config, fmtScore, fmtSlope func(float64) string, duration time.Duration, writer io.Writer) error {
	table := tablewriter.NewWriter(writer)

	// 1. Define Headers
	headers := []string{"Rank", "ZIP", "State", "Score", "Conf", "Trend", "Signals", "Top Reason"}
	table.Header(headers)

	// 2. Configure Separators/Borders to match a minimal look
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// 3. Populate Rows
	reasonWidth := GetMaxTableReasonWidth(cfg)
	var data [][]string
	for i, r := range results {
		reason := contract.TruncateText(topReason(r.Explanation), reasonWidth)
		row := []string{
			strconv.Itoa(i + 1),                    // Rank
			r.ZIP,                                  // ZIP
			attentionLabel(r.State, cfg.UseColors), // State
			fmtScore(r.Score),                      // Score
			fmtScore(r.Confidence),                 // Conf
			formatTrendCell(r.Trend, fmtSlope),     // Trend
			strconv.Itoa(r.Provenance.SignalsN),    // Signals
			reason,                                 // Top Reason
		}
		data = append(data, row)
	}

	// 4. Render the table
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	// Compute summary stats
	counts := make(map[schema.AttentionState]int)
	for _, r := range results {
		counts[r.State]++
	}
	if _, err := fmt.Fprintf(writer, "Showing top %d units (%d high, %d elevated, %d moderate, %d quiet)\n",
		len(results), counts[schema.HighState], counts[schema.ElevatedState], counts[schema.ModerateState], counts[schema.QuietState]); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(writer, "Evaluation completed in %v with %d workers. Audit backend: %s\n", duration, cfg.Workers, cfg.AuditBackend); err != nil {
		return err
	}
	return nil
}

// formatTrendCell renders a trend as direction plus daily slope.
func formatTrendCell(trend schema.TrendInfo, fmtSlope func(float64) string) string {
	return fmt.Sprintf("%s (%s/d)", trend.Direction, fmtSlope(trend.Slope))
}

// topReason picks the leading explanation line, if any.
func topReason(expl schema.Explanation) string {
	if len(expl.Why) == 0 {
		return ""
	}
	return expl.Why[0]
}

// writeCSVResultsForAttention writes the attention results in CSV format.
func writeCSVResultsForAttention(w io.Writer, results []schema.AttentionResult, fmtScore, fmtSlope func(float64) string) error {
	// CSV header
	header := []string{
		"rank",
		"zip",
		"window_start",
		"window_end",
		"state",
		"score",
		"confidence",
		"effective_score",
		"trend_slope",
		"trend_direction",
		"signals",
		"distinct_sources",
		"model_version",
		"schema_version",
		"inputs_hash",
		"generated_at",
		"why",
	}
	return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
		for i, r := range results {
			rec := []string{
				strconv.Itoa(i + 1),                                      // Rank
				r.ZIP,                                                    // ZIP
				r.Window.Start,                                           // Window start
				r.Window.End,                                             // Window end
				string(r.State),                                          // State
				fmtScore(r.Score),                                        // Score
				fmtScore(r.Confidence),                                   // Confidence
				fmtScore(r.EffectiveScore()),                             // Effective score
				fmtSlope(r.Trend.Slope),                                  // Trend slope
				string(r.Trend.Direction),                                // Trend direction
				strconv.Itoa(r.Provenance.SignalsN),                      // Signals
				strconv.Itoa(r.Provenance.Sources.Distinct()),            // Distinct sources
				r.Provenance.ModelVersion,                                // Model version
				r.Provenance.SchemaVersion,                               // Schema version
				r.Provenance.InputsHash,                                  // Inputs hash
				r.Provenance.GeneratedAt.Format(contract.DateTimeFormat), // Generated at
				strings.Join(r.Explanation.Why, "|"),                     // Why lines
			}
			if err := csvWriter.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeJSONResultsForAttention writes the attention results in JSON format.
func writeJSONResultsForAttention(w io.Writer, results []schema.AttentionResult) error {
	// 1. Prepare the data structure for JSON with rank and label added
	type JSONAttentionResult struct {
		Rank  int    `json:"rank"`
		Label string `json:"label"`
		schema.AttentionResult
	}

	output := make([]JSONAttentionResult, len(results))
	for i, r := range results {
		output[i] = JSONAttentionResult{
			Rank:            i + 1,
			Label:           contract.GetPlainLabel(r.State),
			AttentionResult: r,
		}
	}

	// 2. Use the generic JSON writer
	return writeJSON(w, output)
}
