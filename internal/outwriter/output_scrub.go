package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteScrubbedSignals outputs scrubbed signals, dispatching based on the
// output format configured. JSON emits the plain signal array so the output
// pipes straight back into the other commands; the entity tally goes to
// stderr so it never mixes with the data stream.
func WriteScrubbedSignals(signals []schema.Signal, entities map[string]int, cfg *contract.Config, duration time.Duration) error {
	fmt.Fprintf(os.Stderr, "Scrubbed %d signals: %s\n", len(signals), formatEntitySummary(entities))

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeScrubJSONResults(signals, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeScrubCSVResults(signals, cfg); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is only supported for results and audit export")
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeScrubTable(signals, cfg, duration, w)
		}, "Wrote table")
	}
	return nil
}

// formatEntitySummary renders the per-type tally in a stable order.
func formatEntitySummary(entities map[string]int) string {
	total := 0
	for _, n := range entities {
		total += n
	}
	if total == 0 {
		return "no entities found"
	}
	summary := fmt.Sprintf("%d entities redacted (", total)
	for i, key := range slices.Sorted(maps.Keys(entities)) {
		if i > 0 {
			summary += ", "
		}
		summary += fmt.Sprintf("%s=%d", key, entities[key])
	}
	return summary + ")"
}

// writeScrubJSONResults handles opening the file and calling the JSON writer.
func writeScrubJSONResults(signals []schema.Signal, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSON(w, signals)
	}, "Wrote JSON")
}

// writeScrubCSVResults handles opening the file and calling the CSV writer.
func writeScrubCSVResults(signals []schema.Signal, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCSVResultsForScrub(w, signals)
	}, "Wrote CSV")
}

// writeScrubTable generates and writes the human-readable table.
func writeScrubTable(signals []schema.Signal, cfg *contract.Config, duration time.Duration, writer io.Writer) error {
	table := tablewriter.NewWriter(writer)

	// 1. Define Headers
	headers := []string{"Rank", "ZIP", "Date", "Category", "Text"}
	table.Header(headers)

	// 2. Configure Separators/Borders to match a minimal look
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// 3. Populate Rows
	textWidth := GetMaxTableReasonWidth(cfg)
	var data [][]string
	for i, s := range signals {
		text := contract.TruncateText(s.Text, textWidth)
		row := []string{
			strconv.Itoa(i + 1), // Rank
			s.ZIP,               // ZIP
			s.Date,              // Date
			string(s.Category),  // Category
			text,                // Scrubbed text
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
	if _, err := fmt.Fprintf(writer, "Scrubbing completed in %v with %d workers\n", duration, cfg.Workers); err != nil {
		return err
	}
	return nil
}

// writeCSVResultsForScrub writes the scrubbed signals in CSV format.
func writeCSVResultsForScrub(w io.Writer, signals []schema.Signal) error {
	// CSV header
	header := []string{
		"zip",
		"date",
		"source",
		"category",
		"media_count",
		"text",
	}
	return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
		for _, s := range signals {
			rec := []string{
				s.ZIP,                      // ZIP
				s.Date,                     // Date
				s.Source,                   // Source
				string(s.Category),         // Category
				strconv.Itoa(s.MediaCount), // Media count
				s.Text,                     // Scrubbed text
			}
			if err := csvWriter.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
