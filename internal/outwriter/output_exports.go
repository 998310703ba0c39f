package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/quantumclean/heatshield/core/watermark"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteExportUnits outputs watermarked export units, dispatching based on the
// output format configured. JSON carries the full artifact for downstream
// recipients; the table form only summarizes it.
func WriteExportUnits(exports []watermark.ExportUnit, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeExportJSONResults(exports, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeExportCSVResults(exports, cfg); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is only supported for results and audit export")
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeExportTable(exports, cfg, duration, w)
		}, "Wrote table")
	}
	return nil
}

// writeExportJSONResults handles opening the file and calling the JSON writer.
func writeExportJSONResults(exports []watermark.ExportUnit, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSON(w, exports)
	}, "Wrote JSON")
}

// writeExportCSVResults handles opening the file and calling the CSV writer.
func writeExportCSVResults(exports []watermark.ExportUnit, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCSVResultsForExports(w, exports)
	}, "Wrote CSV")
}

// writeExportTable generates and writes the human-readable summary table.
func writeExportTable(exports []watermark.ExportUnit, cfg *contract.Config, duration time.Duration, writer io.Writer) error {
	table := tablewriter.NewWriter(writer)

	// 1. Define Headers
	headers := []string{"Rank", "Unit", "ZIP", "Window", "Texts"}
	table.Header(headers)

	// 2. Configure Separators/Borders to match a minimal look
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// 3. Populate Rows
	var data [][]string
	totalTexts := 0
	for i, e := range exports {
		totalTexts += len(e.Texts)
		row := []string{
			strconv.Itoa(i + 1),                                 // Rank
			e.UnitID,                                            // Unit
			e.ZIP,                                               // ZIP
			fmt.Sprintf("%s..%s", e.Window.Start, e.Window.End), // Window
			strconv.Itoa(len(e.Texts)),                          // Texts
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
	if _, err := fmt.Fprintf(writer, "Exported %d units (%d texts) at tier %d, batch %s\n", len(exports), totalTexts, cfg.Tier, cfg.BatchID); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(writer, "Export completed in %v with %d workers. Audit backend: %s\n", duration, cfg.Workers, cfg.AuditBackend); err != nil {
		return err
	}
	return nil
}

// writeCSVResultsForExports writes the export units in CSV format, one row
// per text. The CSV quoting keeps the invisible watermark runes intact.
func writeCSVResultsForExports(w io.Writer, exports []watermark.ExportUnit) error {
	// CSV header
	header := []string{
		"unit_id",
		"zip",
		"window_start",
		"window_end",
		"text_index",
		"text",
	}
	return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
		for _, e := range exports {
			for i, text := range e.Texts {
				rec := []string{
					e.UnitID,        // Unit
					e.ZIP,           // ZIP
					e.Window.Start,  // Window start
					e.Window.End,    // Window end
					strconv.Itoa(i), // Text index
					text,            // Watermarked text
				}
				if err := csvWriter.Write(rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
