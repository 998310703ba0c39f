package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteSafetyDecisions outputs the gate decisions, dispatching based on the output format configured.
func WriteSafetyDecisions(decisions []schema.SafetyDecision, cfg *contract.Config, duration time.Duration) error {
	switch cfg.Output {
	case schema.JSONOut:
		if err := writeDecisionJSONResults(decisions, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeDecisionCSVResults(decisions, cfg); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	case schema.ParquetOut:
		// Decisions reach Parquet through the audit log, not this writer.
		return fmt.Errorf("parquet output is only supported for results and audit export")
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeDecisionTable(decisions, cfg, duration, w)
		}, "Wrote table")
	}
	return nil
}

// writeDecisionJSONResults handles opening the file and calling the JSON writer.
func writeDecisionJSONResults(decisions []schema.SafetyDecision, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSONResultsForDecisions(w, decisions)
	}, "Wrote JSON")
}

// writeDecisionCSVResults handles opening the file and calling the CSV writer.
func writeDecisionCSVResults(decisions []schema.SafetyDecision, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeCSVResultsForDecisions(w, decisions)
	}, "Wrote CSV")
}

// writeDecisionTable generates and writes the human-readable table.
func writeDecisionTable(decisions []schema.SafetyDecision, cfg *contract.Config, duration time.Duration, writer io.Writer) error {
	table := tablewriter.NewWriter(writer)

	// 1. Define Headers
	headers := []string{"Rank", "Unit", "Verdict", "Failed Gates", "Detail"}
	table.Header(headers)

	// 2. Configure Separators/Borders to match a minimal look
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	// 3. Populate Rows
	detailWidth := GetMaxTableReasonWidth(cfg)
	var data [][]string
	for i, d := range decisions {
		detail := contract.TruncateText(firstFailureDetail(d), detailWidth)
		row := []string{
			strconv.Itoa(i + 1),                   // Rank
			d.UnitID,                              // Unit
			verdictLabel(d.Passed, cfg.UseColors), // Verdict
			formatFailedGates(d),                  // Failed Gates
			detail,                                // Detail
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
	released := 0
	for _, d := range decisions {
		if d.Passed {
			released++
		}
	}
	if _, err := fmt.Fprintf(writer, "Evaluated %d units: %d released, %d withheld\n", len(decisions), released, len(decisions)-released); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(writer, "Gating completed in %v with %d workers. Audit backend: %s\n", duration, cfg.Workers, cfg.AuditBackend); err != nil {
		return err
	}
	return nil
}

// formatFailedGates joins the names of the gates that failed, or a dash when
// every gate passed.
func formatFailedGates(d schema.SafetyDecision) string {
	var names []string
	for _, r := range d.Reasons {
		if !r.Passed {
			names = append(names, string(r.Gate))
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ", ")
}

// firstFailureDetail picks the detail of the first failing gate, or the
// corroboration exception note when the unit passed on the official-source
// exception.
func firstFailureDetail(d schema.SafetyDecision) string {
	for _, r := range d.Reasons {
		if !r.Passed {
			return r.Detail
		}
	}
	if d.OfficialException {
		if r, ok := d.Reason(schema.CorroborationGate); ok {
			return r.Detail
		}
	}
	return ""
}

// writeCSVResultsForDecisions writes the gate decisions in CSV format, one
// row per gate verdict so downstream tools can pivot on the gate column.
func writeCSVResultsForDecisions(w io.Writer, decisions []schema.SafetyDecision) error {
	// CSV header
	header := []string{
		"unit_id",
		"verdict",
		"gate",
		"passed",
		"detail",
		"official_exception",
	}
	return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
		for _, d := range decisions {
			verdict := contract.BlockValue
			if d.Passed {
				verdict = contract.PassValue
			}
			for _, r := range d.Reasons {
				rec := []string{
					d.UnitID,                                // Unit
					verdict,                                 // Verdict
					string(r.Gate),                          // Gate
					strconv.FormatBool(r.Passed),            // Gate verdict
					r.Detail,                                // Detail
					strconv.FormatBool(d.OfficialException), // Exception flag
				}
				if err := csvWriter.Write(rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// writeJSONResultsForDecisions writes the gate decisions in JSON format.
func writeJSONResultsForDecisions(w io.Writer, decisions []schema.SafetyDecision) error {
	// 1. Prepare the data structure for JSON with the verdict label added
	type JSONSafetyDecision struct {
		Verdict string `json:"verdict"`
		schema.SafetyDecision
	}

	output := make([]JSONSafetyDecision, len(decisions))
	for i, d := range decisions {
		verdict := contract.BlockValue
		if d.Passed {
			verdict = contract.PassValue
		}
		output[i] = JSONSafetyDecision{
			Verdict:        verdict,
			SafetyDecision: d,
		}
	}

	// 2. Use the generic JSON writer
	return writeJSON(w, output)
}
