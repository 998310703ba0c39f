package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
)

// writeWithFile handles the common pattern of opening a file, writing to it, and cleaning up.
// It accepts a writer function that takes an io.Writer and returns an error.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	// Only close if it's not stdout
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	}
	return nil
}

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeCSVWithHeader handles the common pattern of creating a CSV writer,
// writing a header, and writing data rows.
func writeCSVWithHeader(w io.Writer, header []string, writeRows func(*csv.Writer) error) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	if err := writeRows(csvWriter); err != nil {
		return err
	}

	return nil
}

// createFormatters creates the common formatter closures used across multiple
// output types. Scores and confidences keep the three decimals they were
// rounded to at construction; slopes carry an explicit sign.
func createFormatters() (fmtScore func(float64) string, fmtSlope func(float64) string) {
	fmtScore = func(v float64) string {
		return fmt.Sprintf("%.3f", v)
	}
	fmtSlope = func(v float64) string {
		return fmt.Sprintf("%+.2f", v)
	}
	return fmtScore, fmtSlope
}

// verdictLabel renders a pass/block verdict, optionally colored.
func verdictLabel(passed, useColors bool) string {
	if passed {
		if useColors {
			return contract.PassColor.Sprint(contract.PassValue)
		}
		return contract.PassValue
	}
	if useColors {
		return contract.BlockColor.Sprint(contract.BlockValue)
	}
	return contract.BlockValue
}

// attentionLabel renders an attention state, optionally colored.
func attentionLabel(state schema.AttentionState, useColors bool) string {
	if useColors {
		return contract.GetColorLabel(state)
	}
	return contract.GetPlainLabel(state)
}
