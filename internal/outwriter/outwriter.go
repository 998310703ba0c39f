// Package outwriter has output and writer logic.
package outwriter

import (
	"os"
	"time"

	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
	"golang.org/x/term"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteResults prints attention results using the configured output format.
func (ow *OutWriter) WriteResults(results []schema.AttentionResult, cfg *contract.Config, duration time.Duration) error {
	return WriteAttentionResults(results, cfg, duration)
}

// WriteDecisions prints safety gate decisions using the configured output format.
func (ow *OutWriter) WriteDecisions(decisions []schema.SafetyDecision, cfg *contract.Config, duration time.Duration) error {
	return WriteSafetyDecisions(decisions, cfg, duration)
}

// WriteMetrics prints the active scoring model definitions using the configured output format.
func (ow *OutWriter) WriteMetrics(cfg *contract.Config) error {
	return WriteScoringDefinitions(cfg)
}

// GetMaxTableReasonWidth calculates the maximum width for the explanation
// column in table output based on terminal width and table configuration.
func GetMaxTableReasonWidth(cfg *contract.Config) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		// Get terminal width
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			// Fallback to conservative default if terminal size can't be detected
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Reserve space for the fixed columns with table formatting
	baseWidth := 58 // Rank + ZIP + State + Score + Conf + Trend + Signals

	// Reserve generous space for table borders, separators, and padding
	baseWidth += 22

	// Calculate available space for the top reason
	available := termWidth - baseWidth
	if available < 15 {
		// Minimum reasonable reason width
		return 15
	}
	if available > 60 {
		// Maximum reason width to prevent overly long lines
		return 60
	}
	return available
}
