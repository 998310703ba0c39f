package cmd

import (
	"github.com/quantumclean/heatshield/core"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/spf13/cobra"
)

// metricsCmd displays the formal definitions of the scoring model.
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display the active scoring formula, thresholds, and gate parameters",
	Long: `Show the formal definitions behind every attention result.

Provides complete transparency into how units are ranked, including:
- Score component weights and what each component measures
- Attention state thresholds over score x confidence
- The safety gates in evaluation order with their active parameters
- Confidence discounts and when they apply
- Ruleset, model, and schema versions

No input is processed - this is purely informational.

Use this to:
- Explain a published state to a partner or journalist
- Validate custom weight configurations
- Document the active policy for an audit

Examples:
  # Show the active model card
  heatshield metrics

  # With custom weights from a config file
  heatshield metrics --config .heatshield.yaml

  # Machine-readable for documentation tooling
  heatshield metrics --output json`,
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteMetrics(rootCtx, cfg); err != nil {
			contract.LogFatal("Cannot display metrics", err)
		}
	},
}
