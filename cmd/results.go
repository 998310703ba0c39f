package cmd

import (
	"github.com/quantumclean/heatshield/core"
	"github.com/quantumclean/heatshield/internal/auditlog"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/spf13/cobra"
)

// resultsCmd builds ranked attention results for units that clear the gates.
var resultsCmd = &cobra.Command{
	Use:   "results [units.json]",
	Short: "Build ranked attention results for units that clear the gates.",
	Long: `Gate a unit batch, score whatever clears, and print the ranked results.

Each result carries:
- an attention state (QUIET, MODERATE, ELEVATED_ATTENTION, HIGH_ATTENTION)
  classified from score x confidence against the ruleset thresholds
- a score in [0,1] from time-decayed volume, source diversity, and novelty
  against an optional historical baseline
- a trend slope over per-day signal counts with a direction label
- provenance: model version, schema version, permutation-invariant inputs
  hash, signal counts per source category
- a plain-language explanation of why it ranked and what it does not claim

Units that fail the gates never appear here. No watermarking happens on
this path; use 'heatshield export' for release artifacts.

Examples:
  # Rank a clustered batch
  heatshield results units.json

  # Top 10 only, quiet zips hidden
  heatshield results units.json --limit 10 --display-floor MODERATE

  # Score against a historical baseline
  heatshield results units.json --baseline baseline.json

  # Columnar export for the analytics warehouse
  heatshield results units.json --output parquet --output-file results.parquet`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteResults(rootCtx, cfg, auditlog.Manager.GetAuditStore()); err != nil {
			contract.LogFatal("Cannot build results", err)
		}
	},
}
