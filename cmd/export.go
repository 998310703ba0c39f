package cmd

import (
	"github.com/quantumclean/heatshield/core"
	"github.com/quantumclean/heatshield/internal/auditlog"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/spf13/cobra"
)

// exportCmd produces the watermarked release artifact for a recipient tier.
var exportCmd = &cobra.Command{
	Use:   "export [units.json]",
	Short: "Produce watermarked release artifacts for a recipient tier.",
	Long: `Run the full pipeline and print the watermarked export units.

Every text in the artifact carries an invisible zero-width watermark built
from (tier, batch ID, 10-minute time bucket). The rendered text is visually
unchanged; 'heatshield watermark decode' recovers the fingerprint and
'heatshield watermark trace' ties a leaked copy back to its batch.

One watermark_batch record is appended to the audit log per run, so every
release stays traceable. Requires --tier 1 or higher; tier 0 is the internal
tier and never exports.

Forbidden-term filtering has already removed offending texts by this point,
and units that failed any gate are excluded entirely.

Examples:
  # Export for the public tier
  heatshield export units.json --tier 1

  # Partner tier with a fixed batch ID for the release record
  heatshield export units.json --tier 2 --batch-id 2025-08-weekly

  # Write the artifact for the delivery service
  heatshield export units.json --tier 1 --output json --output-file release.json`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteExport(rootCtx, cfg, auditlog.Manager.GetAuditStore()); err != nil {
			contract.LogFatal("Cannot run export", err)
		}
	},
}
