package cmd

import (
	"github.com/quantumclean/heatshield/core"
	"github.com/quantumclean/heatshield/internal/auditlog"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/spf13/cobra"
)

// gateCmd evaluates aggregation units against the safety gates.
var gateCmd = &cobra.Command{
	Use:   "gate [units.json]",
	Short: "Evaluate aggregation units against the safety gates.",
	Long: `Run every aggregation unit through the safety gates and print the decisions.

Gates run in fixed order and a unit is released only when all of them pass:
- k_anonymity    at least --min-group-size distinct signals (default 5)
- time_delay     newest signal at least --buffer-delay old (default 24 hours)
- corroboration  two distinct source categories, or one official source
- no_pinpointing no address-grade location left in the texts
- forbidden_term none of the configured terms (drops texts, not units)

A single official source clears corroboration but flags the unit, which
discounts its confidence downstream. Every gate evaluation, pass or fail,
is appended to the audit log.

Reads from the positional file or stdin. Nothing is watermarked or exported
on this path; use 'heatshield export' for release artifacts.

Examples:
  # Evaluate a clustered batch
  heatshield gate units.json

  # Stricter cohort floor for a sensitive release
  heatshield gate units.json --min-group-size 10

  # Machine-readable decisions for a review tool
  heatshield gate units.json --output json --output-file decisions.json

  # Block specific terms from ever leaving
  heatshield gate units.json --forbidden-terms "raid,checkpoint"`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteGate(rootCtx, cfg, auditlog.Manager.GetAuditStore()); err != nil {
			contract.LogFatal("Cannot run gate evaluation", err)
		}
	},
}
