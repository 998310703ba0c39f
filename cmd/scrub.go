package cmd

import (
	"github.com/quantumclean/heatshield/core"
	"github.com/quantumclean/heatshield/internal/auditlog"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/spf13/cobra"
)

// scrubCmd redacts PII from a raw signal batch.
var scrubCmd = &cobra.Command{
	Use:   "scrub [signals.json]",
	Short: "Redact PII from a raw signal batch before clustering.",
	Long: `Scrub every signal text in a flat JSON batch and print the redacted copies.

Detects and replaces with bracketed tokens:
- Social Security numbers            -> [SSN]
- Alien registration numbers         -> [A-NUMBER]
- Immigration case receipt numbers   -> [CASE-NUMBER]
- Driver's license numbers           -> [DL-NUMBER]
- Phone numbers                      -> [PHONE]
- Email addresses                    -> [EMAIL]
- Street addresses                   -> [ADDRESS]

Only entity counts are reported; the matched substrings are never printed,
stored, or written to the audit log. Scrubbing already-scrubbed text changes
nothing, so the command is safe to re-run.

Reads from the positional file or stdin. JSON output is the plain signal
array, ready to pipe into clustering and then 'heatshield gate'.

Examples:
  # Scrub a scraped batch and write the clean copy
  heatshield scrub signals.json --output json --output-file clean.json

  # Scrub from stdin and inspect what was found
  cat signals.json | heatshield scrub

  # Use the advanced recognizer when a model is installed
  heatshield scrub signals.json --advanced yes --model-path ./ner.model`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteScrub(rootCtx, cfg, auditlog.Manager.GetAuditStore()); err != nil {
			contract.LogFatal("Cannot run scrub", err)
		}
	},
}
