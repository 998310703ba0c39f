package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/quantumclean/heatshield/core/watermark"
	"github.com/quantumclean/heatshield/internal/auditlog"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
	"github.com/spf13/cobra"
)

// readTextArg returns the positional text argument, falling back to stdin.
func readTextArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read text from stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// watermarkCmd focused on the zero-width provenance codec.
var watermarkCmd = &cobra.Command{
	Use:   "watermark",
	Short: "Embed, recover, strip, or trace zero-width provenance marks",
	Long: `Work with the invisible watermark that ties exported text to its release.

The codec hides a 32-bit fingerprint in zero-width code points (ZWSP, ZWNJ,
WORD JOINER) right after the first whitespace of a text. The fingerprint is
SHA-256 over "{tier}:{batch_id}:{10-minute bucket}", so a leaked paragraph
identifies which recipient tier and batch it left through.

Subcommands:
  encode - watermark a single text for a tier and batch
  decode - recover the fingerprint from a watermarked text
  strip  - remove all zero-width marks from a text
  trace  - match a leaked text against the recorded watermark batches

Examples:
  # Watermark one paragraph
  heatshield watermark encode --tier 2 "Community reports rose this week"

  # Check whether a pasted text carries a mark
  pbpaste | heatshield watermark decode`,
}

// watermarkEncodeCmd embeds a watermark into one text.
var watermarkEncodeCmd = &cobra.Command{
	Use:   "encode [text]",
	Short: "Embed a zero-width watermark into a text",
	Long: `Watermark one text with the configured tier and batch identifier.

The text is read from the argument or stdin and printed with the payload
embedded; it renders identically to the input. Texts shorter than 3 runes
pass through unchanged. A watermark_batch record is appended to the audit
log so the mark stays traceable.

Requires --tier 1 or higher; tier 0 is internal and never watermarked.

Examples:
  # Mark a paragraph for the public tier
  heatshield watermark encode --tier 1 "Community reports rose this week"

  # Fixed batch ID, text from stdin
  echo "Community reports rose this week" | heatshield watermark encode --tier 2 --batch-id 2025-08-weekly`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, args []string) {
		text, err := readTextArg(args)
		if err != nil {
			contract.LogFatal("Cannot read text", err)
		}
		if cfg.Tier < 1 {
			contract.LogFatal("Cannot encode", fmt.Errorf("encode requires a consumer tier of at least 1 (received %d)", cfg.Tier))
		}

		now := time.Now()
		encoded := watermark.Encode(text, cfg.Tier, cfg.BatchID, now)

		// Manual encodes are releases too, so they get a batch record.
		record := schema.NewWatermarkBatchRecord(cfg.BatchID, cfg.Tier, 1, now)
		if err := auditlog.Manager.GetAuditStore().Append(record); err != nil {
			contract.LogWarn("Appending watermark batch record", err)
		}

		fmt.Println(encoded)
	},
}

// watermarkDecodeCmd recovers the fingerprint from a text.
var watermarkDecodeCmd = &cobra.Command{
	Use:   "decode [text]",
	Short: "Recover the embedded fingerprint from a text",
	Long: `Scan a text for a zero-width payload and print its fingerprint.

A clean text is not an error; the command reports that no payload is
present. Use 'heatshield watermark trace' to tie a fingerprint back to the
batch that produced it.

Examples:
  # Inspect a pasted paragraph
  heatshield watermark decode "some text copied from a partner site"

  # From stdin
  pbpaste | heatshield watermark decode`,
	Args: cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		text, err := readTextArg(args)
		if err != nil {
			contract.LogFatal("Cannot read text", err)
		}

		fp, err := watermark.Decode(text)
		if errors.Is(err, watermark.ErrNoWatermark) {
			fmt.Println("No watermark payload present.")
			return
		}
		if err != nil {
			contract.LogFatal("Cannot decode watermark", err)
		}
		fmt.Printf("Fingerprint: 0x%08x\n", fp)
	},
}

// watermarkStripCmd removes all zero-width marks from a text.
var watermarkStripCmd = &cobra.Command{
	Use:   "strip [text]",
	Short: "Remove all zero-width marks from a text",
	Long: `Print the text with every reserved zero-width code point removed.

For carrier text free of the reserved code points, strip(encode(text)) is
exactly the original text. Useful before diffing exported copy or when
republishing with permission.

Examples:
  heatshield watermark strip "$(heatshield watermark encode --tier 1 'hello world')"`,
	Args: cobra.MaximumNArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		text, err := readTextArg(args)
		if err != nil {
			contract.LogFatal("Cannot read text", err)
		}
		fmt.Println(watermark.Strip(text))
	},
}

// watermarkTraceCmd matches a leaked text back to its recorded batch.
var watermarkTraceCmd = &cobra.Command{
	Use:   "trace [text]",
	Short: "Match a leaked text against the recorded watermark batches",
	Long: `Decode a text's fingerprint and search the audit log for the batch
that produced it.

Fingerprints are never stored; each recorded batch is recomputed from its
(tier, batch ID, timestamp) and compared, so the audit log stays free of
derived secrets. A match names the recipient tier, the batch, and the
10-minute window the export left in.

Examples:
  # Who leaked this paragraph?
  heatshield watermark trace "text found on a public forum"

  # Against a SQL audit backend
  heatshield watermark trace --audit-backend sqlite "leaked text"`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: sharedSetup,
	Run: func(_ *cobra.Command, args []string) {
		text, err := readTextArg(args)
		if err != nil {
			contract.LogFatal("Cannot read text", err)
		}

		records, err := auditlog.Manager.GetAuditStore().Records(schema.WatermarkBatchKind)
		if err != nil {
			contract.LogFatal("Cannot read audit records", err)
		}

		match, err := watermark.Trace(text, records)
		if errors.Is(err, watermark.ErrNoWatermark) {
			fmt.Println("No watermark payload present.")
			return
		}
		if err != nil {
			contract.LogFatal("Cannot trace watermark", err)
		}

		bucketStart := time.Unix(match.Payload.TimestampBucket*schema.BucketSeconds, 0).UTC()
		fmt.Printf("Fingerprint: 0x%08x\n", match.Fingerprint)
		fmt.Printf("Tier:        %d\n", match.Payload.Tier)
		fmt.Printf("Batch:       %s\n", match.Payload.BatchID)
		fmt.Printf("Window:      %s (%ds bucket)\n", bucketStart.Format(contract.DateTimeFormat), schema.BucketSeconds)
		if match.Record.Clusters != nil {
			fmt.Printf("Clusters:    %d\n", *match.Record.Clusters)
		}
	},
}
