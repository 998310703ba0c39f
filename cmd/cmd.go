// Package cmd defines the command-line interface for heatshield.
package cmd

import (
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(scrubCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(resultsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watermarkCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the watermark subcommands to the parent watermark command
	watermarkCmd.AddCommand(watermarkEncodeCmd)
	watermarkCmd.AddCommand(watermarkDecodeCmd)
	watermarkCmd.AddCommand(watermarkStripCmd)
	watermarkCmd.AddCommand(watermarkTraceCmd)

	// Add the audit subcommands to the parent audit command
	auditCmd.AddCommand(auditStatusCmd)
	auditCmd.AddCommand(auditExportCmd)
	auditCmd.AddCommand(auditMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper.
	// Every pipeline command shares the same policy surface, so the shared
	// flags all live on the root.
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of results to display")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent workers")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("emoji", "no", "Enable emoji markers in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("audit-backend", string(schema.JSONLBackend), "Audit backend: jsonl or sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("audit-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("audit-dir", "", "Directory for the JSONL audit log (empty = per-user default)")
	rootCmd.PersistentFlags().Int("min-group-size", contract.DefaultMinGroupSize, "Minimum distinct signals before a unit can be released")
	rootCmd.PersistentFlags().String("buffer-delay", "24 hours", "Minimum dwell time between latest signal and release")
	rootCmd.PersistentFlags().String("forbidden-terms", "", "Comma-separated terms that drop matching texts from export")
	rootCmd.PersistentFlags().String("zip-allowlist", "", "Comma-separated ZIP codes admitted at intake (empty = all)")
	rootCmd.PersistentFlags().String("start", "", "Window start in ISO8601, RFC3339, or time ago")
	rootCmd.PersistentFlags().String("end", "", "Window end in ISO8601, RFC3339, or time ago")
	rootCmd.PersistentFlags().String("model-version", "", "Scoring model version recorded in provenance (empty = current release)")
	rootCmd.PersistentFlags().String("half-life", "72 hours", "Decay half-life for the volume component")
	rootCmd.PersistentFlags().Int("saturation", contract.DefaultVolumeSaturation, "Signal count where the volume component saturates")
	rootCmd.PersistentFlags().Float64("stability", 0, "Trend stability threshold (0 = ruleset default)")
	rootCmd.PersistentFlags().Int("trend-window", contract.DefaultMinTrendWindowDays, "Minimum window days before short-window discount stops applying")
	rootCmd.PersistentFlags().String("baseline", "", "Path to the historical baseline file for novelty scoring")
	rootCmd.PersistentFlags().String("display-floor", "", "Lowest attention state to display: QUIET, MODERATE, ELEVATED_ATTENTION, HIGH_ATTENTION")
	rootCmd.PersistentFlags().String("weights-override", "", "Score weights for this run (format: 'volume:0.5,diversity:0.3,novelty:0.2')")
	rootCmd.PersistentFlags().Int("tier", contract.DefaultTier, "Recipient tier for watermarked export (0 = internal, never watermarked)")
	rootCmd.PersistentFlags().String("batch-id", "", "Batch identifier recorded with the watermark (empty = random UUID)")
	rootCmd.PersistentFlags().String("advanced", "no", "Use the advanced recognizer for scrubbing (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("model-path", "", "Path to the advanced recognizer model")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of auditMigrateCmd to Viper
	auditMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(auditMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding audit migrate flags", err)
	}
}
