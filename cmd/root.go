package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/quantumclean/heatshield/internal/auditlog"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Set at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg holds the validated, final configuration shared by every command.
var cfg = &contract.Config{}

// input is the raw configuration viper unmarshals from defaults, file,
// environment and flags before validation.
var input = &contract.ConfigRawInput{}

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:                "heatshield",
	Short:              "Gate, score and watermark aggregated civic signals before release.",
	Long:               `Heatshield stands between raw civic signals and the public: it scrubs PII, holds every cluster to the safety gates, and watermarks whatever goes out the door.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig wires viper: config file discovery, the HEATSHIELD_* env
// namespace, and the defaults that files, env and flags override.
func initConfig() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		// .heatshield.yaml in the working directory wins over $HOME.
		viper.SetConfigName(".heatshield")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	// HEATSHIELD_AUDIT_BACKEND=... maps onto the audit-backend key.
	viper.SetEnvPrefix("HEATSHIELD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("limit", contract.DefaultResultLimit)
	viper.SetDefault("workers", contract.DefaultWorkers)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("min-group-size", contract.DefaultMinGroupSize)
	viper.SetDefault("buffer-delay", "24 hours")
	viper.SetDefault("saturation", contract.DefaultVolumeSaturation)
	viper.SetDefault("trend-window", contract.DefaultMinTrendWindowDays)
	viper.SetDefault("tier", contract.DefaultTier)
	viper.SetDefault("audit-backend", schema.JSONLBackend)
	viper.SetDefault("audit-db-connect", "")
	viper.SetDefault("audit-dir", "")
	viper.SetDefault("emoji", "no")
	viper.SetDefault("color", "yes")
	viper.SetDefault("advanced", "no")
}

// sharedSetup is the PreRunE for every pipeline command: it resolves the
// configuration, validates it into cfg, and opens the audit store.
func sharedSetup(_ *cobra.Command, args []string) error {
	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults, env and flags carry on.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// The one positional argument is the input path; "-" means stdin.
	if len(args) == 1 {
		input.InputPathStr = args[0]
	} else {
		input.InputPathStr = "-"
	}

	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	if err := auditlog.InitStore(cfg); err != nil {
		return fmt.Errorf("failed to initialize audit store: %w", err)
	}

	return nil
}

// loadConfigFile is the lighter setup used by the audit commands, which
// need the backend settings but no pipeline input.
func loadConfigFile() error {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".heatshield")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
