package cmd

import (
	"runtime"

	"github.com/quantumclean/heatshield/schema"
	"github.com/spf13/cobra"
)

// versionCmd shows the verbose version for diagnostic purposes.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of heatshield.",
	Long: `Display version information including build details.

Shows:
- Release version
- Git commit hash
- Build timestamp
- Ruleset and schema versions behind published results
- Go runtime version

Useful for:
- Debugging compatibility issues
- Verifying correct binary installation
- Recording which ruleset produced a release`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("heatshield CLI\n")
		cmd.Printf("  Version: %s\n", version)
		cmd.Printf("  Commit:  %s\n", commit)
		cmd.Printf("  Built:   %s\n", date)
		cmd.Printf("  Ruleset: %s (schema %s)\n", schema.RulesetVersion, schema.SchemaVersion)
		cmd.Printf("  Runtime: %s\n", runtime.Version())
	},
}
