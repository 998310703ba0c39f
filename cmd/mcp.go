package cmd

import (
	"github.com/quantumclean/heatshield/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the Heatshield MCP server",
	Long: `Launch an MCP server that lets AI agents scrub text, evaluate units
against the safety gates, build results, and decode watermarks via standard
tools. Stdout carries the protocol; run headers are suppressed and tool
evaluations never watermark or touch the configured audit backend.`,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
