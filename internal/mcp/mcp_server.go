// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/quantumclean/heatshield/internal/contract"
)

// NewMCPServer initializes and configures the Heatshield MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config) *server.MCPServer {
	s := server.NewMCPServer(
		"Heatshield Safety Gate Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
	}

	// --- 1. Tool: scrub_text ---
	s.AddTool(mcp.NewTool("scrub_text",
		mcp.WithDescription("Redact direct identifiers (SSN, case numbers, phone numbers, emails, street addresses) from a text, returning the scrubbed text and per-type entity counts."),
		mcp.WithString("text", mcp.Description("The text to scrub."), mcp.Required()),
		mcp.WithBoolean("advanced", mcp.Description("Use the advanced recognizer when its model is available; falls back to the regex table otherwise.")),
	), h.handleScrubText)

	// --- 2. Tool: evaluate_units ---
	s.AddTool(mcp.NewTool("evaluate_units",
		mcp.WithDescription("Run the safety gates over a JSON array of aggregation units and return the per-unit gate decisions. Nothing is released or watermarked."),
		mcp.WithString("units_json", mcp.Description("JSON array of aggregation units (id, zip, window, representative_text, signals)."), mcp.Required()),
		mcp.WithNumber("min_group_size", mcp.Description("Override the k-anonymity cohort size for this evaluation.")),
	), h.handleEvaluateUnits)

	// --- 3. Tool: build_results ---
	s.AddTool(mcp.NewTool("build_results",
		mcp.WithDescription("Run the full pipeline (scrub, gates, scoring) over a JSON array of aggregation units and return the ranked attention results for units that cleared every gate."),
		mcp.WithString("units_json", mcp.Description("JSON array of aggregation units."), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Limit the number of results returned.")),
		mcp.WithString("model_version", mcp.Description("Tag results with a specific model version.")),
	), h.handleBuildResults)

	// --- 4. Tool: decode_watermark ---
	s.AddTool(mcp.NewTool("decode_watermark",
		mcp.WithDescription("Check a text for an invisible provenance watermark and return its fingerprint when present."),
		mcp.WithString("text", mcp.Description("The text to inspect."), mcp.Required()),
	), h.handleDecodeWatermark)

	return s
}

// StartMCPServer starts the Heatshield MCP server.
func StartMCPServer(_ context.Context, baseCfg *contract.Config) error {
	s := NewMCPServer(baseCfg)
	return server.ServeStdio(s)
}
