package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/quantumclean/heatshield/core"
	"github.com/quantumclean/heatshield/core/scrub"
	"github.com/quantumclean/heatshield/core/watermark"
	"github.com/quantumclean/heatshield/internal/auditlog"
	"github.com/quantumclean/heatshield/internal/contract"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
}

func (h *toolHandler) handleScrubText(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := request.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	scrubber := scrub.New()
	if request.GetBool("advanced", h.baseCfg.AdvancedRecognizer) {
		if s, err := scrub.NewAdvanced(h.baseCfg.RecognizerModelPath); err == nil {
			scrubber = s
		}
	}

	scrubbed, entities := scrubber.Scrub(text)
	response := struct {
		ScrubbedText string         `json:"scrubbed_text"`
		Entities     map[string]int `json:"entities"`
		Recognizer   string         `json:"recognizer"`
	}{
		ScrubbedText: scrubbed,
		Entities:     entities,
		Recognizer:   scrubber.Detail(),
	}
	jsonData, _ := json.MarshalIndent(response, "", "  ")

	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleEvaluateUnits(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unitsJSON := request.GetString("units_json", "")
	if unitsJSON == "" {
		return mcp.NewToolResultError("units_json is required"), nil
	}

	cfg := h.baseCfg.Clone()
	cfg.Tier = 0 // Evaluation never watermarks or exports
	if k := request.GetInt("min_group_size", 0); k > 0 {
		cfg.MinGroupSize = k
	}

	units, err := core.DecodeUnits(strings.NewReader(unitsJSON))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid units: %v", err)), nil
	}

	// MCP evaluations are advisory, so decisions go to an in-memory sink
	// instead of the configured audit backend.
	sink := auditlog.NewMemoryStore()
	defer func() { _ = sink.Close() }()

	out, err := core.NewPipeline(cfg, sink).Run(core.WithSuppressHeader(ctx), units)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("evaluation failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(out.Decisions, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleBuildResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	unitsJSON := request.GetString("units_json", "")
	if unitsJSON == "" {
		return mcp.NewToolResultError("units_json is required"), nil
	}

	cfg := h.baseCfg.Clone()
	cfg.Tier = 0 // Results only, no watermarked export
	if l := request.GetInt("limit", 0); l > 0 {
		cfg.ResultLimit = l
	}
	if m := request.GetString("model_version", ""); m != "" {
		cfg.ModelVersion = m
	}

	units, err := core.DecodeUnits(strings.NewReader(unitsJSON))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid units: %v", err)), nil
	}

	sink := auditlog.NewMemoryStore()
	defer func() { _ = sink.Close() }()

	out, err := core.NewPipeline(cfg, sink).Run(core.WithSuppressHeader(ctx), units)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("pipeline failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(out.Results, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleDecodeWatermark(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := request.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	response := struct {
		Watermarked bool   `json:"watermarked"`
		Fingerprint string `json:"fingerprint,omitempty"`
	}{}

	fp, err := watermark.Decode(text)
	switch {
	case err == nil:
		response.Watermarked = true
		response.Fingerprint = fmt.Sprintf("0x%08x", fp)
	case errors.Is(err, watermark.ErrNoWatermark):
		// Watermarked stays false
	default:
		return mcp.NewToolResultError(fmt.Sprintf("decode failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(response, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
