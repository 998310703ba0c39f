//go:build integration

// Package integration contains integration tests for heatshield.
// These tests are excluded from normal test runs due to build tags.
// To run these tests: go test -tags integration ./integration
package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScrubVerification runs the scrub command over a PII-bearing batch and
// verifies no raw identifier survives into the output.
func TestScrubVerification(t *testing.T) {
	workDir := t.TempDir()
	signalsPath := writeFixture(t, workDir, "signals.json", signalBatchJSON)
	outPath := filepath.Join(workDir, "scrubbed.json")

	_, err := runHeatshield(t, "scrub", signalsPath,
		"--audit-backend", "none",
		"--output", "json", "--output-file", outPath)
	require.NoError(t, err)

	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)
	out := string(raw)
	assert.NotContains(t, out, "123-45-6789")
	assert.NotContains(t, out, "ada@example.org")
	assert.Contains(t, out, "[SSN]")
	assert.Contains(t, out, "[EMAIL]")
}

// TestGateVerification runs the gate command and verifies each unit's verdict
// against the policy the fixture was built for.
func TestGateVerification(t *testing.T) {
	workDir := t.TempDir()
	unitsPath := writeFixture(t, workDir, "units.json", unitBatchJSON)
	outPath := filepath.Join(workDir, "decisions.json")

	_, err := runHeatshield(t, "gate", unitsPath,
		"--audit-backend", "none",
		"--output", "json", "--output-file", outPath)
	require.NoError(t, err)

	var decisions []struct {
		UnitID  string `json:"unit_id"`
		Verdict string `json:"verdict"`
		Passed  bool   `json:"passed"`
	}
	raw, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &decisions))

	require.Len(t, decisions, 2)
	assert.Equal(t, "unit-clear", decisions[0].UnitID)
	assert.Equal(t, "PASS", decisions[0].Verdict)
	assert.Equal(t, "unit-small", decisions[1].UnitID)
	assert.Equal(t, "BLOCK", decisions[1].Verdict)
	assert.False(t, decisions[1].Passed)
}

// TestWatermarkRoundTrip releases a batch through the export command, then
// traces an exported text back to that batch through the recorded audit
// trail, the way a real leak investigation would.
func TestWatermarkRoundTrip(t *testing.T) {
	workDir := t.TempDir()
	auditDir := filepath.Join(workDir, "audit")
	unitsPath := writeFixture(t, workDir, "units.json", unitBatchJSON)
	exportsPath := filepath.Join(workDir, "exports.json")

	auditFlags := []string{"--audit-backend", "jsonl", "--audit-dir", auditDir}

	args := append([]string{
		"export", unitsPath,
		"--tier", "2", "--batch-id", "batch-e2e",
		"--output", "json", "--output-file", exportsPath,
	}, auditFlags...)
	_, err := runHeatshield(t, args...)
	require.NoError(t, err)

	var exports []struct {
		UnitID string   `json:"unit_id"`
		Texts  []string `json:"texts"`
	}
	raw, err := os.ReadFile(exportsPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &exports))
	require.Len(t, exports, 1, "only the passing unit should export")
	require.NotEmpty(t, exports[0].Texts)
	leaked := exports[0].Texts[0]

	// The invisible payload decodes from the exported text
	decodeOut, err := runHeatshield(t, "watermark", "decode", leaked)
	require.NoError(t, err)
	assert.Contains(t, decodeOut, "Fingerprint: 0x")

	// It traces back to the batch that released it
	args = append([]string{"watermark", "trace", leaked}, auditFlags...)
	traceOut, err := runHeatshield(t, args...)
	require.NoError(t, err)
	assert.Contains(t, traceOut, "batch-e2e")
	assert.Contains(t, traceOut, "Tier:        2")

	// Stripping removes the payload for good
	stripOut, err := runHeatshield(t, "watermark", "strip", leaked)
	require.NoError(t, err)
	stripped := strings.TrimRight(stripOut, "\n")
	decodeOut, err = runHeatshield(t, "watermark", "decode", stripped)
	require.NoError(t, err)
	assert.Contains(t, decodeOut, "No watermark payload present.")

	// The release itself is on the record
	args = append([]string{"audit", "status"}, auditFlags...)
	statusOut, err := runHeatshield(t, args...)
	require.NoError(t, err)
	assert.Contains(t, statusOut, "watermark_batch: 1")
}
