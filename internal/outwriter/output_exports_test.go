package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/quantumclean/heatshield/core/watermark"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleExports(t *testing.T) []watermark.ExportUnit {
	t.Helper()
	ts := time.Date(2025, time.June, 16, 12, 0, 0, 0, time.UTC)
	window := schema.TimeWindow{Start: "2025-06-01", End: "2025-06-14"}
	return []watermark.ExportUnit{
		{
			UnitID: "94107|2025-06-01..2025-06-14",
			ZIP:    "94107",
			Window: window,
			Texts: []string{
				watermark.Encode("Several vans reported near the transit plaza", 2, "B-7", ts),
				watermark.Encode("Community meeting scheduled about recent activity", 2, "B-7", ts),
			},
		},
		{
			UnitID: "60601|2025-06-01..2025-06-14",
			ZIP:    "60601",
			Window: window,
			Texts: []string{
				watermark.Encode("Advocacy group confirmed observations downtown", 2, "B-7", ts),
			},
		},
	}
}

func TestWriteExportTable(t *testing.T) {
	exports := sampleExports(t)

	cfg := &contract.Config{
		Output:       schema.TextOut,
		Width:        120,
		Workers:      2,
		Tier:         2,
		BatchID:      "B-7",
		AuditBackend: schema.JSONLBackend,
	}

	var buf bytes.Buffer
	err := writeExportTable(exports, cfg, 30*time.Millisecond, &buf)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, "94107")
	assert.Contains(t, output, "2025-06-01..2025-06-14")
	assert.Contains(t, output, "Exported 2 units (3 texts) at tier 2, batch B-7")
	assert.Contains(t, output, "Export completed in 30ms with 2 workers. Audit backend: jsonl")
}

func TestWriteCSVResultsForExports(t *testing.T) {
	exports := sampleExports(t)

	var buf bytes.Buffer
	err := writeCSVResultsForExports(&buf, exports)
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, []string{"unit_id", "zip", "window_start", "window_end", "text_index", "text"}, records[0])
	assert.Equal(t, "94107", records[1][1])
	assert.Equal(t, "0", records[1][4])
	assert.Equal(t, "1", records[2][4])

	// Invisible watermark runes must survive the CSV round trip so leaked
	// exports remain traceable.
	assert.Equal(t, exports[0].Texts[0], records[1][5])
	ts := time.Date(2025, time.June, 16, 12, 0, 0, 0, time.UTC)
	fp, err := watermark.Decode(records[1][5])
	require.NoError(t, err)
	assert.Equal(t, schema.NewWatermarkPayload(2, "B-7", ts).Fingerprint(), fp)
}

func TestWriteExportUnitsJSONRoundTrip(t *testing.T) {
	exports := sampleExports(t)

	var buf bytes.Buffer
	err := writeJSON(&buf, exports)
	require.NoError(t, err)

	var decoded []watermark.ExportUnit
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, exports, decoded)
}

func TestWriteExportUnitsParquetUnsupported(t *testing.T) {
	cfg := &contract.Config{Output: schema.ParquetOut}
	err := WriteExportUnits(nil, cfg, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only supported")
}
