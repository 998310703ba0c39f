package contract

import (
	"testing"
	"time"

	"github.com/quantumclean/heatshield/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validRawInput returns a raw input with every required field at a sane
// value. Individual cases mutate one field at a time.
func validRawInput() *ConfigRawInput {
	return &ConfigRawInput{
		Limit:        DefaultResultLimit,
		Workers:      4,
		Output:       "text",
		Emoji:        "no",
		Color:        "yes",
		Advanced:     "no",
		AuditBackend: string(schema.JSONLBackend),
		MinGroupSize: DefaultMinGroupSize,
		Saturation:   DefaultVolumeSaturation,
		TrendWindow:  DefaultMinTrendWindowDays,
		Tier:         DefaultTier,
	}
}

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError bool
		check       func(*testing.T, *Config)
	}{
		{
			name:        "valid minimal config",
			mutate:      func(*ConfigRawInput) {},
			expectError: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultBufferDelay, cfg.BufferDelay, "empty delay should fall back to default")
				assert.Equal(t, DefaultModelVersion, cfg.ModelVersion)
				assert.Equal(t, schema.QuietState, cfg.DisplayFloor)
				assert.Equal(t, "-", cfg.InputPath, "empty input path should mean stdin")
				assert.NotEmpty(t, cfg.BatchID, "batch id should be generated when unset")
				assert.NotEmpty(t, cfg.AuditDir, "jsonl backend should get a default audit dir")
			},
		},
		{
			name:        "invalid limit (zero)",
			mutate:      func(in *ConfigRawInput) { in.Limit = 0 },
			expectError: true,
		},
		{
			name:        "invalid limit (negative)",
			mutate:      func(in *ConfigRawInput) { in.Limit = -1 },
			expectError: true,
		},
		{
			name:        "invalid limit (too large)",
			mutate:      func(in *ConfigRawInput) { in.Limit = MaxResultLimit + 1 },
			expectError: true,
		},
		{
			name:        "invalid workers (zero)",
			mutate:      func(in *ConfigRawInput) { in.Workers = 0 },
			expectError: true,
		},
		{
			name:        "invalid output format",
			mutate:      func(in *ConfigRawInput) { in.Output = "invalid_format" },
			expectError: true,
		},
		{
			name:        "invalid audit backend",
			mutate:      func(in *ConfigRawInput) { in.AuditBackend = "invalid_backend" },
			expectError: true,
		},
		{
			name:        "mysql backend without connection string",
			mutate:      func(in *ConfigRawInput) { in.AuditBackend = string(schema.MySQLBackend) },
			expectError: true,
		},
		{
			name: "mysql backend with connection string",
			mutate: func(in *ConfigRawInput) {
				in.AuditBackend = string(schema.MySQLBackend)
				in.AuditDBConnect = "user:pass@tcp(localhost:3306)/heatshield"
			},
			expectError: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, schema.MySQLBackend, cfg.AuditBackend)
			},
		},
		{
			name:        "postgresql backend without connection string",
			mutate:      func(in *ConfigRawInput) { in.AuditBackend = string(schema.PostgreSQLBackend) },
			expectError: true,
		},
		{
			name: "postgresql backend with connection string",
			mutate: func(in *ConfigRawInput) {
				in.AuditBackend = string(schema.PostgreSQLBackend)
				in.AuditDBConnect = "host=localhost port=5432 dbname=heatshield user=hs"
			},
			expectError: false,
		},
		{
			name:        "none backend",
			mutate:      func(in *ConfigRawInput) { in.AuditBackend = string(schema.NoneBackend) },
			expectError: false,
		},
		{
			name:        "invalid min group size",
			mutate:      func(in *ConfigRawInput) { in.MinGroupSize = 0 },
			expectError: true,
		},
		{
			name:        "invalid buffer delay",
			mutate:      func(in *ConfigRawInput) { in.BufferDelay = "whenever" },
			expectError: true,
		},
		{
			name:   "buffer delay in human format",
			mutate: func(in *ConfigRawInput) { in.BufferDelay = "2 days" },
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 48*time.Hour, cfg.BufferDelay)
			},
		},
		{
			name:   "forbidden terms are trimmed and lowercased",
			mutate: func(in *ConfigRawInput) { in.ForbiddenTerms = " Raid , CHECKPOINT ,, sweep " },
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"raid", "checkpoint", "sweep"}, cfg.ForbiddenTerms)
			},
		},
		{
			name:   "zip allowlist normalizes and dedupes",
			mutate: func(in *ConfigRawInput) { in.ZIPAllowlist = "60601, 501, 60601" },
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"60601", "00501"}, cfg.ZIPAllowlist)
			},
		},
		{
			name:        "invalid zip allowlist entry",
			mutate:      func(in *ConfigRawInput) { in.ZIPAllowlist = "60601,not-a-zip" },
			expectError: true,
		},
		{
			name:        "invalid saturation",
			mutate:      func(in *ConfigRawInput) { in.Saturation = 0 },
			expectError: true,
		},
		{
			name:        "invalid trend window",
			mutate:      func(in *ConfigRawInput) { in.TrendWindow = 1 },
			expectError: true,
		},
		{
			name:        "invalid tier",
			mutate:      func(in *ConfigRawInput) { in.Tier = -1 },
			expectError: true,
		},
		{
			name:        "invalid display floor",
			mutate:      func(in *ConfigRawInput) { in.DisplayFloor = "SCREAMING" },
			expectError: true,
		},
		{
			name:   "display floor accepts lowercase",
			mutate: func(in *ConfigRawInput) { in.DisplayFloor = "elevated_attention" },
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, schema.ElevatedState, cfg.DisplayFloor)
			},
		},
		{
			name:        "start after end",
			mutate:      func(in *ConfigRawInput) { in.Start = "2025-06-10"; in.End = "2025-06-01" },
			expectError: true,
		},
		{
			name:   "weights override from flag",
			mutate: func(in *ConfigRawInput) { in.WeightsStr = "volume:0.6,diversity:0.3,novelty:0.1" },
			check: func(t *testing.T, cfg *Config) {
				assert.InDelta(t, 0.6, cfg.Weights[schema.WeightVolume], 1e-9)
				assert.InDelta(t, 0.1, cfg.Weights[schema.WeightNovelty], 1e-9)
			},
		},
		{
			name:        "weights override with bad sum",
			mutate:      func(in *ConfigRawInput) { in.WeightsStr = "volume:0.9" },
			expectError: true,
		},
		{
			name:        "weights override with bad key",
			mutate:      func(in *ConfigRawInput) { in.WeightsStr = "vibes:1.0" },
			expectError: true,
		},
		{
			name: "official discount out of range",
			mutate: func(in *ConfigRawInput) {
				bad := 1.5
				in.OfficialDiscount = &bad
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validRawInput()
			tt.mutate(input)

			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)

			if tt.expectError {
				assert.Error(t, err, "contract.ProcessAndValidate should return an error for %s", tt.name)
				return
			}
			require.NoError(t, err, "contract.ProcessAndValidate should not return an error for %s", tt.name)
			// Basic validation that config was populated
			assert.Equal(t, input.Limit, cfg.ResultLimit)
			assert.Equal(t, input.Workers, cfg.Workers)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestProcessAndValidateWeightDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, validRawInput()))

	sum := 0.0
	for _, w := range cfg.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 0.001, "default weights should sum to 1.0")
	assert.Len(t, cfg.Weights, 3)
}

func TestConfigClone(t *testing.T) {
	cfg := &Config{}
	input := validRawInput()
	input.ForbiddenTerms = "raid,sweep"
	input.ZIPAllowlist = "60601,94103"
	require.NoError(t, ProcessAndValidate(cfg, input))

	clone := cfg.Clone()

	// Mutating the clone must not leak into the original.
	clone.ForbiddenTerms[0] = "changed"
	clone.ZIPAllowlist[0] = "00000"
	clone.Weights[schema.WeightVolume] = 0.99

	assert.Equal(t, "raid", cfg.ForbiddenTerms[0])
	assert.Equal(t, "60601", cfg.ZIPAllowlist[0])
	assert.InDelta(t, 0.5, cfg.Weights[schema.WeightVolume], 1e-9)
}

func TestConfigCloneWithBatch(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, validRawInput()))

	clone := cfg.CloneWithBatch(3, "batch-press")

	assert.Equal(t, 3, clone.Tier)
	assert.Equal(t, "batch-press", clone.BatchID)
	assert.Equal(t, DefaultTier, cfg.Tier, "original tier should be untouched")
	assert.NotEqual(t, cfg.BatchID, clone.BatchID)
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	tests := []struct {
		name        string
		backend     schema.AuditBackend
		connStr     string
		expectError bool
	}{
		{"jsonl ignores connection string", schema.JSONLBackend, "", false},
		{"sqlite allows empty", schema.SQLiteBackend, "", false},
		{"none allows empty", schema.NoneBackend, "", false},
		{"mysql valid", schema.MySQLBackend, "hs:secret@tcp(db:3306)/audit", false},
		{"mysql missing tcp", schema.MySQLBackend, "hs:secret@db/audit", true},
		{"mysql empty", schema.MySQLBackend, "", true},
		{"postgres valid", schema.PostgreSQLBackend, "host=db port=5432 dbname=audit", false},
		{"postgres missing dbname", schema.PostgreSQLBackend, "host=db port=5432", true},
		{"postgres empty", schema.PostgreSQLBackend, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseConnectionString(tt.backend, tt.connStr)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
