package contract

import (
	"fmt"
	"maps"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quantumclean/heatshield/schema"
)

// Default values for configuration.
const (
	DefaultMinGroupSize = 5
	DefaultBufferDelay  = 24 * time.Hour
	DefaultResultLimit  = 25
	MaxResultLimit      = 1000
	DefaultTier         = 1
)

// Default values for the scoring model. Overridable per run, but changing
// them should come with a new ModelVersion so results stay comparable.
const (
	DefaultHalfLifeHours       = 72.0
	DefaultVolumeSaturation    = 20
	DefaultMinTrendWindowDays  = 7
	DefaultOfficialDiscount    = 0.6
	DefaultShortWindowDiscount = 0.8
)

// DefaultModelVersion tags every result with the scoring release that produced it.
const DefaultModelVersion = "hs-" + schema.RulesetVersion

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// WeightsRawInput holds custom score weight definitions from the YAML config file.
// Use float64 pointers so unset fields fall back to the default weights.
type WeightsRawInput struct {
	Volume    *float64 `mapstructure:"volume"`
	Diversity *float64 `mapstructure:"diversity"`
	Novelty   *float64 `mapstructure:"novelty"`
}

// Config holds the runtime configuration for a pipeline run.
// This struct remains the "final, validated" config.
type Config struct {
	// --- Gate policy ---
	MinGroupSize   int
	BufferDelay    time.Duration
	ForbiddenTerms []string
	ZIPAllowlist   []string

	// --- Scoring ---
	ModelVersion        string
	Weights             map[schema.WeightKey]float64
	DecayHalfLifeHours  float64
	VolumeSaturation    int
	StabilityThreshold  float64
	MinTrendWindowDays  int
	OfficialDiscount    float64
	ShortWindowDiscount float64
	BaselineFile        string

	// --- Analysis window (zero values mean derive from signal dates) ---
	StartTime time.Time
	EndTime   time.Time

	// --- Watermark ---
	Tier    int
	BatchID string

	// --- Audit ---
	AuditBackend   schema.AuditBackend
	AuditDBConnect string // Please use env var as this is plaintext
	AuditDir       string

	// --- Scrub ---
	AdvancedRecognizer  bool
	RecognizerModelPath string

	// --- Runtime and output ---
	InputPath    string
	ResultLimit  int
	Workers      int
	Output       schema.OutputMode
	OutputFile   string
	Width        int // Terminal width override (0 = auto-detect)
	UseEmojis    bool
	UseColors    bool
	DisplayFloor schema.AttentionState
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	InputPathStr string

	// --- Output and runtime flags ---
	Limit          int    `mapstructure:"limit"`
	Workers        int    `mapstructure:"workers"`
	Output         string `mapstructure:"output"`
	OutputFile     string `mapstructure:"output-file"`
	Width          int    `mapstructure:"width"`
	Emoji          string `mapstructure:"emoji"`
	Color          string `mapstructure:"color"`
	AuditBackend   string `mapstructure:"audit-backend"`
	AuditDBConnect string `mapstructure:"audit-db-connect"`
	AuditDir       string `mapstructure:"audit-dir"`

	// --- Gate policy flags ---
	MinGroupSize   int    `mapstructure:"min-group-size"`
	BufferDelay    string `mapstructure:"buffer-delay"`
	ForbiddenTerms string `mapstructure:"forbidden-terms"`
	ZIPAllowlist   string `mapstructure:"zip-allowlist"`

	// --- Scoring flags ---
	Start        string  `mapstructure:"start"`
	End          string  `mapstructure:"end"`
	ModelVersion string  `mapstructure:"model-version"`
	HalfLife     string  `mapstructure:"half-life"`
	Saturation   int     `mapstructure:"saturation"`
	Stability    float64 `mapstructure:"stability"`
	TrendWindow  int     `mapstructure:"trend-window"`
	Baseline     string  `mapstructure:"baseline"`
	DisplayFloor string  `mapstructure:"display-floor"`
	WeightsStr   string  `mapstructure:"weights-override"`

	// --- Watermark flags ---
	Tier    int    `mapstructure:"tier"`
	BatchID string `mapstructure:"batch-id"`

	// --- Scrub flags ---
	Advanced  string `mapstructure:"advanced"`
	ModelPath string `mapstructure:"model-path"`

	// --- Confidence discounts from config file ---
	OfficialDiscount    *float64 `mapstructure:"official-discount"`
	ShortWindowDiscount *float64 `mapstructure:"short-window-discount"`

	// --- Custom weights from config file ---
	Weights WeightsRawInput `mapstructure:"weights"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.ForbiddenTerms != nil {
		clone.ForbiddenTerms = make([]string, len(c.ForbiddenTerms))
		copy(clone.ForbiddenTerms, c.ForbiddenTerms)
	}
	if c.ZIPAllowlist != nil {
		clone.ZIPAllowlist = make([]string, len(c.ZIPAllowlist))
		copy(clone.ZIPAllowlist, c.ZIPAllowlist)
	}
	if c.Weights != nil {
		clone.Weights = make(map[schema.WeightKey]float64)
		maps.Copy(clone.Weights, c.Weights)
	}
	return &clone
}

// CloneWithBatch creates a copy of the Config and sets a new watermark
// tier and batch identifier. Used when one process watermarks several
// recipient tiers in sequence.
func (c *Config) CloneWithBatch(tier int, batchID string) *Config {
	clone := c.Clone()
	clone.Tier = tier
	clone.BatchID = batchID
	return clone
}

// ProcessAndValidate performs all complex parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	// All validation functions read from 'input' and populate 'cfg'.
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processGatePolicy(cfg, input); err != nil {
		return err
	}
	if err := processAnalysisWindow(cfg, input); err != nil {
		return err
	}
	if err := processScoringModel(cfg, input); err != nil {
		return err
	}
	if err := processScoreWeights(cfg, input); err != nil {
		return err
	}
	if err := processWatermark(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.AuditBackend, connStr string) error {
	switch backend {
	case schema.JSONLBackend, schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("audit-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("audit-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfig validates the audit backend configuration.
func validateBackendConfig(cfg *Config, input *ConfigRawInput) error {
	cfg.AuditBackend = schema.AuditBackend(strings.ToLower(input.AuditBackend))
	if _, ok := schema.ValidAuditBackends[cfg.AuditBackend]; !ok {
		return fmt.Errorf("invalid audit backend '%s'. must be jsonl, sqlite, mysql, postgresql, none", input.AuditBackend)
	}
	cfg.AuditDBConnect = input.AuditDBConnect
	if err := ValidateDatabaseConnectionString(cfg.AuditBackend, cfg.AuditDBConnect); err != nil {
		return err
	}

	cfg.AuditDir = input.AuditDir
	if cfg.AuditBackend == schema.JSONLBackend && cfg.AuditDir == "" {
		cfg.AuditDir = GetAuditDirPath()
	}
	return nil
}

// validateSimpleInputs handles fields that transfer directly or need only
// cheap checks.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.RecognizerModelPath = input.ModelPath

	cfg.InputPath = strings.TrimSpace(input.InputPathStr)
	if cfg.InputPath == "" {
		cfg.InputPath = "-" // stdin
	}

	// Parse emoji flag
	emojis, err := ParseBoolString(input.Emoji)
	if err != nil {
		return fmt.Errorf("invalid --emoji value: %w", err)
	}
	cfg.UseEmojis = emojis

	// Parse color flag
	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// Parse advanced recognizer flag
	advanced, err := ParseBoolString(input.Advanced)
	if err != nil {
		return fmt.Errorf("invalid --advanced value: %w", err)
	}
	cfg.AdvancedRecognizer = advanced

	// --- 1. ResultLimit Validation ---
	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	// --- 2. Workers Validation ---
	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	// --- 3. Output Validation ---
	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", cfg.Output)
	}

	// --- 4. Backend Validation ---
	if err := validateBackendConfig(cfg, input); err != nil {
		return err
	}

	// --- 5. Display Floor Validation ---
	if input.DisplayFloor == "" {
		cfg.DisplayFloor = schema.QuietState
	} else {
		cfg.DisplayFloor = schema.AttentionState(strings.ToUpper(input.DisplayFloor))
		if _, ok := schema.ValidAttentionStates[cfg.DisplayFloor]; !ok {
			return fmt.Errorf("invalid display floor '%s'. must be one of QUIET, MODERATE, ELEVATED_ATTENTION, HIGH_ATTENTION", input.DisplayFloor)
		}
	}

	return nil
}

// processGatePolicy validates the release-gate thresholds and parses the
// term and ZIP lists.
func processGatePolicy(cfg *Config, input *ConfigRawInput) error {
	// --- 1. Cohort Size ---
	if input.MinGroupSize < 1 {
		return fmt.Errorf("min-group-size must be at least 1 (received %d)", input.MinGroupSize)
	}
	cfg.MinGroupSize = input.MinGroupSize

	// --- 2. Buffer Delay ---
	if input.BufferDelay == "" {
		cfg.BufferDelay = DefaultBufferDelay
	} else {
		delay, err := ParseDelayDuration(input.BufferDelay)
		if err != nil {
			return fmt.Errorf("invalid buffer-delay: %w", err)
		}
		cfg.BufferDelay = delay
	}

	// --- 3. Forbidden Terms ---
	// Terms match case-insensitively, so store them lowercased once.
	cfg.ForbiddenTerms = nil
	if input.ForbiddenTerms != "" {
		parts := strings.SplitSeq(input.ForbiddenTerms, ",")
		for p := range parts {
			trimmed := strings.ToLower(strings.TrimSpace(p))
			if trimmed != "" {
				cfg.ForbiddenTerms = append(cfg.ForbiddenTerms, trimmed)
			}
		}
	}

	// --- 4. ZIP Allowlist ---
	cfg.ZIPAllowlist = nil
	if input.ZIPAllowlist != "" {
		seen := make(map[string]bool)
		parts := strings.SplitSeq(input.ZIPAllowlist, ",")
		for p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed == "" {
				continue
			}
			zip, err := schema.NormalizeZIP(trimmed)
			if err != nil {
				return fmt.Errorf("invalid zip-allowlist entry '%s': %w", trimmed, err)
			}
			if !seen[zip] {
				seen[zip] = true
				cfg.ZIPAllowlist = append(cfg.ZIPAllowlist, zip)
			}
		}
	}

	return nil
}

// processAnalysisWindow handles the optional window override. Bounds accept
// an absolute date, an RFC3339 timestamp, or a relative phrase like
// "2 weeks ago". Unset bounds stay zero and are derived from signal dates.
func processAnalysisWindow(cfg *Config, input *ConfigRawInput) error {
	now := time.Now()

	// --- Process Start Time ---
	if input.Start != "" {
		t, err := ParseWindowBound(input.Start, now)
		if err != nil {
			return fmt.Errorf("invalid start date '%s'. Expected %s, RFC3339 or 'N [units] ago': %w", input.Start, schema.DateFormat, err)
		}
		cfg.StartTime = t
	}

	// --- Process End Time ---
	if input.End != "" {
		t, err := ParseWindowBound(input.End, now)
		if err != nil {
			return fmt.Errorf("invalid end date '%s'. Expected %s, RFC3339 or 'N [units] ago': %w", input.End, schema.DateFormat, err)
		}
		cfg.EndTime = t
	}

	// --- Final Validation ---
	if !cfg.StartTime.IsZero() && !cfg.EndTime.IsZero() && cfg.StartTime.After(cfg.EndTime) {
		return fmt.Errorf("start time (%s) cannot be after end time (%s)", cfg.StartTime.Format(DateTimeFormat), cfg.EndTime.Format(DateTimeFormat))
	}

	return nil
}

// processScoringModel validates the scoring knobs and confidence discounts.
func processScoringModel(cfg *Config, input *ConfigRawInput) error {
	cfg.ModelVersion = strings.TrimSpace(input.ModelVersion)
	if cfg.ModelVersion == "" {
		cfg.ModelVersion = DefaultModelVersion
	}
	cfg.BaselineFile = input.Baseline

	// --- 1. Decay Half-Life ---
	if input.HalfLife == "" {
		cfg.DecayHalfLifeHours = DefaultHalfLifeHours
	} else {
		halfLife, err := ParseDelayDuration(input.HalfLife)
		if err != nil {
			return fmt.Errorf("invalid half-life: %w", err)
		}
		cfg.DecayHalfLifeHours = halfLife.Hours()
	}

	// --- 2. Volume Saturation ---
	if input.Saturation < 1 {
		return fmt.Errorf("saturation must be at least 1 (received %d)", input.Saturation)
	}
	cfg.VolumeSaturation = input.Saturation

	// --- 3. Stability Threshold ---
	if input.Stability <= 0 {
		cfg.StabilityThreshold = schema.DefaultStabilityThreshold
	} else {
		cfg.StabilityThreshold = input.Stability
	}

	// --- 4. Trend Window ---
	if input.TrendWindow < 2 {
		return fmt.Errorf("trend-window must be at least 2 days (received %d)", input.TrendWindow)
	}
	cfg.MinTrendWindowDays = input.TrendWindow

	// --- 5. Confidence Discounts ---
	cfg.OfficialDiscount = DefaultOfficialDiscount
	if input.OfficialDiscount != nil {
		cfg.OfficialDiscount = *input.OfficialDiscount
	}
	cfg.ShortWindowDiscount = DefaultShortWindowDiscount
	if input.ShortWindowDiscount != nil {
		cfg.ShortWindowDiscount = *input.ShortWindowDiscount
	}
	if cfg.OfficialDiscount <= 0.0 || cfg.OfficialDiscount > 1.0 {
		return fmt.Errorf("official-discount must be in (0.0, 1.0] (received %.2f)", cfg.OfficialDiscount)
	}
	if cfg.ShortWindowDiscount <= 0.0 || cfg.ShortWindowDiscount > 1.0 {
		return fmt.Errorf("short-window-discount must be in (0.0, 1.0] (received %.2f)", cfg.ShortWindowDiscount)
	}

	return nil
}

// processScoreWeights converts the raw weight input into the final cfg.Weights map
// and validates that the weights sum up to 1.0.
// Command-line --weights-override flag takes precedence over config file settings.
func processScoreWeights(cfg *Config, input *ConfigRawInput) error {
	weights := schema.GetDefaultScoreWeights()

	// Override with config file values if provided
	if input.Weights.Volume != nil {
		weights[schema.WeightVolume] = *input.Weights.Volume
	}
	if input.Weights.Diversity != nil {
		weights[schema.WeightDiversity] = *input.Weights.Diversity
	}
	if input.Weights.Novelty != nil {
		weights[schema.WeightNovelty] = *input.Weights.Novelty
	}

	// Override with command-line flag if provided (takes precedence)
	if input.WeightsStr != "" {
		parsed, err := parseScoreWeightsString(input.WeightsStr)
		if err != nil {
			return fmt.Errorf("invalid --weights-override format: %w", err)
		}
		maps.Copy(weights, parsed)
	}

	// Validate weights
	sum := 0.0
	for key, weight := range weights {
		if weight < 0.0 || weight > 1.0 {
			return fmt.Errorf("score weight for %s must be between 0.0 and 1.0 (received %.3f)", key, weight)
		}
		sum += weight
	}
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("score weights must sum to 1.0, got %.3f", sum)
	}

	cfg.Weights = weights
	return nil
}

// processWatermark validates the distribution tier and assigns a batch
// identifier when the caller did not provide one.
func processWatermark(cfg *Config, input *ConfigRawInput) error {
	if input.Tier < 0 {
		return fmt.Errorf("tier must not be negative (received %d)", input.Tier)
	}
	cfg.Tier = input.Tier

	cfg.BatchID = strings.TrimSpace(input.BatchID)
	if cfg.BatchID == "" {
		cfg.BatchID = uuid.NewString()
	}

	return nil
}

// parseScoreWeightsString parses a string like "volume:0.5,diversity:0.3,novelty:0.2"
// into a map of WeightKey to float64.
func parseScoreWeightsString(s string) (map[schema.WeightKey]float64, error) {
	weights := make(map[schema.WeightKey]float64)

	if s == "" {
		return weights, nil
	}

	parts := strings.SplitSeq(s, ",")
	for part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		keyValue := strings.Split(part, ":")
		if len(keyValue) != 2 {
			return nil, fmt.Errorf("invalid weight format '%s', expected 'key:value'", part)
		}

		keyStr := strings.TrimSpace(keyValue[0])
		valueStr := strings.TrimSpace(keyValue[1])

		var key schema.WeightKey
		switch strings.ToLower(keyStr) {
		case "volume":
			key = schema.WeightVolume
		case "diversity":
			key = schema.WeightDiversity
		case "novelty":
			key = schema.WeightNovelty
		default:
			return nil, fmt.Errorf("invalid weight key '%s', must be volume, diversity, or novelty", keyStr)
		}

		value, err := strconv.ParseFloat(valueStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight value '%s' for %s: %w", valueStr, key, err)
		}

		weights[key] = value
	}

	return weights, nil
}
