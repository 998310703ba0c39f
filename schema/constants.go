package schema

// Custom string types for type safety.
type (
	// AttentionState represents the public attention level of a result.
	AttentionState string

	// TrendDirection represents the slope classification of a trend.
	TrendDirection string

	// SourceCategory represents the kind of source a signal came from.
	SourceCategory string

	// GateName represents one of the safety gates.
	GateName string

	// WeightKey represents keys used in scoring breakdowns.
	WeightKey string

	// AuditKind represents the record type in the audit log.
	AuditKind string

	// AuditBackend represents the storage backend for audit records.
	AuditBackend string

	// OutputMode represents the format of the output.
	OutputMode string
)

// SchemaVersion is the current public AttentionResult schema version.
// Consumers reject results whose version they do not recognize.
const SchemaVersion = "1"

// RulesetVersion identifies the gate thresholds and score weights compiled
// into this build. Bump it whenever a threshold or weight changes.
const RulesetVersion = "2025.08"

// All attention states, from quietest to loudest.
const (
	QuietState    AttentionState = "QUIET"
	ModerateState AttentionState = "MODERATE"
	ElevatedState AttentionState = "ELEVATED_ATTENTION"
	HighState     AttentionState = "HIGH_ATTENTION"
)

// Effective-score cutoffs for attention states. A state is assigned when
// score times confidence meets or exceeds its threshold.
const (
	HighThreshold     = 0.75
	ElevatedThreshold = 0.50
	ModerateThreshold = 0.25
)

// All trend directions supported.
const (
	RisingTrend  TrendDirection = "rising"
	FallingTrend TrendDirection = "falling"
	StableTrend  TrendDirection = "stable"
)

// All source categories supported.
const (
	NewsSource      SourceCategory = "news"
	CommunitySource SourceCategory = "community"
	AdvocacySource  SourceCategory = "advocacy"
	OfficialSource  SourceCategory = "official"
	OtherSource     SourceCategory = "other"
)

// All safety gates, in evaluation order.
const (
	KAnonymityGate    GateName = "k_anonymity"
	TimeDelayGate     GateName = "time_delay"
	CorroborationGate GateName = "corroboration"
	NoPinpointingGate GateName = "no_pinpointing"
	ForbiddenTermGate GateName = "forbidden_term"
)

// Weight keys used in the scoring logic.
const (
	WeightVolume    WeightKey = "volume"    // nVolume
	WeightDiversity WeightKey = "diversity" // nDiversity
	WeightNovelty   WeightKey = "novelty"   // nNovelty
)

// All audit record kinds supported.
const (
	GateDecisionKind   AuditKind = "gate_decision"
	ScrubEventKind     AuditKind = "scrub_event"
	WatermarkBatchKind AuditKind = "watermark_batch"
)

// All audit backends supported.
const (
	JSONLBackend      AuditBackend = "jsonl" // default
	SQLiteBackend     AuditBackend = "sqlite"
	MySQLBackend      AuditBackend = "mysql"
	PostgreSQLBackend AuditBackend = "postgresql"
	NoneBackend       AuditBackend = "none"
)

// All output modes supported.
const (
	TextOut    OutputMode = "text" // default
	CSVOut     OutputMode = "csv"
	JSONOut    OutputMode = "json"
	ParquetOut OutputMode = "parquet"
)

// AllSourceCategories returns a list of all source categories in canonical
// order.
var AllSourceCategories = []SourceCategory{
	NewsSource, CommunitySource, AdvocacySource, OfficialSource, OtherSource,
}

// AllGates returns a list of all safety gates in evaluation order.
var AllGates = []GateName{
	KAnonymityGate, TimeDelayGate, CorroborationGate, NoPinpointingGate, ForbiddenTermGate,
}

// ValidAttentionStates lists all valid attention states.
var ValidAttentionStates = map[AttentionState]struct{}{
	QuietState:    {},
	ModerateState: {},
	ElevatedState: {},
	HighState:     {},
}

// ValidTrendDirections lists all valid trend directions.
var ValidTrendDirections = map[TrendDirection]struct{}{
	RisingTrend:  {},
	FallingTrend: {},
	StableTrend:  {},
}

// ValidSourceCategories lists all valid source categories.
var ValidSourceCategories = map[SourceCategory]struct{}{
	NewsSource:      {},
	CommunitySource: {},
	AdvocacySource:  {},
	OfficialSource:  {},
	OtherSource:     {},
}

// ValidAuditBackends lists all valid audit backends.
var ValidAuditBackends = map[AuditBackend]struct{}{
	JSONLBackend:      {},
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut:    {},
	CSVOut:     {},
	JSONOut:    {},
	ParquetOut: {},
}

// NormalizeSourceCategory maps any category string onto the canonical set.
// Unknown categories become OtherSource.
func NormalizeSourceCategory(c SourceCategory) SourceCategory {
	if _, ok := ValidSourceCategories[c]; ok {
		return c
	}
	return OtherSource
}

// GetDefaultScoreWeights returns the default weight map for attention
// scoring. Weights sum to 1.0; when no baseline exists for the novelty
// component the builder redistributes its weight across the others.
func GetDefaultScoreWeights() map[WeightKey]float64 {
	return map[WeightKey]float64{
		WeightVolume:    0.50,
		WeightDiversity: 0.30,
		WeightNovelty:   0.20,
	}
}

// ClassifyAttentionState maps an effective score (score times confidence)
// onto an attention state.
func ClassifyAttentionState(effective float64) AttentionState {
	switch {
	case effective >= HighThreshold:
		return HighState
	case effective >= ElevatedThreshold:
		return ElevatedState
	case effective >= ModerateThreshold:
		return ModerateState
	default:
		return QuietState
	}
}
