package schema

// This file holds the render model for scoring model definitions.
// These structs are used by the metrics display functionality to show the
// thresholds, weights and gates active in the current configuration.

// ScoringRenderModel describes the active scoring model for display.
type ScoringRenderModel struct {
	Title          string            `json:"title"`
	RulesetVersion string            `json:"ruleset_version"`
	ModelVersion   string            `json:"model_version"`
	SchemaVersion  string            `json:"schema_version"`
	Formula        string            `json:"formula"`
	Weights        []ScoringWeight   `json:"weights"`
	States         []ScoringState    `json:"states"`
	Gates          []ScoringGate     `json:"gates"`
	Discounts      []ScoringDiscount `json:"discounts"`
}

// ScoringWeight is one weighted component of the attention score.
type ScoringWeight struct {
	Name    WeightKey `json:"name"`
	Value   float64   `json:"value"`
	Purpose string    `json:"purpose"`
}

// ScoringState is one attention state with its effective-score cutoff.
type ScoringState struct {
	Name      AttentionState `json:"name"`
	Threshold float64        `json:"threshold"`
}

// ScoringGate is one safety gate with its active parameter.
type ScoringGate struct {
	Name      GateName `json:"name"`
	Purpose   string   `json:"purpose"`
	Parameter string   `json:"parameter"`
}

// ScoringDiscount is one confidence discount and the condition that
// triggers it.
type ScoringDiscount struct {
	Name    string  `json:"name"`
	Factor  float64 `json:"factor"`
	Applies string  `json:"applies"`
}
