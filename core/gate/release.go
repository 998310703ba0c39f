package gate

import (
	"sync"

	"github.com/quantumclean/heatshield/schema"
)

// ClearedUnit is proof that a unit passed every blocking gate. Only Release
// constructs it; the unexported fields keep other packages from minting one,
// so exporters that accept a ClearedUnit never need to re-check a decision.
type ClearedUnit struct {
	unit     *schema.AggregationUnit
	decision schema.SafetyDecision
	texts    []string
}

// Unit returns the cleared aggregation unit.
func (c ClearedUnit) Unit() *schema.AggregationUnit {
	return c.unit
}

// Decision returns the decision that cleared the unit.
func (c ClearedUnit) Decision() schema.SafetyDecision {
	return c.decision
}

// ExportTexts returns the unit texts that survived the forbidden-term gate,
// in ExportTexts order. The representative text stays first when it survived.
func (c ClearedUnit) ExportTexts() []string {
	return c.texts
}

// clear converts a passing decision into a ClearedUnit, dropping any texts
// the forbidden-term gate blocked.
func clear(unit *schema.AggregationUnit, decision schema.SafetyDecision) ClearedUnit {
	blocked := make(map[int]bool, len(decision.BlockedTexts))
	for _, i := range decision.BlockedTexts {
		blocked[i] = true
	}
	all := unit.ExportTexts()
	texts := make([]string, 0, len(all))
	for i, text := range all {
		if !blocked[i] {
			texts = append(texts, text)
		}
	}
	return ClearedUnit{unit: unit, decision: decision, texts: texts}
}

// Release evaluates a batch and returns the units fit for export alongside
// every decision made, in input order. Units that fail any blocking gate
// appear in the decisions but not among the cleared units. Units are
// evaluated concurrently across cfg.Workers goroutines; the audit sink is
// the only shared destination and serializes its own appends.
func (e *Engine) Release(units []*schema.AggregationUnit) ([]ClearedUnit, []schema.SafetyDecision) {
	workers := e.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	idxCh := make(chan int, len(units))
	decisions := make([]schema.SafetyDecision, len(units))
	var wg sync.WaitGroup

	// Start worker pool
	for range workers {
		wg.Go(func() {
			for idx := range idxCh {
				// Each goroutine writes to a *unique* index, which is safe.
				decisions[idx] = e.Evaluate(units[idx])
			}
		})
	}

	for idx := range units {
		idxCh <- idx
	}
	close(idxCh)
	wg.Wait()

	cleared := make([]ClearedUnit, 0, len(units))
	for idx, decision := range decisions {
		if decision.Passed {
			cleared = append(cleared, clear(units[idx], decision))
		}
	}
	return cleared, decisions
}
