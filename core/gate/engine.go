// Package gate decides whether aggregation units may be released for
// publication. Five named gates run on every unit; all of them are always
// evaluated and audited, even after an earlier one has failed, so the audit
// log carries the complete picture for every unit.
package gate

import (
	"fmt"
	"regexp"
	"time"

	"github.com/quantumclean/heatshield/core/scrub"
	"github.com/quantumclean/heatshield/internal/contract"
	"github.com/quantumclean/heatshield/schema"
)

// Engine evaluates the release gates against aggregation units.
type Engine struct {
	cfg     *contract.Config
	sink    contract.AuditSink
	now     func() time.Time
	termRes []*regexp.Regexp
}

// NewEngine returns an engine on the wall clock. The sink may be nil, in
// which case decisions are still computed but not audited.
func NewEngine(cfg *contract.Config, sink contract.AuditSink) *Engine {
	e := &Engine{cfg: cfg, sink: sink, now: time.Now}
	// Terms arrive pre-lowercased from config; (?i) still applies so the
	// match is case-insensitive over the unit texts.
	for _, term := range cfg.ForbiddenTerms {
		e.termRes = append(e.termRes, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(term)+`\b`))
	}
	return e
}

// WithClock pins the evaluation clock, making time-delay verdicts
// reproducible in tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Evaluate runs every gate against one unit and audits each verdict. The
// unit passes only when all unit-level gates pass; the forbidden-term gate
// is item-level and blocks individual texts without holding back the unit.
func (e *Engine) Evaluate(unit *schema.AggregationUnit) schema.SafetyDecision {
	now := e.now()
	decision := schema.SafetyDecision{UnitID: unit.ID}

	kAnon := e.checkKAnonymity(unit)
	delay := e.checkTimeDelay(unit, now)
	corro := e.checkCorroboration(unit, &decision)
	pinpoint := e.checkNoPinpointing(unit)
	terms := e.checkForbiddenTerms(unit, &decision)

	decision.Reasons = []schema.GateReason{kAnon, delay, corro, pinpoint, terms}
	decision.Passed = kAnon.Passed && delay.Passed && corro.Passed && pinpoint.Passed

	for _, reason := range decision.Reasons {
		e.audit(schema.NewGateDecisionRecord(unit.ID, reason.Gate, reason.Passed, reason.Detail, now))
	}
	return decision
}

// checkKAnonymity requires at least MinGroupSize distinct signals so no
// published cluster can describe a single household or person.
func (e *Engine) checkKAnonymity(unit *schema.AggregationUnit) schema.GateReason {
	size := unit.Size()
	if size < e.cfg.MinGroupSize {
		return schema.GateReason{
			Gate:   schema.KAnonymityGate,
			Detail: fmt.Sprintf("k_anonymity_fail: %d<%d", size, e.cfg.MinGroupSize),
		}
	}
	return schema.GateReason{
		Gate:   schema.KAnonymityGate,
		Passed: true,
		Detail: fmt.Sprintf("k_anonymity_pass: %d>=%d", size, e.cfg.MinGroupSize),
	}
}

// checkTimeDelay requires the newest signal to be at least BufferDelay old.
// A unit with no parseable dates fails closed.
func (e *Engine) checkTimeDelay(unit *schema.AggregationUnit, now time.Time) schema.GateReason {
	latest := unit.LatestDate()
	if latest.IsZero() {
		return schema.GateReason{
			Gate:   schema.TimeDelayGate,
			Detail: "time_delay_fail: no dated signals",
		}
	}
	age := now.Sub(latest).Truncate(time.Second)
	if age < e.cfg.BufferDelay {
		return schema.GateReason{
			Gate:   schema.TimeDelayGate,
			Detail: fmt.Sprintf("time_delay_fail: %s<%s", age, e.cfg.BufferDelay),
		}
	}
	return schema.GateReason{
		Gate:   schema.TimeDelayGate,
		Passed: true,
		Detail: fmt.Sprintf("time_delay_pass: %s>=%s", age, e.cfg.BufferDelay),
	}
}

// checkCorroboration requires signals from at least two distinct source
// categories. A unit backed by a single official source passes through a
// recorded exception that discounts confidence downstream.
func (e *Engine) checkCorroboration(unit *schema.AggregationUnit, decision *schema.SafetyDecision) schema.GateReason {
	cats := unit.SourceCategories()
	if len(cats) >= 2 {
		return schema.GateReason{
			Gate:   schema.CorroborationGate,
			Passed: true,
			Detail: fmt.Sprintf("corroboration_pass: %d distinct source categories", len(cats)),
		}
	}
	if len(cats) == 1 && cats[0] == schema.OfficialSource {
		decision.OfficialException = true
		return schema.GateReason{
			Gate:   schema.CorroborationGate,
			Passed: true,
			Detail: "corroboration_pass: single official source (exception)",
		}
	}
	return schema.GateReason{
		Gate:   schema.CorroborationGate,
		Detail: fmt.Sprintf("corroboration_fail: %d distinct source categories", len(cats)),
	}
}

// checkNoPinpointing rejects units whose texts still pin a location finer
// than ZIP5, whether as a raw street address or as an address token left by
// the scrubber.
func (e *Engine) checkNoPinpointing(unit *schema.AggregationUnit) schema.GateReason {
	texts := unit.ExportTexts()
	flagged := 0
	for _, text := range texts {
		if scrub.HasLocationFinerThanZIP(text) {
			flagged++
		}
	}
	if flagged > 0 {
		return schema.GateReason{
			Gate:   schema.NoPinpointingGate,
			Detail: fmt.Sprintf("no_pinpointing_fail: address-grade location in %d of %d texts", flagged, len(texts)),
		}
	}
	return schema.GateReason{
		Gate:   schema.NoPinpointingGate,
		Passed: true,
		Detail: "no_pinpointing_pass: zip5 granularity",
	}
}

// checkForbiddenTerms flags texts matching any configured term, whole-word
// and case-insensitive. Flagged indexes land in BlockedTexts using the
// ExportTexts ordering; the verdict never blocks the unit itself. The terms
// are not echoed into the detail.
func (e *Engine) checkForbiddenTerms(unit *schema.AggregationUnit, decision *schema.SafetyDecision) schema.GateReason {
	texts := unit.ExportTexts()
	for i, text := range texts {
		for _, re := range e.termRes {
			if re.MatchString(text) {
				decision.BlockedTexts = append(decision.BlockedTexts, i)
				break
			}
		}
	}
	if len(decision.BlockedTexts) > 0 {
		return schema.GateReason{
			Gate:   schema.ForbiddenTermGate,
			Detail: fmt.Sprintf("forbidden_term_fail: %d of %d texts flagged", len(decision.BlockedTexts), len(texts)),
		}
	}
	return schema.GateReason{
		Gate:   schema.ForbiddenTermGate,
		Passed: true,
		Detail: "forbidden_term_pass: no flagged texts",
	}
}

// audit appends one record and moves on when the sink rejects it; a failed
// audit write never changes a safety verdict.
func (e *Engine) audit(record schema.AuditRecord) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Append(record); err != nil {
		contract.LogWarn("appending gate decision", err)
	}
}
