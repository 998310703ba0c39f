// Package schema has the shared data model, typed constants and helpers for
// all parts of heatshield.
package schema

import (
	"fmt"
	"time"
)

// DateFormat is the ISO-8601 date layout used by signal dates and time windows.
const DateFormat = "2006-01-02"

// Signal is a single scraped text fragment with its location, source and
// timestamp. Signals are owned by the ingestion collaborator until handed to
// this core; the core never mutates a Signal in place, it produces derived,
// scrubbed copies.
type Signal struct {
	Text       string         `json:"text" validate:"required"`
	Source     string         `json:"source" validate:"required"`
	Category   SourceCategory `json:"category" validate:"required"`
	ZIP        string         `json:"zip" validate:"required,len=5,numeric"`
	Date       string         `json:"date" validate:"required,datetime=2006-01-02"`
	URL        string         `json:"url,omitempty" validate:"omitempty,url"`
	MediaCount int            `json:"media_count" validate:"gte=0"`
}

// Time parses the signal's date into a time.Time.
func (s *Signal) Time() (time.Time, error) {
	return time.Parse(DateFormat, s.Date)
}

// TimeWindow is an inclusive ISO-8601 date range. Both endpoints must parse
// and Start must not be after End; use NewTimeWindow or Validate to enforce
// this on data decoded straight from JSON.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NewTimeWindow builds a validated TimeWindow.
func NewTimeWindow(start, end string) (TimeWindow, error) {
	w := TimeWindow{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return TimeWindow{}, err
	}
	return w, nil
}

// Validate checks that both endpoints parse as dates and are ordered.
func (w TimeWindow) Validate() error {
	start, err := time.Parse(DateFormat, w.Start)
	if err != nil {
		return &ValidationError{Field: "window.start", Reason: fmt.Sprintf("%q is not a valid ISO-8601 date", w.Start)}
	}
	end, err := time.Parse(DateFormat, w.End)
	if err != nil {
		return &ValidationError{Field: "window.end", Reason: fmt.Sprintf("%q is not a valid ISO-8601 date", w.End)}
	}
	if start.After(end) {
		return &ValidationError{Field: "window", Reason: fmt.Sprintf("start %s is after end %s", w.Start, w.End)}
	}
	return nil
}

// StartTime returns the parsed start date. The zero time is returned for
// windows that never passed Validate.
func (w TimeWindow) StartTime() time.Time {
	t, _ := time.Parse(DateFormat, w.Start)
	return t
}

// EndTime returns the parsed end date.
func (w TimeWindow) EndTime() time.Time {
	t, _ := time.Parse(DateFormat, w.End)
	return t
}

// Days returns the inclusive number of days covered by the window.
func (w TimeWindow) Days() int {
	start, end := w.StartTime(), w.EndTime()
	if start.IsZero() || end.IsZero() || start.After(end) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// AggregationUnit is a cluster of signals that share a ZIP and a time window,
// produced by the external clustering collaborator. The safety gates consume
// it read-only and derive size, sources and latest date from the embedded
// signals rather than trusting upstream counters.
type AggregationUnit struct {
	ID                 string     `json:"id"`
	ZIP                string     `json:"zip"`
	Window             TimeWindow `json:"window"`
	RepresentativeText string     `json:"representative_text"`
	Signals            []Signal   `json:"signals"`
}

// Size returns the count of distinct contributing signals. Two signals are
// the same contribution when text, source and date all match.
func (u *AggregationUnit) Size() int {
	seen := make(map[string]struct{}, len(u.Signals))
	for _, s := range u.Signals {
		key := s.Date + "\x00" + s.Source + "\x00" + s.Text
		seen[key] = struct{}{}
	}
	return len(seen)
}

// SourceCategories returns the distinct source categories contributing to the
// unit, in canonical category order. Unknown categories count as OtherSource.
func (u *AggregationUnit) SourceCategories() []SourceCategory {
	present := make(map[SourceCategory]bool, len(AllSourceCategories))
	for _, s := range u.Signals {
		present[NormalizeSourceCategory(s.Category)] = true
	}
	var out []SourceCategory
	for _, c := range AllSourceCategories {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

// LatestDate returns the most recent signal date in the unit, or the zero
// time for an empty unit.
func (u *AggregationUnit) LatestDate() time.Time {
	var latest time.Time
	for _, s := range u.Signals {
		t, err := s.Time()
		if err != nil {
			continue
		}
		if t.After(latest) {
			latest = t
		}
	}
	return latest
}

// ExportTexts returns every text field the unit would expose to a consumer:
// the representative text first, then each signal text.
func (u *AggregationUnit) ExportTexts() []string {
	texts := make([]string, 0, len(u.Signals)+1)
	if u.RepresentativeText != "" {
		texts = append(texts, u.RepresentativeText)
	}
	for _, s := range u.Signals {
		texts = append(texts, s.Text)
	}
	return texts
}

// SourceBreakdown holds non-negative signal counts per source category.
type SourceBreakdown struct {
	News      int `json:"news"`
	Community int `json:"community"`
	Advocacy  int `json:"advocacy"`
	Official  int `json:"official"`
	Other     int `json:"other"`
	Total     int `json:"total"`
}

// BuildSourceBreakdown tallies the signals by category. Categories outside
// the canonical set roll up into Other.
func BuildSourceBreakdown(signals []Signal) SourceBreakdown {
	var b SourceBreakdown
	for _, s := range signals {
		switch NormalizeSourceCategory(s.Category) {
		case NewsSource:
			b.News++
		case CommunitySource:
			b.Community++
		case AdvocacySource:
			b.Advocacy++
		case OfficialSource:
			b.Official++
		default:
			b.Other++
		}
		b.Total++
	}
	return b
}

// Distinct returns the number of categories with at least one signal.
func (b SourceBreakdown) Distinct() int {
	n := 0
	for _, c := range []int{b.News, b.Community, b.Advocacy, b.Official, b.Other} {
		if c > 0 {
			n++
		}
	}
	return n
}

// GateReason is one gate's verdict inside a SafetyDecision.
type GateReason struct {
	Gate   GateName `json:"gate"`
	Passed bool     `json:"passed"`
	Detail string   `json:"detail"`
}

// SafetyDecision is the outcome of evaluating every safety gate against one
// aggregation unit. It is never user-facing data; it flows to the audit sink
// and to the release step only.
type SafetyDecision struct {
	UnitID  string       `json:"unit_id"`
	Passed  bool         `json:"passed"`
	Reasons []GateReason `json:"reasons"`

	// OfficialException is set when the corroboration gate passed solely
	// through the trusted single-official-source exception; the result
	// builder discounts confidence when it is set.
	OfficialException bool `json:"official_exception,omitempty"`

	// BlockedTexts carries the indexes of unit texts removed by the
	// forbidden-term gate. Index 0 is the representative text; index i+1 is
	// signal i, matching AggregationUnit.ExportTexts ordering.
	BlockedTexts []int `json:"blocked_texts,omitempty"`
}

// Reason returns the recorded verdict for a gate, if present.
func (d *SafetyDecision) Reason(gate GateName) (GateReason, bool) {
	for _, r := range d.Reasons {
		if r.Gate == gate {
			return r, true
		}
	}
	return GateReason{}, false
}
