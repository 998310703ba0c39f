// Package scrub removes personally identifying information from signal text
// before anything downstream sees it. Matches are replaced with bracketed
// category tokens; only counts per entity type leave this package, never the
// matched substrings themselves.
package scrub

import (
	"regexp"
	"strings"
)

// Entity count keys reported per scrub. These are stable identifiers that
// appear in audit records, so renaming one is a schema change.
const (
	EntitySSN           = "SSN"
	EntityANumber       = "A_NUMBER"
	EntityCaseNumber    = "CASE_NUMBER"
	EntityDriverLicense = "DRIVER_LICENSE"
	EntityPhone         = "PHONE_NUMBER"
	EntityEmail         = "EMAIL"
	EntityAddress       = "ADDRESS"
)

// piiPattern pairs a compiled expression with its replacement token and the
// entity key counted in audit records.
type piiPattern struct {
	key   string
	token string
	re    *regexp.Regexp
}

// regexTable is the default ordered recognition table. Order matters:
// identifiers with distinctive shapes run before the broader numeric
// patterns so an SSN is never counted as a phone number. Every replacement
// token is digit-free, which is what makes scrubbing idempotent.
var regexTable = []piiPattern{
	{
		// Separated form always, unseparated only behind the SSN keyword.
		key:   EntitySSN,
		token: "[SSN]",
		re:    regexp.MustCompile(`(?i)\b(?:ssn[ :#]*\d{3}[- ]?\d{2}[- ]?\d{4}|\d{3}[- ]\d{2}[- ]\d{4})\b`),
	},
	{
		key:   EntityANumber,
		token: "[A-NUMBER]",
		re:    regexp.MustCompile(`(?i)\bA(?:[-#] ?)?\d{8,9}\b`),
	},
	{
		// USCIS receipt numbers: a service-center prefix plus 10 digits.
		key:   EntityCaseNumber,
		token: "[CASE-NUMBER]",
		re:    regexp.MustCompile(`(?i)\b(?:EAC|WAC|LIN|SRC|NBC|MSC|IOE|YSC)[- ]?\d{10}\b`),
	},
	{
		// Keyword-anchored so plain serial numbers do not false-positive.
		key:   EntityDriverLicense,
		token: "[DL-NUMBER]",
		re:    regexp.MustCompile(`(?i)\b(?:driver'?s? licen[sc]e|lic|dl)\.?\s*(?:#|no\.?|number)?\s*:?\s*[A-Z]?\d{5,12}\b`),
	},
	{
		// Boundary sits after the country code so "+1 ..." redacts whole,
		// while digits inside longer runs stay unmatched.
		key:   EntityPhone,
		token: "[PHONE]",
		re:    regexp.MustCompile(`(?:\+?1[-. ]?)?\(?\b\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`),
	},
	{
		key:   EntityEmail,
		token: "[EMAIL]",
		re:    regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
	},
	{
		// Street-level addresses; city/state/zip stay since ZIP-5 is the
		// finest location granularity allowed to surface.
		key:   EntityAddress,
		token: "[ADDRESS]",
		re: regexp.MustCompile(`(?i)\b\d{1,5} (?:[a-z0-9'.-]+ ){1,3}` +
			`(?:street|st|avenue|ave|boulevard|blvd|drive|dr|road|rd|lane|ln|court|ct|place|pl|way|terrace|ter|circle|cir|parkway|pkwy|highway|hwy)\b\.?` +
			`(?:,? (?:apt|unit|suite|ste|#)\.? ?[a-z0-9-]+)?`),
	},
}

// RegexRecognizer redacts with the fixed ordered pattern table. It is the
// default recognizer and the deterministic fallback for every other one.
type RegexRecognizer struct {
	table []piiPattern
}

var _ Recognizer = (*RegexRecognizer)(nil)

// NewRegexRecognizer returns a recognizer over the default pattern table.
func NewRegexRecognizer() *RegexRecognizer {
	return &RegexRecognizer{table: regexTable}
}

// Name identifies the recognizer in audit details.
func (r *RegexRecognizer) Name() string {
	return "regex"
}

// Redact replaces every match in table order and counts replacements per
// entity key. The returned map is empty when nothing matched.
func (r *RegexRecognizer) Redact(text string) (string, map[string]int) {
	entities := make(map[string]int)
	for _, p := range r.table {
		n := len(p.re.FindAllStringIndex(text, -1))
		if n == 0 {
			continue
		}
		entities[p.key] += n
		text = p.re.ReplaceAllString(text, p.token)
	}
	return text, entities
}

// Scrubber runs one or more recognizers in order over a text. Later
// recognizers see the output of earlier ones.
type Scrubber struct {
	recognizers []Recognizer
	detail      string
}

// New returns a Scrubber over the default regex table.
func New() *Scrubber {
	return &Scrubber{
		recognizers: []Recognizer{NewRegexRecognizer()},
		detail:      "recognizer=regex",
	}
}

// NewWithRecognizers returns a Scrubber over a custom recognizer chain.
// An empty chain falls back to the default regex table.
func NewWithRecognizers(recs ...Recognizer) *Scrubber {
	if len(recs) == 0 {
		return New()
	}
	names := ""
	for i, r := range recs {
		if i > 0 {
			names += "+"
		}
		names += r.Name()
	}
	return &Scrubber{recognizers: recs, detail: "recognizer=" + names}
}

// Scrub redacts text through the recognizer chain and merges entity counts.
// The original text is never returned once any pattern matched.
func (s *Scrubber) Scrub(text string) (string, map[string]int) {
	entities := make(map[string]int)
	for _, rec := range s.recognizers {
		clean, found := rec.Redact(text)
		for key, n := range found {
			entities[key] += n
		}
		text = clean
	}
	return text, entities
}

// Detail reports the active recognizer chain for audit records, including
// any degradation note.
func (s *Scrubber) Detail() string {
	return s.detail
}

// defaultScrubber backs the package-level Scrub.
var defaultScrubber = New()

// Scrub redacts text with the default regex recognizer.
func Scrub(text string) (string, map[string]int) {
	return defaultScrubber.Scrub(text)
}

// addressRe is the street-address pattern from the table, kept addressable
// for location checks on already-scrubbed text.
var addressRe = regexTable[len(regexTable)-1].re

// HasLocationFinerThanZIP reports whether text still carries a location
// more precise than a ZIP5: either a raw street address the table would
// match, or an address token left by an earlier scrub pass.
func HasLocationFinerThanZIP(text string) bool {
	if strings.Contains(text, "[ADDRESS]") {
		return true
	}
	return addressRe.MatchString(text)
}
