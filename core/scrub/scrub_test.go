package scrub

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrubEntityFamilies(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		want     string
		entities map[string]int
	}{
		{
			name:     "ssn with dashes",
			text:     "my number is 123-45-6789 ok",
			want:     "my number is [SSN] ok",
			entities: map[string]int{EntitySSN: 1},
		},
		{
			name:     "ssn with keyword and no separators",
			text:     "SSN: 123456789",
			want:     "[SSN]",
			entities: map[string]int{EntitySSN: 1},
		},
		{
			name:     "alien registration number",
			text:     "case for A-123456789 pending",
			want:     "case for [A-NUMBER] pending",
			entities: map[string]int{EntityANumber: 1},
		},
		{
			name:     "a-number with hash",
			text:     "A# 12345678",
			want:     "[A-NUMBER]",
			entities: map[string]int{EntityANumber: 1},
		},
		{
			name:     "uscis receipt number",
			text:     "receipt EAC1234567890 was filed",
			want:     "receipt [CASE-NUMBER] was filed",
			entities: map[string]int{EntityCaseNumber: 1},
		},
		{
			name:     "lowercase receipt prefix",
			text:     "msc 0987654321",
			want:     "[CASE-NUMBER]",
			entities: map[string]int{EntityCaseNumber: 1},
		},
		{
			name:     "driver license with keyword",
			text:     "stopped with DL #D1234567 at the corner",
			want:     "stopped with [DL-NUMBER] at the corner",
			entities: map[string]int{EntityDriverLicense: 1},
		},
		{
			name:     "spelled out license",
			text:     "driver's license A1234567",
			want:     "[DL-NUMBER]",
			entities: map[string]int{EntityDriverLicense: 1},
		},
		{
			name:     "phone with punctuation",
			text:     "call (415) 555-1234 now",
			want:     "call [PHONE] now",
			entities: map[string]int{EntityPhone: 1},
		},
		{
			name:     "phone with country code",
			text:     "+1 415 555 1234",
			want:     "[PHONE]",
			entities: map[string]int{EntityPhone: 1},
		},
		{
			name:     "bare ten digit phone",
			text:     "4155551234",
			want:     "[PHONE]",
			entities: map[string]int{EntityPhone: 1},
		},
		{
			name:     "phone inside a sentence",
			text:     "Contact John at 555-123-4567 about the meeting",
			want:     "Contact John at [PHONE] about the meeting",
			entities: map[string]int{EntityPhone: 1},
		},
		{
			name:     "email",
			text:     "reach me at jane.doe+tips@example.org today",
			want:     "reach me at [EMAIL] today",
			entities: map[string]int{EntityEmail: 1},
		},
		{
			name:     "street address",
			text:     "seen at 500 Main St this morning",
			want:     "seen at [ADDRESS] this morning",
			entities: map[string]int{EntityAddress: 1},
		},
		{
			name:     "address with unit",
			text:     "lives at 1234 Mission Blvd, Apt 5B",
			want:     "lives at [ADDRESS]",
			entities: map[string]int{EntityAddress: 1},
		},
		{
			name:     "clean text untouched",
			text:     "a crowd gathered near the plaza today",
			want:     "a crowd gathered near the plaza today",
			entities: map[string]int{},
		},
		{
			name:     "zip5 alone is allowed granularity",
			text:     "reports from 94103 continue",
			want:     "reports from 94103 continue",
			entities: map[string]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clean, entities := Scrub(tt.text)
			assert.Equal(t, tt.want, clean, "Scrub(%q) text", tt.text)
			assert.Equal(t, tt.entities, entities, "Scrub(%q) entity counts", tt.text)
		})
	}
}

func TestScrubMixedEntities(t *testing.T) {
	text := "John at 500 Main St, ssn 123-45-6789, cell 415-555-1234, john@x.org and 650.555.0000"
	clean, entities := Scrub(text)

	// Nothing recognizable survives.
	assert.NotContains(t, clean, "123-45-6789")
	assert.NotContains(t, clean, "415-555-1234")
	assert.NotContains(t, clean, "john@x.org")
	assert.NotContains(t, clean, "500 Main St")

	assert.Equal(t, 1, entities[EntitySSN])
	assert.Equal(t, 2, entities[EntityPhone])
	assert.Equal(t, 1, entities[EntityEmail])
	assert.Equal(t, 1, entities[EntityAddress])
}

func TestScrubOrderingPrefersSpecificPatterns(t *testing.T) {
	// An SSN shape must be counted as SSN, never as a phone number, and a
	// receipt number never as a bare digit run.
	clean, entities := Scrub("123-45-6789 and WAC-1234567890")
	assert.Equal(t, "[SSN] and [CASE-NUMBER]", clean)
	assert.Equal(t, map[string]int{EntitySSN: 1, EntityCaseNumber: 1}, entities)
	assert.Zero(t, entities[EntityPhone], "ssn shape must not be double counted as phone")
}

func TestScrubIdempotent(t *testing.T) {
	texts := []string{
		"ssn 123-45-6789 and phone 415-555-1234",
		"A#123456789 seen at 42 Oak Ave",
		"clean text with numbers 42 and 94103",
		"mail to a@b.co or call (650) 555-0000",
	}

	for _, text := range texts {
		once, _ := Scrub(text)
		twice, entities := Scrub(once)
		assert.Equal(t, once, twice, "second scrub must not change %q", once)
		assert.Empty(t, entities, "second scrub must find nothing in %q", once)
	}
}

func TestScrubNeverReturnsOriginalOnMatch(t *testing.T) {
	text := "call 415-555-1234"
	clean, entities := Scrub(text)
	require.NotEmpty(t, entities)
	assert.NotEqual(t, text, clean, "matched text must always be rewritten")
}

// countingRecognizer redacts a fixed marker word for chain tests.
type countingRecognizer struct{}

func (c *countingRecognizer) Name() string { return "marker" }

func (c *countingRecognizer) Redact(text string) (string, map[string]int) {
	n := strings.Count(text, "MARKER")
	if n == 0 {
		return text, map[string]int{}
	}
	return strings.ReplaceAll(text, "MARKER", "[X]"), map[string]int{"MARKER": n}
}

func TestScrubberChain(t *testing.T) {
	s := NewWithRecognizers(&countingRecognizer{}, NewRegexRecognizer())
	assert.Equal(t, "recognizer=marker+regex", s.Detail())

	clean, entities := s.Scrub("MARKER calls 415-555-1234")
	assert.Equal(t, "[X] calls [PHONE]", clean)
	assert.Equal(t, 1, entities["MARKER"])
	assert.Equal(t, 1, entities[EntityPhone])
}

func TestScrubberDefaultDetail(t *testing.T) {
	assert.Equal(t, "recognizer=regex", New().Detail())

	// An empty chain falls back to the default table.
	empty := NewWithRecognizers()
	assert.Equal(t, "recognizer=regex", empty.Detail())
	clean, _ := empty.Scrub("415-555-1234")
	assert.Equal(t, "[PHONE]", clean)
}

func TestAdvancedFallback(t *testing.T) {
	// No factory is registered in this build, so loading must fail exactly
	// once and every caller after that sees the same degraded scrubber.
	assert.False(t, AdvancedAvailable("/nonexistent/model"))

	s, err := NewAdvanced("/nonexistent/model")
	require.ErrorIs(t, err, ErrAdvancedUnavailable)
	require.NotNil(t, s, "degraded scrubber must still work")
	assert.Equal(t, "recognizer=regex (advanced unavailable)", s.Detail())

	// The degraded scrubber still redacts with the regex table.
	clean, entities := s.Scrub("ssn 123-45-6789")
	assert.Equal(t, "[SSN]", clean)
	assert.Equal(t, 1, entities[EntitySSN])

	// Registering after the first load is a no-op for this process.
	RegisterAdvancedFactory(func(string) (Recognizer, error) {
		return NewRegexRecognizer(), nil
	})
	assert.False(t, AdvancedAvailable("/nonexistent/model"), "load outcome is pinned process-wide")
}

func TestHasLocationFinerThanZIP(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "raw street address",
			text: "gathering at 1234 Mission St around noon",
			want: true,
		},
		{
			name: "token left by an earlier scrub pass",
			text: "gathering at [ADDRESS] around noon",
			want: true,
		},
		{
			name: "zip only",
			text: "activity reported in 94103 today",
			want: false,
		},
		{
			name: "neighborhood phrasing",
			text: "near the east side of the park",
			want: false,
		},
		{
			name: "empty text",
			text: "",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasLocationFinerThanZIP(tt.text), "text: %s", tt.text)
		})
	}
}

func BenchmarkScrub(b *testing.B) {
	text := strings.Repeat("crowd reported near 500 Main St, call 415-555-1234 or mail tips@example.org. ", 8)
	b.ReportAllocs()
	for b.Loop() {
		_, _ = Scrub(text)
	}
}
