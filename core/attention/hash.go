package attention

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/quantumclean/heatshield/schema"
)

// sortKeyTextLen is how much of a signal's text participates in canonical
// ordering. Ordering only needs a stable tiebreak; the full text still feeds
// the digest.
const sortKeyTextLen = 100

func sortKeyText(text string) string {
	if len(text) > sortKeyTextLen {
		return text[:sortKeyTextLen]
	}
	return text
}

// ComputeInputsHash derives the content hash recorded in a result's
// provenance. The signal list is canonicalized by sorting on (date, source,
// text prefix), each signal is serialized as a JSON object with sorted keys
// and no incidental whitespace, and the concatenation is digested with
// SHA-256. Two calls with the same multiset of signals in any order produce
// the same hash.
func ComputeInputsHash(signals []schema.Signal) string {
	sorted := slices.Clone(signals)
	slices.SortStableFunc(sorted, func(a, b schema.Signal) int {
		if c := strings.Compare(a.Date, b.Date); c != 0 {
			return c
		}
		if c := strings.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		if c := strings.Compare(sortKeyText(a.Text), sortKeyText(b.Text)); c != 0 {
			return c
		}
		// Ties on the canonical key fall through to the remaining fields so
		// that distinct signals always have one order and the hash stays
		// independent of input order.
		if c := strings.Compare(a.Text, b.Text); c != 0 {
			return c
		}
		if c := strings.Compare(string(a.Category), string(b.Category)); c != 0 {
			return c
		}
		if c := strings.Compare(a.ZIP, b.ZIP); c != 0 {
			return c
		}
		if c := strings.Compare(a.URL, b.URL); c != 0 {
			return c
		}
		return a.MediaCount - b.MediaCount
	})

	h := sha256.New()
	for _, s := range sorted {
		// encoding/json marshals map keys in sorted order, which gives a
		// canonical byte form without a custom encoder.
		entry := map[string]any{
			"category":    string(s.Category),
			"date":        s.Date,
			"media_count": s.MediaCount,
			"source":      s.Source,
			"text":        s.Text,
			"url":         s.URL,
			"zip":         s.ZIP,
		}
		data, _ := json.Marshal(entry)
		h.Write(data)
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil))
}
