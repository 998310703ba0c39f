// Package watermark embeds invisible provenance fingerprints into exported
// text. A 32-bit fingerprint derived from (tier, batch, time bucket) is
// spelled out in zero-width code points and tucked in after the first
// whitespace, so the visible rendering never changes but a leaked copy can
// be traced back to the batch that exported it.
package watermark

import (
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/quantumclean/heatshield/schema"
)

// The three reserved code points. Carrier text is scrubbed prose and never
// contains them; Strip removes them wherever they appear.
const (
	bitZeroRune  rune = '​' // zero width space
	bitOneRune   rune = '‌' // zero width non-joiner
	sentinelRune rune = '⁠' // word joiner
)

const (
	payloadBits = 32

	// minCarrierRunes is the shortest text worth watermarking. Anything
	// shorter is returned unchanged.
	minCarrierRunes = 3
)

// ErrNoWatermark is returned by Decode when the text carries no complete
// payload. It is a branch condition for callers, not a failure.
var ErrNoWatermark = errors.New("no watermark payload present")

var stripReplacer = strings.NewReplacer(
	string(bitZeroRune), "",
	string(bitOneRune), "",
	string(sentinelRune), "",
)

// Encode embeds the fingerprint for (tier, batchID, ts) into text. The
// payload lands immediately after the first whitespace rune, or at the end
// when the text has none. Texts shorter than three runes come back unchanged.
func Encode(text string, tier int, batchID string, ts time.Time) string {
	fp := schema.NewWatermarkPayload(tier, batchID, ts).Fingerprint()
	return encodeFingerprint(text, fp)
}

// encodeFingerprint is the single-fingerprint worker behind Encode and the
// batch path, which reuses one fingerprint across many texts.
func encodeFingerprint(text string, fp uint32) string {
	if utf8.RuneCountInString(text) < minCarrierRunes {
		return text
	}

	insertAt := len(text)
	for i, r := range text {
		if unicode.IsSpace(r) {
			insertAt = i + utf8.RuneLen(r)
			break
		}
	}
	return text[:insertAt] + encodePayload(fp) + text[insertAt:]
}

func encodePayload(fp uint32) string {
	var b strings.Builder
	b.Grow((payloadBits + 2) * 3)
	b.WriteRune(sentinelRune)
	for i := payloadBits - 1; i >= 0; i-- {
		if fp&(1<<uint(i)) != 0 {
			b.WriteRune(bitOneRune)
		} else {
			b.WriteRune(bitZeroRune)
		}
	}
	b.WriteRune(sentinelRune)
	return b.String()
}

// Decode scans for the first sentinel-delimited payload and returns its
// fingerprint. The span between the first sentinel pair must hold exactly 32
// bit runes and nothing else; any other shape is ErrNoWatermark.
func Decode(text string) (uint32, error) {
	start := strings.IndexRune(text, sentinelRune)
	if start < 0 {
		return 0, ErrNoWatermark
	}

	var fp uint32
	bits := 0
	for _, r := range text[start+utf8.RuneLen(sentinelRune):] {
		switch r {
		case bitZeroRune:
			fp <<= 1
			bits++
		case bitOneRune:
			fp = fp<<1 | 1
			bits++
		case sentinelRune:
			if bits != payloadBits {
				return 0, ErrNoWatermark
			}
			return fp, nil
		default:
			// Foreign rune inside the payload span.
			return 0, ErrNoWatermark
		}
		if bits > payloadBits {
			return 0, ErrNoWatermark
		}
	}
	// Ran out of text before the closing sentinel.
	return 0, ErrNoWatermark
}

// Strip removes every reserved code point anywhere in the text. For carrier
// text free of reserved points it is the exact left inverse of Encode,
// byte for byte.
func Strip(text string) string {
	return stripReplacer.Replace(text)
}
