package schema

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ValidationError signals a schema-level invariant violation: a malformed
// window, an out-of-range score, a bad zip. It marks an upstream bug, never
// a recoverable user condition, so callers fail the affected result rather
// than patching the value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NormalizeZIP zero-pads a numeric zip to exactly 5 digits. Anything that is
// not 1 to 5 ASCII digits after trimming fails.
func NormalizeZIP(zip string) (string, error) {
	trimmed := strings.TrimSpace(zip)
	if trimmed == "" || len(trimmed) > 5 {
		return "", &ValidationError{Field: "zip", Reason: fmt.Sprintf("%q is not a 5-digit zip", zip)}
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return "", &ValidationError{Field: "zip", Reason: fmt.Sprintf("%q is not a 5-digit zip", zip)}
		}
	}
	return strings.Repeat("0", 5-len(trimmed)) + trimmed, nil
}

// Round3 rounds to 3 decimal places, the precision all exported scores,
// confidences and slopes carry.
func Round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
