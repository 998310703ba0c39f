package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/quantumclean/heatshield/schema"
)

// Attention label constants.
const (
	HighValue     = "High"     // High attention value
	ElevatedValue = "Elevated" // Elevated attention value
	ModerateValue = "Moderate" // Moderate value
	QuietValue    = "Quiet"    // Quiet value
)

// Gate verdict label constants.
const (
	PassValue  = "PASS"  // Unit cleared every gate
	BlockValue = "BLOCK" // At least one gate withheld the unit
)

// Color variables for console output.
var (
	HighColor     = color.New(color.FgRed, color.Bold)     // highColor represents standard danger.
	ElevatedColor = color.New(color.FgMagenta, color.Bold) // elevatedColor represents strong, distinct warning.
	ModerateColor = color.New(color.FgYellow)              // moderateColor represents standard caution, not bold.
	QuietColor    = color.New(color.FgCyan)                // quietColor represents informational / low-priority signal.
	PassColor     = color.New(color.FgGreen)               // passColor marks a cleared unit.
	BlockColor    = color.New(color.FgRed, color.Bold)     // blockColor marks a withheld unit.
)

// GetPlainLabel returns a plain text label for an attention state.
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(state schema.AttentionState) string {
	switch state {
	case schema.HighState:
		return HighValue
	case schema.ElevatedState:
		return ElevatedValue
	case schema.ModerateState:
		return ModerateValue
	default:
		return QuietValue
	}
}

// GetColorLabel returns a colored text label for console output (table).
// It uses GetPlainLabel to determine the string, and then applies the appropriate color.
func GetColorLabel(state schema.AttentionState) string {
	text := GetPlainLabel(state)

	switch text {
	case HighValue:
		return HighColor.Sprint(text)
	case ElevatedValue:
		return ElevatedColor.Sprint(text)
	case ModerateValue:
		return ModerateColor.Sprint(text)
	default: // "Quiet"
		return QuietColor.Sprint(text)
	}
}

// GetEmojiLabel returns the emoji marker for an attention state, used in
// output headers when emojis are enabled.
func GetEmojiLabel(state schema.AttentionState) string {
	switch state {
	case schema.HighState:
		return "🔴"
	case schema.ElevatedState:
		return "🟠"
	case schema.ModerateState:
		return "🟡"
	default:
		return "⚪"
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path and format type. It falls back to os.Stdout on error.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetAuditDirPath returns the default directory for JSONL audit logs.
func GetAuditDirPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".heatshield_audit"
	}
	return filepath.Join(homeDir, ".heatshield", "audit")
}

// GetAuditDBFilePath returns the path to the SQLite DB file for audit storage.
func GetAuditDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".heatshield_audit.db"
	}
	return filepath.Join(homeDir, ".heatshield_audit.db")
}

// TruncateText truncates display text to a maximum width with an ellipsis suffix.
// Requires maxWidth > 3 to ensure there's space for both the "..." suffix and at
// least one character of content. Without this check, small maxWidth values could
// cause slice bounds errors in the truncation calculation.
func TruncateText(text string, maxWidth int) string {
	runes := []rune(text)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return text
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
