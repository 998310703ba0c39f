package outwriter

import (
	"fmt"
	"time"

	"github.com/quantumclean/heatshield/internal/contract"
)

// windowLabel renders a window bound; a zero bound means the window comes
// from the signal dates themselves.
func windowLabel(t time.Time) string {
	if t.IsZero() {
		return "from signals"
	}
	return t.Format(contract.DateTimeFormat)
}

// LogRunHeader prints a concise, 2-line header for each pipeline run.
func LogRunHeader(cfg *contract.Config, unitCount int) {
	if cfg.UseEmojis {
		fmt.Printf("🛡️ Gate: %d units (min group %d, delay %s)\n", unitCount, cfg.MinGroupSize, cfg.BufferDelay)
		fmt.Printf("📅 Range: %s → %s\n", windowLabel(cfg.StartTime), windowLabel(cfg.EndTime))
		return
	}
	fmt.Printf("Gate: %d units (min group %d, delay %s)\n", unitCount, cfg.MinGroupSize, cfg.BufferDelay)
	fmt.Printf("Range: %s -> %s\n", windowLabel(cfg.StartTime), windowLabel(cfg.EndTime))
}
