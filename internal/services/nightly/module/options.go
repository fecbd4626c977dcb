package module

import (
	"strings"
	"time"

	"obsledger/internal/platform/config"
)

// Options holds configuration settings for the nightly module
type Options struct {
	GapThreshold time.Duration
	ShiftEnds    map[string]time.Duration
}

// FromConfig reads configuration settings from the config.Conf
func FromConfig(cfg config.Conf) Options {
	nf := cfg.Prefix("CORE_NIGHTLY_")
	return Options{
		GapThreshold: nf.MayDuration("GAP_THRESHOLD", 5*time.Minute),
		ShiftEnds:    parseShiftEnds(nf.MayString("SHIFT_ENDS", "")),
	}
}

// parseShiftEnds reads "JCMT=9h30m,UKIRT=10h" style pairs; malformed pairs
// are dropped rather than failing boot
func parseShiftEnds(raw string) map[string]time.Duration {
	out := make(map[string]time.Duration)
	for _, pair := range strings.Split(raw, ",") {
		tel, val, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil || d <= 0 {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(tel))] = d
	}
	return out
}
