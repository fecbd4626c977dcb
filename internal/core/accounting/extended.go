package accounting

import (
	"strings"
	"time"
)

// ExtendedCalculator splits a record's wall-clock time into regular shift
// time and extended (out-of-shift) time for a telescope
type ExtendedCalculator interface {
	DetermineExtended(duration time.Duration, start, end time.Time, telescope string) (spent, extended time.Duration)
}

// WindowExtended treats anything observed after a telescope's nominal
// shift end as extended time. Shift ends are offsets from UT midnight of
// the day the record started; telescopes without a window never accrue
// extended time
type WindowExtended struct {
	shiftEnd map[string]time.Duration
}

// NewWindowExtended builds a calculator from telescope -> shift-end offsets
func NewWindowExtended(shiftEnd map[string]time.Duration) *WindowExtended {
	m := make(map[string]time.Duration, len(shiftEnd))
	for tel, off := range shiftEnd {
		m[strings.ToUpper(tel)] = off
	}
	return &WindowExtended{shiftEnd: m}
}

// DetermineExtended implements ExtendedCalculator. The total is End-Start
// when both bounds are known, otherwise the supplied duration
func (w *WindowExtended) DetermineExtended(duration time.Duration, start, end time.Time, telescope string) (time.Duration, time.Duration) {
	total := duration
	if !start.IsZero() && !end.IsZero() {
		total = end.Sub(start)
	}
	if total < 0 {
		total = 0
	}

	off, ok := w.shiftEnd[strings.ToUpper(telescope)]
	if !ok || start.IsZero() || end.IsZero() {
		return total, 0
	}

	day := start.UTC().Truncate(24 * time.Hour)
	boundary := day.Add(off)
	if !end.After(boundary) {
		return total, 0
	}

	from := start
	if boundary.After(from) {
		from = boundary
	}
	extended := end.Sub(from)
	if extended > total {
		extended = total
	}
	return total - extended, extended
}
