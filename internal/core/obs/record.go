// Package obs defines the normalized observation records the accounting
// pipeline works on: science/calibration observations, synthesized time
// gaps, and the comments attached to either
package obs

import (
	"strings"
	"time"

	perr "obsledger/internal/platform/errors"

	"github.com/google/uuid"
)

// TimeGapProject is the display project id carried by every synthesized gap.
// The accounting engine maps gap status onto synthetic project keys instead
const TimeGapProject = "TIMEGAP"

// GapStatus classifies why a time gap occurred
type GapStatus uint8

const (
	// GapUnknown is the default classification for an unexplained gap
	GapUnknown GapStatus = iota
	// GapWeather marks time lost to weather
	GapWeather
	// GapInstrument marks time spent switching or fixing instruments
	GapInstrument
	// GapFault marks time covered by a fault report, accounted elsewhere
	GapFault
	// GapNextProject charges the gap to the following project
	GapNextProject
	// GapPrevProject charges the gap to the preceding project
	GapPrevProject
)

// String returns the canonical name for the status
func (s GapStatus) String() string {
	switch s {
	case GapWeather:
		return "WEATHER"
	case GapInstrument:
		return "INSTRUMENT"
	case GapFault:
		return "FAULT"
	case GapNextProject:
		return "NEXT_PROJECT"
	case GapPrevProject:
		return "PREV_PROJECT"
	default:
		return "UNKNOWN"
	}
}

// ParseGapStatus maps a stored status name back to a GapStatus
func ParseGapStatus(s string) GapStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WEATHER":
		return GapWeather
	case "INSTRUMENT":
		return GapInstrument
	case "FAULT":
		return GapFault
	case "NEXT_PROJECT":
		return GapNextProject
	case "PREV_PROJECT":
		return GapPrevProject
	default:
		return GapUnknown
	}
}

// Comment is a timestamped, authored annotation on an observation or gap.
// Status, when set, overrides the owning record's classification
type Comment struct {
	ID     string
	Author string
	Text   string
	Date   time.Time
	Status *GapStatus
}

// now is a seam for tests that pin defaulted comment dates
var now = time.Now

// NewComment builds a Comment with a fresh id; text must be non-empty.
// A zero date defaults to now (UTC)
func NewComment(author, text string, date time.Time, status *GapStatus) (Comment, error) {
	if strings.TrimSpace(text) == "" {
		return Comment{}, perr.InvalidArgf("comment text must be non-empty")
	}
	if date.IsZero() {
		date = now().UTC()
	}
	return Comment{
		ID:     uuid.NewString(),
		Author: author,
		Text:   text,
		Date:   date,
		Status: status,
	}, nil
}

// Span is the descriptive surface shared by observations and time gaps
type Span struct {
	Instrument string
	Telescope  string
	RunNumber  int
	Start      time.Time
	End        time.Time
}

// Record is the capability set common to observations and time gaps
type Record interface {
	// Bounds returns the shared descriptive fields
	Bounds() Span
	// Project returns the owning project id, uppercased for comparison
	Project() string
	// Elapsed returns the best-effort wall-clock time covered by the record
	Elapsed() time.Duration
	// IsGap reports whether the record is a synthesized time gap
	IsGap() bool
}

// Observation is one normalized exposure/integration as produced by the
// archive's header translation. Exactly one of Science/SciCal/GenCal holds
type Observation struct {
	Span

	ProjectID string
	ObsID     string

	// Duration may be supplied independently of Start/End
	Duration time.Duration

	Science bool
	SciCal  bool
	GenCal  bool

	// CalType matches a science observation to the calibration time it
	// requires; equal to ProjectID for self-calibrating projects
	CalType string
	Mode    string

	Headers  map[string]string
	Comments []Comment
}

// Bounds implements Record
func (o *Observation) Bounds() Span { return o.Span }

// Project implements Record
func (o *Observation) Project() string { return strings.ToUpper(o.ProjectID) }

// Elapsed prefers the supplied duration and falls back to End-Start
func (o *Observation) Elapsed() time.Duration {
	if o.Duration > 0 {
		return o.Duration
	}
	if !o.Start.IsZero() && !o.End.IsZero() {
		return o.End.Sub(o.Start)
	}
	return 0
}

// IsGap implements Record
func (o *Observation) IsGap() bool { return false }

// EffectiveCalType returns CalType, defaulting to the project id
func (o *Observation) EffectiveCalType() string {
	if o.CalType != "" {
		return strings.ToUpper(o.CalType)
	}
	return o.Project()
}

// LatestComment returns the most recent comment, or nil when none exist.
// Most recent wins when a comment carries a status override
func (o *Observation) LatestComment() *Comment { return latest(o.Comments) }

// TimeGap is a synthesized record covering idle time between observations
type TimeGap struct {
	Span

	Status   GapStatus
	Comments []Comment
}

// Bounds implements Record
func (t *TimeGap) Bounds() Span { return t.Span }

// Project implements Record
func (t *TimeGap) Project() string { return TimeGapProject }

// Elapsed implements Record
func (t *TimeGap) Elapsed() time.Duration {
	if t.Start.IsZero() || t.End.IsZero() {
		return 0
	}
	return t.End.Sub(t.Start)
}

// IsGap implements Record
func (t *TimeGap) IsGap() bool { return true }

// LatestComment returns the most recent comment, or nil when none exist
func (t *TimeGap) LatestComment() *Comment { return latest(t.Comments) }

// AttachComments appends comments and reseeds the status from the most
// recent comment that carries one. Comments without a status never clear
// an earlier explicit classification
func (t *TimeGap) AttachComments(cs []Comment) {
	t.Comments = append(t.Comments, cs...)
	var best *Comment
	for i := range t.Comments {
		c := &t.Comments[i]
		if c.Status == nil {
			continue
		}
		if best == nil || c.Date.After(best.Date) {
			best = c
		}
	}
	if best != nil {
		t.Status = *best.Status
	}
}

func latest(cs []Comment) *Comment {
	if len(cs) == 0 {
		return nil
	}
	best := 0
	for i := 1; i < len(cs); i++ {
		if cs[i].Date.After(cs[best].Date) {
			best = i
		}
	}
	return &cs[best]
}
