// Package gaps synthesizes TimeGap records for idle stretches between
// observations. Overlapping observations never produce a gap; only wall
// clock time during which nothing at all was observing counts
package gaps

import (
	"context"
	"sort"
	"time"

	"obsledger/internal/core/obs"
	perr "obsledger/internal/platform/errors"
)

// CommentSource looks up operator comments overlapping a gap window so the
// synthesized gap can inherit a classification
type CommentSource interface {
	GapComments(ctx context.Context, instrument string, start, end time.Time) ([]obs.Comment, error)
}

type event struct {
	at    time.Time
	delta int
	idx   int // index into the observation list, set on open events
}

// Locate scans the group for idle time of at least threshold and appends a
// TimeGap per stretch, then re-sorts the group chronologically. Gaps already
// in the group suppress re-detection of their window, so a second call over
// the same group is a no-op.
//
// The sweep counts concurrently running observations; a gap can only open
// while that count is zero, which makes overlapping observations safe
func Locate(ctx context.Context, g *obs.Group, threshold time.Duration, comments CommentSource) error {
	if g == nil {
		return perr.InvalidArgf("group is nil")
	}
	if threshold <= 0 {
		return perr.InvalidArgf("gap threshold must be positive")
	}

	g.SortByStart()

	var (
		list     []*obs.Observation
		existing []*obs.TimeGap
	)
	for _, r := range g.Records() {
		switch v := r.(type) {
		case *obs.Observation:
			if v.Start.IsZero() || v.End.IsZero() || v.End.Before(v.Start) {
				continue
			}
			list = append(list, v)
		case *obs.TimeGap:
			existing = append(existing, v)
		}
	}
	if len(list) < 2 {
		return nil
	}

	events := make([]event, 0, 2*len(list))
	for i, o := range list {
		events = append(events,
			event{at: o.Start, delta: +1, idx: i},
			event{at: o.End, delta: -1},
		)
	}
	// Close events sort before open events at the same instant so that
	// back-to-back observations never register a zero-length gap
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].at.Equal(events[j].at) {
			return events[i].at.Before(events[j].at)
		}
		return events[i].delta < events[j].delta
	})

	var (
		depth    int
		lastZero time.Time
		idle     bool
		found    []*obs.TimeGap
	)
	for _, ev := range events {
		if ev.delta > 0 && idle && ev.idx > 0 {
			cur, prev := list[ev.idx], list[ev.idx-1]
			if span := ev.at.Sub(lastZero); span >= threshold && !covered(existing, prev.End, cur.Start) {
				tg := &obs.TimeGap{
					Span: obs.Span{
						Instrument: cur.Instrument,
						Telescope:  cur.Telescope,
						RunNumber:  cur.RunNumber,
						Start:      prev.End,
						End:        cur.Start.Add(-time.Second),
					},
				}
				if comments != nil {
					cs, err := comments.GapComments(ctx, cur.Instrument, tg.Start, tg.End)
					if err != nil {
						return err
					}
					tg.AttachComments(cs)
				}
				if tg.Status == obs.GapUnknown && prev.Instrument != cur.Instrument {
					tg.Status = obs.GapInstrument
				}
				found = append(found, tg)
			}
		}
		depth += ev.delta
		if depth == 0 {
			lastZero = ev.at
			idle = true
		} else {
			idle = false
		}
	}

	for _, tg := range found {
		if err := g.Append(tg); err != nil {
			return err
		}
	}
	g.SortByStart()
	return nil
}

// covered reports whether any existing gap overlaps the idle window,
// which keeps repeat passes from synthesizing a duplicate
func covered(existing []*obs.TimeGap, start, end time.Time) bool {
	for _, tg := range existing {
		if tg.Start.Before(end) && !tg.End.Before(start) {
			return true
		}
	}
	return false
}
