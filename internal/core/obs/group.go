package obs

import (
	"sort"
	"strings"

	perr "obsledger/internal/platform/errors"
)

// Group is an ordered collection of observation records for one night or
// query window. Operations mutate in place unless they say otherwise
type Group struct {
	recs []Record
}

// NewGroup builds a group from the given records; nil records are rejected
func NewGroup(recs ...Record) (*Group, error) {
	g := &Group{}
	if err := g.SetRecords(recs); err != nil {
		return nil, err
	}
	return g, nil
}

// SetRecords replaces the group's contents. Nil elements are rejected so
// every later pass can assume a usable record
func (g *Group) SetRecords(recs []Record) error {
	for i, r := range recs {
		if r == nil {
			return perr.InvalidArgf("record %d is nil", i)
		}
	}
	g.recs = recs
	return nil
}

// Records returns the backing slice; callers must not reorder it behind
// the group's back
func (g *Group) Records() []Record { return g.recs }

// Len returns the number of records
func (g *Group) Len() int { return len(g.recs) }

// Append adds records to the end of the group
func (g *Group) Append(recs ...Record) error {
	for i, r := range recs {
		if r == nil {
			return perr.InvalidArgf("record %d is nil", i)
		}
	}
	g.recs = append(g.recs, recs...)
	return nil
}

// SortByStart orders records chronologically by start time. The sort is
// stable so records sharing a start keep their relative order
func (g *Group) SortByStart() {
	sort.SliceStable(g.recs, func(i, j int) bool {
		return g.recs[i].Bounds().Start.Before(g.recs[j].Bounds().Start)
	})
}

// FilterOptions selects the subset a Filter call keeps
type FilterOptions struct {
	// ProjectID restricts science observations to one project
	// (case-insensitive). Required when IncludeCals is true
	ProjectID string

	// IncludeCals keeps the calibration observations relevant to the
	// selected project's science observations
	IncludeCals bool

	// SortAfter re-sorts the result chronologically
	SortAfter bool
}

// Filter returns a new group holding the selected records.
//
// Without calibrations the result is the science observations, optionally
// restricted to one project. With calibrations the science observations
// pick which (instrument, mode) combinations occur, and calibration
// observations sharing one of those combinations are kept alongside them
func (g *Group) Filter(opt FilterOptions) (*Group, error) {
	proj := strings.ToUpper(strings.TrimSpace(opt.ProjectID))
	if opt.IncludeCals && proj == "" {
		return nil, perr.InvalidArgf("project id is required when including calibrations")
	}

	var kept []Record
	if !opt.IncludeCals {
		for _, r := range g.recs {
			o, ok := r.(*Observation)
			if !ok || !isScience(o) {
				continue
			}
			if proj != "" && o.Project() != proj {
				continue
			}
			kept = append(kept, r)
		}
	} else {
		// First pass picks the project's science observations and the
		// instrument and mode sets they exercised
		insts := make(map[string]struct{})
		modes := make(map[string]struct{})
		for _, r := range g.recs {
			o, ok := r.(*Observation)
			if !ok || !isScience(o) || o.Project() != proj {
				continue
			}
			insts[strings.ToUpper(o.Instrument)] = struct{}{}
			modes[strings.ToUpper(o.Mode)] = struct{}{}
			kept = append(kept, r)
		}

		// Second pass keeps calibrations on those instruments that belong
		// to the project, are generic, or share an observing mode with the
		// science observations
		for _, r := range g.recs {
			o, ok := r.(*Observation)
			if !ok || isScience(o) {
				continue
			}
			if _, hit := insts[strings.ToUpper(o.Instrument)]; !hit {
				continue
			}
			if o.Project() == proj || o.GenCal {
				kept = append(kept, r)
				continue
			}
			if _, hit := modes[strings.ToUpper(o.Mode)]; hit {
				kept = append(kept, r)
			}
		}
	}

	out := &Group{recs: kept}
	if opt.SortAfter {
		out.SortByStart()
	}
	return out, nil
}

// GroupBy partitions records by the named attribute. Recognized keys are
// "instrument", "telescope", "project" and "mode"
func (g *Group) GroupBy(key string) (map[string]*Group, error) {
	var extract func(Record) string
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "instrument":
		extract = func(r Record) string { return strings.ToUpper(r.Bounds().Instrument) }
	case "telescope":
		extract = func(r Record) string { return strings.ToUpper(r.Bounds().Telescope) }
	case "project":
		extract = func(r Record) string { return r.Project() }
	case "mode":
		extract = func(r Record) string {
			if o, ok := r.(*Observation); ok {
				return strings.ToUpper(o.Mode)
			}
			return ""
		}
	default:
		return nil, perr.InvalidArgf("unknown group key %q", key)
	}

	out := make(map[string]*Group)
	for _, r := range g.recs {
		k := extract(r)
		sub, ok := out[k]
		if !ok {
			sub = &Group{}
			out[k] = sub
		}
		sub.recs = append(sub.recs, r)
	}
	return out, nil
}

// isScience treats an observation with no calibration flags as science
func isScience(o *Observation) bool {
	if o.SciCal || o.GenCal {
		return false
	}
	return true
}
