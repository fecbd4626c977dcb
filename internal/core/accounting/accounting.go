// Package accounting turns a night's observation group into per-project
// time charges. Science time is charged directly; calibration time is
// apportioned to the projects that needed it; gap time is classified into
// synthetic buckets or charged to the adjacent project
package accounting

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"obsledger/internal/core/obs"
)

// DefaultGapThreshold is the idle time above which a gap stops being
// attributable to the surrounding project
const DefaultGapThreshold = 5 * time.Minute

// Synthetic project key suffixes. All but WEATHER are prefixed with the
// telescope name in the output
const (
	keyCal      = "CAL"
	keyWeather  = "WEATHER"
	keyOther    = "OTHER"
	keyExtended = "EXTENDED"
)

// Historical SCUBA data predates per-project calibration bookkeeping, so
// its science observations are accounted as shared calibration time
var legacySCUBA = regexp.MustCompile(`(?i)^scuba`)

func isLegacySCUBA(project string) bool { return legacySCUBA.MatchString(project) }

// Entry is one (project, UT date) time charge in integer seconds
type Entry struct {
	ProjectID string `json:"project_id"`
	Date      string `json:"date"`
	Seconds   int64  `json:"seconds"`
}

// Options tunes the accounting run
type Options struct {
	// GapThreshold defaults to DefaultGapThreshold when zero
	GapThreshold time.Duration

	// Extended splits record time into shift and out-of-shift portions;
	// nil means no extended window applies
	Extended ExtendedCalculator
}

// Result carries the flattened charges and any data-quality warnings
type Result struct {
	Entries  []Entry
	Warnings []string
}

// ProjectStats runs the full accounting pipeline over a group. The group
// is sorted chronologically as a side effect
func ProjectStats(g *obs.Group, opts Options) Result {
	if opts.GapThreshold <= 0 {
		opts.GapThreshold = DefaultGapThreshold
	}
	if g == nil || g.Len() == 0 {
		return Result{Warnings: []string{"No observations for statistics"}}
	}

	t := newTally(opts)
	g.SortByStart()
	for _, r := range g.Records() {
		t.classify(r)
	}
	t.apportionSpecificCals()
	t.apportionGapSequences()
	t.apportionGenericCals()
	t.foldResidualBuckets()
	t.forceSignificant()
	return Result{Entries: t.flatten(), Warnings: t.warnings}
}

type dateTel struct{ date, tel string }

type projInst struct{ proj, inst string }

// seqEntry is one element of a night's project/gap sequence: either a
// contiguous run of one project on one instrument, or a gap marker whose
// time is charged in the sequence pass
type seqEntry struct {
	gap      bool
	seconds  float64
	forceCal bool
	proj     string
	inst     string
}

type claim struct {
	proj, inst string
	secs       float64
}

type tally struct {
	opts Options

	// raw science seconds: date -> project -> instrument -> caltype
	sci map[string]map[string]map[string]map[string]float64

	// calibration seconds: date -> instrument -> caltype (keyCal = generic)
	cal      map[string]map[string]map[string]float64
	consumed map[string]map[string]map[string]bool

	gapb    map[dateTel]map[string]float64
	ext     map[dateTel]float64
	seq     map[dateTel][]seqEntry
	instTel map[string]map[string]string
	sig     map[string]map[string]struct{}

	// accumulated project seconds per instrument, the weights for the
	// generic calibration and gap apportionment
	perInst map[string]map[projInst]float64

	totals   map[string]map[string]int64
	warnings []string

	prev *obs.Observation
}

func newTally(opts Options) *tally {
	return &tally{
		opts:     opts,
		sci:      make(map[string]map[string]map[string]map[string]float64),
		cal:      make(map[string]map[string]map[string]float64),
		consumed: make(map[string]map[string]map[string]bool),
		gapb:     make(map[dateTel]map[string]float64),
		ext:      make(map[dateTel]float64),
		seq:      make(map[dateTel][]seqEntry),
		instTel:  make(map[string]map[string]string),
		sig:      make(map[string]map[string]struct{}),
		perInst:  make(map[string]map[projInst]float64),
		totals:   make(map[string]map[string]int64),
	}
}

// classify is the first pass: it routes each record's time into the raw
// accumulators and builds the per-night project/gap sequence
func (t *tally) classify(r obs.Record) {
	b := r.Bounds()
	date := recordDate(b)
	if date == "" {
		return
	}
	tel := strings.ToUpper(b.Telescope)
	dt := dateTel{date, tel}

	spent, extended := t.split(r, b, tel)
	if extended > 0 && !(r.IsGap() && extended > t.opts.GapThreshold.Seconds()) {
		t.ext[dt] += extended
	}

	if tg, ok := r.(*obs.TimeGap); ok {
		t.classifyGap(tg, dt, spent)
		return
	}
	o, ok := r.(*obs.Observation)
	if !ok {
		return
	}

	proj := o.Project()
	inst := strings.ToUpper(o.Instrument)
	if t.instTel[date] == nil {
		t.instTel[date] = make(map[string]string)
	}
	t.instTel[date][inst] = tel

	switch {
	case o.GenCal:
		t.addCal(date, inst, keyCal, spent)
		t.pushRun(dt, keyCal, inst)
	case o.SciCal:
		t.addCal(date, inst, o.EffectiveCalType(), spent)
		t.markSignificant(date, proj)
		t.pushRun(dt, keyCal, inst)
	case isLegacySCUBA(proj):
		t.addCal(date, inst, keyCal, spent)
		t.pushRun(dt, keyCal, inst)
	default:
		t.addSci(date, proj, inst, o.EffectiveCalType(), spent)
		t.markSignificant(date, proj)
		t.pushRun(dt, proj, inst)
	}
	t.prev = o
}

// split returns (regular, extended) seconds for a record. The extended
// calculator only runs when at least two of start/end/duration are known
func (t *tally) split(r obs.Record, b obs.Span, tel string) (float64, float64) {
	var dur time.Duration
	if o, ok := r.(*obs.Observation); ok {
		dur = o.Duration
	}

	known := 0
	if !b.Start.IsZero() {
		known++
	}
	if !b.End.IsZero() {
		known++
	}
	if dur > 0 {
		known++
	}

	if known >= 2 && t.opts.Extended != nil {
		spent, extended := t.opts.Extended.DetermineExtended(dur, b.Start, b.End, tel)
		if spent < 0 {
			spent = 0
		}
		if extended < 0 {
			extended = 0
		}
		return spent.Seconds(), extended.Seconds()
	}

	spent := r.Elapsed()
	if spent < 0 {
		spent = 0
	}
	return spent.Seconds(), 0
}

func (t *tally) classifyGap(tg *obs.TimeGap, dt dateTel, secs float64) {
	if secs <= 0 {
		return
	}
	switch tg.Status {
	case obs.GapFault:
		// fault time is accounted by the fault system, not here
		return
	case obs.GapWeather:
		t.bucket(dt, keyWeather, secs)
	case obs.GapPrevProject:
		t.chargePrev(dt, secs)
	case obs.GapInstrument:
		t.pushMarker(dt, seqEntry{gap: true, seconds: secs, forceCal: true, inst: strings.ToUpper(tg.Instrument)})
	case obs.GapNextProject:
		t.pushMarker(dt, seqEntry{gap: true, seconds: secs})
	default:
		if secs > 0 && secs < t.opts.GapThreshold.Seconds() {
			t.pushMarker(dt, seqEntry{gap: true, seconds: secs})
		} else {
			t.bucket(dt, keyOther, secs)
		}
	}
}

// chargePrev charges gap time to whatever bucket the preceding observation
// fed. With no predecessor the time falls through to the OTHER bucket
func (t *tally) chargePrev(dt dateTel, secs float64) {
	p := t.prev
	if p == nil {
		t.bucket(dt, keyOther, secs)
		return
	}
	inst := strings.ToUpper(p.Instrument)
	switch {
	case p.GenCal || isLegacySCUBA(p.Project()):
		t.addCal(dt.date, inst, keyCal, secs)
	case p.SciCal:
		t.addCal(dt.date, inst, p.EffectiveCalType(), secs)
	default:
		t.addSci(dt.date, p.Project(), inst, p.EffectiveCalType(), secs)
	}
}

// apportionSpecificCals is the second pass: raw science time is committed
// to the output and each specific calibration bucket is split across the
// projects that demanded its caltype, weighted by science time
func (t *tally) apportionSpecificCals() {
	type cell struct {
		inst, caltype string
		claims        []claim
	}
	demand := make(map[string]map[string]map[string]*cell) // date -> inst -> caltype

	for _, date := range sortedKeys(t.sci) {
		for _, proj := range sortedKeys(t.sci[date]) {
			for _, inst := range sortedKeys(t.sci[date][proj]) {
				for _, caltype := range sortedKeys(t.sci[date][proj][inst]) {
					secs := t.sci[date][proj][inst][caltype]
					t.addTotal(date, proj, secs)
					t.addPerInst(date, proj, inst, secs)

					if demand[date] == nil {
						demand[date] = make(map[string]map[string]*cell)
					}
					if demand[date][inst] == nil {
						demand[date][inst] = make(map[string]*cell)
					}
					c := demand[date][inst][caltype]
					if c == nil {
						c = &cell{inst: inst, caltype: caltype}
						demand[date][inst][caltype] = c
					}
					c.claims = append(c.claims, claim{proj: proj, inst: inst, secs: secs})
				}
			}
		}
	}

	for _, date := range sortedKeys(demand) {
		for _, inst := range sortedKeys(demand[date]) {
			for _, caltype := range sortedKeys(demand[date][inst]) {
				c := demand[date][inst][caltype]
				bucket := t.calBucket(date, inst, caltype)
				if bucket > 0 && caltype != keyCal {
					t.markConsumed(date, inst, caltype)
					t.apportion(date, bucket, c.claims)
					continue
				}
				// a generic calibration bucket covers the demand instead
				if t.calBucket(date, inst, keyCal) > 0 {
					continue
				}
				for _, cl := range c.claims {
					if cl.proj == caltype {
						continue // self-calibrating
					}
					t.warnf("no calibration of type %s found for project %s on %s", caltype, cl.proj, date)
				}
			}
		}
	}
}

// apportionGapSequences is the third pass: gap markers inside a night's
// sequence are charged to the run that follows them. Markers at the edges
// of the sequence, or in sequences too short to establish context, fall
// through to the OTHER bucket
func (t *tally) apportionGapSequences() {
	for _, dt := range sortedDateTels(t.seq) {
		entries := t.seq[dt]
		for i, e := range entries {
			if !e.gap {
				continue
			}
			if len(entries) < 3 || i == 0 || i == len(entries)-1 {
				t.bucket(dt, keyOther, e.seconds)
				continue
			}
			next := nextRun(entries, i)
			if next == nil {
				t.bucket(dt, keyOther, e.seconds)
				continue
			}
			if e.forceCal || next.proj == keyCal {
				inst := next.inst
				if e.forceCal && e.inst != "" {
					inst = e.inst
				}
				t.addCal(dt.date, inst, keyCal, e.seconds)
				continue
			}
			if t.perInstOf(dt.date, next.proj, next.inst) > 0 {
				t.addTotal(dt.date, next.proj, e.seconds)
				t.addPerInst(dt.date, next.proj, next.inst, e.seconds)
			} else {
				t.bucket(dt, keyOther, e.seconds)
			}
		}
	}
}

// apportionGenericCals is the fourth pass: each instrument's generic
// calibration bucket is split across the projects that used the instrument,
// weighted by their accumulated time on it. Calibration time nobody can
// claim is folded into the telescope's shared CAL key
func (t *tally) apportionGenericCals() {
	for _, date := range sortedKeys(t.cal) {
		for _, inst := range sortedKeys(t.cal[date]) {
			for _, caltype := range sortedKeys(t.cal[date][inst]) {
				bucket := t.cal[date][inst][caltype]
				if bucket <= 0 {
					continue
				}
				sharedKey := t.instTel[date][inst] + keyCal

				if caltype == keyCal {
					claims := t.instClaims(date, inst)
					if len(claims) > 0 {
						t.apportion(date, bucket, claims)
					} else {
						t.addTotal(date, sharedKey, bucket)
						t.warnf("instrument %s has calibrations but no science observations on %s", inst, date)
					}
					continue
				}
				if !t.isConsumed(date, inst, caltype) {
					t.addTotal(date, sharedKey, bucket)
					t.warnf("calibration time of type %s on %s was claimed by no project", caltype, date)
				}
			}
		}
	}
}

// foldResidualBuckets is the fifth pass: weather, unattributable and
// extended time become synthetic per-telescope entries
func (t *tally) foldResidualBuckets() {
	for _, dt := range sortedDateTels(t.gapb) {
		if w := t.gapb[dt][keyWeather]; w > 0 {
			t.addTotal(dt.date, keyWeather, w)
		}
		if o := t.gapb[dt][keyOther]; o > 0 {
			t.addTotal(dt.date, dt.tel+keyOther, o)
		}
	}
	for _, dt := range sortedDateTels(t.ext) {
		if e := t.ext[dt]; e > 0 {
			t.addTotal(dt.date, dt.tel+keyExtended, e)
		}
	}
}

// forceSignificant is the sixth pass: every project that observed on a
// date appears in the output for that date, even at zero seconds
func (t *tally) forceSignificant() {
	for date, projs := range t.sig {
		for proj := range projs {
			if t.totals[date] == nil {
				t.totals[date] = make(map[string]int64)
			}
			if _, ok := t.totals[date][proj]; !ok {
				t.totals[date][proj] = 0
			}
		}
	}
}

// apportion splits a bucket across claims proportionally to their seconds.
// The last claim takes the integer remainder so the bucket never drifts by
// more than a second
func (t *tally) apportion(date string, bucket float64, claims []claim) {
	var weight float64
	for _, c := range claims {
		weight += c.secs
	}
	if weight <= 0 {
		return
	}
	var given int64
	for i, c := range claims {
		var share int64
		if i == len(claims)-1 {
			share = int64(bucket) - given
		} else {
			share = int64(c.secs / weight * bucket)
		}
		if share < 0 {
			share = 0
		}
		t.addTotalInt(date, c.proj, share)
		t.addPerInst(date, c.proj, c.inst, float64(share))
		given += share
	}
}

func (t *tally) flatten() []Entry {
	var out []Entry
	for _, date := range sortedKeys(t.totals) {
		for _, proj := range sortedKeys(t.totals[date]) {
			out = append(out, Entry{ProjectID: proj, Date: date, Seconds: t.totals[date][proj]})
		}
	}
	return out
}

// accumulator plumbing

func (t *tally) addSci(date, proj, inst, caltype string, secs float64) {
	if t.sci[date] == nil {
		t.sci[date] = make(map[string]map[string]map[string]float64)
	}
	if t.sci[date][proj] == nil {
		t.sci[date][proj] = make(map[string]map[string]float64)
	}
	if t.sci[date][proj][inst] == nil {
		t.sci[date][proj][inst] = make(map[string]float64)
	}
	t.sci[date][proj][inst][caltype] += secs
}

func (t *tally) addCal(date, inst, caltype string, secs float64) {
	if t.cal[date] == nil {
		t.cal[date] = make(map[string]map[string]float64)
	}
	if t.cal[date][inst] == nil {
		t.cal[date][inst] = make(map[string]float64)
	}
	t.cal[date][inst][caltype] += secs
}

func (t *tally) calBucket(date, inst, caltype string) float64 {
	return t.cal[date][inst][caltype]
}

func (t *tally) markConsumed(date, inst, caltype string) {
	if t.consumed[date] == nil {
		t.consumed[date] = make(map[string]map[string]bool)
	}
	if t.consumed[date][inst] == nil {
		t.consumed[date][inst] = make(map[string]bool)
	}
	t.consumed[date][inst][caltype] = true
}

func (t *tally) isConsumed(date, inst, caltype string) bool {
	return t.consumed[date][inst][caltype]
}

func (t *tally) bucket(dt dateTel, key string, secs float64) {
	if secs <= 0 {
		return
	}
	if t.gapb[dt] == nil {
		t.gapb[dt] = make(map[string]float64)
	}
	t.gapb[dt][key] += secs
}

func (t *tally) pushRun(dt dateTel, proj, inst string) {
	entries := t.seq[dt]
	if n := len(entries); n > 0 {
		last := entries[n-1]
		if !last.gap && last.proj == proj && last.inst == inst {
			return
		}
	}
	t.seq[dt] = append(entries, seqEntry{proj: proj, inst: inst})
}

func (t *tally) pushMarker(dt dateTel, e seqEntry) {
	if e.seconds <= 0 {
		return
	}
	t.seq[dt] = append(t.seq[dt], e)
}

func (t *tally) markSignificant(date, proj string) {
	if proj == "" {
		return
	}
	if t.sig[date] == nil {
		t.sig[date] = make(map[string]struct{})
	}
	t.sig[date][proj] = struct{}{}
}

func (t *tally) addPerInst(date, proj, inst string, secs float64) {
	if t.perInst[date] == nil {
		t.perInst[date] = make(map[projInst]float64)
	}
	t.perInst[date][projInst{proj, inst}] += secs
}

func (t *tally) perInstOf(date, proj, inst string) float64 {
	return t.perInst[date][projInst{proj, inst}]
}

// instClaims lists the projects with accumulated time on an instrument,
// sorted for deterministic apportionment
func (t *tally) instClaims(date, inst string) []claim {
	var out []claim
	for pi, secs := range t.perInst[date] {
		if pi.inst != inst || secs <= 0 {
			continue
		}
		out = append(out, claim{proj: pi.proj, inst: inst, secs: secs})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].proj < out[j].proj })
	return out
}

// addTotal truncates toward zero; fractional seconds are deliberately lost
func (t *tally) addTotal(date, key string, secs float64) {
	t.addTotalInt(date, key, int64(secs))
}

func (t *tally) addTotalInt(date, key string, secs int64) {
	if t.totals[date] == nil {
		t.totals[date] = make(map[string]int64)
	}
	t.totals[date][key] += secs
}

func (t *tally) warnf(format string, args ...any) {
	t.warnings = append(t.warnings, fmt.Sprintf(format, args...))
}

func nextRun(entries []seqEntry, from int) *seqEntry {
	for j := from + 1; j < len(entries); j++ {
		if !entries[j].gap {
			return &entries[j]
		}
	}
	return nil
}

// recordDate keys a record by the UT date of its start time, falling back
// to the end time when the start is unknown
func recordDate(b obs.Span) string {
	ts := b.Start
	if ts.IsZero() {
		ts = b.End
	}
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format("2006-01-02")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedDateTels[V any](m map[dateTel]V) []dateTel {
	keys := make([]dateTel, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].date != keys[j].date {
			return keys[i].date < keys[j].date
		}
		return keys[i].tel < keys[j].tel
	})
	return keys
}
