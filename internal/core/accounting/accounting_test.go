package accounting

import (
	"testing"
	"time"

	"obsledger/internal/core/obs"
	"obsledger/internal/platform/testkit"
)

func ts(h, m int) time.Time {
	return time.Date(2026, 8, 1, h, m, 0, 0, time.UTC)
}

const day = "2026-08-01"

func sci(proj, inst, caltype string, start time.Time, secs int) *obs.Observation {
	return &obs.Observation{
		Span:      obs.Span{Instrument: inst, Telescope: "JCMT", Start: start, End: start.Add(time.Duration(secs) * time.Second)},
		ProjectID: proj,
		CalType:   caltype,
		Science:   true,
	}
}

func gencal(inst string, start time.Time, secs int) *obs.Observation {
	return &obs.Observation{
		Span:      obs.Span{Instrument: inst, Telescope: "JCMT", Start: start, End: start.Add(time.Duration(secs) * time.Second)},
		ProjectID: "JCMTCAL",
		GenCal:    true,
	}
}

func scical(proj, inst, caltype string, start time.Time, secs int) *obs.Observation {
	o := sci(proj, inst, caltype, start, secs)
	o.Science = false
	o.SciCal = true
	return o
}

func gap(status obs.GapStatus, inst string, start time.Time, secs int) *obs.TimeGap {
	return &obs.TimeGap{
		Span:   obs.Span{Instrument: inst, Telescope: "JCMT", Start: start, End: start.Add(time.Duration(secs) * time.Second)},
		Status: status,
	}
}

func entryMap(r Result) map[string]int64 {
	out := make(map[string]int64, len(r.Entries))
	for _, e := range r.Entries {
		out[e.Date+"/"+e.ProjectID] = e.Seconds
	}
	return out
}

func sum(r Result) int64 {
	var s int64
	for _, e := range r.Entries {
		s += e.Seconds
	}
	return s
}

func TestEmptyGroup(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup()
	r := ProjectStats(g, Options{})
	if len(r.Entries) != 0 {
		t.Fatalf("entries = %d, want 0", len(r.Entries))
	}
	if len(r.Warnings) != 1 || r.Warnings[0] != "No observations for statistics" {
		t.Fatalf("warnings = %v", r.Warnings)
	}
}

// Two science observations with a weather gap between them: each project is
// charged its own time, the gap lands in WEATHER, and the totals conserve
func TestWeatherGapConservation(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(
		sci("M01AH01", "SCUBA-2", "", ts(1, 0), 1800),
		gap(obs.GapWeather, "SCUBA-2", ts(1, 30), 600),
		sci("M01AH02", "SCUBA-2", "", ts(1, 40), 1800),
	)
	r := ProjectStats(g, Options{})

	got := entryMap(r)
	if got[day+"/M01AH01"] != 1800 || got[day+"/M01AH02"] != 1800 {
		t.Fatalf("science charges wrong: %v", got)
	}
	if got[day+"/WEATHER"] != 600 {
		t.Fatalf("weather = %d, want 600", got[day+"/WEATHER"])
	}
	if s := sum(r); s != 4200 {
		t.Fatalf("total = %d, want 4200", s)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}
}

// A self-calibrating project needs no external calibration and no warning
func TestSelfCalibratingProject(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(sci("M01AH01", "SCUBA-2", "M01AH01", ts(1, 0), 3600))
	r := ProjectStats(g, Options{})

	if got := entryMap(r)[day+"/M01AH01"]; got != 3600 {
		t.Fatalf("charge = %d, want 3600", got)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}
}

// Generic calibration time flows to the instrument's science projects even
// when their declared caltype has no specific bucket
func TestGenericCalCoversCalType(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(
		sci("M01AH01", "SCUBA-2", "SKYDIP", ts(1, 0), 3600),
		gencal("SCUBA-2", ts(2, 0), 600),
	)
	r := ProjectStats(g, Options{})

	if got := entryMap(r)[day+"/M01AH01"]; got != 4200 {
		t.Fatalf("charge = %d, want 4200", got)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}
}

// With the skydip absent and no generic calibration either, the project is
// charged only its science time and the mismatch is reported
func TestMissingCalTypeWarns(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(sci("M01AH01", "SCUBA-2", "SKYDIP", ts(1, 0), 3600))
	r := ProjectStats(g, Options{})

	if got := entryMap(r)[day+"/M01AH01"]; got != 3600 {
		t.Fatalf("charge = %d, want 3600", got)
	}
	if len(r.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one", r.Warnings)
	}
	testkit.MustContain(t, r.Warnings[0], "SKYDIP")
	testkit.MustContain(t, r.Warnings[0], "M01AH01")
}

// Specific calibration time splits across projects in proportion to their
// science time, and the split loses at most a second to truncation
func TestSpecificCalApportionment(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(
		sci("M01AH01", "SCUBA-2", "SKYDIP", ts(1, 0), 2000),
		sci("M01AH02", "SCUBA-2", "SKYDIP", ts(2, 0), 1000),
		scical("M01AH01", "SCUBA-2", "SKYDIP", ts(3, 0), 301),
	)
	r := ProjectStats(g, Options{})
	got := entryMap(r)

	// 301 splits 2:1; the second claimant takes the remainder
	if got[day+"/M01AH01"] != 2000+200 {
		t.Fatalf("M01AH01 = %d, want 2200", got[day+"/M01AH01"])
	}
	if got[day+"/M01AH02"] != 1000+101 {
		t.Fatalf("M01AH02 = %d, want 1101", got[day+"/M01AH02"])
	}
	if s := sum(r); s != 3301 {
		t.Fatalf("total = %d, want 3301", s)
	}
}

// A short gap inside a run of the same project is charged to that project
func TestShortGapChargedToProject(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(
		sci("M01AH01", "SCUBA-2", "", ts(1, 0), 1800),
		gap(obs.GapUnknown, "SCUBA-2", ts(1, 30), 90),
		sci("M01AH01", "SCUBA-2", "", ts(1, 32), 1800),
	)
	r := ProjectStats(g, Options{})

	if got := entryMap(r)[day+"/M01AH01"]; got != 3690 {
		t.Fatalf("charge = %d, want 3690", got)
	}
}

// A gap exactly at the threshold is not short: it lands in OTHER
func TestThresholdBoundaryGoesToOther(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(
		sci("M01AH01", "SCUBA-2", "", ts(1, 0), 1800),
		gap(obs.GapUnknown, "SCUBA-2", ts(1, 30), 300),
		sci("M01AH01", "SCUBA-2", "", ts(1, 36), 1800),
	)
	r := ProjectStats(g, Options{})
	got := entryMap(r)

	if got[day+"/M01AH01"] != 3600 {
		t.Fatalf("M01AH01 = %d, want 3600", got[day+"/M01AH01"])
	}
	if got[day+"/JCMTOTHER"] != 300 {
		t.Fatalf("JCMTOTHER = %d, want 300", got[day+"/JCMTOTHER"])
	}
}

// An instrument-change gap is folded into the new instrument's generic
// calibration bucket regardless of its size, then apportioned from there
func TestInstrumentGapBecomesCalTime(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(
		sci("M01AH01", "SCUBA-2", "", ts(1, 0), 1800),
		gap(obs.GapInstrument, "HARP", ts(1, 30), 600),
		sci("M01AH02", "HARP", "", ts(1, 40), 1800),
	)
	r := ProjectStats(g, Options{})
	got := entryMap(r)

	if got[day+"/M01AH01"] != 1800 {
		t.Fatalf("M01AH01 = %d, want 1800", got[day+"/M01AH01"])
	}
	// M01AH02 is the only project on HARP, so it absorbs the whole bucket
	if got[day+"/M01AH02"] != 2400 {
		t.Fatalf("M01AH02 = %d, want 2400", got[day+"/M01AH02"])
	}
	if s := sum(r); s != 4200 {
		t.Fatalf("total = %d, want 4200", s)
	}
}

// A gap at the edge of the night has no usable context and goes to OTHER
func TestEdgeGapGoesToOther(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(
		gap(obs.GapUnknown, "SCUBA-2", ts(0, 55), 120),
		sci("M01AH01", "SCUBA-2", "", ts(1, 0), 1800),
	)
	r := ProjectStats(g, Options{})
	got := entryMap(r)

	if got[day+"/JCMTOTHER"] != 120 {
		t.Fatalf("JCMTOTHER = %d, want 120", got[day+"/JCMTOTHER"])
	}
	if got[day+"/M01AH01"] != 1800 {
		t.Fatalf("M01AH01 = %d, want 1800", got[day+"/M01AH01"])
	}
}

// PREV_PROJECT gaps are charged straight to the preceding observation's bucket
func TestPrevProjectGap(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(
		sci("M01AH01", "SCUBA-2", "", ts(1, 0), 1800),
		gap(obs.GapPrevProject, "SCUBA-2", ts(1, 30), 420),
		sci("M01AH02", "SCUBA-2", "", ts(1, 40), 1800),
	)
	r := ProjectStats(g, Options{})
	got := entryMap(r)

	if got[day+"/M01AH01"] != 2220 {
		t.Fatalf("M01AH01 = %d, want 2220", got[day+"/M01AH01"])
	}
	if got[day+"/M01AH02"] != 1800 {
		t.Fatalf("M01AH02 = %d, want 1800", got[day+"/M01AH02"])
	}
}

// FAULT gaps are accounted by the fault system and never appear here
func TestFaultGapSkipped(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(
		sci("M01AH01", "SCUBA-2", "", ts(1, 0), 1800),
		gap(obs.GapFault, "SCUBA-2", ts(1, 30), 900),
		sci("M01AH01", "SCUBA-2", "", ts(1, 50), 1800),
	)
	r := ProjectStats(g, Options{})

	if s := sum(r); s != 3600 {
		t.Fatalf("total = %d, want 3600 with fault time excluded", s)
	}
}

// Calibrations with no science on their instrument fold into the shared
// telescope CAL key with a warning
func TestOrphanCalibrations(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(gencal("SCUBA-2", ts(1, 0), 600))
	r := ProjectStats(g, Options{})
	got := entryMap(r)

	if got[day+"/JCMTCAL"] != 600 {
		t.Fatalf("JCMTCAL = %d, want 600", got[day+"/JCMTCAL"])
	}
	if len(r.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one", r.Warnings)
	}
	testkit.MustContain(t, r.Warnings[0], "SCUBA-2")
}

// An unclaimed specific calibration bucket also folds into the shared key
func TestUnclaimedSpecificCal(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(
		sci("M01AH01", "SCUBA-2", "M01AH01", ts(1, 0), 1800),
		scical("M01AH02", "SCUBA-2", "POINTING", ts(2, 0), 240),
	)
	r := ProjectStats(g, Options{})
	got := entryMap(r)

	if got[day+"/JCMTCAL"] != 240 {
		t.Fatalf("JCMTCAL = %d, want 240", got[day+"/JCMTCAL"])
	}
	if len(r.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one", r.Warnings)
	}
	testkit.MustContain(t, r.Warnings[0], "POINTING")
}

// The legacy remap is a case-insensitive prefix rule on the project id
func TestLegacySCUBAPattern(t *testing.T) {
	t.Parallel()

	for _, p := range []string{"scuba", "SCUBA", "Scuba", "SCUBA_CAL"} {
		if !isLegacySCUBA(p) {
			t.Fatalf("isLegacySCUBA(%q) = false, want true", p)
		}
	}
	for _, p := range []string{"M01AH01", "CSCUBA", ""} {
		if isLegacySCUBA(p) {
			t.Fatalf("isLegacySCUBA(%q) = true, want false", p)
		}
	}
}

// Legacy SCUBA science data is accounted as shared calibration time
func TestLegacySCUBARemap(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(
		sci("scuba", "SCUBA", "", ts(1, 0), 900),
		sci("M01AH01", "SCUBA", "", ts(2, 0), 1800),
	)
	r := ProjectStats(g, Options{})
	got := entryMap(r)

	if _, ok := got[day+"/SCUBA"]; ok {
		t.Fatal("legacy SCUBA project must not appear as a project entry")
	}
	// the 900s generic bucket flows to the only real project on the instrument
	if got[day+"/M01AH01"] != 2700 {
		t.Fatalf("M01AH01 = %d, want 2700", got[day+"/M01AH01"])
	}
}

// Projects whose only observations ended up elsewhere still show up at zero
func TestSignificantProjectsForcedToZero(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(scical("M01AH09", "SCUBA-2", "POINTING", ts(1, 0), 300))
	r := ProjectStats(g, Options{})
	got := entryMap(r)

	if v, ok := got[day+"/M01AH09"]; !ok || v != 0 {
		t.Fatalf("M01AH09 = %d (present=%v), want forced zero entry", v, ok)
	}
}

// Records are keyed by the UT date they started, so a run crossing midnight
// splits across two dates
func TestMultiDateSplit(t *testing.T) {
	t.Parallel()

	lateStart := time.Date(2026, 8, 1, 23, 30, 0, 0, time.UTC)
	nextDay := time.Date(2026, 8, 2, 0, 10, 0, 0, time.UTC)
	g, _ := obs.NewGroup(
		sci("M01AH01", "SCUBA-2", "", lateStart, 1800),
		sci("M01AH01", "SCUBA-2", "", nextDay, 1800),
	)
	r := ProjectStats(g, Options{})
	got := entryMap(r)

	if got["2026-08-01/M01AH01"] != 1800 || got["2026-08-02/M01AH01"] != 1800 {
		t.Fatalf("per-date charges wrong: %v", got)
	}
}

// Out-of-shift time accrues to the telescope's EXTENDED key
func TestExtendedTime(t *testing.T) {
	t.Parallel()

	ext := NewWindowExtended(map[string]time.Duration{"JCMT": 2 * time.Hour})
	g, _ := obs.NewGroup(
		// 01:30-02:30, so half the hour is past the 02:00 shift end
		sci("M01AH01", "SCUBA-2", "", ts(1, 30), 3600),
	)
	r := ProjectStats(g, Options{Extended: ext})
	got := entryMap(r)

	if got[day+"/M01AH01"] != 1800 {
		t.Fatalf("M01AH01 = %d, want 1800", got[day+"/M01AH01"])
	}
	if got[day+"/JCMTEXTENDED"] != 1800 {
		t.Fatalf("JCMTEXTENDED = %d, want 1800", got[day+"/JCMTEXTENDED"])
	}
}

// Entries come out sorted by date, then project, for stable API output
func TestFlattenOrdering(t *testing.T) {
	t.Parallel()

	g, _ := obs.NewGroup(
		sci("M01AH02", "SCUBA-2", "", ts(2, 0), 600),
		sci("M01AH01", "SCUBA-2", "", ts(1, 0), 600),
		sci("M01AH01", "SCUBA-2", "", time.Date(2026, 8, 2, 1, 0, 0, 0, time.UTC), 600),
	)
	r := ProjectStats(g, Options{})

	want := []string{"2026-08-01/M01AH01", "2026-08-01/M01AH02", "2026-08-02/M01AH01"}
	if len(r.Entries) != len(want) {
		t.Fatalf("entries = %d, want %d", len(r.Entries), len(want))
	}
	for i, e := range r.Entries {
		if e.Date+"/"+e.ProjectID != want[i] {
			t.Fatalf("entry %d = %s/%s, want %s", i, e.Date, e.ProjectID, want[i])
		}
	}
}
