package obs

import (
	"testing"
	"time"
)

func sci(proj, inst, mode string, start time.Time, mins int) *Observation {
	return &Observation{
		Span:      Span{Instrument: inst, Telescope: "JCMT", Start: start, End: start.Add(time.Duration(mins) * time.Minute)},
		ProjectID: proj,
		Mode:      mode,
		Science:   true,
	}
}

func gencal(inst, mode string, start time.Time, mins int) *Observation {
	o := sci("JCMTCAL", inst, mode, start, mins)
	o.Science = false
	o.GenCal = true
	return o
}

func scical(proj, inst, mode string, start time.Time, mins int) *Observation {
	o := sci(proj, inst, mode, start, mins)
	o.Science = false
	o.SciCal = true
	return o
}

func TestSetRecordsRejectsNil(t *testing.T) {
	t.Parallel()

	g := &Group{}
	if err := g.SetRecords([]Record{sci("M01AH01", "SCUBA-2", "SCAN", ts(1, 0), 10), nil}); err == nil {
		t.Fatal("expected error for nil record")
	}
}

func TestSortByStartIsStable(t *testing.T) {
	t.Parallel()

	a := sci("M01AH01", "SCUBA-2", "SCAN", ts(2, 0), 10)
	b := sci("M01AH02", "SCUBA-2", "SCAN", ts(1, 0), 10)
	c := sci("M01AH03", "SCUBA-2", "SCAN", ts(1, 0), 10)

	g, err := NewGroup(a, b, c)
	if err != nil {
		t.Fatalf("NewGroup: %v", err)
	}
	g.SortByStart()

	want := []string{"M01AH02", "M01AH03", "M01AH01"}
	for i, r := range g.Records() {
		if r.Project() != want[i] {
			t.Fatalf("record %d = %s, want %s", i, r.Project(), want[i])
		}
	}
}

func TestFilterScienceOnly(t *testing.T) {
	t.Parallel()

	g, _ := NewGroup(
		sci("M01AH01", "SCUBA-2", "SCAN", ts(1, 0), 10),
		sci("M01AH02", "SCUBA-2", "SCAN", ts(2, 0), 10),
		gencal("SCUBA-2", "SCAN", ts(3, 0), 10),
	)

	out, err := g.Filter(FilterOptions{ProjectID: "m01ah01"})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if out.Len() != 1 || out.Records()[0].Project() != "M01AH01" {
		t.Fatalf("filtered records = %d, want single M01AH01", out.Len())
	}

	// No project and no cals keeps every science observation
	all, err := g.Filter(FilterOptions{})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if all.Len() != 2 {
		t.Fatalf("science count = %d, want 2", all.Len())
	}
}

func TestFilterWithCalsMatchesInstrumentAndMode(t *testing.T) {
	t.Parallel()

	g, _ := NewGroup(
		sci("M01AH01", "SCUBA-2", "SCAN", ts(1, 0), 10),
		gencal("SCUBA-2", "SKYDIP", ts(2, 0), 5),           // generic, mode differs: kept
		scical("M01AH01", "SCUBA-2", "STARE", ts(3, 0), 5), // project match, mode differs: kept
		scical("M01AH02", "SCUBA-2", "SCAN", ts(4, 0), 5),  // other project, mode matches: kept
		scical("M01AH02", "SCUBA-2", "STARE", ts(5, 0), 5), // other project, other mode: dropped
		gencal("HARP", "SCAN", ts(6, 0), 5),                // instrument differs: dropped
		sci("M01AH02", "HARP", "SCAN", ts(7, 0), 10),
	)

	out, err := g.Filter(FilterOptions{ProjectID: "M01AH01", IncludeCals: true, SortAfter: true})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if out.Len() != 4 {
		t.Fatalf("kept = %d, want 4", out.Len())
	}
	if out.Records()[0].Project() != "M01AH01" {
		t.Fatalf("first record = %s, want the science observation", out.Records()[0].Project())
	}
	if !out.Records()[1].(*Observation).GenCal {
		t.Fatal("generic calibration on the science instrument should survive a mode mismatch")
	}
	if got := out.Records()[2].(*Observation); !got.SciCal || got.Project() != "M01AH01" {
		t.Fatal("the project's own calibration should survive a mode mismatch")
	}
	if got := out.Records()[3].(*Observation); got.Project() != "M01AH02" || got.Mode != "SCAN" {
		t.Fatal("another project's calibration should only survive on a mode match")
	}
}

func TestFilterCalsWithoutProjectFails(t *testing.T) {
	t.Parallel()

	g, _ := NewGroup(sci("M01AH01", "SCUBA-2", "SCAN", ts(1, 0), 10))
	if _, err := g.Filter(FilterOptions{IncludeCals: true}); err == nil {
		t.Fatal("expected error when including cals without a project")
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	t.Parallel()

	g, _ := NewGroup(
		sci("M01AH01", "SCUBA-2", "SCAN", ts(1, 0), 10),
		gencal("SCUBA-2", "SCAN", ts(2, 0), 5),
		sci("M01AH02", "HARP", "SCAN", ts(3, 0), 10),
	)

	opt := FilterOptions{ProjectID: "M01AH01", IncludeCals: true}
	once, err := g.Filter(opt)
	if err != nil {
		t.Fatalf("first Filter: %v", err)
	}
	twice, err := once.Filter(opt)
	if err != nil {
		t.Fatalf("second Filter: %v", err)
	}
	if once.Len() != twice.Len() {
		t.Fatalf("idempotence broken: %d then %d records", once.Len(), twice.Len())
	}
	for i := range once.Records() {
		if once.Records()[i] != twice.Records()[i] {
			t.Fatalf("record %d changed between passes", i)
		}
	}
}

func TestGroupByKeys(t *testing.T) {
	t.Parallel()

	g, _ := NewGroup(
		sci("M01AH01", "SCUBA-2", "SCAN", ts(1, 0), 10),
		sci("M01AH02", "HARP", "STARE", ts(2, 0), 10),
		&TimeGap{Span: Span{Instrument: "HARP", Telescope: "JCMT", Start: ts(3, 0), End: ts(3, 10)}},
	)

	byInst, err := g.GroupBy("instrument")
	if err != nil {
		t.Fatalf("GroupBy instrument: %v", err)
	}
	if byInst["SCUBA-2"].Len() != 1 || byInst["HARP"].Len() != 2 {
		t.Fatalf("instrument partition wrong: %d/%d", byInst["SCUBA-2"].Len(), byInst["HARP"].Len())
	}

	byProj, err := g.GroupBy("project")
	if err != nil {
		t.Fatalf("GroupBy project: %v", err)
	}
	if byProj[TimeGapProject].Len() != 1 {
		t.Fatalf("gaps should partition under %s", TimeGapProject)
	}

	if _, err := g.GroupBy("colour"); err == nil {
		t.Fatal("expected error for unknown group key")
	}
}
