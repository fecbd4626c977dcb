package service

import (
	"context"
	"testing"
	"time"

	"obsledger/internal/core/obs"
	"obsledger/internal/modkit/repokit"
	"obsledger/internal/platform/store"
	"obsledger/internal/services/nightly/domain"
	"obsledger/internal/services/nightly/repo"
)

// passthroughTx satisfies store.TxRunner without a database; the fake
// storage never touches the Queryer
type passthroughTx struct{}

func (passthroughTx) Tx(ctx context.Context, fn func(q store.RowQuerier) error) error {
	return fn(nil)
}

func (passthroughTx) Exec(context.Context, string, ...any) (store.CommandTag, error) {
	return nil, nil
}

func (passthroughTx) Query(context.Context, string, ...any) (store.Rows, error) {
	return nil, nil
}

func (passthroughTx) QueryRow(context.Context, string, ...any) store.Row { return nil }

type fakeStorage struct {
	observations []*obs.Observation
	comments     []obs.Comment
	inserted     []obs.Comment
}

func (f *fakeStorage) NightObservations(_ context.Context, _ string, _, _ time.Time) ([]*obs.Observation, error) {
	return f.observations, nil
}

func (f *fakeStorage) ObservationComments(_ context.Context, _ []string) (map[string][]obs.Comment, error) {
	return map[string][]obs.Comment{}, nil
}

func (f *fakeStorage) GapComments(_ context.Context, _ string, _, _ time.Time) ([]obs.Comment, error) {
	return f.comments, nil
}

func (f *fakeStorage) InsertComment(_ context.Context, _, _ string, c obs.Comment) error {
	f.inserted = append(f.inserted, c)
	return nil
}

func newTestService(st *fakeStorage, cfg Config) *Service {
	binder := repokit.BindFunc[repo.Storage](func(repokit.Queryer) repo.Storage { return st })
	return New(passthroughTx{}, binder, cfg)
}

func ts(h, m int) time.Time {
	return time.Date(2026, 8, 1, h, m, 0, 0, time.UTC)
}

func sci(proj string, start time.Time, mins int) *obs.Observation {
	return &obs.Observation{
		Span:      obs.Span{Instrument: "SCUBA-2", Telescope: "JCMT", Start: start, End: start.Add(time.Duration(mins) * time.Minute)},
		ProjectID: proj,
		Science:   true,
	}
}

func TestNightAccountingEndToEnd(t *testing.T) {
	t.Parallel()

	weather := obs.GapWeather
	st := &fakeStorage{
		observations: []*obs.Observation{
			sci("M01AH01", ts(1, 0), 30),
			sci("M01AH02", ts(1, 40), 30),
		},
		comments: []obs.Comment{
			{Text: "high winds", Date: ts(1, 35), Status: &weather},
		},
	}
	svc := newTestService(st, Config{})

	rep, err := svc.NightAccounting(context.Background(), domain.NightInput{
		Telescope: "jcmt",
		UTDate:    "2026-08-01",
	})
	if err != nil {
		t.Fatalf("NightAccounting: %v", err)
	}

	if rep.Telescope != "JCMT" || rep.UTDate != "2026-08-01" {
		t.Fatalf("report header wrong: %+v", rep)
	}
	if len(rep.Gaps) != 1 || rep.Gaps[0].Status != "WEATHER" {
		t.Fatalf("gaps = %+v, want one weather gap", rep.Gaps)
	}

	got := make(map[string]int64, len(rep.Entries))
	for _, e := range rep.Entries {
		got[e.ProjectID] = e.Seconds
	}
	if got["M01AH01"] != 1800 || got["M01AH02"] != 1800 {
		t.Fatalf("science charges wrong: %v", got)
	}
	// the synthesized gap runs 01:30 to 01:39:59
	if got["WEATHER"] != 599 {
		t.Fatalf("weather = %d, want 599", got["WEATHER"])
	}
}

func TestNightAccountingProjectFilter(t *testing.T) {
	t.Parallel()

	st := &fakeStorage{observations: []*obs.Observation{
		sci("M01AH01", ts(1, 0), 30),
		sci("M01AH02", ts(2, 0), 30),
	}}
	svc := newTestService(st, Config{})

	rep, err := svc.NightAccounting(context.Background(), domain.NightInput{
		Telescope: "JCMT",
		UTDate:    "2026-08-01",
		Project:   "m01ah02",
	})
	if err != nil {
		t.Fatalf("NightAccounting: %v", err)
	}
	if len(rep.Entries) != 1 || rep.Entries[0].ProjectID != "M01AH02" {
		t.Fatalf("entries = %+v, want only M01AH02", rep.Entries)
	}
}

func TestNightAccountingRejectsBadDate(t *testing.T) {
	t.Parallel()

	svc := newTestService(&fakeStorage{}, Config{})
	if _, err := svc.NightAccounting(context.Background(), domain.NightInput{
		Telescope: "JCMT",
		UTDate:    "20260801",
	}); err == nil {
		t.Fatal("expected error for malformed ut_date")
	}
}

func TestAddComment(t *testing.T) {
	t.Parallel()

	st := &fakeStorage{}
	svc := newTestService(st, Config{})

	rec, err := svc.AddComment(context.Background(), domain.CommentInput{
		Telescope:  "jcmt",
		Instrument: "scuba-2",
		Author:     "ops",
		Text:       "dome closed for snow",
		Status:     "WEATHER",
	})
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if rec.ID == "" || rec.Status != "WEATHER" {
		t.Fatalf("record = %+v", rec)
	}
	if rec.Telescope != "JCMT" || rec.Instrument != "SCUBA-2" {
		t.Fatalf("record identifiers not normalized: %+v", rec)
	}
	if len(st.inserted) != 1 || st.inserted[0].Text != "dome closed for snow" {
		t.Fatalf("inserted = %+v", st.inserted)
	}

	if _, err := svc.AddComment(context.Background(), domain.CommentInput{
		Telescope:  "JCMT",
		Instrument: "SCUBA-2",
		Author:     "ops",
		Text:       "   ",
	}); err == nil {
		t.Fatal("expected error for blank comment text")
	}
}
