// Package service implements the nightly accounting orchestration
package service

import (
	"context"
	"strings"
	"time"

	"obsledger/internal/core/accounting"
	"obsledger/internal/core/gaps"
	"obsledger/internal/core/obs"
	"obsledger/internal/modkit/repokit"
	perr "obsledger/internal/platform/errors"
	"obsledger/internal/platform/logger"
	"obsledger/internal/services/nightly/domain"
	"obsledger/internal/services/nightly/repo"
)

// Config for the nightly service
type Config struct {
	// GapThreshold defaults to the accounting package default when zero
	GapThreshold time.Duration

	// ShiftEnds maps telescope names to shift-end offsets from UT midnight;
	// empty disables extended-time accounting
	ShiftEnds map[string]time.Duration
}

// Service implements domain.AccountingPort and domain.CommentPort
type Service struct {
	db   repokit.TxRunner
	repo repokit.Binder[repo.Storage]
	cfg  Config
	ext  accounting.ExtendedCalculator
}

// New constructs the nightly service over a bound repository
func New(db repokit.TxRunner, binder repokit.Binder[repo.Storage], cfg Config) *Service {
	if cfg.GapThreshold <= 0 {
		cfg.GapThreshold = accounting.DefaultGapThreshold
	}
	var ext accounting.ExtendedCalculator
	if len(cfg.ShiftEnds) > 0 {
		ext = accounting.NewWindowExtended(cfg.ShiftEnds)
	}
	return &Service{db: db, repo: binder, cfg: cfg, ext: ext}
}

// NightAccounting implements domain.AccountingPort: it loads the night's
// observations, locates time gaps, and runs the accounting pipeline
func (s *Service) NightAccounting(ctx context.Context, in domain.NightInput) (domain.AccountingReport, error) {
	day, err := time.Parse("2006-01-02", in.UTDate)
	if err != nil {
		return domain.AccountingReport{}, perr.InvalidArgf("ut_date must be YYYY-MM-DD")
	}
	if strings.TrimSpace(in.Telescope) == "" {
		return domain.AccountingReport{}, perr.InvalidArgf("telescope is required")
	}
	ctx = logger.WithNight(ctx, in.Telescope, in.UTDate)

	var out domain.AccountingReport
	err = repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		st := s.repo.Bind(q)

		list, err := st.NightObservations(ctx, in.Telescope, day, day.Add(24*time.Hour))
		if err != nil {
			return err
		}
		if err := attachComments(ctx, st, list); err != nil {
			return err
		}
		recs := make([]obs.Record, 0, len(list))
		for _, o := range list {
			recs = append(recs, o)
		}
		group, err := obs.NewGroup(recs...)
		if err != nil {
			return err
		}
		if in.Project != "" {
			group, err = group.Filter(obs.FilterOptions{
				ProjectID:   in.Project,
				IncludeCals: in.IncludeCals,
				SortAfter:   true,
			})
			if err != nil {
				return err
			}
		}

		if err := gaps.Locate(ctx, group, s.cfg.GapThreshold, st); err != nil {
			return err
		}
		res := accounting.ProjectStats(group, accounting.Options{
			GapThreshold: s.cfg.GapThreshold,
			Extended:     s.ext,
		})

		out = domain.AccountingReport{
			Telescope: strings.ToUpper(in.Telescope),
			UTDate:    in.UTDate,
			Entries:   res.Entries,
			Warnings:  res.Warnings,
			Gaps:      summarizeGaps(group),
		}
		return nil
	})
	if err == nil {
		logger.C(ctx).Info().
			Int("entries", len(out.Entries)).
			Int("gaps", len(out.Gaps)).
			Int("warnings", len(out.Warnings)).
			Msg("night accounting complete")
	}
	return out, err
}

// AddComment implements domain.CommentPort
func (s *Service) AddComment(ctx context.Context, in domain.CommentInput) (domain.CommentRecord, error) {
	var status *obs.GapStatus
	if in.Status != "" {
		st := obs.ParseGapStatus(in.Status)
		status = &st
	}
	c, err := obs.NewComment(in.Author, in.Text, in.Date, status)
	if err != nil {
		return domain.CommentRecord{}, err
	}

	err = repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		return s.repo.Bind(q).InsertComment(ctx, in.Telescope, in.Instrument, c)
	})
	if err != nil {
		return domain.CommentRecord{}, err
	}

	rec := domain.CommentRecord{
		ID:         c.ID,
		Telescope:  strings.ToUpper(in.Telescope),
		Instrument: strings.ToUpper(in.Instrument),
		Author:     c.Author,
		Text:       c.Text,
		Date:       c.Date,
	}
	if status != nil {
		rec.Status = status.String()
	}
	return rec, nil
}

// attachComments pulls the stored comments for the night's observations so
// downstream consumers see the latest annotation on each record
func attachComments(ctx context.Context, st repo.Storage, list []*obs.Observation) error {
	ids := make([]string, 0, len(list))
	for _, o := range list {
		if o.ObsID != "" {
			ids = append(ids, o.ObsID)
		}
	}
	byID, err := st.ObservationComments(ctx, ids)
	if err != nil {
		return err
	}
	for _, o := range list {
		if cs := byID[o.ObsID]; len(cs) > 0 {
			o.Comments = append(o.Comments, cs...)
		}
	}
	return nil
}

func summarizeGaps(g *obs.Group) []domain.GapSummary {
	var out []domain.GapSummary
	for _, r := range g.Records() {
		tg, ok := r.(*obs.TimeGap)
		if !ok {
			continue
		}
		out = append(out, domain.GapSummary{
			Instrument: tg.Instrument,
			Status:     tg.Status.String(),
			Start:      tg.Start,
			End:        tg.End,
			Seconds:    int64(tg.Elapsed().Seconds()),
		})
	}
	return out
}
