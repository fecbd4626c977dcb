// Package repo provides the nightly repository implementation
package repo

import (
	"context"
	"strings"
	"time"

	"obsledger/internal/core/obs"
	"obsledger/internal/modkit/repokit"
	perr "obsledger/internal/platform/errors"
)

type (
	pg     struct{ q repokit.Queryer }
	binder struct{}
)

// NewPG constructs a new repo binder for Postgres
func NewPG() repokit.Binder[Storage] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) Storage { return &pg{q: q} }

// Storage defines the nightly repository. GapComments matches the gap
// locator's comment source so a bound Storage plugs straight in
type Storage interface {
	NightObservations(ctx context.Context, telescope string, from, to time.Time) ([]*obs.Observation, error)
	ObservationComments(ctx context.Context, obsIDs []string) (map[string][]obs.Comment, error)
	GapComments(ctx context.Context, instrument string, start, end time.Time) ([]obs.Comment, error)
	InsertComment(ctx context.Context, telescope, instrument string, c obs.Comment) error
}

// NightObservations implements Storage. Rows come back in observing order
func (s *pg) NightObservations(ctx context.Context, telescope string, from, to time.Time) ([]*obs.Observation, error) {
	const sql = `
		SELECT obsid, project_id, instrument, telescope, run_number,
			date_obs, date_end, duration_secs, obs_kind, cal_type, observing_mode
		FROM archive_observations
		WHERE upper(telescope) = upper($1)
			AND date_obs >= $2 AND date_obs < $3
		ORDER BY date_obs, run_number`

	rows, err := s.q.Query(ctx, sql, telescope, from, to)
	if err != nil {
		return nil, perr.FromPostgres(err, "night observations")
	}
	defer rows.Close()

	var out []*obs.Observation
	for rows.Next() {
		var (
			o        obs.Observation
			dateEnd  *time.Time
			duration *float64
			kind     string
			calType  *string
			mode     *string
		)
		if err := rows.Scan(
			&o.ObsID, &o.ProjectID, &o.Instrument, &o.Telescope, &o.RunNumber,
			&o.Start, &dateEnd, &duration, &kind, &calType, &mode,
		); err != nil {
			return nil, perr.FromPostgres(err, "scan observation")
		}
		if dateEnd != nil {
			o.End = *dateEnd
		}
		if duration != nil {
			o.Duration = time.Duration(*duration * float64(time.Second))
		}
		if calType != nil {
			o.CalType = *calType
		}
		if mode != nil {
			o.Mode = *mode
		}
		switch strings.ToLower(kind) {
		case "gencal":
			o.GenCal = true
		case "scical":
			o.SciCal = true
		default:
			o.Science = true
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// ObservationComments implements Storage: the stored comments for each
// obsid, oldest first so the latest comment sorts last
func (s *pg) ObservationComments(ctx context.Context, obsIDs []string) (map[string][]obs.Comment, error) {
	if len(obsIDs) == 0 {
		return map[string][]obs.Comment{}, nil
	}
	const sql = `
		SELECT obsid, id::text, author, body, created_at, status
		FROM obs_comments
		WHERE obsid = ANY($1)
		ORDER BY obsid, created_at`

	rows, err := s.q.Query(ctx, sql, obsIDs)
	if err != nil {
		return nil, perr.FromPostgres(err, "observation comments")
	}
	defer rows.Close()

	out := make(map[string][]obs.Comment)
	for rows.Next() {
		var (
			obsID  string
			c      obs.Comment
			status *string
		)
		if err := rows.Scan(&obsID, &c.ID, &c.Author, &c.Text, &c.Date, &status); err != nil {
			return nil, perr.FromPostgres(err, "scan observation comment")
		}
		if status != nil {
			st := obs.ParseGapStatus(*status)
			c.Status = &st
		}
		out[obsID] = append(out[obsID], c)
	}
	return out, rows.Err()
}

// GapComments implements Storage and the gap locator's comment source
func (s *pg) GapComments(ctx context.Context, instrument string, start, end time.Time) ([]obs.Comment, error) {
	const sql = `
		SELECT id::text, author, body, created_at, status
		FROM shift_comments
		WHERE upper(instrument) = upper($1)
			AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at`

	rows, err := s.q.Query(ctx, sql, instrument, start, end)
	if err != nil {
		return nil, perr.FromPostgres(err, "gap comments")
	}
	defer rows.Close()

	var out []obs.Comment
	for rows.Next() {
		var (
			c      obs.Comment
			status *string
		)
		if err := rows.Scan(&c.ID, &c.Author, &c.Text, &c.Date, &status); err != nil {
			return nil, perr.FromPostgres(err, "scan comment")
		}
		if status != nil {
			st := obs.ParseGapStatus(*status)
			c.Status = &st
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertComment implements Storage
func (s *pg) InsertComment(ctx context.Context, telescope, instrument string, c obs.Comment) error {
	const sql = `
		INSERT INTO shift_comments (id, telescope, instrument, author, body, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var status *string
	if c.Status != nil {
		v := c.Status.String()
		status = &v
	}
	_, err := s.q.Exec(ctx, sql,
		c.ID, strings.ToUpper(telescope), strings.ToUpper(instrument),
		c.Author, c.Text, status, c.Date,
	)
	return perr.FromPostgres(err, "insert comment")
}
