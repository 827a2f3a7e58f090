package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// CRITERIA STORE
// =============================================================================

const criteriaColumns = `track, id, category, accomplishment, points, guidelines,
	director_approval, type, published, created_at, updated_at`

func scanCriteria(r rowScanner) (generic.Criteria, error) {
	var (
		c                generic.Criteria
		track, typ       string
		created, updated dbTime
	)
	if err := r.Scan(&track, &c.ID, &c.Category, &c.Accomplishment, &c.Points, &c.Guidelines,
		&c.DirectorApproval, &typ, &c.Published, &created, &updated); err != nil {
		return c, err
	}
	c.Track = generic.Track(track)
	c.Type = generic.CriteriaType(typ)
	c.CreatedAt, c.UpdatedAt = created.Time, updated.Time
	return c, nil
}

func (c *conn) GetCriteria(ctx context.Context, id generic.CriteriaID, track generic.Track) (*generic.Criteria, error) {
	cr, err := scanCriteria(c.queryRow(ctx,
		`SELECT `+criteriaColumns+` FROM criteria WHERE track = ? AND id = ?`, string(track), int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cr, nil
}

func (c *conn) ListCriteria(ctx context.Context, f generic.CriteriaFilter) ([]generic.Criteria, error) {
	var (
		where []string
		args  []any
	)
	if f.Track != "" {
		where = append(where, `track = ?`)
		args = append(args, string(f.Track))
	}
	if f.Published != nil {
		where = append(where, `published = ?`)
		args = append(args, *f.Published)
	}
	if f.Category != "" {
		where = append(where, `LOWER(category) = ?`)
		args = append(args, strings.ToLower(f.Category))
	}
	if f.DirectorApproval != nil {
		where = append(where, `director_approval = ?`)
		args = append(args, *f.DirectorApproval)
	}

	rows, err := c.query(ctx, `SELECT `+criteriaColumns+` FROM criteria`+whereClause(where)+` ORDER BY track, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.Criteria
	for rows.Next() {
		cr, err := scanCriteria(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (c *conn) SaveCriteria(ctx context.Context, cr generic.Criteria) error {
	_, err := c.exec(ctx, `
		INSERT INTO criteria (`+criteriaColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(track, id) DO UPDATE SET
			category = excluded.category,
			accomplishment = excluded.accomplishment,
			points = excluded.points,
			guidelines = excluded.guidelines,
			director_approval = excluded.director_approval,
			type = excluded.type,
			published = excluded.published,
			updated_at = excluded.updated_at`,
		string(cr.Track), int64(cr.ID), cr.Category, cr.Accomplishment, cr.Points, cr.Guidelines,
		cr.DirectorApproval, string(cr.Type), cr.Published,
		timeArg(nowIfZero(cr.CreatedAt)), timeArg(nowIfZero(cr.UpdatedAt)),
	)
	return err
}

func (c *conn) DeleteCriteria(ctx context.Context, id generic.CriteriaID, track generic.Track) error {
	res, err := c.exec(ctx, `DELETE FROM criteria WHERE track = ? AND id = ?`, string(track), int64(id))
	if err != nil {
		return err
	}
	return rowsAffected(res, "criteria", fmt.Sprintf("%s/%d", track, id))
}

func (c *conn) PublishCriteria(ctx context.Context, track generic.Track, ids []generic.CriteriaID) (int64, error) {
	query := `UPDATE criteria SET published = ?, updated_at = ? WHERE track = ? AND published = ?`
	args := []any{true, time.Now().UTC(), string(track), false}
	if len(ids) > 0 {
		ph := make([]string, len(ids))
		for i, id := range ids {
			ph[i] = "?"
			args = append(args, int64(id))
		}
		query += ` AND id IN (` + strings.Join(ph, ", ") + `)`
	}
	res, err := c.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
