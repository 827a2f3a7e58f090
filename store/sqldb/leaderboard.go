package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// LEADERBOARD STORE
// =============================================================================

const leaderboardColumns = `l.id, l.employee_id, l.fiscal_year, l.alias, l.total_points,
	l.approved_points, l.for_approval_points, l.rejected_points, l.created_at, l.updated_at`

func scanLeaderboard(r rowScanner, extra ...any) (generic.LeaderboardRecord, error) {
	var (
		rec              generic.LeaderboardRecord
		created, updated dbTime
	)
	dest := []any{&rec.ID, &rec.EmployeeID, &rec.FiscalYear, &rec.Alias, &rec.TotalPoints,
		&rec.ApprovedPoints, &rec.ForApprovalPoints, &rec.RejectedPoints, &created, &updated}
	if err := r.Scan(append(dest, extra...)...); err != nil {
		return rec, err
	}
	rec.CreatedAt, rec.UpdatedAt = created.Time, updated.Time
	return rec, nil
}

func (c *conn) getLeaderboard(ctx context.Context, where string, args ...any) (*generic.LeaderboardRecord, error) {
	rec, err := scanLeaderboard(c.queryRow(ctx,
		c.forUpdate(`SELECT `+leaderboardColumns+` FROM leaderboards l WHERE `+where), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *conn) GetLeaderboard(ctx context.Context, id generic.EmployeeID, fiscalYear string) (*generic.LeaderboardRecord, error) {
	return c.getLeaderboard(ctx, `l.employee_id = ? AND l.fiscal_year = ?`, string(id), fiscalYear)
}

func (c *conn) GetLeaderboardByAlias(ctx context.Context, alias string) (*generic.LeaderboardRecord, error) {
	return c.getLeaderboard(ctx, `l.alias = ?`, alias)
}

func (c *conn) CountLeaderboards(ctx context.Context, fiscalYear string) (int, error) {
	var n int
	err := c.queryRow(ctx, `SELECT COUNT(*) FROM leaderboards WHERE fiscal_year = ?`, fiscalYear).Scan(&n)
	return n, err
}

func (c *conn) CreateLeaderboard(ctx context.Context, rec *generic.LeaderboardRecord) error {
	err := c.queryRow(ctx, `
		INSERT INTO leaderboards (employee_id, fiscal_year, alias, total_points, approved_points,
			for_approval_points, rejected_points, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		string(rec.EmployeeID), rec.FiscalYear, rec.Alias, rec.TotalPoints, rec.ApprovedPoints,
		rec.ForApprovalPoints, rec.RejectedPoints, timeArg(nowIfZero(rec.CreatedAt)), timeArg(nowIfZero(rec.UpdatedAt)),
	).Scan(&rec.ID)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("leaderboard %s/%s: %w", rec.EmployeeID, rec.FiscalYear, generic.ErrDuplicate)
	}
	return err
}

func (c *conn) SaveLeaderboard(ctx context.Context, rec generic.LeaderboardRecord) error {
	res, err := c.exec(ctx, `
		UPDATE leaderboards SET
			total_points = ?, approved_points = ?, for_approval_points = ?, rejected_points = ?, updated_at = ?
		WHERE employee_id = ? AND fiscal_year = ?`,
		rec.TotalPoints, rec.ApprovedPoints, rec.ForApprovalPoints, rec.RejectedPoints,
		timeArg(nowIfZero(rec.UpdatedAt)), string(rec.EmployeeID), rec.FiscalYear,
	)
	if err != nil {
		return err
	}
	return rowsAffected(res, "leaderboard record", fmt.Sprintf("%s/%s", rec.EmployeeID, rec.FiscalYear))
}

func (c *conn) ListLeaderboards(ctx context.Context, f generic.LeaderboardFilter) ([]generic.LeaderboardRow, error) {
	var (
		where []string
		args  []any
	)
	if f.FiscalYear != "" {
		where = append(where, `l.fiscal_year = ?`)
		args = append(args, f.FiscalYear)
	}
	if f.Role != nil {
		where = append(where, `m.role = ?`)
		args = append(args, int(*f.Role))
	}
	if f.ActiveOnly {
		where = append(where, `m.status = ?`)
		args = append(args, string(generic.MemberActive))
	}
	query := `SELECT ` + leaderboardColumns + `, m.first_name, m.last_name, m.title, m.role, m.status
		FROM leaderboards l
		JOIN members m ON m.employee_id = l.employee_id` +
		whereClause(where) + `
		ORDER BY l.total_points DESC, l.id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.LeaderboardRow
	for rows.Next() {
		var (
			row    generic.LeaderboardRow
			role   int
			status string
		)
		rec, err := scanLeaderboard(rows, &row.FirstName, &row.LastName, &row.Title, &role, &status)
		if err != nil {
			return nil, err
		}
		row.LeaderboardRecord = rec
		row.Role = generic.Role(role)
		row.Status = generic.MemberStatus(status)
		out = append(out, row)
	}
	return out, rows.Err()
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (c *conn) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}
	_, err = c.exec(ctx, `INSERT INTO audit_log (ts, actor_id, action, entry_id, payload) VALUES (?, ?, ?, ?, ?)`,
		timeArg(nowIfZero(e.Timestamp)), string(e.ActorID), string(e.Action), int64(e.EntryID), string(payload))
	return err
}

// QueryAudit returns matching entries, newest first.
func (c *conn) QueryAudit(ctx context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.ActorID != "" {
		where = append(where, `actor_id = ?`)
		args = append(args, string(f.ActorID))
	}
	if f.EntryID != 0 {
		where = append(where, `entry_id = ?`)
		args = append(args, int64(f.EntryID))
	}
	if len(f.Actions) > 0 {
		ph := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			ph[i] = "?"
			args = append(args, string(a))
		}
		where = append(where, `action IN (`+strings.Join(ph, ", ")+`)`)
	}
	query := `SELECT id, ts, actor_id, action, entry_id, payload FROM audit_log` + whereClause(where) + ` ORDER BY id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := c.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.AuditEntry
	for rows.Next() {
		var (
			e       generic.AuditEntry
			ts      dbTime
			action  string
			payload string
		)
		if err := rows.Scan(&e.ID, &ts, &e.ActorID, &action, &e.EntryID, &payload); err != nil {
			return nil, err
		}
		e.Timestamp = ts.Time
		e.Action = generic.AuditAction(action)
		if payload != "" && payload != "null" {
			if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode audit payload %d: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
