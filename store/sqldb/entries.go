package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// ENTRY STORE
// =============================================================================

const entryColumns = `id, owner_id, criteria_id, track, points, fiscal_year, season,
	accomplishment, date_accomplished, project_name, notes, attachments, created_at, updated_at`

func scanEntry(r rowScanner) (generic.RewardEntry, error) {
	var (
		e                  generic.RewardEntry
		track, attachments string
		accomplished       dbTime
		created, updated   dbTime
	)
	if err := r.Scan(&e.ID, &e.OwnerID, &e.CriteriaID, &track, &e.Points, &e.FiscalYear, &e.Season,
		&e.Accomplishment, &accomplished, &e.ProjectName, &e.Notes, &attachments, &created, &updated); err != nil {
		return e, err
	}
	e.Track = generic.Track(track)
	e.DateAccomplished = accomplished.Time
	e.CreatedAt, e.UpdatedAt = created.Time, updated.Time
	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &e.Attachments); err != nil {
			return e, fmt.Errorf("failed to decode attachments of entry %d: %w", e.ID, err)
		}
	}
	return e, nil
}

func encodeAttachments(a []generic.Attachment) (string, error) {
	if a == nil {
		a = []generic.Attachment{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("failed to encode attachments: %w", err)
	}
	return string(b), nil
}

func (c *conn) CreateEntry(ctx context.Context, e *generic.RewardEntry) error {
	attachments, err := encodeAttachments(e.Attachments)
	if err != nil {
		return err
	}
	return c.queryRow(ctx, `
		INSERT INTO reward_entries (owner_id, criteria_id, track, points, fiscal_year, season,
			accomplishment, date_accomplished, project_name, notes, attachments, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		string(e.OwnerID), int64(e.CriteriaID), string(e.Track), e.Points, e.FiscalYear, e.Season,
		e.Accomplishment, timeArg(e.DateAccomplished), e.ProjectName, e.Notes, attachments,
		timeArg(nowIfZero(e.CreatedAt)), timeArg(nowIfZero(e.UpdatedAt)),
	).Scan(&e.ID)
}

func (c *conn) GetEntry(ctx context.Context, id generic.EntryID) (*generic.RewardEntry, error) {
	e, err := scanEntry(c.queryRow(ctx, `SELECT `+entryColumns+` FROM reward_entries WHERE id = ?`, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *conn) ListEntries(ctx context.Context, f generic.EntryFilter) ([]generic.RewardEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.OwnerID != "" {
		where = append(where, `owner_id = ?`)
		args = append(args, string(f.OwnerID))
	}
	if f.ProjectName != "" {
		where = append(where, `project_name = ?`)
		args = append(args, f.ProjectName)
	}
	if f.FiscalYear != "" {
		where = append(where, `fiscal_year = ?`)
		args = append(args, f.FiscalYear)
	}
	if f.CriteriaID != 0 {
		where = append(where, `criteria_id = ?`)
		args = append(args, int64(f.CriteriaID))
	}

	rows, err := c.query(ctx, `SELECT `+entryColumns+` FROM reward_entries`+whereClause(where)+` ORDER BY id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.RewardEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (c *conn) UpdateEntry(ctx context.Context, e generic.RewardEntry) error {
	attachments, err := encodeAttachments(e.Attachments)
	if err != nil {
		return err
	}
	res, err := c.exec(ctx, `
		UPDATE reward_entries SET
			criteria_id = ?, points = ?, accomplishment = ?, date_accomplished = ?,
			project_name = ?, notes = ?, attachments = ?, updated_at = ?
		WHERE id = ?`,
		int64(e.CriteriaID), e.Points, e.Accomplishment, timeArg(e.DateAccomplished),
		e.ProjectName, e.Notes, attachments, timeArg(nowIfZero(e.UpdatedAt)), int64(e.ID),
	)
	if err != nil {
		return err
	}
	return rowsAffected(res, "reward entry", fmt.Sprint(e.ID))
}

func (c *conn) UpdateEntryDetails(ctx context.Context, e generic.RewardEntry) error {
	attachments, err := encodeAttachments(e.Attachments)
	if err != nil {
		return err
	}
	res, err := c.exec(ctx, `
		UPDATE reward_entries SET
			accomplishment = ?, date_accomplished = ?, project_name = ?,
			notes = ?, attachments = ?, updated_at = ?
		WHERE id = ?`,
		e.Accomplishment, timeArg(e.DateAccomplished), e.ProjectName,
		e.Notes, attachments, timeArg(nowIfZero(e.UpdatedAt)), int64(e.ID),
	)
	if err != nil {
		return err
	}
	return rowsAffected(res, "reward entry", fmt.Sprint(e.ID))
}

// DeleteEntry removes the approval explicitly so SQLite databases opened
// without foreign keys behave the same.
func (c *conn) DeleteEntry(ctx context.Context, id generic.EntryID) error {
	if _, err := c.exec(ctx, `DELETE FROM approval_entries WHERE entry_id = ?`, int64(id)); err != nil {
		return err
	}
	res, err := c.exec(ctx, `DELETE FROM reward_entries WHERE id = ?`, int64(id))
	if err != nil {
		return err
	}
	return rowsAffected(res, "reward entry", fmt.Sprint(id))
}

// =============================================================================
// APPROVAL STORE
// =============================================================================

const approvalColumns = `a.id, a.entry_id, a.manager_id, a.director_id, a.manager_status,
	a.director_status, a.manager_notes, a.director_notes, a.created_at, a.updated_at`

func scanApproval(r rowScanner) (generic.ApprovalEntry, error) {
	var (
		a                     generic.ApprovalEntry
		managerID, directorID sql.NullString
		mStatus, dStatus      string
		created, updated      dbTime
	)
	if err := r.Scan(&a.ID, &a.EntryID, &managerID, &directorID, &mStatus, &dStatus,
		&a.ManagerNotes, &a.DirectorNotes, &created, &updated); err != nil {
		return a, err
	}
	pair, err := generic.RestoreApproval(generic.Status(mStatus), generic.Status(dStatus))
	if err != nil {
		return a, fmt.Errorf("approval %d holds an invalid status pair: %w", a.ID, err)
	}
	a.Approval = pair
	a.ManagerID = generic.EmployeeID(managerID.String)
	a.DirectorID = generic.EmployeeID(directorID.String)
	a.CreatedAt, a.UpdatedAt = created.Time, updated.Time
	return a, nil
}

func (c *conn) CreateApproval(ctx context.Context, a *generic.ApprovalEntry) error {
	err := c.queryRow(ctx, `
		INSERT INTO approval_entries (entry_id, manager_id, director_id, manager_status, director_status,
			manager_notes, director_notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		int64(a.EntryID), nullString(string(a.ManagerID)), nullString(string(a.DirectorID)),
		string(a.Approval.Manager()), string(a.Approval.Director()),
		a.ManagerNotes, a.DirectorNotes, timeArg(nowIfZero(a.CreatedAt)), timeArg(nowIfZero(a.UpdatedAt)),
	).Scan(&a.ID)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("approval for entry %d: %w", a.EntryID, generic.ErrDuplicate)
	}
	return err
}

func (c *conn) GetApproval(ctx context.Context, id generic.ApprovalID) (*generic.ApprovalEntry, error) {
	a, err := scanApproval(c.queryRow(ctx,
		c.forUpdate(`SELECT `+approvalColumns+` FROM approval_entries a WHERE a.id = ?`), int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *conn) GetApprovalByEntry(ctx context.Context, entryID generic.EntryID) (*generic.ApprovalEntry, error) {
	a, err := scanApproval(c.queryRow(ctx,
		c.forUpdate(`SELECT `+approvalColumns+` FROM approval_entries a WHERE a.entry_id = ?`), int64(entryID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *conn) UpdateApproval(ctx context.Context, a generic.ApprovalEntry) error {
	res, err := c.exec(ctx, `
		UPDATE approval_entries SET
			manager_id = ?, director_id = ?, manager_status = ?, director_status = ?,
			manager_notes = ?, director_notes = ?, updated_at = ?
		WHERE id = ?`,
		nullString(string(a.ManagerID)), nullString(string(a.DirectorID)),
		string(a.Approval.Manager()), string(a.Approval.Director()),
		a.ManagerNotes, a.DirectorNotes, timeArg(nowIfZero(a.UpdatedAt)), int64(a.ID),
	)
	if err != nil {
		return err
	}
	return rowsAffected(res, "approval entry", fmt.Sprint(a.ID))
}

func (c *conn) ListApprovals(ctx context.Context, f generic.ApprovalFilter) ([]generic.ApprovalEntry, error) {
	var (
		where []string
		args  []any
	)
	switch f.Stage {
	case generic.StageManager:
		if f.ApproverID != "" {
			where = append(where, `a.manager_id = ?`)
			args = append(args, string(f.ApproverID))
		}
		if f.Status != nil {
			where = append(where, `a.manager_status = ?`)
			args = append(args, string(*f.Status))
		}
	case generic.StageDirector:
		if f.ApproverID != "" {
			where = append(where, `a.director_id = ?`)
			args = append(args, string(f.ApproverID))
		}
		where = append(where, `a.manager_status = ?`)
		args = append(args, string(generic.StatusApproved))
		if f.Status != nil {
			where = append(where, `a.director_status = ?`)
			args = append(args, string(*f.Status))
		}
	}
	if f.ManagerID != "" {
		where = append(where, `a.manager_id = ?`)
		args = append(args, string(f.ManagerID))
	}
	from := ` FROM approval_entries a`
	if f.OwnerID != "" {
		from += ` JOIN reward_entries e ON e.id = a.entry_id`
		where = append(where, `e.owner_id = ?`)
		args = append(args, string(f.OwnerID))
	}

	rows, err := c.query(ctx, `SELECT `+approvalColumns+from+whereClause(where)+` ORDER BY a.created_at DESC, a.id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.ApprovalEntry
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
