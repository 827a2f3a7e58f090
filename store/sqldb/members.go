package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// MEMBER STORE
// =============================================================================

const memberColumns = `employee_id, username, first_name, last_name, email, title,
	manager_id, director_id, role, status, created_at, updated_at`

func scanMember(r rowScanner) (generic.Member, error) {
	var (
		m                     generic.Member
		managerID, directorID sql.NullString
		role                  int
		status                string
		created, updated      dbTime
	)
	if err := r.Scan(&m.EmployeeID, &m.Username, &m.FirstName, &m.LastName, &m.Email, &m.Title,
		&managerID, &directorID, &role, &status, &created, &updated); err != nil {
		return m, err
	}
	m.ManagerID = generic.EmployeeID(managerID.String)
	m.DirectorID = generic.EmployeeID(directorID.String)
	m.Role = generic.Role(role)
	m.Status = generic.MemberStatus(status)
	m.CreatedAt, m.UpdatedAt = created.Time, updated.Time
	return m, nil
}

func (c *conn) getMember(ctx context.Context, where string, arg any) (*generic.Member, error) {
	m, err := scanMember(c.queryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *conn) GetMember(ctx context.Context, id generic.EmployeeID) (*generic.Member, error) {
	return c.getMember(ctx, `employee_id = ?`, string(id))
}

func (c *conn) GetMemberByUsername(ctx context.Context, username string) (*generic.Member, error) {
	return c.getMember(ctx, `LOWER(username) = ?`, strings.ToLower(username))
}

func (c *conn) GetMemberByEmail(ctx context.Context, email string) (*generic.Member, error) {
	return c.getMember(ctx, `LOWER(email) = ?`, strings.ToLower(email))
}

func (c *conn) ListMembers(ctx context.Context, f generic.MemberFilter) ([]generic.Member, error) {
	var (
		where []string
		args  []any
	)
	if !f.IncludeInactive {
		where = append(where, `status = ?`)
		args = append(args, string(generic.MemberActive))
	}
	if f.Role != nil {
		where = append(where, `role = ?`)
		args = append(args, int(*f.Role))
	}
	if f.ManagerID != "" {
		where = append(where, `manager_id = ?`)
		args = append(args, string(f.ManagerID))
	}
	if f.DirectorID != "" {
		where = append(where, `director_id = ?`)
		args = append(args, string(f.DirectorID))
	}

	rows, err := c.query(ctx, `SELECT `+memberColumns+` FROM members`+whereClause(where)+` ORDER BY last_name, employee_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (c *conn) SaveMember(ctx context.Context, m generic.Member) error {
	if m.EmployeeID == "" {
		return &generic.ValidationError{Field: "employee_id", Message: "employee id is required"}
	}
	_, err := c.exec(ctx, `
		INSERT INTO members (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			title = excluded.title,
			manager_id = excluded.manager_id,
			director_id = excluded.director_id,
			role = excluded.role,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		string(m.EmployeeID), m.Username, m.FirstName, m.LastName, m.Email, m.Title,
		nullString(string(m.ManagerID)), nullString(string(m.DirectorID)),
		int(m.Role), string(m.Status), timeArg(nowIfZero(m.CreatedAt)), timeArg(nowIfZero(m.UpdatedAt)),
	)
	return err
}

func (c *conn) SetMemberStatus(ctx context.Context, id generic.EmployeeID, status generic.MemberStatus) error {
	res, err := c.exec(ctx, `UPDATE members SET status = ?, updated_at = ? WHERE employee_id = ?`,
		string(status), time.Now().UTC(), string(id))
	if err != nil {
		return err
	}
	return rowsAffected(res, "member", string(id))
}

// =============================================================================
// CONSENT STORE
// =============================================================================

func (c *conn) GetConsent(ctx context.Context, id generic.EmployeeID) (*generic.ConsentLog, error) {
	var (
		cl               generic.ConsentLog
		created, updated dbTime
	)
	err := c.queryRow(ctx, `
		SELECT employee_id, internal_publication_consent, personal_data_consent,
			rewards_management_consent, created_at, updated_at
		FROM consent_logs WHERE employee_id = ?`, string(id)).
		Scan(&cl.EmployeeID, &cl.InternalPublicationConsent, &cl.PersonalDataConsent,
			&cl.RewardsManagementConsent, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cl.CreatedAt, cl.UpdatedAt = created.Time, updated.Time
	return &cl, nil
}

func (c *conn) SaveConsent(ctx context.Context, cl generic.ConsentLog) error {
	_, err := c.exec(ctx, `
		INSERT INTO consent_logs (employee_id, internal_publication_consent, personal_data_consent,
			rewards_management_consent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id) DO UPDATE SET
			internal_publication_consent = excluded.internal_publication_consent,
			personal_data_consent = excluded.personal_data_consent,
			rewards_management_consent = excluded.rewards_management_consent,
			updated_at = excluded.updated_at`,
		string(cl.EmployeeID), cl.InternalPublicationConsent, cl.PersonalDataConsent,
		cl.RewardsManagementConsent, timeArg(nowIfZero(cl.CreatedAt)), timeArg(nowIfZero(cl.UpdatedAt)),
	)
	return err
}

func (c *conn) ListConsents(ctx context.Context) ([]generic.ConsentLog, error) {
	rows, err := c.query(ctx, `
		SELECT cl.employee_id, cl.internal_publication_consent, cl.personal_data_consent,
			cl.rewards_management_consent, cl.created_at, cl.updated_at,
			m.first_name, m.last_name, m.email
		FROM consent_logs cl
		LEFT JOIN members m ON m.employee_id = cl.employee_id
		ORDER BY cl.employee_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []generic.ConsentLog
	for rows.Next() {
		var (
			cl                 generic.ConsentLog
			created, updated   dbTime
			first, last, email sql.NullString
		)
		if err := rows.Scan(&cl.EmployeeID, &cl.InternalPublicationConsent, &cl.PersonalDataConsent,
			&cl.RewardsManagementConsent, &created, &updated, &first, &last, &email); err != nil {
			return nil, err
		}
		cl.CreatedAt, cl.UpdatedAt = created.Time, updated.Time
		cl.MemberName = generic.Member{FirstName: first.String, LastName: last.String}.FullName()
		cl.MemberEmail = email.String
		out = append(out, cl)
	}
	return out, rows.Err()
}

// =============================================================================
// ADMIN STORE
// =============================================================================

func (c *conn) GetAdminByUsername(ctx context.Context, username string) (*generic.AdminAccount, error) {
	var (
		a       generic.AdminAccount
		status  string
		created dbTime
	)
	err := c.queryRow(ctx, `
		SELECT id, employee_id, username, email, password_hash, first_name, last_name, status, created_at
		FROM admins WHERE LOWER(username) = ? AND status = ?`,
		strings.ToLower(username), string(generic.MemberActive)).
		Scan(&a.ID, &a.EmployeeID, &a.Username, &a.Email, &a.PasswordHash, &a.FirstName, &a.LastName, &status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Status = generic.MemberStatus(status)
	a.CreatedAt = created.Time
	return &a, nil
}

func (c *conn) SaveAdmin(ctx context.Context, a *generic.AdminAccount) error {
	if a.Status == "" {
		a.Status = generic.MemberActive
	}
	return c.queryRow(ctx, `
		INSERT INTO admins (employee_id, username, email, password_hash, first_name, last_name, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			employee_id = excluded.employee_id,
			email = excluded.email,
			password_hash = excluded.password_hash,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			status = excluded.status
		RETURNING id`,
		string(a.EmployeeID), strings.ToLower(a.Username), a.Email, a.PasswordHash,
		a.FirstName, a.LastName, string(a.Status), timeArg(nowIfZero(a.CreatedAt)),
	).Scan(&a.ID)
}
