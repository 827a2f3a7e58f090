/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Session:     SessionDTO, AdminLoginRequest, MemberLoginRequest
  Members:     MemberDTO
  Catalog:     CriteriaDTO, CriteriaRequest, PublishRequest
  Entries:     EntryDTO, AttachmentDTO, DecisionRequest, OverrideRequest
  Leaderboard: LeaderboardDTO, RoleStatsDTO, StatsDTO
  Consent:     ConsentDTO, ConsentRequest
  Admin:       AdminRequest, AdminDTO, SyncRequest

FORMATS:
  Dates are "2006-01-02". Timestamps are RFC 3339 in UTC.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/recognition-engine/auth"
	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/rewards"
)

const dateLayout = "2006-01-02"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// =============================================================================
// SESSION
// =============================================================================

type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type MemberLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionDTO describes the caller. Token is only set by login endpoints.
type SessionDTO struct {
	EmployeeID string     `json:"employee_id"`
	Username   string     `json:"username"`
	Role       int        `json:"role"`
	RoleName   string     `json:"role_name"`
	Token      string     `json:"token,omitempty"`
	ExpiresAt  string     `json:"expires_at,omitempty"`
	Member     *MemberDTO `json:"member,omitempty"`
}

func toSessionDTO(s *auth.Session) SessionDTO {
	dto := SessionDTO{
		EmployeeID: string(s.EmployeeID),
		Username:   s.Username,
		Role:       int(s.Role),
		RoleName:   s.Role.String(),
		Token:      s.Token,
		ExpiresAt:  formatTime(s.ExpiresAt),
	}
	if s.Member != nil {
		m := toMemberDTO(*s.Member)
		dto.Member = &m
	}
	return dto
}

// =============================================================================
// MEMBERS
// =============================================================================

type MemberDTO struct {
	EmployeeID   string `json:"employee_id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	FullName     string `json:"full_name"`
	Email        string `json:"email"`
	Title        string `json:"title"`
	Role         int    `json:"role"`
	RoleName     string `json:"role_name"`
	Status       string `json:"status"`
	ManagerID    string `json:"manager_id,omitempty"`
	ManagerName  string `json:"manager_name,omitempty"`
	DirectorID   string `json:"director_id,omitempty"`
	DirectorName string `json:"director_name,omitempty"`
}

func toMemberDTO(m generic.Member) MemberDTO {
	return MemberDTO{
		EmployeeID:   string(m.EmployeeID),
		Username:     m.Username,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		FullName:     m.FullName(),
		Email:        m.Email,
		Title:        m.Title,
		Role:         int(m.Role),
		RoleName:     m.Role.String(),
		Status:       string(m.Status),
		ManagerID:    string(m.ManagerID),
		ManagerName:  m.ManagerName,
		DirectorID:   string(m.DirectorID),
		DirectorName: m.DirectorName,
	}
}

func toMemberDTOs(ms []generic.Member) []MemberDTO {
	out := make([]MemberDTO, len(ms))
	for i, m := range ms {
		out[i] = toMemberDTO(m)
	}
	return out
}

// =============================================================================
// CATALOG
// =============================================================================

type CriteriaDTO struct {
	ID               int64  `json:"id"`
	Track            string `json:"track"`
	Category         string `json:"category"`
	Accomplishment   string `json:"accomplishment"`
	Points           int64  `json:"points"`
	Guidelines       string `json:"guidelines,omitempty"`
	DirectorApproval bool   `json:"director_approval"`
	Type             string `json:"type,omitempty"`
	Published        bool   `json:"published"`
	CreatedAt        string `json:"created_at,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

func toCriteriaDTO(c generic.Criteria) CriteriaDTO {
	return CriteriaDTO{
		ID:               int64(c.ID),
		Track:            string(c.Track),
		Category:         c.Category,
		Accomplishment:   c.Accomplishment,
		Points:           c.Points,
		Guidelines:       c.Guidelines,
		DirectorApproval: c.DirectorApproval,
		Type:             string(c.Type),
		Published:        c.Published,
		CreatedAt:        formatTime(c.CreatedAt),
		UpdatedAt:        formatTime(c.UpdatedAt),
	}
}

func toCriteriaDTOs(cs []generic.Criteria) []CriteriaDTO {
	out := make([]CriteriaDTO, len(cs))
	for i, c := range cs {
		out[i] = toCriteriaDTO(c)
	}
	return out
}

// CriteriaRequest creates or replaces a catalog row. Track and ID come from
// the URL on updates.
type CriteriaRequest struct {
	ID               int64  `json:"id"`
	Track            string `json:"track"`
	Category         string `json:"category"`
	Accomplishment   string `json:"accomplishment"`
	Points           int64  `json:"points"`
	Guidelines       string `json:"guidelines"`
	DirectorApproval bool   `json:"director_approval"`
	Type             string `json:"type"`
}

func (r CriteriaRequest) criteria(track generic.Track) generic.Criteria {
	return generic.Criteria{
		ID:               generic.CriteriaID(r.ID),
		Track:            track,
		Category:         r.Category,
		Accomplishment:   r.Accomplishment,
		Points:           r.Points,
		Guidelines:       r.Guidelines,
		DirectorApproval: r.DirectorApproval,
		Type:             generic.CriteriaType(r.Type),
	}
}

type PublishRequest struct {
	IDs []int64 `json:"ids"`
}

// =============================================================================
// ENTRIES
// =============================================================================

type AttachmentDTO struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

// EntryDTO is an entry with its approval record and catalog row.
type EntryDTO struct {
	ID               int64           `json:"id"`
	OwnerID          string          `json:"owner_id"`
	OwnerName        string          `json:"owner_name,omitempty"`
	CriteriaID       int64           `json:"criteria_id"`
	Track            string          `json:"track"`
	Category         string          `json:"category,omitempty"`
	Criteria         string          `json:"criteria,omitempty"`
	Points           int64           `json:"points"`
	FiscalYear       string          `json:"fiscal_year"`
	Season           string          `json:"season"`
	Accomplishment   string          `json:"accomplishment"`
	DateAccomplished string          `json:"date_accomplished"`
	ProjectName      string          `json:"project_name"`
	Notes            string          `json:"notes,omitempty"`
	Attachments      []AttachmentDTO `json:"attachments"`
	ManagerID        string          `json:"manager_id,omitempty"`
	DirectorID       string          `json:"director_id,omitempty"`
	ManagerStatus    string          `json:"manager_status"`
	DirectorStatus   string          `json:"director_status"`
	ManagerNotes     string          `json:"manager_notes,omitempty"`
	DirectorNotes    string          `json:"director_notes,omitempty"`
	State            string          `json:"state"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

func toEntryDTO(e generic.RewardEntry, a generic.ApprovalEntry) EntryDTO {
	atts := make([]AttachmentDTO, len(e.Attachments))
	for i, att := range e.Attachments {
		atts[i] = AttachmentDTO{Filename: att.Filename, Path: att.Path, Size: att.Size}
	}
	return EntryDTO{
		ID:               int64(e.ID),
		OwnerID:          string(e.OwnerID),
		CriteriaID:       int64(e.CriteriaID),
		Track:            string(e.Track),
		Points:           e.Points,
		FiscalYear:       e.FiscalYear,
		Season:           e.Season,
		Accomplishment:   e.Accomplishment,
		DateAccomplished: formatDate(e.DateAccomplished),
		ProjectName:      e.ProjectName,
		Notes:            e.Notes,
		Attachments:      atts,
		ManagerID:        string(a.ManagerID),
		DirectorID:       string(a.DirectorID),
		ManagerStatus:    string(a.Approval.Manager()),
		DirectorStatus:   string(a.Approval.Director()),
		ManagerNotes:     a.ManagerNotes,
		DirectorNotes:    a.DirectorNotes,
		State:            a.Approval.State().String(),
		CreatedAt:        formatTime(e.CreatedAt),
		UpdatedAt:        formatTime(e.UpdatedAt),
	}
}

func toDetailDTO(d rewards.EntryDetail) EntryDTO {
	dto := toEntryDTO(d.Entry, d.Approval)
	if d.Criteria != nil {
		dto.Category = d.Criteria.Category
		dto.Criteria = d.Criteria.Accomplishment
	}
	if d.Owner != nil {
		dto.OwnerName = d.Owner.FullName()
	}
	return dto
}

func toDetailDTOs(ds []rewards.EntryDetail) []EntryDTO {
	out := make([]EntryDTO, len(ds))
	for i, d := range ds {
		out[i] = toDetailDTO(d)
	}
	return out
}

// OutcomeDTO is returned by every operation that moves points.
type OutcomeDTO struct {
	Entry       EntryDTO       `json:"entry"`
	Leaderboard LeaderboardDTO `json:"leaderboard"`
}

func toOutcomeDTO(o *generic.Outcome) OutcomeDTO {
	return OutcomeDTO{
		Entry:       toEntryDTO(o.Entry, o.Approval),
		Leaderboard: toRecordDTO(o.Leaderboard),
	}
}

type DecisionRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// OverrideRequest sets both stages at once. Nil notes keep the current text.
type OverrideRequest struct {
	ManagerStatus  string  `json:"manager_status"`
	DirectorStatus string  `json:"director_status"`
	CriteriaID     int64   `json:"criteria_id"`
	ManagerNotes   *string `json:"manager_notes"`
	DirectorNotes  *string `json:"director_notes"`
}

// =============================================================================
// LEADERBOARD
// =============================================================================

type LeaderboardDTO struct {
	EmployeeID        string `json:"employee_id"`
	FiscalYear        string `json:"fiscal_year"`
	Alias             string `json:"alias"`
	TotalPoints       int64  `json:"total_points"`
	ApprovedPoints    int64  `json:"approved_points"`
	ForApprovalPoints int64  `json:"for_approval_points"`
	RejectedPoints    int64  `json:"rejected_points"`
	FirstName         string `json:"first_name,omitempty"`
	LastName          string `json:"last_name,omitempty"`
	Title             string `json:"title,omitempty"`
	Role              int    `json:"role,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

func toRecordDTO(r generic.LeaderboardRecord) LeaderboardDTO {
	return LeaderboardDTO{
		EmployeeID:        string(r.EmployeeID),
		FiscalYear:        r.FiscalYear,
		Alias:             r.Alias,
		TotalPoints:       r.TotalPoints,
		ApprovedPoints:    r.ApprovedPoints,
		ForApprovalPoints: r.ForApprovalPoints,
		RejectedPoints:    r.RejectedPoints,
		UpdatedAt:         formatTime(r.UpdatedAt),
	}
}

func toRowDTOs(rows []generic.LeaderboardRow) []LeaderboardDTO {
	out := make([]LeaderboardDTO, len(rows))
	for i, r := range rows {
		dto := toRecordDTO(r.LeaderboardRecord)
		dto.FirstName = r.FirstName
		dto.LastName = r.LastName
		dto.Title = r.Title
		dto.Role = int(r.Role)
		out[i] = dto
	}
	return out
}

type RoleStatsDTO struct {
	Role        int             `json:"role"`
	RoleName    string          `json:"role_name"`
	Members     int             `json:"members"`
	Total       int64           `json:"total_points"`
	Approved    int64           `json:"approved_points"`
	ForApproval int64           `json:"for_approval_points"`
	Rejected    int64           `json:"rejected_points"`
	Average     decimal.Decimal `json:"average_points"`
}

type StatsDTO struct {
	FiscalYear  string           `json:"fiscal_year"`
	ByRole      []RoleStatsDTO   `json:"by_role"`
	TopManagers []LeaderboardDTO `json:"top_managers"`
	TopMembers  []LeaderboardDTO `json:"top_members"`
}

func toStatsDTO(s *rewards.Stats) StatsDTO {
	dto := StatsDTO{
		FiscalYear:  s.FiscalYear,
		ByRole:      make([]RoleStatsDTO, len(s.ByRole)),
		TopManagers: toRowDTOs(s.TopManagers),
		TopMembers:  toRowDTOs(s.TopMembers),
	}
	for i, rs := range s.ByRole {
		dto.ByRole[i] = RoleStatsDTO{
			Role:        int(rs.Role),
			RoleName:    rs.Role.String(),
			Members:     rs.Members,
			Total:       rs.Total,
			Approved:    rs.Approved,
			ForApproval: rs.ForApproval,
			Rejected:    rs.Rejected,
			Average:     rs.Average,
		}
	}
	return dto
}

// =============================================================================
// CONSENT
// =============================================================================

type ConsentDTO struct {
	EmployeeID          string `json:"employee_id"`
	InternalPublication bool   `json:"internal_publication_consent"`
	PersonalData        bool   `json:"personal_data_consent"`
	RewardsManagement   bool   `json:"rewards_management_consent"`
	MemberName          string `json:"member_name,omitempty"`
	MemberEmail         string `json:"member_email,omitempty"`
	CreatedAt           string `json:"created_at,omitempty"`
	UpdatedAt           string `json:"updated_at,omitempty"`
}

func toConsentDTO(c generic.ConsentLog) ConsentDTO {
	return ConsentDTO{
		EmployeeID:          string(c.EmployeeID),
		InternalPublication: c.InternalPublicationConsent,
		PersonalData:        c.PersonalDataConsent,
		RewardsManagement:   c.RewardsManagementConsent,
		MemberName:          c.MemberName,
		MemberEmail:         c.MemberEmail,
		CreatedAt:           formatTime(c.CreatedAt),
		UpdatedAt:           formatTime(c.UpdatedAt),
	}
}

type ConsentRequest struct {
	InternalPublication bool `json:"internal_publication_consent"`
	PersonalData        bool `json:"personal_data_consent"`
	RewardsManagement   bool `json:"rewards_management_consent"`
}

// =============================================================================
// ADMIN
// =============================================================================

type AdminRequest struct {
	EmployeeID string `json:"employee_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

// AdminDTO never carries the password hash.
type AdminDTO struct {
	EmployeeID string `json:"employee_id,omitempty"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
}

// SyncRequest limits a directory sync to one username. Empty syncs the
// whole hierarchy.
type SyncRequest struct {
	Username string `json:"username"`
}
