/*
Package generic provides the core recognition engine.

PURPOSE:
  This package holds the domain model and the approval workflow that moves
  reward points through a two-stage (manager, director) approval chain while
  keeping each employee's leaderboard buckets consistent. Everything else in
  the repository (HTTP surface, directory sync, notification delivery, file
  storage) is a collaborator of this package.

KEY CONCEPTS IN THIS FILE (types.go):
  - Typed IDs: EmployeeID, CriteriaID, EntryID, ApprovalID
  - Role:      Closed enum of organisational roles (1..6 on the wire)
  - Track:     Which criteria catalog an entry is validated against
  - Member, Criteria, RewardEntry, Attachment, ConsentLog, AdminAccount

DESIGN PRINCIPLES:
  1. Closed enums: every switch over Role/Track/Status is exhaustive
  2. Type Safety: typed IDs keep employee ids and entry ids apart
  3. Snapshots: an entry records the criteria points it was submitted with

SEE ALSO:
  - approval.go: Tagged approval state and transitions
  - ledger.go:   Leaderboard bucket arithmetic
  - workflow.go: Submission, decisions, resubmission, admin override
*/
package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// EmployeeID is the natural key of a member, as issued by the directory.
type EmployeeID string

type CriteriaID int64

type EntryID int64

type ApprovalID int64

// =============================================================================
// ROLE - Organisational role, encoded 1..6 in storage and tokens
// =============================================================================

type Role int

const (
	RoleSuperAdmin Role = 1
	RoleAdmin      Role = 2
	RoleExec       Role = 3 // VP, SVP, EVP, President
	RoleDirector   Role = 4
	RoleManager    Role = 5
	RoleMember     Role = 6
)

// AllRoles lists every role in wire order.
var AllRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleExec, RoleDirector, RoleManager, RoleMember}

func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "SUPER_ADMIN"
	case RoleAdmin:
		return "ADMIN"
	case RoleExec:
		return "EXEC"
	case RoleDirector:
		return "DIRECTOR"
	case RoleManager:
		return "MANAGER"
	case RoleMember:
		return "MEMBER"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r >= RoleSuperAdmin && r <= RoleMember
}

// IsAdmin reports whether r bypasses role checks.
func (r Role) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// ParseRole accepts either the numeric wire value or the role name.
func ParseRole(s string) (Role, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, r := range AllRoles {
		if s == r.String() || s == fmt.Sprint(int(r)) {
			return r, nil
		}
	}
	return 0, &ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", s)}
}

// RoleFromTitle derives a role from a directory job title by prefix.
// Admin roles are never derived; they are granted explicitly.
func RoleFromTitle(title string) Role {
	t := strings.ToUpper(strings.TrimSpace(title))
	for _, prefix := range []string{"SENIOR VP", "SVPCD", "SVPCO", "SVP", "VPCO", "VP", "EVP", "PRESIDENT"} {
		if strings.HasPrefix(t, prefix) {
			return RoleExec
		}
	}
	switch {
	case strings.HasPrefix(t, "DIRECTOR"):
		return RoleDirector
	case strings.HasPrefix(t, "MANAGER"):
		return RoleManager
	default:
		return RoleMember
	}
}

// =============================================================================
// TRACK - Criteria namespace
// =============================================================================

// Track selects the criteria catalog. Ids are only unique within a track.
type Track string

const (
	TrackMember  Track = "MEMBER"
	TrackManager Track = "MANAGER"
)

func (t Track) Valid() bool {
	return t == TrackMember || t == TrackManager
}

// ParseTrack is case-insensitive.
func ParseTrack(s string) (Track, error) {
	t := Track(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", &ValidationError{Field: "track", Message: fmt.Sprintf("unknown track %q", s)}
	}
	return t, nil
}

// CriteriaType narrows manager-track criteria to a practice.
type CriteriaType string

const (
	CriteriaDelivery CriteriaType = "DELIVERY"
	CriteriaExperts  CriteriaType = "EXPERTS"
	CriteriaBoth     CriteriaType = "BOTH"
)

// =============================================================================
// MEMBER - Local mirror of a directory identity
// =============================================================================

type MemberStatus string

const (
	MemberActive   MemberStatus = "ACTIVE"
	MemberInactive MemberStatus = "INACTIVE"
)

type Member struct {
	EmployeeID EmployeeID
	Username   string
	FirstName  string
	LastName   string
	Email      string
	Title      string
	ManagerID  EmployeeID // empty when none
	DirectorID EmployeeID // empty when none
	Role       Role
	Status     MemberStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Derived on lookup, never persisted.
	ManagerName  string
	DirectorName string
}

// FullName returns "First Last", falling back to the username.
func (m Member) FullName() string {
	name := strings.TrimSpace(m.FirstName + " " + m.LastName)
	if name == "" {
		return m.Username
	}
	return name
}

func (m Member) Active() bool { return m.Status == MemberActive }

// SameIdentity reports whether two records carry the same synchronized
// fields. Timestamps and derived names are ignored.
func (m Member) SameIdentity(o Member) bool {
	return m.EmployeeID == o.EmployeeID &&
		m.Username == o.Username &&
		m.FirstName == o.FirstName &&
		m.LastName == o.LastName &&
		m.Email == o.Email &&
		m.Title == o.Title &&
		m.ManagerID == o.ManagerID &&
		m.DirectorID == o.DirectorID &&
		m.Role == o.Role &&
		m.Status == o.Status
}

// MemberFilter narrows member listings. Zero fields are ignored.
type MemberFilter struct {
	Role            *Role
	ManagerID       EmployeeID
	DirectorID      EmployeeID
	IncludeInactive bool
}

// =============================================================================
// CRITERIA - Catalog entry
// =============================================================================

type Criteria struct {
	ID               CriteriaID
	Track            Track
	Category         string
	Accomplishment   string
	Points           int64
	Guidelines       string
	DirectorApproval bool
	Type             CriteriaType // manager track only, empty otherwise
	Published        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Validate checks the fields a catalog row must carry.
func (c Criteria) Validate() error {
	if c.ID <= 0 {
		return &ValidationError{Field: "id", Message: "criteria id must be positive"}
	}
	if !c.Track.Valid() {
		return &ValidationError{Field: "track", Message: fmt.Sprintf("unknown track %q", c.Track)}
	}
	if strings.TrimSpace(c.Category) == "" {
		return &ValidationError{Field: "category", Message: "category is required"}
	}
	if c.Points <= 0 {
		return &ValidationError{Field: "points", Message: "points must be a positive integer"}
	}
	switch c.Type {
	case "", CriteriaDelivery, CriteriaExperts, CriteriaBoth:
	default:
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown criteria type %q", c.Type)}
	}
	return nil
}

// CriteriaFilter narrows catalog listings.
type CriteriaFilter struct {
	Track            Track
	Published        *bool
	Category         string
	DirectorApproval *bool
}

// =============================================================================
// REWARD ENTRY - A submitted accomplishment
// =============================================================================

// Attachment is one file in an entry's manifest. Path is relative to the
// upload root.
type Attachment struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

type RewardEntry struct {
	ID               EntryID
	OwnerID          EmployeeID
	CriteriaID       CriteriaID
	Track            Track
	Points           int64 // criteria points at submission (or last recompute)
	FiscalYear       string
	Season           string // "FY25 Q1"
	Accomplishment   string
	DateAccomplished time.Time
	ProjectName      string
	Notes            string
	Attachments      []Attachment
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DedupeAttachments keeps the first occurrence of every path, preserving order.
func DedupeAttachments(in []Attachment) []Attachment {
	seen := make(map[string]bool, len(in))
	out := make([]Attachment, 0, len(in))
	for _, a := range in {
		if a.Path == "" || seen[a.Path] {
			continue
		}
		seen[a.Path] = true
		out = append(out, a)
	}
	return out
}

// =============================================================================
// CONSENT & ADMIN
// =============================================================================

type ConsentLog struct {
	EmployeeID                 EmployeeID
	InternalPublicationConsent bool
	PersonalDataConsent        bool
	RewardsManagementConsent   bool
	CreatedAt                  time.Time
	UpdatedAt                  time.Time

	// Populated by admin listings.
	MemberName  string
	MemberEmail string
}

type AdminAccount struct {
	ID           int64
	EmployeeID   EmployeeID
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Status       MemberStatus
	CreatedAt    time.Time
}
