/*
store.go - Persistence interfaces

PURPOSE:
  Defines the interface between the workflow and the database. The engine
  only depends on these interfaces; implementations live elsewhere.

KEY INTERFACES:
  MemberStore:      Directory mirror
  CriteriaStore:    Catalog, keyed by (track, id)
  EntryStore:       Reward entries and their attachment manifests
  ApprovalStore:    One approval record per entry
  LeaderboardStore: Per employee, per fiscal year point buckets
  ConsentStore:     Consent logs
  AdminStore:       Local admin accounts
  AuditLog:         Who did what when
  TxStore:          All of the above plus atomic multi-table writes

NOT-FOUND CONVENTION:
  Getters return (nil, nil) when the row does not exist. Callers decide
  whether absence is an error (see workflow.go).

ATOMICITY:
  Every workflow transition writes an approval status and a leaderboard
  record. WithTx guarantees both land or neither does. Inside WithTx, the
  leaderboard read is row-locked where the database supports it.

IMPLEMENTATIONS:
  - store/sqldb:          SQLite (default) and PostgreSQL
  - generic/store/memory: In-memory for tests

SEE ALSO:
  - workflow.go: Uses TxStore
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Interfaces per aggregate
// =============================================================================

type MemberStore interface {
	// GetMember returns the member regardless of status.
	GetMember(ctx context.Context, id EmployeeID) (*Member, error)
	GetMemberByUsername(ctx context.Context, username string) (*Member, error)
	GetMemberByEmail(ctx context.Context, email string) (*Member, error)
	ListMembers(ctx context.Context, filter MemberFilter) ([]Member, error)
	// SaveMember inserts or updates by employee id.
	SaveMember(ctx context.Context, m Member) error
	SetMemberStatus(ctx context.Context, id EmployeeID, status MemberStatus) error
}

type CriteriaStore interface {
	GetCriteria(ctx context.Context, id CriteriaID, track Track) (*Criteria, error)
	ListCriteria(ctx context.Context, filter CriteriaFilter) ([]Criteria, error)
	// SaveCriteria inserts or updates by (track, id).
	SaveCriteria(ctx context.Context, c Criteria) error
	DeleteCriteria(ctx context.Context, id CriteriaID, track Track) error
	// PublishCriteria publishes the given ids, or every draft of the track
	// when ids is empty. Returns the number of rows changed.
	PublishCriteria(ctx context.Context, track Track, ids []CriteriaID) (int64, error)
}

// EntryFilter narrows entry listings. Zero fields are ignored.
type EntryFilter struct {
	OwnerID     EmployeeID
	ProjectName string
	FiscalYear  string
	CriteriaID  CriteriaID
}

type EntryStore interface {
	// CreateEntry assigns e.ID.
	CreateEntry(ctx context.Context, e *RewardEntry) error
	GetEntry(ctx context.Context, id EntryID) (*RewardEntry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]RewardEntry, error)
	UpdateEntry(ctx context.Context, e RewardEntry) error
	// UpdateEntryDetails writes the descriptive fields and the attachment
	// manifest only. Criteria and points belong to the workflow.
	UpdateEntryDetails(ctx context.Context, e RewardEntry) error
	// DeleteEntry removes the entry and its approval record.
	DeleteEntry(ctx context.Context, id EntryID) error
}

type ApprovalStore interface {
	// CreateApproval assigns a.ID.
	CreateApproval(ctx context.Context, a *ApprovalEntry) error
	GetApproval(ctx context.Context, id ApprovalID) (*ApprovalEntry, error)
	GetApprovalByEntry(ctx context.Context, entryID EntryID) (*ApprovalEntry, error)
	UpdateApproval(ctx context.Context, a ApprovalEntry) error
	// ListApprovals returns newest first.
	ListApprovals(ctx context.Context, filter ApprovalFilter) ([]ApprovalEntry, error)
}

type LeaderboardStore interface {
	GetLeaderboard(ctx context.Context, id EmployeeID, fiscalYear string) (*LeaderboardRecord, error)
	GetLeaderboardByAlias(ctx context.Context, alias string) (*LeaderboardRecord, error)
	CountLeaderboards(ctx context.Context, fiscalYear string) (int, error)
	// CreateLeaderboard assigns rec.ID. Fails with ErrDuplicate when the
	// employee already has a record for the fiscal year.
	CreateLeaderboard(ctx context.Context, rec *LeaderboardRecord) error
	SaveLeaderboard(ctx context.Context, rec LeaderboardRecord) error
	// ListLeaderboards returns rows ordered by total points, highest first.
	ListLeaderboards(ctx context.Context, filter LeaderboardFilter) ([]LeaderboardRow, error)
}

type ConsentStore interface {
	GetConsent(ctx context.Context, id EmployeeID) (*ConsentLog, error)
	SaveConsent(ctx context.Context, c ConsentLog) error
	// ListConsents joins member name and email.
	ListConsents(ctx context.Context) ([]ConsentLog, error)
}

type AdminStore interface {
	// GetAdminByUsername returns active accounts only.
	GetAdminByUsername(ctx context.Context, username string) (*AdminAccount, error)
	SaveAdmin(ctx context.Context, a *AdminAccount) error
}

// Store is every persistence capability the engine uses.
type Store interface {
	MemberStore
	CriteriaStore
	EntryStore
	ApprovalStore
	LeaderboardStore
	ConsentStore
	AdminStore
	AuditLog
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AUDIT LOG - Who did what when
// =============================================================================

type AuditAction string

const (
	AuditEntrySubmitted   AuditAction = "entry_submitted"
	AuditManagerDecided   AuditAction = "manager_decided"
	AuditDirectorDecided  AuditAction = "director_decided"
	AuditEntryResubmitted AuditAction = "entry_resubmitted"
	AuditAdminOverride    AuditAction = "admin_override"
	AuditEntryDeleted     AuditAction = "entry_deleted"
	AuditEntryUpdated     AuditAction = "entry_updated"
	AuditAdminChanged     AuditAction = "admin_changed"
	AuditCriteriaChanged  AuditAction = "criteria_changed"
	AuditDirectorySynced  AuditAction = "directory_synced"
)

type AuditEntry struct {
	ID        int64
	Timestamp time.Time
	ActorID   EmployeeID
	Action    AuditAction
	EntryID   EntryID
	Payload   map[string]any
}

type AuditFilter struct {
	ActorID EmployeeID
	EntryID EntryID
	Actions []AuditAction
	Limit   int
}

// AuditLog is append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}
