// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every aggregate in maps guarded by one mutex. The unlocked
// operations live on memState so the transactional view can reuse them while
// WithTx already holds the lock.
type Memory struct {
	mu sync.RWMutex
	s  *memState
}

type criteriaKey struct {
	Track generic.Track
	ID    generic.CriteriaID
}

type leaderboardKey struct {
	EmployeeID generic.EmployeeID
	FiscalYear string
}

type memState struct {
	members      map[generic.EmployeeID]generic.Member
	criteria     map[criteriaKey]generic.Criteria
	entries      map[generic.EntryID]generic.RewardEntry
	approvals    map[generic.ApprovalID]generic.ApprovalEntry
	leaderboards map[leaderboardKey]generic.LeaderboardRecord
	consents     map[generic.EmployeeID]generic.ConsentLog
	admins       map[string]generic.AdminAccount
	audit        []generic.AuditEntry

	nextEntry       generic.EntryID
	nextApproval    generic.ApprovalID
	nextLeaderboard int64
	nextAdmin       int64
}

func NewMemory() *Memory {
	return &Memory{s: newMemState()}
}

func newMemState() *memState {
	return &memState{
		members:      make(map[generic.EmployeeID]generic.Member),
		criteria:     make(map[criteriaKey]generic.Criteria),
		entries:      make(map[generic.EntryID]generic.RewardEntry),
		approvals:    make(map[generic.ApprovalID]generic.ApprovalEntry),
		leaderboards: make(map[leaderboardKey]generic.LeaderboardRecord),
		consents:     make(map[generic.EmployeeID]generic.ConsentLog),
		admins:       make(map[string]generic.AdminAccount),
	}
}

func (m *Memory) read(fn func(s *memState) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(m.s)
}

func (m *Memory) write(fn func(s *memState) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.s)
}

// =============================================================================
// LOCKED API
// =============================================================================

func (m *Memory) GetMember(ctx context.Context, id generic.EmployeeID) (out *generic.Member, err error) {
	err = m.read(func(s *memState) error { out, err = s.GetMember(ctx, id); return err })
	return
}

func (m *Memory) GetMemberByUsername(ctx context.Context, username string) (out *generic.Member, err error) {
	err = m.read(func(s *memState) error { out, err = s.GetMemberByUsername(ctx, username); return err })
	return
}

func (m *Memory) GetMemberByEmail(ctx context.Context, email string) (out *generic.Member, err error) {
	err = m.read(func(s *memState) error { out, err = s.GetMemberByEmail(ctx, email); return err })
	return
}

func (m *Memory) ListMembers(ctx context.Context, f generic.MemberFilter) (out []generic.Member, err error) {
	err = m.read(func(s *memState) error { out, err = s.ListMembers(ctx, f); return err })
	return
}

func (m *Memory) SaveMember(ctx context.Context, mem generic.Member) error {
	return m.write(func(s *memState) error { return s.SaveMember(ctx, mem) })
}

func (m *Memory) SetMemberStatus(ctx context.Context, id generic.EmployeeID, status generic.MemberStatus) error {
	return m.write(func(s *memState) error { return s.SetMemberStatus(ctx, id, status) })
}

func (m *Memory) GetCriteria(ctx context.Context, id generic.CriteriaID, track generic.Track) (out *generic.Criteria, err error) {
	err = m.read(func(s *memState) error { out, err = s.GetCriteria(ctx, id, track); return err })
	return
}

func (m *Memory) ListCriteria(ctx context.Context, f generic.CriteriaFilter) (out []generic.Criteria, err error) {
	err = m.read(func(s *memState) error { out, err = s.ListCriteria(ctx, f); return err })
	return
}

func (m *Memory) SaveCriteria(ctx context.Context, c generic.Criteria) error {
	return m.write(func(s *memState) error { return s.SaveCriteria(ctx, c) })
}

func (m *Memory) DeleteCriteria(ctx context.Context, id generic.CriteriaID, track generic.Track) error {
	return m.write(func(s *memState) error { return s.DeleteCriteria(ctx, id, track) })
}

func (m *Memory) PublishCriteria(ctx context.Context, track generic.Track, ids []generic.CriteriaID) (n int64, err error) {
	err = m.write(func(s *memState) error { n, err = s.PublishCriteria(ctx, track, ids); return err })
	return
}

func (m *Memory) CreateEntry(ctx context.Context, e *generic.RewardEntry) error {
	return m.write(func(s *memState) error { return s.CreateEntry(ctx, e) })
}

func (m *Memory) GetEntry(ctx context.Context, id generic.EntryID) (out *generic.RewardEntry, err error) {
	err = m.read(func(s *memState) error { out, err = s.GetEntry(ctx, id); return err })
	return
}

func (m *Memory) ListEntries(ctx context.Context, f generic.EntryFilter) (out []generic.RewardEntry, err error) {
	err = m.read(func(s *memState) error { out, err = s.ListEntries(ctx, f); return err })
	return
}

func (m *Memory) UpdateEntry(ctx context.Context, e generic.RewardEntry) error {
	return m.write(func(s *memState) error { return s.UpdateEntry(ctx, e) })
}

func (m *Memory) UpdateEntryDetails(ctx context.Context, e generic.RewardEntry) error {
	return m.write(func(s *memState) error { return s.UpdateEntryDetails(ctx, e) })
}

func (m *Memory) DeleteEntry(ctx context.Context, id generic.EntryID) error {
	return m.write(func(s *memState) error { return s.DeleteEntry(ctx, id) })
}

func (m *Memory) CreateApproval(ctx context.Context, a *generic.ApprovalEntry) error {
	return m.write(func(s *memState) error { return s.CreateApproval(ctx, a) })
}

func (m *Memory) GetApproval(ctx context.Context, id generic.ApprovalID) (out *generic.ApprovalEntry, err error) {
	err = m.read(func(s *memState) error { out, err = s.GetApproval(ctx, id); return err })
	return
}

func (m *Memory) GetApprovalByEntry(ctx context.Context, id generic.EntryID) (out *generic.ApprovalEntry, err error) {
	err = m.read(func(s *memState) error { out, err = s.GetApprovalByEntry(ctx, id); return err })
	return
}

func (m *Memory) UpdateApproval(ctx context.Context, a generic.ApprovalEntry) error {
	return m.write(func(s *memState) error { return s.UpdateApproval(ctx, a) })
}

func (m *Memory) ListApprovals(ctx context.Context, f generic.ApprovalFilter) (out []generic.ApprovalEntry, err error) {
	err = m.read(func(s *memState) error { out, err = s.ListApprovals(ctx, f); return err })
	return
}

func (m *Memory) GetLeaderboard(ctx context.Context, id generic.EmployeeID, fy string) (out *generic.LeaderboardRecord, err error) {
	err = m.read(func(s *memState) error { out, err = s.GetLeaderboard(ctx, id, fy); return err })
	return
}

func (m *Memory) GetLeaderboardByAlias(ctx context.Context, alias string) (out *generic.LeaderboardRecord, err error) {
	err = m.read(func(s *memState) error { out, err = s.GetLeaderboardByAlias(ctx, alias); return err })
	return
}

func (m *Memory) CountLeaderboards(ctx context.Context, fy string) (n int, err error) {
	err = m.read(func(s *memState) error { n, err = s.CountLeaderboards(ctx, fy); return err })
	return
}

func (m *Memory) CreateLeaderboard(ctx context.Context, rec *generic.LeaderboardRecord) error {
	return m.write(func(s *memState) error { return s.CreateLeaderboard(ctx, rec) })
}

func (m *Memory) SaveLeaderboard(ctx context.Context, rec generic.LeaderboardRecord) error {
	return m.write(func(s *memState) error { return s.SaveLeaderboard(ctx, rec) })
}

func (m *Memory) ListLeaderboards(ctx context.Context, f generic.LeaderboardFilter) (out []generic.LeaderboardRow, err error) {
	err = m.read(func(s *memState) error { out, err = s.ListLeaderboards(ctx, f); return err })
	return
}

func (m *Memory) GetConsent(ctx context.Context, id generic.EmployeeID) (out *generic.ConsentLog, err error) {
	err = m.read(func(s *memState) error { out, err = s.GetConsent(ctx, id); return err })
	return
}

func (m *Memory) SaveConsent(ctx context.Context, c generic.ConsentLog) error {
	return m.write(func(s *memState) error { return s.SaveConsent(ctx, c) })
}

func (m *Memory) ListConsents(ctx context.Context) (out []generic.ConsentLog, err error) {
	err = m.read(func(s *memState) error { out, err = s.ListConsents(ctx); return err })
	return
}

func (m *Memory) GetAdminByUsername(ctx context.Context, username string) (out *generic.AdminAccount, err error) {
	err = m.read(func(s *memState) error { out, err = s.GetAdminByUsername(ctx, username); return err })
	return
}

func (m *Memory) SaveAdmin(ctx context.Context, a *generic.AdminAccount) error {
	return m.write(func(s *memState) error { return s.SaveAdmin(ctx, a) })
}

func (m *Memory) AppendAudit(ctx context.Context, e generic.AuditEntry) error {
	return m.write(func(s *memState) error { return s.AppendAudit(ctx, e) })
}

func (m *Memory) QueryAudit(ctx context.Context, f generic.AuditFilter) (out []generic.AuditEntry, err error) {
	err = m.read(func(s *memState) error { out, err = s.QueryAudit(ctx, f); return err })
	return
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.s.clone()
	if err := fn(tm.s); err != nil {
		tm.s = snapshot
		return err
	}
	return nil
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.criteria {
		c.criteria[k] = v
	}
	for k, v := range s.entries {
		v.Attachments = append([]generic.Attachment(nil), v.Attachments...)
		c.entries[k] = v
	}
	for k, v := range s.approvals {
		c.approvals[k] = v
	}
	for k, v := range s.leaderboards {
		c.leaderboards[k] = v
	}
	for k, v := range s.consents {
		c.consents[k] = v
	}
	for k, v := range s.admins {
		c.admins[k] = v
	}
	c.audit = append([]generic.AuditEntry(nil), s.audit...)
	c.nextEntry = s.nextEntry
	c.nextApproval = s.nextApproval
	c.nextLeaderboard = s.nextLeaderboard
	c.nextAdmin = s.nextAdmin
	return c
}

// =============================================================================
// UNLOCKED STATE - Members
// =============================================================================

func (s *memState) GetMember(_ context.Context, id generic.EmployeeID) (*generic.Member, error) {
	m, ok := s.members[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *memState) GetMemberByUsername(_ context.Context, username string) (*generic.Member, error) {
	for _, m := range s.members {
		if strings.EqualFold(m.Username, username) {
			return &m, nil
		}
	}
	return nil, nil
}

func (s *memState) GetMemberByEmail(_ context.Context, email string) (*generic.Member, error) {
	for _, m := range s.members {
		if strings.EqualFold(m.Email, email) {
			return &m, nil
		}
	}
	return nil, nil
}

func (s *memState) ListMembers(_ context.Context, f generic.MemberFilter) ([]generic.Member, error) {
	var out []generic.Member
	for _, m := range s.members {
		if !f.IncludeInactive && !m.Active() {
			continue
		}
		if f.Role != nil && m.Role != *f.Role {
			continue
		}
		if f.ManagerID != "" && m.ManagerID != f.ManagerID {
			continue
		}
		if f.DirectorID != "" && m.DirectorID != f.DirectorID {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		return out[i].EmployeeID < out[j].EmployeeID
	})
	return out, nil
}

func (s *memState) SaveMember(_ context.Context, m generic.Member) error {
	if m.EmployeeID == "" {
		return &generic.ValidationError{Field: "employee_id", Message: "employee id is required"}
	}
	if prev, ok := s.members[m.EmployeeID]; ok && m.CreatedAt.IsZero() {
		m.CreatedAt = prev.CreatedAt
	}
	m.ManagerName, m.DirectorName = "", ""
	s.members[m.EmployeeID] = m
	return nil
}

func (s *memState) SetMemberStatus(_ context.Context, id generic.EmployeeID, status generic.MemberStatus) error {
	m, ok := s.members[id]
	if !ok {
		return &generic.NotFoundError{Kind: "member", ID: string(id)}
	}
	m.Status = status
	s.members[id] = m
	return nil
}

// =============================================================================
// UNLOCKED STATE - Criteria
// =============================================================================

func (s *memState) GetCriteria(_ context.Context, id generic.CriteriaID, track generic.Track) (*generic.Criteria, error) {
	c, ok := s.criteria[criteriaKey{Track: track, ID: id}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *memState) ListCriteria(_ context.Context, f generic.CriteriaFilter) ([]generic.Criteria, error) {
	var out []generic.Criteria
	for _, c := range s.criteria {
		if f.Track != "" && c.Track != f.Track {
			continue
		}
		if f.Published != nil && c.Published != *f.Published {
			continue
		}
		if f.Category != "" && !strings.EqualFold(c.Category, f.Category) {
			continue
		}
		if f.DirectorApproval != nil && c.DirectorApproval != *f.DirectorApproval {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Track != out[j].Track {
			return out[i].Track < out[j].Track
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memState) SaveCriteria(_ context.Context, c generic.Criteria) error {
	k := criteriaKey{Track: c.Track, ID: c.ID}
	if prev, ok := s.criteria[k]; ok && c.CreatedAt.IsZero() {
		c.CreatedAt = prev.CreatedAt
	}
	s.criteria[k] = c
	return nil
}

func (s *memState) DeleteCriteria(_ context.Context, id generic.CriteriaID, track generic.Track) error {
	k := criteriaKey{Track: track, ID: id}
	if _, ok := s.criteria[k]; !ok {
		return &generic.NotFoundError{Kind: "criteria", ID: fmt.Sprintf("%s/%d", track, id)}
	}
	delete(s.criteria, k)
	return nil
}

func (s *memState) PublishCriteria(_ context.Context, track generic.Track, ids []generic.CriteriaID) (int64, error) {
	want := make(map[generic.CriteriaID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for k, c := range s.criteria {
		if k.Track != track || c.Published {
			continue
		}
		if len(ids) > 0 && !want[k.ID] {
			continue
		}
		c.Published = true
		s.criteria[k] = c
		n++
	}
	return n, nil
}

// =============================================================================
// UNLOCKED STATE - Entries & approvals
// =============================================================================

func copyEntry(e generic.RewardEntry) *generic.RewardEntry {
	e.Attachments = append([]generic.Attachment(nil), e.Attachments...)
	return &e
}

func (s *memState) CreateEntry(_ context.Context, e *generic.RewardEntry) error {
	s.nextEntry++
	e.ID = s.nextEntry
	s.entries[e.ID] = *copyEntry(*e)
	return nil
}

func (s *memState) GetEntry(_ context.Context, id generic.EntryID) (*generic.RewardEntry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	return copyEntry(e), nil
}

func (s *memState) ListEntries(_ context.Context, f generic.EntryFilter) ([]generic.RewardEntry, error) {
	var out []generic.RewardEntry
	for _, e := range s.entries {
		if f.OwnerID != "" && e.OwnerID != f.OwnerID {
			continue
		}
		if f.ProjectName != "" && e.ProjectName != f.ProjectName {
			continue
		}
		if f.FiscalYear != "" && e.FiscalYear != f.FiscalYear {
			continue
		}
		if f.CriteriaID != 0 && e.CriteriaID != f.CriteriaID {
			continue
		}
		out = append(out, *copyEntry(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memState) UpdateEntry(_ context.Context, e generic.RewardEntry) error {
	if _, ok := s.entries[e.ID]; !ok {
		return &generic.NotFoundError{Kind: "reward entry", ID: fmt.Sprint(e.ID)}
	}
	s.entries[e.ID] = *copyEntry(e)
	return nil
}

func (s *memState) UpdateEntryDetails(_ context.Context, e generic.RewardEntry) error {
	cur, ok := s.entries[e.ID]
	if !ok {
		return &generic.NotFoundError{Kind: "reward entry", ID: fmt.Sprint(e.ID)}
	}
	cur.Accomplishment = e.Accomplishment
	cur.DateAccomplished = e.DateAccomplished
	cur.ProjectName = e.ProjectName
	cur.Notes = e.Notes
	cur.Attachments = e.Attachments
	cur.UpdatedAt = e.UpdatedAt
	s.entries[e.ID] = *copyEntry(cur)
	return nil
}

func (s *memState) DeleteEntry(_ context.Context, id generic.EntryID) error {
	if _, ok := s.entries[id]; !ok {
		return &generic.NotFoundError{Kind: "reward entry", ID: fmt.Sprint(id)}
	}
	delete(s.entries, id)
	for aid, a := range s.approvals {
		if a.EntryID == id {
			delete(s.approvals, aid)
		}
	}
	return nil
}

func (s *memState) CreateApproval(_ context.Context, a *generic.ApprovalEntry) error {
	for _, existing := range s.approvals {
		if existing.EntryID == a.EntryID {
			return fmt.Errorf("approval for entry %d: %w", a.EntryID, generic.ErrDuplicate)
		}
	}
	s.nextApproval++
	a.ID = s.nextApproval
	s.approvals[a.ID] = *a
	return nil
}

func (s *memState) GetApproval(_ context.Context, id generic.ApprovalID) (*generic.ApprovalEntry, error) {
	a, ok := s.approvals[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *memState) GetApprovalByEntry(_ context.Context, id generic.EntryID) (*generic.ApprovalEntry, error) {
	for _, a := range s.approvals {
		if a.EntryID == id {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *memState) UpdateApproval(_ context.Context, a generic.ApprovalEntry) error {
	if _, ok := s.approvals[a.ID]; !ok {
		return &generic.NotFoundError{Kind: "approval entry", ID: fmt.Sprint(a.ID)}
	}
	s.approvals[a.ID] = a
	return nil
}

func (s *memState) ListApprovals(_ context.Context, f generic.ApprovalFilter) ([]generic.ApprovalEntry, error) {
	var out []generic.ApprovalEntry
	for _, a := range s.approvals {
		switch f.Stage {
		case generic.StageManager:
			if f.ApproverID != "" && a.ManagerID != f.ApproverID {
				continue
			}
		case generic.StageDirector:
			if f.ApproverID != "" && a.DirectorID != f.ApproverID {
				continue
			}
			if a.Approval.Manager() != generic.StatusApproved {
				continue
			}
		}
		if f.Status != nil && a.Approval.StatusOf(f.Stage) != *f.Status {
			continue
		}
		if f.ManagerID != "" && a.ManagerID != f.ManagerID {
			continue
		}
		if f.OwnerID != "" {
			if e, ok := s.entries[a.EntryID]; !ok || e.OwnerID != f.OwnerID {
				continue
			}
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// =============================================================================
// UNLOCKED STATE - Leaderboard
// =============================================================================

func (s *memState) GetLeaderboard(_ context.Context, id generic.EmployeeID, fy string) (*generic.LeaderboardRecord, error) {
	rec, ok := s.leaderboards[leaderboardKey{EmployeeID: id, FiscalYear: fy}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *memState) GetLeaderboardByAlias(_ context.Context, alias string) (*generic.LeaderboardRecord, error) {
	for _, rec := range s.leaderboards {
		if rec.Alias == alias {
			return &rec, nil
		}
	}
	return nil, nil
}

func (s *memState) CountLeaderboards(_ context.Context, fy string) (int, error) {
	n := 0
	for k := range s.leaderboards {
		if k.FiscalYear == fy {
			n++
		}
	}
	return n, nil
}

func (s *memState) CreateLeaderboard(_ context.Context, rec *generic.LeaderboardRecord) error {
	k := leaderboardKey{EmployeeID: rec.EmployeeID, FiscalYear: rec.FiscalYear}
	if _, ok := s.leaderboards[k]; ok {
		return fmt.Errorf("leaderboard %s/%s: %w", rec.EmployeeID, rec.FiscalYear, generic.ErrDuplicate)
	}
	s.nextLeaderboard++
	rec.ID = s.nextLeaderboard
	s.leaderboards[k] = *rec
	return nil
}

func (s *memState) SaveLeaderboard(_ context.Context, rec generic.LeaderboardRecord) error {
	k := leaderboardKey{EmployeeID: rec.EmployeeID, FiscalYear: rec.FiscalYear}
	if _, ok := s.leaderboards[k]; !ok {
		return &generic.NotFoundError{Kind: "leaderboard record", ID: fmt.Sprintf("%s/%s", rec.EmployeeID, rec.FiscalYear)}
	}
	s.leaderboards[k] = rec
	return nil
}

func (s *memState) ListLeaderboards(_ context.Context, f generic.LeaderboardFilter) ([]generic.LeaderboardRow, error) {
	var out []generic.LeaderboardRow
	for _, rec := range s.leaderboards {
		if f.FiscalYear != "" && rec.FiscalYear != f.FiscalYear {
			continue
		}
		m, ok := s.members[rec.EmployeeID]
		if !ok {
			continue
		}
		if f.Role != nil && m.Role != *f.Role {
			continue
		}
		if f.ActiveOnly && !m.Active() {
			continue
		}
		out = append(out, generic.LeaderboardRow{
			LeaderboardRecord: rec,
			FirstName:         m.FirstName,
			LastName:          m.LastName,
			Title:             m.Title,
			Role:              m.Role,
			Status:            m.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		return out[i].ID < out[j].ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// =============================================================================
// UNLOCKED STATE - Consent, admins, audit
// =============================================================================

func (s *memState) GetConsent(_ context.Context, id generic.EmployeeID) (*generic.ConsentLog, error) {
	c, ok := s.consents[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *memState) SaveConsent(_ context.Context, c generic.ConsentLog) error {
	if prev, ok := s.consents[c.EmployeeID]; ok && c.CreatedAt.IsZero() {
		c.CreatedAt = prev.CreatedAt
	}
	c.MemberName, c.MemberEmail = "", ""
	s.consents[c.EmployeeID] = c
	return nil
}

func (s *memState) ListConsents(_ context.Context) ([]generic.ConsentLog, error) {
	out := make([]generic.ConsentLog, 0, len(s.consents))
	for _, c := range s.consents {
		if m, ok := s.members[c.EmployeeID]; ok {
			c.MemberName = m.FullName()
			c.MemberEmail = m.Email
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (s *memState) GetAdminByUsername(_ context.Context, username string) (*generic.AdminAccount, error) {
	a, ok := s.admins[strings.ToLower(username)]
	if !ok || a.Status != generic.MemberActive {
		return nil, nil
	}
	return &a, nil
}

func (s *memState) SaveAdmin(_ context.Context, a *generic.AdminAccount) error {
	k := strings.ToLower(a.Username)
	if prev, ok := s.admins[k]; ok {
		a.ID = prev.ID
	} else {
		s.nextAdmin++
		a.ID = s.nextAdmin
	}
	s.admins[k] = *a
	return nil
}

func (s *memState) AppendAudit(_ context.Context, e generic.AuditEntry) error {
	e.ID = int64(len(s.audit) + 1)
	s.audit = append(s.audit, e)
	return nil
}

// QueryAudit returns matching entries, newest first.
func (s *memState) QueryAudit(_ context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	var out []generic.AuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.EntryID != 0 && e.EntryID != f.EntryID {
			continue
		}
		if len(f.Actions) > 0 && !containsAction(f.Actions, e.Action) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func containsAction(actions []generic.AuditAction, a generic.AuditAction) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

var (
	_ generic.TxStore = (*TxMemory)(nil)
	_ generic.Store   = (*memState)(nil)
)
