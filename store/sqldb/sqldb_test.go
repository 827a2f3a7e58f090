package sqldb_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/store/sqldb"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqldb.Store {
	t.Helper()
	s, err := sqldb.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var at = time.Date(2024, time.November, 4, 9, 30, 0, 0, time.UTC)

func seed(t *testing.T, s generic.Store) {
	t.Helper()
	ctx := context.Background()
	for _, m := range []generic.Member{
		{EmployeeID: "B", Username: "dana", FirstName: "Dana", LastName: "Director", Email: "b@corp.test", Role: generic.RoleDirector, Status: generic.MemberActive},
		{EmployeeID: "A", Username: "alex", FirstName: "Alex", LastName: "Manager", Email: "a@corp.test", Role: generic.RoleManager, ManagerID: "B", DirectorID: "B", Status: generic.MemberActive},
		{EmployeeID: "M", Username: "morgan", FirstName: "Morgan", LastName: "Member", Email: "m@corp.test", Role: generic.RoleMember, ManagerID: "A", DirectorID: "B", Status: generic.MemberActive},
		{EmployeeID: "Z", Username: "zed", FirstName: "Zed", LastName: "Former", Email: "z@corp.test", Role: generic.RoleMember, ManagerID: "A", Status: generic.MemberInactive},
	} {
		m.CreatedAt, m.UpdatedAt = at, at
		require.NoError(t, s.SaveMember(ctx, m))
	}
	for _, c := range []generic.Criteria{
		{ID: 1, Track: generic.TrackMember, Category: "Delivery", Accomplishment: "Ship", Points: 20, DirectorApproval: true, Published: true},
		{ID: 2, Track: generic.TrackMember, Category: "Delivery", Accomplishment: "Fix", Points: 10, Published: true},
		{ID: 1, Track: generic.TrackManager, Category: "Leadership", Accomplishment: "Mentor", Points: 15, Type: generic.CriteriaDelivery},
	} {
		require.NoError(t, s.SaveCriteria(ctx, c))
	}
}

// =============================================================================
// MEMBERS & CRITERIA
// =============================================================================

func TestMembers_RoundTripAndFilters(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	m, err := s.GetMember(ctx, "M")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, generic.EmployeeID("A"), m.ManagerID)
	assert.Equal(t, generic.RoleMember, m.Role)
	assert.True(t, at.Equal(m.CreatedAt))

	byName, err := s.GetMemberByUsername(ctx, "MORGAN")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, generic.EmployeeID("M"), byName.EmployeeID)

	missing, err := s.GetMember(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	reports, err := s.ListMembers(ctx, generic.MemberFilter{ManagerID: "A"})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, generic.EmployeeID("M"), reports[0].EmployeeID)

	all, err := s.ListMembers(ctx, generic.MemberFilter{ManagerID: "A", IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.SetMemberStatus(ctx, "M", generic.MemberInactive))
	m, err = s.GetMember(ctx, "M")
	require.NoError(t, err)
	assert.False(t, m.Active())

	assert.ErrorIs(t, s.SetMemberStatus(ctx, "nobody", generic.MemberInactive), generic.ErrNotFound)
}

func TestCriteria_TrackScopedIDs(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	member, err := s.GetCriteria(ctx, 1, generic.TrackMember)
	require.NoError(t, err)
	manager, err := s.GetCriteria(ctx, 1, generic.TrackManager)
	require.NoError(t, err)
	assert.Equal(t, int64(20), member.Points)
	assert.True(t, member.DirectorApproval)
	assert.Equal(t, int64(15), manager.Points)
	assert.Equal(t, generic.CriteriaDelivery, manager.Type)

	drafts := false
	list, err := s.ListCriteria(ctx, generic.CriteriaFilter{Published: &drafts})
	require.NoError(t, err)
	require.Len(t, list, 1)

	n, err := s.PublishCriteria(ctx, generic.TrackManager, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.DeleteCriteria(ctx, 2, generic.TrackMember))
	gone, err := s.GetCriteria(ctx, 2, generic.TrackMember)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

// =============================================================================
// ENTRIES, APPROVALS, LEADERBOARD
// =============================================================================

func TestEntries_AttachmentsAndCascade(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	e := &generic.RewardEntry{
		OwnerID: "M", CriteriaID: 2, Track: generic.TrackMember, Points: 10,
		FiscalYear: "FY25", Season: "FY25 Q1", ProjectName: "Apollo",
		DateAccomplished: generic.Date(2024, time.October, 30),
		Attachments:      []generic.Attachment{{Filename: "a.pdf", Path: "Apollo/a.pdf", Size: 42}},
		CreatedAt:        at, UpdatedAt: at,
	}
	require.NoError(t, s.CreateEntry(ctx, e))
	require.NotZero(t, e.ID)

	a := &generic.ApprovalEntry{EntryID: e.ID, ManagerID: "A", DirectorID: "B", Approval: generic.NewApproval(true, false), CreatedAt: at, UpdatedAt: at}
	require.NoError(t, s.CreateApproval(ctx, a))
	assert.ErrorIs(t, s.CreateApproval(ctx, &generic.ApprovalEntry{EntryID: e.ID, Approval: generic.NewApproval(true, false)}), generic.ErrDuplicate)

	got, err := s.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.Attachments, got.Attachments)
	assert.True(t, generic.Date(2024, time.October, 30).Equal(got.DateAccomplished))

	// Detail edits never touch criteria or points.
	edited := *got
	edited.Accomplishment, edited.ProjectName = "Edited", "Apollo"
	edited.CriteriaID, edited.Points = 1, 99
	require.NoError(t, s.UpdateEntryDetails(ctx, edited))
	got, err = s.GetEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Edited", got.Accomplishment)
	assert.Equal(t, generic.CriteriaID(2), got.CriteriaID)
	assert.Equal(t, int64(10), got.Points)

	byProject, err := s.ListEntries(ctx, generic.EntryFilter{ProjectName: "Apollo"})
	require.NoError(t, err)
	assert.Len(t, byProject, 1)

	pending := generic.StatusPending
	queue, err := s.ListApprovals(ctx, generic.ApprovalFilter{Stage: generic.StageManager, ApproverID: "A", Status: &pending})
	require.NoError(t, err)
	require.Len(t, queue, 1)
	assert.Equal(t, generic.AwaitingManager, queue[0].Approval.State())

	directorQueue, err := s.ListApprovals(ctx, generic.ApprovalFilter{Stage: generic.StageDirector, ApproverID: "B"})
	require.NoError(t, err)
	assert.Empty(t, directorQueue, "director does not see entries the manager has not approved")

	require.NoError(t, s.DeleteEntry(ctx, e.ID))
	gone, err := s.GetApprovalByEntry(ctx, e.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestLeaderboard_UniquePerFiscalYearAndRanking(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	recM := &generic.LeaderboardRecord{EmployeeID: "M", FiscalYear: "FY25", Alias: "FY25-0001", ApprovedPoints: 30, TotalPoints: 30}
	recA := &generic.LeaderboardRecord{EmployeeID: "A", FiscalYear: "FY25", Alias: "FY25-0002", ApprovedPoints: 50, TotalPoints: 50}
	recZ := &generic.LeaderboardRecord{EmployeeID: "Z", FiscalYear: "FY25", Alias: "FY25-0003", ApprovedPoints: 90, TotalPoints: 90}
	for _, r := range []*generic.LeaderboardRecord{recM, recA, recZ} {
		require.NoError(t, s.CreateLeaderboard(ctx, r))
	}
	err := s.CreateLeaderboard(ctx, &generic.LeaderboardRecord{EmployeeID: "M", FiscalYear: "FY25", Alias: "FY25-0009"})
	assert.True(t, errors.Is(err, generic.ErrDuplicate))

	n, err := s.CountLeaderboards(ctx, "FY25")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := s.ListLeaderboards(ctx, generic.LeaderboardFilter{FiscalYear: "FY25", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, generic.EmployeeID("A"), rows[0].EmployeeID)
	assert.Equal(t, "Alex", rows[0].FirstName)

	member := generic.RoleMember
	rows, err = s.ListLeaderboards(ctx, generic.LeaderboardFilter{FiscalYear: "FY25", Role: &member, Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, generic.EmployeeID("Z"), rows[0].EmployeeID)

	byAlias, err := s.GetLeaderboardByAlias(ctx, "FY25-0001")
	require.NoError(t, err)
	assert.Equal(t, generic.EmployeeID("M"), byAlias.EmployeeID)
}

func TestConsentAndAdmins(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	require.NoError(t, s.SaveConsent(ctx, generic.ConsentLog{EmployeeID: "M", PersonalDataConsent: true}))
	require.NoError(t, s.SaveConsent(ctx, generic.ConsentLog{EmployeeID: "M", PersonalDataConsent: true, RewardsManagementConsent: true}))
	logs, err := s.ListConsents(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.True(t, logs[0].RewardsManagementConsent)
	assert.Equal(t, "Morgan Member", logs[0].MemberName)

	admin := &generic.AdminAccount{Username: "Root", PasswordHash: "hash"}
	require.NoError(t, s.SaveAdmin(ctx, admin))
	assert.NotZero(t, admin.ID)
	got, err := s.GetAdminByUsername(ctx, "root")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "hash", got.PasswordHash)

	admin.Status = generic.MemberInactive
	require.NoError(t, s.SaveAdmin(ctx, admin))
	got, err = s.GetAdminByUsername(ctx, "root")
	require.NoError(t, err)
	assert.Nil(t, got)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx generic.Store) error {
		rec := &generic.LeaderboardRecord{EmployeeID: "M", FiscalYear: "FY25", Alias: "FY25-0001"}
		if err := tx.CreateLeaderboard(ctx, rec); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	rec, err := s.GetLeaderboard(ctx, "M", "FY25")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestWorkflow_OnSQLite(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()
	wf := generic.NewWorkflow(generic.WorkflowConfig{Store: s, Clock: generic.FixedClock{T: at}})

	out, err := wf.SubmitEntry(ctx, generic.Submission{OwnerID: "M", CriteriaID: 1, ProjectName: "Apollo"})
	require.NoError(t, err)
	id := out.Entry.ID

	_, err = wf.ActOnApproval(ctx, generic.Decision{EntryID: id, ActorID: "A", Stage: generic.StageManager, Status: generic.StatusApproved})
	require.NoError(t, err)
	_, err = wf.ActOnApproval(ctx, generic.Decision{EntryID: id, ActorID: "B", Stage: generic.StageDirector, Status: generic.StatusApproved})
	require.NoError(t, err)

	rec, err := s.GetLeaderboard(ctx, "M", "FY25")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Consistent())
	assert.Equal(t, int64(20), rec.ApprovedPoints)
	assert.Zero(t, rec.ForApprovalPoints)

	// A failed decision leaves the stored approval as it was.
	_, err = wf.ActOnApproval(ctx, generic.Decision{EntryID: id, ActorID: "B", Stage: generic.StageDirector, Status: generic.StatusRejected})
	assert.ErrorIs(t, err, generic.ErrInvalidState)
	a, err := s.GetApprovalByEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, generic.Approved, a.Approval.State())

	audit, err := s.QueryAudit(ctx, generic.AuditFilter{EntryID: id})
	require.NoError(t, err)
	require.Len(t, audit, 3)
	assert.Equal(t, generic.AuditDirectorDecided, audit[0].Action)
	assert.Equal(t, "approved", audit[0].Payload["status"])
}

func TestWorkflow_ConcurrentActionsOnOneOwner(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()
	wf := generic.NewWorkflow(generic.WorkflowConfig{Store: s, Clock: generic.FixedClock{T: at}})
	const n = 8

	run := func(fn func(i int) error) []error {
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = fn(i)
			}(i)
		}
		wg.Wait()
		return errs
	}

	// GIVEN: n entries of 10 points submitted at once by the same member
	ids := make([]generic.EntryID, n)
	for _, err := range run(func(i int) error {
		out, err := wf.SubmitEntry(ctx, generic.Submission{OwnerID: "M", CriteriaID: 2, ProjectName: "Apollo"})
		if err == nil {
			ids[i] = out.Entry.ID
		}
		return err
	}) {
		require.NoError(t, err)
	}

	rows, err := s.ListLeaderboards(ctx, generic.LeaderboardFilter{FiscalYear: "FY25"})
	require.NoError(t, err)
	require.Len(t, rows, 1, "one leaderboard record per owner and year")

	// WHEN: The manager approves half and rejects half concurrently
	for _, err := range run(func(i int) error {
		status := generic.StatusApproved
		if i%2 == 1 {
			status = generic.StatusRejected
		}
		_, err := wf.ActOnApproval(ctx, generic.Decision{EntryID: ids[i], ActorID: "A", Stage: generic.StageManager, Status: status})
		return err
	}) {
		require.NoError(t, err)
	}

	// THEN: The buckets match the serial result
	rec, err := s.GetLeaderboard(ctx, "M", "FY25")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Consistent())
	assert.Equal(t, int64(n/2*10), rec.ApprovedPoints)
	assert.Equal(t, int64(n/2*10), rec.RejectedPoints)
	assert.Zero(t, rec.ForApprovalPoints)
	assert.Equal(t, int64(n*10), rec.TotalPoints)
}
