package generic_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/generic/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type recordingNotifier struct {
	mu   sync.Mutex
	sent []generic.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n generic.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) last() generic.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return generic.Notification{}
	}
	return r.sent[len(r.sent)-1]
}

type workflowFixture struct {
	ctx      context.Context
	store    *store.TxMemory
	notifier *recordingNotifier
	wf       *generic.Workflow
}

const (
	director generic.EmployeeID = "B"
	manager  generic.EmployeeID = "A"
	member   generic.EmployeeID = "M"
	exec     generic.EmployeeID = "X"
	admin    generic.EmployeeID = "ADM"
)

// Criteria ids on the MEMBER track.
const (
	critDirector20 generic.CriteriaID = 1 // 20 points, director approval
	critPlain10    generic.CriteriaID = 2 // 10 points, no director
	critPlain25    generic.CriteriaID = 3 // 25 points, no director
)

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewTxMemory()

	members := []generic.Member{
		{EmployeeID: director, FirstName: "Dana", LastName: "Director", Email: "b@corp.test", Role: generic.RoleDirector},
		{EmployeeID: manager, FirstName: "Alex", LastName: "Manager", Email: "a@corp.test", Role: generic.RoleManager, ManagerID: director, DirectorID: director},
		{EmployeeID: member, FirstName: "Morgan", LastName: "Member", Email: "m@corp.test", Role: generic.RoleMember, ManagerID: manager, DirectorID: director},
		{EmployeeID: exec, FirstName: "Sam", LastName: "Exec", Email: "x@corp.test", Role: generic.RoleExec, ManagerID: manager, DirectorID: director},
		{EmployeeID: admin, FirstName: "Ari", LastName: "Admin", Email: "adm@corp.test", Role: generic.RoleAdmin},
	}
	for _, m := range members {
		m.Status = generic.MemberActive
		require.NoError(t, s.SaveMember(ctx, m))
	}

	criteria := []generic.Criteria{
		{ID: critDirector20, Track: generic.TrackMember, Category: "Delivery", Points: 20, DirectorApproval: true},
		{ID: critPlain10, Track: generic.TrackMember, Category: "Delivery", Points: 10},
		{ID: critPlain25, Track: generic.TrackMember, Category: "Delivery", Points: 25},
		{ID: 1, Track: generic.TrackManager, Category: "Leadership", Points: 15, DirectorApproval: true},
		{ID: 2, Track: generic.TrackManager, Category: "Leadership", Points: 10},
	}
	for _, c := range criteria {
		c.Published = true
		require.NoError(t, s.SaveCriteria(ctx, c))
	}

	n := &recordingNotifier{}
	wf := generic.NewWorkflow(generic.WorkflowConfig{
		Store:     s,
		Notifier:  n,
		Clock:     generic.FixedClock{T: time.Date(2024, time.November, 4, 9, 0, 0, 0, time.UTC)},
		ClientURL: "https://rewards.corp.test/",
	})
	return &workflowFixture{ctx: ctx, store: s, notifier: n, wf: wf}
}

func (f *workflowFixture) submit(t *testing.T, owner generic.EmployeeID, c generic.CriteriaID) *generic.Outcome {
	t.Helper()
	out, err := f.wf.SubmitEntry(f.ctx, generic.Submission{
		OwnerID:          owner,
		CriteriaID:       c,
		Accomplishment:   "Shipped the thing",
		DateAccomplished: generic.Date(2024, time.October, 30),
		ProjectName:      "Apollo",
	})
	require.NoError(t, err)
	return out
}

func (f *workflowFixture) act(t *testing.T, id generic.EntryID, actor generic.EmployeeID, stage generic.Stage, status generic.Status) *generic.Outcome {
	t.Helper()
	out, err := f.wf.ActOnApproval(f.ctx, generic.Decision{EntryID: id, ActorID: actor, Stage: stage, Status: status})
	require.NoError(t, err)
	return out
}

func (f *workflowFixture) leaderboard(t *testing.T, id generic.EmployeeID) generic.LeaderboardRecord {
	t.Helper()
	rec, err := f.store.GetLeaderboard(f.ctx, id, "FY25")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.True(t, rec.Consistent(), "inconsistent record %+v", *rec)
	return *rec
}

func (f *workflowFixture) approval(t *testing.T, id generic.EntryID) generic.ApprovalEntry {
	t.Helper()
	a, err := f.store.GetApprovalByEntry(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return *a
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmitEntry_CreatesEntryApprovalAndLeaderboard(t *testing.T) {
	f := newWorkflowFixture(t)

	out := f.submit(t, member, critDirector20)

	assert.NotZero(t, out.Entry.ID)
	assert.Equal(t, int64(20), out.Entry.Points)
	assert.Equal(t, "FY25", out.Entry.FiscalYear)
	assert.Equal(t, "FY25 Q1", out.Entry.Season)
	assert.Equal(t, manager, out.Approval.ManagerID)
	assert.Equal(t, director, out.Approval.DirectorID)
	assert.Equal(t, generic.StatusPending, out.Approval.Approval.Manager())
	assert.Equal(t, generic.StatusPending, out.Approval.Approval.Director())

	rec := f.leaderboard(t, member)
	assert.Equal(t, "FY25-0001", rec.Alias)
	assert.Equal(t, int64(20), rec.ForApprovalPoints)
	assert.Equal(t, int64(20), rec.TotalPoints)

	n := f.notifier.last()
	assert.Equal(t, []string{"a@corp.test"}, n.To)
	assert.Equal(t, generic.PurposeSubmission, n.Purpose)
	assert.Equal(t, "https://rewards.corp.test/manager-approval", n.Link)
	assert.Equal(t, "Morgan Member", n.FullName)
}

func TestSubmitEntry_SecondSubmissionReusesRecord(t *testing.T) {
	f := newWorkflowFixture(t)
	f.submit(t, member, critPlain10)
	f.submit(t, exec, critPlain10)
	f.submit(t, member, critPlain25)

	rec := f.leaderboard(t, member)
	assert.Equal(t, "FY25-0001", rec.Alias)
	assert.Equal(t, int64(35), rec.ForApprovalPoints)
	assert.Equal(t, "FY25-0002", f.leaderboard(t, exec).Alias)
}

func TestSubmitEntry_ExecAlwaysNeedsApproval(t *testing.T) {
	f := newWorkflowFixture(t)

	// EXEC with a criteria that skips the director still lands in for-approval.
	out := f.submit(t, exec, critPlain10)
	assert.Equal(t, generic.AwaitingManager, out.Approval.Approval.State())
	rec := f.leaderboard(t, exec)
	assert.Equal(t, int64(10), rec.ForApprovalPoints)
	assert.Zero(t, rec.ApprovedPoints)

	// A manager submitting a criteria that skips the director is approved outright.
	out = f.submit(t, manager, 2)
	assert.Equal(t, generic.Approved, out.Approval.Approval.State())
	rec = f.leaderboard(t, manager)
	assert.Equal(t, int64(10), rec.ApprovedPoints)
	assert.Zero(t, rec.ForApprovalPoints)
}

func TestSubmitEntry_ManagerTierRoutesToOwnManager(t *testing.T) {
	f := newWorkflowFixture(t)

	out := f.submit(t, manager, 1)

	assert.Equal(t, generic.TrackManager, out.Entry.Track)
	assert.Empty(t, out.Approval.ManagerID)
	assert.Equal(t, director, out.Approval.DirectorID)
	assert.Equal(t, generic.AwaitingDirector, out.Approval.Approval.State())
	assert.Equal(t, int64(15), f.leaderboard(t, manager).ForApprovalPoints)

	n := f.notifier.last()
	assert.Equal(t, []string{"b@corp.test"}, n.To)
	assert.Equal(t, generic.LabelDirector, n.Role)
	assert.Equal(t, "https://rewards.corp.test/director-approval", n.Link)
}

func TestSubmitEntry_Failures(t *testing.T) {
	f := newWorkflowFixture(t)

	_, err := f.wf.SubmitEntry(f.ctx, generic.Submission{OwnerID: admin, CriteriaID: critPlain10})
	assert.ErrorIs(t, err, generic.ErrForbidden)

	_, err = f.wf.SubmitEntry(f.ctx, generic.Submission{OwnerID: member, CriteriaID: 99})
	assert.ErrorIs(t, err, generic.ErrNotFound)

	_, err = f.wf.SubmitEntry(f.ctx, generic.Submission{OwnerID: "nobody", CriteriaID: critPlain10})
	assert.ErrorIs(t, err, generic.ErrNotFound)

	require.NoError(t, f.store.SaveCriteria(f.ctx, generic.Criteria{ID: 7, Track: generic.TrackMember, Category: "Draft", Points: 5}))
	_, err = f.wf.SubmitEntry(f.ctx, generic.Submission{OwnerID: member, CriteriaID: 7})
	assert.ErrorIs(t, err, generic.ErrValidation)

	// Nothing was written by any failed submission.
	rec, err := f.store.GetLeaderboard(f.ctx, member, "FY25")
	require.NoError(t, err)
	assert.Nil(t, rec)
	entries, err := f.store.ListEntries(f.ctx, generic.EntryFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// =============================================================================
// DECISIONS
// =============================================================================

func TestEndToEnd_ManagerThenDirector(t *testing.T) {
	f := newWorkflowFixture(t)

	// Member M submits criteria C (20 points, director approval).
	out := f.submit(t, member, critDirector20)
	id := out.Entry.ID
	assert.Equal(t, int64(20), f.leaderboard(t, member).ForApprovalPoints)

	// Manager A approves: director still pending, ledger unchanged.
	out = f.act(t, id, manager, generic.StageManager, generic.StatusApproved)
	assert.Equal(t, generic.StatusApproved, out.Approval.Approval.Manager())
	assert.Equal(t, generic.StatusPending, out.Approval.Approval.Director())
	rec := f.leaderboard(t, member)
	assert.Equal(t, int64(20), rec.ForApprovalPoints)
	assert.Zero(t, rec.ApprovedPoints)

	n := f.notifier.last()
	assert.Equal(t, generic.PurposeEscalation, n.Purpose)
	assert.Equal(t, []string{"b@corp.test"}, n.To)
	assert.Equal(t, "Alex Manager", n.FullName)
	assert.Equal(t, "Reward Points Entry Approval Request for Apollo", n.Subject)

	// Director B approves: points move to approved, total unchanged.
	out = f.act(t, id, director, generic.StageDirector, generic.StatusApproved)
	assert.Equal(t, generic.Approved, out.Approval.Approval.State())
	rec = f.leaderboard(t, member)
	assert.Zero(t, rec.ForApprovalPoints)
	assert.Equal(t, int64(20), rec.ApprovedPoints)
	assert.Equal(t, int64(20), rec.TotalPoints)

	n = f.notifier.last()
	assert.Equal(t, "Reward Points Entry Approved for Apollo", n.Subject)
	assert.Equal(t, []string{"m@corp.test"}, n.To)
	assert.Equal(t, []string{"a@corp.test"}, n.CC)
}

func TestManagerApprove_NoDirector_RoundTrip(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submit(t, member, critPlain10).Entry.ID
	before := f.leaderboard(t, member)

	f.act(t, id, manager, generic.StageManager, generic.StatusApproved)

	after := f.leaderboard(t, member)
	assert.Equal(t, before.ForApprovalPoints-10, after.ForApprovalPoints)
	assert.Equal(t, before.ApprovedPoints+10, after.ApprovedPoints)
	assert.Equal(t, before.TotalPoints, after.TotalPoints)
	assert.Equal(t, "Reward Points Entry Approved for Apollo", f.notifier.last().Subject)
}

func TestManagerReject_AfterDirectorReject_IsIdempotent(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submit(t, member, critDirector20).Entry.ID
	f.act(t, id, manager, generic.StageManager, generic.StatusApproved)
	f.act(t, id, director, generic.StageDirector, generic.StatusRejected)
	rejected := f.leaderboard(t, member)
	assert.Equal(t, int64(20), rejected.RejectedPoints)

	for i := 0; i < 2; i++ {
		out := f.act(t, id, manager, generic.StageManager, generic.StatusRejected)
		assert.Equal(t, generic.Rejected, out.Approval.Approval.State())
		after := f.leaderboard(t, member)
		assert.Equal(t, rejected.ForApprovalPoints, after.ForApprovalPoints)
		assert.Equal(t, rejected.ApprovedPoints, after.ApprovedPoints)
		assert.Equal(t, rejected.RejectedPoints, after.RejectedPoints)
	}
}

func TestActOnApproval_WrongActorLeavesEverythingUntouched(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submit(t, member, critPlain10).Entry.ID
	before := f.leaderboard(t, member)

	_, err := f.wf.ActOnApproval(f.ctx, generic.Decision{EntryID: id, ActorID: director, Stage: generic.StageManager, Status: generic.StatusApproved})
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrForbidden)
	assert.True(t, generic.IsConflict(err))

	assert.Equal(t, before, f.leaderboard(t, member))
	assert.Equal(t, generic.StatusPending, f.approval(t, id).Approval.Manager())
}

func TestActOnApproval_DirectorBeforeManager(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submit(t, member, critDirector20).Entry.ID

	_, err := f.wf.ActOnApproval(f.ctx, generic.Decision{EntryID: id, ActorID: director, Stage: generic.StageDirector, Status: generic.StatusApproved})
	assert.ErrorIs(t, err, generic.ErrInvalidState)
}

func TestActOnApproval_MissingLeaderboardAborts(t *testing.T) {
	f := newWorkflowFixture(t)

	// An entry with an approval record but no leaderboard record.
	entry := &generic.RewardEntry{OwnerID: member, CriteriaID: critPlain10, Track: generic.TrackMember, Points: 10, FiscalYear: "FY25"}
	require.NoError(t, f.store.CreateEntry(f.ctx, entry))
	appr := &generic.ApprovalEntry{EntryID: entry.ID, ManagerID: manager, DirectorID: director, Approval: generic.NewApproval(true, false)}
	require.NoError(t, f.store.CreateApproval(f.ctx, appr))

	_, err := f.wf.ActOnApproval(f.ctx, generic.Decision{EntryID: entry.ID, ActorID: manager, Stage: generic.StageManager, Status: generic.StatusApproved})
	assert.ErrorIs(t, err, generic.ErrNotFound)

	// The status change was rolled back with the failed ledger step.
	assert.Equal(t, generic.StatusPending, f.approval(t, entry.ID).Approval.Manager())
}

func TestActOnApproval_MissingCriteriaAborts(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submit(t, member, critPlain10).Entry.ID
	require.NoError(t, f.store.DeleteCriteria(f.ctx, critPlain10, generic.TrackMember))

	_, err := f.wf.ActOnApproval(f.ctx, generic.Decision{EntryID: id, ActorID: manager, Stage: generic.StageManager, Status: generic.StatusApproved})
	assert.ErrorIs(t, err, generic.ErrNotFound)
	assert.Equal(t, int64(10), f.leaderboard(t, member).ForApprovalPoints)
}

func TestActOnApproval_UsesSubmittedPoints(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submit(t, member, critPlain10).Entry.ID

	// Criteria edited after submission.
	require.NoError(t, f.store.SaveCriteria(f.ctx, generic.Criteria{ID: critPlain10, Track: generic.TrackMember, Category: "Delivery", Points: 40, Published: true}))

	f.act(t, id, manager, generic.StageManager, generic.StatusApproved)
	rec := f.leaderboard(t, member)
	assert.Equal(t, int64(10), rec.ApprovedPoints)
	assert.Zero(t, rec.ForApprovalPoints)
}

func TestActOnApproval_NotificationFailureIsNotFatal(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submit(t, member, critPlain10).Entry.ID
	f.notifier.err = errors.New("smtp down")

	out, err := f.wf.ActOnApproval(f.ctx, generic.Decision{EntryID: id, ActorID: manager, Stage: generic.StageManager, Status: generic.StatusApproved})
	require.NoError(t, err)
	assert.Equal(t, generic.Approved, out.Approval.Approval.State())
	assert.Equal(t, int64(10), f.leaderboard(t, member).ApprovedPoints)
}

func TestDirectorReject_NotifiesManagerWithDeclinedLink(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submit(t, member, critDirector20).Entry.ID
	f.act(t, id, manager, generic.StageManager, generic.StatusApproved)
	f.act(t, id, director, generic.StageDirector, generic.StatusRejected)

	n := f.notifier.last()
	assert.Equal(t, "Reward Points Entry Rejected for Apollo", n.Subject)
	assert.Equal(t, []string{"a@corp.test"}, n.To)
	assert.Equal(t, []string{"m@corp.test"}, n.CC)
	assert.Equal(t, "https://rewards.corp.test/declined-entries", n.Link)
}

// =============================================================================
// RESUBMISSION
// =============================================================================

func TestResubmission_EndsLikeDirectApproval(t *testing.T) {
	direct := newWorkflowFixture(t)
	id := direct.submit(t, member, critPlain10).Entry.ID
	direct.act(t, id, manager, generic.StageManager, generic.StatusApproved)

	f := newWorkflowFixture(t)
	id = f.submit(t, member, critPlain10).Entry.ID
	f.act(t, id, manager, generic.StageManager, generic.StatusRejected)
	assert.Equal(t, int64(10), f.leaderboard(t, member).RejectedPoints)

	out, err := f.wf.ResubmitEntry(f.ctx, id, member)
	require.NoError(t, err)
	assert.Equal(t, generic.AwaitingManager, out.Approval.Approval.State())
	assert.Equal(t, int64(10), f.leaderboard(t, member).ForApprovalPoints)
	assert.Equal(t, generic.PurposeResubmission, f.notifier.last().Purpose)

	f.act(t, id, manager, generic.StageManager, generic.StatusApproved)

	want := direct.leaderboard(t, member)
	got := f.leaderboard(t, member)
	assert.Equal(t, want.ApprovedPoints, got.ApprovedPoints)
	assert.Equal(t, want.ForApprovalPoints, got.ForApprovalPoints)
	assert.Equal(t, want.RejectedPoints, got.RejectedPoints)
	assert.Equal(t, int64(10), got.ApprovedPoints)
}

func TestResubmission_ClearsNotesOfReopenedStages(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submit(t, member, critDirector20).Entry.ID
	f.act(t, id, manager, generic.StageManager, generic.StatusApproved)
	_, err := f.wf.ActOnApproval(f.ctx, generic.Decision{EntryID: id, ActorID: director, Stage: generic.StageDirector, Status: generic.StatusRejected, Notes: "needs evidence"})
	require.NoError(t, err)

	out, err := f.wf.ResubmitEntry(f.ctx, id, member)
	require.NoError(t, err)
	assert.Equal(t, generic.StatusPending, out.Approval.Approval.Manager())
	assert.Equal(t, generic.StatusPending, out.Approval.Approval.Director())
	assert.Empty(t, out.Approval.DirectorNotes)
}

func TestResubmission_Guards(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submit(t, member, critPlain10).Entry.ID

	_, err := f.wf.ResubmitEntry(f.ctx, id, member)
	assert.ErrorIs(t, err, generic.ErrInvalidState)

	f.act(t, id, manager, generic.StageManager, generic.StatusRejected)
	_, err = f.wf.ResubmitEntry(f.ctx, id, exec)
	assert.ErrorIs(t, err, generic.ErrForbidden)

	_, err = f.wf.ResubmitEntry(f.ctx, 999, member)
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAdminOverride_CriteriaChangeMovesPoints(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submit(t, member, critPlain10).Entry.ID
	f.act(t, id, manager, generic.StageManager, generic.StatusApproved)
	before := f.leaderboard(t, member)
	require.Equal(t, int64(10), before.ApprovedPoints)

	out, err := f.wf.AdminOverride(f.ctx, generic.Override{
		EntryID:        id,
		ActorID:        admin,
		ManagerStatus:  generic.StatusPending,
		DirectorStatus: generic.StatusApproved,
		CriteriaID:     critPlain25,
	})
	require.NoError(t, err)

	after := f.leaderboard(t, member)
	assert.Equal(t, before.ApprovedPoints-10, after.ApprovedPoints)
	assert.Equal(t, before.ForApprovalPoints+25, after.ForApprovalPoints)
	assert.Equal(t, before.TotalPoints+15, after.TotalPoints)
	assert.Equal(t, critPlain25, out.Entry.CriteriaID)
	assert.Equal(t, int64(25), out.Entry.Points)

	audit, err := f.store.QueryAudit(f.ctx, generic.AuditFilter{EntryID: id, Actions: []generic.AuditAction{generic.AuditAdminOverride}})
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, admin, audit[0].ActorID)
}

func TestAdminOverride_StatusOnlyMovesBucket(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submit(t, member, critPlain10).Entry.ID
	f.act(t, id, manager, generic.StageManager, generic.StatusRejected)

	_, err := f.wf.AdminOverride(f.ctx, generic.Override{
		EntryID:        id,
		ActorID:        admin,
		ManagerStatus:  generic.StatusApproved,
		DirectorStatus: generic.StatusApproved,
	})
	require.NoError(t, err)

	rec := f.leaderboard(t, member)
	assert.Zero(t, rec.RejectedPoints)
	assert.Equal(t, int64(10), rec.ApprovedPoints)
	assert.Equal(t, int64(10), rec.TotalPoints)
}

func TestAdminOverride_StatusOnlyLeavesOtherEntriesAlone(t *testing.T) {
	// GIVEN: one entry pending (25) and one approved by the manager (10)
	f := newWorkflowFixture(t)
	f.submit(t, member, critPlain25)
	id := f.submit(t, member, critPlain10).Entry.ID
	f.act(t, id, manager, generic.StageManager, generic.StatusApproved)

	// WHEN: the admin rejects the approved entry without changing criteria
	_, err := f.wf.AdminOverride(f.ctx, generic.Override{
		EntryID:        id,
		ActorID:        admin,
		ManagerStatus:  generic.StatusRejected,
		DirectorStatus: generic.StatusApproved,
	})
	require.NoError(t, err)

	// THEN: only the overridden entry's points move, approved -> rejected
	rec := f.leaderboard(t, member)
	assert.Equal(t, int64(25), rec.ForApprovalPoints)
	assert.Zero(t, rec.ApprovedPoints)
	assert.Equal(t, int64(10), rec.RejectedPoints)
	assert.Equal(t, int64(35), rec.TotalPoints)
}

func TestAdminOverride_InvalidPair(t *testing.T) {
	f := newWorkflowFixture(t)
	id := f.submit(t, member, critPlain10).Entry.ID

	_, err := f.wf.AdminOverride(f.ctx, generic.Override{EntryID: id, ActorID: admin, ManagerStatus: generic.StatusPending, DirectorStatus: generic.StatusRejected})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestDeleteEntry_RemovesPoints(t *testing.T) {
	f := newWorkflowFixture(t)
	keep := f.submit(t, member, critPlain25).Entry.ID
	id := f.submit(t, member, critPlain10).Entry.ID
	f.act(t, id, manager, generic.StageManager, generic.StatusApproved)

	require.NoError(t, f.wf.DeleteEntry(f.ctx, id, admin))

	rec := f.leaderboard(t, member)
	assert.Zero(t, rec.ApprovedPoints)
	assert.Equal(t, int64(25), rec.ForApprovalPoints)
	assert.Equal(t, int64(25), rec.TotalPoints)

	e, err := f.store.GetEntry(f.ctx, id)
	require.NoError(t, err)
	assert.Nil(t, e)
	a, err := f.store.GetApprovalByEntry(f.ctx, id)
	require.NoError(t, err)
	assert.Nil(t, a)

	e, err = f.store.GetEntry(f.ctx, keep)
	require.NoError(t, err)
	assert.NotNil(t, e)
}
