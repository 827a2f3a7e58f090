/*
workflow.go - Approval workflow

PURPOSE:
  Orchestrates the life of a reward entry: submission, manager decision,
  director decision, resubmission after rejection, admin override and admin
  deletion. Every operation writes the approval status and the leaderboard
  buckets in a single store transaction. Notifications are sent after
  commit and never fail the operation.

WORKFLOW FLOW:
  ┌────────────────────────────────────────────────────────────────────┐
  │                                                                    │
  │  SubmitEntry ──▶ entry + approval + ledger.AddPoints               │
  │                                                                    │
  │  ActOnApproval(manager) ──▶ Approval.DecideManager ──▶ PointMove   │
  │  ActOnApproval(director) ─▶ Approval.DecideDirector ─▶ PointMove   │
  │                                  │                                 │
  │                                  ▼                                 │
  │                         ledger.ApprovePoints                       │
  │                                                                    │
  │  ResubmitEntry ──▶ Approval.Resubmit ──▶ ledger.ResubmitPoints     │
  │  AdminOverride ──▶ RestoreApproval   ──▶ move or RemovePoints      │
  │                                                                    │
  └────────────────────────────────────────────────────────────────────┘

SUBMISSION TIERS:
  MEMBER, EXEC     manager review required; points always start in
                   for-approval, even when the criteria skips the director
  MANAGER,         manager stage pre-approved; the submitter's own manager
  DIRECTOR         is the director approver; points start in approved when
                   the criteria does not require director sign-off
  ADMIN roles      cannot submit

FAILURE SEMANTICS:
  Missing entry, approval, criteria or leaderboard record → NotFound.
  Actor is not the recorded approver → Forbidden (a Conflict).
  Entry owner differs from leaderboard owner → Conflict.
  Transition not allowed from the current state → InvalidState.
  All of these abort before anything is committed.

SEE ALSO:
  - approval.go: State machine
  - ledger.go:   Bucket arithmetic
  - notify.go:   Notification shapes
*/
package generic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// WORKFLOW
// =============================================================================

type WorkflowConfig struct {
	Store    TxStore
	Notifier Notifier
	Logger   *zap.Logger
	Clock    Clock
	Metrics  Metrics

	// ClientURL prefixes links in notifications.
	ClientURL string
}

type Workflow struct {
	store     TxStore
	ledger    *Ledger
	notifier  Notifier
	log       *zap.Logger
	clock     Clock
	metrics   Metrics
	clientURL string
}

func NewWorkflow(cfg WorkflowConfig) *Workflow {
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	log := cfg.Logger.Named("workflow")
	return &Workflow{
		store:     cfg.Store,
		ledger:    NewLedger(log, cfg.Clock, cfg.Metrics),
		notifier:  cfg.Notifier,
		log:       log,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		clientURL: strings.TrimRight(cfg.ClientURL, "/"),
	}
}

// tier is how a role enters the workflow.
type tier struct {
	managerReview bool
	track         Track
}

func submissionTier(r Role) (tier, bool) {
	switch r {
	case RoleMember, RoleExec:
		return tier{managerReview: true, track: TrackMember}, true
	case RoleManager:
		return tier{managerReview: false, track: TrackManager}, true
	case RoleDirector:
		return tier{managerReview: false, track: TrackMember}, true
	case RoleSuperAdmin, RoleAdmin:
		return tier{}, false
	}
	return tier{}, false
}

// SubmissionTrack is the catalog a role submits against. ok is false for
// roles that cannot submit.
func SubmissionTrack(r Role) (Track, bool) {
	t, ok := submissionTier(r)
	return t.track, ok
}

// =============================================================================
// SUBMISSION
// =============================================================================

type Submission struct {
	OwnerID          EmployeeID
	CriteriaID       CriteriaID
	Accomplishment   string
	DateAccomplished time.Time
	ProjectName      string
	Notes            string
	Attachments      []Attachment
}

// Outcome is the state after a workflow operation.
type Outcome struct {
	Entry       RewardEntry
	Approval    ApprovalEntry
	Leaderboard LeaderboardRecord
}

// SubmitEntry records a new entry, its approval record and its points.
func (w *Workflow) SubmitEntry(ctx context.Context, sub Submission) (*Outcome, error) {
	if sub.OwnerID == "" {
		return nil, &ValidationError{Field: "owner_id", Message: "owner is required"}
	}
	if sub.CriteriaID <= 0 {
		return nil, &ValidationError{Field: "criteria_id", Message: "criteria is required"}
	}

	var (
		out   Outcome
		owner *Member
	)
	err := w.store.WithTx(ctx, func(s Store) error {
		var err error
		owner, err = s.GetMember(ctx, sub.OwnerID)
		if err != nil {
			return err
		}
		if owner == nil || !owner.Active() {
			return notFound("member", sub.OwnerID)
		}
		t, ok := submissionTier(owner.Role)
		if !ok {
			return &ForbiddenError{ActorID: owner.EmployeeID, Action: "submit reward entries as " + owner.Role.String()}
		}

		criteria, err := s.GetCriteria(ctx, sub.CriteriaID, t.track)
		if err != nil {
			return err
		}
		if criteria == nil {
			return notFound("criteria", fmt.Sprintf("%s/%d", t.track, sub.CriteriaID))
		}
		if !criteria.Published {
			return &ValidationError{Field: "criteria_id", Message: "criteria is not published"}
		}

		approval := ApprovalEntry{Approval: NewApproval(t.managerReview, criteria.DirectorApproval)}
		if t.managerReview {
			approval.ManagerID = owner.ManagerID
			approval.DirectorID = owner.DirectorID
			if approval.ManagerID == "" {
				return &ValidationError{Field: "owner_id", Message: "member has no manager to review the entry"}
			}
		} else {
			approval.DirectorID = owner.ManagerID
		}
		if criteria.DirectorApproval && approval.DirectorID == "" {
			return &ValidationError{Field: "owner_id", Message: "criteria requires a director but the member has none"}
		}

		now := w.clock.Now()
		out.Entry = RewardEntry{
			OwnerID:          owner.EmployeeID,
			CriteriaID:       criteria.ID,
			Track:            criteria.Track,
			Points:           criteria.Points,
			FiscalYear:       FiscalYearLabel(now),
			Season:           SeasonLabel(now),
			Accomplishment:   sub.Accomplishment,
			DateAccomplished: sub.DateAccomplished,
			ProjectName:      sub.ProjectName,
			Notes:            sub.Notes,
			Attachments:      DedupeAttachments(sub.Attachments),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.CreateEntry(ctx, &out.Entry); err != nil {
			return fmt.Errorf("failed to create reward entry: %w", err)
		}

		approval.EntryID = out.Entry.ID
		approval.CreatedAt = now
		approval.UpdatedAt = now
		if err := s.CreateApproval(ctx, &approval); err != nil {
			return fmt.Errorf("failed to create approval entry: %w", err)
		}
		out.Approval = approval

		rec, err := w.leaderboardFor(ctx, s, owner.EmployeeID, out.Entry.FiscalYear)
		if err != nil {
			return err
		}
		bucket := approval.Approval.ImpliedBucket(criteria.DirectorApproval)
		if err := w.ledger.AddPoints(ctx, s, rec, criteria.Points, bucket); err != nil {
			return err
		}
		out.Leaderboard = *rec

		return s.AppendAudit(ctx, AuditEntry{
			Timestamp: now,
			ActorID:   owner.EmployeeID,
			Action:    AuditEntrySubmitted,
			EntryID:   out.Entry.ID,
			Payload: map[string]any{
				"criteria_id": int64(criteria.ID),
				"track":       string(criteria.Track),
				"points":      criteria.Points,
				"bucket":      bucket.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("reward entry submitted",
		zap.Int64("entry_id", int64(out.Entry.ID)),
		zap.String("owner_id", string(out.Entry.OwnerID)),
		zap.Stringer("state", out.Approval.Approval.State()),
	)
	w.notifySubmission(ctx, *owner, out)
	return &out, nil
}

// leaderboardFor loads the owner's record, creating it on first submission.
// The alias sequence is count+1, which is only unique while TxStore
// serializes writers. Both stores do so with a process-local lock, so one
// process owns the database. A second writer process would hit ErrDuplicate
// on the alias and needs a database sequence instead.
func (w *Workflow) leaderboardFor(ctx context.Context, s Store, owner EmployeeID, fiscalYear string) (*LeaderboardRecord, error) {
	rec, err := s.GetLeaderboard(ctx, owner, fiscalYear)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}
	n, err := s.CountLeaderboards(ctx, fiscalYear)
	if err != nil {
		return nil, err
	}
	now := w.clock.Now()
	rec = &LeaderboardRecord{
		EmployeeID: owner,
		FiscalYear: fiscalYear,
		Alias:      LeaderboardAlias(fiscalYear, n+1),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.CreateLeaderboard(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create leaderboard record: %w", err)
	}
	return rec, nil
}

// requireLeaderboard loads the record an approval action will mutate.
func requireLeaderboard(ctx context.Context, s Store, entry *RewardEntry) (*LeaderboardRecord, error) {
	rec, err := s.GetLeaderboard(ctx, entry.OwnerID, entry.FiscalYear)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFound("leaderboard record", fmt.Sprintf("%s/%s", entry.OwnerID, entry.FiscalYear))
	}
	if rec.EmployeeID != entry.OwnerID {
		return nil, &ConflictError{Message: fmt.Sprintf("reward entry %d is not eligible for point update on leaderboard %s", entry.ID, rec.Alias)}
	}
	return rec, nil
}

// loadEntry fetches an entry and its approval record.
func loadEntry(ctx context.Context, s Store, id EntryID) (*RewardEntry, *ApprovalEntry, error) {
	entry, err := s.GetEntry(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, notFound("reward entry", id)
	}
	appr, err := s.GetApprovalByEntry(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if appr == nil {
		return nil, nil, notFound("approval entry for reward entry", id)
	}
	return entry, appr, nil
}

func requireCriteria(ctx context.Context, s Store, id CriteriaID, track Track) (*Criteria, error) {
	c, err := s.GetCriteria(ctx, id, track)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, notFound("criteria", fmt.Sprintf("%s/%d", track, id))
	}
	return c, nil
}

// =============================================================================
// DECISIONS
// =============================================================================

type Decision struct {
	EntryID EntryID
	ActorID EmployeeID
	Stage   Stage
	Status  Status // approved or rejected
	Notes   string
}

// ActOnApproval applies a manager or director decision.
func (w *Workflow) ActOnApproval(ctx context.Context, d Decision) (*Outcome, error) {
	if !d.Status.IsDecision() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("%q is not a decision", d.Status)}
	}

	var (
		out  Outcome
		prev Approval
		move PointMove
	)
	err := w.store.WithTx(ctx, func(s Store) error {
		entry, appr, err := loadEntry(ctx, s, d.EntryID)
		if err != nil {
			return err
		}
		if approver := appr.ApproverFor(d.Stage); approver == "" || approver != d.ActorID {
			return &ForbiddenError{ActorID: d.ActorID, Action: fmt.Sprintf("decide the %s stage of entry %d", d.Stage, d.EntryID)}
		}

		var next Approval
		switch d.Stage {
		case StageManager:
			next, move, err = appr.Approval.DecideManager(d.Status)
		case StageDirector:
			next, move, err = appr.Approval.DecideDirector(d.Status)
		default:
			err = &ValidationError{Field: "stage", Message: fmt.Sprintf("unknown stage %q", d.Stage)}
		}
		if err != nil {
			return err
		}

		if _, err := requireCriteria(ctx, s, entry.CriteriaID, entry.Track); err != nil {
			return err
		}
		rec, err := requireLeaderboard(ctx, s, entry)
		if err != nil {
			return err
		}
		if move != MoveNone {
			if err := w.ledger.ApprovePoints(ctx, s, rec, entry.Points, d.Status); err != nil {
				return err
			}
		}

		now := w.clock.Now()
		prev = appr.Approval
		appr.Approval = next
		if d.Stage == StageManager {
			appr.ManagerNotes = d.Notes
		} else {
			appr.DirectorNotes = d.Notes
		}
		appr.UpdatedAt = now
		if err := s.UpdateApproval(ctx, *appr); err != nil {
			return fmt.Errorf("failed to update approval entry: %w", err)
		}

		action := AuditManagerDecided
		if d.Stage == StageDirector {
			action = AuditDirectorDecided
		}
		out = Outcome{Entry: *entry, Approval: *appr, Leaderboard: *rec}
		return s.AppendAudit(ctx, AuditEntry{
			Timestamp: now,
			ActorID:   d.ActorID,
			Action:    action,
			EntryID:   entry.ID,
			Payload: map[string]any{
				"status": string(d.Status),
				"from":   prev.State().String(),
				"to":     next.State().String(),
				"moved":  move != MoveNone,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	w.metrics.Transition(d.Stage, d.Status)
	w.log.Info("approval decided",
		zap.Int64("entry_id", int64(d.EntryID)),
		zap.String("actor_id", string(d.ActorID)),
		zap.String("stage", string(d.Stage)),
		zap.String("status", string(d.Status)),
		zap.Stringer("state", out.Approval.Approval.State()),
	)
	w.notifyDecision(ctx, d, prev, out)
	return &out, nil
}

// =============================================================================
// RESUBMISSION
// =============================================================================

// ResubmitEntry reopens a rejected entry on behalf of its owner.
func (w *Workflow) ResubmitEntry(ctx context.Context, id EntryID, ownerID EmployeeID) (*Outcome, error) {
	var (
		out   Outcome
		owner *Member
		t     tier
	)
	err := w.store.WithTx(ctx, func(s Store) error {
		entry, appr, err := loadEntry(ctx, s, id)
		if err != nil {
			return err
		}
		if entry.OwnerID != ownerID {
			return &ForbiddenError{ActorID: ownerID, Action: fmt.Sprintf("resubmit entry %d", id)}
		}
		owner, err = s.GetMember(ctx, ownerID)
		if err != nil {
			return err
		}
		if owner == nil {
			return notFound("member", ownerID)
		}
		var ok bool
		if t, ok = submissionTier(owner.Role); !ok {
			return &ForbiddenError{ActorID: ownerID, Action: "resubmit reward entries as " + owner.Role.String()}
		}

		criteria, err := requireCriteria(ctx, s, entry.CriteriaID, entry.Track)
		if err != nil {
			return err
		}
		next, err := appr.Approval.Resubmit(!t.managerReview, criteria.DirectorApproval)
		if err != nil {
			return err
		}
		rec, err := requireLeaderboard(ctx, s, entry)
		if err != nil {
			return err
		}
		if err := w.ledger.ResubmitPoints(ctx, s, rec, entry.Points, criteria.Points); err != nil {
			return err
		}

		now := w.clock.Now()
		oldPoints := entry.Points
		entry.Points = criteria.Points
		entry.UpdatedAt = now
		if err := s.UpdateEntry(ctx, *entry); err != nil {
			return fmt.Errorf("failed to update reward entry: %w", err)
		}

		appr.Approval = next
		if next.Manager() == StatusPending {
			appr.ManagerNotes = ""
		}
		if next.Director() == StatusPending {
			appr.DirectorNotes = ""
		}
		appr.UpdatedAt = now
		if err := s.UpdateApproval(ctx, *appr); err != nil {
			return fmt.Errorf("failed to update approval entry: %w", err)
		}

		out = Outcome{Entry: *entry, Approval: *appr, Leaderboard: *rec}
		return s.AppendAudit(ctx, AuditEntry{
			Timestamp: now,
			ActorID:   ownerID,
			Action:    AuditEntryResubmitted,
			EntryID:   entry.ID,
			Payload:   map[string]any{"old_points": oldPoints, "points": entry.Points},
		})
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("reward entry resubmitted",
		zap.Int64("entry_id", int64(id)),
		zap.String("owner_id", string(ownerID)),
		zap.Stringer("state", out.Approval.Approval.State()),
	)
	w.notifyResubmission(ctx, *owner, t, out)
	return &out, nil
}

// =============================================================================
// ADMIN
// =============================================================================

// Override is an admin correction of an entry's statuses and criteria.
type Override struct {
	EntryID        EntryID
	ActorID        EmployeeID
	ManagerStatus  Status
	DirectorStatus Status
	CriteriaID     CriteriaID // zero keeps the current criteria
	ManagerNotes   *string
	DirectorNotes  *string
}

// AdminOverride sets both statuses directly. When the criteria changes the
// old value is removed from whichever bucket holds it and the new value is
// credited to the bucket implied by the new statuses. A status-only change
// moves the entry's points from the bucket implied by its old statuses.
func (w *Workflow) AdminOverride(ctx context.Context, o Override) (*Outcome, error) {
	next, err := RestoreApproval(o.ManagerStatus, o.DirectorStatus)
	if err != nil {
		return nil, err
	}

	var out Outcome
	err = w.store.WithTx(ctx, func(s Store) error {
		entry, appr, err := loadEntry(ctx, s, o.EntryID)
		if err != nil {
			return err
		}
		oldCriteria, err := requireCriteria(ctx, s, entry.CriteriaID, entry.Track)
		if err != nil {
			return err
		}
		newCriteria := oldCriteria
		if o.CriteriaID != 0 && o.CriteriaID != entry.CriteriaID {
			if newCriteria, err = requireCriteria(ctx, s, o.CriteriaID, entry.Track); err != nil {
				return err
			}
		}
		rec, err := requireLeaderboard(ctx, s, entry)
		if err != nil {
			return err
		}

		now := w.clock.Now()
		oldBucket := appr.Approval.ImpliedBucket(oldCriteria.DirectorApproval)
		newBucket := next.ImpliedBucket(newCriteria.DirectorApproval)
		criteriaChanged := newCriteria.ID != entry.CriteriaID
		oldPoints := entry.Points

		switch {
		case criteriaChanged:
			// The stored statuses may not match where the old value sits.
			if _, err := w.ledger.RemovePoints(ctx, s, rec, entry.Points); err != nil {
				return err
			}
			if err := w.ledger.AdminResubmitPoints(ctx, s, rec, newCriteria.Points, newBucket); err != nil {
				return err
			}
			entry.CriteriaID = newCriteria.ID
			entry.Points = newCriteria.Points
			entry.UpdatedAt = now
			if err := s.UpdateEntry(ctx, *entry); err != nil {
				return fmt.Errorf("failed to update reward entry: %w", err)
			}
		case oldBucket != newBucket:
			// Other entries share the buckets, so only this entry's bucket
			// is debited.
			if err := w.ledger.removeFrom(ctx, s, rec, entry.Points, oldBucket); err != nil {
				return err
			}
			if err := w.ledger.AdminResubmitPoints(ctx, s, rec, entry.Points, newBucket); err != nil {
				return err
			}
		}

		appr.Approval = next
		if o.ManagerNotes != nil {
			appr.ManagerNotes = *o.ManagerNotes
		}
		if o.DirectorNotes != nil {
			appr.DirectorNotes = *o.DirectorNotes
		}
		appr.UpdatedAt = now
		if err := s.UpdateApproval(ctx, *appr); err != nil {
			return fmt.Errorf("failed to update approval entry: %w", err)
		}

		out = Outcome{Entry: *entry, Approval: *appr, Leaderboard: *rec}
		return s.AppendAudit(ctx, AuditEntry{
			Timestamp: now,
			ActorID:   o.ActorID,
			Action:    AuditAdminOverride,
			EntryID:   entry.ID,
			Payload: map[string]any{
				"manager_status":  string(next.Manager()),
				"director_status": string(next.Director()),
				"old_criteria_id": int64(oldCriteria.ID),
				"criteria_id":     int64(newCriteria.ID),
				"old_points":      oldPoints,
				"points":          entry.Points,
				"bucket":          newBucket.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	w.log.Info("approval overridden by admin",
		zap.Int64("entry_id", int64(o.EntryID)),
		zap.String("actor_id", string(o.ActorID)),
		zap.Stringer("state", next.State()),
	)
	return &out, nil
}

// DeleteEntry removes an entry, its approval record and its points.
func (w *Workflow) DeleteEntry(ctx context.Context, id EntryID, actorID EmployeeID) error {
	return w.store.WithTx(ctx, func(s Store) error {
		entry, appr, err := loadEntry(ctx, s, id)
		if err != nil {
			return err
		}
		rec, err := requireLeaderboard(ctx, s, entry)
		if err != nil {
			return err
		}
		// With the criteria still resolvable the statuses say where the
		// points sit. Otherwise fall back to searching the buckets.
		var from Bucket
		criteria, err := s.GetCriteria(ctx, entry.CriteriaID, entry.Track)
		if err != nil {
			return err
		}
		if criteria != nil {
			from = appr.Approval.ImpliedBucket(criteria.DirectorApproval)
			err = w.ledger.removeFrom(ctx, s, rec, entry.Points, from)
		} else {
			from, err = w.ledger.RemovePoints(ctx, s, rec, entry.Points)
		}
		if err != nil {
			return err
		}
		if err := s.DeleteEntry(ctx, id); err != nil {
			return fmt.Errorf("failed to delete reward entry: %w", err)
		}
		return s.AppendAudit(ctx, AuditEntry{
			Timestamp: w.clock.Now(),
			ActorID:   actorID,
			Action:    AuditEntryDeleted,
			EntryID:   id,
			Payload:   map[string]any{"points": entry.Points, "bucket": from.String()},
		})
	})
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (w *Workflow) link(path string) string { return w.clientURL + path }

// member resolves a notification recipient outside the transaction.
func (w *Workflow) member(ctx context.Context, id EmployeeID) *Member {
	if id == "" {
		return nil
	}
	m, err := w.store.GetMember(ctx, id)
	if err != nil {
		w.log.Warn("failed to resolve notification recipient", zap.String("employee_id", string(id)), zap.Error(err))
		return nil
	}
	return m
}

func (w *Workflow) send(ctx context.Context, n Notification) {
	if len(n.To) == 0 {
		w.log.Debug("notification skipped, no recipient", zap.String("purpose", string(n.Purpose)), zap.Int64("entry_id", int64(n.EntryID)))
		return
	}
	if err := w.notifier.Notify(ctx, n); err != nil {
		w.metrics.NotificationFailed(n.Purpose)
		w.log.Error("notification failed",
			zap.String("purpose", string(n.Purpose)),
			zap.Int64("entry_id", int64(n.EntryID)),
			zap.Error(err),
		)
	}
}

func emails(ms ...*Member) []string {
	var out []string
	for _, m := range ms {
		if m != nil && m.Email != "" {
			out = append(out, m.Email)
		}
	}
	return out
}

func (w *Workflow) notifySubmission(ctx context.Context, owner Member, out Outcome) {
	n := Notification{
		Subject:  "New Reward Points Entry Submitted for Approval",
		FullName: owner.FullName(),
		Purpose:  PurposeSubmission,
		EntryID:  out.Entry.ID,
	}
	switch out.Approval.Approval.State() {
	case AwaitingManager:
		n.To = emails(w.member(ctx, out.Approval.ManagerID))
		n.Role = LabelManager
		n.Link = w.link(LinkManagerApproval)
	case AwaitingDirector:
		n.To = emails(w.member(ctx, out.Approval.DirectorID))
		n.Role = LabelDirector
		n.Link = w.link(LinkDirectorApproval)
	default:
		return
	}
	w.send(ctx, n)
}

func (w *Workflow) notifyDecision(ctx context.Context, d Decision, prev Approval, out Outcome) {
	project := out.Entry.ProjectName
	owner := w.member(ctx, out.Entry.OwnerID)

	if d.Stage == StageManager {
		switch {
		case d.Status == StatusApproved && out.Approval.Approval.State() == AwaitingDirector:
			actor := w.member(ctx, d.ActorID)
			n := Notification{
				To:           emails(w.member(ctx, out.Approval.DirectorID)),
				Subject:      "Reward Points Entry Approval Request for " + project,
				Role:         LabelDirector,
				Purpose:      PurposeEscalation,
				RewardPoints: project,
				Link:         w.link(LinkDirectorApproval),
				EntryID:      out.Entry.ID,
			}
			if actor != nil {
				n.FullName = actor.FullName()
			}
			w.send(ctx, n)
		case d.Status == StatusApproved:
			w.send(ctx, Notification{
				To:      emails(owner),
				Subject: "Reward Points Entry Approved for " + project,
				Role:    LabelPartner,
				Purpose: PurposeApproval,
				Status:  StatusApproved,
				Link:    w.link(LinkMyRewardPoints),
				EntryID: out.Entry.ID,
			})
		default:
			if prev.State() == Rejected {
				return
			}
			w.send(ctx, Notification{
				To:      emails(owner),
				Subject: "Reward Points Entry Rejected for " + project,
				Role:    LabelPartner,
				Purpose: PurposeApproval,
				Status:  StatusRejected,
				Link:    w.link(LinkMyRewardPoints),
				EntryID: out.Entry.ID,
			})
		}
		return
	}

	n := Notification{
		Subject: fmt.Sprintf("Reward Points Entry %s for %s", titleCase(string(d.Status)), project),
		Purpose: PurposeApproval,
		Status:  d.Status,
		EntryID: out.Entry.ID,
	}
	if out.Approval.ManagerID == "" {
		// Manager-tier owner: no manager to copy.
		n.To = emails(owner)
		n.Role = LabelManager
		n.Link = w.link(LinkMyRewardPoints)
		w.send(ctx, n)
		return
	}
	manager := w.member(ctx, out.Approval.ManagerID)
	if d.Status == StatusApproved {
		n.To, n.CC = emails(owner), emails(manager)
		n.Role = LabelPartner
		n.Link = w.link(LinkMyRewardPoints)
	} else {
		n.To, n.CC = emails(manager), emails(owner)
		n.Role = LabelManager
		n.Link = w.link(LinkDeclinedEntries)
	}
	w.send(ctx, n)
}

func (w *Workflow) notifyResubmission(ctx context.Context, owner Member, t tier, out Outcome) {
	n := Notification{
		Subject:      "Updated Reward Points Entry Submitted",
		FullName:     owner.FullName(),
		Purpose:      PurposeResubmission,
		RewardPoints: out.Entry.ProjectName,
		EntryID:      out.Entry.ID,
	}
	if t.managerReview {
		n.To = emails(w.member(ctx, out.Approval.ManagerID))
		n.Role = LabelManager
		n.Link = w.link(LinkManagerApproval)
	} else {
		n.To = emails(w.member(ctx, out.Approval.DirectorID))
		n.Role = LabelDirector
		n.Link = w.link(LinkDirectorApproval)
	}
	w.send(ctx, n)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
