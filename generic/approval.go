/*
approval.go - Two-stage approval state

PURPOSE:
  An approval entry carries a manager decision and a director decision. The
  two are coupled: the director stage means nothing until the manager has
  approved, and the director stage is pre-approved when the criteria does not
  require director sign-off. Approval keeps the pair private and only hands
  out combinations that can actually occur.

STATE DIAGRAM:

    (manager, director)            ApprovalState
    ─────────────────────────────  ────────────────
    (pending,  pending|approved)   AwaitingManager
    (approved, pending)            AwaitingDirector
    (approved, approved)           Approved
    (rejected, *)                  Rejected
    (approved, rejected)           Rejected
    (pending,  rejected)           not representable

TRANSITIONS:
  DecideManager   AwaitingManager  → AwaitingDirector | Approved | Rejected
                  Rejected         → Rejected (no point movement)
  DecideDirector  AwaitingDirector → Approved | Rejected
  Resubmit        Rejected         → AwaitingManager | AwaitingDirector

  Each transition reports the PointMove the ledger must apply so status and
  points are always written together (see workflow.go).

SEE ALSO:
  - workflow.go: Applies transitions inside a store transaction
  - ledger.go:   Applies PointMove to leaderboard buckets
*/
package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// STATUS & STAGE
// =============================================================================

// Status is the tri-state decision of a single stage.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// IsDecision reports whether s is a decision an approver can make.
func (s Status) IsDecision() bool {
	return s == StatusApproved || s == StatusRejected
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", s)}
	}
	return st, nil
}

// Stage is one of the two approval tracks.
type Stage string

const (
	StageManager  Stage = "manager"
	StageDirector Stage = "director"
)

func ParseStage(s string) (Stage, error) {
	switch Stage(strings.ToLower(strings.TrimSpace(s))) {
	case StageManager:
		return StageManager, nil
	case StageDirector:
		return StageDirector, nil
	}
	return "", &ValidationError{Field: "stage", Message: fmt.Sprintf("unknown stage %q", s)}
}

// =============================================================================
// APPROVAL STATE - Tagged view of the status pair
// =============================================================================

type ApprovalState int

const (
	AwaitingManager ApprovalState = iota + 1
	AwaitingDirector
	Approved
	Rejected
)

func (s ApprovalState) String() string {
	switch s {
	case AwaitingManager:
		return "awaiting_manager"
	case AwaitingDirector:
		return "awaiting_director"
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	}
	return fmt.Sprintf("ApprovalState(%d)", int(s))
}

// PointMove is the ledger effect of a transition.
type PointMove int

const (
	MoveNone       PointMove = iota // status change only
	MoveToApproved                  // for-approval → approved
	MoveToRejected                  // for-approval → rejected
)

// =============================================================================
// APPROVAL - Validated (manager, director) pair
// =============================================================================

// Approval is immutable; transitions return a new value.
type Approval struct {
	manager  Status
	director Status
}

// NewApproval builds the initial pair for a submission. managerReview is
// false when the submitter's own tier skips the manager stage.
func NewApproval(managerReview, directorRequired bool) Approval {
	a := Approval{manager: StatusApproved, director: StatusApproved}
	if managerReview {
		a.manager = StatusPending
	}
	if directorRequired {
		a.director = StatusPending
	}
	return a
}

// RestoreApproval validates a stored or admin-supplied pair.
func RestoreApproval(manager, director Status) (Approval, error) {
	if !manager.Valid() {
		return Approval{}, &ValidationError{Field: "manager_approval_status", Message: fmt.Sprintf("unknown status %q", manager)}
	}
	if !director.Valid() {
		return Approval{}, &ValidationError{Field: "director_approval_status", Message: fmt.Sprintf("unknown status %q", director)}
	}
	if manager == StatusPending && director == StatusRejected {
		return Approval{}, &ValidationError{
			Field:   "director_approval_status",
			Message: "director cannot reject before the manager has decided",
		}
	}
	return Approval{manager: manager, director: director}, nil
}

// MustApproval is RestoreApproval for literals known to be valid.
func MustApproval(manager, director Status) Approval {
	a, err := RestoreApproval(manager, director)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Approval) Manager() Status  { return a.manager }
func (a Approval) Director() Status { return a.director }

func (a Approval) State() ApprovalState {
	switch {
	case a.manager == StatusRejected || a.director == StatusRejected:
		return Rejected
	case a.manager == StatusPending:
		return AwaitingManager
	case a.director == StatusPending:
		return AwaitingDirector
	default:
		return Approved
	}
}

// StatusOf returns the status of one stage.
func (a Approval) StatusOf(stage Stage) Status {
	if stage == StageDirector {
		return a.director
	}
	return a.manager
}

func (a Approval) String() string {
	return fmt.Sprintf("%s(manager=%s, director=%s)", a.State(), a.manager, a.director)
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// DecideManager applies a manager decision.
//
// Approving requires the manager stage to be pending. Rejecting an entry
// that is already rejected is accepted and moves no points.
func (a Approval) DecideManager(decision Status) (Approval, PointMove, error) {
	if !decision.IsDecision() {
		return a, MoveNone, &ValidationError{Field: "status", Message: fmt.Sprintf("%q is not a decision", decision)}
	}
	state := a.State()

	if decision == StatusRejected && state == Rejected {
		return Approval{manager: StatusRejected, director: a.director}, MoveNone, nil
	}
	if a.manager != StatusPending {
		return a, MoveNone, &InvalidStateError{State: state, Action: verb(decision) + " at manager stage"}
	}

	next := Approval{manager: decision, director: a.director}
	switch {
	case decision == StatusRejected:
		return next, MoveToRejected, nil
	case a.director == StatusPending:
		return next, MoveNone, nil
	default:
		return next, MoveToApproved, nil
	}
}

// DecideDirector applies a director decision. Only valid once the manager
// has approved and the director stage is still pending.
func (a Approval) DecideDirector(decision Status) (Approval, PointMove, error) {
	if !decision.IsDecision() {
		return a, MoveNone, &ValidationError{Field: "status", Message: fmt.Sprintf("%q is not a decision", decision)}
	}
	if state := a.State(); state != AwaitingDirector {
		return a, MoveNone, &InvalidStateError{State: state, Action: verb(decision) + " at director stage"}
	}

	next := Approval{manager: a.manager, director: decision}
	if decision == StatusApproved {
		return next, MoveToApproved, nil
	}
	return next, MoveToRejected, nil
}

// Resubmit reopens a rejected entry. Manager-tier submitters skip the
// manager stage, so only their director stage is reopened.
func (a Approval) Resubmit(managerTier, directorRequired bool) (Approval, error) {
	if state := a.State(); state != Rejected {
		return a, &InvalidStateError{State: state, Action: "resubmit"}
	}
	if managerTier {
		return Approval{manager: StatusApproved, director: StatusPending}, nil
	}
	next := Approval{manager: StatusPending, director: StatusApproved}
	if directorRequired || a.director == StatusRejected {
		next.director = StatusPending
	}
	return next, nil
}

func verb(decision Status) string {
	if decision == StatusApproved {
		return "approve"
	}
	return "reject"
}

// ImpliedBucket is where the entry's points belong for this pair. Without
// director sign-off the manager decision alone decides.
func (a Approval) ImpliedBucket(directorRequired bool) Bucket {
	if !directorRequired {
		switch a.manager {
		case StatusApproved:
			return BucketApproved
		case StatusRejected:
			return BucketRejected
		default:
			return BucketForApproval
		}
	}
	switch {
	case a.manager == StatusApproved && a.director == StatusApproved:
		return BucketApproved
	case a.manager == StatusRejected || a.director == StatusRejected:
		return BucketRejected
	default:
		return BucketForApproval
	}
}

// =============================================================================
// APPROVAL ENTRY - Persisted record
// =============================================================================

// ApprovalEntry is created atomically with its RewardEntry. ManagerID is
// empty for submissions whose tier skips the manager stage.
type ApprovalEntry struct {
	ID            ApprovalID
	EntryID       EntryID
	ManagerID     EmployeeID
	DirectorID    EmployeeID
	Approval      Approval
	ManagerNotes  string
	DirectorNotes string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ApproverFor returns the employee expected to act on a stage.
func (e ApprovalEntry) ApproverFor(stage Stage) EmployeeID {
	if stage == StageDirector {
		return e.DirectorID
	}
	return e.ManagerID
}

// ApprovalFilter selects an approver's queue.
//
// Stage=manager lists entries where ApproverID is the manager.
// Stage=director lists entries where ApproverID is the director and the
// manager stage is already approved; ManagerID narrows by manager.
type ApprovalFilter struct {
	Stage      Stage
	ApproverID EmployeeID
	Status     *Status // status of the listed stage
	ManagerID  EmployeeID
	OwnerID    EmployeeID
}
