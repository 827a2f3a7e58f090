/*
ledger.go - Leaderboard point buckets

PURPOSE:
  Every employee has one leaderboard record per fiscal year with three
  buckets of points: for-approval, approved, rejected. The total is always
  the sum of the three. The Ledger is the only writer of these buckets and it
  is only ever called by the Workflow, inside the same store transaction as
  the approval status change that caused it.

CRITICAL INVARIANTS:
  1. total_points == approved + for_approval + rejected, after every write
  2. No bucket is ever negative
  3. The stored total is never trusted; it is recomputed on every write

DRIFT:
  If a subtraction would take a bucket below zero (data drift, manual edits,
  criteria points edited after submission), the bucket is clamped to zero and
  the anomaly is logged. Drift is never surfaced as an error.

OPERATIONS:
  AddPoints            submission: points into for-approval or approved
  ApprovePoints        decision:   for-approval → approved | rejected
  ResubmitPoints       resubmit:   rejected → for-approval
  RemovePoints         admin:      take points out of the first bucket holding them
  AdminResubmitPoints  admin:      points into an explicit bucket

  All five persist through updatePoints. Entry deletion debits the bucket
  implied by the entry's statuses through the same path.

SEE ALSO:
  - workflow.go: The only caller
  - store.go:    LeaderboardStore
*/
package generic

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// BUCKETS
// =============================================================================

type Bucket int

const (
	BucketForApproval Bucket = iota + 1
	BucketApproved
	BucketRejected
)

func (b Bucket) String() string {
	switch b {
	case BucketForApproval:
		return "for_approval"
	case BucketApproved:
		return "approved"
	case BucketRejected:
		return "rejected"
	}
	return fmt.Sprintf("Bucket(%d)", int(b))
}

// removalOrder is the order RemovePoints searches for points.
var removalOrder = []Bucket{BucketForApproval, BucketApproved, BucketRejected}

// =============================================================================
// LEADERBOARD RECORD
// =============================================================================

// LeaderboardRecord is one employee's points for one fiscal year.
type LeaderboardRecord struct {
	ID                int64
	EmployeeID        EmployeeID
	FiscalYear        string
	Alias             string
	TotalPoints       int64
	ApprovedPoints    int64
	ForApprovalPoints int64
	RejectedPoints    int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Consistent reports whether the record satisfies the bucket invariants.
func (r LeaderboardRecord) Consistent() bool {
	return r.ApprovedPoints >= 0 && r.ForApprovalPoints >= 0 && r.RejectedPoints >= 0 &&
		r.TotalPoints == r.ApprovedPoints+r.ForApprovalPoints+r.RejectedPoints
}

// Points returns the content of one bucket.
func (r LeaderboardRecord) Points(b Bucket) int64 {
	switch b {
	case BucketForApproval:
		return r.ForApprovalPoints
	case BucketApproved:
		return r.ApprovedPoints
	case BucketRejected:
		return r.RejectedPoints
	}
	return 0
}

func (r *LeaderboardRecord) slot(b Bucket) *int64 {
	switch b {
	case BucketForApproval:
		return &r.ForApprovalPoints
	case BucketApproved:
		return &r.ApprovedPoints
	case BucketRejected:
		return &r.RejectedPoints
	}
	panic(fmt.Sprintf("unknown bucket %d", int(b)))
}

// LeaderboardRow is a record joined with its member, for rankings.
type LeaderboardRow struct {
	LeaderboardRecord
	FirstName string
	LastName  string
	Title     string
	Role      Role
	Status    MemberStatus
}

// LeaderboardFilter narrows ranking queries. Limit 0 means no limit.
type LeaderboardFilter struct {
	FiscalYear string
	Role       *Role
	ActiveOnly bool
	Limit      int
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger applies bucket arithmetic and persists through a LeaderboardStore.
type Ledger struct {
	log     *zap.Logger
	clock   Clock
	metrics Metrics
}

func NewLedger(log *zap.Logger, clock Clock, metrics Metrics) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &Ledger{log: log, clock: clock, metrics: metrics}
}

// AddPoints credits a bucket on submission.
func (l *Ledger) AddPoints(ctx context.Context, s LeaderboardStore, rec *LeaderboardRecord, points int64, to Bucket) error {
	*rec.slot(to) += points
	return l.updatePoints(ctx, s, rec)
}

// ApprovePoints moves points out of for-approval into the bucket named by
// the decision.
func (l *Ledger) ApprovePoints(ctx context.Context, s LeaderboardStore, rec *LeaderboardRecord, points int64, decision Status) error {
	var to Bucket
	switch decision {
	case StatusApproved:
		to = BucketApproved
	case StatusRejected:
		to = BucketRejected
	default:
		return &ValidationError{Field: "status", Message: fmt.Sprintf("%q is not a decision", decision)}
	}
	l.take(rec, BucketForApproval, points)
	*rec.slot(to) += points
	return l.updatePoints(ctx, s, rec)
}

// ResubmitPoints takes the previously rejected points out of rejected and
// puts the current criteria points back into for-approval.
func (l *Ledger) ResubmitPoints(ctx context.Context, s LeaderboardStore, rec *LeaderboardRecord, rejected, resubmitted int64) error {
	l.take(rec, BucketRejected, rejected)
	rec.ForApprovalPoints += resubmitted
	return l.updatePoints(ctx, s, rec)
}

// RemovePoints takes points out of the first bucket, in the order
// for-approval, approved, rejected, that holds at least that many. The
// stored approval status is not trusted to say where the points are. It
// returns the bucket debited, or 0 when no bucket held enough.
func (l *Ledger) RemovePoints(ctx context.Context, s LeaderboardStore, rec *LeaderboardRecord, points int64) (Bucket, error) {
	var from Bucket
	for _, b := range removalOrder {
		if rec.Points(b) >= points {
			from = b
			*rec.slot(b) -= points
			break
		}
	}
	if from == 0 {
		l.metrics.LedgerClamped("remove")
		l.log.Warn("no leaderboard bucket holds the points being removed",
			zap.String("employee_id", string(rec.EmployeeID)),
			zap.String("fiscal_year", rec.FiscalYear),
			zap.Int64("points", points),
		)
	}
	return from, l.updatePoints(ctx, s, rec)
}

// AdminResubmitPoints credits the bucket implied by admin-set statuses.
func (l *Ledger) AdminResubmitPoints(ctx context.Context, s LeaderboardStore, rec *LeaderboardRecord, points int64, to Bucket) error {
	*rec.slot(to) += points
	return l.updatePoints(ctx, s, rec)
}

// removeFrom debits a known bucket, clamping at zero.
func (l *Ledger) removeFrom(ctx context.Context, s LeaderboardStore, rec *LeaderboardRecord, points int64, from Bucket) error {
	l.take(rec, from, points)
	return l.updatePoints(ctx, s, rec)
}

// take subtracts from a bucket, clamping at zero.
func (l *Ledger) take(rec *LeaderboardRecord, b Bucket, points int64) {
	p := rec.slot(b)
	if *p < points {
		l.metrics.LedgerClamped(b.String())
		l.log.Warn("leaderboard bucket would go negative, clamping to zero",
			zap.String("employee_id", string(rec.EmployeeID)),
			zap.String("fiscal_year", rec.FiscalYear),
			zap.Stringer("bucket", b),
			zap.Int64("held", *p),
			zap.Int64("requested", points),
		)
		*p = 0
		return
	}
	*p -= points
}

// updatePoints is the single persistence path for bucket changes.
func (l *Ledger) updatePoints(ctx context.Context, s LeaderboardStore, rec *LeaderboardRecord) error {
	for _, b := range removalOrder {
		if p := rec.slot(b); *p < 0 {
			l.metrics.LedgerClamped(b.String())
			l.log.Warn("negative leaderboard bucket clamped to zero",
				zap.String("employee_id", string(rec.EmployeeID)),
				zap.Stringer("bucket", b),
				zap.Int64("value", *p),
			)
			*p = 0
		}
	}
	rec.TotalPoints = rec.ApprovedPoints + rec.ForApprovalPoints + rec.RejectedPoints
	rec.UpdatedAt = l.clock.Now()
	if err := s.SaveLeaderboard(ctx, *rec); err != nil {
		return fmt.Errorf("failed to update leaderboard %s/%s: %w", rec.EmployeeID, rec.FiscalYear, err)
	}
	return nil
}
