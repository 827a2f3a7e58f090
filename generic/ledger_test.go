package generic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/recognition-engine/generic"
	"github.com/warp/recognition-engine/generic/store"
)

// =============================================================================
// LEDGER TESTS
// =============================================================================

type ledgerFixture struct {
	ctx    context.Context
	store  *store.TxMemory
	ledger *generic.Ledger
	rec    *generic.LeaderboardRecord
}

func newLedgerFixture(t *testing.T, forApproval, approved, rejected int64) *ledgerFixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewTxMemory()
	rec := &generic.LeaderboardRecord{
		EmployeeID:        "E100",
		FiscalYear:        "FY25",
		Alias:             "FY25-0001",
		ForApprovalPoints: forApproval,
		ApprovedPoints:    approved,
		RejectedPoints:    rejected,
		TotalPoints:       forApproval + approved + rejected,
	}
	require.NoError(t, s.CreateLeaderboard(ctx, rec))
	clock := generic.FixedClock{T: generic.Date(2024, 11, 4)}
	return &ledgerFixture{ctx: ctx, store: s, ledger: generic.NewLedger(nil, clock, nil), rec: rec}
}

func (f *ledgerFixture) stored(t *testing.T) generic.LeaderboardRecord {
	t.Helper()
	rec, err := f.store.GetLeaderboard(f.ctx, "E100", "FY25")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Consistent(), "record inconsistent: %+v", *rec)
	return *rec
}

func TestLedger_AddPoints(t *testing.T) {
	f := newLedgerFixture(t, 0, 0, 0)

	require.NoError(t, f.ledger.AddPoints(f.ctx, f.store, f.rec, 20, generic.BucketForApproval))
	require.NoError(t, f.ledger.AddPoints(f.ctx, f.store, f.rec, 5, generic.BucketApproved))

	rec := f.stored(t)
	assert.Equal(t, int64(20), rec.ForApprovalPoints)
	assert.Equal(t, int64(5), rec.ApprovedPoints)
	assert.Equal(t, int64(25), rec.TotalPoints)
	assert.Equal(t, generic.Date(2024, 11, 4), rec.UpdatedAt)
}

func TestLedger_ApprovePoints_KeepsTotal(t *testing.T) {
	f := newLedgerFixture(t, 30, 0, 0)

	require.NoError(t, f.ledger.ApprovePoints(f.ctx, f.store, f.rec, 20, generic.StatusApproved))
	require.NoError(t, f.ledger.ApprovePoints(f.ctx, f.store, f.rec, 10, generic.StatusRejected))

	rec := f.stored(t)
	assert.Equal(t, int64(0), rec.ForApprovalPoints)
	assert.Equal(t, int64(20), rec.ApprovedPoints)
	assert.Equal(t, int64(10), rec.RejectedPoints)
	assert.Equal(t, int64(30), rec.TotalPoints)
}

func TestLedger_ApprovePoints_ClampsDrift(t *testing.T) {
	// GIVEN only 5 points pending but a 20 point entry is approved
	f := newLedgerFixture(t, 5, 0, 0)

	// WHEN
	require.NoError(t, f.ledger.ApprovePoints(f.ctx, f.store, f.rec, 20, generic.StatusApproved))

	// THEN for-approval is clamped to zero and the total is recomputed
	rec := f.stored(t)
	assert.Equal(t, int64(0), rec.ForApprovalPoints)
	assert.Equal(t, int64(20), rec.ApprovedPoints)
	assert.Equal(t, int64(20), rec.TotalPoints)
}

func TestLedger_ApprovePoints_RejectsNonDecision(t *testing.T) {
	f := newLedgerFixture(t, 5, 0, 0)
	err := f.ledger.ApprovePoints(f.ctx, f.store, f.rec, 5, generic.StatusPending)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestLedger_ResubmitPoints_UsesNewValue(t *testing.T) {
	f := newLedgerFixture(t, 0, 0, 10)

	require.NoError(t, f.ledger.ResubmitPoints(f.ctx, f.store, f.rec, 10, 15))

	rec := f.stored(t)
	assert.Equal(t, int64(0), rec.RejectedPoints)
	assert.Equal(t, int64(15), rec.ForApprovalPoints)
	assert.Equal(t, int64(15), rec.TotalPoints)
}

func TestLedger_RemovePoints_SearchOrder(t *testing.T) {
	tests := []struct {
		name                        string
		forApproval, approved, rejd int64
		points                      int64
		wantFrom                    generic.Bucket
	}{
		{"for-approval first", 10, 10, 10, 10, generic.BucketForApproval},
		{"falls through to approved", 5, 10, 10, 10, generic.BucketApproved},
		{"falls through to rejected", 0, 5, 10, 10, generic.BucketRejected},
		{"no bucket holds enough", 5, 5, 5, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLedgerFixture(t, tt.forApproval, tt.approved, tt.rejd)
			before := f.stored(t)

			from, err := f.ledger.RemovePoints(f.ctx, f.store, f.rec, tt.points)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFrom, from)

			rec := f.stored(t)
			if tt.wantFrom == 0 {
				assert.Equal(t, before.TotalPoints, rec.TotalPoints)
				return
			}
			assert.Equal(t, before.Points(tt.wantFrom)-tt.points, rec.Points(tt.wantFrom))
			assert.Equal(t, before.TotalPoints-tt.points, rec.TotalPoints)
		})
	}
}

func TestLedger_UpdatePoints_RecomputesStaleTotal(t *testing.T) {
	f := newLedgerFixture(t, 3, 4, 5)
	f.rec.TotalPoints = 999

	require.NoError(t, f.ledger.AdminResubmitPoints(f.ctx, f.store, f.rec, 1, generic.BucketApproved))

	rec := f.stored(t)
	assert.Equal(t, int64(13), rec.TotalPoints)
}

func TestLedger_UpdatePoints_ClampsNegativeBuckets(t *testing.T) {
	f := newLedgerFixture(t, 0, 0, 0)
	f.rec.RejectedPoints = -7

	require.NoError(t, f.ledger.AddPoints(f.ctx, f.store, f.rec, 2, generic.BucketApproved))

	rec := f.stored(t)
	assert.Equal(t, int64(0), rec.RejectedPoints)
	assert.Equal(t, int64(2), rec.TotalPoints)
}
