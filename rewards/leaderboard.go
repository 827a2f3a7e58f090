package rewards

import (
	"context"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/warp/recognition-engine/export"
	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// LEADERBOARD VIEWS
// =============================================================================

// DefaultTopLimit is the size of a top-N ranking when none is requested.
const DefaultTopLimit = 10

// topPerformers is the number of rows per role in Stats.
const topPerformers = 3

// RoleStats summarizes one role's leaderboard records.
type RoleStats struct {
	Role        generic.Role
	Members     int // members holding any points
	Total       int64
	Approved    int64
	ForApproval int64
	Rejected    int64
	Average     decimal.Decimal // Total / Members, two places
}

type Stats struct {
	FiscalYear  string
	ByRole      []RoleStats // wire order, roles without records omitted
	TopManagers []generic.LeaderboardRow
	TopMembers  []generic.LeaderboardRow
}

// FiscalYear returns fy, or the current fiscal year when fy is empty.
func (s *Service) FiscalYear(fy string) string {
	if fy == "" {
		return generic.FiscalYearLabel(s.clock.Now())
	}
	return fy
}

// Leaderboard ranks every record of a fiscal year, highest total first.
// An empty fiscal year means the current one.
func (s *Service) Leaderboard(ctx context.Context, fiscalYear string) ([]generic.LeaderboardRow, error) {
	fy := s.FiscalYear(fiscalYear)
	var rows []generic.LeaderboardRow
	if s.cache.Get(ctx, fy, "all", &rows) {
		return rows, nil
	}
	rows, err := s.store.ListLeaderboards(ctx, generic.LeaderboardFilter{FiscalYear: fy})
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, fy, "all", rows)
	return rows, nil
}

// Top ranks the active members of one role. limit <= 0 uses DefaultTopLimit.
func (s *Service) Top(ctx context.Context, fiscalYear string, role generic.Role, limit int) ([]generic.LeaderboardRow, error) {
	if !role.Valid() {
		return nil, &generic.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %d", int(role))}
	}
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	fy := s.FiscalYear(fiscalYear)
	key := fmt.Sprintf("top:%d:%d", int(role), limit)

	var rows []generic.LeaderboardRow
	if s.cache.Get(ctx, fy, key, &rows) {
		return rows, nil
	}
	rows, err := s.store.ListLeaderboards(ctx, generic.LeaderboardFilter{
		FiscalYear: fy,
		Role:       &role,
		ActiveOnly: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, fy, key, rows)
	return rows, nil
}

// ByEmployee returns one member's record for a fiscal year.
func (s *Service) ByEmployee(ctx context.Context, id generic.EmployeeID, fiscalYear string) (*generic.LeaderboardRecord, error) {
	fy := s.FiscalYear(fiscalYear)
	rec, err := s.store.GetLeaderboard(ctx, id, fy)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &generic.NotFoundError{Kind: "leaderboard record", ID: fmt.Sprintf("%s/%s", id, fy)}
	}
	return rec, nil
}

func (s *Service) ByAlias(ctx context.Context, alias string) (*generic.LeaderboardRecord, error) {
	rec, err := s.store.GetLeaderboardByAlias(ctx, alias)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &generic.NotFoundError{Kind: "leaderboard record", ID: alias}
	}
	return rec, nil
}

// Stats aggregates a fiscal year by role. Averages divide each role's total
// by the number of its members holding points.
func (s *Service) Stats(ctx context.Context, fiscalYear string) (*Stats, error) {
	fy := s.FiscalYear(fiscalYear)
	var st Stats
	if s.cache.Get(ctx, fy, "stats", &st) {
		return &st, nil
	}

	rows, err := s.store.ListLeaderboards(ctx, generic.LeaderboardFilter{FiscalYear: fy})
	if err != nil {
		return nil, err
	}
	st = Stats{FiscalYear: fy}
	byRole := make(map[generic.Role]*RoleStats)
	for _, r := range rows {
		rs := byRole[r.Role]
		if rs == nil {
			rs = &RoleStats{Role: r.Role}
			byRole[r.Role] = rs
		}
		if r.TotalPoints > 0 {
			rs.Members++
		}
		rs.Total += r.TotalPoints
		rs.Approved += r.ApprovedPoints
		rs.ForApproval += r.ForApprovalPoints
		rs.Rejected += r.RejectedPoints

		if r.Status != generic.MemberActive {
			continue
		}
		switch {
		case r.Role == generic.RoleManager && len(st.TopManagers) < topPerformers:
			st.TopManagers = append(st.TopManagers, r)
		case r.Role == generic.RoleMember && len(st.TopMembers) < topPerformers:
			st.TopMembers = append(st.TopMembers, r)
		}
	}
	for _, role := range generic.AllRoles {
		rs, ok := byRole[role]
		if !ok {
			continue
		}
		rs.Average = average(rs.Total, rs.Members)
		st.ByRole = append(st.ByRole, *rs)
	}

	s.cache.Set(ctx, fy, "stats", st)
	return &st, nil
}

func average(total int64, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(total).DivRound(decimal.NewFromInt(int64(n)), 2)
}

// Export writes the fiscal year's ranking as a spreadsheet.
func (s *Service) Export(ctx context.Context, w io.Writer, fiscalYear string) error {
	fy := s.FiscalYear(fiscalYear)
	rows, err := s.Leaderboard(ctx, fy)
	if err != nil {
		return err
	}
	return export.WriteLeaderboard(w, fy, rows)
}
