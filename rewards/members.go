package rewards

import (
	"context"

	"go.uber.org/zap"

	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// MEMBERS
// =============================================================================

// GetMember returns a member with manager and director names filled in.
// Inactive members are reported as not found unless includeInactive is set.
func (s *Service) GetMember(ctx context.Context, id generic.EmployeeID, includeInactive bool) (*generic.Member, error) {
	m, err := s.store.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil || (!includeInactive && !m.Active()) {
		return nil, &generic.NotFoundError{Kind: "member", ID: string(id)}
	}
	names := newNameCache(ctx, s.store)
	s.enrich(names, m)
	return m, nil
}

func (s *Service) ListMembers(ctx context.Context, filter generic.MemberFilter) ([]generic.Member, error) {
	members, err := s.store.ListMembers(ctx, filter)
	if err != nil {
		return nil, err
	}
	names := newNameCache(ctx, s.store)
	for _, m := range members {
		names.seed(m)
	}
	for i := range members {
		s.enrich(names, &members[i])
	}
	return members, nil
}

// DirectReports lists the active members whose manager is id.
func (s *Service) DirectReports(ctx context.Context, id generic.EmployeeID) ([]generic.Member, error) {
	return s.ListMembers(ctx, generic.MemberFilter{ManagerID: id})
}

// DirectorReports lists the active members whose director is id.
func (s *Service) DirectorReports(ctx context.Context, id generic.EmployeeID) ([]generic.Member, error) {
	return s.ListMembers(ctx, generic.MemberFilter{DirectorID: id})
}

// DeactivateMember hides a member from rankings and blocks their login.
// Their entries and points are kept.
func (s *Service) DeactivateMember(ctx context.Context, actor Actor, id generic.EmployeeID) error {
	if err := s.store.SetMemberStatus(ctx, id, generic.MemberInactive); err != nil {
		return err
	}
	s.log.Info("member deactivated", zap.String("employee_id", string(id)), zap.String("actor_id", string(actor.ID)))
	s.cache.Invalidate(ctx, generic.FiscalYearLabel(s.clock.Now()))
	return nil
}

func (s *Service) enrich(names *nameCache, m *generic.Member) {
	m.ManagerName = names.name(m.ManagerID)
	m.DirectorName = names.name(m.DirectorID)
}

// nameCache resolves full names once per request.
type nameCache struct {
	ctx   context.Context
	store generic.MemberStore
	names map[generic.EmployeeID]string
}

func newNameCache(ctx context.Context, store generic.MemberStore) *nameCache {
	return &nameCache{ctx: ctx, store: store, names: make(map[generic.EmployeeID]string)}
}

func (c *nameCache) seed(m generic.Member) {
	c.names[m.EmployeeID] = m.FullName()
}

func (c *nameCache) name(id generic.EmployeeID) string {
	if id == "" {
		return ""
	}
	if n, ok := c.names[id]; ok {
		return n
	}
	var n string
	if m, err := c.store.GetMember(c.ctx, id); err == nil && m != nil {
		n = m.FullName()
	}
	c.names[id] = n
	return n
}
