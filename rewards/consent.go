package rewards

import (
	"context"

	"github.com/warp/recognition-engine/generic"
)

// ConsentUpdate is the set of answers a member gives.
type ConsentUpdate struct {
	InternalPublication bool
	PersonalData        bool
	RewardsManagement   bool
}

// Consent returns the member's log. Members who never answered get a log
// with every consent withheld.
func (s *Service) Consent(ctx context.Context, id generic.EmployeeID) (*generic.ConsentLog, error) {
	c, err := s.store.GetConsent(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return &generic.ConsentLog{EmployeeID: id}, nil
	}
	return c, nil
}

// SaveConsent records the answers, keeping the date of the first answer.
func (s *Service) SaveConsent(ctx context.Context, actor Actor, u ConsentUpdate) (*generic.ConsentLog, error) {
	if actor.ID == "" {
		return nil, &generic.ValidationError{Field: "employee_id", Message: "consent is recorded for members only"}
	}
	now := s.clock.Now()
	c := generic.ConsentLog{
		EmployeeID:                 actor.ID,
		InternalPublicationConsent: u.InternalPublication,
		PersonalDataConsent:        u.PersonalData,
		RewardsManagementConsent:   u.RewardsManagement,
		UpdatedAt:                  now,
	}
	prev, err := s.store.GetConsent(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		c.CreatedAt = prev.CreatedAt
	} else {
		c.CreatedAt = now
	}
	if err := s.store.SaveConsent(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Consents lists every log joined with member name and email.
func (s *Service) Consents(ctx context.Context) ([]generic.ConsentLog, error) {
	return s.store.ListConsents(ctx)
}
