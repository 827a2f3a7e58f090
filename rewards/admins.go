package rewards

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/warp/recognition-engine/auth"
	"github.com/warp/recognition-engine/generic"
)

// NewAdmin is the input for a local admin account.
type NewAdmin struct {
	EmployeeID generic.EmployeeID
	Username   string
	Email      string
	Password   string
	FirstName  string
	LastName   string
}

// minPasswordLength applies to admin accounts only; members authenticate
// against the directory.
const minPasswordLength = 8

// CreateAdmin adds an active admin account. Usernames are unique regardless
// of case.
func (s *Service) CreateAdmin(ctx context.Context, actor Actor, in NewAdmin) (*generic.AdminAccount, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, &generic.ValidationError{Field: "username", Message: "username is required"}
	}
	if len(in.Password) < minPasswordLength {
		return nil, &generic.ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	existing, err := s.store.GetAdminByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, &generic.ConflictError{Message: "admin " + username + " already exists"}
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	a := &generic.AdminAccount{
		EmployeeID:   in.EmployeeID,
		Username:     username,
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Status:       generic.MemberActive,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.store.SaveAdmin(ctx, a); err != nil {
		return nil, err
	}

	s.log.Info("admin account created", zap.String("username", username), zap.String("actor_id", string(actor.ID)))
	s.audit(ctx, generic.AuditEntry{
		ActorID: actor.ID,
		Action:  generic.AuditAdminChanged,
		Payload: map[string]any{"op": "create", "username": username},
	})
	return a, nil
}
