package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/warp/recognition-engine/directory"
	"github.com/warp/recognition-engine/generic"
)

// ErrPermissionDenied is returned for people without a local member record
// and for inactive members.
var ErrPermissionDenied = errors.New("permission denied")

// Login authenticates admins against their bcrypt hash and members against
// the directory.
type Login struct {
	store    generic.Store
	dir      directory.Directory
	sessions *Sessions
	log      *zap.Logger

	retries   int
	retryBase time.Duration
}

func NewLogin(store generic.Store, dir directory.Directory, sessions *Sessions, log *zap.Logger) *Login {
	if log == nil {
		log = zap.NewNop()
	}
	return &Login{store: store, dir: dir, sessions: sessions, log: log.Named("auth"), retries: 2, retryBase: time.Second}
}

// Session is a successful login.
type Session struct {
	Identity
	Token     string
	ExpiresAt time.Time
	Member    *generic.Member
}

func (l *Login) issue(id Identity, m *generic.Member) (*Session, error) {
	token, exp, err := l.sessions.Issue(id)
	if err != nil {
		return nil, err
	}
	return &Session{Identity: id, Token: token, ExpiresAt: exp, Member: m}, nil
}

// Admin logs in a local admin account. Admins act with the super admin role.
func (l *Login) Admin(ctx context.Context, username, password string) (*Session, error) {
	a, err := l.store.GetAdminByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if a == nil || !VerifyPassword(a.PasswordHash, password) {
		l.log.Warn("admin login rejected", zap.String("username", username))
		return nil, directory.ErrInvalidCredentials
	}
	l.log.Info("admin login", zap.String("username", a.Username))
	return l.issue(Identity{EmployeeID: a.EmployeeID, Username: a.Username, Role: generic.RoleSuperAdmin}, nil)
}

// Member logs in by email. The person must already be mirrored locally;
// the directory then checks the password and supplies the employee id.
func (l *Login) Member(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, &generic.ValidationError{Field: "email", Message: "email and password are required"}
	}
	local, err := l.store.GetMemberByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if local == nil {
		l.log.Warn("login for unknown member", zap.String("email", email))
		return nil, ErrPermissionDenied
	}

	p, err := l.bind(ctx, local.Username, password)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidCredentials) {
			l.log.Warn("incorrect credentials", zap.String("email", email))
		}
		return nil, err
	}
	return l.byEmployeeID(ctx, p.EmployeeID)
}

// bind retries transient directory failures. Wrong credentials are final.
func (l *Login) bind(ctx context.Context, username, password string) (*directory.Person, error) {
	var p *directory.Person
	b := retry.WithMaxRetries(uint64(l.retries), retry.NewFibonacci(l.retryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		p, err = l.dir.Authenticate(ctx, username, password)
		if err == nil || errors.Is(err, directory.ErrInvalidCredentials) {
			return err
		}
		l.log.Warn("directory bind failed, retrying", zap.String("username", username), zap.Error(err))
		return retry.RetryableError(err)
	})
	return p, err
}

// AsMember logs in without a password. Only wired outside production.
func (l *Login) AsMember(ctx context.Context, id generic.EmployeeID) (*Session, error) {
	return l.byEmployeeID(ctx, id)
}

func (l *Login) byEmployeeID(ctx context.Context, id generic.EmployeeID) (*Session, error) {
	m, err := l.store.GetMember(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load member %s: %w", id, err)
	}
	if m == nil || !m.Active() {
		return nil, ErrPermissionDenied
	}
	l.log.Info("member login", zap.String("employee_id", string(m.EmployeeID)), zap.Stringer("role", m.Role))
	return l.issue(Identity{EmployeeID: m.EmployeeID, Username: m.Username, Role: m.Role}, m)
}
