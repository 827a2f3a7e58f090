package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"

	"github.com/warp/recognition-engine/generic"
)

// Attributes read from every entry.
var ldapAttributes = []string{
	"cn", "sn", "givenName", "title", "manager", "extensionAttribute2", "userPrincipalName",
}

type LDAPConfig struct {
	URL          string
	BindDN       string
	BindPassword string
	BaseDN       string
	// GroupFilter is ANDed with every search, e.g. "(memberOf=CN=...)".
	GroupFilter string
	Timeout     time.Duration
}

// LDAP is a Directory over a service account. Each call opens its own
// connection.
type LDAP struct {
	cfg LDAPConfig
	log *zap.Logger
}

func NewLDAP(cfg LDAPConfig, log *zap.Logger) *LDAP {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 50 * time.Second
	}
	return &LDAP{cfg: cfg, log: log.Named("ldap")}
}

func (l *LDAP) dial(ctx context.Context) (*ldap.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn, err := ldap.DialURL(l.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ldap dial failed: %w", err)
	}
	conn.SetTimeout(l.cfg.Timeout)
	if err := conn.Bind(l.cfg.BindDN, l.cfg.BindPassword); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ldap service bind failed: %w", err)
	}
	return conn, nil
}

func (l *LDAP) filter(f string) string {
	if l.cfg.GroupFilter == "" {
		return f
	}
	return "(&" + f + l.cfg.GroupFilter + ")"
}

func (l *LDAP) search(ctx context.Context, base string, scope int, filter string, limit int) ([]Person, error) {
	conn, err := l.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(base, scope, ldap.NeverDerefAliases, limit,
		int(l.cfg.Timeout/time.Second), false, filter, ldapAttributes, nil)
	res, err := conn.Search(req)
	if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
		return nil, nil
	}
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		l.log.Warn("search failed", zap.String("filter", filter), zap.Error(err))
		return nil, fmt.Errorf("ldap search failed: %w", err)
	}
	if res == nil {
		return nil, nil
	}

	out := make([]Person, 0, len(res.Entries))
	for _, e := range res.Entries {
		out = append(out, personFromEntry(e))
	}
	l.log.Debug("search", zap.String("filter", filter), zap.Int("results", len(out)))
	return out, nil
}

func (l *LDAP) findOne(ctx context.Context, base string, scope int, filter string) (*Person, error) {
	people, err := l.search(ctx, base, scope, filter, 1)
	if err != nil || len(people) == 0 {
		return nil, err
	}
	return &people[0], nil
}

func personFromEntry(e *ldap.Entry) Person {
	return Person{
		DN:         e.DN,
		EmployeeID: employeeID(e.GetAttributeValue("extensionAttribute2")),
		Username:   e.GetAttributeValue("cn"),
		FirstName:  e.GetAttributeValue("givenName"),
		LastName:   e.GetAttributeValue("sn"),
		Email:      e.GetAttributeValue("userPrincipalName"),
		Title:      e.GetAttributeValue("title"),
		ManagerDN:  e.GetAttributeValue("manager"),
	}
}

func employeeID(s string) generic.EmployeeID {
	return generic.EmployeeID(strings.TrimSpace(s))
}

func (l *LDAP) FindByUsername(ctx context.Context, username string) (*Person, error) {
	return l.findOne(ctx, l.cfg.BaseDN, ldap.ScopeWholeSubtree,
		l.filter(fmt.Sprintf("(cn=%s)", ldap.EscapeFilter(username))))
}

func (l *LDAP) FindByEmail(ctx context.Context, email string) (*Person, error) {
	return l.findOne(ctx, l.cfg.BaseDN, ldap.ScopeWholeSubtree,
		l.filter(fmt.Sprintf("(userPrincipalName=%s)", ldap.EscapeFilter(email))))
}

// FindByDN reads the entry itself; the group filter does not apply since
// managers may sit outside the synchronized group.
func (l *LDAP) FindByDN(ctx context.Context, dn string) (*Person, error) {
	return l.findOne(ctx, dn, ldap.ScopeBaseObject, "(objectClass=*)")
}

func (l *LDAP) SearchByTitle(ctx context.Context, keyword string) ([]Person, error) {
	return l.search(ctx, l.cfg.BaseDN, ldap.ScopeWholeSubtree,
		l.filter(fmt.Sprintf("(&(title=*%s*)(objectClass=person))", ldap.EscapeFilter(keyword))), 0)
}

// Authenticate binds as the user after locating them with the service
// account.
func (l *LDAP) Authenticate(ctx context.Context, username, password string) (*Person, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	p, err := l.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrInvalidCredentials
	}

	conn, err := ldap.DialURL(l.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ldap dial failed: %w", err)
	}
	defer conn.Close()
	conn.SetTimeout(l.cfg.Timeout)
	if err := conn.Bind(p.DN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("ldap user bind failed: %w", err)
	}
	return p, nil
}

// Ping checks that the service account can bind.
func (l *LDAP) Ping(ctx context.Context) error {
	conn, err := l.dial(ctx)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

// Validate reports configuration errors before the first request.
func (c LDAPConfig) Validate() error {
	if c.URL == "" {
		return errors.New("ldap url is empty")
	}
	if c.BaseDN == "" {
		return errors.New("ldap base dn is empty")
	}
	return nil
}

var _ Directory = (*LDAP)(nil)
