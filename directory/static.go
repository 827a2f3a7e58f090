package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Static is an in-memory directory. People are addressed by DN; Add fills
// a "cn=<username>" DN when none is given.
type Static struct {
	mu        sync.RWMutex
	people    map[string]Person // by DN
	passwords map[string]string // by DN
}

func NewStatic() *Static {
	return &Static{people: make(map[string]Person), passwords: make(map[string]string)}
}

// Add registers p. An empty password disables login for p.
func (s *Static) Add(p Person, password string) Person {
	if p.DN == "" {
		p.DN = "cn=" + strings.ToLower(p.Username)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people[p.DN] = p
	s.passwords[p.DN] = password
	return p
}

func (s *Static) find(match func(Person) bool) *Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.people {
		if match(p) {
			found := p
			return &found
		}
	}
	return nil
}

func (s *Static) FindByUsername(_ context.Context, username string) (*Person, error) {
	return s.find(func(p Person) bool { return strings.EqualFold(p.Username, username) }), nil
}

func (s *Static) FindByEmail(_ context.Context, email string) (*Person, error) {
	return s.find(func(p Person) bool { return strings.EqualFold(p.Email, email) }), nil
}

func (s *Static) FindByDN(_ context.Context, dn string) (*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.people[dn]; ok {
		return &p, nil
	}
	return nil, nil
}

// SearchByTitle matches keyword anywhere in the title, case-insensitively,
// and returns people ordered by username.
func (s *Static) SearchByTitle(_ context.Context, keyword string) ([]Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kw := strings.ToLower(keyword)
	var out []Person
	for _, p := range s.people {
		if strings.Contains(strings.ToLower(p.Title), kw) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Static) Authenticate(ctx context.Context, username, password string) (*Person, error) {
	p, _ := s.FindByUsername(ctx, username)
	if p == nil || password == "" {
		return nil, ErrInvalidCredentials
	}
	s.mu.RLock()
	want := s.passwords[p.DN]
	s.mu.RUnlock()
	if want == "" || want != password {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

var _ Directory = (*Static)(nil)
