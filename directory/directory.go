/*
Package directory reads identities from the corporate directory and mirrors
them into the local member table.

PURPOSE:
  Members are never edited locally. Their names, titles, roles and the
  manager/director chain come from the directory. A sync resolves a person,
  walks up their "manager" references and upserts every record on the way.

CHAIN RESOLUTION:
  person ──manager──▶ manager ──manager──▶ director ──▶ ... (5 levels)

  For every level i:  ManagerID  = level[i+1].EmployeeID
                      DirectorID = level[i+2].EmployeeID
  Only the first three levels are saved. The upper two supply their ids.

IMPLEMENTATIONS:
  LDAP    go-ldap against Active Directory
  Static  in-memory, for development and tests

SEE ALSO:
  - sync.go: Batch synchronization
  - generic/types.go: RoleFromTitle
*/
package directory

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/warp/recognition-engine/generic"
)

// ErrInvalidCredentials is returned by Authenticate for a wrong password or
// an unknown user.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Person is a directory entry.
type Person struct {
	DN         string
	EmployeeID generic.EmployeeID
	Username   string
	FirstName  string
	LastName   string
	Email      string
	Title      string
	ManagerDN  string
}

// Directory looks people up. Finders return nil, nil when nobody matches.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (*Person, error)
	FindByEmail(ctx context.Context, email string) (*Person, error)
	FindByDN(ctx context.Context, dn string) (*Person, error)
	SearchByTitle(ctx context.Context, keyword string) ([]Person, error)
	Authenticate(ctx context.Context, username, password string) (*Person, error)
}

// CapitalizeWords upper-cases the first letter of every word and lowers the
// rest: "senior MANAGER" → "Senior Manager".
func CapitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Member converts a person into an active member record without the
// manager chain.
func (p Person) Member() generic.Member {
	title := CapitalizeWords(p.Title)
	return generic.Member{
		EmployeeID: p.EmployeeID,
		Username:   p.Username,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Email:      p.Email,
		Title:      title,
		Role:       generic.RoleFromTitle(title),
		Status:     generic.MemberActive,
	}
}

// chainDepth is how many levels are resolved above and including the person.
const chainDepth = 5

// savedLevels is how many of them are mirrored locally.
const savedLevels = 3

// Chain is a person with the members above them, nearest first. Chain[0]
// is the person.
type Chain []generic.Member

// Resolve walks the manager references of username.
func Resolve(ctx context.Context, dir Directory, username string) (Chain, error) {
	p, err := dir.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, &generic.NotFoundError{Kind: "directory entry", ID: username}
	}
	return resolveFrom(ctx, dir, *p)
}

func resolveFrom(ctx context.Context, dir Directory, p Person) (Chain, error) {
	people := []Person{p}
	seen := map[string]bool{p.DN: true}
	for len(people) < chainDepth {
		ref := people[len(people)-1].ManagerDN
		if ref == "" || seen[ref] {
			break
		}
		up, err := dir.FindByDN(ctx, ref)
		if err != nil {
			return nil, err
		}
		if up == nil {
			break
		}
		seen[ref] = true
		people = append(people, *up)
	}

	var chain Chain
	for i := 0; i < len(people) && i < savedLevels; i++ {
		m := people[i].Member()
		if i+1 < len(people) {
			m.ManagerID = people[i+1].EmployeeID
		}
		if i+2 < len(people) {
			m.DirectorID = people[i+2].EmployeeID
		}
		chain = append(chain, m)
	}
	return chain, nil
}
