/*
Package auth issues and checks session tokens and guards routes by role.

TOKEN FORMAT:
  base64url( nonce || AES-256-GCM( HS256 JWT ) )

  The JWT carries employee_id, role and username. It is signed with the
  session secret and then sealed with the 32-byte session key so the claims
  are not readable by the browser.

TRANSPORT:
  Cookie "_wfr" (HttpOnly) or "Authorization: Bearer <token>".

SEE ALSO:
  - middleware.go: Authenticate, RequireRole
  - login.go:      Admin and member login
*/
package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/recognition-engine/generic"
)

// ErrInvalidToken covers every reason a token is rejected.
var ErrInvalidToken = errors.New("invalid session token")

// Identity is the authenticated caller.
type Identity struct {
	EmployeeID generic.EmployeeID `json:"employee_id"`
	Username   string             `json:"username"`
	Role       generic.Role       `json:"role"`
}

type Claims struct {
	Identity
	jwt.RegisteredClaims
}

// Sessions issues and parses sealed tokens.
type Sessions struct {
	secret []byte
	aead   cipher.AEAD
	ttl    time.Duration
	clock  generic.Clock
}

// NewSessions requires a non-empty secret and a 32-byte key.
func NewSessions(secret, key string, ttl time.Duration, clock generic.Clock) (*Sessions, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("session key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if clock == nil {
		clock = generic.SystemClock{}
	}
	return &Sessions{secret: []byte(secret), aead: aead, ttl: ttl, clock: clock}, nil
}

func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue returns a sealed token for id and its expiry.
func (s *Sessions) Issue(id Identity) (string, time.Time, error) {
	now := s.clock.Now()
	exp := now.Add(s.ttl)
	claims := &Claims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(id.EmployeeID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session: %w", err)
	}

	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", time.Time{}, err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(signed), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), exp, nil
}

// Parse opens, verifies and decodes a token.
func (s *Sessions) Parse(token string) (*Claims, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	n := s.aead.NonceSize()
	if len(raw) < n {
		return nil, ErrInvalidToken
	}
	signed, err := s.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(string(signed), claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	// Admin accounts may have no employee id.
	if !claims.Role.Valid() || (claims.EmployeeID == "" && !claims.Role.IsAdmin()) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
