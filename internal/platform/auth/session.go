package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an issued session token stays valid. There
// is no refresh; callers log in again.
const DefaultSessionTTL = time.Hour

// ErrInvalidToken is returned by Verify for any token that must not be
// trusted: malformed, badly signed, expired or carrying unknown claims.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role       string `json:"role"`
	NationalID string `json:"national_id,omitempty"`
}

type SessionConfig struct {
	SigningKey []byte
	Issuer     string
	TTL        time.Duration
}

// SessionIssuer signs and verifies HS256 session tokens.
type SessionIssuer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionIssuer(cfg SessionConfig) *SessionIssuer {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionIssuer{
		key:    cfg.SigningKey,
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue returns a signed token for p and the instant it expires.
func (s *SessionIssuer) Issue(p Principal) (string, time.Time, error) {
	if p.ID == uuid.Nil {
		return "", time.Time{}, fmt.Errorf("issue session: empty subject")
	}
	if _, ok := ParseRole(string(p.Role)); !ok {
		return "", time.Time{}, fmt.Errorf("issue session: unknown role %q", p.Role)
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:       string(p.Role),
		NationalID: p.NationalID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the
// principal the token was issued for.
func (s *SessionIssuer) Verify(tokenStr string) (Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	role, ok := ParseRole(claims.Role)
	if !ok {
		return Principal{}, ErrInvalidToken
	}

	return Principal{ID: id, Role: role, NationalID: claims.NationalID}, nil
}
