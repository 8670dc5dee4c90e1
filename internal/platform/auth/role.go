package auth

import (
	"context"

	"github.com/google/uuid"
)

// Role is the kind of account behind a session. Only patients and doctors
// hold credentials.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// ParseRole returns the Role named by s, or false if s names no role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RolePatient:
		return RolePatient, true
	case RoleDoctor:
		return RoleDoctor, true
	}
	return "", false
}

func (r Role) String() string { return string(r) }

// Principal is the authenticated caller of a request.
type Principal struct {
	ID   uuid.UUID
	Role Role
	// NationalID is only set for patients.
	NationalID string
}

func (p Principal) IsPatient() bool { return p.Role == RolePatient }

func (p Principal) IsDoctor() bool { return p.Role == RoleDoctor }

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal attached by SessionMiddleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
