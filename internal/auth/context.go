package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const claimsKey contextKey = "claims"

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

func ClaimsFrom(ctx context.Context) *Claims {
	if c, _ := ctx.Value(claimsKey).(*Claims); c != nil {
		return c
	}
	return nil
}

func UserIDFrom(ctx context.Context) string {
	c := ClaimsFrom(ctx)
	if c == nil {
		return ""
	}
	return c.UserID
}

func RoleFrom(ctx context.Context) string {
	c := ClaimsFrom(ctx)
	if c == nil {
		return ""
	}
	return c.Role
}

func IsAdmin(ctx context.Context) bool {
	return RoleFrom(ctx) == RoleAdmin
}

// AllowedTherapistsFrom returns the therapist ids the caller may act on, and
// whether the caller is unrestricted. Admins and professionals are
// unrestricted; assistants carry an explicit list.
func AllowedTherapistsFrom(ctx context.Context) (ids []uuid.UUID, all bool) {
	c := ClaimsFrom(ctx)
	if c == nil {
		return nil, false
	}
	if c.Role == RoleAdmin || c.Role == RoleProfessional {
		return nil, true
	}
	return c.AllowedTherapists, false
}
