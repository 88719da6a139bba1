package shared

import "context"

// Role is the fixed authorization ladder for Recouvra principals.
type Role string

const (
	// RoleAdmin sees every record in the system.
	RoleAdmin Role = "admin"
	// RoleManager is a collections agent scoped to their own portfolio.
	RoleManager Role = "manager"
	// RoleClient is a debtor restricted to their own records.
	RoleClient Role = "client"
)

// Valid reports whether the role is one of the three known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleClient:
		return true
	}
	return false
}

// Principal describes the authenticated actor. Domain services consume it
// as an opaque value passed through context; resolving it from credentials
// is the auth package's concern.
type Principal struct {
	ID    string
	Email string
	Role  Role
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context. The boolean is
// false when no authenticated principal is attached.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
