package auth

import (
	"context"
	"slices"
)

// Identity is the caller resolved from a bearer token.
type Identity struct {
	TenantID string
	Subject  string
	Role     Role
	// Programs limits the caller to these program ids. Empty means every
	// program of the tenant.
	Programs []string
}

// CanAccessProgram reports whether programID is inside the caller's scope.
func (id Identity) CanAccessProgram(programID string) bool {
	return len(id.Programs) == 0 || slices.Contains(id.Programs, programID)
}

type identityKey struct{}

// WithIdentity attaches the caller to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the caller attached to ctx.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// TenantIDFromContext returns the caller's tenant, or "".
func TenantIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.TenantID
}

// RoleFromContext returns the caller's role, or "".
func RoleFromContext(ctx context.Context) Role {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

// SubjectFromContext returns the caller's subject, or "".
func SubjectFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Subject
}
