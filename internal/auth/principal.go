package auth

import (
	"context"
	"fmt"

	"github.com/cityteam/stats-sub000/internal/core"
)

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID   int64
	Username string
	Scope    core.Scope
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func forbidden(p Principal, action string) error {
	return fmt.Errorf("%w: %s may not %s", core.ErrForbidden, p.Username, action)
}

// RequireSuperuser guards facility and user management.
func RequireSuperuser(p Principal) error {
	if p.Scope.Superuser() {
		return nil
	}
	return forbidden(p, "manage facilities or users")
}

// CanRead allows any token granted on the facility.
func CanRead(p Principal, f core.Facility) error {
	if p.Scope.Any(f.Scope) {
		return nil
	}
	return forbidden(p, "read "+f.Scope)
}

// CanAdmin guards section and category changes.
func CanAdmin(p Principal, f core.Facility) error {
	if p.Scope.Has(f.Scope, core.PermissionAdmin) {
		return nil
	}
	return forbidden(p, "administer "+f.Scope)
}

// CanWriteSummary allows facility admins and regular users, and users
// granted the section's own scope.
func CanWriteSummary(p Principal, f core.Facility, s core.Section) error {
	if p.Scope.Has(f.Scope, core.PermissionAdmin, core.PermissionRegular, s.Scope) {
		return nil
	}
	return forbidden(p, "enter statistics for "+f.Scope+":"+s.Scope)
}
