package auth

import (
	"context"

	"github.com/prn-tf/meridian-bank/internal/domain"
)

// principalCtxKey is the context key for the authenticated principal.
type principalCtxKey struct{}

// Principal is the authenticated caller of a request.
type Principal struct {
	// User is the authenticated user record, loaded fresh per request.
	User *domain.User
}

// ID returns the principal's user ID.
func (p *Principal) ID() int64 {
	return p.User.ID
}

// IsEmployee reports whether the caller holds the employee role.
func (p *Principal) IsEmployee() bool {
	return p.User.IsEmployee()
}

// WithPrincipal attaches a principal to a context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(*Principal)
	return p, ok
}

// RequirePrincipal retrieves the principal or fails with ErrUnauthenticated.
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p == nil || p.User == nil {
		return nil, ErrUnauthenticated
	}
	return p, nil
}

// AccessPolicy centralizes the role-based access decisions so handlers and
// services share one definition of who may touch what.
type AccessPolicy struct{}

// NewAccessPolicy creates an access policy.
func NewAccessPolicy() *AccessPolicy {
	return &AccessPolicy{}
}

// CanViewUser reports whether the caller may read the given user's details.
// Employees may view anyone; regular users only themselves.
func (ap *AccessPolicy) CanViewUser(p *Principal, userID int64) bool {
	return p.IsEmployee() || p.ID() == userID
}

// CanModifyUser reports whether the caller may change the given user.
// Same rule as viewing: employees anyone, regular users themselves.
func (ap *AccessPolicy) CanModifyUser(p *Principal, userID int64) bool {
	return p.IsEmployee() || p.ID() == userID
}

// CanAccessAccount reports whether the caller may read or operate on the
// given account. The clearing account is off-limits for everyone.
func (ap *AccessPolicy) CanAccessAccount(p *Principal, acct *domain.Account) bool {
	return p.User.CanAccess(acct)
}

// RequireEmployee fails with ErrForbidden unless the caller is an employee.
func (ap *AccessPolicy) RequireEmployee(p *Principal) error {
	if !p.IsEmployee() {
		return ErrForbidden
	}
	return nil
}
