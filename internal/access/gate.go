// Package access is the single authorization entry point. Every handler
// runs the same sequence through a Gate: authenticate the caller, check the
// role against the operation's allowed set, then check ownership of the
// target resource.
package access

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hugh/formlink/internal/apperr"
	"github.com/hugh/formlink/internal/database/models"
	"github.com/hugh/formlink/internal/directory"
)

// Role sets used by the API.
var (
	AdminOnly = []models.Role{models.RoleAdmin}
	Staff     = []models.Role{models.RoleAdmin, models.RoleSupport}
	Console   = []models.Role{models.RoleAdmin, models.RoleSupport, models.RoleAgent}
	EndClient = []models.Role{models.RoleUser}
)

// Principal is the authenticated caller.
type Principal struct {
	ID    uuid.UUID
	Role  models.Role
	Email string
}

// IsStaff reports whether ownership scoping is bypassed for p.
func (p *Principal) IsStaff() bool {
	return p.Role == models.RoleAdmin || p.Role == models.RoleSupport
}

// Owned is any resource carrying an owning agent.
type Owned interface {
	OwnerAgentID() uuid.UUID
}

// Policy describes what an operation requires. A nil Resource skips the
// ownership step.
type Policy struct {
	Roles    []models.Role
	Resource Owned
}

type principalKey struct{}

// NewContext stores the principal asserted by the session credential.
func NewContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal asserted by the session credential.
// It has not been checked against the directory; use Gate.Authenticate.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

type Gate struct {
	dir directory.Directory
}

func NewGate(dir directory.Directory) *Gate {
	return &Gate{dir: dir}
}

// Authenticate resolves the session principal against the directory. The
// stored role and email win over the ones in the session token, so a
// demoted or deactivated account loses access immediately.
func (g *Gate) Authenticate(ctx context.Context) (*Principal, error) {
	claimed, ok := FromContext(ctx)
	if !ok || claimed.ID == uuid.Nil {
		return nil, apperr.New(apperr.KindUnauthenticated, "no session")
	}

	user, err := g.dir.ResolveUser(ctx, claimed.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.New(apperr.KindUnauthenticated, "unknown principal")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.New(apperr.KindUnauthenticated, "account is inactive")
	}
	if !user.Role.Valid() {
		return nil, apperr.New(apperr.KindForbidden, "account has no valid role")
	}

	return &Principal{
		ID:    user.ID,
		Role:  user.Role,
		Email: directory.NormalizeEmail(user.Email),
	}, nil
}

// Authorize checks p's role against the allowed set.
func (g *Gate) Authorize(p *Principal, allowed ...models.Role) (models.Role, error) {
	if p == nil {
		return "", apperr.New(apperr.KindUnauthenticated, "no session")
	}
	for _, role := range allowed {
		if p.Role == role {
			return p.Role, nil
		}
	}
	return "", apperr.Newf(apperr.KindForbidden, "role %q may not perform this operation", p.Role)
}

// AuthorizeOwnership enforces agent scoping: agents act only on resources
// they own, admin and support act on everything, end-clients on nothing
// reachable through this check.
func (g *Gate) AuthorizeOwnership(p *Principal, resource Owned) error {
	if p == nil {
		return apperr.New(apperr.KindUnauthenticated, "no session")
	}
	switch {
	case p.IsStaff():
		return nil
	case p.Role == models.RoleAgent && resource.OwnerAgentID() == p.ID:
		return nil
	}
	return apperr.New(apperr.KindForbidden, "resource is owned by another agent")
}

// AuthorizeRedeemer binds a magic link to the account redeeming it: the
// link's client must have the caller's email. Holding the token alone is
// not enough.
func (g *Gate) AuthorizeRedeemer(ctx context.Context, p *Principal, link *models.MagicLink) error {
	if _, err := g.Authorize(p, EndClient...); err != nil {
		return err
	}

	client, err := g.dir.ResolveClient(ctx, link.ClientID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// A link whose client vanished is unusable by anyone.
			return apperr.New(apperr.KindForbidden, "link is not bound to this account")
		}
		return err
	}
	if directory.NormalizeEmail(client.Email) != directory.NormalizeEmail(p.Email) {
		return apperr.New(apperr.KindForbidden, "link is not bound to this account")
	}
	return nil
}

// Check runs authenticate → role → ownership in one call.
func (g *Gate) Check(ctx context.Context, policy Policy) (*Principal, error) {
	p, err := g.Authenticate(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := g.Authorize(p, policy.Roles...); err != nil {
		return nil, err
	}
	if policy.Resource != nil {
		if err := g.AuthorizeOwnership(p, policy.Resource); err != nil {
			return nil, err
		}
	}
	return p, nil
}
