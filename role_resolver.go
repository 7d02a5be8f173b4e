package activation

import (
	"context"

	"github.com/goliatone/go-activation/rolemap"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RoleResolver picks the role an activated user receives
type RoleResolver interface {
	Resolve(ctx context.Context, mappingConfig, email string, existing *Role, provider string) (*Role, error)
	ResolveTx(ctx context.Context, tx bun.IDB, mappingConfig, email string, existing *Role, provider string) (*Role, error)
}

type RoleResolverOption func(*roleResolver)

// WithRoleResolverCaseInsensitive matches mapping keys ignoring case
func WithRoleResolverCaseInsensitive(enabled bool) RoleResolverOption {
	return func(r *roleResolver) {
		r.caseInsensitive = enabled
	}
}

// WithRoleResolverDefaultRole overrides the fallback role name
func WithRoleResolverDefaultRole(name string) RoleResolverOption {
	return func(r *roleResolver) {
		if name != "" {
			r.defaultRole = name
		}
	}
}

type roleResolver struct {
	roles           Roles
	caseInsensitive bool
	defaultRole     string
}

// NewRoleResolver returns a resolver that looks roles up in the given
// repository. The mapping string is parsed on every call.
func NewRoleResolver(roles Roles, opts ...RoleResolverOption) RoleResolver {
	r := &roleResolver{
		roles:       roles,
		defaultRole: RoleNameUser,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *roleResolver) Resolve(ctx context.Context, mappingConfig, email string, existing *Role, provider string) (*Role, error) {
	if existing != nil {
		return existing, nil
	}
	return r.lookup(func(name string) (*Role, error) {
		return r.roles.FindByName(ctx, name, provider)
	}, mappingConfig, email, provider)
}

func (r *roleResolver) ResolveTx(ctx context.Context, tx bun.IDB, mappingConfig, email string, existing *Role, provider string) (*Role, error) {
	if existing != nil {
		return existing, nil
	}
	return r.lookup(func(name string) (*Role, error) {
		return r.roles.FindByNameTx(ctx, tx, name, provider)
	}, mappingConfig, email, provider)
}

func (r *roleResolver) lookup(find func(name string) (*Role, error), mappingConfig, email, provider string) (*Role, error) {
	name := rolemap.RoleFor(
		mappingConfig,
		email,
		r.defaultRole,
		rolemap.WithCaseInsensitive(r.caseInsensitive),
	)

	role, err := find(name)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrRoleConfiguration(provider, name)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve role for activation")
	}

	if role == nil {
		return nil, ErrRoleConfiguration(provider, name)
	}

	return role, nil
}
