package activation_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-activation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleResolver(t *testing.T) {
	env := setupEnv(t)
	resolver := activation.NewRoleResolver(env.repo.Roles())
	ctx := context.Background()

	tests := []struct {
		email string
		role  string
	}{
		{email: "test-123@test.com", role: "role1"},
		{email: "test@testing.com", role: "role2"},
		{email: "test@testing1.com", role: activation.RoleNameUser},
		{email: "TEST@TESTING.COM", role: activation.RoleNameUser},
	}

	for _, tc := range tests {
		role, err := resolver.Resolve(ctx, acmeMapping, tc.email, nil, providerAcme)
		require.NoError(t, err, tc.email)
		require.NotNil(t, role)
		assert.Equal(t, tc.role, role.Name, tc.email)
		assert.Equal(t, providerAcme, role.Provider)
	}
}

func TestRoleResolverKeepsExistingRole(t *testing.T) {
	env := setupEnv(t)
	resolver := activation.NewRoleResolver(env.repo.Roles())

	existing := &activation.Role{Name: "ghost", Provider: providerAcme}
	role, err := resolver.Resolve(context.Background(), acmeMapping, "test-123@test.com", existing, providerAcme)
	require.NoError(t, err)
	assert.Same(t, existing, role)
}

func TestRoleResolverCaseInsensitive(t *testing.T) {
	env := setupEnv(t)
	resolver := activation.NewRoleResolver(env.repo.Roles(), activation.WithRoleResolverCaseInsensitive(true))

	role, err := resolver.Resolve(context.Background(), acmeMapping, "TEST@TESTING.COM", nil, providerAcme)
	require.NoError(t, err)
	assert.Equal(t, "role2", role.Name)
}

func TestRoleResolverDefaultRole(t *testing.T) {
	env := setupEnv(t)
	resolver := activation.NewRoleResolver(env.repo.Roles(), activation.WithRoleResolverDefaultRole(activation.RoleNamePending))

	role, err := resolver.Resolve(context.Background(), acmeMapping, "nobody@example.com", nil, providerAcme)
	require.NoError(t, err)
	assert.Equal(t, activation.RoleNamePending, role.Name)
}

func TestRoleResolverMissingRole(t *testing.T) {
	env := setupEnv(t)
	resolver := activation.NewRoleResolver(env.repo.Roles())

	// role1 exists for acme but not for other
	_, err := resolver.Resolve(context.Background(), acmeMapping, "test-123@test.com", nil, providerOther)
	require.Error(t, err)
	assert.True(t, activation.IsRoleConfigurationError(err))

	_, err = resolver.ResolveTx(context.Background(), env.db, "", "nobody@example.com", nil, "empty")
	require.Error(t, err)
	assert.True(t, activation.IsRoleConfigurationError(err))
}
