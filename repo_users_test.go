package activation_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-activation"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoredUser(t *testing.T, env *testEnv, email, provider, digest string) *activation.User {
	t.Helper()
	sentAt := env.now
	user, err := env.repo.Users().Register(context.Background(), &activation.User{
		Email:            email,
		Provider:         provider,
		ActivationDigest: digest,
		ActivationSentAt: &sentAt,
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)
	return user
}

func TestUsersFindByDigest(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	stored := newStoredUser(t, env, "pepe@example.com", providerAcme, "digest-1")

	found, err := env.repo.Users().FindByDigest(ctx, "digest-1", providerAcme)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, found.ID)
	assert.Equal(t, "pepe@example.com", found.Email)
	assert.False(t, found.EmailVerified)

	_, err = env.repo.Users().FindByDigest(ctx, "digest-1", providerOther)
	assert.True(t, repository.IsRecordNotFound(err))

	_, err = env.repo.Users().FindByDigest(ctx, "digest-2", providerAcme)
	assert.True(t, repository.IsRecordNotFound(err))

	_, err = env.repo.Users().FindByDigest(ctx, "", providerAcme)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestUsersMarkVerifiedIsCompareAndSet(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	stored := newStoredUser(t, env, "pepe@example.com", providerAcme, "digest-1")

	role, err := env.repo.Roles().FindByName(ctx, "role1", providerAcme)
	require.NoError(t, err)

	won, err := env.repo.Users().MarkVerified(ctx, stored, &role.ID)
	require.NoError(t, err)
	assert.True(t, won)
	assert.True(t, stored.EmailVerified)

	other, err := env.repo.Roles().FindByName(ctx, "role2", providerAcme)
	require.NoError(t, err)

	stale := &activation.User{ID: stored.ID, Provider: providerAcme}
	won, err = env.repo.Users().MarkVerified(ctx, stale, &other.ID)
	require.NoError(t, err)
	assert.False(t, won)
	assert.False(t, stale.EmailVerified, "losing call does not touch the record")

	found, err := env.repo.Users().FindByDigest(ctx, "digest-1", providerAcme)
	require.NoError(t, err)
	require.NotNil(t, found.RoleID)
	assert.Equal(t, role.ID, *found.RoleID)
}

func TestUsersMarkVerifiedKeepsAssignedRole(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	pending, err := env.repo.Roles().FindByName(ctx, activation.RoleNamePending, providerAcme)
	require.NoError(t, err)
	role1, err := env.repo.Roles().FindByName(ctx, "role1", providerAcme)
	require.NoError(t, err)

	user, err := env.repo.Users().Register(ctx, &activation.User{
		Email:            "pepe@example.com",
		Provider:         providerAcme,
		ActivationDigest: "digest-1",
		RoleID:           &pending.ID,
	})
	require.NoError(t, err)

	won, err := env.repo.Users().MarkVerified(ctx, user, &role1.ID)
	require.NoError(t, err)
	assert.True(t, won)

	found, err := env.repo.Users().FindByDigest(ctx, "digest-1", providerAcme)
	require.NoError(t, err)
	require.NotNil(t, found.RoleID)
	assert.Equal(t, pending.ID, *found.RoleID)
}

func TestUsersMarkVerifiedWrongProvider(t *testing.T) {
	env := setupEnv(t)
	stored := newStoredUser(t, env, "pepe@example.com", providerAcme, "digest-1")

	won, err := env.repo.Users().MarkVerified(context.Background(), &activation.User{
		ID:       stored.ID,
		Provider: providerOther,
	}, nil)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestUsersSetActivation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	stored := newStoredUser(t, env, "pepe@example.com", providerAcme, "digest-1")

	sentAt := env.now.Add(time.Hour)
	require.NoError(t, env.repo.Users().SetActivation(ctx, stored.ID, "digest-2", sentAt))

	_, err := env.repo.Users().FindByDigest(ctx, "digest-1", providerAcme)
	assert.True(t, repository.IsRecordNotFound(err))

	found, err := env.repo.Users().FindByDigest(ctx, "digest-2", providerAcme)
	require.NoError(t, err)
	require.NotNil(t, found.ActivationSentAt)
	assert.Equal(t, sentAt.Unix(), found.ActivationSentAt.Unix())

	err = env.repo.Users().SetActivation(ctx, uuid.New(), "digest-3", sentAt)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestUsersReplaceActivation(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	stored := newStoredUser(t, env, "pepe@example.com", providerAcme, "digest-1")

	sentAt := env.now.Add(time.Hour)
	won, err := env.repo.Users().ReplaceActivation(ctx, stored.ID, "digest-1", "digest-2", &sentAt)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = env.repo.Users().ReplaceActivation(ctx, stored.ID, "digest-1", "digest-3", &sentAt)
	require.NoError(t, err)
	assert.False(t, won, "digest-1 was already replaced")

	found, err := env.repo.Users().FindByDigest(ctx, "digest-2", providerAcme)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, found.ID)
	require.NotNil(t, found.ActivationSentAt)
	assert.Equal(t, sentAt.Unix(), found.ActivationSentAt.Unix())
}

func TestUsersFindByEmail(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	stored := newStoredUser(t, env, "pepe@example.com", providerAcme, "digest-1")

	found, err := env.repo.Users().FindByEmail(ctx, " pepe@example.com ", providerAcme)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, found.ID)

	_, err = env.repo.Users().FindByEmail(ctx, "pepe@example.com", providerOther)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestUsersClock(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	fixed := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

	repo := activation.NewRepositoryManager(db, activation.WithUsersClock(func() time.Time { return fixed }))
	role, err := repo.Roles().Register(ctx, &activation.Role{Name: activation.RoleNameUser, Provider: providerAcme})
	require.NoError(t, err)

	user, err := repo.Users().Register(ctx, &activation.User{
		Email:            "pepe@example.com",
		Provider:         providerAcme,
		ActivationDigest: "digest-1",
	})
	require.NoError(t, err)

	won, err := repo.Users().MarkVerified(ctx, user, &role.ID)
	require.NoError(t, err)
	require.True(t, won)
	require.NotNil(t, user.UpdatedAt)
	assert.True(t, fixed.Equal(*user.UpdatedAt))

	found, err := repo.Users().FindByDigest(ctx, "digest-1", providerAcme)
	require.NoError(t, err)
	require.NotNil(t, found.UpdatedAt)
	assert.Equal(t, fixed.Unix(), found.UpdatedAt.Unix())
}

func TestRolesAreScopedByProvider(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	acmeUser, err := env.repo.Roles().FindByName(ctx, activation.RoleNameUser, providerAcme)
	require.NoError(t, err)
	otherUser, err := env.repo.Roles().FindByName(ctx, activation.RoleNameUser, providerOther)
	require.NoError(t, err)
	assert.NotEqual(t, acmeUser.ID, otherUser.ID)

	_, err = env.repo.Roles().FindByIDTx(ctx, env.db, acmeUser.ID, providerOther)
	assert.True(t, repository.IsRecordNotFound(err))

	_, err = env.repo.Roles().Register(ctx, &activation.Role{Name: activation.RoleNameUser, Provider: providerAcme})
	assert.Error(t, err, "role names are unique per provider")
}

func TestRepositoryManagerValidate(t *testing.T) {
	env := setupEnv(t)
	assert.NoError(t, env.repo.Validate())
}
