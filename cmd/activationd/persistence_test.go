package main

import (
	"context"
	"database/sql"
	"io/fs"
	"testing"

	"github.com/goliatone/go-activation"
	"github.com/goliatone/go-activation/config"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"gopkg.in/yaml.v3"
)

func setupRepo(t *testing.T) activation.RepositoryManager {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, activation.CreateSchema(context.Background(), db))
	t.Cleanup(func() {
		_ = db.Close()
	})

	return activation.NewRepositoryManager(db)
}

func TestRoleFixturesOnlyListMissingRoles(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	_, err := repo.Roles().Register(ctx, &activation.Role{Name: activation.RoleNameUser, Provider: "acme"})
	require.NoError(t, err)

	seed := config.SeedConfig{
		Providers: []string{"acme", "globex"},
		Roles:     []string{activation.RoleNameUser, activation.RoleNamePending},
	}

	fixtures, err := roleFixtures(ctx, repo.Roles(), seed)
	require.NoError(t, err)
	require.NotNil(t, fixtures)

	data, err := fs.ReadFile(fixtures, roleFixturesPath)
	require.NoError(t, err)

	var parsed []fixture
	require.NoError(t, yaml.Unmarshal(data, &parsed))
	require.Len(t, parsed, 1)
	assert.Equal(t, "Role", parsed[0].Model)

	var seeded []string
	for _, row := range parsed[0].Rows {
		assert.NotEmpty(t, row["id"])
		seeded = append(seeded, row["provider"].(string)+"/"+row["name"].(string))
	}
	assert.ElementsMatch(t, []string{"acme/pending", "globex/user", "globex/pending"}, seeded)
}

func TestRoleFixturesNothingMissing(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	_, err := repo.Roles().Register(ctx, &activation.Role{Name: activation.RoleNameUser, Provider: "acme"})
	require.NoError(t, err)

	fixtures, err := roleFixtures(ctx, repo.Roles(), config.SeedConfig{
		Providers: []string{"acme"},
		Roles:     []string{activation.RoleNameUser},
	})
	require.NoError(t, err)
	assert.Nil(t, fixtures)

	fixtures, err = roleFixtures(ctx, repo.Roles(), config.SeedConfig{})
	require.NoError(t, err)
	assert.Nil(t, fixtures)
}
