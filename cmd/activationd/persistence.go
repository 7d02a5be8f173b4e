package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"testing/fstest"

	"github.com/goliatone/go-activation"
	"github.com/goliatone/go-activation/config"
	"github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"gopkg.in/yaml.v3"
)

const roleFixturesPath = "data/fixtures/roles.yml"

func WithPersistence(ctx context.Context, app *App) error {
	dbCfg := app.config.Database

	sqldb, err := sql.Open(sqliteshim.ShimName, dbCfg.GetDSN())
	if err != nil {
		return err
	}

	// sqlite allows a single writer, verifications queue on this connection
	// instead of racing for the file lock
	sqldb.SetMaxOpenConns(1)
	if dbCfg.BusyTimeout > 0 {
		pragma := fmt.Sprintf("PRAGMA busy_timeout = %d", dbCfg.BusyTimeout.Milliseconds())
		if _, err := sqldb.ExecContext(ctx, pragma); err != nil {
			return err
		}
	}

	persistence.RegisterModel((*activation.Role)(nil))
	persistence.RegisterModel((*activation.User)(nil))

	client, err := persistence.New(dbCfg, sqldb, sqlitedialect.New())
	if err != nil {
		return err
	}

	app.db = client.DB()

	if err := activation.CreateSchema(ctx, app.db); err != nil {
		return err
	}

	app.repo = activation.NewRepositoryManager(app.db)
	if err := app.repo.Validate(); err != nil {
		return err
	}

	fixtures, err := roleFixtures(ctx, app.repo.Roles(), app.config.Seed)
	if err != nil {
		return err
	}

	if fixtures == nil {
		return nil
	}

	client.RegisterFixtures(fixtures)
	if err := client.Seed(ctx); err != nil {
		return err
	}

	app.logger.Info("seeded roles", "providers", app.config.Seed.Providers, "roles", app.config.Seed.Roles)

	return nil
}

type fixture struct {
	Model string           `yaml:"model"`
	Rows  []map[string]any `yaml:"rows"`
}

// roleFixtures returns a fixtures FS with the seed roles missing from the
// database, or nil when every provider already has them.
func roleFixtures(ctx context.Context, roles activation.Roles, seed config.SeedConfig) (fs.FS, error) {
	rows := []map[string]any{}

	for _, provider := range seed.Providers {
		for _, name := range seed.Roles {
			_, err := roles.FindByName(ctx, name, provider)
			if err == nil {
				continue
			}
			if !repository.IsRecordNotFound(err) {
				return nil, err
			}
			rows = append(rows, map[string]any{
				"id":       uuid.New().String(),
				"name":     name,
				"provider": provider,
			})
		}
	}

	if len(rows) == 0 {
		return nil, nil
	}

	data, err := yaml.Marshal([]fixture{{Model: "Role", Rows: rows}})
	if err != nil {
		return nil, err
	}

	return fstest.MapFS{
		roleFixturesPath: &fstest.MapFile{Data: data},
	}, nil
}
