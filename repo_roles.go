package activation

import (
	"context"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles resolves provider scoped roles
type Roles interface {
	repository.Repository[*Role]

	FindByName(ctx context.Context, name, provider string) (*Role, error)
	FindByNameTx(ctx context.Context, tx bun.IDB, name, provider string) (*Role, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID, provider string) (*Role, error)
	Register(ctx context.Context, role *Role) (*Role, error)
	RegisterTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error)
}

type roles struct {
	repository.Repository[*Role]
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &roles{
		Repository: repo,
		db:         db,
	}
}

func (r *roles) FindByName(ctx context.Context, name, provider string) (*Role, error) {
	return r.FindByNameTx(ctx, r.db, name, provider)
}

func (r *roles) FindByNameTx(ctx context.Context, tx bun.IDB, name, provider string) (*Role, error) {
	return r.findOne(ctx, tx, map[string]any{
		"name": strings.TrimSpace(name),
	}, provider)
}

func (r *roles) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID, provider string) (*Role, error) {
	return r.findOne(ctx, tx, map[string]any{
		"id": id,
	}, provider)
}

func (r *roles) findOne(ctx context.Context, tx bun.IDB, where map[string]any, provider string) (*Role, error) {
	record := &Role{}
	q := tx.NewSelect().
		Model(record).
		Where("?TableAlias.provider = ?", provider)

	meta := map[string]any{"provider": provider}
	for column, value := range where {
		q = q.Where("?TableAlias.? = ?", bun.Ident(column), value)
		meta[column] = value
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().WithMetadata(meta)
		}
		return nil, err
	}

	return record, nil
}

func (r *roles) Register(ctx context.Context, role *Role) (*Role, error) {
	return r.RegisterTx(ctx, r.db, role)
}

func (r *roles) RegisterTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error) {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	return r.Repository.CreateTx(ctx, tx, role)
}
