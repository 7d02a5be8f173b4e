package activation

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the activation token store. Every lookup is scoped by provider.
type Users interface {
	repository.Repository[*User]

	FindByDigest(ctx context.Context, digest, provider string) (*User, error)
	FindByDigestTx(ctx context.Context, tx bun.IDB, digest, provider string) (*User, error)
	MarkVerified(ctx context.Context, user *User, roleID *uuid.UUID) (bool, error)
	MarkVerifiedTx(ctx context.Context, tx bun.IDB, user *User, roleID *uuid.UUID) (bool, error)
	FindByEmail(ctx context.Context, email, provider string) (*User, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email, provider string) (*User, error)
	SetActivation(ctx context.Context, id uuid.UUID, digest string, sentAt time.Time) error
	SetActivationTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string, sentAt time.Time) error
	ReplaceActivation(ctx context.Context, id uuid.UUID, current, digest string, sentAt *time.Time) (bool, error)
	ReplaceActivationTx(ctx context.Context, tx bun.IDB, id uuid.UUID, current, digest string, sentAt *time.Time) (bool, error)
	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

// WithUsersClock injects a custom clock (useful for tests).
func WithUsersClock(clock func() time.Time) UsersOption {
	return func(u *users) {
		if clock != nil {
			u.now = clock
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) FindByDigest(ctx context.Context, digest, provider string) (*User, error) {
	return a.FindByDigestTx(ctx, a.db, digest, provider)
}

func (a *users) FindByDigestTx(ctx context.Context, tx bun.IDB, digest, provider string) (*User, error) {
	digest = strings.TrimSpace(digest)
	if digest == "" || provider == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"provider": provider,
			})
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.activation_digest = ?", digest).
		Where("?TableAlias.provider = ?", provider).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"provider": provider,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) FindByEmail(ctx context.Context, email, provider string) (*User, error) {
	return a.FindByEmailTx(ctx, a.db, email, provider)
}

func (a *users) FindByEmailTx(ctx context.Context, tx bun.IDB, email, provider string) (*User, error) {
	meta := map[string]any{
		"provider": provider,
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Where("?TableAlias.provider = ?", strings.TrimSpace(provider)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().WithMetadata(meta)
		}
		return nil, err
	}

	return record, nil
}

func (a *users) MarkVerified(ctx context.Context, user *User, roleID *uuid.UUID) (bool, error) {
	return a.MarkVerifiedTx(ctx, a.db, user, roleID)
}

// MarkVerifiedTx flips is_email_verified from false to true in one
// statement. The role is only written when the user has none. It reports
// false when another call already verified the user.
func (a *users) MarkVerifiedTx(ctx context.Context, tx bun.IDB, user *User, roleID *uuid.UUID) (bool, error) {
	now := a.now()

	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("is_email_verified = ?", true).
		Set("role_id = COALESCE(role_id, ?)", roleID).
		Set("updated_at = ?", now).
		Where("id = ?", user.ID).
		Where("provider = ?", user.Provider).
		Where("is_email_verified = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if affected == 0 {
		return false, nil
	}

	user.EmailVerified = true
	if user.RoleID == nil {
		user.RoleID = roleID
	}
	user.UpdatedAt = &now

	return true, nil
}

func (a *users) SetActivation(ctx context.Context, id uuid.UUID, digest string, sentAt time.Time) error {
	return a.SetActivationTx(ctx, a.db, id, digest, sentAt)
}

func (a *users) SetActivationTx(ctx context.Context, tx bun.IDB, id uuid.UUID, digest string, sentAt time.Time) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("activation_digest = ?", digest).
		Set("activation_sent_at = ?", sentAt).
		Set("updated_at = ?", a.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) ReplaceActivation(ctx context.Context, id uuid.UUID, current, digest string, sentAt *time.Time) (bool, error) {
	return a.ReplaceActivationTx(ctx, a.db, id, current, digest, sentAt)
}

// ReplaceActivationTx swaps the activation digest only while it still equals
// current. It reports false when another call rotated it first.
func (a *users) ReplaceActivationTx(ctx context.Context, tx bun.IDB, id uuid.UUID, current, digest string, sentAt *time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("activation_digest = ?", digest).
		Set("activation_sent_at = ?", sentAt).
		Set("updated_at = ?", a.now()).
		Where("id = ?", id).
		Where("activation_digest = ?", current).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.Repository.CreateTx(ctx, tx, user)
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	record.Email = strings.TrimSpace(record.Email)
	record.Provider = strings.TrimSpace(record.Provider)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
