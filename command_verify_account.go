package activation

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type VerifyAccountMessage struct {
	Token      string `json:"token" example:"pX3v0yq0m7Jr0Zb9cA1sQmQ2o3c4d5e6f7g8h9i0j1k" doc:"Raw activation token from the emailed link"`
	Provider   string `json:"provider" example:"acme" doc:"Tenant the account belongs to"`
	OnResponse func(res *Result)
}

func (m VerifyAccountMessage) Type() string { return "activation.verify" }

type VerifyAccountHandler struct {
	deps dependencies
}

func (h *VerifyAccountHandler) Execute(ctx context.Context, event VerifyAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyAccountHandler) execute(ctx context.Context, event VerifyAccountMessage) error {
	var user *User
	outcome := OutcomeActivated

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	digest := h.deps.codec.Digest(event.Token)

	err := h.deps.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = findUserByDigest(ctx, tx, h.deps.repo, digest, event.Provider)
		if err != nil {
			return err
		}

		if user.EmailVerified {
			outcome = OutcomeAlreadyVerified
			return nil
		}

		if err := attachRole(ctx, tx, h.deps.repo, user); err != nil {
			return err
		}

		var roleID *uuid.UUID
		if user.Role.IsPending() {
			outcome = OutcomePendingApproval
		} else {
			mapping, err := h.deps.mappings.RoleMapping(ctx, event.Provider)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load role mapping").
					WithMetadata(map[string]any{"provider": event.Provider})
			}

			role, err := h.deps.resolver.ResolveTx(ctx, tx, mapping, user.Email, user.Role, event.Provider)
			if err != nil {
				return err
			}
			user.Role = role
			roleID = &role.ID
		}

		won, err := h.deps.repo.Users().MarkVerifiedTx(ctx, tx, user, roleID)
		if err != nil {
			if isLockContention(err) {
				return err
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark account as verified")
		}

		if !won {
			// a concurrent call verified the account first
			outcome = OutcomeAlreadyVerified
		}

		return nil
	})

	if err != nil {
		if !isLockContention(err) {
			return surface(err, "failed to execute account verification")
		}

		// the write lock is held by a concurrent verification, the account
		// counts as verified once that one committed
		current, rerr := h.deps.repo.Users().FindByDigest(ctx, digest, event.Provider)
		if rerr != nil || !current.EmailVerified {
			return surface(err, "failed to execute account verification")
		}
		user = current
		outcome = OutcomeAlreadyVerified
	}

	switch outcome {
	case OutcomeActivated:
		h.deps.record(ctx, ActivityEventAccountVerified, user, nil)
	case OutcomePendingApproval:
		h.deps.record(ctx, ActivityEventAccountPending, user, nil)
	default:
		h.deps.logger.Debug("activation link reused for user %s", user.ID)
	}

	if event.OnResponse != nil {
		event.OnResponse(h.deps.result(outcome))
	}

	return nil
}

// findUserByDigest finds the user for digest within provider.
func findUserByDigest(ctx context.Context, tx bun.IDB, repo RepositoryManager, digest, provider string) (*User, error) {
	user, err := repo.Users().FindByDigestTx(ctx, tx, digest, provider)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrActivationNotFound(provider)
		}
		if isLockContention(err) {
			return nil, err
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user by activation digest")
	}
	return user, nil
}

// attachRole loads the current role of user, if any.
func attachRole(ctx context.Context, tx bun.IDB, repo RepositoryManager, user *User) error {
	if user.RoleID == nil {
		return nil
	}

	role, err := repo.Roles().FindByIDTx(ctx, tx, *user.RoleID, user.Provider)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrRoleConfiguration(user.Provider, user.RoleID.String())
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user role")
	}
	user.Role = role

	return nil
}
