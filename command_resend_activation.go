package activation

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ResendActivationMessage struct {
	Digest     string `json:"digest" example:"4f1c...e9" doc:"Digest of the activation token previously issued"`
	Provider   string `json:"provider" example:"acme" doc:"Tenant the account belongs to"`
	OnResponse func(res *Result)
}

func (m ResendActivationMessage) Type() string { return "activation.resend" }

type ResendActivationHandler struct {
	deps dependencies
}

func (h *ResendActivationHandler) Execute(ctx context.Context, event ResendActivationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during activation resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendActivationHandler) execute(ctx context.Context, event ResendActivationMessage) error {
	var (
		user     *User
		link     string
		previous activationState
	)
	outcome := OutcomeResendSuccess

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.deps.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = findUserByDigest(ctx, tx, h.deps.repo, event.Digest, event.Provider)
		if err != nil {
			return err
		}

		// verified accounts never trigger another email
		if user.EmailVerified {
			outcome = OutcomeAlreadyVerified
			return nil
		}

		raw, err := h.deps.codec.Issue()
		if err != nil {
			return err
		}

		// the raw token is not stored, the link needs a fresh one
		now := h.deps.now()
		digest := h.deps.codec.Digest(raw)
		previous = activationState{digest: user.ActivationDigest, sentAt: user.ActivationSentAt}

		won, err := h.deps.repo.Users().ReplaceActivationTx(ctx, tx, user.ID, previous.digest, digest, &now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to rotate activation token")
		}
		if !won {
			// a concurrent resend rotated the digest first
			return ErrActivationNotFound(event.Provider)
		}

		user.ActivationDigest = digest
		user.ActivationSentAt = &now
		link = ActivationLink(h.deps.config.GetActivationBaseURL(), user.Provider, raw)

		return nil
	})

	if err != nil {
		return surface(err, "failed to resend activation")
	}

	if outcome == OutcomeResendSuccess {
		if err := h.deps.mailer.SendActivationEmail(ctx, user, link); err != nil {
			h.restore(ctx, user, previous)
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send activation email")
		}
	}

	res := h.deps.result(outcome)
	if outcome == OutcomeResendSuccess {
		res.Digest = user.ActivationDigest
		res.Redirect = ResendNotice(h.deps.config.GetResendRoute(), user.Provider, user.ActivationDigest)
		h.deps.record(ctx, ActivityEventActivationResent, user, nil)
	}

	if event.OnResponse != nil {
		event.OnResponse(res)
	}

	return nil
}

type activationState struct {
	digest string
	sentAt *time.Time
}

// restore puts the previous digest back after a failed send so the link the
// user already has keeps working. A newer rotation is left untouched.
func (h *ResendActivationHandler) restore(ctx context.Context, user *User, previous activationState) {
	restored, err := h.deps.repo.Users().ReplaceActivation(ctx, user.ID, user.ActivationDigest, previous.digest, previous.sentAt)
	if err != nil {
		h.deps.logger.Error("failed to restore activation digest for user %s: %v", user.ID, err)
		return
	}
	if !restored {
		h.deps.logger.Info("activation digest for user %s rotated again, not restored", user.ID)
	}
}
