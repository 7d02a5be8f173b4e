package activation

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Email    string `json:"email" example:"pepe.rone@example.com" doc:"Account email"`
	Provider string `json:"provider" example:"acme" doc:"Tenant the account belongs to"`
	// Role pre-assigns a role by name, the mapping never overrides it.
	Role       string `json:"role,omitempty" example:"pending" doc:"Optional pre-assigned role"`
	UseHashid  bool   `json:"-"`
	OnResponse func(resp *RegisterAccountResponse)
}

func (m RegisterAccountMessage) Type() string { return "activation.register" }

// Validate will run validation rules
func (m RegisterAccountMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&m.Provider, validation.Required, validation.Length(1, 100)),
		validation.Field(&m.Role, validation.Length(0, 100)),
	)
}

type RegisterAccountResponse struct {
	User *User
	// Token is the raw activation token. It is only available here and in
	// the emailed link.
	Token    string
	Bypassed bool
}

type RegisterAccountHandler struct {
	deps dependencies
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	if err := event.Validate(); err != nil {
		return ErrInvalidActivationInput(err)
	}

	resp := &RegisterAccountResponse{
		Bypassed: bypassesVerification(h.deps.config, event.Provider),
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.deps.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user := &User{
			Email:    event.Email,
			Provider: event.Provider,
		}

		existing, err := h.deps.repo.Users().FindByEmailTx(ctx, tx, event.Email, event.Provider)
		if err == nil && existing != nil {
			return ErrAccountExists(event.Provider)
		}
		if err != nil && !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up existing account")
		}

		if event.UseHashid {
			if id, err := hashid.NewUUID(event.Provider + ":" + event.Email); err == nil {
				user.ID = id
			}
		}

		if event.Role != "" {
			role, err := h.deps.repo.Roles().FindByNameTx(ctx, tx, event.Role, event.Provider)
			if err != nil {
				if repository.IsRecordNotFound(err) {
					return ErrRoleConfiguration(event.Provider, event.Role)
				}
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve pre-assigned role")
			}
			user.Role = role
			user.RoleID = &role.ID
		}

		var link string
		if resp.Bypassed {
			if !user.Role.IsPending() {
				mapping, err := h.deps.mappings.RoleMapping(ctx, event.Provider)
				if err != nil {
					return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load role mapping")
				}
				role, err := h.deps.resolver.ResolveTx(ctx, tx, mapping, user.Email, user.Role, event.Provider)
				if err != nil {
					return err
				}
				user.Role = role
				user.RoleID = &role.ID
			}
			user.EmailVerified = true
		} else {
			raw, err := h.deps.codec.Issue()
			if err != nil {
				return err
			}
			now := h.deps.now()
			user.ActivationDigest = h.deps.codec.Digest(raw)
			user.ActivationSentAt = &now
			resp.Token = raw
			link = ActivationLink(h.deps.config.GetActivationBaseURL(), user.Provider, raw)
		}

		role := user.Role
		created, err := h.deps.repo.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAccountExists(event.Provider)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
		}
		created.Role = role
		resp.User = created

		if link == "" {
			return nil
		}

		if err := h.deps.mailer.SendActivationEmail(ctx, created, link); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send activation email")
		}

		return nil
	})

	if err != nil {
		return surface(err, "account registration transaction failed")
	}

	h.deps.record(ctx, ActivityEventAccountRegistered, resp.User, nil)
	if resp.Bypassed {
		h.deps.record(ctx, ActivityEventVerificationBypassed, resp.User, nil)
	} else {
		h.deps.record(ctx, ActivityEventActivationIssued, resp.User, nil)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
