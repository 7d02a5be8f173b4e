package activation

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

func RegisterActivationRoutes[T any](app router.Router[T], opts ...ActivationControllerOption) *ActivationController {
	controller := NewActivationController(opts...)

	app.Get(controller.Routes.Landing, controller.LandingShow).
		SetName("activation.get")

	app.Get(controller.Routes.ResendNotice, controller.ResendNotice).
		SetName("activation-resend-notice.get")

	app.Get(controller.Routes.Verify, controller.VerifyAccount).
		SetName("activation-verify.get")

	app.Get(controller.Routes.Resend, controller.ResendActivation).
		SetName("activation-resend.get")
	app.Post(controller.Routes.Resend, controller.ResendActivation).
		SetName("activation-resend.post")

	return controller
}

type ActivationControllerRoutes struct {
	Landing      string
	Verify       string
	Resend       string
	ResendNotice string
}

type ActivationController struct {
	Debug    bool
	Logger   Logger
	Workflow *Workflow
	Routes   *ActivationControllerRoutes
	// SessionKey is the locals key holding the signed in user id
	SessionKey   string
	UserID       func(ctx router.Context) string
	Flash        func(ctx router.Context, res *Result) router.Context
	ErrorHandler router.ErrorHandler
}

type ActivationControllerOption func(*ActivationController) *ActivationController

// WithControllerWorkflow sets the workflow served by the controller
func WithControllerWorkflow(w *Workflow) ActivationControllerOption {
	return func(c *ActivationController) *ActivationController {
		c.Workflow = w
		return c
	}
}

// WithControllerErrorHandler overrides how workflow errors are rendered
func WithControllerErrorHandler(h router.ErrorHandler) ActivationControllerOption {
	return func(c *ActivationController) *ActivationController {
		if h != nil {
			c.ErrorHandler = h
		}
		return c
	}
}

func WithControllerDebug(debug bool) ActivationControllerOption {
	return func(c *ActivationController) *ActivationController {
		c.Debug = debug
		return c
	}
}

func WithControllerLogger(logger Logger) ActivationControllerOption {
	return func(c *ActivationController) *ActivationController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerRoutes replaces the default route patterns. Verify needs
// :provider and :token params, Resend needs :provider and :digest.
func WithControllerRoutes(routes *ActivationControllerRoutes) ActivationControllerOption {
	return func(c *ActivationController) *ActivationController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func NewActivationController(opts ...ActivationControllerOption) *ActivationController {
	c := &ActivationController{
		Logger:       defLogger{},
		SessionKey:   "user_id",
		Flash:        flashResult,
		ErrorHandler: propagateError,
		Routes: &ActivationControllerRoutes{
			Landing: "/activation",
			Verify:  "/activation/:provider/verify/:token",
			Resend:  "/activation/:provider/resend/:digest",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Workflow == nil {
		panic("Missing Workflow in activation controller...")
	}

	if c.Routes.ResendNotice == "" {
		c.Routes.ResendNotice = c.Workflow.deps.config.GetResendRoute()
	}

	if c.UserID == nil {
		c.UserID = c.sessionUserID
	}

	return c
}

func (a *ActivationController) LandingShow(ctx router.Context) error {
	redirect := a.Workflow.ShowLanding(ctx.Context(), a.UserID(ctx))
	return ctx.Redirect(redirect, router.StatusSeeOther)
}

// VerifyAccountParams are the route params of the emailed link
type VerifyAccountParams struct {
	Provider string
	Token    string
}

// Validate will run validation rules
func (p VerifyAccountParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Provider, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Token, validation.Required, validation.Length(1, 256)),
	)
}

func (a *ActivationController) VerifyAccount(ctx router.Context) error {
	params := VerifyAccountParams{
		Provider: ctx.Param("provider"),
		Token:    ctx.Param("token"),
	}

	if err := params.Validate(); err != nil {
		return a.ErrorHandler(ctx, ErrInvalidActivationInput(err))
	}

	res, err := a.Workflow.Verify(ctx.Context(), params.Token, params.Provider)
	if err != nil {
		a.Logger.Error("activation verify provider=%s: %v", params.Provider, err)
		return a.ErrorHandler(ctx, err)
	}

	return a.respond(ctx, res)
}

// ResendActivationParams are the route params of a resend request
type ResendActivationParams struct {
	Provider string
	Digest   string
}

// Validate will run validation rules
func (p ResendActivationParams) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Provider, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Digest, validation.Required, validation.Length(1, 256)),
	)
}

func (a *ActivationController) ResendActivation(ctx router.Context) error {
	params := ResendActivationParams{
		Provider: ctx.Param("provider"),
		Digest:   ctx.Param("digest"),
	}

	if err := params.Validate(); err != nil {
		return a.ErrorHandler(ctx, ErrInvalidActivationInput(err))
	}

	res, err := a.Workflow.Resend(ctx.Context(), params.Digest, params.Provider)
	if err != nil {
		a.Logger.Error("activation resend provider=%s: %v", params.Provider, err)
		return a.ErrorHandler(ctx, err)
	}

	return a.respond(ctx, res)
}

// ResendNotice tells the user a new email was sent and where to ask for
// another one.
func (a *ActivationController) ResendNotice(ctx router.Context) error {
	params := ResendActivationParams{
		Provider: ctx.Query("provider"),
		Digest:   ctx.Query("digest"),
	}

	if err := params.Validate(); err != nil {
		return a.ErrorHandler(ctx, ErrInvalidActivationInput(err))
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message":    MessageResendSuccess,
		"resend_url": a.resendPath(params.Provider, params.Digest),
	})
}

func (a *ActivationController) respond(ctx router.Context, res *Result) error {
	if a.Debug {
		fmt.Println("======= ACTIVATION ======")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("=========================")
	}

	return a.Flash(ctx, res).Redirect(res.Redirect, router.StatusSeeOther)
}

func (a *ActivationController) resendPath(provider, digest string) string {
	path := strings.Replace(a.Routes.Resend, ":provider", provider, 1)
	return strings.Replace(path, ":digest", digest, 1)
}

func (a *ActivationController) sessionUserID(ctx router.Context) string {
	switch v := ctx.Locals(a.SessionKey).(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

func flashResult(ctx router.Context, res *Result) router.Context {
	vc := router.ViewContext{
		"system_message": res.Message,
		"outcome":        res.Outcome,
	}
	if res.MessageType == MessageAlert {
		return flash.WithError(ctx, vc)
	}
	return flash.WithSuccess(ctx, vc)
}

func propagateError(_ router.Context, err error) error {
	return err
}
