package activation

import (
	"context"
	"fmt"
	"time"
)

// Outcome is the non error result of a workflow call
type Outcome = string

const (
	OutcomeAlreadyVerified Outcome = "already_verified"
	OutcomePendingApproval Outcome = "pending_approval"
	OutcomeActivated       Outcome = "activated"
	OutcomeResendSuccess   Outcome = "resend_success"
)

// MessageType is the severity of the message shown to the user
type MessageType = string

const (
	MessageSuccess MessageType = "success"
	MessageAlert   MessageType = "alert"
)

const (
	MessageActivated       = "Your account has been activated. Please sign in."
	MessagePendingApproval = "Your email has been verified. Your account is waiting for approval."
	MessageAlreadyVerified = "Your account has already been verified."
	MessageResendSuccess   = "A new activation email has been sent."
)

// Result is returned for every call that is not an error.
type Result struct {
	Outcome     Outcome     `json:"outcome"`
	MessageType MessageType `json:"message_type"`
	Message     string      `json:"message"`
	Redirect    string      `json:"redirect"`
	// Digest is the rotated digest after a resend, callers can use it to
	// offer another resend.
	Digest string `json:"-"`
}

type dependencies struct {
	repo     RepositoryManager
	codec    TokenCodec
	resolver RoleResolver
	mappings MappingSource
	mailer   Mailer
	config   Config
	landing  LandingResolver
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

func (d dependencies) result(outcome Outcome) *Result {
	switch outcome {
	case OutcomeAlreadyVerified:
		return &Result{
			Outcome:     outcome,
			MessageType: MessageAlert,
			Message:     MessageAlreadyVerified,
			Redirect:    d.config.GetSignInRoute(),
		}
	case OutcomePendingApproval:
		return &Result{
			Outcome:     outcome,
			MessageType: MessageSuccess,
			Message:     MessagePendingApproval,
			Redirect:    d.config.GetPendingRoute(),
		}
	case OutcomeResendSuccess:
		return &Result{
			Outcome:     outcome,
			MessageType: MessageSuccess,
			Message:     MessageResendSuccess,
			Redirect:    d.config.GetLandingRoute(),
		}
	case OutcomeActivated:
		return &Result{
			Outcome:     OutcomeActivated,
			MessageType: MessageSuccess,
			Message:     MessageActivated,
			Redirect:    d.config.GetSignInRoute(),
		}
	default:
		panic(fmt.Sprintf("unknown activation outcome %q", outcome))
	}
}

func (d dependencies) record(ctx context.Context, eventType ActivityEventType, user *User, metadata map[string]any) {
	if user == nil {
		return
	}
	event := newUserActivity(eventType, user, d.now())
	event.Metadata = metadata
	recordActivity(ctx, d.activity, d.logger, event)
}

// Workflow is the entry point for activation operations.
type Workflow struct {
	deps dependencies
}

type WorkflowOption func(*Workflow)

// WithConfig sets the configuration. The default token codec and role
// resolver are derived from it.
func WithConfig(cfg Config) WorkflowOption {
	return func(w *Workflow) {
		if cfg != nil {
			w.deps.config = cfg
		}
	}
}

// WithTokenCodec overrides the codec used for issuance and verification
func WithTokenCodec(codec TokenCodec) WorkflowOption {
	return func(w *Workflow) {
		w.deps.codec = codec
	}
}

// WithRoleResolver overrides the role resolver
func WithRoleResolver(resolver RoleResolver) WorkflowOption {
	return func(w *Workflow) {
		w.deps.resolver = resolver
	}
}

// WithMappingSource sets where per provider role mappings are read from
func WithMappingSource(source MappingSource) WorkflowOption {
	return func(w *Workflow) {
		if source != nil {
			w.deps.mappings = source
		}
	}
}

// WithMailer sets the activation email collaborator
func WithMailer(mailer Mailer) WorkflowOption {
	return func(w *Workflow) {
		if mailer != nil {
			w.deps.mailer = mailer
		}
	}
}

// WithLandingResolver overrides the landing redirect logic
func WithLandingResolver(landing LandingResolver) WorkflowOption {
	return func(w *Workflow) {
		if landing != nil {
			w.deps.landing = landing
		}
	}
}

// WithActivitySink sets the sink used to emit activation events.
func WithActivitySink(sink ActivitySink) WorkflowOption {
	return func(w *Workflow) {
		w.deps.activity = normalizeActivitySink(sink)
	}
}

// WithLogger overrides the logger used by the workflow.
func WithLogger(logger Logger) WorkflowOption {
	return func(w *Workflow) {
		if logger != nil {
			w.deps.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) WorkflowOption {
	return func(w *Workflow) {
		if clock != nil {
			w.deps.now = clock
		}
	}
}

// NewWorkflow returns a workflow backed by the given repositories.
func NewWorkflow(repo RepositoryManager, opts ...WorkflowOption) *Workflow {
	if repo == nil {
		panic("Missing RepositoryManager in activation workflow...")
	}

	w := &Workflow{
		deps: dependencies{
			repo:     repo,
			config:   DefaultConfig(),
			mappings: StaticMappings{},
			mailer:   printMailer{},
			activity: noopActivitySink{},
			logger:   defLogger{},
			now:      time.Now,
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	if w.deps.codec == nil {
		w.deps.codec = NewTokenCodec(w.deps.config.GetDigestKey())
	}

	if w.deps.resolver == nil {
		w.deps.resolver = NewRoleResolver(
			repo.Roles(),
			WithRoleResolverCaseInsensitive(w.deps.config.GetRoleMappingCaseInsensitive()),
		)
	}

	if w.deps.landing == nil {
		w.deps.landing = defaultLanding{cfg: w.deps.config}
	}

	return w
}

// Codec returns the token codec shared by issuance and verification
func (w *Workflow) Codec() TokenCodec {
	return w.deps.codec
}

// Verify consumes an activation token for the provider.
func (w *Workflow) Verify(ctx context.Context, rawToken, provider string) (*Result, error) {
	var res *Result
	err := w.VerifyHandler().Execute(ctx, VerifyAccountMessage{
		Token:    rawToken,
		Provider: provider,
		OnResponse: func(r *Result) {
			res = r
		},
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Resend sends a fresh activation email to an unverified user.
func (w *Workflow) Resend(ctx context.Context, digest, provider string) (*Result, error) {
	var res *Result
	err := w.ResendHandler().Execute(ctx, ResendActivationMessage{
		Digest:   digest,
		Provider: provider,
		OnResponse: func(r *Result) {
			res = r
		},
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Register creates an account and issues its first activation token.
func (w *Workflow) Register(ctx context.Context, msg RegisterAccountMessage) (*RegisterAccountResponse, error) {
	var res *RegisterAccountResponse
	onResponse := msg.OnResponse
	msg.OnResponse = func(r *RegisterAccountResponse) {
		res = r
		if onResponse != nil {
			onResponse(r)
		}
	}

	if err := w.RegisterHandler().Execute(ctx, msg); err != nil {
		return nil, err
	}
	return res, nil
}

// ShowLanding returns where a visitor of the activation landing page goes.
func (w *Workflow) ShowLanding(ctx context.Context, userID string) string {
	return w.deps.landing.Landing(ctx, userID)
}

func (w *Workflow) VerifyHandler() *VerifyAccountHandler {
	return &VerifyAccountHandler{deps: w.deps}
}

func (w *Workflow) ResendHandler() *ResendActivationHandler {
	return &ResendActivationHandler{deps: w.deps}
}

func (w *Workflow) RegisterHandler() *RegisterAccountHandler {
	return &RegisterAccountHandler{deps: w.deps}
}
