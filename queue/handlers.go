package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/hibiken/asynq"
)

// Message is an outbound activation email.
type Message struct {
	To       string
	Provider string
	Subject  string
	Body     string
}

// Sender delivers a rendered message. SMTP or provider APIs plug in here.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogSender writes messages to the logger instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info("activation email",
		"to", msg.To,
		"provider", msg.Provider,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}

type Handler struct {
	sender Sender
	logger *slog.Logger
}

func NewHandler(sender Sender, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = LogSender{Logger: logger}
	}
	return &Handler{
		sender: sender,
		logger: logger,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeActivationEmail, h.HandleActivationEmail)
}

func (h *Handler) HandleActivationEmail(ctx context.Context, t *asynq.Task) error {
	var payload ActivationEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := validation.Validate(payload.Email, validation.Required, is.Email); err != nil {
		return fmt.Errorf("invalid recipient %q: %v: %w", payload.Email, err, asynq.SkipRetry)
	}

	if payload.Link == "" {
		return fmt.Errorf("missing activation link: %w", asynq.SkipRetry)
	}

	msg := RenderActivationEmail(payload)
	if err := h.sender.Send(ctx, msg); err != nil {
		h.logger.Error("activation email delivery failed",
			"user_id", payload.UserID,
			"provider", payload.Provider,
			"error", err,
		)
		return fmt.Errorf("send activation email: %w", err)
	}

	h.logger.Info("activation email delivered",
		"user_id", payload.UserID,
		"provider", payload.Provider,
	)
	return nil
}

// RenderActivationEmail builds the message for payload
func RenderActivationEmail(payload ActivationEmailPayload) Message {
	return Message{
		To:       payload.Email,
		Provider: payload.Provider,
		Subject:  "Activate your account",
		Body: "Welcome!\n\n" +
			"Follow the link below to activate your account:\n\n" +
			payload.Link + "\n\n" +
			"If you did not sign up you can ignore this email.\n",
	}
}
