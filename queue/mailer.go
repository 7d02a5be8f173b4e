package queue

import (
	"context"

	"github.com/goliatone/go-activation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/hibiken/asynq"
)

// Enqueuer is the subset of *asynq.Client used by Mailer.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Mailer implements activation.Mailer by enqueueing a delivery task.
// A nil error means the task was accepted by the queue.
type Mailer struct {
	client Enqueuer
	logger activation.Logger
}

var _ activation.Mailer = (*Mailer)(nil)

func NewMailer(client Enqueuer, logger activation.Logger) *Mailer {
	return &Mailer{client: client, logger: logger}
}

func (m *Mailer) SendActivationEmail(ctx context.Context, user *activation.User, link string) error {
	if user == nil {
		return goerrors.New("missing activation email recipient", goerrors.CategoryBadInput)
	}

	task, err := NewActivationEmailTask(ActivationEmailPayload{
		UserID:   user.ID,
		Email:    user.Email,
		Provider: user.Provider,
		Link:     link,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode activation email task")
	}

	info, err := m.client.EnqueueContext(ctx, task)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to enqueue activation email").
			WithMetadata(map[string]any{"provider": user.Provider})
	}

	if m.logger != nil && info != nil {
		m.logger.Debug("activation email queued: task=%s queue=%s", info.ID, info.Queue)
	}

	return nil
}
