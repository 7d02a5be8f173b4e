package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-activation"
	"github.com/goliatone/go-activation/activitymap"
	"github.com/goliatone/go-activation/config"
	"github.com/goliatone/go-activation/queue"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	mflash "github.com/goliatone/go-router/middleware/flash"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

type App struct {
	config   *config.Config
	logger   *slog.Logger
	db       *bun.DB
	repo     activation.RepositoryManager
	mailer   activation.Mailer
	client   *asynq.Client
	worker   *asynq.Server
	workflow *activation.Workflow
	srv      router.Server[*fiber.App]
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	if cfg.Server.IsDevelopment() {
		fmt.Println("============")
		fmt.Println(print.MaybePrettyJSON(cfg.Activation.BaseConfig))
		fmt.Println("============")
	}

	app := &App{
		config: cfg,
		logger: logger,
	}

	ctx := context.Background()

	if err := WithPersistence(ctx, app); err != nil {
		logger.Error("failed to set up persistence", "error", err)
		os.Exit(1)
	}

	if err := WithMailer(ctx, app); err != nil {
		logger.Error("failed to set up mailer", "error", err)
		os.Exit(1)
	}

	WithWorkflow(app)

	if err := WithHTTPServer(ctx, app); err != nil {
		logger.Error("failed to set up http server", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := app.srv.Serve(cfg.Server.Addr()); err != nil {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("activation service started", "addr", cfg.Server.Addr())

	sig := WaitExitSignal()
	logger.Info("shutting down", "signal", sig.String())

	app.Close()
}

// WithMailer delivers activation emails through the asynq queue, or in
// process when WORKER_INLINE is set.
func WithMailer(_ context.Context, app *App) error {
	handler := queue.NewHandler(queue.LogSender{Logger: app.logger}, app.logger)

	if app.config.Worker.Inline {
		app.mailer = activation.MailerFunc(func(ctx context.Context, user *activation.User, link string) error {
			task, err := queue.NewActivationEmailTask(queue.ActivationEmailPayload{
				UserID:   user.ID,
				Email:    user.Email,
				Provider: user.Provider,
				Link:     link,
			})
			if err != nil {
				return err
			}
			return handler.HandleActivationEmail(ctx, task)
		})
		return nil
	}

	app.client = queue.NewClient(&app.config.Redis)
	app.mailer = queue.NewMailer(app.client, slogAdapter{app.logger.With("component", "mailer")})

	app.worker = queue.NewServer(&app.config.Redis, app.config.Worker.Concurrency)
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	return app.worker.Start(mux)
}

func WithWorkflow(app *App) {
	sink := activitymap.Sink(func(_ context.Context, rec activitymap.Record) error {
		app.logger.Info("activity",
			"verb", rec.Verb,
			"actor", rec.ActorID,
			"object", rec.ObjectID,
			"tenant", rec.Tenant,
			"metadata", rec.Metadata,
		)
		return nil
	})

	app.workflow = activation.NewWorkflow(app.repo,
		activation.WithConfig(app.config.Activation),
		activation.WithMappingSource(app.config.Activation),
		activation.WithMailer(app.mailer),
		activation.WithActivitySink(sink),
		activation.WithLogger(slogAdapter{app.logger.With("component", "activation")}),
	)
}

func WithHTTPServer(_ context.Context, app *App) error {
	app.srv = router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: app.config.Server.IsDevelopment(),
			StrictRouting:     false,
		}))
	})

	app.srv.Router().Use(mflash.New(mflash.ConfigDefault))

	activation.RegisterActivationRoutes(app.srv.Router(),
		activation.WithControllerWorkflow(app.workflow),
		activation.WithControllerLogger(slogAdapter{app.logger.With("component", "http")}),
		activation.WithControllerDebug(app.config.Server.IsDevelopment()),
		activation.WithControllerErrorHandler(errorResponder),
	)

	return nil
}

func (a *App) Close() {
	if a.worker != nil {
		a.worker.Shutdown()
	}
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Error("failed to close queue client", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", "error", err)
		}
	}
}

func errorResponder(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return err
	}

	code := richErr.Code
	if code == 0 {
		code = fiber.StatusInternalServerError
	}

	return ctx.JSON(code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
