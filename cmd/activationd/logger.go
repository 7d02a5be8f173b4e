package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/goliatone/go-activation"
)

func newLogger(env string) *slog.Logger {
	if env == "development" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// slogAdapter exposes a slog.Logger through the printf style
// activation.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

var _ activation.Logger = slogAdapter{}

func (s slogAdapter) Debug(format string, args ...any) {
	s.l.Debug(fmt.Sprintf(format, args...))
}

func (s slogAdapter) Info(format string, args ...any) {
	s.l.Info(fmt.Sprintf(format, args...))
}

func (s slogAdapter) Error(format string, args ...any) {
	s.l.Error(fmt.Sprintf(format, args...))
}
