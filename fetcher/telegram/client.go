package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	tdauth "github.com/gotd/td/telegram/auth"
)

// clientRunner runs with an authenticated client
type clientRunner func(ctx context.Context, client *telegram.Client) error

// runWithAuth creates a Telegram client, authenticates it if the stored
// session is missing or expired, and runs fn
func runWithAuth(ctx context.Context, configDir string, appID int, appHash string, phone string, fn clientRunner) error {
	sessionStorage := &session.FileStorage{
		Path: filepath.Join(configDir, "telegram-session.json"),
	}

	waiter := floodwait.NewWaiter().WithCallback(func(ctx context.Context, wait floodwait.FloodWait) {
		slog.Warn("telegram rate limit", "retry_after", wait.Duration)
	})

	// gotd logs through zap; keep it at warn so it does not drown the feed logs
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build telegram logger with %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	client := telegram.NewClient(appID, appHash, telegram.Options{
		SessionStorage: sessionStorage,
		Logger:         logger,
		Middlewares:    []telegram.Middleware{waiter},
	})

	flow := tdauth.NewFlow(newTerminalAuth(phone), tdauth.SendCodeOptions{})

	return waiter.Run(ctx, func(ctx context.Context) error {
		return client.Run(ctx, func(ctx context.Context) error {
			if err := client.Auth().IfNecessary(ctx, flow); err != nil {
				return fmt.Errorf("authentication failed: %w", err)
			}
			return fn(ctx, client)
		})
	})
}
