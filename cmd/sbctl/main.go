package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sitebooks/sitebooks/cmd/sbctl/cli"
	"github.com/sitebooks/sitebooks/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	root := cli.NewRootCommand(cli.Options{
		Open: func(ctx context.Context) (*app.Container, error) {
			return app.NewContainer(ctx, cfg, logger)
		},
		RedisAddr: cfg.RedisAddr,
		Stdout:    os.Stdout,
	})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "sbctl:", err)
		os.Exit(1)
	}
}
