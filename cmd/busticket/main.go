package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/kirinyoku/tix-bus/docs"
	"github.com/kirinyoku/tix-bus/internal/app"
	"github.com/kirinyoku/tix-bus/internal/config"
)

// @title                      Bus Ticket API
// @version                    1.0
// @description                Seat booking, ticket lifecycle and schedule administration for intercity bus operators.
// @host                       localhost:8080
// @BasePath                   /
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Type "Bearer" followed by a space and the access token.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		logger.Error("application finished with error", "error", err)
		os.Exit(1)
	}
}
