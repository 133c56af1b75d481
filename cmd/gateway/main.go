package main

import (
	"log/slog"
	"os"

	"agropay/config"
	"agropay/internal/app"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", "error", err)
		os.Exit(1)
	}

	if err := app.Run(cfg); err != nil {
		slog.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
}
