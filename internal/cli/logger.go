package cli

import (
	"log/slog"

	"github.com/tplearn/tplearn-bot/config"
	"github.com/tplearn/tplearn-bot/pkg/logger"
)

// setupLogger uses JSON in production and readable text otherwise.
func setupLogger(cfg *config.Config) *slog.Logger {
	l := logger.New(logger.Options{
		Level: cfg.SlogLevel(),
		JSON:  cfg.IsProduction(),
	})
	slog.SetDefault(l)
	return l
}
