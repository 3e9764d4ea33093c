package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/tasktracker/internal/config"
	"github.com/phrazzld/tasktracker/internal/platform/logger"
)

// bootstrap loads the configuration and installs the default logger.
func bootstrap(opts *rootOptions) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFrom(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"llm_provider", cfg.LLM.Provider,
		"ledger_backend", cfg.Ledger.Backend,
		"important_cap", cfg.Capacity.ImportantCap)
	log.Debug("secrets present",
		"jwt_secret", cfg.Auth.JWTSecret != "",
		"bot_token", cfg.Telegram.BotToken != "")
	return cfg, log, nil
}
