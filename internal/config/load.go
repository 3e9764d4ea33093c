package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "TASKTRACKER"

// envKeys lists keys without defaults that must still be readable from the environment.
var envKeys = []string{
	"database.url",
	"auth.jwt_secret",
	"llm.gemini_api_key",
	"llm.openai_api_key",
	"llm.prompt_template_path",
	"telegram.bot_token",
	"ledger.spreadsheet_id",
	"ledger.credentials",
	"ledger.default_project",
	"capacity.recount_schedule",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.openai_url", "https://api.openai.com/v1")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_attempts", 5)
	v.SetDefault("llm.base_delay_seconds", 1.5)
	v.SetDefault("llm.max_jitter_seconds", 0.5)
	v.SetDefault("llm.timeout_seconds", 60)

	v.SetDefault("telegram.api_url", "https://api.telegram.org")
	v.SetDefault("telegram.poll_timeout_seconds", 30)

	v.SetDefault("ledger.backend", "sheets")
	v.SetDefault("ledger.worksheet_name", "Tasks")

	v.SetDefault("capacity.important_cap", 10)

	v.SetDefault("scheduler.timezone", "Europe/Moscow")
	v.SetDefault("scheduler.hourly_schedule", "0 * * * *")
	v.SetDefault("scheduler.window_minutes", 60)

	v.SetDefault("staff.usernames", []string{})
	v.SetDefault("staff.user_ids", []int64{})

	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.queue_size", 100)
}

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory.
// Environment variables take precedence over values from config files.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file path. An empty path searches
// the working directory for config.yaml and tolerates its absence.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
