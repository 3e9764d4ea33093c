package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	LLM       LLMConfig       `mapstructure:"llm" validate:"required"`
	Telegram  TelegramConfig  `mapstructure:"telegram" validate:"required"`
	Ledger    LedgerConfig    `mapstructure:"ledger" validate:"required"`
	Capacity  CapacityConfig  `mapstructure:"capacity" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Staff     StaffConfig     `mapstructure:"staff"`
	Worker    WorkerConfig    `mapstructure:"worker" validate:"required"`
}

// ServerConfig contains settings for the admin HTTP server and logging.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// AllowedOrigins lists origins accepted by the admin API CORS policy.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// AuthConfig contains the signing secret for admin API bearer tokens.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// LLMConfig contains the task extraction model settings.
type LLMConfig struct {
	Provider     string  `mapstructure:"provider" validate:"required,oneof=gemini openai"`
	GeminiAPIKey string  `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	OpenAIAPIKey string  `mapstructure:"openai_api_key" validate:"required_if=Provider openai"`
	OpenAIURL    string  `mapstructure:"openai_url" validate:"omitempty,url"`
	ModelName    string  `mapstructure:"model_name" validate:"required"`
	Temperature  float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`

	// PromptTemplatePath overrides the embedded extraction prompt when set.
	PromptTemplatePath string `mapstructure:"prompt_template_path"`

	MaxAttempts      int     `mapstructure:"max_attempts" validate:"required,gte=1,lte=10"`
	BaseDelaySeconds float64 `mapstructure:"base_delay_seconds" validate:"gte=0"`
	MaxJitterSeconds float64 `mapstructure:"max_jitter_seconds" validate:"gte=0"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds" validate:"required,gt=0"`
}

// TelegramConfig contains the chat transport settings.
type TelegramConfig struct {
	BotToken           string `mapstructure:"bot_token" validate:"required"`
	APIURL             string `mapstructure:"api_url" validate:"required,url"`
	PollTimeoutSeconds int    `mapstructure:"poll_timeout_seconds" validate:"gte=0,lte=50"`
}

// LedgerConfig contains the task ledger settings.
type LedgerConfig struct {
	Backend       string `mapstructure:"backend" validate:"required,oneof=sheets memory"`
	SpreadsheetID string `mapstructure:"spreadsheet_id" validate:"required_if=Backend sheets"`
	WorksheetName string `mapstructure:"worksheet_name" validate:"required"`
	// Credentials is either a path to a service account JSON file or the JSON itself.
	Credentials    string            `mapstructure:"credentials" validate:"required_if=Backend sheets"`
	DefaultProject string            `mapstructure:"default_project"`
	ChatProjects   map[string]string `mapstructure:"chat_projects"`
}

// CapacityConfig bounds the number of important-tier tasks in the ledger.
type CapacityConfig struct {
	ImportantCap int `mapstructure:"important_cap" validate:"required,gt=0"`
	// RecountSchedule is a cron spec for the corrective recount; empty disables it.
	RecountSchedule string `mapstructure:"recount_schedule"`
}

// SchedulerConfig controls the hourly extraction pass.
type SchedulerConfig struct {
	Timezone       string `mapstructure:"timezone" validate:"required"`
	HourlySchedule string `mapstructure:"hourly_schedule" validate:"required"`
	WindowMinutes  int    `mapstructure:"window_minutes" validate:"required,gt=0"`
}

// StaffConfig is the static staff allow-list. The staff_members table extends it.
type StaffConfig struct {
	Usernames []string `mapstructure:"usernames"`
	UserIDs   []int64  `mapstructure:"user_ids"`
}

// WorkerConfig sizes the pool that runs operator-triggered jobs.
type WorkerConfig struct {
	Count     int `mapstructure:"count" validate:"required,gt=0"`
	QueueSize int `mapstructure:"queue_size" validate:"required,gt=0"`
}
