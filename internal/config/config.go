package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Bus       BusConfig       `mapstructure:"bus" validate:"required"`
	Stream    StreamConfig    `mapstructure:"stream" validate:"required"`
	Feed      FeedConfig      `mapstructure:"feed" validate:"required"`
	Actions   ActionsConfig   `mapstructure:"actions" validate:"required"`
	Task      TaskConfig      `mapstructure:"task" validate:"required"`
	Slack     SlackConfig     `mapstructure:"slack"`
	LLM       LLMConfig       `mapstructure:"llm"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	BasePath string `mapstructure:"base_path" validate:"required,startswith=/"`
}

// DatabaseConfig selects the persistence backend. Driver "none" keeps all
// state in memory.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=none postgres sqlite"`
	URL    string `mapstructure:"url" validate:"required_unless=Driver none"`
}

// AuthConfig contains bearer token settings. An empty secret disables
// authentication.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"omitempty,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0,lte=44640"`
}

// SchedulerConfig controls the parking wake loop.
type SchedulerConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval" validate:"required,gt=0"`
}

// BusConfig controls the event bus.
type BusConfig struct {
	BufferSize int `mapstructure:"buffer_size" validate:"required,gt=0"`
}

// StreamConfig controls live subscriber streams.
type StreamConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"required,gt=0"`
}

// FeedConfig controls feed composition.
type FeedConfig struct {
	DefaultLimit int `mapstructure:"default_limit" validate:"required,gt=0"`
}

// ActionsConfig holds card action settings.
type ActionsConfig struct {
	// BreakDelay is how long respond_at_break parks a card.
	BreakDelay time.Duration `mapstructure:"break_delay" validate:"required,gt=0"`
}

// TaskConfig sizes the background persistence runner.
type TaskConfig struct {
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize   int `mapstructure:"queue_size" validate:"required,gt=0"`
}

// SlackConfig holds Slack event settings. The special secret "dev-skip"
// disables signature checks.
type SlackConfig struct {
	SigningSecret string `mapstructure:"signing_secret"`
}

// LLMConfig contains all LLM integration related settings. The planner is
// disabled when no API key is set.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name" validate:"required"`
	// MaxRetries bounds retries of transient planner failures.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	// RetryDelaySeconds is the base of the exponential backoff.
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"gte=1"`
}
