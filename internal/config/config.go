package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server Server `mapstructure:"server" validate:"required"`
	Redis  Redis  `mapstructure:"redis"  validate:"required"`
	Queue  Queue  `mapstructure:"queue"`
	Engine Engine `mapstructure:"engine" validate:"required"`
	Notify Notify `mapstructure:"notify"`
}

// Server contains all HTTP server related settings.
type Server struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// Redis contains the durable store connection settings.
type Redis struct {
	URL string `mapstructure:"url" validate:"required"`
}

// Queue contains the queue's intervals and timeout constants. Zero values
// fall back to the queue package defaults.
type Queue struct {
	IdleInterval     time.Duration `mapstructure:"idle_interval"`
	ErrorBackoff     time.Duration `mapstructure:"error_backoff"`
	ReapInterval     time.Duration `mapstructure:"reap_interval"`
	StaleAfter       time.Duration `mapstructure:"stale_after"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
	BaseTimeout      time.Duration `mapstructure:"base_timeout"`
	MaxTimeout       time.Duration `mapstructure:"max_timeout"`
}

// Engine contains the collaborator endpoints.
type Engine struct {
	TranscriberURL string `mapstructure:"transcriber_url" validate:"required,url"`
	LLMBaseURL     string `mapstructure:"llm_base_url"    validate:"required,url"`
	LLMModel       string `mapstructure:"llm_model"       validate:"required"`
	LLMAPIKey      string `mapstructure:"llm_api_key"`
}

// Notify contains the external notification settings. An empty webhook
// URL disables notifications.
type Notify struct {
	WebhookURL string `mapstructure:"webhook_url" validate:"omitempty,url"`
}
