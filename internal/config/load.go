package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from an optional config.yaml in the working
// directory and from environment variables with the VOXQUEUE_ prefix.
// Environment variables take precedence over file values. Returns a
// validated Config or an error describing what is missing.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("engine.llm_model", "llama-3-8b")

	// Optional config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables
	v.SetEnvPrefix("VOXQUEUE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind critical environment variables
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"server.port", "VOXQUEUE_SERVER_PORT"},
		{"server.log_level", "VOXQUEUE_SERVER_LOG_LEVEL"},
		{"redis.url", "VOXQUEUE_REDIS_URL"},
		{"engine.transcriber_url", "VOXQUEUE_ENGINE_TRANSCRIBER_URL"},
		{"engine.llm_base_url", "VOXQUEUE_ENGINE_LLM_BASE_URL"},
		{"engine.llm_model", "VOXQUEUE_ENGINE_LLM_MODEL"},
		{"engine.llm_api_key", "VOXQUEUE_ENGINE_LLM_API_KEY"},
		{"notify.webhook_url", "VOXQUEUE_NOTIFY_WEBHOOK_URL"},
	}

	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
