// Package config loads assistant settings from defaults, an optional YAML
// file named by PHARMASSIST_CONFIG, and the environment, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stupiduntilnot/pharmassist/internal/geo"
	"github.com/stupiduntilnot/pharmassist/internal/model"
)

// Backend names accepted by PHARMASSIST_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderDummy  = "dummy"
)

// Store names accepted by PHARMASSIST_STORE.
const (
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

// Notifier names accepted by PHARMASSIST_NOTIFY.
const (
	NotifyNone     = "none"
	NotifyTelegram = "telegram"
	NotifyDummy    = "dummy"
)

// Config holds configuration for the assistant.
type Config struct {
	Provider               string `yaml:"provider"`
	OpenAIAPIKey           string `yaml:"openai_api_key"`
	OpenAIChatCompURL      string `yaml:"openai_chat_completions_url"`
	OpenAIModel            string `yaml:"openai_model"`
	OllamaBaseURL          string `yaml:"ollama_base_url"`
	OllamaModel            string `yaml:"ollama_model"`
	GeminiAPIKey           string `yaml:"gemini_api_key"`
	GeminiModel            string `yaml:"gemini_model"`
	DummyScript            string `yaml:"dummy_script"`
	ProviderTimeoutSeconds int    `yaml:"provider_timeout_seconds"`

	Store             string `yaml:"store"`
	DBPath            string `yaml:"db_path"`
	DynamoTablePrefix string `yaml:"dynamo_table_prefix"`

	HistoryWindow int    `yaml:"history_window"`
	TravelMode    string `yaml:"travel_mode"`

	LogLevel       string `yaml:"log_level"`
	LogDevelopment bool   `yaml:"log_development"`

	Notify            string `yaml:"notify"`
	TelegramBotToken  string `yaml:"telegram_bot_token"`
	DummyNotifyScript string `yaml:"dummy_notify_script"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Provider:               ProviderOpenAI,
		OpenAIChatCompURL:      "https://api.openai.com/v1/chat/completions",
		OpenAIModel:            "gpt-4o-mini",
		OllamaBaseURL:          "http://localhost:11434",
		OllamaModel:            "llama3.2",
		GeminiModel:            "gemini-2.5-flash",
		DummyScript:            "echo",
		ProviderTimeoutSeconds: 60,
		Store:                  StoreSQLite,
		DBPath:                 "pharmassist.db",
		DynamoTablePrefix:      "pharmassist-",
		HistoryWindow:          12,
		TravelMode:             string(geo.Driving),
		LogLevel:               "info",
		Notify:                 NotifyNone,
		DummyNotifyScript:      "ok",
	}
}

// ProviderTimeout is the per-request timeout for HTTP backends.
func (c Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

// LoadAssistantConfig reads configuration and validates it, including the
// selected backend's credentials, which are reported as
// *model.ConfigurationError.
func LoadAssistantConfig() (Config, error) {
	cfg, err := Load()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.ValidateBackend(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads configuration and validates everything except backend
// credentials. Commands that never generate use it directly.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("PHARMASSIST_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg = Config{
		Provider:               strings.ToLower(envOrDefault("PHARMASSIST_PROVIDER", cfg.Provider)),
		OpenAIAPIKey:           envOrDefault("OPENAI_API_KEY", cfg.OpenAIAPIKey),
		OpenAIChatCompURL:      envOrDefault("OPENAI_CHAT_COMPLETIONS_URL", cfg.OpenAIChatCompURL),
		OpenAIModel:            envOrDefault("OPENAI_MODEL", cfg.OpenAIModel),
		OllamaBaseURL:          envOrDefault("OLLAMA_BASE_URL", cfg.OllamaBaseURL),
		OllamaModel:            envOrDefault("OLLAMA_MODEL", cfg.OllamaModel),
		GeminiAPIKey:           envOrDefault("GEMINI_API_KEY", cfg.GeminiAPIKey),
		GeminiModel:            envOrDefault("GEMINI_MODEL", cfg.GeminiModel),
		DummyScript:            envOrDefault("PHARMASSIST_DUMMY_SCRIPT", cfg.DummyScript),
		ProviderTimeoutSeconds: envIntOrDefault("PHARMASSIST_PROVIDER_TIMEOUT_SECONDS", cfg.ProviderTimeoutSeconds),
		Store:                  strings.ToLower(envOrDefault("PHARMASSIST_STORE", cfg.Store)),
		DBPath:                 envOrDefault("PHARMASSIST_DB_PATH", cfg.DBPath),
		DynamoTablePrefix:      envOrDefault("PHARMASSIST_DYNAMO_TABLE_PREFIX", cfg.DynamoTablePrefix),
		HistoryWindow:          envIntOrDefault("PHARMASSIST_HISTORY_WINDOW", cfg.HistoryWindow),
		TravelMode:             envOrDefault("PHARMASSIST_TRAVEL_MODE", cfg.TravelMode),
		LogLevel:               envOrDefault("PHARMASSIST_LOG_LEVEL", cfg.LogLevel),
		LogDevelopment:         envBoolOrDefault("PHARMASSIST_LOG_DEVELOPMENT", cfg.LogDevelopment),
		Notify:                 strings.ToLower(envOrDefault("PHARMASSIST_NOTIFY", cfg.Notify)),
		TelegramBotToken:       envOrDefault("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken),
		DummyNotifyScript:      envOrDefault("PHARMASSIST_DUMMY_NOTIFY_SCRIPT", cfg.DummyNotifyScript),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ValidateBackend checks that the selected backend is known and has its
// credentials.
func (c Config) ValidateBackend() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return &model.ConfigurationError{Backend: ProviderOpenAI, Setting: "OPENAI_API_KEY"}
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return &model.ConfigurationError{Backend: ProviderGemini, Setting: "GEMINI_API_KEY"}
		}
	case ProviderOllama, ProviderDummy:
	default:
		return &model.ConfigurationError{Backend: c.Provider, Setting: "PHARMASSIST_PROVIDER", Reason: "must be one of openai, ollama, gemini, dummy"}
	}
	return nil
}

// Validate checks that the store, notifier and limits are usable.
func (c Config) Validate() error {
	switch c.Notify {
	case NotifyTelegram:
		if c.TelegramBotToken == "" {
			return &model.ConfigurationError{Backend: NotifyTelegram, Setting: "TELEGRAM_BOT_TOKEN"}
		}
	case NotifyNone, NotifyDummy:
	default:
		return fmt.Errorf("PHARMASSIST_NOTIFY must be one of none, telegram, dummy; got %q", c.Notify)
	}

	switch c.Store {
	case StoreSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			return fmt.Errorf("PHARMASSIST_DB_PATH must not be empty")
		}
	case StoreDynamoDB:
	default:
		return fmt.Errorf("PHARMASSIST_STORE must be one of sqlite, dynamodb; got %q", c.Store)
	}

	if c.ProviderTimeoutSeconds <= 0 {
		return fmt.Errorf("PHARMASSIST_PROVIDER_TIMEOUT_SECONDS must be positive")
	}
	if c.HistoryWindow < 0 {
		return fmt.Errorf("PHARMASSIST_HISTORY_WINDOW must not be negative")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolOrDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "1" || strings.EqualFold(v, "true")
}
