package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stupiduntilnot/pharmassist/internal/model"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PHARMASSIST_CONFIG", "PHARMASSIST_PROVIDER", "OPENAI_API_KEY", "GEMINI_API_KEY",
		"PHARMASSIST_STORE", "PHARMASSIST_NOTIFY", "TELEGRAM_BOT_TOKEN",
		"PHARMASSIST_HISTORY_WINDOW", "PHARMASSIST_PROVIDER_TIMEOUT_SECONDS", "PHARMASSIST_DB_PATH",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAssistantConfig_MissingOpenAIKey(t *testing.T) {
	clearEnv(t)
	_, err := LoadAssistantConfig()
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Setting != "OPENAI_API_KEY" {
		t.Fatalf("unexpected setting: %s", cfgErr.Setting)
	}
}

func TestLoadAssistantConfig_MissingGeminiKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("PHARMASSIST_PROVIDER", "Gemini")
	_, err := LoadAssistantConfig()
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Setting != "GEMINI_API_KEY" {
		t.Fatalf("expected GEMINI_API_KEY configuration error, got %v", err)
	}
}

func TestLoadAssistantConfig_UnknownProvider(t *testing.T) {
	clearEnv(t)
	t.Setenv("PHARMASSIST_PROVIDER", "mystery")
	_, err := LoadAssistantConfig()
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestLoadAssistantConfig_OllamaNeedsNoCredentials(t *testing.T) {
	clearEnv(t)
	t.Setenv("PHARMASSIST_PROVIDER", "ollama")
	cfg, err := LoadAssistantConfig()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.OllamaBaseURL != "http://localhost:11434" || cfg.HistoryWindow != 12 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ProviderTimeout().Seconds() != 60 {
		t.Fatalf("unexpected timeout: %v", cfg.ProviderTimeout())
	}
}

func TestLoadAssistantConfig_TelegramNeedsToken(t *testing.T) {
	clearEnv(t)
	t.Setenv("PHARMASSIST_PROVIDER", "dummy")
	t.Setenv("PHARMASSIST_NOTIFY", "telegram")
	_, err := LoadAssistantConfig()
	if err == nil || !strings.Contains(err.Error(), "TELEGRAM_BOT_TOKEN") {
		t.Fatalf("expected telegram token error, got %v", err)
	}
}

func TestLoadAssistantConfig_ValidatesLimits(t *testing.T) {
	clearEnv(t)
	t.Setenv("PHARMASSIST_PROVIDER", "dummy")
	t.Setenv("PHARMASSIST_PROVIDER_TIMEOUT_SECONDS", "0")
	_, err := LoadAssistantConfig()
	if err == nil || !strings.Contains(err.Error(), "PHARMASSIST_PROVIDER_TIMEOUT_SECONDS") {
		t.Fatalf("unexpected err: %v", err)
	}

	t.Setenv("PHARMASSIST_PROVIDER_TIMEOUT_SECONDS", "")
	t.Setenv("PHARMASSIST_STORE", "postgres")
	_, err = LoadAssistantConfig()
	if err == nil || !strings.Contains(err.Error(), "PHARMASSIST_STORE") {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestLoadAssistantConfig_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "pharmassist.yaml")
	yaml := "provider: gemini\ngemini_api_key: from-file\ngemini_model: gemini-pro\nhistory_window: 4\nstore: dynamodb\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PHARMASSIST_CONFIG", path)
	t.Setenv("PHARMASSIST_HISTORY_WINDOW", "6")

	cfg, err := LoadAssistantConfig()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Provider != ProviderGemini || cfg.GeminiAPIKey != "from-file" || cfg.GeminiModel != "gemini-pro" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Store != StoreDynamoDB {
		t.Fatalf("unexpected store: %s", cfg.Store)
	}
	if cfg.HistoryWindow != 6 {
		t.Fatalf("env should override file, got %d", cfg.HistoryWindow)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Fatalf("defaults should survive the overlay, got %s", cfg.OpenAIModel)
	}
}

func TestLoadAssistantConfig_BadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PHARMASSIST_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadAssistantConfig(); err == nil {
		t.Fatal("expected missing file error")
	}
}

func TestLoad_SkipsBackendCredentials(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if cfg.Provider != ProviderOpenAI {
		t.Fatalf("unexpected provider: %s", cfg.Provider)
	}
	var cfgErr *model.ConfigurationError
	if err := cfg.ValidateBackend(); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}
