package gateway

import (
	"context"
	"fmt"

	"github.com/stupiduntilnot/pharmassist/internal/config"
	"github.com/stupiduntilnot/pharmassist/internal/dummy"
	"github.com/stupiduntilnot/pharmassist/internal/gemini"
	"github.com/stupiduntilnot/pharmassist/internal/model"
	"github.com/stupiduntilnot/pharmassist/internal/ollama"
	"github.com/stupiduntilnot/pharmassist/internal/openai"
)

// NewBackend constructs the backend named by cfg.Provider. Missing
// credentials are reported as *model.ConfigurationError.
func NewBackend(ctx context.Context, cfg config.Config) (model.Backend, error) {
	timeout := cfg.ProviderTimeout()
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIChatCompURL, cfg.OpenAIModel, timeout)
	case config.ProviderOllama:
		return ollama.NewClient(cfg.OllamaBaseURL, cfg.OllamaModel, timeout), nil
	case config.ProviderGemini:
		return gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, timeout)
	case config.ProviderDummy:
		return dummy.NewBackend(cfg.DummyScript)
	default:
		return nil, &model.ConfigurationError{
			Backend: cfg.Provider,
			Setting: "PHARMASSIST_PROVIDER",
			Reason:  fmt.Sprintf("%q is not supported", cfg.Provider),
		}
	}
}
