package sentiment

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/hypetrack/internal/config"
	"github.com/TobiSchelling/hypetrack/internal/llm"
)

// NewBackendFactory returns a factory for the configured provider:
// huggingface, or one of the chat providers ollama, openai and gemini.
func NewBackendFactory(cfg config.Classifier, logger *zap.Logger) BackendFactory {
	return func(ctx context.Context) (Backend, error) {
		switch p := strings.ToLower(cfg.Provider); p {
		case "", "huggingface":
			return NewHuggingFace(cfg.URL, cfg.Model, cfg.APIKeyEnv, cfg.Timeout), nil
		case "ollama", "openai", "gemini":
			openAIModel := cfg.OpenAIModel
			if p == "openai" && cfg.Model != "" {
				openAIModel = cfg.Model
			}
			provider, err := llm.CreateProvider(ctx, llm.Options{
				Provider:    p,
				Model:       cfg.Model,
				OllamaURL:   cfg.OllamaURL,
				OpenAIModel: openAIModel,
				APIKeyEnv:   cfg.APIKeyEnv,
				Timeout:     cfg.Timeout,
			}, logger)
			if err != nil {
				return nil, err
			}
			return NewPrompted(provider), nil
		default:
			return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
		}
	}
}

// New builds a service from the classifier config.
func New(cfg config.Classifier, logger *zap.Logger) *Service {
	return NewService(NewBackendFactory(cfg, logger), cfg.MaxInputRunes, logger)
}
