// Package llm provides a uniform text-generation interface over the two
// supported backends: a local Ollama server and Azure OpenAI.
package llm

import (
	"context"
	"fmt"

	"ragchat/internal/apperr"
	"ragchat/internal/config"
)

// Generator produces text for a prompt. Both variants expose the same
// contract so the chatbot stays provider-agnostic; the variant is
// selected once at startup from Settings.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
	Name() string
}

// New selects the generator variant for the configured provider.
func New(cfg *config.Settings) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		return NewOllama(cfg.OllamaURL, cfg.Model), nil
	case config.ProviderAzure:
		return NewAzure(cfg.Endpoint, cfg.Deployment, cfg.APIVersion, cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", apperr.ErrConfig, cfg.Provider)
	}
}
