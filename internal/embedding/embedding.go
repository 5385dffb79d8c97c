package embedding

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Embedder converts text into a numeric vector. The same embedder must
// be used at ingest and at query time; mixing embedding spaces degrades
// relevance silently, so the vector store pins an identity fingerprint.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// NewOllamaEmbedder creates an embedder backed by the Ollama server.
func NewOllamaEmbedder(baseURL, model string) (*embeddings.EmbedderImpl, error) {
	log.Debug().Str("base_url", baseURL).Str("embedding_model", model).Msg("Initializing embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(baseURL),
		ollama.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding LLM: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// Fingerprint identifies an embedding space: provider and model name.
func Fingerprint(provider, model string) string {
	return provider + "/" + model
}

// ChromemFunc bridges an Embedder into the chromem-go embedding
// function signature.
func ChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.EmbedQuery(ctx, text)
	}
}
