package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ragchat/internal/apperr"
	"ragchat/internal/chatbot"
	"ragchat/internal/config"
	"ragchat/internal/embedding"
	"ragchat/internal/helper"
	"ragchat/internal/llm"
	"ragchat/internal/parser"
	"ragchat/internal/server"
	"ragchat/internal/vectorstore"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Configuration validation failed")
	}

	printConfig(cfg)

	if cfg.Check {
		log.Info().Msg("Configuration check complete")
		return
	}

	run(context.Background(), cfg)
}

func printConfig(cfg *config.Settings) {
	event := log.Info().
		Str("provider", cfg.Provider).
		Float64("temperature", cfg.Temperature).
		Int("port", cfg.Port)
	if cfg.Provider == config.ProviderAzure {
		event = event.Str("deployment", cfg.Deployment).Str("endpoint", cfg.Endpoint).Str("api_version", cfg.APIVersion)
	} else {
		event = event.Str("model", cfg.Model).Str("ollama_url", cfg.OllamaURL)
	}
	event.Msg("Loaded config")
}

func run(ctx context.Context, cfg *config.Settings) {
	if err := helper.CreateFolder(cfg.Pipeline.UploadDir); err != nil {
		log.Fatal().Err(err).Msg("Error creating upload folder")
	}

	embedder, err := embedding.NewOllamaEmbedder(cfg.OllamaURL, cfg.Pipeline.EmbedModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	fingerprint := embedding.Fingerprint(config.ProviderOllama, cfg.Pipeline.EmbedModel)

	store, rebuild, err := openStore(cfg, embedder, fingerprint)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector index")
	}

	generator, err := llm.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing LLM handler")
	}

	p := parser.New(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap)
	bot := chatbot.New(store, generator, p, cfg)

	if rebuild {
		log.Warn().Msg("Rebuilding vector index from retained uploads")
		if err := bot.Rebuild(ctx); err != nil {
			log.Fatal().Err(err).Msg("Error rebuilding vector index")
		}
	}

	log.Info().Str("provider", generator.Name()).Int("records", store.Count()).Msgf("Starting server on http://localhost:%d", cfg.Port)
	if err := server.NewHandler(bot).Run(cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// openStore opens the persistent index. An unreadable index, or one
// built with a different embedding model, is discarded and flagged for
// a rebuild from the retained uploads instead of starting empty.
func openStore(cfg *config.Settings, embedder embedding.Embedder, fingerprint string) (*vectorstore.Store, bool, error) {
	store, err := vectorstore.New(cfg.Pipeline.IndexDir, cfg.Pipeline.Collection, false, embedder, fingerprint)
	if err == nil {
		return store, false, nil
	}
	if !errors.Is(err, apperr.ErrCorruptIndex) && !errors.Is(err, apperr.ErrEmbedderMismatch) {
		return nil, false, err
	}

	log.Warn().Err(err).Msg("Discarding unusable vector index")
	if err := os.RemoveAll(cfg.Pipeline.IndexDir); err != nil {
		return nil, false, err
	}
	store, err = vectorstore.New(cfg.Pipeline.IndexDir, cfg.Pipeline.Collection, false, embedder, fingerprint)
	if err != nil {
		return nil, false, err
	}
	return store, true, nil
}
