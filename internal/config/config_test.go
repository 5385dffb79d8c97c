package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/apperr"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LLM_PROVIDER", "OLLAMA_MODEL", "OLLAMA_BASE_URL",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT",
		"AZURE_LLM_DEPLOYMENT_NAME", "AZURE_OPENAI_API_VERSION",
		"LLM_TEMPERATURE",
	} {
		t.Setenv(key, "")
	}
}

func TestParseDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.Provider)
	assert.Equal(t, defaultOllamaModel, cfg.Model)
	assert.Equal(t, defaultOllamaURL, cfg.OllamaURL)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.Equal(t, 8501, cfg.Port)
	assert.False(t, cfg.Check)

	assert.Equal(t, 1500, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 200, cfg.Pipeline.ChunkOverlap)
	assert.Equal(t, 4, cfg.Pipeline.TopK)
	assert.NotEmpty(t, cfg.Pipeline.PromptTemplate)
}

func TestParseAzureWithoutCredentials(t *testing.T) {
	clearEnv(t)

	_, err := Parse([]string{"--provider", "azure", "--check"})
	assert.ErrorIs(t, err, apperr.ErrConfig)
}

func TestParseAzureWithCredentials(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]string{
		"--provider", "azure",
		"--api-key", "secret",
		"--endpoint", "https://example.openai.azure.com",
		"--deployment", "gpt-4",
	})
	require.NoError(t, err)
	assert.Equal(t, ProviderAzure, cfg.Provider)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, defaultAPIVersion, cfg.APIVersion)
}

func TestParseEnvFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_API_KEY", "env-key")
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://env.openai.azure.com")
	t.Setenv("AZURE_LLM_DEPLOYMENT_NAME", "env-deploy")
	t.Setenv("LLM_TEMPERATURE", "0.2")

	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderAzure, cfg.Provider)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Equal(t, "env-deploy", cfg.Deployment)
	assert.Equal(t, 0.2, cfg.Temperature)
}

func TestFlagOverridesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "azure")

	cfg, err := Parse([]string{"--provider", "ollama"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, cfg.Provider)
}

func TestParseCheckFlag(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]string{"--check"})
	require.NoError(t, err)
	assert.True(t, cfg.Check)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"unknown provider", func(s *Settings) { s.Provider = "openrouter" }},
		{"temperature too high", func(s *Settings) { s.Temperature = 3 }},
		{"negative temperature", func(s *Settings) { s.Temperature = -1 }},
		{"zero port", func(s *Settings) { s.Port = 0 }},
		{"overlap >= chunk size", func(s *Settings) { s.Pipeline.ChunkOverlap = s.Pipeline.ChunkSize }},
		{"zero top_k", func(s *Settings) { s.Pipeline.TopK = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Settings{
				Provider:    ProviderOllama,
				Model:       defaultOllamaModel,
				OllamaURL:   defaultOllamaURL,
				Temperature: 0.7,
				Port:        8501,
				Pipeline:    *defaultPipeline(),
			}
			tt.mutate(cfg)
			assert.ErrorIs(t, Validate(cfg), apperr.ErrConfig)
		})
	}
}

func TestLoadPipelineFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: 800\nchunk_overlap: 100\ntop_k: 2\n"), 0o644))

	cfg, err := Parse([]string{"--config", path})
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 100, cfg.Pipeline.ChunkOverlap)
	assert.Equal(t, 2, cfg.Pipeline.TopK)
	// unset keys keep their defaults
	assert.Equal(t, "documents", cfg.Pipeline.Collection)
}

func TestLoadPipelineBadFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: [not an int"), 0o644))

	_, err := Parse([]string{"--config", path})
	assert.ErrorIs(t, err, apperr.ErrConfig)
}
