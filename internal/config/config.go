package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"ragchat/internal/apperr"
	"ragchat/internal/models"
)

const (
	ProviderOllama = "ollama"
	ProviderAzure  = "azure"
)

// Pipeline holds the tunable parts of the ingestion/retrieval pipeline,
// loaded from the optional yaml config file.
type Pipeline struct {
	ChunkSize      int    `yaml:"chunk_size"`
	ChunkOverlap   int    `yaml:"chunk_overlap"`
	TopK           int    `yaml:"top_k"`
	PromptTemplate string `yaml:"prompt_template"`
	UploadDir      string `yaml:"upload_dir"`
	IndexDir       string `yaml:"index_dir"`
	Collection     string `yaml:"collection"`
	EmbedModel     string `yaml:"embed_model"`
}

// Settings is the immutable process-wide configuration. It is built once
// at startup and passed explicitly to every component constructor.
type Settings struct {
	Provider    string
	Model       string
	OllamaURL   string
	APIKey      string
	Endpoint    string
	Deployment  string
	APIVersion  string
	Temperature float64
	Port        int
	Check       bool
	Pipeline    Pipeline
}

const (
	defaultOllamaModel = "qwen2.5:1.5b"
	defaultOllamaURL   = "http://localhost:11434"
	defaultDeployment  = "gpt-4"
	defaultAPIVersion  = "2024-02-15-preview"
	defaultConfigPath  = "./configs/config.yaml"
)

// Parse resolves Settings from command-line args, environment variables
// and the optional yaml config file. Precedence: flag > env > yaml > default.
func Parse(args []string) (*Settings, error) {
	fs := flag.NewFlagSet("ragchat", flag.ContinueOnError)

	provider := fs.String("provider", envOr("LLM_PROVIDER", ProviderOllama), "LLM provider: ollama or azure")
	model := fs.String("model", envOr("OLLAMA_MODEL", defaultOllamaModel), "model name (ollama model or azure deployment)")
	ollamaURL := fs.String("ollama-url", envOr("OLLAMA_BASE_URL", defaultOllamaURL), "Ollama base URL")
	apiKey := fs.String("api-key", os.Getenv("AZURE_OPENAI_API_KEY"), "Azure OpenAI API key")
	endpoint := fs.String("endpoint", os.Getenv("AZURE_OPENAI_ENDPOINT"), "Azure OpenAI endpoint URL")
	deployment := fs.String("deployment", envOr("AZURE_LLM_DEPLOYMENT_NAME", defaultDeployment), "Azure OpenAI deployment name")
	apiVersion := fs.String("api-version", envOr("AZURE_OPENAI_API_VERSION", defaultAPIVersion), "Azure OpenAI API version")
	temperature := fs.Float64("temperature", envOrFloat("LLM_TEMPERATURE", 0.7), "generation temperature")
	port := fs.Int("port", 8501, "HTTP server port")
	check := fs.Bool("check", false, "validate configuration and exit")
	configPath := fs.String("config", defaultConfigPath, "path to pipeline config file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrConfig, err)
	}

	pipeline, err := loadPipeline(*configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Settings{
		Provider:    *provider,
		Model:       *model,
		OllamaURL:   *ollamaURL,
		APIKey:      *apiKey,
		Endpoint:    *endpoint,
		Deployment:  *deployment,
		APIVersion:  *apiVersion,
		Temperature: *temperature,
		Port:        *port,
		Check:       *check,
		Pipeline:    *pipeline,
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings for the selected provider. It makes
// no network calls.
func Validate(cfg *Settings) error {
	switch cfg.Provider {
	case ProviderOllama:
		if cfg.OllamaURL == "" {
			return fmt.Errorf("%w: ollama base URL is required", apperr.ErrConfig)
		}
		if cfg.Model == "" {
			return fmt.Errorf("%w: model name is required", apperr.ErrConfig)
		}
	case ProviderAzure:
		if cfg.APIKey == "" {
			return fmt.Errorf("%w: Azure API key not provided, use --api-key or AZURE_OPENAI_API_KEY", apperr.ErrConfig)
		}
		if cfg.Endpoint == "" {
			return fmt.Errorf("%w: Azure endpoint not provided, use --endpoint or AZURE_OPENAI_ENDPOINT", apperr.ErrConfig)
		}
		if cfg.Deployment == "" {
			return fmt.Errorf("%w: Azure deployment name is required", apperr.ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", apperr.ErrConfig, cfg.Provider)
	}

	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return fmt.Errorf("%w: temperature %v out of range [0, 2]", apperr.ErrConfig, cfg.Temperature)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", apperr.ErrConfig, cfg.Port)
	}
	if cfg.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", apperr.ErrConfig)
	}
	if cfg.Pipeline.ChunkOverlap < 0 || cfg.Pipeline.ChunkOverlap >= cfg.Pipeline.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size)", apperr.ErrConfig)
	}
	if cfg.Pipeline.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive", apperr.ErrConfig)
	}
	return nil
}

// loadPipeline reads the pipeline config file. A missing file yields
// defaults; a present but unparsable file is a config error.
func loadPipeline(path string) (*Pipeline, error) {
	cfg := defaultPipeline()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("%w: reading %s: %v", apperr.ErrConfig, path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", apperr.ErrConfig, path, err)
	}
	applyPipelineDefaults(cfg)
	return cfg, nil
}

func defaultPipeline() *Pipeline {
	return &Pipeline{
		ChunkSize:      1500,
		ChunkOverlap:   200,
		TopK:           4,
		PromptTemplate: models.GroundedPromptTemplate,
		UploadDir:      "./data/uploads",
		IndexDir:       "./data/index",
		Collection:     "documents",
		EmbedModel:     "nomic-embed-text",
	}
}

func applyPipelineDefaults(cfg *Pipeline) {
	def := defaultPipeline()
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = def.ChunkOverlap
	}
	if cfg.TopK == 0 {
		cfg.TopK = def.TopK
	}
	if cfg.PromptTemplate == "" {
		cfg.PromptTemplate = def.PromptTemplate
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = def.UploadDir
	}
	if cfg.IndexDir == "" {
		cfg.IndexDir = def.IndexDir
	}
	if cfg.Collection == "" {
		cfg.Collection = def.Collection
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = def.EmbedModel
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
