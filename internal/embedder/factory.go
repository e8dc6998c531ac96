package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variables
const (
	EnvEmbeddingProvider = "JAVACONTEXT_EMBEDDING_PROVIDER"
	EnvJinaAPIKey        = "JINA_API_KEY"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvOllamaHost        = "OLLAMA_HOST"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	CacheSize int
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. JAVACONTEXT_EMBEDDING_PROVIDER (jina, openai, ollama, local)
// 2. Check for API keys: JINA_API_KEY, OPENAI_API_KEY
// 3. Default to local if no API keys found
func NewFromEnv() (Embedder, error) {
	return New(Config{Provider: DetectProvider(), CacheSize: 10000})
}

// New creates an embedder with explicit configuration. An empty provider
// is detected from the environment.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = DetectProvider()
	}

	pc := ProviderConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
		Cache:   cache,
	}
	switch provider {
	case ProviderJina:
		return NewJinaProvider(pc)
	case ProviderOpenAI:
		return NewOpenAIProvider(pc)
	case ProviderOllama:
		return NewOllamaProvider(pc), nil
	case ProviderLocal:
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvEmbeddingProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}

	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}

	return ProviderLocal
}
