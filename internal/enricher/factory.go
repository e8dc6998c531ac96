package enricher

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Providers
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// Environment variables
const (
	EnvEnrichProvider = "JAVACONTEXT_ENRICH_PROVIDER"
	EnvOpenAIAPIKey   = "OPENAI_API_KEY"
	EnvOllamaHost     = "OLLAMA_HOST"
)

// Config selects and configures an enrichment provider
type Config struct {
	Provider          string
	Model             string
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// DetectProvider picks openai when an API key is available and mock otherwise
func DetectProvider() string {
	if p := os.Getenv(EnvEnrichProvider); p != "" {
		return strings.ToLower(p)
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderMock
}

// New creates the configured enricher, rate limited when
// RequestsPerSecond is set
func New(cfg Config) (Enricher, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = DetectProvider()
	}

	var e Enricher
	switch provider {
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv(EnvOpenAIAPIKey)
		}
		o, err := NewOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		e = o
	case ProviderOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = os.Getenv(EnvOllamaHost)
		}
		e = NewOllama(cfg)
	case ProviderMock:
		e = NewMock()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}

	return WithRateLimit(e, cfg.RequestsPerSecond, cfg.Burst), nil
}
