package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables that override file values
const (
	EnvDataDir           = "JAVACONTEXT_DATA_DIR"
	EnvDatabase          = "JAVACONTEXT_DB"
	EnvHierarchy         = "JAVACONTEXT_HIERARCHY"
	EnvErrorLog          = "JAVACONTEXT_ERROR_LOG"
	EnvWorkers           = "JAVACONTEXT_WORKERS"
	EnvBatchSize         = "JAVACONTEXT_BATCH_SIZE"
	EnvMaxConcurrent     = "JAVACONTEXT_MAX_CONCURRENT"
	EnvBatchRetries      = "JAVACONTEXT_BATCH_RETRIES"
	EnvFlushInterval     = "JAVACONTEXT_FLUSH_INTERVAL"
	EnvStrictSupertypes  = "JAVACONTEXT_STRICT_SUPERTYPES"
	EnvExcludeDirs       = "JAVACONTEXT_EXCLUDE_DIRS"
	EnvEnrichProvider    = "JAVACONTEXT_ENRICH_PROVIDER"
	EnvEnrichModel       = "JAVACONTEXT_ENRICH_MODEL"
	EnvEnrichRPS         = "JAVACONTEXT_ENRICH_RPS"
	EnvEmbeddingProvider = "JAVACONTEXT_EMBEDDING_PROVIDER"
	EnvEmbeddingModel    = "JAVACONTEXT_EMBEDDING_MODEL"
	EnvLogLevel          = "JAVACONTEXT_LOG_LEVEL"
	EnvLogFormat         = "JAVACONTEXT_LOG_FORMAT"
	EnvJinaAPIKey        = "JINA_API_KEY"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
	EnvOllamaHost        = "OLLAMA_HOST"
)

// applyEnv overlays environment variables on the loaded values
func (c *Config) applyEnv() {
	p := &c.Paths
	p.DataDir = envOrDefault(EnvDataDir, p.DataDir)
	p.Database = envOrDefault(EnvDatabase, p.Database)
	p.Hierarchy = envOrDefault(EnvHierarchy, p.Hierarchy)
	p.ErrorLog = envOrDefault(EnvErrorLog, p.ErrorLog)

	in := &c.Ingestion
	in.Workers = envOrDefaultInt(EnvWorkers, in.Workers)
	in.BatchSize = envOrDefaultInt(EnvBatchSize, in.BatchSize)
	in.MaxConcurrent = envOrDefaultInt(EnvMaxConcurrent, in.MaxConcurrent)
	in.BatchRetries = envOrDefaultInt(EnvBatchRetries, in.BatchRetries)
	in.FlushInterval.Duration = envOrDefaultDuration(EnvFlushInterval, in.FlushInterval.Duration)
	in.StrictSupertypes = envOrDefaultBool(EnvStrictSupertypes, in.StrictSupertypes)
	if v := os.Getenv(EnvExcludeDirs); v != "" {
		in.ExcludeDirs = splitList(v)
	}

	en := &c.Enrichment
	en.Provider = envOrDefault(EnvEnrichProvider, en.Provider)
	en.Model = envOrDefault(EnvEnrichModel, en.Model)
	en.RequestsPerSecond = envOrDefaultFloat(EnvEnrichRPS, en.RequestsPerSecond)

	em := &c.Embedding
	em.Provider = envOrDefault(EnvEmbeddingProvider, em.Provider)
	em.Model = envOrDefault(EnvEmbeddingModel, em.Model)

	// Provider credentials fill only what the file left empty
	if en.APIKey == "" && strings.EqualFold(en.Provider, "openai") {
		en.APIKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if em.APIKey == "" {
		switch strings.ToLower(em.Provider) {
		case "jina":
			em.APIKey = os.Getenv(EnvJinaAPIKey)
		case "openai":
			em.APIKey = os.Getenv(EnvOpenAIAPIKey)
		}
	}
	if en.BaseURL == "" && strings.EqualFold(en.Provider, "ollama") {
		en.BaseURL = os.Getenv(EnvOllamaHost)
	}
	if em.BaseURL == "" && strings.EqualFold(em.Provider, "ollama") {
		em.BaseURL = os.Getenv(EnvOllamaHost)
	}

	c.Logging.Level = envOrDefault(EnvLogLevel, c.Logging.Level)
	c.Logging.Format = envOrDefault(EnvLogFormat, c.Logging.Format)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
