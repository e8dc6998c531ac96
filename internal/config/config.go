package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/javacontext/internal/embedder"
	"github.com/dshills/javacontext/internal/enricher"
	"github.com/dshills/javacontext/internal/indexer"
)

// DefaultFile is the config file read from the working directory when no
// path is given
const DefaultFile = "javacontext.toml"

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full application configuration
type Config struct {
	Paths      PathsConfig      `toml:"paths"`
	Ingestion  IngestionConfig  `toml:"ingestion"`
	Enrichment EnrichmentConfig `toml:"enrichment"`
	Embedding  EmbeddingConfig  `toml:"embedding"`
	Logging    LoggingConfig    `toml:"logging"`
}

// PathsConfig locates persistent files. Empty entries are derived from DataDir.
type PathsConfig struct {
	DataDir   string `toml:"data_dir"`
	Database  string `toml:"database"`
	Hierarchy string `toml:"hierarchy"`
	ErrorLog  string `toml:"error_log"`
}

// IngestionConfig tunes the ingestion pipeline
type IngestionConfig struct {
	Workers            int      `toml:"workers"`
	BatchSize          int      `toml:"batch_size"`
	WriteBatchSize     int      `toml:"write_batch_size"`
	FlushInterval      Duration `toml:"flush_interval"`
	MaxConcurrent      int      `toml:"max_concurrent"`
	MaxInflightBatches int      `toml:"max_inflight_batches"`
	BatchRetries       int      `toml:"batch_retries"`
	RetryBackoff       Duration `toml:"retry_backoff"`
	MaxBodyBytes       int      `toml:"max_body_bytes"`
	StrictSupertypes   bool     `toml:"strict_supertypes"`
	ExcludeDirs        []string `toml:"exclude_dirs"`
}

// EnrichmentConfig selects the summary/keyword provider
type EnrichmentConfig struct {
	Provider          string   `toml:"provider"`
	Model             string   `toml:"model"`
	BaseURL           string   `toml:"base_url"`
	APIKey            string   `toml:"api_key"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Burst             int      `toml:"burst"`
	Timeout           Duration `toml:"timeout"`
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider  string   `toml:"provider"`
	Model     string   `toml:"model"`
	BaseURL   string   `toml:"base_url"`
	APIKey    string   `toml:"api_key"`
	CacheSize int      `toml:"cache_size"`
	Timeout   Duration `toml:"timeout"`
}

// LoggingConfig controls the slog handler
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration written as a string such as "5s" in TOML
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText renders the duration as a Go duration string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Ingestion: IngestionConfig{
			Workers:            runtime.NumCPU(),
			BatchSize:          20,
			WriteBatchSize:     100,
			FlushInterval:      Duration{5 * time.Second},
			MaxConcurrent:      5,
			MaxInflightBatches: 2,
			BatchRetries:       3,
			RetryBackoff:       Duration{500 * time.Millisecond},
			MaxBodyBytes:       50000,
			ExcludeDirs:        []string{"target", "build", "out"},
		},
		Enrichment: EnrichmentConfig{
			Timeout: Duration{60 * time.Second},
		},
		Embedding: EmbeddingConfig{
			CacheSize: 10000,
			Timeout:   Duration{30 * time.Second},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. Order of precedence, lowest first:
// defaults, the TOML file, the process environment (after .env is loaded).
// An empty path reads DefaultFile when it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	// A missing .env is not an error
	_ = godotenv.Load()

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePaths fills empty paths from DataDir, which defaults to
// ~/.javacontext
func (c *Config) resolvePaths() error {
	p := &c.Paths
	if p.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		p.DataDir = filepath.Join(home, ".javacontext")
	}
	p.DataDir = expandHome(p.DataDir)
	if p.Database == "" {
		p.Database = filepath.Join(p.DataDir, "index.db")
	}
	if p.Hierarchy == "" {
		p.Hierarchy = filepath.Join(p.DataDir, "project_hierarchy.json")
	}
	if p.ErrorLog == "" {
		p.ErrorLog = filepath.Join(p.DataDir, "errors.log")
	}
	p.Database = expandHome(p.Database)
	p.Hierarchy = expandHome(p.Hierarchy)
	p.ErrorLog = expandHome(p.ErrorLog)
	return nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Validate rejects non-positive sizes and unknown providers
func (c *Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("ingestion.%s must be positive, got %d", name, v))
		}
	}
	in := c.Ingestion
	positive("workers", in.Workers)
	positive("batch_size", in.BatchSize)
	positive("write_batch_size", in.WriteBatchSize)
	positive("max_concurrent", in.MaxConcurrent)
	positive("max_inflight_batches", in.MaxInflightBatches)
	positive("max_body_bytes", in.MaxBodyBytes)
	if in.BatchRetries < 0 {
		errs = append(errs, fmt.Errorf("ingestion.batch_retries must not be negative, got %d", in.BatchRetries))
	}
	if in.FlushInterval.Duration <= 0 {
		errs = append(errs, errors.New("ingestion.flush_interval must be positive"))
	}
	if in.RetryBackoff.Duration < 0 {
		errs = append(errs, errors.New("ingestion.retry_backoff must not be negative"))
	}

	switch strings.ToLower(c.Enrichment.Provider) {
	case "", enricher.ProviderOpenAI, enricher.ProviderOllama, enricher.ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown enrichment.provider %q", c.Enrichment.Provider))
	}
	if c.Enrichment.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("enrichment.requests_per_second must not be negative"))
	}

	switch strings.ToLower(c.Embedding.Provider) {
	case "", embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderOllama, embedder.ProviderLocal:
	default:
		errs = append(errs, fmt.Errorf("unknown embedding.provider %q", c.Embedding.Provider))
	}
	if c.Embedding.CacheSize < 0 {
		errs = append(errs, errors.New("embedding.cache_size must not be negative"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.format %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// IndexerConfig converts the ingestion section
func (c *Config) IndexerConfig() *indexer.Config {
	in := c.Ingestion
	return &indexer.Config{
		Workers:            in.Workers,
		BatchSize:          in.BatchSize,
		WriteBatchSize:     in.WriteBatchSize,
		FlushInterval:      in.FlushInterval.Duration,
		MaxConcurrent:      in.MaxConcurrent,
		MaxInflightBatches: in.MaxInflightBatches,
		BatchRetries:       in.BatchRetries,
		RetryBackoff:       in.RetryBackoff.Duration,
		MaxBodyBytes:       in.MaxBodyBytes,
		StrictSupertypes:   in.StrictSupertypes,
		ExcludeDirs:        append([]string(nil), in.ExcludeDirs...),
	}
}

// EnricherConfig converts the enrichment section
func (c *Config) EnricherConfig() enricher.Config {
	e := c.Enrichment
	return enricher.Config{
		Provider:          e.Provider,
		Model:             e.Model,
		BaseURL:           e.BaseURL,
		APIKey:            e.APIKey,
		Timeout:           e.Timeout.Duration,
		RequestsPerSecond: e.RequestsPerSecond,
		Burst:             e.Burst,
	}
}

// EmbedderConfig converts the embedding section
func (c *Config) EmbedderConfig() embedder.Config {
	e := c.Embedding
	return embedder.Config{
		Provider:  e.Provider,
		Model:     e.Model,
		BaseURL:   e.BaseURL,
		APIKey:    e.APIKey,
		Timeout:   e.Timeout.Duration,
		CacheSize: e.CacheSize,
	}
}
