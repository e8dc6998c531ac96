package indexer

import (
	"runtime"
	"slices"
	"time"
)

// Config contains configuration for one ingestion run
type Config struct {
	Workers            int           // Files parsed concurrently (default: runtime.NumCPU())
	BatchSize          int           // Chunks per enrichment/embedding batch (default: 20)
	WriteBatchSize     int           // Records buffered before a storage write (default: 100)
	FlushInterval      time.Duration // Maximum time a record waits for a write (default: 5s)
	MaxConcurrent      int           // Concurrent enrichment/embedding calls across all batches (default: 5)
	MaxInflightBatches int           // Batches processed at once (default: 2)
	BatchRetries       int           // Retries of a failing batch or write (default: 3)
	RetryBackoff       time.Duration // Base delay between retries, grows linearly (default: 500ms)
	MaxBodyBytes       int           // Size guard for operation bodies (default: 50000)
	StrictSupertypes   bool          // Resolve supertypes by exact qualified name only
	ExcludeDirs        []string      // Directory names skipped in addition to the defaults
}

// DefaultConfig returns the configuration used when Run gets nil
func DefaultConfig() *Config {
	return &Config{
		Workers:            runtime.NumCPU(),
		BatchSize:          20,
		WriteBatchSize:     100,
		FlushInterval:      5 * time.Second,
		MaxConcurrent:      5,
		MaxInflightBatches: 2,
		BatchRetries:       3,
		RetryBackoff:       500 * time.Millisecond,
		MaxBodyBytes:       50000,
	}
}

// withDefaults returns a copy of c with every non-positive field defaulted.
// BatchRetries may legitimately be zero; only a negative value is replaced.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	out.ExcludeDirs = slices.Clone(c.ExcludeDirs)
	if out.Workers <= 0 {
		out.Workers = d.Workers
	}
	if out.BatchSize <= 0 {
		out.BatchSize = d.BatchSize
	}
	if out.WriteBatchSize <= 0 {
		out.WriteBatchSize = d.WriteBatchSize
	}
	if out.FlushInterval <= 0 {
		out.FlushInterval = d.FlushInterval
	}
	if out.MaxConcurrent <= 0 {
		out.MaxConcurrent = d.MaxConcurrent
	}
	if out.MaxInflightBatches <= 0 {
		out.MaxInflightBatches = d.MaxInflightBatches
	}
	if out.BatchRetries < 0 {
		out.BatchRetries = d.BatchRetries
	}
	if out.RetryBackoff <= 0 {
		out.RetryBackoff = d.RetryBackoff
	}
	if out.MaxBodyBytes <= 0 {
		out.MaxBodyBytes = d.MaxBodyBytes
	}
	return &out
}
