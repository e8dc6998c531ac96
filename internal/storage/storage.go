package storage

import (
	"context"
	"time"
)

// Storage persists enriched, embedded chunks keyed by their content-addressed
// id and answers the queries the searcher and status tools need.
type Storage interface {
	// Ping verifies the database is reachable
	Ping(ctx context.Context) error

	// Chunk operations
	UpsertChunks(ctx context.Context, records []*ChunkRecord) error
	GetChunk(ctx context.Context, id string) (*ChunkRecord, error)
	CountChunks(ctx context.Context) (int, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)
	SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error)

	// Ingest run operations
	RecordRun(ctx context.Context, run *IngestRun) error
	LatestRun(ctx context.Context, root string) (*IngestRun, error)

	// Status operations
	GetStatus(ctx context.Context) (*IndexStatus, error)

	// Close releases the database
	Close() error
}

// ChunkRecord is one stored chunk: the raw code, the text that was embedded
// and indexed for keyword search, the metadata document and the vector.
type ChunkRecord struct {
	ID            string // hex chunk id
	Namespace     string
	TypeName      string
	OperationName string
	Kind          string
	Signature     string
	FilePath      string
	StartLine     int
	EndLine       int
	Code          string
	SearchText    string
	Metadata      []byte // JSON
	Vector        []float32
	Provider      string
	Model         string
	RunID         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IngestRun records the outcome of one ingestion run
type IngestRun struct {
	ID              string
	Root            string
	StartedAt       time.Time
	FinishedAt      time.Time
	FilesScanned    int
	FilesFailed     int
	TypesMapped     int
	ChunksExtracted int
	ChunksIndexed   int
	ChunksFailed    int
	BatchesFailed   int
	Cancelled       bool
}

// Duration is the wall time of the run
func (r *IngestRun) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SearchFilters contains filters for narrowing search results
type SearchFilters struct {
	Packages     []string // Filter by package (namespace)
	TypeNames    []string // Filter by enclosing type
	Kinds        []string // method or constructor
	FilePattern  string   // Glob pattern for file paths
	MinRelevance float64  // Minimum relevance score
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID         string
	SimilarityScore float64
}

// TextResult represents a result from full-text search
type TextResult struct {
	ChunkID   string
	BM25Score float64
}

// IndexStatus contains statistics about the index
type IndexStatus struct {
	ChunksCount     int
	EmbeddingsCount int
	PackagesCount   int
	TypesCount      int
	IndexSizeMB     float64
	SchemaVersion   string
	LatestRun       *IngestRun
	Health          HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexesBuilt     bool
}
