package types

import "time"

// SearchResult is a single ranked hit from the chunk index
type SearchResult struct {
	// Identification
	ChunkID string
	Rank    int // Position in result set (1-based)

	// Scoring
	RelevanceScore float64

	// Chunk data
	Signature     string
	OperationName string
	TypeName      string
	Package       string
	Summary       string
	Keywords      []string
	Content       string
	File          *FileInfo
}

// FileInfo locates a result in the source tree
type FileInfo struct {
	Path      string
	StartLine int
	EndLine   int
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == "" {
		return ErrInvalidChunkID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.RelevanceScore < 0 || sr.RelevanceScore > 1 {
		return ErrInvalidRelevance
	}

	if sr.File == nil {
		return ErrMissingFileInfo
	}

	if sr.Content == "" {
		return ErrMissingChunkSource
	}

	return nil
}

// Summary reports the outcome of one ingestion run
type Summary struct {
	RunID           string
	Root            string
	FilesScanned    int
	FilesFailed     int
	TypesMapped     int
	ChunksExtracted int
	ChunksIndexed   int
	ChunksFailed    int
	BatchesFailed   int
	Cancelled       bool
	Duration        time.Duration
	Errors          []string
}

// MaxSummaryErrors caps the error messages carried in a Summary
const MaxSummaryErrors = 20

// AddError records an error message, keeping at most MaxSummaryErrors
func (s *Summary) AddError(msg string) {
	if len(s.Errors) < MaxSummaryErrors {
		s.Errors = append(s.Errors, msg)
	}
}
