package types

import "errors"

var (
	// ErrSyntax marks a source file the Java grammar could not parse cleanly
	ErrSyntax = errors.New("syntax error")

	ErrInvalidChunkID     = errors.New("invalid chunk ID")
	ErrMissingName        = errors.New("name is required")
	ErrMissingSignature   = errors.New("signature is required")
	ErrInvalidRank        = errors.New("rank must be >= 1")
	ErrInvalidRelevance   = errors.New("relevance score must be between 0 and 1")
	ErrMissingFileInfo    = errors.New("file info is required")
	ErrMissingChunkSource = errors.New("chunk has no source text")
)
