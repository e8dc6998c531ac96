package indexer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// OpenFailureLog opens path for appending and returns a JSON logger that
// writes one record per failed file, batch or write. The returned closer
// must be closed when ingestion is finished.
func OpenFailureLog(path string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create failure log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open failure log: %w", err)
	}
	return slog.New(slog.NewJSONHandler(f, nil)), f, nil
}

// discardLogger drops every record
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
