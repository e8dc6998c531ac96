package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/javacontext/internal/config"
	"github.com/dshills/javacontext/internal/embedder"
	"github.com/dshills/javacontext/internal/enricher"
	"github.com/dshills/javacontext/internal/indexer"
	"github.com/dshills/javacontext/internal/searcher"
	"github.com/dshills/javacontext/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "javacontext"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	cfg      *config.Config
	logger   *slog.Logger
	storage  storage.Storage
	embedder embedder.Embedder
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
	lock     indexer.IndexLock
	closers  []io.Closer
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer opens storage and builds the enricher, embedder, indexer and
// searcher described by cfg. One embedder instance is shared by the indexer
// and the searcher so its cache serves both.
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Paths.Database), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(cfg.Paths.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	enr, err := enricher.New(cfg.EnricherConfig())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize enricher: %w", err)
	}

	s := &Server{cfg: cfg, logger: slog.Default(), storage: store, embedder: emb}
	for _, opt := range opts {
		opt(s)
	}
	s.closers = append(s.closers, emb, store)

	idxOpts := []indexer.Option{indexer.WithLogger(s.logger)}
	failures, closer, err := indexer.OpenFailureLog(cfg.Paths.ErrorLog)
	if err != nil {
		s.logger.Warn("mcp.failure_log.unavailable", "path", cfg.Paths.ErrorLog, "err", err)
	} else {
		idxOpts = append(idxOpts, indexer.WithFailureLog(failures))
		s.closers = append(s.closers, closer)
	}

	s.indexer = indexer.New(store, enr, emb, idxOpts...)
	s.searcher = searcher.NewSearcher(store, emb, searcher.WithLogger(s.logger))
	s.mcp = server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false))
	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.Close() }()
	s.logger.Info("mcp.serve", "name", ServerName, "version", ServerVersion, "db", s.cfg.Paths.Database)

	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// Close releases storage, the embedder and the failure log
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
