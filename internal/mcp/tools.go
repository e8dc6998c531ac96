package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/javacontext/internal/hierarchy"
	"github.com/dshills/javacontext/internal/searcher"
	"github.com/dshills/javacontext/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound    = -32001 // Specified path does not contain Java sources
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // Nothing has been indexed yet
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

const maxBatchSize = 1000

// handleIndexCodebase scans the type hierarchy, saves it, runs ingestion
// and drops cached search responses
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrNoJavaFiles) {
			code = ErrorCodeProjectNotFound
		}
		return nil, newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	cfg := s.cfg.IndexerConfig()
	batchSize := getIntDefault(args, "batch_size", cfg.BatchSize)
	if batchSize < 1 || batchSize > maxBatchSize {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("batch_size must be between 1 and %d", maxBatchSize), map[string]interface{}{
			"param": "batch_size",
			"value": batchSize,
		})
	}
	cfg.BatchSize = batchSize
	rebuild := getBoolDefault(args, "rebuild_hierarchy", true)

	if !s.lock.TryAcquire() {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", map[string]interface{}{
			"state": s.indexer.State().String(),
		})
	}
	defer s.lock.Release()

	m, err := s.loadHierarchy(ctx, path, rebuild, cfg.ExcludeDirs)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "hierarchy scan failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	summary, err := s.indexer.Run(ctx, path, m, cfg)
	if summary != nil {
		s.searcher.InvalidateCache()
	}
	if err != nil && summary == nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":          err == nil,
		"run_id":           summary.RunID,
		"files_scanned":    summary.FilesScanned,
		"files_failed":     summary.FilesFailed,
		"types_mapped":     summary.TypesMapped,
		"chunks_extracted": summary.ChunksExtracted,
		"chunks_indexed":   summary.ChunksIndexed,
		"chunks_failed":    summary.ChunksFailed,
		"batches_failed":   summary.BatchesFailed,
		"cancelled":        summary.Cancelled,
		"duration_ms":      summary.Duration.Milliseconds(),
	}
	if len(summary.Errors) > 0 {
		if len(summary.Errors) > 5 {
			response["errors"] = summary.Errors[:5]
			response["error_count"] = len(summary.Errors)
		} else {
			response["errors"] = summary.Errors
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// loadHierarchy rescans root and saves the artifact, or reuses the saved
// artifact when rebuild is off and one exists
func (s *Server) loadHierarchy(ctx context.Context, root string, rebuild bool, exclude []string) (*hierarchy.Map, error) {
	artifact := s.cfg.Paths.Hierarchy
	if !rebuild {
		if m, err := hierarchy.Load(artifact); err == nil {
			return m, nil
		}
	}

	m, stats, err := hierarchy.Scan(ctx, root,
		hierarchy.WithLogger(s.logger),
		hierarchy.WithExcludeDirs(exclude...),
		hierarchy.WithWorkers(s.cfg.Ingestion.Workers))
	if err != nil {
		return nil, err
	}
	if err := hierarchy.Save(artifact, m); err != nil {
		s.logger.Warn("mcp.hierarchy.save_failed", "path", artifact, "err", err)
	}
	s.logger.Info("mcp.hierarchy.scanned", "root", root, "types", m.Len(), "failed_files", len(stats.FailedFiles))
	return m, nil
}

// handleSearchCode runs a query against the index
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	mode, err := searcher.ParseMode(getStringDefault(args, "search_mode", string(searcher.SearchModeHybrid)))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   args["search_mode"],
			"allowed": []string{"hybrid", "vector", "keyword"},
		})
	}

	filters, err := parseFilters(args["filters"])
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid filters", map[string]interface{}{
			"param":  "filters",
			"reason": err.Error(),
		})
	}

	count, err := s.storage.CountChunks(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read index", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if count == 0 {
		return nil, newMCPError(ErrorCodeNotIndexed, "nothing indexed yet; run index_codebase first", nil)
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		Mode:     mode,
		Filters:  filters,
		UseCache: true,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		entry := map[string]interface{}{
			"rank":            r.Rank,
			"chunk_id":        r.ChunkID,
			"relevance_score": r.RelevanceScore,
			"package":         r.Package,
			"type":            r.TypeName,
			"operation":       r.OperationName,
			"signature":       r.Signature,
			"summary":         r.Summary,
			"keywords":        r.Keywords,
			"code":            r.Content,
		}
		if r.File != nil {
			entry["file"] = map[string]interface{}{
				"path":       r.File.Path,
				"start_line": r.File.StartLine,
				"end_line":   r.File.EndLine,
			}
		}
		results = append(results, entry)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"query":          query,
		"search_mode":    string(resp.SearchMode),
		"total_results":  resp.TotalResults,
		"vector_results": resp.VectorResults,
		"text_results":   resp.TextResults,
		"cache_hit":      resp.CacheHit,
		"duration_ms":    resp.Duration.Milliseconds(),
		"results":        results,
	})), nil
}

// handleGetStatus reports index statistics, the latest run and health
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	path := getStringDefault(args, "path", "")
	if path != "" && !filepath.IsAbs(path) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": ErrPathNotAbsolute.Error(),
		})
	}

	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed": status.ChunksCount > 0,
		"statistics": map[string]interface{}{
			"chunks_count":     status.ChunksCount,
			"embeddings_count": status.EmbeddingsCount,
			"packages_count":   status.PackagesCount,
			"types_count":      status.TypesCount,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
			"schema_version":   status.SchemaVersion,
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"fts_indexes_built":    status.Health.FTSIndexesBuilt,
		},
		"indexing_in_progress": s.lock.Held(),
		"state":                s.indexer.State().String(),
	}

	run := status.LatestRun
	if path != "" {
		run, err = s.storage.LatestRun(ctx, path)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, newMCPError(ErrorCodeInternalError, "failed to get latest run", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	if run != nil {
		response["latest_run"] = formatRun(run)
	} else if path != "" {
		response["message"] = "Path not indexed. Use index_codebase tool to index this project."
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

func formatRun(run *storage.IngestRun) map[string]interface{} {
	out := map[string]interface{}{
		"run_id":           run.ID,
		"root":             run.Root,
		"started_at":       run.StartedAt.Format(time.RFC3339),
		"files_scanned":    run.FilesScanned,
		"files_failed":     run.FilesFailed,
		"chunks_extracted": run.ChunksExtracted,
		"chunks_indexed":   run.ChunksIndexed,
		"chunks_failed":    run.ChunksFailed,
		"batches_failed":   run.BatchesFailed,
		"cancelled":        run.Cancelled,
	}
	if !run.FinishedAt.IsZero() {
		out["finished_at"] = run.FinishedAt.Format(time.RFC3339)
		out["duration_ms"] = run.Duration().Milliseconds()
	}
	return out
}

// parseFilters converts the filters argument into storage filters. A
// missing argument yields nil.
func parseFilters(raw interface{}) (*storage.SearchFilters, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.New("filters must be an object")
	}

	f := &storage.SearchFilters{}
	var err error
	if f.Packages, err = getStringSlice(m, "packages"); err != nil {
		return nil, err
	}
	if f.TypeNames, err = getStringSlice(m, "types"); err != nil {
		return nil, err
	}
	if f.Kinds, err = getStringSlice(m, "kinds"); err != nil {
		return nil, err
	}
	for _, k := range f.Kinds {
		if k != "method" && k != "constructor" {
			return nil, fmt.Errorf("unknown kind %q", k)
		}
	}
	f.FilePattern = getStringDefault(m, "file_pattern", "")
	if v, ok := m["min_relevance"]; ok {
		n, ok := v.(float64)
		if !ok || n < 0 || n > 1 {
			return nil, errors.New("min_relevance must be a number between 0 and 1")
		}
		f.MinRelevance = n
	}
	return f, nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath requires an absolute, readable directory holding at least
// one .java file
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	found := false
	walkErr := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return err
			}
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".java") {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return ErrPathNotReadable
	}
	if !found {
		return ErrNoJavaFiles
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a list of strings; JSON arrays arrive as []interface{}
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	switch v := args[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s must contain only strings", key)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s must be an array of strings", key)
	}
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNoJavaFiles     = errors.New("directory does not contain Java files")
)
