package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/javacontext/internal/config"
)

const animalSrc = `package com.zoo;

public class Animal {
    public void eat() {
        System.out.println("eat");
    }
}
`

const dogSrc = `package com.zoo;

public class Dog extends Animal {
    public void bark() {
        System.out.println("woof");
    }

    private void hidden() {
    }
}
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.PathsConfig{
		DataDir:   dir,
		Database:  filepath.Join(dir, "index.db"),
		Hierarchy: filepath.Join(dir, "project_hierarchy.json"),
		ErrorLog:  filepath.Join(dir, "errors.log"),
	}
	cfg.Ingestion.Workers = 2
	cfg.Enrichment.Provider = "mock"
	cfg.Embedding.Provider = "local"
	return cfg
}

func setupTestServer(t *testing.T) (*Server, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	s, err := NewServer(cfg, WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, cfg
}

func javaTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	pkg := filepath.Join(dir, "src", "com", "zoo")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "Animal.java"), []byte(animalSrc), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "Dog.java"), []byte(dogSrc), 0o644))
	return dir
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func decodeResult(t *testing.T, res *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)

	var text string
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		text = c.Text
	case *mcp.TextContent:
		text = c.Text
	default:
		t.Fatalf("unexpected content type %T", c)
	}

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected *MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

func TestNewServer(t *testing.T) {
	s, cfg := setupTestServer(t)

	assert.NotNil(t, s.indexer, "Indexer should be created")
	assert.NotNil(t, s.searcher, "Searcher should be created")
	assert.NotNil(t, s.storage, "Storage should be created")
	assert.Equal(t, "local", s.embedder.Provider())
	assert.FileExists(t, cfg.Paths.Database)

	_, err := NewServer(nil)
	assert.Error(t, err)

	bad := testConfig(t)
	bad.Embedding.Provider = "jina"
	bad.Embedding.APIKey = ""
	t.Setenv("JINA_API_KEY", "")
	_, err = NewServer(bad)
	assert.Error(t, err, "jina without a key cannot start")
}

func TestIndexCodebase(t *testing.T) {
	s, cfg := setupTestServer(t)
	root := javaTree(t)

	res, err := s.handleIndexCodebase(context.Background(), callRequest("index_codebase", map[string]interface{}{
		"path":       root,
		"batch_size": float64(1),
	}))
	require.NoError(t, err)

	out := decodeResult(t, res)
	assert.Equal(t, true, out["indexed"])
	assert.Equal(t, float64(2), out["files_scanned"])
	assert.Equal(t, float64(2), out["types_mapped"])
	assert.Equal(t, float64(2), out["chunks_indexed"])
	assert.Equal(t, float64(0), out["batches_failed"])
	assert.NotEmpty(t, out["run_id"])
	assert.FileExists(t, cfg.Paths.Hierarchy)
	assert.False(t, s.lock.Held(), "lock released after the run")

	// Reusing the saved artifact gives the same result
	res, err = s.handleIndexCodebase(context.Background(), callRequest("index_codebase", map[string]interface{}{
		"path":              root,
		"rebuild_hierarchy": false,
	}))
	require.NoError(t, err)
	assert.Equal(t, float64(2), decodeResult(t, res)["chunks_indexed"])

	count, err := s.storage.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIndexCodebase_InProgress(t *testing.T) {
	s, _ := setupTestServer(t)
	require.True(t, s.lock.TryAcquire())
	defer s.lock.Release()

	_, err := s.handleIndexCodebase(context.Background(), callRequest("index_codebase", map[string]interface{}{
		"path": javaTree(t),
	}))
	requireMCPError(t, err, ErrorCodeIndexingInProgress)
}

func TestIndexCodebase_InvalidParams(t *testing.T) {
	s, _ := setupTestServer(t)
	empty := t.TempDir()

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{name: "missing path", args: map[string]interface{}{}, code: ErrorCodeInvalidParams},
		{name: "relative path", args: map[string]interface{}{"path": "src/main"}, code: ErrorCodeInvalidParams},
		{name: "no java files", args: map[string]interface{}{"path": empty}, code: ErrorCodeProjectNotFound},
		{name: "batch size zero", args: map[string]interface{}{"path": javaTree(t), "batch_size": float64(0)}, code: ErrorCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleIndexCodebase(context.Background(), callRequest("index_codebase", tt.args))
			requireMCPError(t, err, tt.code)
		})
	}

	_, err := s.handleIndexCodebase(context.Background(), mcp.CallToolRequest{})
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestSearchCode(t *testing.T) {
	s, _ := setupTestServer(t)
	ctx := context.Background()

	_, err := s.handleSearchCode(ctx, callRequest("search_code", map[string]interface{}{"query": "bark"}))
	requireMCPError(t, err, ErrorCodeNotIndexed)

	_, err = s.handleIndexCodebase(ctx, callRequest("index_codebase", map[string]interface{}{"path": javaTree(t)}))
	require.NoError(t, err)

	res, err := s.handleSearchCode(ctx, callRequest("search_code", map[string]interface{}{
		"query":       "bark",
		"search_mode": "keyword",
		"limit":       float64(5),
		"filters": map[string]interface{}{
			"packages": []interface{}{"com.zoo"},
			"kinds":    []interface{}{"method"},
		},
	}))
	require.NoError(t, err)

	out := decodeResult(t, res)
	assert.Equal(t, "keyword", out["search_mode"])
	results, ok := out["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 1)
	top := results[0].(map[string]interface{})
	assert.Equal(t, "Dog", top["type"])
	assert.Equal(t, "bark", top["operation"])
	assert.Equal(t, "public void bark()", top["signature"])
	assert.Equal(t, float64(1), top["rank"])

	res, err = s.handleSearchCode(ctx, callRequest("search_code", map[string]interface{}{"query": "eat food"}))
	require.NoError(t, err)
	assert.Equal(t, "hybrid", decodeResult(t, res)["search_mode"])
}

func TestSearchCode_InvalidParams(t *testing.T) {
	s, _ := setupTestServer(t)
	ctx := context.Background()

	_, err := s.handleSearchCode(ctx, callRequest("search_code", map[string]interface{}{"query": "  "}))
	requireMCPError(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleSearchCode(ctx, callRequest("search_code", map[string]interface{}{"query": "x", "limit": float64(101)}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchCode(ctx, callRequest("search_code", map[string]interface{}{"query": "x", "search_mode": "fuzzy"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchCode(ctx, callRequest("search_code", map[string]interface{}{
		"query":   "x",
		"filters": map[string]interface{}{"kinds": []interface{}{"field"}},
	}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestGetStatus(t *testing.T) {
	s, _ := setupTestServer(t)
	ctx := context.Background()
	root := javaTree(t)

	res, err := s.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{"path": root}))
	require.NoError(t, err)
	out := decodeResult(t, res)
	assert.Equal(t, false, out["indexed"])
	assert.Contains(t, out["message"], "not indexed")

	_, err = s.handleIndexCodebase(ctx, callRequest("index_codebase", map[string]interface{}{"path": root}))
	require.NoError(t, err)

	res, err = s.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{"path": root}))
	require.NoError(t, err)
	out = decodeResult(t, res)
	assert.Equal(t, true, out["indexed"])
	assert.Equal(t, false, out["indexing_in_progress"])
	assert.Equal(t, "done", out["state"])

	stats := out["statistics"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["chunks_count"])
	assert.Equal(t, float64(2), stats["types_count"])

	run := out["latest_run"].(map[string]interface{})
	assert.Equal(t, root, run["root"])
	assert.Equal(t, float64(2), run["chunks_indexed"])

	health := out["health"].(map[string]interface{})
	assert.Equal(t, true, health["database_accessible"])
	assert.Equal(t, true, health["fts_indexes_built"])

	_, err = s.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{"path": "relative"}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}

func TestValidatePath(t *testing.T) {
	root := javaTree(t)
	file := filepath.Join(root, "src", "com", "zoo", "Dog.java")

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "valid nested", path: root},
		{name: "empty", path: "", want: ErrPathRequired},
		{name: "relative", path: "src", want: ErrPathNotAbsolute},
		{name: "missing", path: filepath.Join(root, "nope"), want: ErrPathNotFound},
		{name: "file", path: file, want: ErrNotDirectory},
		{name: "no java", path: t.TempDir(), want: ErrNoJavaFiles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePath(tt.path)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseFilters(t *testing.T) {
	f, err := parseFilters(nil)
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = parseFilters(map[string]interface{}{
		"packages":      []interface{}{"com.shop"},
		"types":         []string{"OrderService"},
		"file_pattern":  "*/shop/*",
		"min_relevance": 0.25,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"com.shop"}, f.Packages)
	assert.Equal(t, []string{"OrderService"}, f.TypeNames)
	assert.Equal(t, "*/shop/*", f.FilePattern)
	assert.Equal(t, 0.25, f.MinRelevance)

	_, err = parseFilters("packages")
	assert.Error(t, err)
	_, err = parseFilters(map[string]interface{}{"packages": []interface{}{1}})
	assert.Error(t, err)
	_, err = parseFilters(map[string]interface{}{"min_relevance": 2.0})
	assert.Error(t, err)
}

func TestToolSchemas(t *testing.T) {
	assert.Equal(t, []string{"path"}, indexCodebaseTool().InputSchema.Required)
	assert.Equal(t, []string{"query"}, searchCodeTool().InputSchema.Required)
	assert.Empty(t, getStatusTool().InputSchema.Required)
	assert.Contains(t, searchCodeTool().InputSchema.Properties, "filters")
}
