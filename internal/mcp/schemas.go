package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/javacontext/internal/indexer"
	"github.com/dshills/javacontext/internal/searcher"
)

func stringArray(description string, items map[string]any) map[string]any {
	return map[string]any{"type": "array", "description": description, "items": items}
}

// filterProperties mirrors storage.SearchFilters
var filterProperties = map[string]any{
	"packages": stringArray("Package names; None selects the default package", map[string]any{"type": "string"}),
	"types":    stringArray("Simple names of declaring types", map[string]any{"type": "string"}),
	"kinds": stringArray("Operation kinds", map[string]any{
		"type": "string",
		"enum": []string{"method", "constructor"},
	}),
	"file_pattern": map[string]any{
		"type":        "string",
		"description": "Glob over file paths, e.g. '*/service/*'",
	},
	"min_relevance": map[string]any{
		"type":        "number",
		"description": "Drop results scoring below this (0.0-1.0)",
		"minimum":     0.0,
		"maximum":     1.0,
	},
}

func indexCodebaseTool() mcp.Tool {
	return mcp.NewTool("index_codebase",
		mcp.WithDescription("Index a Java source tree: map the type hierarchy, then enrich, embed and store every public method and constructor"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path to the source root; it must contain .java files"),
		),
		mcp.WithBoolean("rebuild_hierarchy",
			mcp.Description("Rescan the tree for the hierarchy map. When false the saved artifact is reused"),
			mcp.DefaultBool(true),
		),
		mcp.WithNumber("batch_size",
			mcp.Description("Chunks per enrichment and embedding batch"),
			mcp.DefaultNumber(float64(indexer.DefaultConfig().BatchSize)),
			mcp.Min(1),
			mcp.Max(maxBatchSize),
		),
	)
}

func searchCodeTool() mcp.Tool {
	return mcp.NewTool("search_code",
		mcp.WithDescription("Search indexed Java operations with natural language or keyword queries"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language question or keywords"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results"),
			mcp.DefaultNumber(searcher.DefaultLimit),
			mcp.Min(1),
			mcp.Max(searcher.MaxLimit),
		),
		mcp.WithObject("filters",
			mcp.Description("Optional filters to narrow the search"),
			mcp.Properties(filterProperties),
		),
		mcp.WithString("search_mode",
			mcp.Description("hybrid fuses vector and BM25 results, vector is semantic only, keyword is BM25 only"),
			mcp.Enum(string(searcher.SearchModeHybrid), string(searcher.SearchModeVector), string(searcher.SearchModeKeyword)),
			mcp.DefaultString(string(searcher.SearchModeHybrid)),
		),
	)
}

func getStatusTool() mcp.Tool {
	return mcp.NewTool("get_status",
		mcp.WithDescription("Report index statistics, health and the latest ingestion run"),
		mcp.WithString("path",
			mcp.Description("Absolute source root; limits latest_run to runs over that root"),
		),
	)
}
