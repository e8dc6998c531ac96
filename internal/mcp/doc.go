// Package mcp exposes the Java index over the Model Context Protocol.
//
// Tools:
//   - index_codebase: scan the hierarchy, save the artifact, run ingestion.
//     Only one run may be active; a concurrent call fails with
//     ErrorCodeIndexingInProgress.
//   - search_code: hybrid, vector or keyword search over indexed operations.
//   - get_status: chunk and type counts, health flags and the latest run.
//
// The server speaks JSON-RPC over stdio, so all logging goes to stderr.
//
//	cfg, err := config.Load("")
//	srv, err := mcp.NewServer(cfg, mcp.WithLogger(logger))
//	err = srv.Serve(ctx)
//
// Failures are returned as *MCPError with a JSON-RPC style code and a data
// payload naming the offending parameter.
package mcp
