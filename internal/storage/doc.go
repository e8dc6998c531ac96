// Package storage provides SQLite-based persistence for indexed chunks.
//
// Every chunk is stored under its content-addressed hex id, so re-ingesting
// an unchanged tree replaces rows instead of adding them.
//
// # Database Schema
//
// Tables:
//   - chunks: one row per chunk with raw code, search text, metadata JSON and vector
//   - chunks_fts: FTS5 index over search text and signature, kept in sync by triggers
//   - ingest_runs: outcome of each ingestion run
//   - schema_version: applied semver migrations
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.javacontext/index.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	err = db.UpsertChunks(ctx, []*storage.ChunkRecord{record})
//
// # Search
//
// SearchVector ranks chunks by cosine similarity computed in Go. SearchText
// quotes each query term, ORs them together and normalizes BM25 scores into
// (0, 1]. Both accept SearchFilters on package, type, kind and file glob.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite. Building with
// -tags "sqlite_cgo,sqlite_fts5" switches to github.com/mattn/go-sqlite3.
//
// # Concurrency
//
// The pool holds a single connection. Callers that write should still funnel
// writes through one goroutine; the indexer does.
package storage
