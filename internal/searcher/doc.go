// Package searcher answers natural-language queries over indexed Java
// operations.
//
// Three modes are supported:
//   - Hybrid (default): vector and BM25 search run concurrently and are
//     merged with Reciprocal Rank Fusion. Either half may fail alone.
//   - Vector: cosine similarity against the query embedding.
//   - Keyword: BM25 over the FTS5 index of search text and signatures.
//
// Queries are embedded with embedder.RoleQuery, the counterpart of the
// passage role used at ingestion.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(store, emb)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:   "cancel an order and refund",
//	    Limit:   10,
//	    Filters: &storage.SearchFilters{Kinds: []string{"method"}},
//	})
//	for _, r := range resp.Results {
//	    fmt.Printf("[%d] %s.%s (%.3f)\n", r.Rank, r.TypeName, r.OperationName, r.RelevanceScore)
//	}
//
// # RRF
//
// Each list contributes 1/(k + rank) per chunk, with k = 60 unless
// RRFConstant overrides it. Fused scores are small; only their order is
// meaningful.
//
// # Caching
//
// With UseCache set, responses are kept in an LRU (1000 entries by default)
// keyed by the SHA-256 of the normalized request and expire after CacheTTL.
// Call InvalidateCache after re-indexing.
package searcher
