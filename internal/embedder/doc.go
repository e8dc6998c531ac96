// Package embedder turns enriched chunk text into vectors.
//
// Providers are Jina AI, OpenAI, Ollama and an offline feature-hashing
// model. Each request carries a Role: stored chunks embed as RolePassage and
// search queries as RoleQuery. Jina maps the role to its retrieval task
// adapter; the other providers ignore it.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "jina", CacheSize: 10000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	v, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: enriched.SearchText(),
//	    Role: embedder.RolePassage,
//	})
//
// # Provider Selection
//
// With an empty Config.Provider the provider is picked from the environment:
//
//  1. JAVACONTEXT_EMBEDDING_PROVIDER if set
//  2. jina if JINA_API_KEY is set
//  3. openai if OPENAI_API_KEY is set
//  4. local otherwise
//
// # Caching and Retries
//
// Results are cached in an LRU keyed by the xxh3-128 hash of role and text.
// Network failures, 408, 429 and 5xx answers are retried with exponential
// backoff. Other client errors fail immediately wrapped in ErrProviderFailed.
package embedder
