// Package enricher attaches a one-sentence summary and 3-5 search keywords
// to each chunk using a language model.
//
// Providers:
//   - openai: /chat/completions with a JSON object response format
//   - ollama: /api/chat with format "json"
//   - mock: deterministic keywords, no network
//
// Model output is never trusted: Validate trims, de-duplicates and bounds
// the keywords, and EnrichChunk substitutes a deterministic fallback for any
// error or malformed answer, so enrichment never fails a run:
//
//	e, _ := enricher.New(enricher.Config{Provider: "ollama"})
//	ec := enricher.EnrichChunk(ctx, e, chunk)
//	fmt.Println(ec.Summary, ec.Keywords, ec.Source)
//
// Chunks truncated by the size guard are never sent to the model.
package enricher
