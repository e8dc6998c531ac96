// Package indexer runs the second phase of ingestion: it turns a Java tree
// into enriched, embedded chunks and persists them.
//
// # Basic Usage
//
//	idx := indexer.New(store, enr, emb, indexer.WithLogger(logger))
//
//	m, err := hierarchy.Load("hierarchy_map.json")
//	if err != nil {
//	    return err
//	}
//	summary, err := idx.Run(ctx, "/path/to/src", m, indexer.DefaultConfig())
//
// A nil map runs the hierarchy scan first.
//
// # Pipeline
//
// Parse workers chunk files on a bounded pool and stream chunks to a
// batcher. Batches of BatchSize chunks are processed with at most
// MaxInflightBatches in flight; within and across batches a single
// semaphore caps enrichment and embedding calls at MaxConcurrent. Finished
// batches go to one writer goroutine, which is the only caller of
// UpsertChunks. It flushes every WriteBatchSize records, on every
// FlushInterval tick, and once at the end.
//
// # Failures
//
// A file that fails to parse is logged and skipped. Enrichment failures fall
// back to a deterministic summary and never fail a chunk. Embedding failures
// are retried for the unfinished items of a batch, up to BatchRetries times;
// a batch that still has unfinished items is dropped whole and its chunk ids
// go to the failure log.
//
// # Cancellation
//
// Cancelling ctx stops new files and batches. Items already embedded are
// still written, and the run record is stored, before Run returns the
// summary together with the context error.
package indexer
