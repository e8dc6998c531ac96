package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/javacontext/internal/embedder"
	"github.com/dshills/javacontext/internal/enricher"
	"github.com/dshills/javacontext/internal/storage"
	"github.com/dshills/javacontext/pkg/types"
)

// batchItem tracks one chunk through enrichment and embedding across
// batch attempts
type batchItem struct {
	chunk    types.Chunk
	enriched *types.EnrichedChunk
	record   *storage.ChunkRecord
	err      error
}

// processBatch enriches and embeds a batch. Items still unfinished after an
// attempt are retried up to BatchRetries times; finished items are not
// redone. A batch that never completes is recorded as failed and yields no
// records. On cancellation the finished items are returned as they are.
func (p *pipeline) processBatch(ctx context.Context, batch []types.Chunk) []*storage.ChunkRecord {
	items := make([]batchItem, len(batch))
	for i := range batch {
		items[i].chunk = batch[i]
	}

	for attempt := 0; ; attempt++ {
		p.runAttempt(ctx, items)
		if ctx.Err() != nil {
			break
		}

		unfinished, lastErr := unfinishedItems(items)
		if unfinished == 0 {
			break
		}
		if attempt >= p.cfg.BatchRetries {
			p.rs.batchFailed(chunkIDs(items), fmt.Errorf("%d of %d chunks unfinished after %d attempts: %w",
				unfinished, len(items), attempt+1, lastErr))
			return nil
		}

		p.idx.logger.Warn("ingest.batch.retry", "attempt", attempt+1, "unfinished", unfinished, "err", lastErr)
		select {
		case <-ctx.Done():
		case <-time.After(p.cfg.RetryBackoff * time.Duration(attempt+1)):
		}
	}

	records := make([]*storage.ChunkRecord, 0, len(items))
	for i := range items {
		if items[i].record != nil {
			records = append(records, items[i].record)
		}
	}
	return records
}

// runAttempt processes every unfinished item concurrently. The run-wide
// semaphore caps external calls across all in-flight batches.
func (p *pipeline) runAttempt(ctx context.Context, items []batchItem) {
	var wg sync.WaitGroup
	for i := range items {
		if items[i].record != nil {
			continue
		}
		if err := p.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.sem.Release(1)
			p.processItem(ctx, &items[i])
		}()
	}
	wg.Wait()
}

// processItem enriches the chunk once, then embeds its search text
func (p *pipeline) processItem(ctx context.Context, it *batchItem) {
	if it.enriched == nil {
		ec, err := enricher.Apply(ctx, p.idx.enricher, it.chunk)
		if ctx.Err() != nil {
			it.err = ctx.Err()
			return
		}
		if err != nil {
			p.idx.logger.Debug("ingest.enrich.fallback", "chunk", it.chunk.ID.String(), "op", it.chunk.DisplayName(), "err", err)
		}
		it.enriched = &ec
	}

	emb, err := p.idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
		Text: it.enriched.SearchText(),
		Role: embedder.RolePassage,
	})
	if err != nil {
		it.err = fmt.Errorf("embed %s: %w", it.chunk.DisplayName(), err)
		return
	}
	if emb == nil || len(emb.Vector) == 0 {
		it.err = fmt.Errorf("embed %s: %w", it.chunk.DisplayName(), errors.New("empty vector"))
		return
	}

	rec, err := toRecord(it.enriched, emb, p.rs.runID())
	if err != nil {
		it.err = err
		return
	}
	it.record = rec
	it.err = nil
}

func unfinishedItems(items []batchItem) (int, error) {
	n := 0
	var lastErr error
	for i := range items {
		if items[i].record == nil {
			n++
			if items[i].err != nil {
				lastErr = items[i].err
			}
		}
	}
	return n, lastErr
}

func chunkIDs(items []batchItem) []string {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].chunk.ID.String()
	}
	return ids
}

// toRecord projects an enriched, embedded chunk into its storage row
func toRecord(ec *types.EnrichedChunk, emb *embedder.Embedding, runID string) (*storage.ChunkRecord, error) {
	metadata, err := json.Marshal(ec.Metadata())
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return &storage.ChunkRecord{
		ID:            ec.ID.String(),
		Namespace:     ec.Context.NamespaceOrNone(),
		TypeName:      ec.Context.TypeName,
		OperationName: ec.OperationName,
		Kind:          string(ec.Kind),
		Signature:     ec.Signature,
		FilePath:      ec.FilePath,
		StartLine:     ec.StartLine,
		EndLine:       ec.EndLine,
		Code:          ec.Body,
		SearchText:    ec.SearchText(),
		Metadata:      metadata,
		Vector:        emb.Vector,
		Provider:      emb.Provider,
		Model:         emb.Model,
		RunID:         runID,
	}, nil
}
