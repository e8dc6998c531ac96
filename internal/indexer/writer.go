package indexer

import (
	"context"
	"time"

	"github.com/dshills/javacontext/internal/storage"
)

// writer is the only goroutine that calls UpsertChunks. It buffers records
// and writes when WriteBatchSize is reached, on every FlushInterval tick,
// and once more when the results channel closes. Writes are strictly
// sequential.
func (p *pipeline) writer(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	pending := make([]*storage.ChunkRecord, 0, p.cfg.WriteBatchSize)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		p.write(ctx, pending)
		pending = make([]*storage.ChunkRecord, 0, p.cfg.WriteBatchSize)
	}

	for {
		select {
		case recs, ok := <-p.results:
			if !ok {
				flush()
				return
			}
			pending = append(pending, recs...)
			if len(pending) >= p.cfg.WriteBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// write persists records, retrying BatchRetries times. It ignores run
// cancellation so finished work is never lost.
func (p *pipeline) write(ctx context.Context, records []*storage.ChunkRecord) {
	p.idx.setState(StateFlushing)
	defer func() {
		if !p.parsingDone.Load() {
			p.idx.setState(StateParsing)
		}
	}()

	wctx := context.WithoutCancel(ctx)
	var err error
	for attempt := 0; attempt <= p.cfg.BatchRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(p.cfg.RetryBackoff * time.Duration(attempt))
		}
		if err = p.idx.storage.UpsertChunks(wctx, records); err == nil {
			p.rs.written(len(records))
			p.idx.logger.Debug("ingest.write", "records", len(records))
			return
		}
		p.idx.logger.Warn("ingest.write.retry", "attempt", attempt+1, "records", len(records), "err", err)
	}

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	p.rs.writeFailed(ids, err)
}
