package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/javacontext/internal/chunker"
	"github.com/dshills/javacontext/internal/embedder"
	"github.com/dshills/javacontext/internal/enricher"
	"github.com/dshills/javacontext/internal/hierarchy"
	"github.com/dshills/javacontext/internal/parser"
	"github.com/dshills/javacontext/internal/storage"
	"github.com/dshills/javacontext/pkg/types"
)

// ErrStorageUnavailable is the only error that aborts a run before any work
var ErrStorageUnavailable = errors.New("storage unavailable")

// State is the phase an Indexer is in
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateParsing
	StateFlushing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateParsing:
		return "parsing"
	case StateFlushing:
		return "flushing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Indexer coordinates the ingestion pipeline:
// scan -> parse -> batch -> enrich -> embed -> single writer
type Indexer struct {
	storage  storage.Storage
	enricher enricher.Enricher
	embedder embedder.Embedder

	logger   *slog.Logger
	failures *slog.Logger

	state atomic.Int32
}

// Option configures an Indexer
type Option func(*Indexer)

// WithLogger sets the operational logger
func WithLogger(l *slog.Logger) Option {
	return func(idx *Indexer) {
		if l != nil {
			idx.logger = l
		}
	}
}

// WithFailureLog sets the logger that receives one record per failed file,
// batch or write
func WithFailureLog(l *slog.Logger) Option {
	return func(idx *Indexer) {
		if l != nil {
			idx.failures = l
		}
	}
}

// New creates an Indexer. A nil enricher makes every chunk use the fallback
// enrichment; the embedder is required.
func New(store storage.Storage, enr enricher.Enricher, emb embedder.Embedder, opts ...Option) *Indexer {
	idx := &Indexer{
		storage:  store,
		enricher: enr,
		embedder: emb,
		logger:   slog.Default(),
		failures: discardLogger(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// State reports the current phase
func (idx *Indexer) State() State {
	return State(idx.state.Load())
}

func (idx *Indexer) setState(s State) {
	if prev := State(idx.state.Swap(int32(s))); prev != s {
		idx.logger.Debug("ingest.state", "from", prev.String(), "to", s.String())
	}
}

// Run ingests every Java file under root. When m is nil the hierarchy is
// scanned first, exactly once. Per-file and per-chunk failures never abort
// the run; only an unreachable store is fatal. On cancellation Run stops
// taking new files and batches, persists everything already embedded, and
// returns the partial summary together with the context error.
func (idx *Indexer) Run(ctx context.Context, root string, m *hierarchy.Map, cfg *Config) (*types.Summary, error) {
	start := time.Now()
	cfg = cfg.withDefaults()
	idx.setState(StateIdle)

	if err := idx.storage.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if idx.embedder == nil {
		return nil, errors.New("no embedder configured")
	}

	mode := hierarchy.Fallback
	if cfg.StrictSupertypes {
		mode = hierarchy.Strict
	}

	if m == nil {
		idx.setState(StateScanning)
		scanned, _, err := hierarchy.Scan(ctx, root,
			hierarchy.WithWorkers(cfg.Workers),
			hierarchy.WithLogger(idx.logger),
			hierarchy.WithExcludeDirs(cfg.ExcludeDirs...))
		if err != nil {
			idx.setState(StateDone)
			return nil, fmt.Errorf("scan hierarchy: %w", err)
		}
		m = scanned
	}

	files, err := parser.DiscoverFiles(root, cfg.ExcludeDirs)
	if err != nil {
		idx.setState(StateDone)
		return nil, fmt.Errorf("discover files: %w", err)
	}

	rs := &runState{
		idx: idx,
		summary: &types.Summary{
			RunID:       uuid.NewString(),
			Root:        root,
			TypesMapped: m.Len(),
		},
	}
	idx.logger.Info("ingest.start", "run", rs.summary.RunID, "root", root, "files", len(files), "types", m.Len())

	idx.setState(StateParsing)
	p := &pipeline{
		idx:     idx,
		cfg:     cfg,
		rs:      rs,
		chunker: chunker.New(m, chunker.WithMaxBodyBytes(cfg.MaxBodyBytes), chunker.WithResolution(mode)),
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		chunks:  make(chan types.Chunk, cfg.BatchSize*2),
		results: make(chan []*storage.ChunkRecord, cfg.MaxInflightBatches),
	}
	p.run(ctx, files)

	summary := rs.finish(ctx.Err() != nil, time.Since(start))
	idx.recordRun(ctx, summary, start)
	idx.setState(StateDone)

	idx.logger.Info("ingest.done",
		"run", summary.RunID,
		"files", summary.FilesScanned,
		"files_failed", summary.FilesFailed,
		"chunks", summary.ChunksExtracted,
		"indexed", summary.ChunksIndexed,
		"chunks_failed", summary.ChunksFailed,
		"batches_failed", summary.BatchesFailed,
		"cancelled", summary.Cancelled,
		"elapsed", summary.Duration)

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("ingestion cancelled: %w", err)
	}
	return summary, nil
}

// recordRun stores the run outcome. It is bookkeeping, so failures are
// logged and swallowed.
func (idx *Indexer) recordRun(ctx context.Context, s *types.Summary, start time.Time) {
	run := &storage.IngestRun{
		ID:              s.RunID,
		Root:            s.Root,
		StartedAt:       start,
		FinishedAt:      start.Add(s.Duration),
		FilesScanned:    s.FilesScanned,
		FilesFailed:     s.FilesFailed,
		TypesMapped:     s.TypesMapped,
		ChunksExtracted: s.ChunksExtracted,
		ChunksIndexed:   s.ChunksIndexed,
		ChunksFailed:    s.ChunksFailed,
		BatchesFailed:   s.BatchesFailed,
		Cancelled:       s.Cancelled,
	}
	if err := idx.storage.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		idx.logger.Warn("ingest.run.record_failed", "run", s.RunID, "err", err)
	}
}

// runState collects the summary from concurrent stages
type runState struct {
	idx *Indexer

	mu      sync.Mutex
	summary *types.Summary
}

func (rs *runState) fileDone(n int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.summary.FilesScanned++
	rs.summary.ChunksExtracted += n
}

func (rs *runState) fileFailed(path string, err error) {
	rs.idx.logger.Warn("ingest.file.failed", "path", path, "err", err)
	rs.idx.failures.Error("ingest.file.failed", "run", rs.summary.RunID, "path", path, "err", err.Error())

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.summary.FilesScanned++
	rs.summary.FilesFailed++
	rs.summary.AddError(fmt.Sprintf("%s: %v", path, err))
}

func (rs *runState) batchFailed(ids []string, err error) {
	rs.idx.logger.Error("ingest.batch.failed", "chunks", len(ids), "err", err)
	rs.idx.failures.Error("ingest.batch.failed", "run", rs.summary.RunID, "chunk_ids", ids, "err", err.Error())

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.summary.BatchesFailed++
	rs.summary.ChunksFailed += len(ids)
	rs.summary.AddError(fmt.Sprintf("batch of %d chunks: %v", len(ids), err))
}

func (rs *runState) written(n int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.summary.ChunksIndexed += n
}

func (rs *runState) writeFailed(ids []string, err error) {
	rs.idx.logger.Error("ingest.write.failed", "records", len(ids), "err", err)
	rs.idx.failures.Error("ingest.write.failed", "run", rs.summary.RunID, "chunk_ids", ids, "err", err.Error())

	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.summary.ChunksFailed += len(ids)
	rs.summary.AddError(fmt.Sprintf("write of %d records: %v", len(ids), err))
}

func (rs *runState) runID() string {
	return rs.summary.RunID
}

func (rs *runState) finish(cancelled bool, d time.Duration) *types.Summary {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.summary.Cancelled = cancelled
	rs.summary.Duration = d
	out := *rs.summary
	return &out
}

// pipeline is the per-run wiring of the concurrent stages
type pipeline struct {
	idx     *Indexer
	cfg     *Config
	rs      *runState
	chunker *chunker.Chunker
	sem     *semaphore.Weighted

	chunks  chan types.Chunk
	results chan []*storage.ChunkRecord

	parsingDone atomic.Bool
}

// run drives parse workers, the batcher and the writer until all three
// have drained
func (p *pipeline) run(ctx context.Context, files []string) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		p.writer(ctx)
	}()

	go p.parse(ctx, files)

	p.batch(ctx)
	close(p.results)
	<-writerDone
}

// parse chunks files on a bounded worker pool. Chunks of one file are sent
// in declaration order.
func (p *pipeline) parse(ctx context.Context, files []string) {
	defer close(p.chunks)

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			chunks, err := p.chunker.ChunkFile(path)
			if err != nil {
				p.rs.fileFailed(path, err)
				return nil
			}
			p.rs.fileDone(len(chunks))
			for _, c := range chunks {
				select {
				case p.chunks <- c:
				case <-ctx.Done():
					return nil
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	p.parsingDone.Store(true)
}

// batch groups incoming chunks into batches and processes up to
// MaxInflightBatches of them at once
func (p *pipeline) batch(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(p.cfg.MaxInflightBatches)

	dispatch := func(batch []types.Chunk) {
		g.Go(func() error {
			if recs := p.processBatch(ctx, batch); len(recs) > 0 {
				p.results <- recs
			}
			return nil
		})
	}

	buf := make([]types.Chunk, 0, p.cfg.BatchSize)
	for c := range p.chunks {
		if ctx.Err() != nil {
			continue // drain so parse workers can exit
		}
		buf = append(buf, c)
		if len(buf) >= p.cfg.BatchSize {
			dispatch(buf)
			buf = make([]types.Chunk, 0, p.cfg.BatchSize)
		}
	}
	if len(buf) > 0 && ctx.Err() == nil {
		dispatch(buf)
	}
	_ = g.Wait()
}
