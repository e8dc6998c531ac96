package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/javacontext/internal/embedder"
	"github.com/dshills/javacontext/internal/enricher"
	"github.com/dshills/javacontext/internal/hierarchy"
	"github.com/dshills/javacontext/internal/storage"
	"github.com/dshills/javacontext/pkg/types"
)

const animalSrc = `package com.zoo;

public class Animal {
    public void eat() {
        System.out.println("eat");
    }

    public void sleep() {
        System.out.println("sleep");
    }
}
`

const dogSrc = `package com.zoo;

public class Dog extends Animal {
    private String breed;

    public Dog(String breed) {
        this.breed = breed;
    }

    public void bark() {
        System.out.println("woof");
    }
}
`

const brokenSrc = `package com.zoo;

public class Broken {
    public void f( {
    }
`

// stubEmbedder implements embedder.Embedder for testing
type stubEmbedder struct {
	mu      sync.Mutex
	calls   int
	perText map[string]int
	fail    func(text string, attempt int) error
	onCall  func(call int)
}

func (s *stubEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	if s.perText == nil {
		s.perText = make(map[string]int)
	}
	s.perText[req.Text]++
	attempt := s.perText[req.Text]
	s.mu.Unlock()

	if s.onCall != nil {
		s.onCall(call)
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.fail != nil {
		if err := s.fail(req.Text, attempt); err != nil {
			return nil, err
		}
	}
	if req.Role != embedder.RolePassage {
		return nil, fmt.Errorf("unexpected role %q", req.Role)
	}
	return &embedder.Embedding{
		Vector:    []float32{float32(len(req.Text)), 1, 0, 0},
		Dimension: 4,
		Provider:  "stub",
		Model:     "stub-v1",
	}, nil
}

func (s *stubEmbedder) Dimension() int   { return 4 }
func (s *stubEmbedder) Provider() string { return "stub" }
func (s *stubEmbedder) Model() string    { return "stub-v1" }
func (s *stubEmbedder) Close() error     { return nil }

func (s *stubEmbedder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// serialStore fails any write that starts while another is still running
type serialStore struct {
	*storage.SQLiteStorage

	inFlight   atomic.Int32
	overlaps   atomic.Int32
	writes     atomic.Int32
	failWrites atomic.Bool
	pingErr    error
}

func (s *serialStore) Ping(ctx context.Context) error {
	if s.pingErr != nil {
		return s.pingErr
	}
	return s.SQLiteStorage.Ping(ctx)
}

func (s *serialStore) UpsertChunks(ctx context.Context, records []*storage.ChunkRecord) error {
	defer s.inFlight.Add(-1)
	if s.inFlight.Add(1) > 1 {
		s.overlaps.Add(1)
		return errors.New("concurrent write")
	}
	s.writes.Add(1)
	time.Sleep(2 * time.Millisecond)
	if s.failWrites.Load() {
		return errors.New("disk full")
	}
	return s.SQLiteStorage.UpsertChunks(ctx, records)
}

// syncBuffer is a bytes.Buffer safe for concurrent log writes
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func setupTestStorage(t testing.TB) *serialStore {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err, "Failed to create test storage")
	t.Cleanup(func() { _ = store.Close() })
	return &serialStore{SQLiteStorage: store}
}

func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func zooTree(t testing.TB) string {
	t.Helper()
	dir := t.TempDir()
	createTestFile(t, dir, "src/com/zoo/Animal.java", animalSrc)
	createTestFile(t, dir, "src/com/zoo/Dog.java", dogSrc)
	return dir
}

func fastConfig() *Config {
	return &Config{
		Workers:       2,
		BatchSize:     2,
		FlushInterval: 10 * time.Millisecond,
		BatchRetries:  2,
		RetryBackoff:  time.Millisecond,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRun_IndexesTree(t *testing.T) {
	store := setupTestStorage(t)
	emb := &stubEmbedder{}
	idx := New(store, enricher.NewMock(), emb, WithLogger(quietLogger()))
	dir := zooTree(t)

	summary, err := idx.Run(context.Background(), dir, nil, fastConfig())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, dir, summary.Root)
	assert.Equal(t, 2, summary.FilesScanned)
	assert.Zero(t, summary.FilesFailed)
	assert.Equal(t, 2, summary.TypesMapped)
	assert.Equal(t, 4, summary.ChunksExtracted)
	assert.Equal(t, 4, summary.ChunksIndexed)
	assert.Zero(t, summary.ChunksFailed)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, StateDone, idx.State())

	n, err := store.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	id := types.ComputeChunkID("com.zoo", "Dog", "public void bark()")
	rec, err := store.GetChunk(context.Background(), id.String())
	require.NoError(t, err)
	assert.Equal(t, "bark", rec.OperationName)
	assert.Equal(t, summary.RunID, rec.RunID)
	assert.Contains(t, rec.SearchText, "Inherited Methods: [eat, sleep]")
	assert.Contains(t, rec.Code, "woof")

	var meta types.ChunkMetadata
	require.NoError(t, json.Unmarshal(rec.Metadata, &meta))
	assert.Equal(t, []string{"eat", "sleep"}, meta.InheritedMethods)
	assert.Equal(t, types.SourceModel, meta.EnrichmentSource)
	assert.Equal(t, "Dog", meta.ClassName)

	ctorID := types.ComputeChunkID("com.zoo", "Dog", "public <Constructor> Dog(String breed)")
	ctor, err := store.GetChunk(context.Background(), ctorID.String())
	require.NoError(t, err)
	assert.Equal(t, types.ConstructorName, ctor.OperationName)
	assert.Equal(t, string(types.KindConstructor), ctor.Kind)

	run, err := store.LatestRun(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, run.ID)
	assert.Equal(t, 4, run.ChunksIndexed)
}

func TestRun_PartialFailure(t *testing.T) {
	store := setupTestStorage(t)
	failures := &syncBuffer{}
	idx := New(store, enricher.NewMock(), &stubEmbedder{},
		WithLogger(quietLogger()),
		WithFailureLog(slog.New(slog.NewJSONHandler(failures, nil))))

	dir := zooTree(t)
	brokenPath := createTestFile(t, dir, "src/com/zoo/Broken.java", brokenSrc)

	summary, err := idx.Run(context.Background(), dir, nil, fastConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.FilesScanned)
	assert.Equal(t, 1, summary.FilesFailed)
	assert.Equal(t, 4, summary.ChunksIndexed)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "Broken.java")

	log := failures.String()
	assert.Contains(t, log, `"msg":"ingest.file.failed"`)
	assert.Contains(t, log, brokenPath)
}

func TestRun_IdempotentReindex(t *testing.T) {
	store := setupTestStorage(t)
	idx := New(store, enricher.NewMock(), &stubEmbedder{}, WithLogger(quietLogger()))
	dir := zooTree(t)
	ctx := context.Background()

	_, err := idx.Run(ctx, dir, nil, fastConfig())
	require.NoError(t, err)
	first, err := store.CountChunks(ctx)
	require.NoError(t, err)

	second, err := idx.Run(ctx, dir, nil, fastConfig())
	require.NoError(t, err)
	assert.Equal(t, 4, second.ChunksIndexed)

	count, err := store.CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, count)
}

func TestRun_SingleWriter(t *testing.T) {
	store := setupTestStorage(t)
	idx := New(store, enricher.NewMock(), &stubEmbedder{}, WithLogger(quietLogger()))

	dir := t.TempDir()
	for i := range 12 {
		createTestFile(t, dir, fmt.Sprintf("p/Svc%d.java", i), fmt.Sprintf(`package p;

public class Svc%d {
    public int a() { return 1; }
    public int b() { return 2; }
    public int c() { return 3; }
}
`, i))
	}

	cfg := &Config{
		Workers:            4,
		BatchSize:          1,
		WriteBatchSize:     1,
		FlushInterval:      time.Millisecond,
		MaxConcurrent:      8,
		MaxInflightBatches: 6,
		BatchRetries:       0,
		RetryBackoff:       time.Millisecond,
	}
	summary, err := idx.Run(context.Background(), dir, nil, cfg)
	require.NoError(t, err)

	assert.Zero(t, store.overlaps.Load(), "storage writes overlapped")
	assert.Greater(t, store.writes.Load(), int32(1))
	assert.Equal(t, 36, summary.ChunksIndexed)
	assert.Zero(t, summary.ChunksFailed)
}

func TestRun_EmbeddingFailureExcludesBatch(t *testing.T) {
	store := setupTestStorage(t)
	failures := &syncBuffer{}
	emb := &stubEmbedder{fail: func(text string, _ int) error {
		if strings.Contains(text, "bark()") {
			return errors.New("embedding service down")
		}
		return nil
	}}
	idx := New(store, enricher.NewMock(), emb,
		WithLogger(quietLogger()),
		WithFailureLog(slog.New(slog.NewJSONHandler(failures, nil))))

	dir := t.TempDir()
	createTestFile(t, dir, "Dog.java", dogSrc)

	cfg := fastConfig()
	cfg.BatchSize = 10
	cfg.BatchRetries = 2
	summary, err := idx.Run(context.Background(), dir, hierarchy.Empty(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ChunksExtracted)
	assert.Zero(t, summary.ChunksIndexed)
	assert.Equal(t, 1, summary.BatchesFailed)
	assert.Equal(t, 2, summary.ChunksFailed)

	n, err := store.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "a failed batch is not persisted")

	// The constructor embedded once; bark was attempted 1 + BatchRetries times
	assert.Equal(t, 1+3, emb.callCount())

	barkID := types.ComputeChunkID("com.zoo", "Dog", "public void bark()").String()
	assert.Contains(t, failures.String(), `"msg":"ingest.batch.failed"`)
	assert.Contains(t, failures.String(), barkID)
}

func TestRun_TransientEmbeddingFailureRetriesOnlyUnfinished(t *testing.T) {
	store := setupTestStorage(t)
	emb := &stubEmbedder{fail: func(text string, attempt int) error {
		if strings.Contains(text, "bark()") && attempt == 1 {
			return errors.New("503")
		}
		return nil
	}}
	idx := New(store, enricher.NewMock(), emb, WithLogger(quietLogger()))

	dir := t.TempDir()
	createTestFile(t, dir, "Dog.java", dogSrc)

	cfg := fastConfig()
	cfg.BatchSize = 10
	summary, err := idx.Run(context.Background(), dir, hierarchy.Empty(), cfg)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ChunksIndexed)
	assert.Zero(t, summary.BatchesFailed)
	assert.Equal(t, 3, emb.callCount())
}

func TestRun_WriteFailureIsCounted(t *testing.T) {
	store := setupTestStorage(t)
	store.failWrites.Store(true)
	failures := &syncBuffer{}
	idx := New(store, enricher.NewMock(), &stubEmbedder{},
		WithLogger(quietLogger()),
		WithFailureLog(slog.New(slog.NewJSONHandler(failures, nil))))

	summary, err := idx.Run(context.Background(), zooTree(t), nil, fastConfig())
	require.NoError(t, err)

	assert.Zero(t, summary.ChunksIndexed)
	assert.Equal(t, 4, summary.ChunksFailed)
	assert.Contains(t, failures.String(), `"msg":"ingest.write.failed"`)
}

func TestRun_StorageUnavailable(t *testing.T) {
	store := setupTestStorage(t)
	store.pingErr = errors.New("database is locked")
	idx := New(store, nil, &stubEmbedder{}, WithLogger(quietLogger()))

	_, err := idx.Run(context.Background(), zooTree(t), nil, nil)
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestRun_MissingRoot(t *testing.T) {
	idx := New(setupTestStorage(t), nil, &stubEmbedder{}, WithLogger(quietLogger()))
	_, err := idx.Run(context.Background(), filepath.Join(t.TempDir(), "nope"), hierarchy.Empty(), nil)
	assert.Error(t, err)
}

func TestRun_CancellationFlushesFinishedWork(t *testing.T) {
	store := setupTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	emb := &stubEmbedder{}
	emb.onCall = func(call int) {
		if call == 1 {
			cancel()
		}
	}
	// Calls after the first see a cancelled context
	emb.fail = func(string, int) error {
		if emb.callCount() > 1 {
			return context.Canceled
		}
		return nil
	}

	idx := New(store, enricher.NewMock(), emb, WithLogger(quietLogger()))
	dir := t.TempDir()
	createTestFile(t, dir, "Dog.java", dogSrc)

	cfg := fastConfig()
	cfg.BatchSize = 10
	cfg.MaxConcurrent = 1
	summary, err := idx.Run(ctx, dir, hierarchy.Empty(), cfg)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)

	assert.True(t, summary.Cancelled)
	assert.Equal(t, 1, summary.ChunksIndexed)
	assert.Zero(t, summary.BatchesFailed)

	n, err := store.CountChunks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	run, err := store.LatestRun(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, run.Cancelled)
}

func TestRun_OversizedAndFallbackEnrichment(t *testing.T) {
	store := setupTestStorage(t)
	mock := enricher.NewMock()
	idx := New(store, mock, &stubEmbedder{}, WithLogger(quietLogger()))
	dir := t.TempDir()
	createTestFile(t, dir, "Dog.java", dogSrc)

	cfg := fastConfig()
	cfg.MaxBodyBytes = 5
	summary, err := idx.Run(context.Background(), dir, hierarchy.Empty(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ChunksIndexed)
	assert.Zero(t, mock.Calls(), "oversized bodies never reach the model")

	rec, err := store.GetChunk(context.Background(), types.ComputeChunkID("com.zoo", "Dog", "public void bark()").String())
	require.NoError(t, err)
	var meta types.ChunkMetadata
	require.NoError(t, json.Unmarshal(rec.Metadata, &meta))
	assert.Equal(t, types.SourceOversized, meta.EnrichmentSource)
	assert.True(t, meta.Truncated)

	// Without an enricher every chunk takes the fallback
	store2 := setupTestStorage(t)
	_, err = New(store2, nil, &stubEmbedder{}, WithLogger(quietLogger())).Run(context.Background(), dir, hierarchy.Empty(), fastConfig())
	require.NoError(t, err)
	rec, err = store2.GetChunk(context.Background(), types.ComputeChunkID("com.zoo", "Dog", "public void bark()").String())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(rec.Metadata, &meta))
	assert.Equal(t, types.SourceFallback, meta.EnrichmentSource)
	assert.Equal(t, "bark — enrichment unavailable", meta.Summary)
}

func TestRun_PreloadedHierarchy(t *testing.T) {
	dir := zooTree(t)
	m, _, err := hierarchy.Scan(context.Background(), dir, hierarchy.WithLogger(quietLogger()))
	require.NoError(t, err)

	store := setupTestStorage(t)
	idx := New(store, enricher.NewMock(), &stubEmbedder{}, WithLogger(quietLogger()))
	assert.Equal(t, StateIdle, idx.State())

	summary, err := idx.Run(context.Background(), dir, m, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TypesMapped)
	assert.Equal(t, 4, summary.ChunksIndexed)
	assert.Equal(t, StateDone, idx.State())
}

func TestConfigWithDefaults(t *testing.T) {
	d := (*Config)(nil).withDefaults()
	assert.Equal(t, DefaultConfig(), d)

	c := (&Config{BatchSize: 7, BatchRetries: 0, ExcludeDirs: []string{"gen"}}).withDefaults()
	assert.Equal(t, 7, c.BatchSize)
	assert.Zero(t, c.BatchRetries, "zero retries is a valid setting")
	assert.Equal(t, 100, c.WriteBatchSize)
	assert.Equal(t, 5, c.MaxConcurrent)
	assert.Equal(t, []string{"gen"}, c.ExcludeDirs)

	c = (&Config{BatchRetries: -1}).withDefaults()
	assert.Equal(t, 3, c.BatchRetries)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "flushing", StateFlushing.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestIndexLock_ConcurrentAcquisition(t *testing.T) {
	var lock IndexLock
	var acquired atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lock.TryAcquire() {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acquired.Load())
	assert.True(t, lock.Held())
	lock.Release()
	assert.False(t, lock.Held())
	assert.True(t, lock.TryAcquire())
}

func TestOpenFailureLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "errors.log")
	logger, closer, err := OpenFailureLog(path)
	require.NoError(t, err)
	logger.Error("ingest.file.failed", "path", "A.java")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "ingest.file.failed", rec["msg"])
	assert.Equal(t, "A.java", rec["path"])
}
