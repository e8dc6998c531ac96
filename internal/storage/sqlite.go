package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidRecord is returned for records that cannot be stored
	ErrInvalidRecord = errors.New("invalid record")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite tolerates one writer; a single connection also keeps
	// ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Ping verifies the database answers queries
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// Chunk operations

const upsertChunkQuery = `
	INSERT INTO chunks (
		id, namespace, type_name, operation_name, kind, signature,
		file_path, start_line, end_line, code, search_text, metadata,
		vector, dimension, provider, model, run_id, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		namespace = excluded.namespace,
		type_name = excluded.type_name,
		operation_name = excluded.operation_name,
		kind = excluded.kind,
		signature = excluded.signature,
		file_path = excluded.file_path,
		start_line = excluded.start_line,
		end_line = excluded.end_line,
		code = excluded.code,
		search_text = excluded.search_text,
		metadata = excluded.metadata,
		vector = excluded.vector,
		dimension = excluded.dimension,
		provider = excluded.provider,
		model = excluded.model,
		run_id = excluded.run_id,
		updated_at = excluded.updated_at
`

// UpsertChunks writes all records in one transaction. A record whose id is
// already stored replaces the old row, so repeated ingestion never
// duplicates chunks.
func (s *SQLiteStorage) UpsertChunks(ctx context.Context, records []*ChunkRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.ID == "" {
			return fmt.Errorf("%w: chunk id is required", ErrInvalidRecord)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertChunkQuery)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for _, r := range records {
		var blob []byte
		if len(r.Vector) > 0 {
			blob = serializeVector(r.Vector)
		}
		metadata := r.Metadata
		if len(metadata) == 0 {
			metadata = []byte("{}")
		}
		_, err := stmt.ExecContext(ctx,
			r.ID, r.Namespace, r.TypeName, r.OperationName, r.Kind, r.Signature,
			r.FilePath, r.StartLine, r.EndLine, r.Code, r.SearchText, string(metadata),
			blob, len(r.Vector), r.Provider, r.Model, r.RunID, now, now)
		if err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", r.ID, err)
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	return nil
}

// GetChunk loads a chunk by id
func (s *SQLiteStorage) GetChunk(ctx context.Context, id string) (*ChunkRecord, error) {
	query := `
		SELECT id, namespace, type_name, operation_name, kind, signature,
		       file_path, start_line, end_line, code, search_text, metadata,
		       vector, provider, model, run_id, created_at, updated_at
		FROM chunks
		WHERE id = ?
	`
	var r ChunkRecord
	var filePath, provider, model, runID sql.NullString
	var startLine, endLine sql.NullInt64
	var metadata string
	var blob []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.Namespace, &r.TypeName, &r.OperationName, &r.Kind, &r.Signature,
		&filePath, &startLine, &endLine, &r.Code, &r.SearchText, &metadata,
		&blob, &provider, &model, &runID, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.FilePath = filePath.String
	r.StartLine = int(startLine.Int64)
	r.EndLine = int(endLine.Int64)
	r.Metadata = []byte(metadata)
	r.Provider = provider.String
	r.Model = model.String
	r.RunID = runID.String
	if len(blob) > 0 {
		r.Vector = deserializeVector(blob)
	}
	return &r, nil
}

// CountChunks returns the number of distinct stored chunks
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&n)
	return n, err
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	return searchVector(ctx, s.db, queryVector, limit, filters)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int, filters *SearchFilters) ([]TextResult, error) {
	return searchText(ctx, s.db, query, limit, filters)
}

// Ingest run operations

// RecordRun inserts or replaces an ingest run
func (s *SQLiteStorage) RecordRun(ctx context.Context, run *IngestRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidRecord)
	}
	query := `
		INSERT INTO ingest_runs (
			id, root, started_at, finished_at, files_scanned, files_failed,
			types_mapped, chunks_extracted, chunks_indexed, chunks_failed,
			batches_failed, cancelled
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			files_scanned = excluded.files_scanned,
			files_failed = excluded.files_failed,
			types_mapped = excluded.types_mapped,
			chunks_extracted = excluded.chunks_extracted,
			chunks_indexed = excluded.chunks_indexed,
			chunks_failed = excluded.chunks_failed,
			batches_failed = excluded.batches_failed,
			cancelled = excluded.cancelled
	`
	var finished sql.NullTime
	if !run.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: run.FinishedAt.UTC(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Root, run.StartedAt.UTC(), finished,
		run.FilesScanned, run.FilesFailed, run.TypesMapped, run.ChunksExtracted,
		run.ChunksIndexed, run.ChunksFailed, run.BatchesFailed, run.Cancelled)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// LatestRun returns the most recently started run for root, or for any root
// when root is empty.
func (s *SQLiteStorage) LatestRun(ctx context.Context, root string) (*IngestRun, error) {
	query := `
		SELECT id, root, started_at, finished_at, files_scanned, files_failed,
		       types_mapped, chunks_extracted, chunks_indexed, chunks_failed,
		       batches_failed, cancelled
		FROM ingest_runs
	`
	var args []any
	if root != "" {
		query += " WHERE root = ?"
		args = append(args, root)
	}
	query += " ORDER BY started_at DESC, rowid DESC LIMIT 1"

	var run IngestRun
	var finished sql.NullTime
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&run.ID, &run.Root, &run.StartedAt, &finished,
		&run.FilesScanned, &run.FilesFailed, &run.TypesMapped, &run.ChunksExtracted,
		&run.ChunksIndexed, &run.ChunksFailed, &run.BatchesFailed, &run.Cancelled,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*IndexStatus, error) {
	status := &IndexStatus{}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(vector),
		       COUNT(DISTINCT namespace),
		       COUNT(DISTINCT namespace || '::' || type_name)
		FROM chunks
	`).Scan(&status.ChunksCount, &status.EmbeddingsCount, &status.PackagesCount, &status.TypesCount)
	if err != nil {
		return nil, err
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	if v, err := SchemaVersion(ctx, s.db); err == nil {
		status.SchemaVersion = v
	}

	run, err := s.LatestRun(ctx, "")
	switch {
	case err == nil:
		status.LatestRun = run
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	var ftsName string
	ftsErr := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='chunks_fts'").Scan(&ftsName)

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		FTSIndexesBuilt:     ftsErr == nil,
	}
	return status, nil
}
