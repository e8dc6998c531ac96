package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/javacontext/internal/parser"
	"github.com/dshills/javacontext/pkg/types"
)

// ScanStats reports the outcome of a hierarchy scan
type ScanStats struct {
	FilesScanned int // every discovered file, FilesFailed included
	FilesFailed  int
	TypesFound   int
	FailedFiles  []string
	Duration     time.Duration
}

// Scanner builds a hierarchy Map from a source tree
type Scanner struct {
	parser      *parser.Parser
	workers     int
	excludeDirs []string
	logger      *slog.Logger
}

// Option configures a Scanner
type Option func(*Scanner)

// WithWorkers sets the number of files parsed concurrently
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the scanner's logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithExcludeDirs adds directory names to skip during the walk
func WithExcludeDirs(dirs ...string) Option {
	return func(s *Scanner) {
		s.excludeDirs = append(s.excludeDirs, dirs...)
	}
}

// NewScanner creates a scanner
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		parser:  parser.New(),
		workers: runtime.NumCPU(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan is a convenience wrapper around NewScanner(opts...).Scan
func Scan(ctx context.Context, root string, opts ...Option) (*Map, *ScanStats, error) {
	return NewScanner(opts...).Scan(ctx, root)
}

// Scan parses every Java file under root and records each type's supertype
// and directly declared public operations. Files that fail to read or parse
// are counted and skipped. Records are merged in walk order regardless of
// which worker finished first.
func (s *Scanner) Scan(ctx context.Context, root string) (*Map, *ScanStats, error) {
	start := time.Now()

	files, err := parser.DiscoverFiles(root, s.excludeDirs)
	if err != nil {
		return nil, nil, fmt.Errorf("discover files: %w", err)
	}
	s.logger.Info("hierarchy.scan.start", "root", root, "files", len(files))

	perFile := make([][]types.TypeRecord, len(files))
	failed := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			recs, err := s.scanFile(path)
			if err != nil {
				failed[i] = true
				s.logger.Warn("hierarchy.file.failed", "path", path, "err", err)
				return nil
			}
			perFile[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("scan cancelled: %w", err)
	}

	stats := &ScanStats{FilesScanned: len(files)}
	var records []types.TypeRecord
	for i, recs := range perFile {
		if failed[i] {
			stats.FilesFailed++
			stats.FailedFiles = append(stats.FailedFiles, files[i])
			continue
		}
		records = append(records, recs...)
	}

	m := NewMap(records)
	stats.TypesFound = m.Len()
	stats.Duration = time.Since(start)

	s.logger.Info("hierarchy.scan.done",
		"root", root,
		"files", stats.FilesScanned,
		"failed", stats.FilesFailed,
		"types", stats.TypesFound,
		"elapsed", stats.Duration)
	return m, stats, nil
}

func (s *Scanner) scanFile(path string) ([]types.TypeRecord, error) {
	result, err := s.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	recs := make([]types.TypeRecord, 0, len(result.Types))
	for i := range result.Types {
		td := &result.Types[i]
		rec := types.TypeRecord{
			QualifiedName:      td.QualifiedName(result.Package),
			SimpleName:         td.SimpleName,
			DeclaredOperations: td.PublicOperationNames(),
		}
		if td.Supertype != "" {
			rec.ParentName = types.StringPtr(td.Supertype)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
