package searcher

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/javacontext/internal/embedder"
	"github.com/dshills/javacontext/internal/storage"
	"github.com/dshills/javacontext/pkg/types"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Vector + BM25 with RRF
	SearchModeVector  SearchMode = "vector"  // Vector similarity only
	SearchModeKeyword SearchMode = "keyword" // BM25 text search only
)

// Request limits and defaults
const (
	DefaultLimit       = 10
	MaxLimit           = 100
	DefaultRRFConstant = 60
	DefaultCacheTTL    = time.Hour
	DefaultCacheSize   = 1000
)

var (
	ErrEmptyQuery      = errors.New("query cannot be empty")
	ErrUnsupportedMode = errors.New("unsupported search mode")
)

// ParseMode maps a user-supplied mode name to a SearchMode. Empty means hybrid.
func ParseMode(s string) (SearchMode, error) {
	switch m := SearchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return SearchModeHybrid, nil
	case SearchModeHybrid, SearchModeVector, SearchModeKeyword:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMode, s)
	}
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query       string
	Limit       int
	Mode        SearchMode
	Filters     *storage.SearchFilters
	UseCache    bool // Whether to use query cache
	CacheTTL    time.Duration
	RRFConstant float64 // k value for Reciprocal Rank Fusion (default 60)
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results       []types.SearchResult
	TotalResults  int
	SearchMode    SearchMode
	Duration      time.Duration
	CacheHit      bool
	VectorResults int
	TextResults   int
}

type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher answers queries against the chunk index
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	logger   *slog.Logger
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// Option configures a Searcher
type Option func(*Searcher)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCacheSize sets the response cache capacity
func WithCacheSize(n int) Option {
	return func(s *Searcher) {
		if n > 0 {
			if c, err := lru.New[[32]byte, *cacheEntry](n); err == nil {
				s.cache = c
			}
		}
	}
}

// NewSearcher creates a new Searcher instance
func NewSearcher(store storage.Storage, emb embedder.Embedder, opts ...Option) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](DefaultCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	s := &Searcher{
		storage:  store,
		embedder: emb,
		logger:   slog.Default(),
		cache:    cache,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search performs a search based on the request parameters
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}
	if s.embedder == nil && req.Mode != SearchModeKeyword {
		return nil, errors.New("embedder not initialized")
	}

	if req.UseCache {
		if cached, ok := s.checkCache(req); ok {
			cached.CacheHit = true
			cached.Duration = time.Since(start)
			return cached, nil
		}
	}

	var (
		response *SearchResponse
		err      error
	)
	switch req.Mode {
	case SearchModeHybrid:
		response, err = s.hybridSearch(ctx, req)
	case SearchModeVector:
		response, err = s.vectorSearch(ctx, req)
	case SearchModeKeyword:
		response, err = s.keywordSearch(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	response.Duration = time.Since(start)
	response.SearchMode = req.Mode

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}

	s.logger.Debug("search.done",
		"mode", req.Mode,
		"results", response.TotalResults,
		"vector", response.VectorResults,
		"text", response.TextResults,
		"elapsed", response.Duration)
	return response, nil
}

// embedQuery embeds the query text with the query role
func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
		Text: query,
		Role: embedder.RoleQuery,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	return emb.Vector, nil
}

type searchResult struct {
	vectorResults []storage.VectorResult
	textResults   []storage.TextResult
	err           error
}

// hybridSearch runs vector and BM25 search concurrently and fuses the two
// rankings with Reciprocal Rank Fusion. One side may fail.
func (s *Searcher) hybridSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	vectorChan := make(chan searchResult, 1)
	textChan := make(chan searchResult, 1)

	go func() {
		var res searchResult
		vec, err := s.embedQuery(ctx, req.Query)
		if err != nil {
			res.err = err
		} else {
			res.vectorResults, res.err = s.storage.SearchVector(ctx, vec, req.Limit*2, req.Filters)
		}
		vectorChan <- res
	}()
	go func() {
		var res searchResult
		res.textResults, res.err = s.storage.SearchText(ctx, req.Query, req.Limit*2, req.Filters)
		textChan <- res
	}()

	var vectorRes, textRes searchResult
	for range 2 {
		select {
		case vectorRes = <-vectorChan:
		case textRes = <-textChan:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if vectorRes.err != nil && textRes.err != nil {
		return nil, fmt.Errorf("both searches failed: vector=%w, text=%w", vectorRes.err, textRes.err)
	}
	if vectorRes.err != nil {
		s.logger.Warn("search.vector.failed", "err", vectorRes.err)
	}
	if textRes.err != nil {
		s.logger.Warn("search.text.failed", "err", textRes.err)
	}

	ranked := applyRRF(vectorRes.vectorResults, textRes.textResults, req.RRFConstant)
	results, err := s.fetchResults(ctx, ranked, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(vectorRes.vectorResults),
		TextResults:   len(textRes.textResults),
	}, nil
}

// vectorSearch performs only vector similarity search
func (s *Searcher) vectorSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	vec, err := s.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	vectorResults, err := s.storage.SearchVector(ctx, vec, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(vectorResults))
	for i, vr := range vectorResults {
		ranked[i] = rankedResult{chunkID: vr.ChunkID, score: max(vr.SimilarityScore, 0), rank: i + 1}
	}

	results, err := s.fetchResults(ctx, ranked, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(vectorResults),
	}, nil
}

// keywordSearch performs only BM25 text search
func (s *Searcher) keywordSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	textResults, err := s.storage.SearchText(ctx, req.Query, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(textResults))
	for i, tr := range textResults {
		ranked[i] = rankedResult{chunkID: tr.ChunkID, score: tr.BM25Score, rank: i + 1}
	}

	results, err := s.fetchResults(ctx, ranked, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		TextResults:  len(textResults),
	}, nil
}

type rankedResult struct {
	chunkID string
	score   float64
	rank    int
}

// applyRRF combines rankings: RRF(d) = Σ 1/(k + rank(d)). Equal scores are
// ordered by chunk id so fused output is stable.
func applyRRF(vectorResults []storage.VectorResult, textResults []storage.TextResult, k float64) []rankedResult {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[string]float64, len(vectorResults)+len(textResults))
	for rank, vr := range vectorResults {
		scores[vr.ChunkID] += 1.0 / (k + float64(rank+1))
	}
	for rank, tr := range textResults {
		scores[tr.ChunkID] += 1.0 / (k + float64(rank+1))
	}

	results := make([]rankedResult, 0, len(scores))
	for id, score := range scores {
		results = append(results, rankedResult{chunkID: id, score: score})
	}
	slices.SortFunc(results, func(a, b rankedResult) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return strings.Compare(a.chunkID, b.chunkID)
		}
	})
	for i := range results {
		results[i].rank = i + 1
	}
	return results
}

// fetchResults loads each ranked chunk and decodes its stored metadata.
// Chunks that disappeared since ranking are skipped.
func (s *Searcher) fetchResults(ctx context.Context, ranked []rankedResult, limit int) ([]types.SearchResult, error) {
	limit = min(limit, len(ranked))
	results := make([]types.SearchResult, 0, limit)

	for _, rr := range ranked[:limit] {
		rec, err := s.storage.GetChunk(ctx, rr.chunkID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load chunk %s: %w", rr.chunkID, err)
		}

		var meta types.ChunkMetadata
		if len(rec.Metadata) > 0 {
			if err := json.Unmarshal(rec.Metadata, &meta); err != nil {
				s.logger.Warn("search.metadata.invalid", "chunk", rec.ID, "err", err)
			}
		}

		results = append(results, types.SearchResult{
			ChunkID:        rec.ID,
			Rank:           len(results) + 1,
			RelevanceScore: rr.score,
			Signature:      rec.Signature,
			OperationName:  rec.OperationName,
			TypeName:       rec.TypeName,
			Package:        rec.Namespace,
			Summary:        meta.Summary,
			Keywords:       meta.Keywords,
			Content:        rec.Code,
			File: &types.FileInfo{
				Path:      rec.FilePath,
				StartLine: rec.StartLine,
				EndLine:   rec.EndLine,
			},
		})
	}
	return results, nil
}

// validateRequest rejects empty queries and fills defaults
func (s *Searcher) validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return ErrEmptyQuery
	}

	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	req.Limit = min(req.Limit, MaxLimit)

	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return err
	}
	req.Mode = mode

	if req.RRFConstant <= 0 {
		req.RRFConstant = DefaultRRFConstant
	}
	if req.CacheTTL <= 0 {
		req.CacheTTL = DefaultCacheTTL
	}
	return nil
}

func (s *Searcher) checkCache(req SearchRequest) (*SearchResponse, bool) {
	hash := computeQueryHash(req)

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil, false
	}
	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()
	return response, true
}

func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}
	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

// copySearchResponse creates a deep copy of a SearchResponse
func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]types.SearchResult, len(src.Results))
	for i, r := range src.Results {
		r.Keywords = slices.Clone(r.Keywords)
		if r.File != nil {
			f := *r.File
			r.File = &f
		}
		dst.Results[i] = r
	}
	return &dst
}

// computeQueryHash hashes the normalized request. Filter lists are sorted
// so their order does not split the cache.
func computeQueryHash(req SearchRequest) [32]byte {
	var b strings.Builder
	b.WriteString(strings.ToLower(req.Query))
	b.WriteString("|")
	b.WriteString(string(req.Mode))
	b.WriteString("|")
	b.WriteString(strconv.Itoa(req.Limit))
	b.WriteString("|")
	b.WriteString(strconv.FormatFloat(req.RRFConstant, 'f', -1, 64))

	if f := req.Filters; f != nil {
		sorted := func(v []string) string {
			c := slices.Clone(v)
			slices.Sort(c)
			return strings.Join(c, ",")
		}
		b.WriteString("|filters:")
		b.WriteString(sorted(f.Packages))
		b.WriteString("|")
		b.WriteString(sorted(f.TypeNames))
		b.WriteString("|")
		b.WriteString(sorted(f.Kinds))
		b.WriteString("|")
		b.WriteString(f.FilePattern)
		b.WriteString("|")
		b.WriteString(strconv.FormatFloat(f.MinRelevance, 'f', 2, 64))
	}

	return sha256.Sum256([]byte(b.String()))
}

// InvalidateCache drops every cached response. Called after ingestion.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen returns the number of cached responses
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}
