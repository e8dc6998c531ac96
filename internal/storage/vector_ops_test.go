package storage

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSearchData(t *testing.T, storage *SQLiteStorage) {
	t.Helper()
	records := []*ChunkRecord{
		testRecord("pay", "com.bank", "Account", "pay", "Summary: Transfers money to a payee | Keywords: money, transfer", []float32{1, 0, 0}),
		testRecord("open", "com.bank", "Account", "open", "Summary: Opens a new account | Keywords: account, create", []float32{0.8, 0.6, 0}),
		testRecord("bark", "com.zoo", "Dog", "bark", "Summary: Makes noise | Keywords: bark, sound", []float32{0, 0, 1}),
		testRecord("novec", "com.zoo", "Dog", "sit", "Summary: Sits down | Keywords: sit", nil),
	}
	ctor := testRecord("ctor", "com.bank", "Account", "<Constructor>", "Summary: Builds an account with money", []float32{0.6, 0.8, 0})
	ctor.Kind = "constructor"
	records = append(records, ctor)
	require.NoError(t, storage.UpsertChunks(context.Background(), records))
}

func TestSearchVector(t *testing.T) {
	storage := setupTestDB(t)
	seedSearchData(t, storage)
	ctx := context.Background()

	results, err := storage.SearchVector(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 4, "chunks without vectors are skipped")
	assert.Equal(t, "pay", results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].SimilarityScore, 1e-9)
	assert.Equal(t, "open", results[1].ChunkID)
	assert.Equal(t, "ctor", results[2].ChunkID)

	tests := []struct {
		name    string
		filters *SearchFilters
		limit   int
		want    []string
	}{
		{name: "limit", limit: 1, want: []string{"pay"}},
		{name: "package filter", filters: &SearchFilters{Packages: []string{"com.zoo"}}, want: []string{"bark"}},
		{name: "type filter", filters: &SearchFilters{TypeNames: []string{"Dog"}}, want: []string{"bark"}},
		{name: "kind filter", filters: &SearchFilters{Kinds: []string{"constructor"}}, want: []string{"ctor"}},
		{name: "min relevance", filters: &SearchFilters{MinRelevance: 0.7}, want: []string{"pay", "open"}},
		{name: "file pattern", filters: &SearchFilters{FilePattern: "src/Dog*"}, want: []string{"bark"}},
		{name: "empty filter values ignored", filters: &SearchFilters{Packages: []string{""}}, limit: 2, want: []string{"pay", "open"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := storage.SearchVector(ctx, []float32{1, 0, 0}, tt.limit, tt.filters)
			require.NoError(t, err)
			ids := make([]string, len(results))
			for i, r := range results {
				ids[i] = r.ChunkID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSearchVector_DimensionMismatch(t *testing.T) {
	storage := setupTestDB(t)
	seedSearchData(t, storage)

	results, err := storage.SearchVector(context.Background(), []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchText(t *testing.T) {
	storage := setupTestDB(t)
	seedSearchData(t, storage)
	ctx := context.Background()

	results, err := storage.SearchText(ctx, "money", 10, nil)
	require.NoError(t, err)
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
		assert.Greater(t, r.BM25Score, 0.0)
		assert.LessOrEqual(t, r.BM25Score, 1.0)
	}
	assert.ElementsMatch(t, []string{"pay", "ctor"}, ids)

	results, err = storage.SearchText(ctx, "money", 10, &SearchFilters{Kinds: []string{"method"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "pay", results[0].ChunkID)

	// Terms are ORed; operators and quotes are neutralized
	results, err = storage.SearchText(ctx, `bark AND "sit" (NOT*`, 10, nil)
	require.NoError(t, err)
	ids = ids[:0]
	for _, r := range results {
		ids = append(ids, r.ChunkID)
	}
	assert.ElementsMatch(t, []string{"bark", "novec"}, ids)

	// Signatures are indexed too
	results, err = storage.SearchText(ctx, "open", 10, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	_, err = storage.SearchText(ctx, "  ()* ", 10, nil)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSanitizeFTSQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "transfer money", want: `"transfer" OR "money"`},
		{in: `say "hi" NEAR(x)`, want: `"say" OR "hi" OR "NEAR" OR "x"`},
		{in: "save_order*", want: `"save_order"`},
		{in: "", want: ""},
		{in: "-- ;", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFTSQuery(tt.in), tt.in)
	}
}

func TestVectorSerialization(t *testing.T) {
	v := []float32{0, 1.5, -2.25, float32(math.Pi)}
	blob := SerializeVector(v)
	assert.Len(t, blob, 16)
	assert.Equal(t, v, DeserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}
