package enricher

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/javacontext/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChunk() types.Chunk {
	c := types.Chunk{
		OperationName:   "save",
		Kind:            types.KindMethod,
		Signature:       "public void save(Order order)",
		Body:            "{ repo.persist(order); }",
		Context:         types.TypeContext{Namespace: "com.shop", TypeName: "OrderService"},
		DependencyTypes: []string{"Order"},
	}
	c.ComputeID()
	return c
}

type stubEnricher struct {
	mu     sync.Mutex
	result *Result
	err    error
	calls  int
}

func (s *stubEnricher) Name() string { return "stub" }

func (s *stubEnricher) Enrich(ctx context.Context, req Request) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.result, s.err
}

func TestValidate(t *testing.T) {
	t.Run("normalizes keywords", func(t *testing.T) {
		r, err := Validate(&Result{
			Summary:  "  Saves an order.  ",
			Keywords: []string{" persist ", "", "order", "persist", "save", "store", "write", "extra"},
		})
		require.NoError(t, err)
		assert.Equal(t, "Saves an order.", r.Summary)
		assert.Equal(t, []string{"persist", "order", "save", "store", "write"}, r.Keywords)
	})

	t.Run("too few keywords", func(t *testing.T) {
		_, err := Validate(&Result{Summary: "x", Keywords: []string{"a", "a", " "}})
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("empty summary", func(t *testing.T) {
		_, err := Validate(&Result{Summary: " ", Keywords: []string{"a", "b", "c"}})
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("nil", func(t *testing.T) {
		_, err := Validate(nil)
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestParseResponse(t *testing.T) {
	r, err := ParseResponse("```json\n{\"summary\": \"Adds.\", \"keywords\": [\"a\", \"b\", \"c\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Adds.", r.Summary)

	_, err = ParseResponse(`{"summary": "x", "keywords": "not-a-list"}`)
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = ParseResponse("not json")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = ParseResponse("")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestEnrichChunk_Model(t *testing.T) {
	stub := &stubEnricher{result: &Result{Summary: "Persists an order.", Keywords: []string{"save", "order", "persist"}}}
	ec := EnrichChunk(context.Background(), stub, testChunk())

	assert.Equal(t, types.SourceModel, ec.Source)
	assert.Equal(t, "Persists an order.", ec.Summary)
	assert.Equal(t, []string{"save", "order", "persist"}, ec.Keywords)
	assert.Equal(t, "save", ec.OperationName)
}

func TestEnrichChunk_Fallback(t *testing.T) {
	t.Run("provider error", func(t *testing.T) {
		stub := &stubEnricher{err: errors.New("boom")}
		ec, err := Apply(context.Background(), stub, testChunk())
		require.Error(t, err)
		assert.Equal(t, types.SourceFallback, ec.Source)
		assert.Equal(t, "save — enrichment unavailable", ec.Summary)
		assert.Equal(t, []string{"save", "service"}, ec.Keywords)
	})

	t.Run("malformed shape", func(t *testing.T) {
		stub := &stubEnricher{result: &Result{Summary: "ok", Keywords: []string{"one"}}}
		ec := EnrichChunk(context.Background(), stub, testChunk())
		assert.Equal(t, types.SourceFallback, ec.Source)
	})

	t.Run("constructor", func(t *testing.T) {
		c := testChunk()
		c.OperationName = types.ConstructorName
		c.Kind = types.KindConstructor
		c.Context.TypeName = "Dog"
		ec := EnrichChunk(context.Background(), &stubEnricher{err: errors.New("down")}, c)
		assert.Equal(t, "Dog constructor — enrichment unavailable", ec.Summary)
		assert.Equal(t, []string{"constructor", "dog"}, ec.Keywords)
	})

	t.Run("nil enricher", func(t *testing.T) {
		ec := EnrichChunk(context.Background(), nil, testChunk())
		assert.Equal(t, types.SourceFallback, ec.Source)
	})
}

func TestEnrichChunk_Oversized(t *testing.T) {
	c := testChunk()
	c.Truncated = true
	stub := &stubEnricher{}

	ec, err := Apply(context.Background(), stub, c)
	require.NoError(t, err)
	assert.Equal(t, 0, stub.calls, "oversized chunks never reach the model")
	assert.Equal(t, types.SourceOversized, ec.Source)
	assert.Equal(t, "Large method: save (too large for analysis)", ec.Summary)
	assert.Equal(t, []string{"save", "large-method", "auto-generated"}, ec.Keywords)
}

func TestBuildPrompt(t *testing.T) {
	req := NewRequest(&types.Chunk{
		OperationName: "save",
		Kind:          types.KindMethod,
		Signature:     "public void save(Order order)",
		Body:          strings.Repeat("é", PromptBodyLimit+10),
		Context:       types.TypeContext{TypeName: "OrderService"},
	})
	prompt := BuildPrompt(req)
	assert.Contains(t, prompt, "1. Package: None")
	assert.Contains(t, prompt, "4. Dependencies: None")
	assert.Contains(t, prompt, "public void save(Order order)")
	assert.Contains(t, prompt, strings.Repeat("é", PromptBodyLimit)+"\n... (truncated)")
	assert.NotContains(t, prompt, strings.Repeat("é", PromptBodyLimit+1))
}

func TestOpenAI_Enrich(t *testing.T) {
	var gotReq chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"summary\":\"Saves an order.\",\"keywords\":[\"save\",\"order\",\"persist\"]}"}}]}`))
	}))
	defer server.Close()

	o, err := NewOpenAI(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	res, err := o.Enrich(context.Background(), NewRequest(&types.Chunk{OperationName: "save", Signature: "public void save()"}))
	require.NoError(t, err)
	assert.Equal(t, "Saves an order.", res.Summary)
	assert.Equal(t, DefaultOpenAIModel, gotReq.Model)
	require.NotNil(t, gotReq.ResponseFormat)
	assert.Equal(t, "json_object", gotReq.ResponseFormat.Type)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
}

func TestOpenAI_Errors(t *testing.T) {
	_, err := NewOpenAI(Config{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer server.Close()

	o, err := NewOpenAI(Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)
	_, err = o.Enrich(context.Background(), Request{})
	assert.Error(t, err)
}

func TestOllama_Enrich(t *testing.T) {
	var gotReq ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"{\"summary\":\"Barks.\",\"keywords\":[\"bark\",\"dog\",\"sound\",\"noise\"]}"},"done":true}`))
	}))
	defer server.Close()

	o := NewOllama(Config{BaseURL: server.URL, Model: "qwen2.5-coder"})
	res, err := o.Enrich(context.Background(), Request{Operation: "bark"})
	require.NoError(t, err)
	assert.Equal(t, []string{"bark", "dog", "sound", "noise"}, res.Keywords)
	assert.Equal(t, "json", gotReq.Format)
	assert.False(t, gotReq.Stream)
	assert.Equal(t, "qwen2.5-coder", gotReq.Model)
}

func TestMock(t *testing.T) {
	m := NewMock()
	res, err := m.Enrich(context.Background(), Request{Operation: "Transfer", Dependencies: []string{"Account", "Money", "Audit"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"transfer", "java", "method", "account", "money"}, res.Keywords)
	assert.Equal(t, int64(1), m.Calls())

	res, err = m.Enrich(context.Background(), Request{Operation: "Dog constructor", Constructor: true})
	require.NoError(t, err)
	assert.Equal(t, "constructor", res.Keywords[0])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Enrich(ctx, Request{Operation: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithRateLimit(t *testing.T) {
	m := NewMock()
	assert.Same(t, Enricher(m), WithRateLimit(m, 0, 1))

	limited := WithRateLimit(m, 20, 1)
	assert.Equal(t, ProviderMock, limited.Name())

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := limited.Enrich(context.Background(), Request{Operation: "op"})
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := limited.Enrich(ctx, Request{Operation: "op"})
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	e, err := New(Config{Provider: "mock"})
	require.NoError(t, err)
	assert.Equal(t, ProviderMock, e.Name())

	e, err = New(Config{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, e.Name())

	_, err = New(Config{Provider: "claude"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	t.Setenv(EnvOpenAIAPIKey, "")
	_, err = New(Config{Provider: "openai"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
