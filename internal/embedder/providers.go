package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/zeebo/xxh3"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderLocal  = "local"

	// Default endpoints
	DefaultJinaBaseURL   = "https://api.jina.ai/v1"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOllamaBaseURL = "http://localhost:11434"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultOllamaModel = "nomic-embed-text"
	DefaultLocalModel  = "local-hashing"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	OllamaDimension = 768
	LocalDimension  = 384

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	defaultTimeout = 30 * time.Second
)

// jinaTasks maps roles to Jina v3 task adapters
var jinaTasks = map[Role]string{
	RolePassage: "retrieval.passage",
	RoleQuery:   "retrieval.query",
}

// postJSON sends body to url and decodes a 200 answer into out
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &statusError{status: resp.StatusCode, body: string(bodyBytes)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// cachedEmbed serves req from cache or calls fetch with retry, then caches.
// model is the effective model, so an override never hits another model's entry.
func cachedEmbed(ctx context.Context, cache *Cache, model string, req EmbeddingRequest, fetch func() (*Embedding, error)) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	hash := ComputeHash(model, roleOf(req), req.Text)
	if emb, ok := cache.Get(hash); ok {
		return emb, nil
	}

	emb, err := withRetry(ctx, DefaultRetryPolicy, fetch)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
	}
	if len(emb.Vector) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrProviderFailed)
	}

	emb.Hash = hash
	cache.Set(hash, emb)
	return emb, nil
}

// openAIStyleResponse is the /embeddings response shape shared by Jina and OpenAI
type openAIStyleResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// ProviderConfig configures an HTTP embedding provider
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	Cache   *Cache
}

func (c *ProviderConfig) defaults(baseURL, model string) {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = model
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
}

// JinaProvider implements Embedder using the Jina AI API
type JinaProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	cache      *Cache
}

// NewJinaProvider creates a new Jina AI embedder
func NewJinaProvider(cfg ProviderConfig) (*JinaProvider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvJinaAPIKey)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvJinaAPIKey)
	}
	cfg.defaults(DefaultJinaBaseURL, DefaultJinaModel)

	return &JinaProvider{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cfg.Cache,
	}, nil
}

func (j *JinaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	model := req.Model
	if model == "" {
		model = j.model
	}
	return cachedEmbed(ctx, j.cache, model, req, func() (*Embedding, error) {
		var resp openAIStyleResponse
		err := postJSON(ctx, j.httpClient, j.baseURL+"/embeddings", j.apiKey, map[string]any{
			"input": []string{req.Text},
			"model": model,
			"task":  jinaTasks[roleOf(req)],
		}, &resp)
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}
		return &Embedding{
			Vector:    resp.Data[0].Embedding,
			Dimension: len(resp.Data[0].Embedding),
			Provider:  ProviderJina,
			Model:     model,
		}, nil
	})
}

func (j *JinaProvider) Dimension() int {
	return JinaDimension
}

func (j *JinaProvider) Provider() string {
	return ProviderJina
}

func (j *JinaProvider) Model() string {
	return j.model
}

func (j *JinaProvider) Close() error {
	j.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder using the OpenAI API. Roles are ignored.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	cache      *Cache
}

// NewOpenAIProvider creates a new OpenAI embedder
func NewOpenAIProvider(cfg ProviderConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	cfg.defaults(DefaultOpenAIBaseURL, DefaultOpenAIModel)

	return &OpenAIProvider{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cfg.Cache,
	}, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}
	return cachedEmbed(ctx, o.cache, model, req, func() (*Embedding, error) {
		var resp openAIStyleResponse
		err := postJSON(ctx, o.httpClient, o.baseURL+"/embeddings", o.apiKey, map[string]any{
			"input": []string{req.Text},
			"model": model,
		}, &resp)
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("no embeddings returned")
		}
		return &Embedding{
			Vector:    resp.Data[0].Embedding,
			Dimension: len(resp.Data[0].Embedding),
			Provider:  ProviderOpenAI,
			Model:     model,
		}, nil
	})
}

func (o *OpenAIProvider) Dimension() int {
	return OpenAIDimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// OllamaProvider implements Embedder using a local Ollama server
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	cache      *Cache
}

// NewOllamaProvider creates an Ollama embedder. No API key is needed.
func NewOllamaProvider(cfg ProviderConfig) *OllamaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv(EnvOllamaHost)
	}
	cfg.defaults(DefaultOllamaBaseURL, DefaultOllamaModel)

	return &OllamaProvider{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cfg.Cache,
	}
}

// ollamaEmbedResponse is the Ollama /api/embeddings response format
type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}
	return cachedEmbed(ctx, o.cache, model, req, func() (*Embedding, error) {
		var resp ollamaEmbedResponse
		err := postJSON(ctx, o.httpClient, o.baseURL+"/api/embeddings", "", map[string]any{
			"model":  model,
			"prompt": req.Text,
		}, &resp)
		if err != nil {
			return nil, err
		}
		vector := make([]float32, len(resp.Embedding))
		for i, v := range resp.Embedding {
			vector[i] = float32(v)
		}
		return &Embedding{
			Vector:    vector,
			Dimension: len(vector),
			Provider:  ProviderOllama,
			Model:     model,
		}, nil
	})
}

func (o *OllamaProvider) Dimension() int {
	return OllamaDimension
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider embeds text offline with feature hashing: each lowercased
// word increments one signed bucket. Texts sharing words get similar vectors,
// which is enough for offline runs and tests.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) *LocalProvider {
	return &LocalProvider{
		model: DefaultLocalModel,
		cache: cache,
	}
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := ComputeHash(l.model, roleOf(req), req.Text)
	if emb, ok := l.cache.Get(hash); ok {
		return emb, nil
	}

	vector := make([]float32, LocalDimension)
	words := strings.FieldsFunc(strings.ToLower(req.Text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := xxh3.HashString(w)
		idx := h % LocalDimension
		if h&(1<<63) != 0 {
			vector[idx]--
		} else {
			vector[idx]++
		}
	}

	emb := &Embedding{
		Vector:    NormalizeVector(vector),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}
	l.cache.Set(hash, emb)
	return emb, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
