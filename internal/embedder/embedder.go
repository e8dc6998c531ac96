package embedder

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/zeebo/xxh3"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Role tags what a text is embedded for. Asymmetric models embed stored
// passages and search queries differently.
type Role string

const (
	RolePassage Role = "passage"
	RoleQuery   Role = "query"
)

// Embedding represents a vector embedding with metadata
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // cache key of role and text
}

// EmbeddingRequest represents a request to generate an embedding
type EmbeddingRequest struct {
	Text  string
	Role  Role   // defaults to RolePassage
	Model string // Optional: override default model
}

// Embedder turns passages and queries into vectors. Implementations are
// safe for concurrent use; the indexer calls GenerateEmbedding from several
// goroutines at once.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)
	Dimension() int
	Provider() string
	Model() string
	Close() error
}

// DefaultCacheSize bounds a Cache created with a non-positive size
const DefaultCacheSize = 10000

// Cache is an LRU of embeddings keyed by ComputeHash. It is safe for
// concurrent use and a nil *Cache is a valid, always-empty cache.
type Cache struct {
	lru *lru.Cache[string, *Embedding]
}

func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, _ := lru.New[string, *Embedding](size)
	return &Cache{lru: c}
}

// Get returns a copy the caller may modify
func (c *Cache) Get(hash string) (*Embedding, bool) {
	if c == nil {
		return nil, false
	}
	emb, ok := c.lru.Get(hash)
	if !ok {
		return nil, false
	}
	out := *emb
	out.Vector = slices.Clone(emb.Vector)
	return &out, true
}

func (c *Cache) Set(hash string, emb *Embedding) {
	if c == nil || emb == nil {
		return
	}
	stored := *emb
	stored.Vector = slices.Clone(emb.Vector)
	c.lru.Add(hash, &stored)
}

func (c *Cache) Size() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *Cache) Clear() {
	if c != nil {
		c.lru.Purge()
	}
}

// ComputeHash returns the xxh3-128 cache key of a model, role and text
func ComputeHash(model string, role Role, text string) string {
	sum := xxh3.HashString128(model + "\x00" + string(role) + "\x00" + text).Bytes()
	return hex.EncodeToString(sum[:])
}

// ValidateRequest validates an embedding request
func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	switch req.Role {
	case "", RolePassage, RoleQuery:
		return nil
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, req.Role)
	}
}

func roleOf(req EmbeddingRequest) Role {
	if req.Role == "" {
		return RolePassage
	}
	return req.Role
}
