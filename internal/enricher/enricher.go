package enricher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/javacontext/internal/parser"
	"github.com/dshills/javacontext/pkg/types"
)

// Domain errors
var (
	ErrEmptyResponse     = errors.New("empty enrichment response")
	ErrMalformedResponse = errors.New("malformed enrichment response")
	ErrMissingAPIKey     = errors.New("enrichment API key not set")
	ErrUnknownProvider   = errors.New("unknown enrichment provider")
)

const (
	// MinKeywords and MaxKeywords bound a valid keyword list
	MinKeywords = 3
	MaxKeywords = 5

	// PromptBodyLimit is the number of body characters sent in a prompt
	PromptBodyLimit = 800
)

// Enricher produces a summary and keywords for one operation
type Enricher interface {
	Enrich(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// Request carries the structured prompt fields for one chunk
type Request struct {
	Operation    string // human-facing name; "<Type> constructor" for constructors
	Constructor  bool
	Package      string
	Context      string
	Signature    string
	Dependencies []string
	Body         string
}

// NewRequest builds the request for a chunk
func NewRequest(c *types.Chunk) Request {
	return Request{
		Operation:    c.DisplayName(),
		Constructor:  c.IsConstructor(),
		Package:      c.Context.NamespaceOrNone(),
		Context:      c.Context.String(),
		Signature:    c.Signature,
		Dependencies: c.DependencyTypes,
		Body:         c.Body,
	}
}

// Result is the validated enrichment of one chunk
type Result struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
}

// Validate normalizes a model response. The summary must be non-empty and
// at least MinKeywords distinct keywords must remain after trimming; extra
// keywords beyond MaxKeywords are dropped.
func Validate(r *Result) (*Result, error) {
	if r == nil {
		return nil, ErrEmptyResponse
	}
	summary := strings.TrimSpace(r.Summary)
	if summary == "" {
		return nil, fmt.Errorf("%w: summary is empty", ErrMalformedResponse)
	}

	keywords := make([]string, 0, MaxKeywords)
	seen := make(map[string]struct{}, len(r.Keywords))
	for _, k := range r.Keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keywords = append(keywords, k)
		if len(keywords) == MaxKeywords {
			break
		}
	}
	if len(keywords) < MinKeywords {
		return nil, fmt.Errorf("%w: %d keywords, want %d-%d", ErrMalformedResponse, len(keywords), MinKeywords, MaxKeywords)
	}
	return &Result{Summary: summary, Keywords: keywords}, nil
}

// ParseResponse decodes and validates the JSON object returned by a model.
// Markdown code fences around the object are tolerated.
func ParseResponse(content string) (*Result, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyResponse
	}
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	var r Result
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return Validate(&r)
}

// EnrichChunk enriches c, falling back to a deterministic summary whenever
// the model cannot be used. It never fails.
func EnrichChunk(ctx context.Context, e Enricher, c types.Chunk) types.EnrichedChunk {
	ec, _ := Apply(ctx, e, c)
	return ec
}

// Apply is EnrichChunk that also reports why a fallback was used. The
// returned chunk is always usable.
func Apply(ctx context.Context, e Enricher, c types.Chunk) (types.EnrichedChunk, error) {
	if c.Truncated {
		return types.EnrichedChunk{Chunk: c, Enrichment: Oversized(&c)}, nil
	}
	if e == nil {
		return types.EnrichedChunk{Chunk: c, Enrichment: Fallback(&c)}, errors.New("no enricher configured")
	}

	res, err := e.Enrich(ctx, NewRequest(&c))
	if err == nil {
		res, err = Validate(res)
	}
	if err != nil {
		return types.EnrichedChunk{Chunk: c, Enrichment: Fallback(&c)}, fmt.Errorf("%s: %w", e.Name(), err)
	}
	return types.EnrichedChunk{
		Chunk: c,
		Enrichment: types.Enrichment{
			Summary:  res.Summary,
			Keywords: res.Keywords,
			Source:   types.SourceModel,
		},
	}, nil
}

// Fallback is the enrichment used when the model fails or answers badly
func Fallback(c *types.Chunk) types.Enrichment {
	op := c.OperationName
	if c.IsConstructor() {
		op = "constructor"
	}
	keywords := []string{op}
	if tag := parser.DomainTag(c.Context.TypeName); tag != op {
		keywords = append(keywords, tag)
	}
	return types.Enrichment{
		Summary:  c.DisplayName() + " — enrichment unavailable",
		Keywords: keywords,
		Source:   types.SourceFallback,
	}
}

// Oversized is the enrichment used for bodies cut by the size guard
func Oversized(c *types.Chunk) types.Enrichment {
	op := c.DisplayName()
	return types.Enrichment{
		Summary:  "Large method: " + op + " (too large for analysis)",
		Keywords: []string{op, "large-method", "auto-generated"},
		Source:   types.SourceOversized,
	}
}
