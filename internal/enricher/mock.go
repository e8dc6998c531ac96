package enricher

import (
	"context"
	"strings"
	"sync/atomic"
)

// Mock produces deterministic enrichment without calling a model.
// It is used for offline runs and tests.
type Mock struct {
	calls atomic.Int64
}

// NewMock creates a mock enricher
func NewMock() *Mock {
	return &Mock{}
}

// Name identifies the provider
func (m *Mock) Name() string { return ProviderMock }

// Calls returns the number of Enrich calls served
func (m *Mock) Calls() int64 {
	return m.calls.Load()
}

// Enrich derives a summary and keywords from the operation name and its
// dependencies
func (m *Mock) Enrich(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.calls.Add(1)

	var summary, first string
	if req.Constructor {
		summary = "Constructor that initializes a new instance with the provided parameters."
		first = "constructor"
	} else {
		summary = "Method " + req.Operation + " performs business logic operations."
		first = strings.ToLower(req.Operation)
	}

	keywords := []string{first, "java", "method"}
	for i, dep := range req.Dependencies {
		if i == 2 {
			break
		}
		keywords = append(keywords, strings.ToLower(dep))
	}
	return Validate(&Result{Summary: summary, Keywords: keywords})
}
