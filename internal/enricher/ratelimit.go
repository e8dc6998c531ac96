package enricher

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimited throttles an enricher with a token bucket
type rateLimited struct {
	inner   Enricher
	limiter *rate.Limiter
}

// WithRateLimit wraps e so that calls never exceed rps sustained requests
// per second with the given burst. Enrich blocks until a token is available
// or ctx is done. A non-positive rps returns e unchanged.
func WithRateLimit(e Enricher, rps float64, burst int) Enricher {
	if rps <= 0 || e == nil {
		return e
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{
		inner:   e,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *rateLimited) Name() string { return r.inner.Name() }

func (r *rateLimited) Enrich(ctx context.Context, req Request) (*Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Enrich(ctx, req)
}
