package embedder

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RetryPolicy bounds the attempts made for one provider call. Delays grow
// by Factor from Initial and are capped at Max.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Factor   float64
}

// DefaultRetryPolicy is used by every HTTP provider
var DefaultRetryPolicy = RetryPolicy{
	Attempts: MaxRetries,
	Initial:  time.Duration(InitialBackoffMs) * time.Millisecond,
	Max:      time.Duration(MaxBackoffMs) * time.Millisecond,
	Factor:   BackoffMultiplier,
}

// delay returns the wait before attempt n+1, n counting from zero
func (p RetryPolicy) delay(n int) time.Duration {
	d := p.Initial
	for range n {
		d = time.Duration(float64(d) * p.Factor)
		if d >= p.Max {
			return p.Max
		}
	}
	return min(d, p.Max)
}

// statusError is a non-200 API answer
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return http.StatusText(e.status) + ": " + e.body
}

// retryable reports whether a failed call may succeed when repeated.
// Client errors other than 408 and 429 are permanent.
func retryable(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return true
	}
	switch se.status {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	}
	return se.status >= 500
}

// withRetry calls fn until it succeeds, fails permanently, the attempts run
// out or ctx ends.
func withRetry[T any](ctx context.Context, p RetryPolicy, fn func() (T, error)) (T, error) {
	var zero T
	var err error
	for n := range max(p.Attempts, 1) {
		var v T
		if v, err = fn(); err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !retryable(err) || n == p.Attempts-1 {
			break
		}

		t := time.NewTimer(p.delay(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
	return zero, err
}
