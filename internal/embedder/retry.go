package embedder

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
	Multiplier      float64
}

// DefaultRetryConfig returns the backoff used for embedding API calls
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		MaxElapsedTime:  30 * time.Second,
		Multiplier:      2.0,
	}
}

// statusError is returned by HTTP providers for non-200 responses
type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return http.StatusText(e.StatusCode) + ": " + e.Body
}

// retryWithBackoff runs fn until it succeeds, returns a permanent error, the
// backoff gives up or ctx is cancelled. Only rate-limit and server errors retry.
func retryWithBackoff[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	operation := func() error {
		r, err := fn()
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = cfg.MaxElapsedTime
	b.Multiplier = cfg.Multiplier

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return result, err
}

// isRetryable reports rate-limit (429) and 5xx responses from either client
func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return false
}
