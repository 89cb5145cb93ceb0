package generator

import (
	"context"
	"errors"
	"iter"
	"strings"
)

var (
	// ErrRateLimited means the backend refused the request for rate or capacity reasons
	ErrRateLimited = errors.New("generation backend rate limited")
	// ErrBackend covers every other backend failure
	ErrBackend = errors.New("generation backend failed")
	// ErrNotConfigured is returned when no credentials or endpoint are set
	ErrNotConfigured = errors.New("generation backend not configured")
	// ErrStreamConsumed is yielded when a stream is ranged over a second time
	ErrStreamConsumed = errors.New("stream already consumed")
)

// Request is one generation call
type Request struct {
	System    string
	User      string
	Model     string // empty uses the backend default
	MaxTokens int    // 0 uses the backend default
}

// Backend generates text. Stream returns a lazy sequence of text fragments
// that may be ranged over once. When ctx is cancelled the sequence ends
// without yielding an error.
type Backend interface {
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
	Complete(ctx context.Context, req Request) (string, error)
}

// Collect drains a stream into one string. It stops at the first error.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var sb strings.Builder
	for text, err := range seq {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// Canceled reports whether err is a cancellation, which is never shown to users
func Canceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// UserMessage renders err for the end user. Rate limits get their own
// message and cancellations render as nothing.
func UserMessage(err error) string {
	switch {
	case err == nil, Canceled(err):
		return ""
	case errors.Is(err, ErrRateLimited):
		return "The model is busy or the rate limit was reached. Please wait a moment and try again."
	case errors.Is(err, ErrNotConfigured):
		return "No generation backend is configured. Set an API key or a base URL."
	default:
		return "Generation failed: " + err.Error()
	}
}
