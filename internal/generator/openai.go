package generator

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 512
)

// Config configures an OpenAI-compatible chat backend
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// OpenAI streams chat completions from an OpenAI-compatible endpoint
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewOpenAI creates a backend. Either an API key or a base URL is required; a
// base URL alone targets local servers that need no key.
func NewOpenAI(cfg Config, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

// Model returns the default model name
func (o *OpenAI) Model() string {
	return o.model
}

func (o *OpenAI) params(req Request) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = o.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = o.maxTokens
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	msgs = append(msgs, openai.UserMessage(req.User))

	return openai.ChatCompletionNewParams{
		Messages:  msgs,
		Model:     openai.ChatModel(model),
		MaxTokens: openai.Int(int64(maxTokens)),
	}
}

// Stream issues a streaming completion when the sequence is first ranged over
func (o *OpenAI) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	var used atomic.Bool
	return func(yield func(string, error) bool) {
		if used.Swap(true) {
			yield("", ErrStreamConsumed)
			return
		}

		id := uuid.NewString()
		start := time.Now()
		o.logger.Debug("generation started", "request_id", id, "model", o.params(req).Model)

		stream := o.client.Chat.Completions.NewStreaming(ctx, o.params(req))
		defer func() {
			_ = stream.Close()
		}()

		fragments := 0
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			text := chunk.Choices[0].Delta.Content
			if text == "" {
				continue
			}
			fragments++
			if !yield(text, nil) {
				o.logger.Debug("generation stopped by consumer", "request_id", id, "fragments", fragments)
				return
			}
		}

		if err := stream.Err(); err != nil {
			if ctx.Err() != nil || Canceled(err) {
				o.logger.Debug("generation cancelled", "request_id", id, "fragments", fragments)
				return
			}
			err = classify(err)
			o.logger.Warn("generation failed", "request_id", id, "error", err)
			yield("", err)
			return
		}
		o.logger.Debug("generation finished", "request_id", id, "fragments", fragments, "duration", time.Since(start))
	}
}

// Complete issues a single non-streaming completion
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	id := uuid.NewString()
	resp, err := o.client.Chat.Completions.New(ctx, o.params(req))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			o.logger.Debug("generation cancelled", "request_id", id)
			return "", ctxErr
		}
		if Canceled(err) {
			return "", err
		}
		err = classify(err)
		o.logger.Warn("generation failed", "request_id", id, "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrBackend)
	}
	return resp.Choices[0].Message.Content, nil
}

// classify maps client errors onto ErrRateLimited or ErrBackend
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests,
			apiErr.StatusCode == http.StatusServiceUnavailable,
			apiErr.StatusCode == 529, // overloaded
			strings.Contains(strings.ToLower(apiErr.Code), "quota"):
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
	}
	return fmt.Errorf("%w: %w", ErrBackend, err)
}
