package embedder

import (
	"fmt"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // jina, openai, none; empty auto-detects from the keys
	APIKey    string
	BaseURL   string
	Model     string
	CacheSize int
}

// DetectProvider returns the provider New would construct for cfg
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.APIKey != "" {
		return ProviderOpenAI
	}
	return ProviderNone
}

// New creates an embedder from configuration. It returns ErrNoProviderEnabled
// when no dense backend is configured; callers then use lexical vectors.
func New(cfg Config) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	switch DetectProvider(cfg) {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cache)
	case ProviderNone:
		return nil, ErrNoProviderEnabled
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}
