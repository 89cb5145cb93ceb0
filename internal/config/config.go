package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dshills/texcontext-mcp/internal/embedder"
	"github.com/dshills/texcontext-mcp/internal/generator"
	"github.com/dshills/texcontext-mcp/internal/project"
	"github.com/dshills/texcontext-mcp/internal/querycache"
	"github.com/dshills/texcontext-mcp/internal/retriever"
	"github.com/dshills/texcontext-mcp/internal/semantic"
)

// EnvPrefix prefixes every environment variable, e.g. TEXCONTEXT_MODEL
const EnvPrefix = "TEXCONTEXT"

// ErrInvalid is wrapped by every validation error
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete runtime configuration
type Config struct {
	// generation backend
	APIKey          string `mapstructure:"api_key"`
	BaseURL         string `mapstructure:"base_url"`
	Model           string `mapstructure:"model"`
	MaxOutputTokens int    `mapstructure:"max_output_tokens"`
	PromptTemplate  string `mapstructure:"prompt_template"`

	// embeddings
	EmbeddingProvider string `mapstructure:"embedding_provider"`
	EmbeddingAPIKey   string `mapstructure:"embedding_api_key"`
	EmbeddingBaseURL  string `mapstructure:"embedding_base_url"`
	EmbeddingModel    string `mapstructure:"embedding_model"`
	JinaAPIKey        string `mapstructure:"jina_api_key"`

	// context assembly
	ProjectRoot        string        `mapstructure:"project_root"`
	MaxContextUnits    int           `mapstructure:"max_context_units"`
	CharsPerUnit       int           `mapstructure:"chars_per_unit"`
	QueryCacheCapacity int           `mapstructure:"query_cache_capacity"`
	QueryCacheTTL      time.Duration `mapstructure:"query_cache_ttl"`
	IndexFreshness     time.Duration `mapstructure:"index_freshness"`
	ScanTTL            time.Duration `mapstructure:"scan_ttl"`
	RefreshWait        time.Duration `mapstructure:"refresh_wait"`
	Workers            int           `mapstructure:"workers"`

	LogLevel string `mapstructure:"log_level"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	b := retriever.DefaultBudget()
	return Config{
		Model:              generator.DefaultModel,
		MaxOutputTokens:    generator.DefaultMaxTokens,
		ProjectRoot:        ".",
		MaxContextUnits:    b.MaxUnits,
		CharsPerUnit:       b.CharsPerUnit,
		QueryCacheCapacity: querycache.DefaultCapacity,
		QueryCacheTTL:      querycache.DefaultTTL,
		IndexFreshness:     semantic.DefaultFreshness,
		ScanTTL:            project.DefaultTTL,
		RefreshWait:        project.DefaultRefreshWait,
		LogLevel:           "info",
	}
}

// flag name -> config key
var flagKeys = map[string]string{
	"api-key":            "api_key",
	"base-url":           "base_url",
	"model":              "model",
	"max-output-tokens":  "max_output_tokens",
	"prompt-template":    "prompt_template",
	"embedding-provider": "embedding_provider",
	"embedding-model":    "embedding_model",
	"project-root":       "project_root",
	"max-context-units":  "max_context_units",
	"log-level":          "log_level",
}

// RegisterFlags adds the command-line overrides to fs
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.StringP("config", "c", "", "path to a texcontext.yaml or texcontext.json file")
	fs.String("api-key", "", "API key for the generation backend")
	fs.String("base-url", "", "alternate OpenAI-compatible base URL")
	fs.String("model", d.Model, "generation model")
	fs.Int("max-output-tokens", d.MaxOutputTokens, "maximum tokens per completion")
	fs.String("prompt-template", "", "custom prompt template; <input> bypasses context assembly")
	fs.String("embedding-provider", "", "embedding provider: openai, jina or none (default: detect from keys)")
	fs.String("embedding-model", "", "embedding model")
	fs.String("project-root", d.ProjectRoot, "directory containing the LaTeX project")
	fs.Int("max-context-units", d.MaxContextUnits, "context budget in estimated tokens")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn or error")
}

// Load layers defaults, the config file, environment variables and flags, in
// increasing priority. fs may be nil. A config file named by the --config
// flag must exist; otherwise texcontext.yaml or texcontext.json is looked up
// in the working directory and skipped when absent.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// well-known variables shared with other tools
	_ = v.BindEnv("api_key", EnvPrefix+"_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("jina_api_key", EnvPrefix+"_JINA_API_KEY", "JINA_API_KEY")

	file := ""
	if fs != nil {
		if f := fs.Lookup("config"); f != nil {
			file = f.Value.String()
		}
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("texcontext")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("model", d.Model)
	v.SetDefault("max_output_tokens", d.MaxOutputTokens)
	v.SetDefault("prompt_template", "")
	v.SetDefault("embedding_provider", "")
	v.SetDefault("embedding_api_key", "")
	v.SetDefault("embedding_base_url", "")
	v.SetDefault("embedding_model", "")
	v.SetDefault("jina_api_key", "")
	v.SetDefault("project_root", d.ProjectRoot)
	v.SetDefault("max_context_units", d.MaxContextUnits)
	v.SetDefault("chars_per_unit", d.CharsPerUnit)
	v.SetDefault("query_cache_capacity", d.QueryCacheCapacity)
	v.SetDefault("query_cache_ttl", d.QueryCacheTTL)
	v.SetDefault("index_freshness", d.IndexFreshness)
	v.SetDefault("scan_ttl", d.ScanTTL)
	v.SetDefault("refresh_wait", d.RefreshWait)
	v.SetDefault("workers", 0)
	v.SetDefault("log_level", d.LogLevel)
}

// Validate checks value ranges
func (c *Config) Validate() error {
	var errs []error
	positive := map[string]int{
		"max_output_tokens":    c.MaxOutputTokens,
		"max_context_units":    c.MaxContextUnits,
		"chars_per_unit":       c.CharsPerUnit,
		"query_cache_capacity": c.QueryCacheCapacity,
	}
	for name, n := range positive {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalid, name, n))
		}
	}
	durations := map[string]time.Duration{
		"query_cache_ttl": c.QueryCacheTTL,
		"index_freshness": c.IndexFreshness,
		"scan_ttl":        c.ScanTTL,
		"refresh_wait":    c.RefreshWait,
	}
	for name, d := range durations {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, name, d))
		}
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers must not be negative", ErrInvalid))
	}
	switch strings.ToLower(c.EmbeddingProvider) {
	case "", embedder.ProviderOpenAI, embedder.ProviderJina, embedder.ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown embedding_provider %q", ErrInvalid, c.EmbeddingProvider))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

// SlogLevel parses LogLevel
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

// EmbedderConfig selects the embedding backend. Without an explicit provider a
// Jina key wins, then an embedding key or the generation key selects OpenAI.
func (c *Config) EmbedderConfig() embedder.Config {
	cfg := embedder.Config{
		Provider: strings.ToLower(c.EmbeddingProvider),
		APIKey:   c.EmbeddingAPIKey,
		BaseURL:  c.EmbeddingBaseURL,
		Model:    c.EmbeddingModel,
	}
	switch cfg.Provider {
	case embedder.ProviderJina:
		if cfg.APIKey == "" {
			cfg.APIKey = c.JinaAPIKey
		}
	case "":
		if c.JinaAPIKey != "" && cfg.APIKey == "" {
			cfg.Provider = embedder.ProviderJina
			cfg.APIKey = c.JinaAPIKey
			break
		}
		fallthrough
	case embedder.ProviderOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = c.APIKey
		}
	}
	return cfg
}

// GeneratorConfig returns the generation backend settings
func (c *Config) GeneratorConfig() generator.Config {
	return generator.Config{
		APIKey:    c.APIKey,
		BaseURL:   c.BaseURL,
		Model:     c.Model,
		MaxTokens: c.MaxOutputTokens,
	}
}

// Budget returns the context budget
func (c *Config) Budget() retriever.Budget {
	b := retriever.DefaultBudget()
	b.MaxUnits = c.MaxContextUnits
	b.CharsPerUnit = c.CharsPerUnit
	return b
}
