package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{name: "explicit jina", cfg: Config{Provider: "Jina", APIKey: "k"}, want: ProviderJina},
		{name: "explicit openai", cfg: Config{Provider: "openai"}, want: ProviderOpenAI},
		{name: "key implies openai", cfg: Config{APIKey: "k"}, want: ProviderOpenAI},
		{name: "nothing configured", cfg: Config{}, want: ProviderNone},
		{name: "explicit none", cfg: Config{Provider: "none", APIKey: "k"}, want: ProviderNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectProvider(tt.cfg))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("openai", func(t *testing.T) {
		e, err := New(Config{APIKey: "test-key", Model: "text-embedding-3-large"})
		require.NoError(t, err)
		defer e.Close()
		assert.Equal(t, ProviderOpenAI, e.Provider())
		assert.Equal(t, "text-embedding-3-large", e.Model())
	})

	t.Run("jina", func(t *testing.T) {
		e, err := New(Config{Provider: ProviderJina, APIKey: "test-key"})
		require.NoError(t, err)
		defer e.Close()
		assert.Equal(t, ProviderJina, e.Provider())
		assert.Equal(t, DefaultJinaModel, e.Model())
		assert.Equal(t, JinaDimension, e.Dimension())
	})

	t.Run("no provider means lexical mode", func(t *testing.T) {
		e, err := New(Config{})
		assert.Nil(t, e)
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("provider without key", func(t *testing.T) {
		_, err := New(Config{Provider: ProviderJina})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(Config{Provider: "word2vec"})
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})
}
