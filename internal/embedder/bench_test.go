package embedder

import (
	"fmt"
	"testing"
)

func BenchmarkComputeHash(b *testing.B) {
	texts := []string{
		"short",
		"\\section{Method} medium length text for hashing",
		"\\begin{theorem} this is a longer text that represents a typical theorem chunk that might be embedded for retrieval \\end{theorem}",
	}

	for _, text := range texts {
		b.Run(fmt.Sprintf("len=%d", len(text)), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				_ = ComputeHash(DefaultOpenAIModel, text)
			}
		})
	}
}

func BenchmarkCache(b *testing.B) {
	cache := NewCache(10000)
	emb := &Embedding{
		Vector:    make([]float32, OpenAIDimension),
		Dimension: OpenAIDimension,
		Provider:  ProviderOpenAI,
		Model:     "test",
	}

	b.Run("set", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			cache.Set(fmt.Sprintf("hash-%d", i%1000), emb)
		}
	})

	b.Run("get", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = cache.Get(fmt.Sprintf("hash-%d", i%1000))
		}
	})
}

func BenchmarkConcurrentCache(b *testing.B) {
	cache := NewCache(1000)
	emb := &Embedding{Vector: make([]float32, 64), Dimension: 64}

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			hash := fmt.Sprintf("hash-%d", i%500)
			if i%4 == 0 {
				cache.Set(hash, emb)
			} else {
				_, _ = cache.Get(hash)
			}
			i++
		}
	})
}
