// Package embedder generates dense vector embeddings for document chunks.
//
// Two providers are supported: any OpenAI-compatible embeddings endpoint
// (through the openai-go client) and Jina AI (plain HTTP). Both batch requests,
// cache vectors in an LRU keyed by model and content hash, and retry rate-limit
// and server errors with exponential backoff.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{APIKey: key})
//	if errors.Is(err, embedder.ErrNoProviderEnabled) {
//	    // no dense backend: fall back to lexical vectors
//	}
//	defer emb.Close()
//
//	vectors, err := embedder.EmbedAll(ctx, emb, texts)
//
// # Provider Selection
//
// Config.Provider selects "openai", "jina" or "none". When it is empty, a
// configured API key selects OpenAI and no key selects none. New returns
// ErrNoProviderEnabled for none so callers can treat the absence of a dense
// backend as a normal configuration rather than a failure.
//
// # Retries
//
// HTTP 429 and 5xx responses are retried with exponential backoff (initial
// 500ms, capped at 10s, giving up after 30s or when the context is done).
// Other errors are permanent and returned immediately, wrapped in
// ErrProviderFailed.
package embedder
