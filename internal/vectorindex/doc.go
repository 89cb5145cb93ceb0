// Package vectorindex ranks chunks against a query by cosine similarity.
//
// An Index commits to one Mode. Lexical indexes derive vectors from their own
// word-frequency table (each component is a word's count in the chunk divided by
// its count across all chunks). Dense indexes store vectors from an embedding
// backend. Queries in the wrong mode or dimension fail with ErrModeMismatch or
// ErrDimensionMismatch instead of producing meaningless scores.
package vectorindex
