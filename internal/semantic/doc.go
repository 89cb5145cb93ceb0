// Package semantic caches the project-wide semantic index.
//
// A Cache publishes immutable Snapshots through an atomic pointer. A snapshot
// is served until its freshness window (60s by default) lapses or Invalidate
// is called; the next request then rebuilds it through the indexer.
// Concurrent rebuild requests collapse into one.
//
// Queries against a dense snapshot embed the query text. If that fails the
// search silently runs against lexical vectors built over the same chunks.
package semantic
