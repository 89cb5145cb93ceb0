// Package generator talks to the text-generation backend.
//
// Backends stream completions as an iter.Seq2 of text fragments. Cancelling
// the request context ends the sequence quietly. Failures are classified as
// ErrRateLimited or ErrBackend so UserMessage can tell the user which one
// happened.
package generator
