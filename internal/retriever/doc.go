// Package retriever assembles the context bundle handed to prompt rendering.
//
// A Retriever pulls the project scan, semantic matches, the outline of the
// active file and recent edits, then composes them into a types.ContextBundle
// and trims it to a Budget. Sizes are estimated as characters divided by a
// fixed ratio.
//
// Trimming removes semantic matches first, then outline entries, then recent
// edits, then the project summary. The text around the cursor is never
// trimmed.
package retriever
