// Package chunker divides LaTeX documents into chunks for indexing and retrieval.
//
// Chunks follow the document's own structure: one chunk per heading (running
// until the next heading), one per matched environment, one per citation key and
// one per import command. Environment and citation chunks overlap the heading
// chunk that contains them; both are kept as independent retrieval candidates.
//
// # Basic Usage
//
//	chunks := chunker.Extract(content, "main.tex")
//	for _, ch := range chunks {
//	    fmt.Printf("%s lines %d-%d\n", ch.Summary(), ch.StartLine, ch.EndLine)
//	}
//
// # Heading Chunks
//
// \part, \chapter, \section, \subsection and \subsubsection (starred or with a
// short title) open a chunk. Other sectioning commands such as \paragraph are
// treated as sections. Body text before the first heading becomes an implicit
// "document" chunk, and everything before \begin{document} becomes a single
// "preamble" chunk.
//
// # Environments
//
// Matched \begin{name} ... \end{name} pairs for equations, figures, tables,
// definitions, theorems and proofs produce chunks; \[ ... \] counts as an
// equation. Environments that are never closed produce nothing. A \label inside
// an environment is recorded in the chunk metadata and used for its ID.
//
// # Identity
//
// Chunk IDs are xxh3 hashes of (source file, kind, discriminator), where the
// discriminator is a title, label or citation key plus an occurrence counter.
// Re-extracting an unchanged region yields the same ID.
//
// # Budget Estimation
//
// EstimateUnits approximates prompt cost as ceil(characters / ratio) with a
// default ratio of 4.
package chunker
