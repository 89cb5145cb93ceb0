// Package types provides shared type definitions for the texcontext engine.
//
// The types here are passed between the extractor, the semantic index, the
// project scanner, the caches and the retriever. They carry no behaviour beyond
// validation, cloning and rendering.
//
// # Documents
//
// DocumentFile is an immutable snapshot of one file. ProjectContext groups the
// files of a scan and designates a main document, which always points at an
// element of AllFiles:
//
//	pc := &types.ProjectContext{AllFiles: files}
//	pc.MainDocument = &pc.AllFiles[0]
//
// # Chunks
//
// Chunk is a region of a document identified as a meaningful unit (a heading
// section, an equation, a citation). ChunkKind is a closed set; heading kinds
// have an ordinal Level used to indent outlines:
//
//	types.KindPart.Level() < types.KindSection.Level() // true
//
// Chunk offsets are 0-based inclusive line indices.
//
// # Results
//
// ContextBundle holds the five sections of assembled context (immediate,
// semantic, structural, recent, project). Context wraps a bundle with the
// query that produced it. Context.SourceFiles drives targeted cache
// invalidation when a file changes.
package types
