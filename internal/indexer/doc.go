// Package indexer runs the rebuild pipeline behind the semantic index:
// every project file is extracted into chunks concurrently, embedded when a
// dense backend is configured, and collected into a single vectorindex.Index.
//
// A failure in one file never aborts a build. The file is recorded in
// Statistics.ErrorMessages and skipped; if it was only the embedding that
// failed, its chunks are still returned so that lexical fallback can see them.
// When no file could be embedded, the build commits to lexical mode.
//
//	idx := indexer.New(emb, &indexer.Config{Workers: 4}, logger)
//	res := idx.Build(ctx, project.AllFiles)
//	fmt.Println(res.Stats.Mode, len(res.Chunks))
package indexer
