package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/texcontext-mcp/internal/chunker"
	"github.com/dshills/texcontext-mcp/internal/embedder"
	"github.com/dshills/texcontext-mcp/internal/vectorindex"
	"github.com/dshills/texcontext-mcp/pkg/types"
)

// Indexer runs the rebuild pipeline: extract -> embed -> index.
// It holds no state between builds and is safe for concurrent use.
type Indexer struct {
	chunker  *chunker.Chunker
	embedder embedder.Embedder // nil selects lexical vectors
	logger   *slog.Logger
	now      func() time.Time

	// Worker pool configuration
	workers int
}

// Config contains configuration for the indexer
type Config struct {
	Workers int // Number of concurrent workers (default: runtime.NumCPU())
}

// Statistics contains statistics about one build
type Statistics struct {
	FilesIndexed   int
	FilesFailed    int
	FilesEmbedded  int
	ChunksCreated  int
	VectorsDropped int
	Mode           vectorindex.Mode
	Duration       time.Duration
	ErrorMessages  []string
}

// Result is the output of a build: every extracted chunk, in file order, and
// an index over them in a single mode
type Result struct {
	Chunks []*types.Chunk
	Index  *vectorindex.Index
	Stats  *Statistics
}

// fileResult holds one file's output; each goroutine writes only its own slot
type fileResult struct {
	chunks  []*types.Chunk
	vectors [][]float32
	failed  bool
}

// New creates a new Indexer. emb may be nil.
func New(emb embedder.Embedder, cfg *Config, logger *slog.Logger) *Indexer {
	workers := runtime.NumCPU()
	if cfg != nil && cfg.Workers > 0 {
		workers = cfg.Workers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		chunker:  chunker.New(),
		embedder: emb,
		logger:   logger,
		now:      time.Now,
		workers:  workers,
	}
}

// Dense reports whether builds attempt dense vectors
func (idx *Indexer) Dense() bool {
	return idx.embedder != nil
}

// Build extracts and indexes every file. A failure in one file is recorded in
// the statistics and the remaining files are still indexed; Build itself never
// fails. When no file could be embedded the index falls back to lexical mode.
func (idx *Indexer) Build(ctx context.Context, files []types.DocumentFile) *Result {
	start := idx.now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}
	results := make([]fileResult, len(files))

	var (
		indexed  int32
		failed   int32
		embedded int32
		mu       sync.Mutex // Protect stats.ErrorMessages
	)
	recordErr := func(path string, err error) {
		mu.Lock()
		stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for i := range files {
		file := files[i]
		g.Go(func() error {
			res, err := idx.indexFile(gctx, file, start)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				recordErr(file.Path, err)
				idx.logger.Warn("skipping file in index rebuild", "file", file.Path, "error", err)
				results[i] = fileResult{failed: true}
				return nil
			}
			atomic.AddInt32(&indexed, 1)
			if res.vectors != nil {
				atomic.AddInt32(&embedded, 1)
			} else if idx.embedder != nil && len(res.chunks) > 0 {
				recordErr(file.Path, res.embedErr)
			}
			results[i] = res.fileResult
			return nil
		})
	}
	// goroutines only return nil
	_ = g.Wait()

	var all, denseChunks []*types.Chunk
	var denseVectors [][]float32
	for _, r := range results {
		all = append(all, r.chunks...)
		if r.vectors != nil {
			denseChunks = append(denseChunks, r.chunks...)
			denseVectors = append(denseVectors, r.vectors...)
		}
	}

	var index *vectorindex.Index
	if len(denseChunks) > 0 {
		dense, err := vectorindex.NewDense(denseChunks, denseVectors)
		if err == nil {
			index = dense
			stats.VectorsDropped = dense.Rejected()
		} else {
			idx.logger.Warn("dense index rejected, using lexical vectors", "error", err)
		}
	}
	if index == nil {
		index = vectorindex.NewLexical(all)
	}

	stats.FilesIndexed = int(indexed)
	stats.FilesFailed = int(failed)
	stats.FilesEmbedded = int(embedded)
	stats.ChunksCreated = len(all)
	stats.Mode = index.Mode()
	stats.Duration = idx.now().Sub(start)

	idx.logger.Debug("index rebuilt",
		"files", stats.FilesIndexed,
		"failed", stats.FilesFailed,
		"chunks", stats.ChunksCreated,
		"mode", stats.Mode,
		"duration", stats.Duration)

	return &Result{Chunks: all, Index: index, Stats: stats}
}

type indexedFile struct {
	fileResult
	embedErr error
}

// indexFile extracts one file and, with a dense backend, embeds its chunks.
// An embedding failure keeps the chunks without vectors.
func (idx *Indexer) indexFile(ctx context.Context, file types.DocumentFile, stamp time.Time) (res indexedFile, err error) {
	defer func() {
		// treat a panic in extraction as a failed file
		if r := recover(); r != nil {
			err = fmt.Errorf("extract: %v", r)
		}
	}()

	chunks := idx.chunker.Extract(file.Content, file.Path)
	for _, ch := range chunks {
		ch.LastModified = stamp
	}
	res.chunks = chunks

	if idx.embedder == nil || len(chunks) == 0 {
		return res, nil
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := embedder.EmbedAll(ctx, idx.embedder, texts)
	if err != nil {
		res.embedErr = fmt.Errorf("embed: %w", err)
		idx.logger.Warn("embedding failed, file kept for lexical fallback", "file", file.Path, "error", err)
		return res, nil
	}
	res.vectors = vectors
	return res, nil
}
