package semantic

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dshills/texcontext-mcp/internal/embedder"
	"github.com/dshills/texcontext-mcp/internal/indexer"
	"github.com/dshills/texcontext-mcp/internal/vectorindex"
	"github.com/dshills/texcontext-mcp/pkg/types"
)

// DefaultFreshness is how long a snapshot is served without rebuilding
const DefaultFreshness = 60 * time.Second

// Snapshot is an immutable semantic index published by a rebuild
type Snapshot struct {
	Index      *vectorindex.Index
	Chunks     []*types.Chunk // every extracted chunk, including ones without dense vectors
	BuiltAt    time.Time
	Mode       vectorindex.Mode
	Generation uint64
	Stats      *indexer.Statistics

	lexicalOnce sync.Once
	lexical     *vectorindex.Index
}

// Lexical returns a lexical index over all chunks, building it on first use
// when the snapshot is dense
func (s *Snapshot) Lexical() *vectorindex.Index {
	if s.Mode == vectorindex.ModeLexical {
		return s.Index
	}
	s.lexicalOnce.Do(func() {
		s.lexical = vectorindex.NewLexical(s.Chunks)
	})
	return s.lexical
}

// Config configures the semantic index cache
type Config struct {
	Freshness     time.Duration
	MinSimilarity float64
}

// Cache owns the current semantic index snapshot. Readers always see a
// complete snapshot; rebuilds replace it in one atomic store.
type Cache struct {
	indexer   *indexer.Indexer
	embedder  embedder.Embedder
	freshness time.Duration
	minSim    float64
	logger    *slog.Logger
	now       func() time.Time

	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
	group      singleflight.Group
	builds     atomic.Int64
	fallbacks  atomic.Int64
}

// New creates a semantic index cache. emb should be the embedder the indexer
// was built with, or nil for lexical-only operation.
func New(idx *indexer.Indexer, emb embedder.Embedder, cfg Config, logger *slog.Logger) *Cache {
	if cfg.Freshness <= 0 {
		cfg.Freshness = DefaultFreshness
	}
	if cfg.MinSimilarity == 0 {
		cfg.MinSimilarity = vectorindex.DefaultMinSimilarity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		indexer:   idx,
		embedder:  emb,
		freshness: cfg.Freshness,
		minSim:    cfg.MinSimilarity,
		logger:    logger,
		now:       time.Now,
	}
}

// fresh reports whether snap may be served without rebuilding
func (c *Cache) fresh(snap *Snapshot) bool {
	return snap != nil &&
		snap.Generation == c.generation.Load() &&
		c.now().Sub(snap.BuiltAt) < c.freshness
}

// ProjectFunc supplies the project a rebuild indexes
type ProjectFunc func(context.Context) *types.ProjectContext

// Static returns a ProjectFunc that always yields pc
func Static(pc *types.ProjectContext) ProjectFunc {
	return func(context.Context) *types.ProjectContext { return pc }
}

// BuildOrGetIndex returns the current snapshot if it is fresh and otherwise
// rebuilds it from the project load returns. Concurrent callers of one
// generation share a rebuild; a caller arriving after Invalidate never joins
// a rebuild that started before it.
func (c *Cache) BuildOrGetIndex(ctx context.Context, load ProjectFunc) *Snapshot {
	if snap := c.current.Load(); c.fresh(snap) {
		return snap
	}

	gen := c.generation.Load()
	v, _, _ := c.group.Do("rebuild/"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		// another caller may have finished a rebuild while we waited
		if snap := c.current.Load(); c.fresh(snap) && snap.Generation == gen {
			return snap, nil
		}
		return c.rebuild(context.WithoutCancel(ctx), gen, load), nil
	})
	return v.(*Snapshot)
}

// rebuild indexes the project as of generation gen. The project is loaded
// after gen was read, so an invalidation racing the load leaves the snapshot
// stale rather than mislabeled.
func (c *Cache) rebuild(ctx context.Context, gen uint64, load ProjectFunc) *Snapshot {
	var files []types.DocumentFile
	if load != nil {
		if project := load(ctx); project != nil {
			files = project.AllFiles
		}
	}

	res := c.indexer.Build(ctx, files)
	snap := &Snapshot{
		Index:      res.Index,
		Chunks:     res.Chunks,
		BuiltAt:    c.now(),
		Mode:       res.Index.Mode(),
		Generation: gen,
		Stats:      res.Stats,
	}
	c.publish(snap)
	c.builds.Add(1)

	if gen != c.generation.Load() {
		c.logger.Debug("index invalidated during rebuild, snapshot already stale", "generation", gen)
	}
	return snap
}

// publish stores snap unless a snapshot of a later generation is already current
func (c *Cache) publish(snap *Snapshot) {
	for {
		cur := c.current.Load()
		if cur != nil && cur.Generation > snap.Generation {
			return
		}
		if c.current.CompareAndSwap(cur, snap) {
			return
		}
	}
}

// Invalidate marks the current snapshot stale. The next request rebuilds.
// A rebuild in progress still finishes, but its snapshot is born stale and
// never replaces one of a later generation.
func (c *Cache) Invalidate() {
	c.generation.Add(1)
}

// Current returns the last published snapshot without checking freshness
func (c *Cache) Current() *Snapshot {
	return c.current.Load()
}

// Builds returns the number of completed rebuilds
func (c *Cache) Builds() int64 {
	return c.builds.Load()
}

// Fallbacks returns how many dense queries fell back to lexical ranking
func (c *Cache) Fallbacks() int64 {
	return c.fallbacks.Load()
}

// FindRelevantContext ranks snap against query and returns at most opts.K
// matches. Dense snapshots embed the query; if that fails the search runs
// against lexical vectors over the same chunks. It returns nil for a nil
// snapshot.
func (c *Cache) FindRelevantContext(ctx context.Context, snap *Snapshot, query string, opts vectorindex.SearchOptions) []types.SemanticMatch {
	if snap == nil || query == "" {
		return nil
	}
	if opts.MinSimilarity == 0 {
		opts.MinSimilarity = c.minSim
	}

	if snap.Mode == vectorindex.ModeDense && c.embedder != nil {
		matches, err := c.searchDense(ctx, snap, query, opts)
		if err == nil {
			return matches
		}
		c.fallbacks.Add(1)
		c.logger.Warn("dense query failed, using lexical ranking", "error", err)
	}

	matches, err := snap.Lexical().SearchText(query, opts)
	if err != nil {
		c.logger.Warn("lexical query failed", "error", err)
		return nil
	}
	return matches
}

func (c *Cache) searchDense(ctx context.Context, snap *Snapshot, query string, opts vectorindex.SearchOptions) ([]types.SemanticMatch, error) {
	emb, err := c.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, err
	}
	return snap.Index.SearchVector(vectorindex.ModeDense, emb.Vector, opts)
}
