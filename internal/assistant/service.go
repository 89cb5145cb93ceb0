package assistant

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dshills/texcontext-mcp/internal/changes"
	"github.com/dshills/texcontext-mcp/internal/config"
	"github.com/dshills/texcontext-mcp/internal/embedder"
	"github.com/dshills/texcontext-mcp/internal/generator"
	"github.com/dshills/texcontext-mcp/internal/indexer"
	"github.com/dshills/texcontext-mcp/internal/project"
	"github.com/dshills/texcontext-mcp/internal/prompt"
	"github.com/dshills/texcontext-mcp/internal/querycache"
	"github.com/dshills/texcontext-mcp/internal/retriever"
	"github.com/dshills/texcontext-mcp/internal/semantic"
	"github.com/dshills/texcontext-mcp/pkg/types"
)

// ErrClosed is returned after Close
var ErrClosed = errors.New("assistant service closed")

// Options are the collaborators of a Service. Only Source is required.
type Options struct {
	Config   *config.Config
	Source   project.Source
	Embedder embedder.Embedder // nil ranks lexically
	Backend  generator.Backend // nil disables completion
	Logger   *slog.Logger
}

// Service owns the caches of one editing session and exposes context
// assembly, completion and change notification
type Service struct {
	cfg       *config.Config
	source    project.Source
	scans     *project.ScanCache
	index     *semantic.Cache
	tracker   *changes.Tracker
	retriever *retriever.Retriever
	queries   *querycache.Cache
	renderer  *prompt.Renderer
	embedder  embedder.Embedder
	backend   generator.Backend
	logger    *slog.Logger
	closed    atomic.Bool
}

// New wires a Service from its collaborators
func New(opts Options) (*Service, error) {
	if opts.Source == nil {
		return nil, errors.New("assistant: source is required")
	}
	cfg := opts.Config
	if cfg == nil {
		d := config.Defaults()
		cfg = &d
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:      cfg,
		source:   opts.Source,
		tracker:  changes.NewTracker(changes.DefaultHistorySize),
		renderer: prompt.New(cfg.PromptTemplate),
		embedder: opts.Embedder,
		backend:  opts.Backend,
		logger:   logger,
	}
	s.scans = project.NewScanCache(opts.Source, project.Config{
		TTL:         cfg.ScanTTL,
		RefreshWait: cfg.RefreshWait,
	}, logger.With("component", "project"))

	idx := indexer.New(opts.Embedder, &indexer.Config{Workers: cfg.Workers}, logger.With("component", "indexer"))
	s.index = semantic.New(idx, opts.Embedder, semantic.Config{Freshness: cfg.IndexFreshness}, logger.With("component", "semantic"))

	s.retriever = retriever.New(s.scans, s.index, s.tracker, retriever.Config{Budget: cfg.Budget()}, logger.With("component", "retriever"))
	s.queries = querycache.New(s.build, querycache.Config{
		Capacity: cfg.QueryCacheCapacity,
		TTL:      cfg.QueryCacheTTL,
	}, logger.With("component", "querycache"))

	return s, nil
}

// NewFromConfig builds a Service over a project directory with the backends
// cfg selects. Missing credentials degrade to lexical ranking and no
// completion rather than failing.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	src, err := project.NewDirSource(cfg.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}

	emb, err := embedder.New(cfg.EmbedderConfig())
	switch {
	case errors.Is(err, embedder.ErrNoProviderEnabled):
		logger.Info("no embedding provider configured, using lexical ranking")
		emb = nil
	case err != nil:
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	var backend generator.Backend
	gen, err := generator.NewOpenAI(cfg.GeneratorConfig(), logger.With("component", "generator"))
	switch {
	case errors.Is(err, generator.ErrNotConfigured):
		logger.Info("no generation backend configured, completion disabled")
	case err != nil:
		return nil, fmt.Errorf("create generator: %w", err)
	default:
		backend = gen
	}

	return New(Options{Config: cfg, Source: src, Embedder: emb, Backend: backend, Logger: logger})
}

// Request identifies a cursor and what the user wants there. Empty FilePath
// means the source's active file; empty Content means the scanned copy.
type Request struct {
	FilePath    string
	Content     string
	Cursor      int
	Task        string
	Instruction string
}

// resolve fills the file, cursor and content from the source when missing
func (s *Service) resolve(ctx context.Context, req Request) (Request, *types.ProjectContext) {
	pc := s.scans.Get(ctx)
	if req.FilePath == "" {
		if loc, err := s.source.CurrentFile(ctx); err == nil {
			req.FilePath = loc.Path
			if req.Content == "" {
				req.Cursor = loc.Offset
			}
		}
	}
	req.FilePath = project.NormalizePath(s.source, req.FilePath)
	if req.Content == "" {
		if f, ok := pc.File(req.FilePath); ok {
			req.Content = f.Content
		}
	}
	return req, pc
}

// AssembleContext returns the budget-fitted context for req. Failures in
// scanning or indexing degrade the result instead of failing it.
func (s *Service) AssembleContext(ctx context.Context, req Request) (*types.Context, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	task, err := retriever.ParseTask(req.Task)
	if err != nil {
		return nil, err
	}
	req, pc := s.resolve(ctx, req)

	return s.queries.GetOrBuild(ctx, querycache.Query{
		Content:            req.Content,
		CursorPosition:     req.Cursor,
		FilePath:           req.FilePath,
		ProjectFingerprint: pc.Fingerprint(),
		Task:               string(task),
		Instruction:        req.Instruction,
	})
}

// build is the query cache's miss handler
func (s *Service) build(ctx context.Context, q querycache.Query) (*types.Context, error) {
	return s.retriever.Retrieve(ctx, retriever.Request{
		FilePath: q.FilePath,
		Content:  q.Content,
		Cursor:   q.CursorPosition,
		Task:     retriever.Task(q.Task),
		Query:    q.Instruction,
	}), nil
}

// Prompt renders the prompt for req. A template with an <input> placeholder
// skips context assembly and the returned context is nil.
func (s *Service) Prompt(ctx context.Context, req Request) (prompt.Prompt, *types.Context, error) {
	if s.renderer.Bypass() {
		return s.renderer.RenderInput(req.Instruction), nil, nil
	}
	c, err := s.AssembleContext(ctx, req)
	if err != nil {
		return prompt.Prompt{}, nil, err
	}
	return s.renderer.Render(c, req.Instruction), c, nil
}

// Complete streams a completion for req. The sequence yields
// generator.ErrNotConfigured when no backend is set and ends quietly when
// ctx is cancelled.
func (s *Service) Complete(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s.backend == nil {
			yield("", generator.ErrNotConfigured)
			return
		}
		p, _, err := s.Prompt(ctx, req)
		if err != nil {
			yield("", err)
			return
		}
		for text, err := range s.backend.Stream(ctx, generator.Request{
			System:    p.System,
			User:      p.User,
			MaxTokens: s.cfg.MaxOutputTokens,
		}) {
			if !yield(text, err) || err != nil {
				return
			}
		}
	}
}

// ContentChanged reports the latest content of path, typically on every edit.
// It records the edit, hands the buffer to sources that accept one and
// invalidates the caches
// when the content differs from the last report.
func (s *Service) ContentChanged(path, content string) changes.Summary {
	path = project.NormalizePath(s.source, path)
	summary := s.tracker.Observe(path, content)
	if b, ok := s.source.(bufferSource); ok {
		b.Put(path, content)
	}
	if summary.Changed() {
		s.invalidateFile(path)
	}
	return summary
}

// FileChanged reports a change detected by the integration layer. The
// summary's edits join the recent-edit history.
func (s *Service) FileChanged(path string, summary changes.Summary) {
	path = project.NormalizePath(s.source, path)
	summary.Path = path
	s.tracker.Record(summary)
	s.invalidateFile(path)
}

// RefreshFile re-reads path from the source, within the configured wait, and
// handles it as ContentChanged. When the source cannot deliver the file the
// caches are still invalidated.
func (s *Service) RefreshFile(ctx context.Context, path string) (changes.Summary, error) {
	path = project.NormalizePath(s.source, path)
	doc, err := s.scans.RefreshFile(ctx, path)
	if err != nil {
		s.invalidateFile(path)
		return changes.Summary{Path: path}, err
	}
	return s.ContentChanged(path, doc.Content), nil
}

// SetCursor records the active file for sources that track one
func (s *Service) SetCursor(path string, offset int) {
	type cursorSetter interface{ SetCurrent(string, int) }
	if cs, ok := s.source.(cursorSetter); ok {
		cs.SetCurrent(project.NormalizePath(s.source, path), offset)
	}
}

// bufferSource is a source that accepts editor buffers
type bufferSource interface {
	Put(path, content string)
}

// invalidateFile drops caches from the bottom up, so a rebuild started after
// a layer is cleared never reads a layer below it that is still stale
func (s *Service) invalidateFile(path string) {
	s.scans.Invalidate()
	s.index.Invalidate()
	removed := s.queries.InvalidateFile(path)
	s.logger.Debug("file changed", "file", path, "contexts_dropped", removed)
}

// Invalidate drops every cache and the edit history
func (s *Service) Invalidate() {
	s.scans.Invalidate()
	s.index.Invalidate()
	s.queries.Clear()
	s.tracker.Reset()
}

// Close releases the embedding backend. Further requests fail with ErrClosed.
func (s *Service) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.embedder != nil {
		return s.embedder.Close()
	}
	return nil
}

// Budget is the context budget applied to every assembly
func (s *Service) Budget() retriever.Budget {
	return s.retriever.Budget()
}

// Status is a snapshot of the service state
type Status struct {
	Files        int
	MainDocument string
	Fingerprint  string

	IndexMode      string
	IndexChunks    int
	IndexBuilds    int64
	IndexBuiltAt   time.Time
	IndexFailures  []string
	LexicalQueries int64 // dense queries that fell back to lexical ranking

	Scans        int64
	ScanFailures int64
	QueryCache   querycache.Stats

	Embedder   string
	Completion bool
	Budget     retriever.Budget
}

// Status reports cache and backend state. It may trigger a project scan.
func (s *Service) Status(ctx context.Context) Status {
	pc := s.scans.Get(ctx)
	st := Status{
		Files:          len(pc.AllFiles),
		Fingerprint:    pc.Fingerprint(),
		IndexBuilds:    s.index.Builds(),
		LexicalQueries: s.index.Fallbacks(),
		Scans:          s.scans.Scans(),
		ScanFailures:   s.scans.Failures(),
		QueryCache:     s.queries.Stats(),
		Embedder:       embedder.ProviderNone,
		Completion:     s.backend != nil,
		Budget:         s.retriever.Budget(),
	}
	if pc.MainDocument != nil {
		st.MainDocument = pc.MainDocument.Path
	}
	if snap := s.index.Current(); snap != nil {
		st.IndexMode = string(snap.Mode)
		st.IndexChunks = len(snap.Chunks)
		st.IndexBuiltAt = snap.BuiltAt
		if snap.Stats != nil {
			st.IndexFailures = snap.Stats.ErrorMessages
		}
	}
	if s.embedder != nil {
		st.Embedder = s.embedder.Provider() + "/" + s.embedder.Model()
	}
	return st
}
