package retriever

import (
	"context"
	"log/slog"
	"time"

	"github.com/dshills/texcontext-mcp/internal/changes"
	"github.com/dshills/texcontext-mcp/internal/chunker"
	"github.com/dshills/texcontext-mcp/internal/project"
	"github.com/dshills/texcontext-mcp/internal/semantic"
	"github.com/dshills/texcontext-mcp/internal/vectorindex"
	"github.com/dshills/texcontext-mcp/pkg/types"
)

const (
	// DefaultMaxMatches is how many semantic matches are requested before budgeting
	DefaultMaxMatches = 8
	// DefaultMaxRecent is how many recent edits are considered
	DefaultMaxRecent = 10
)

// Config tunes a Retriever
type Config struct {
	Budget     Budget
	MaxMatches int
	MaxRecent  int
}

// Request asks for the context around a cursor
type Request struct {
	FilePath string
	Content  string // active file content; empty means use the scanned copy
	Cursor   int    // byte offset into Content
	Task     Task
	Query    string // search text; empty derives it from the text before the cursor
}

// Retriever assembles budget-fitted contexts from the project scan, the
// semantic index and the edit history
type Retriever struct {
	scans   *project.ScanCache
	index   *semantic.Cache
	tracker *changes.Tracker
	chunker *chunker.Chunker
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Retriever. tracker may be nil.
func New(scans *project.ScanCache, index *semantic.Cache, tracker *changes.Tracker, cfg Config, logger *slog.Logger) *Retriever {
	cfg.Budget = cfg.Budget.normalized()
	if cfg.MaxMatches <= 0 {
		cfg.MaxMatches = DefaultMaxMatches
	}
	if cfg.MaxRecent <= 0 {
		cfg.MaxRecent = DefaultMaxRecent
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		scans:   scans,
		index:   index,
		tracker: tracker,
		chunker: chunker.New(),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Budget returns the budget contexts are fitted to
func (r *Retriever) Budget() Budget {
	return r.cfg.Budget
}

// Retrieve assembles the context for req. It always produces a result:
// scan and index failures degrade to smaller bundles.
func (r *Retriever) Retrieve(ctx context.Context, req Request) *types.Context {
	start := r.now()
	task := req.Task
	if task == "" {
		task = TaskCompletion
	}

	pc := r.scans.Get(ctx)
	content := req.Content
	if content == "" {
		if f, ok := pc.File(req.FilePath); ok {
			content = f.Content
		}
	}
	cursor := clamp(req.Cursor, len(content))

	query := req.Query
	if query == "" {
		query = QueryText(content, cursor)
	}

	var matches []types.SemanticMatch
	if !pc.Empty() {
		snap := r.index.BuildOrGetIndex(ctx, r.scans.Get)
		line := CursorLine(content, cursor)
		matches = r.index.FindRelevantContext(ctx, snap, query, vectorindex.SearchOptions{
			K: r.cfg.MaxMatches,
			Filter: func(ch *types.Chunk) bool {
				if !task.Allows(ch.Kind) {
					return false
				}
				// the immediate section already covers the cursor's own chunks
				return ch.SourceFile != req.FilePath || !ch.ContainsLine(line)
			},
		})
	}

	var recent []types.RecentEdit
	if r.tracker != nil {
		recent = r.tracker.Recent(r.cfg.MaxRecent)
	}

	bundle := Compose(Sources{
		Content:    content,
		Cursor:     cursor,
		Matches:    matches,
		Outline:    chunker.Outline(r.chunker.Extract(content, req.FilePath)),
		Recent:     recent,
		ProjectSum: ProjectSummary(pc),
	}, r.cfg.Budget)
	fitted := FitToBudget(bundle, r.cfg.Budget)

	r.logger.Debug("context assembled",
		"file", req.FilePath,
		"task", task,
		"semantic", len(fitted.Semantic),
		"structural", len(fitted.Structural),
		"recent", len(fitted.Recent),
		"units", r.cfg.Budget.Size(fitted),
		"duration", r.now().Sub(start))

	return &types.Context{
		Bundle:         fitted,
		FilePath:       req.FilePath,
		CursorPosition: cursor,
		Task:           string(task),
		Query:          query,
		BuiltAt:        r.now(),
	}
}
