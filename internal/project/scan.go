package project

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dshills/texcontext-mcp/pkg/types"
)

const (
	// DefaultTTL is how long a scan result is reused
	DefaultTTL = 30 * time.Second
	// DefaultRefreshWait bounds how long RefreshFile waits on the source
	DefaultRefreshWait = 2 * time.Second
)

// MainDocumentNames are the conventional main-file names, in priority order
var MainDocumentNames = []string{
	"main.tex", "paper.tex", "thesis.tex", "document.tex", "manuscript.tex",
	"article.tex", "report.tex", "book.tex", "root.tex",
}

// SelectMainDocument returns the index of the main document in files: the
// first conventional name in priority order, else the first file. It returns
// -1 for an empty slice.
func SelectMainDocument(files []types.DocumentFile) int {
	if len(files) == 0 {
		return -1
	}
	for _, name := range MainDocumentNames {
		for i := range files {
			if strings.EqualFold(files[i].Name, name) {
				return i
			}
		}
	}
	return 0
}

// NewProjectContext builds a context whose MainDocument points into AllFiles
func NewProjectContext(current string, files []types.DocumentFile) *types.ProjectContext {
	pc := &types.ProjectContext{CurrentFile: current, AllFiles: files}
	if i := SelectMainDocument(files); i >= 0 {
		pc.MainDocument = &pc.AllFiles[i]
	}
	return pc
}

// ScanCache caches the result of scanning a Source for a fixed TTL
type ScanCache struct {
	source      Source
	ttl         time.Duration
	refreshWait time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu         sync.Mutex
	cached     *types.ProjectContext
	scannedAt  time.Time
	generation uint64
	cachedGen  uint64

	group    singleflight.Group
	scans    atomic.Int64
	failures atomic.Int64
}

// Config configures a ScanCache
type Config struct {
	TTL         time.Duration
	RefreshWait time.Duration
}

// NewScanCache creates a scan cache over source
func NewScanCache(source Source, cfg Config, logger *slog.Logger) *ScanCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RefreshWait <= 0 {
		cfg.RefreshWait = DefaultRefreshWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanCache{
		source:      source,
		ttl:         cfg.TTL,
		refreshWait: cfg.RefreshWait,
		logger:      logger,
		now:         time.Now,
	}
}

// Source returns the underlying document source
func (s *ScanCache) Source() Source {
	return s.source
}

// Get returns the cached project context, scanning when it has expired or
// been invalidated. A failed scan yields an empty context and is not cached.
func (s *ScanCache) Get(ctx context.Context) *types.ProjectContext {
	s.mu.Lock()
	if s.cached != nil && s.cachedGen == s.generation && s.now().Sub(s.scannedAt) < s.ttl {
		pc := s.cached
		s.mu.Unlock()
		return pc
	}
	gen := s.generation
	s.mu.Unlock()

	// callers after an Invalidate never share a scan started before it
	v, _, _ := s.group.Do("scan/"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		return s.scan(ctx, gen), nil
	})
	return v.(*types.ProjectContext)
}

func (s *ScanCache) scan(ctx context.Context, gen uint64) *types.ProjectContext {
	s.scans.Add(1)
	files, err := s.source.ListProjectFiles(ctx)
	if err != nil {
		s.failures.Add(1)
		s.logger.Warn("project scan failed, continuing without project context", "error", err)
		return &types.ProjectContext{}
	}

	current := ""
	if loc, err := s.source.CurrentFile(ctx); err == nil {
		current = loc.Path
	} else if !errors.Is(err, ErrNoActiveFile) {
		s.logger.Debug("active file unavailable", "error", err)
	}

	pc := NewProjectContext(current, files)

	s.mu.Lock()
	// an invalidation during the scan leaves the result uncached
	if gen == s.generation {
		s.cached = pc
		s.cachedGen = gen
		s.scannedAt = s.now()
	}
	s.mu.Unlock()

	s.logger.Debug("project scanned", "files", len(files), "fingerprint", pc.Fingerprint())
	return pc
}

// Invalidate drops the cached scan; the next Get rescans
func (s *ScanCache) Invalidate() {
	s.mu.Lock()
	s.generation++
	s.cached = nil
	s.mu.Unlock()
}

// RefreshFile asks the source for the current content of path, waiting at
// most the configured refresh bound
func (s *ScanCache) RefreshFile(ctx context.Context, path string) (types.DocumentFile, error) {
	ctx, cancel := context.WithTimeout(ctx, s.refreshWait)
	defer cancel()
	return s.source.Refresh(ctx, filepath.ToSlash(path))
}

// Scans returns how many scans have run
func (s *ScanCache) Scans() int64 {
	return s.scans.Load()
}

// Failures returns how many scans failed
func (s *ScanCache) Failures() int64 {
	return s.failures.Load()
}
