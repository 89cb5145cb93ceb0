package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/texcontext-mcp/pkg/types"
)

var (
	ErrNoActiveFile = errors.New("no active file")
	ErrFileNotFound = errors.New("file not found in project")
	ErrFileTooLarge = errors.New("file exceeds size limit")
)

// Source is the document source a scan reads from. Implementations must be
// safe for concurrent use.
type Source interface {
	// ListProjectFiles returns every project document in a stable order
	ListProjectFiles(ctx context.Context) ([]types.DocumentFile, error)
	// CurrentFile returns the active file and cursor offset
	CurrentFile(ctx context.Context) (types.CursorLocation, error)
	// Refresh re-reads one file, returning its current content
	Refresh(ctx context.Context, path string) (types.DocumentFile, error)
}

// DefaultExtensions are the file types a DirSource treats as documents
var DefaultExtensions = []string{".tex", ".ltx"}

// MaxFileSize bounds how much of a single file is read
const MaxFileSize = 4 << 20

// DirSource reads documents from a directory tree. Buffers pushed with Put
// shadow the file on disk until the source is discarded.
type DirSource struct {
	root       string
	extensions map[string]bool

	mu      sync.RWMutex
	cursor  *types.CursorLocation
	overlay map[string]string
}

// NewDirSource creates a source rooted at dir. extensions defaults to DefaultExtensions.
func NewDirSource(dir string, extensions ...string) (*DirSource, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	ext := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		ext[strings.ToLower(e)] = true
	}
	return &DirSource{root: abs, extensions: ext, overlay: make(map[string]string)}, nil
}

// Root returns the absolute project directory
func (d *DirSource) Root() string {
	return d.root
}

// SetCurrent records the active file and cursor, as reported by the editor
func (d *DirSource) SetCurrent(path string, offset int) {
	d.mu.Lock()
	d.cursor = &types.CursorLocation{Path: d.rel(path), Offset: offset}
	d.mu.Unlock()
}

// Put records the editor's buffer for path. Scans and refreshes return it in
// place of the content on disk.
func (d *DirSource) Put(path, content string) {
	d.mu.Lock()
	d.overlay[d.rel(path)] = content
	d.mu.Unlock()
}

func (d *DirSource) pushed(rel string) (types.DocumentFile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	content, ok := d.overlay[rel]
	if !ok {
		return types.DocumentFile{}, false
	}
	return types.DocumentFile{Name: filepath.Base(filepath.FromSlash(rel)), Path: rel, Content: content}, true
}

func (d *DirSource) CurrentFile(_ context.Context) (types.CursorLocation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.cursor == nil {
		return types.CursorLocation{}, ErrNoActiveFile
	}
	return *d.cursor, nil
}

func (d *DirSource) ListProjectFiles(ctx context.Context) ([]types.DocumentFile, error) {
	var files []types.DocumentFile
	seen := make(map[string]bool)
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			if path != d.root && strings.HasPrefix(entry.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if file, ok := d.pushed(d.rel(path)); ok {
			seen[file.Path] = true
			files = append(files, file)
			return nil
		}
		file, err := d.read(path)
		if err != nil {
			// unreadable files are left out of the scan
			return nil
		}
		files = append(files, file)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", d.root, err)
	}

	// buffers not yet saved to disk follow the walked files
	d.mu.RLock()
	var unsaved []string
	for rel := range d.overlay {
		if !seen[rel] && d.extensions[strings.ToLower(filepath.Ext(rel))] {
			unsaved = append(unsaved, rel)
		}
	}
	d.mu.RUnlock()
	sort.Strings(unsaved)
	for _, rel := range unsaved {
		if file, ok := d.pushed(rel); ok {
			files = append(files, file)
		}
	}
	return files, nil
}

func (d *DirSource) Refresh(ctx context.Context, path string) (types.DocumentFile, error) {
	if err := ctx.Err(); err != nil {
		return types.DocumentFile{}, err
	}
	if file, ok := d.pushed(d.rel(path)); ok {
		return file, nil
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(d.root, filepath.FromSlash(path))
	}
	file, err := d.read(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return types.DocumentFile{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	return file, err
}

func (d *DirSource) read(abs string) (types.DocumentFile, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return types.DocumentFile{}, err
	}
	if info.Size() > MaxFileSize {
		return types.DocumentFile{}, fmt.Errorf("%w: %s", ErrFileTooLarge, abs)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return types.DocumentFile{}, err
	}
	return types.DocumentFile{
		Name:    filepath.Base(abs),
		Path:    d.rel(abs),
		Content: string(data),
	}, nil
}

// Normalize maps an absolute or relative path onto the file identity used in
// scans
func (d *DirSource) Normalize(path string) string {
	return d.rel(path)
}

// rel converts a path to the slash-separated form used as file identity
func (d *DirSource) rel(path string) string {
	if filepath.IsAbs(path) {
		if r, err := filepath.Rel(d.root, path); err == nil && !strings.HasPrefix(r, "..") {
			return filepath.ToSlash(r)
		}
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(filepath.Clean(path))
}

// NormalizePath maps an editor-supplied path onto the identity src uses for
// the same file
func NormalizePath(src Source, path string) string {
	if n, ok := src.(interface{ Normalize(string) string }); ok {
		return n.Normalize(path)
	}
	return filepath.ToSlash(path)
}

// MemorySource holds documents pushed by an editor integration. Files are
// listed in the order they were first pushed.
type MemorySource struct {
	mu     sync.RWMutex
	files  map[string]types.DocumentFile
	order  []string
	cursor *types.CursorLocation
}

// NewMemorySource creates an empty in-memory source
func NewMemorySource() *MemorySource {
	return &MemorySource{files: make(map[string]types.DocumentFile)}
}

// Put stores or replaces a document
func (m *MemorySource) Put(path, content string) {
	m.mu.Lock()
	if _, ok := m.files[path]; !ok {
		m.order = append(m.order, path)
	}
	m.files[path] = types.DocumentFile{Name: filepath.Base(path), Path: path, Content: content}
	m.mu.Unlock()
}

// Remove deletes a document
func (m *MemorySource) Remove(path string) {
	m.mu.Lock()
	if _, ok := m.files[path]; ok {
		delete(m.files, path)
		m.order = slices.DeleteFunc(m.order, func(p string) bool { return p == path })
	}
	m.mu.Unlock()
}

// SetCurrent records the active file and cursor
func (m *MemorySource) SetCurrent(path string, offset int) {
	m.mu.Lock()
	m.cursor = &types.CursorLocation{Path: path, Offset: offset}
	m.mu.Unlock()
}

func (m *MemorySource) ListProjectFiles(_ context.Context) ([]types.DocumentFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := make([]types.DocumentFile, 0, len(m.order))
	for _, path := range m.order {
		files = append(files, m.files[path])
	}
	return files, nil
}

func (m *MemorySource) CurrentFile(_ context.Context) (types.CursorLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cursor == nil {
		return types.CursorLocation{}, ErrNoActiveFile
	}
	return *m.cursor, nil
}

func (m *MemorySource) Refresh(ctx context.Context, path string) (types.DocumentFile, error) {
	if err := ctx.Err(); err != nil {
		return types.DocumentFile{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[path]
	if !ok {
		return types.DocumentFile{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	return f, nil
}
