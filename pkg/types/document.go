package types

import (
	"fmt"
	"path/filepath"
)

// DocumentFile is an immutable snapshot of one project file
type DocumentFile struct {
	Name    string // base name, e.g. "main.tex"
	Path    string // path as reported by the document source
	Content string
}

// CursorLocation identifies the active file and the cursor offset inside it
type CursorLocation struct {
	Path   string
	Offset int
}

// ProjectContext is the result of a project scan.
// MainDocument points into AllFiles and is nil only when AllFiles is empty.
type ProjectContext struct {
	CurrentFile  string
	AllFiles     []DocumentFile
	MainDocument *DocumentFile
}

// File returns the project file with the given path or base name
func (p *ProjectContext) File(path string) (*DocumentFile, bool) {
	if p == nil {
		return nil, false
	}
	for i := range p.AllFiles {
		if p.AllFiles[i].Path == path {
			return &p.AllFiles[i], true
		}
	}
	base := filepath.Base(path)
	for i := range p.AllFiles {
		if p.AllFiles[i].Name == base {
			return &p.AllFiles[i], true
		}
	}
	return nil, false
}

// Empty reports whether the scan found no files
func (p *ProjectContext) Empty() bool {
	return p == nil || len(p.AllFiles) == 0
}

// Fingerprint is a cheap identifier of the project shape, used in cache keys
func (p *ProjectContext) Fingerprint() string {
	if p.Empty() {
		return "empty"
	}
	main := ""
	if p.MainDocument != nil {
		main = p.MainDocument.Path
	}
	return fmt.Sprintf("%s#%d", main, len(p.AllFiles))
}
