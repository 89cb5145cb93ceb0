package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SemanticMatch is a chunk ranked against a query
type SemanticMatch struct {
	Chunk *Chunk
	Score float64 // cosine similarity
}

// Render formats the match the way it appears in a prompt
func (m SemanticMatch) Render() string {
	return fmt.Sprintf("%% %s [%s:%d]\n%s", m.Chunk.Summary(), m.Chunk.SourceFile, m.Chunk.StartLine+1, m.Chunk.Content)
}

// OutlineEntry is one heading of the active document's structure
type OutlineEntry struct {
	Kind  ChunkKind
	Title string
	Line  int
}

// Render indents the entry by heading depth
func (o OutlineEntry) Render() string {
	depth := o.Kind.Level()
	if depth < 1 {
		depth = 1
	}
	return fmt.Sprintf("%s%s: %s", strings.Repeat("  ", depth-1), o.Kind, o.Title)
}

// RecentEdit records one changed line reported by the editor
type RecentEdit struct {
	Path string
	Line int
	Op   string // insert, delete or replace
	Text string
	At   time.Time
}

// Render formats the edit as a single line
func (e RecentEdit) Render() string {
	return fmt.Sprintf("%s:%d %s %s", e.Path, e.Line+1, e.Op, strings.TrimSpace(e.Text))
}

// ContextBundle is the assembled material handed to prompt rendering.
// Immediate is never trimmed by budget fitting.
type ContextBundle struct {
	Immediate  string
	Semantic   []SemanticMatch
	Structural []OutlineEntry
	Recent     []RecentEdit
	Project    string
}

// Sections renders every non-empty section as text, in prompt order
func (b ContextBundle) Sections() map[string]string {
	out := make(map[string]string, 5)
	if b.Project != "" {
		out["project"] = b.Project
	}
	if len(b.Structural) > 0 {
		lines := make([]string, len(b.Structural))
		for i, e := range b.Structural {
			lines[i] = e.Render()
		}
		out["structural"] = strings.Join(lines, "\n")
	}
	if len(b.Semantic) > 0 {
		parts := make([]string, len(b.Semantic))
		for i, m := range b.Semantic {
			parts[i] = m.Render()
		}
		out["semantic"] = strings.Join(parts, "\n\n")
	}
	if len(b.Recent) > 0 {
		lines := make([]string, len(b.Recent))
		for i, e := range b.Recent {
			lines[i] = e.Render()
		}
		out["recent"] = strings.Join(lines, "\n")
	}
	if b.Immediate != "" {
		out["immediate"] = b.Immediate
	}
	return out
}

// Clone copies the slices so a cached bundle cannot be mutated through a caller's copy
func (b ContextBundle) Clone() ContextBundle {
	out := b
	out.Semantic = append([]SemanticMatch(nil), b.Semantic...)
	out.Structural = append([]OutlineEntry(nil), b.Structural...)
	out.Recent = append([]RecentEdit(nil), b.Recent...)
	return out
}

// Context is the result of one assembly: a budget-fitted bundle plus the query it answers
type Context struct {
	Bundle         ContextBundle
	FilePath       string
	CursorPosition int
	Task           string
	Query          string
	BuiltAt        time.Time
}

// SourceFiles lists every file the context references, sorted
func (c *Context) SourceFiles() []string {
	seen := map[string]struct{}{}
	if c.FilePath != "" {
		seen[c.FilePath] = struct{}{}
	}
	for _, m := range c.Bundle.Semantic {
		if m.Chunk != nil {
			seen[m.Chunk.SourceFile] = struct{}{}
		}
	}
	for _, e := range c.Bundle.Recent {
		seen[e.Path] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// References reports whether the context draws on path
func (c *Context) References(path string) bool {
	for _, f := range c.SourceFiles() {
		if f == path {
			return true
		}
	}
	return false
}

// Clone returns a copy safe to hand out of a cache
func (c *Context) Clone() *Context {
	out := *c
	out.Bundle = c.Bundle.Clone()
	return &out
}
