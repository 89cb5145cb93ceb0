package retriever

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dshills/texcontext-mcp/pkg/types"
)

// CursorMarker marks the cursor inside the immediate section
const CursorMarker = "<cursor>"

// Sources are the raw inputs to Compose
type Sources struct {
	Content    string // active file content
	Cursor     int    // byte offset into Content
	Matches    []types.SemanticMatch
	Outline    []types.OutlineEntry
	Recent     []types.RecentEdit // newest first
	ProjectSum string
}

// Compose assembles a bundle from sources, sizing the immediate window and
// capping every other section to its nominal allotment
func Compose(src Sources, b Budget) types.ContextBundle {
	b = b.normalized()
	bundle := types.ContextBundle{
		Immediate: ImmediateWindow(src.Content, src.Cursor, b.allot(b.Immediate)*b.CharsPerUnit),
	}

	limit := b.allot(b.Semantic)
	used := 0
	for _, m := range src.Matches {
		// oversized matches are skipped so smaller ones further down can fit
		if n := b.Units(m.Render()); used+n <= limit {
			bundle.Semantic = append(bundle.Semantic, m)
			used += n
		}
	}

	limit, used = b.allot(b.Structural), 0
	for _, e := range src.Outline {
		n := b.Units(e.Render())
		if used+n > limit {
			break
		}
		bundle.Structural = append(bundle.Structural, e)
		used += n
	}

	limit, used = b.allot(b.Recent), 0
	for _, e := range src.Recent {
		n := b.Units(e.Render())
		if used+n > limit {
			break
		}
		bundle.Recent = append(bundle.Recent, e)
		used += n
	}

	bundle.Project = truncateRunes(src.ProjectSum, b.allot(b.Project)*b.CharsPerUnit)
	return bundle
}

// FitToBudget trims bundle until its estimated size is within b.MaxUnits.
// Semantic matches go first (lowest ranked first), then outline entries from
// the end, then recent edits oldest first, then the project summary. The
// immediate section is never touched, so the smallest possible result is the
// immediate section alone.
func FitToBudget(bundle types.ContextBundle, b Budget) types.ContextBundle {
	b = b.normalized()
	out := bundle.Clone()
	for b.Size(out) > b.MaxUnits {
		switch {
		case len(out.Semantic) > 0:
			out.Semantic = out.Semantic[:len(out.Semantic)-1]
		case len(out.Structural) > 0:
			out.Structural = out.Structural[:len(out.Structural)-1]
		case len(out.Recent) > 0:
			out.Recent = out.Recent[:len(out.Recent)-1]
		case out.Project != "":
			out.Project = ""
		default:
			return out
		}
	}
	return out
}

// ImmediateWindow returns up to maxChars characters around cursor with
// CursorMarker at the cursor: three quarters before it, the rest after
func ImmediateWindow(content string, cursor, maxChars int) string {
	cursor = clamp(cursor, len(content))
	if maxChars <= 0 {
		return CursorMarker
	}
	before := lastRunes(content[:cursor], maxChars*3/4)
	after := truncateRunes(content[cursor:], maxChars-utf8.RuneCountInString(before))
	return before + CursorMarker + after
}

// QueryText derives a search query from the text just before the cursor: the
// last few non-blank lines, bounded in length
func QueryText(content string, cursor int) string {
	const maxLines, maxChars = 3, 400
	cursor = clamp(cursor, len(content))
	lines := strings.Split(content[:cursor], "\n")
	var picked []string
	for i := len(lines) - 1; i >= 0 && len(picked) < maxLines; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			picked = append(picked, l)
		}
	}
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}
	return lastRunes(strings.Join(picked, " "), maxChars)
}

// CursorLine returns the 0-based line index of cursor in content
func CursorLine(content string, cursor int) int {
	return strings.Count(content[:clamp(cursor, len(content))], "\n")
}

var (
	documentClassRe = regexp.MustCompile(`\\documentclass\s*(?:\[[^\]]*\])?\s*\{([^}]*)\}`)
	titleRe         = regexp.MustCompile(`\\title\s*(?:\[[^\]]*\])?\s*\{([^}]*)\}`)
)

// ProjectSummary describes the project: its main document, document class,
// title and file list
func ProjectSummary(pc *types.ProjectContext) string {
	if pc.Empty() {
		return ""
	}
	var sb strings.Builder
	if main := pc.MainDocument; main != nil {
		fmt.Fprintf(&sb, "Main document: %s\n", main.Path)
		if m := documentClassRe.FindStringSubmatch(main.Content); m != nil {
			fmt.Fprintf(&sb, "Document class: %s\n", strings.TrimSpace(m[1]))
		}
		if m := titleRe.FindStringSubmatch(main.Content); m != nil {
			fmt.Fprintf(&sb, "Title: %s\n", strings.TrimSpace(m[1]))
		}
	}
	names := make([]string, len(pc.AllFiles))
	for i, f := range pc.AllFiles {
		names[i] = path.Clean(f.Path)
	}
	fmt.Fprintf(&sb, "Files: %s", strings.Join(names, ", "))
	return sb.String()
}

func clamp(cursor, n int) int {
	return max(0, min(cursor, n))
}

// lastRunes returns the last n runes of s
func lastRunes(s string, n int) string {
	end := len(s)
	for i := 0; i < n && end > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:end])
		end -= size
	}
	return s[end:]
}

// truncateRunes returns the first n runes of s
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
