package chunker

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zeebo/xxh3"

	"github.com/dshills/texcontext-mcp/pkg/types"
)

const (
	// DefaultCitationWindow is the number of lines kept on each side of a citation
	DefaultCitationWindow = 2

	// DefaultCharsPerUnit is the heuristic for estimating budget units (chars/4)
	DefaultCharsPerUnit = 4
)

// Chunker splits LaTeX documents into chunks.
// Extraction is total: malformed markup produces fewer chunks, never an error.
type Chunker struct {
	citationWindow int
}

// New creates a new Chunker instance
func New() *Chunker {
	return &Chunker{citationWindow: DefaultCitationWindow}
}

// WithCitationWindow returns a copy using n lines of context around citations
func (c *Chunker) WithCitationWindow(n int) *Chunker {
	if n < 0 {
		n = 0
	}
	return &Chunker{citationWindow: n}
}

// Extract is shorthand for New().Extract
func Extract(content, sourceFile string) []*types.Chunk {
	return New().Extract(content, sourceFile)
}

// heading is a sectioning command found in the document body
type heading struct {
	line  int
	kind  types.ChunkKind
	title string
}

// openEnv is an environment waiting for its \end marker
type openEnv struct {
	name string
	line int
}

// extraction holds per-call state so a Chunker can be shared between goroutines
type extraction struct {
	c          *Chunker
	sourceFile string
	lines      []string
	stripped   []string
	chunks     []*types.Chunk
	ids        map[string]int
	ordinals   map[string]int
}

// Extract returns every chunk found in content. The result is deterministic and
// chunks may overlap: environments and citations are layered over heading chunks.
func (c *Chunker) Extract(content, sourceFile string) []*types.Chunk {
	if strings.TrimSpace(content) == "" {
		return []*types.Chunk{}
	}

	lines := strings.Split(content, "\n")
	x := &extraction{
		c:          c,
		sourceFile: sourceFile,
		lines:      lines,
		stripped:   make([]string, len(lines)),
		ids:        make(map[string]int),
		ordinals:   make(map[string]int),
	}
	for i, l := range lines {
		x.stripped[i] = stripComment(l)
	}

	bodyStart, bodyEnd := x.documentBounds()
	x.extractHeadings(bodyStart, bodyEnd)
	x.extractEnvironments()
	x.extractReferences()

	sort.SliceStable(x.chunks, func(i, j int) bool {
		a, b := x.chunks[i], x.chunks[j]
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.EndLine > b.EndLine
	})
	return x.chunks
}

// documentBounds emits the preamble chunk and returns the body line range
func (x *extraction) documentBounds() (start, end int) {
	start, end = 0, len(x.lines)-1
	begin := -1
	for i, l := range x.stripped {
		if strings.Contains(l, `\begin{document}`) {
			begin = i
			break
		}
	}
	if begin < 0 {
		return start, end
	}
	if begin > 0 && !blank(x.lines[:begin]) {
		x.emit(types.KindPreamble, 0, begin-1, "preamble", nil)
	}
	start = begin + 1
	for i := begin + 1; i < len(x.stripped); i++ {
		if strings.Contains(x.stripped[i], `\end{document}`) {
			end = i - 1
			break
		}
	}
	return start, end
}

// extractHeadings emits one chunk per heading, each running until the next
// heading, plus an implicit document chunk for body text before the first one
func (x *extraction) extractHeadings(start, end int) {
	if start > end {
		return
	}
	var heads []heading
	for i := start; i <= end; i++ {
		if kind, title, ok := parseHeading(x.stripped[i]); ok {
			heads = append(heads, heading{line: i, kind: kind, title: title})
		}
	}

	firstHeading := end + 1
	if len(heads) > 0 {
		firstHeading = heads[0].line
	}
	if firstHeading > start && !blank(x.lines[start:firstHeading]) {
		x.emit(types.KindDocument, start, firstHeading-1, "document", nil)
	}

	for i, h := range heads {
		stop := end
		if i+1 < len(heads) {
			stop = heads[i+1].line - 1
		}
		meta := map[string]string{types.MetaTitle: h.title}
		if label := x.findLabel(h.line, h.line); label != "" {
			meta[types.MetaLabel] = label
		}
		disc := fmt.Sprintf("%s#%d", h.title, x.ordinal(string(h.kind)+"/"+h.title))
		x.emit(h.kind, h.line, stop, disc, meta)
	}
}

// extractEnvironments emits chunks for matched \begin/\end pairs and \[ \] blocks.
// Unclosed environments produce nothing.
func (x *extraction) extractEnvironments() {
	var stack []openEnv
	displayOpen := -1

	for i, l := range x.stripped {
		for _, tok := range scanTokens(l) {
			switch tok.kind {
			case tokBegin:
				if _, tracked := environmentKinds[tok.name]; tracked {
					stack = append(stack, openEnv{name: tok.name, line: i})
				}
			case tokEnd:
				if _, tracked := environmentKinds[tok.name]; !tracked {
					continue
				}
				// innermost open environment with the same name
				for k := len(stack) - 1; k >= 0; k-- {
					if stack[k].name != tok.name {
						continue
					}
					x.emitEnvironment(stack[k], i)
					stack = append(stack[:k], stack[k+1:]...)
					break
				}
			case tokDisplayOpen:
				if displayOpen < 0 {
					displayOpen = i
				}
			case tokDisplayClose:
				if displayOpen >= 0 {
					x.emitEnvironment(openEnv{name: "displaymath", line: displayOpen}, i)
					displayOpen = -1
				}
			}
		}
	}
}

func (x *extraction) emitEnvironment(env openEnv, endLine int) {
	kind := environmentKinds[env.name]
	meta := map[string]string{types.MetaEnvironment: env.name}
	label := x.findLabel(env.line, endLine)
	// unlabeled environments are named by their content; the ordinal only
	// separates identical copies
	body := strings.TrimSpace(strings.Join(x.stripped[env.line:endLine+1], "\n"))
	name := fmt.Sprintf("%s@%016x", env.name, xxh3.HashString(body))
	disc := fmt.Sprintf("%s#%d", name, x.ordinal("env/"+name))
	if label != "" {
		meta[types.MetaLabel] = label
		disc = "label:" + label
	}
	x.emit(kind, env.line, endLine, disc, meta)
}

// extractReferences emits one chunk per citation key and per import command
func (x *extraction) extractReferences() {
	last := len(x.lines) - 1
	w := x.c.citationWindow
	for i, l := range x.stripped {
		for _, tok := range scanTokens(l) {
			if tok.kind != tokCommand || tok.arg == "" {
				continue
			}
			switch {
			case isCitationCommand(tok.name):
				for _, key := range splitKeys(tok.arg) {
					meta := map[string]string{types.MetaKey: key}
					disc := fmt.Sprintf("%s#%d", key, x.ordinal("cite/"+key))
					x.emit(types.KindCitation, max(0, i-w), min(last, i+w), disc, meta)
				}
			case importCommands[tok.name]:
				target := strings.TrimSpace(tok.arg)
				meta := map[string]string{types.MetaTarget: target, types.MetaEnvironment: tok.name}
				disc := fmt.Sprintf("%s#%d", target, x.ordinal("import/"+target))
				x.emit(types.KindImport, i, i, disc, meta)
			}
		}
	}
}

// findLabel returns the first \label argument within lines [from, to]
func (x *extraction) findLabel(from, to int) string {
	for i := from; i <= to && i < len(x.stripped); i++ {
		for _, tok := range scanTokens(x.stripped[i]) {
			if tok.kind == tokCommand && tok.name == "label" && tok.arg != "" {
				return strings.TrimSpace(tok.arg)
			}
		}
	}
	return ""
}

func (x *extraction) ordinal(key string) int {
	n := x.ordinals[key]
	x.ordinals[key] = n + 1
	return n
}

func (x *extraction) emit(kind types.ChunkKind, start, end int, disc string, meta map[string]string) {
	if end < start {
		end = start
	}
	id := ChunkID(x.sourceFile, kind, disc)
	if n, dup := x.ids[id]; dup {
		x.ids[id] = n + 1
		id = ChunkID(x.sourceFile, kind, fmt.Sprintf("%s~%d", disc, n+1))
	} else {
		x.ids[id] = 0
	}
	x.chunks = append(x.chunks, &types.Chunk{
		ID:         id,
		Content:    strings.Join(x.lines[start:end+1], "\n"),
		SourceFile: x.sourceFile,
		StartLine:  start,
		EndLine:    end,
		Kind:       kind,
		Metadata:   meta,
	})
}

// ChunkID derives a stable identifier from the file, kind and a discriminator
// such as a title, label or citation key
func ChunkID(sourceFile string, kind types.ChunkKind, discriminator string) string {
	h := xxh3.HashString(sourceFile + "\x00" + string(kind) + "\x00" + discriminator)
	return fmt.Sprintf("%016x", h)
}

// Outline returns the explicit headings among chunks in document order
func Outline(chunks []*types.Chunk) []types.OutlineEntry {
	var out []types.OutlineEntry
	for _, ch := range chunks {
		if !ch.Kind.IsHeading() || ch.Kind == types.KindDocument {
			continue
		}
		out = append(out, types.OutlineEntry{Kind: ch.Kind, Title: ch.Title(), Line: ch.StartLine})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

// EstimateUnits estimates the budget cost of text as ceil(chars / charsPerUnit)
func EstimateUnits(text string, charsPerUnit int) int {
	if charsPerUnit <= 0 {
		charsPerUnit = DefaultCharsPerUnit
	}
	n := utf8.RuneCountInString(text)
	return int(math.Ceil(float64(n) / float64(charsPerUnit)))
}

func blank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(stripComment(l)) != "" {
			return false
		}
	}
	return true
}
