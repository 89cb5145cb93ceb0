package chunker

import (
	"strings"

	"github.com/dshills/texcontext-mcp/pkg/types"
)

// headingKinds maps sectioning commands to chunk kinds.
// Commands outside the standard hierarchy are treated as sections.
var headingKinds = map[string]types.ChunkKind{
	"part":          types.KindPart,
	"chapter":       types.KindChapter,
	"section":       types.KindSection,
	"subsection":    types.KindSubsection,
	"subsubsection": types.KindSubsubsection,
	"paragraph":     types.KindSection,
	"subparagraph":  types.KindSection,
	"addchap":       types.KindSection,
	"addsec":        types.KindSection,
	"minisec":       types.KindSection,
}

// environmentKinds maps environment names to chunk kinds
var environmentKinds = map[string]types.ChunkKind{
	"equation":        types.KindEquation,
	"equation*":       types.KindEquation,
	"align":           types.KindEquation,
	"align*":          types.KindEquation,
	"gather":          types.KindEquation,
	"gather*":         types.KindEquation,
	"multline":        types.KindEquation,
	"multline*":       types.KindEquation,
	"eqnarray":        types.KindEquation,
	"eqnarray*":       types.KindEquation,
	"displaymath":     types.KindEquation,
	"math":            types.KindEquation,
	"figure":          types.KindFigure,
	"figure*":         types.KindFigure,
	"wrapfigure":      types.KindFigure,
	"table":           types.KindTable,
	"table*":          types.KindTable,
	"longtable":       types.KindTable,
	"definition":      types.KindDefinition,
	"defn":            types.KindDefinition,
	"def":             types.KindDefinition,
	"theorem":         types.KindTheorem,
	"lemma":           types.KindTheorem,
	"proposition":     types.KindTheorem,
	"corollary":       types.KindTheorem,
	"conjecture":      types.KindTheorem,
	"claim":           types.KindTheorem,
	"thm":             types.KindTheorem,
	"lem":             types.KindTheorem,
	"prop":            types.KindTheorem,
	"cor":             types.KindTheorem,
	"proof":           types.KindProof,
	"thebibliography": types.KindCitation,
}

// importCommands pull another file into the project
var importCommands = map[string]bool{
	"input":          true,
	"include":        true,
	"subfile":        true,
	"bibliography":   true,
	"addbibresource": true,
}

type tokenKind int

const (
	tokCommand tokenKind = iota
	tokBegin
	tokEnd
	tokDisplayOpen
	tokDisplayClose
)

// token is one markup event found on a line
type token struct {
	kind tokenKind
	name string // command name, or environment name for begin/end
	arg  string // first mandatory argument, when present
}

// stripComment removes an unescaped % comment from the line
func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] != '%' {
			continue
		}
		backslashes := 0
		for j := i - 1; j >= 0 && line[j] == '\\'; j-- {
			backslashes++
		}
		if backslashes%2 == 0 {
			return line[:i]
		}
	}
	return line
}

// scanTokens walks a comment-stripped line and reports commands, environment
// markers and display-math delimiters in order of appearance
func scanTokens(line string) []token {
	var out []token
	for i := 0; i < len(line); i++ {
		if line[i] != '\\' || i+1 >= len(line) {
			continue
		}
		next := line[i+1]
		switch {
		case next == '\\':
			// forced line break, possibly followed by [skip]
			i++
			continue
		case next == '[':
			out = append(out, token{kind: tokDisplayOpen})
			i++
			continue
		case next == ']':
			out = append(out, token{kind: tokDisplayClose})
			i++
			continue
		case !isLetter(next):
			i++
			continue
		}

		j := i + 1
		for j < len(line) && isLetter(line[j]) {
			j++
		}
		name := line[i+1 : j]
		rest := line[j:]
		arg, consumed, ok := readCommandArg(rest)
		i = j - 1

		switch name {
		case "begin", "end":
			if !ok {
				continue
			}
			kind := tokBegin
			if name == "end" {
				kind = tokEnd
			}
			out = append(out, token{kind: kind, name: strings.TrimSpace(arg)})
			i = j + consumed - 1
		default:
			t := token{kind: tokCommand, name: name}
			if ok {
				t.arg = arg
				// other arguments may nest citations, keep scanning inside them
				if isCitationCommand(name) || importCommands[name] {
					i = j + consumed - 1
				}
			}
			out = append(out, t)
		}
	}
	return out
}

// readCommandArg skips an optional star and optional [..] arguments and reads
// the first balanced {..} group. consumed is the number of bytes read from s.
func readCommandArg(s string) (arg string, consumed int, ok bool) {
	i := 0
	if i < len(s) && s[i] == '*' {
		i++
	}
	for {
		for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i < len(s) && s[i] == '[' {
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return "", 0, false
			}
			i += end + 1
			continue
		}
		break
	}
	if i >= len(s) || s[i] != '{' {
		return "", 0, false
	}
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[i+1 : j], j + 1, true
			}
		}
	}
	return "", 0, false
}

// parseHeading recognises a sectioning command at the start of a line
func parseHeading(line string) (types.ChunkKind, string, bool) {
	trimmed := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(trimmed, `\`) {
		return "", "", false
	}
	j := 1
	for j < len(trimmed) && isLetter(trimmed[j]) {
		j++
	}
	kind, known := headingKinds[trimmed[1:j]]
	if !known {
		return "", "", false
	}
	title, _, ok := readCommandArg(trimmed[j:])
	if !ok {
		return "", "", false
	}
	return kind, strings.TrimSpace(title), true
}

// splitKeys splits a citation key list, dropping blanks and the wildcard key
func splitKeys(arg string) []string {
	var keys []string
	for _, k := range strings.Split(arg, ",") {
		k = strings.TrimSpace(k)
		if k == "" || k == "*" {
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

func isCitationCommand(name string) bool {
	switch name {
	case "parencite", "textcite", "autocite", "footcite", "supercite", "nocite":
		return true
	}
	return strings.HasPrefix(name, "cite") || strings.HasPrefix(name, "Cite")
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
