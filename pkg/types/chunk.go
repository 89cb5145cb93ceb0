package types

import (
	"errors"
	"strings"
	"time"
)

// ChunkKind is the closed set of chunk categories produced by the extractor
type ChunkKind string

const (
	// Heading levels, outermost first
	KindPart          ChunkKind = "part"
	KindChapter       ChunkKind = "chapter"
	KindSection       ChunkKind = "section"
	KindSubsection    ChunkKind = "subsection"
	KindSubsubsection ChunkKind = "subsubsection"
	// KindDocument is the implicit top-level chunk holding body text before the first heading
	KindDocument ChunkKind = "document"

	// Environments and references
	KindEquation   ChunkKind = "equation"
	KindFigure     ChunkKind = "figure"
	KindTable      ChunkKind = "table"
	KindCitation   ChunkKind = "citation"
	KindDefinition ChunkKind = "definition"
	KindTheorem    ChunkKind = "theorem"
	KindProof      ChunkKind = "proof"
	KindPreamble   ChunkKind = "preamble"
	KindImport     ChunkKind = "import"
)

// AllKinds lists every chunk kind in declaration order
var AllKinds = []ChunkKind{
	KindPart, KindChapter, KindSection, KindSubsection, KindSubsubsection, KindDocument,
	KindEquation, KindFigure, KindTable, KindCitation, KindDefinition, KindTheorem,
	KindProof, KindPreamble, KindImport,
}

// IsHeading reports whether the kind is a heading level (including the implicit document chunk)
func (k ChunkKind) IsHeading() bool {
	return k.Level() >= 0
}

// Level returns the ordinal heading depth, -1 for non-heading kinds.
// The implicit document chunk sits above every explicit level.
func (k ChunkKind) Level() int {
	switch k {
	case KindDocument:
		return 0
	case KindPart:
		return 1
	case KindChapter:
		return 2
	case KindSection:
		return 3
	case KindSubsection:
		return 4
	case KindSubsubsection:
		return 5
	default:
		return -1
	}
}

// Valid reports whether k belongs to the closed set
func (k ChunkKind) Valid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Metadata keys attached to chunks
const (
	MetaTitle       = "title"
	MetaLabel       = "label"
	MetaEnvironment = "environment"
	MetaKey         = "key"
	MetaTarget      = "target"
)

// Chunk is a contiguous region of a document identified as a meaningful unit.
// StartLine and EndLine are 0-based inclusive line indices into the content the
// chunk was extracted from.
type Chunk struct {
	ID           string
	Content      string
	SourceFile   string
	StartLine    int
	EndLine      int
	Kind         ChunkKind
	Vector       []float32 // set by the semantic index, nil until indexed
	LastModified time.Time
	Metadata     map[string]string
}

// Title returns the heading title or an empty string
func (c *Chunk) Title() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[MetaTitle]
}

// ContainsLine reports whether line falls within the chunk
func (c *Chunk) ContainsLine(line int) bool {
	return line >= c.StartLine && line <= c.EndLine
}

// Validate checks offsets and identity fields
func (c *Chunk) Validate() error {
	if c.ID == "" {
		return ErrInvalidChunkID
	}
	if c.SourceFile == "" {
		return ErrMissingFileInfo
	}
	if c.StartLine < 0 || c.EndLine < 0 {
		return errors.New("line indices must be non-negative")
	}
	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}
	if !c.Kind.Valid() {
		return ErrUnknownKind
	}
	return nil
}

// Clone returns a deep copy so snapshot owners can attach vectors without aliasing
func (c *Chunk) Clone() *Chunk {
	out := *c
	if c.Vector != nil {
		out.Vector = append([]float32(nil), c.Vector...)
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// Summary renders a one-line description used in outlines and logs
func (c *Chunk) Summary() string {
	var b strings.Builder
	b.WriteString(string(c.Kind))
	if t := c.Title(); t != "" {
		b.WriteString(": ")
		b.WriteString(t)
	} else if key := c.Metadata[MetaKey]; key != "" {
		b.WriteString(": ")
		b.WriteString(key)
	} else if label := c.Metadata[MetaLabel]; label != "" {
		b.WriteString(" (")
		b.WriteString(label)
		b.WriteString(")")
	}
	return b.String()
}
