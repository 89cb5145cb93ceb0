package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/dshills/texcontext-mcp/pkg/types"
)

// Mode is the vector construction mode an index commits to
type Mode string

const (
	// ModeLexical builds vectors from the index's own word-frequency table
	ModeLexical Mode = "lexical"
	// ModeDense stores vectors produced by an external embedding backend
	ModeDense Mode = "dense"
)

// DefaultMinSimilarity drops matches that share almost nothing with the query
const DefaultMinSimilarity = 0.05

var (
	ErrModeMismatch      = errors.New("query mode does not match index mode")
	ErrDimensionMismatch = errors.New("vector dimension does not match index")
	ErrLengthMismatch    = errors.New("chunk and vector counts differ")
)

// SearchOptions controls ranking
type SearchOptions struct {
	K             int     // maximum matches, <= 0 means unlimited
	MinSimilarity float64 // matches below this score are dropped
	// Filter excludes chunks before ranking when it returns false
	Filter func(*types.Chunk) bool
}

// DefaultSearchOptions returns k matches above DefaultMinSimilarity
func DefaultSearchOptions(k int) SearchOptions {
	return SearchOptions{K: k, MinSimilarity: DefaultMinSimilarity}
}

// Index is an immutable set of chunks with vectors of one mode and dimension
type Index struct {
	mode     Mode
	dim      int
	chunks   []*types.Chunk
	vocab    *Vocabulary
	rejected int
}

// NewLexical builds a lexical index. Chunks are cloned so the index owns its vectors.
func NewLexical(chunks []*types.Chunk) *Index {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vocab := BuildVocabulary(texts)

	owned := make([]*types.Chunk, len(chunks))
	for i, ch := range chunks {
		c := ch.Clone()
		c.Vector = vocab.Vector(ch.Content)
		owned[i] = c
	}
	return &Index{mode: ModeLexical, dim: vocab.Size(), chunks: owned, vocab: vocab}
}

// NewDense builds a dense index from externally supplied vectors, one per chunk.
// The first non-empty vector fixes the dimension; vectors of any other length
// are rejected and their chunks left out.
func NewDense(chunks []*types.Chunk, vectors [][]float32) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors", ErrLengthMismatch, len(chunks), len(vectors))
	}
	ix := &Index{mode: ModeDense}
	for i, ch := range chunks {
		vec := vectors[i]
		if len(vec) == 0 {
			ix.rejected++
			continue
		}
		if ix.dim == 0 {
			ix.dim = len(vec)
		}
		if len(vec) != ix.dim {
			ix.rejected++
			continue
		}
		c := ch.Clone()
		c.Vector = append([]float32(nil), vec...)
		ix.chunks = append(ix.chunks, c)
	}
	return ix, nil
}

func (ix *Index) Mode() Mode { return ix.mode }

func (ix *Index) Dimension() int { return ix.dim }

func (ix *Index) Len() int { return len(ix.chunks) }

// Rejected returns how many dense vectors were refused for a wrong dimension
func (ix *Index) Rejected() int { return ix.rejected }

// Chunks returns the indexed chunks. Callers must not modify them.
func (ix *Index) Chunks() []*types.Chunk { return ix.chunks }

// QueryVector maps text onto a lexical index's vocabulary
func (ix *Index) QueryVector(text string) ([]float32, error) {
	if ix.mode != ModeLexical {
		return nil, fmt.Errorf("%w: text queries need a lexical index, have %s", ErrModeMismatch, ix.mode)
	}
	return ix.vocab.Vector(text), nil
}

// SearchText ranks a lexical index against free text
func (ix *Index) SearchText(text string, opts SearchOptions) ([]types.SemanticMatch, error) {
	vec, err := ix.QueryVector(text)
	if err != nil {
		return nil, err
	}
	return ix.rank(vec, opts), nil
}

// SearchVector ranks the index against a query vector built in the given mode
func (ix *Index) SearchVector(mode Mode, vec []float32, opts SearchOptions) ([]types.SemanticMatch, error) {
	if mode != ix.mode {
		return nil, fmt.Errorf("%w: query is %s, index is %s", ErrModeMismatch, mode, ix.mode)
	}
	if len(ix.chunks) == 0 {
		return nil, nil
	}
	if len(vec) != ix.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), ix.dim)
	}
	return ix.rank(vec, opts), nil
}

func (ix *Index) rank(vec []float32, opts SearchOptions) []types.SemanticMatch {
	matches := make([]types.SemanticMatch, 0, len(ix.chunks))
	for _, ch := range ix.chunks {
		if opts.Filter != nil && !opts.Filter(ch) {
			continue
		}
		score := CosineSimilarity(vec, ch.Vector)
		if score < opts.MinSimilarity {
			continue
		}
		matches = append(matches, types.SemanticMatch{Chunk: ch, Score: score})
	}
	return Rank(matches, opts.K)
}

// Rank sorts matches by descending score, keeping input order among equal
// scores, and truncates to k when k > 0
func Rank(matches []types.SemanticMatch, k int) []types.SemanticMatch {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// CosineSimilarity returns dot(a,b)/(|a||b|), or 0 when either norm is zero or
// the lengths differ
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
