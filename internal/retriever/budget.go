package retriever

import (
	"github.com/dshills/texcontext-mcp/internal/chunker"
	"github.com/dshills/texcontext-mcp/pkg/types"
)

// DefaultMaxUnits is the default total budget in estimated tokens
const DefaultMaxUnits = 2048

// Budget bounds the size of an assembled bundle. Sizes are estimated as
// characters divided by CharsPerUnit. The per-section fractions are nominal
// allotments of MaxUnits used when composing.
type Budget struct {
	MaxUnits     int
	CharsPerUnit int

	Immediate  float64
	Semantic   float64
	Structural float64
	Recent     float64
	Project    float64
}

// DefaultBudget returns the standard allotments
func DefaultBudget() Budget {
	return Budget{
		MaxUnits:     DefaultMaxUnits,
		CharsPerUnit: chunker.DefaultCharsPerUnit,
		Immediate:    0.40,
		Semantic:     0.30,
		Structural:   0.10,
		Recent:       0.10,
		Project:      0.10,
	}
}

// normalized fills zero fields from DefaultBudget
func (b Budget) normalized() Budget {
	d := DefaultBudget()
	if b.MaxUnits <= 0 {
		b.MaxUnits = d.MaxUnits
	}
	if b.CharsPerUnit <= 0 {
		b.CharsPerUnit = d.CharsPerUnit
	}
	if b.Immediate+b.Semantic+b.Structural+b.Recent+b.Project <= 0 {
		b.Immediate, b.Semantic, b.Structural, b.Recent, b.Project =
			d.Immediate, d.Semantic, d.Structural, d.Recent, d.Project
	}
	return b
}

// allot converts a fraction of the budget into units
func (b Budget) allot(fraction float64) int {
	if fraction <= 0 {
		return 0
	}
	return int(fraction * float64(b.MaxUnits))
}

// Units estimates the size of text under this budget's ratio
func (b Budget) Units(text string) int {
	return chunker.EstimateUnits(text, b.CharsPerUnit)
}

// Size estimates the total size of a bundle as the sum of its rendered sections
func (b Budget) Size(bundle types.ContextBundle) int {
	b = b.normalized()
	total := 0
	for _, text := range bundle.Sections() {
		total += b.Units(text)
	}
	return total
}
