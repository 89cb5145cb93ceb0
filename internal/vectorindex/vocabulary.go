package vectorindex

import (
	"regexp"
	"sort"
	"strings"
)

var (
	commandPattern = regexp.MustCompile(`\\[A-Za-z]+\*?`)
	wordPattern    = regexp.MustCompile(`\p{L}[\p{L}\p{N}]*|\p{N}+`)
)

// Tokenize lower-cases text and splits it into words, dropping LaTeX command names
func Tokenize(text string) []string {
	text = commandPattern.ReplaceAllString(text, " ")
	words := wordPattern.FindAllString(text, -1)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return words
}

// Vocabulary is the global word-frequency table of a lexical index.
// Terms are kept sorted so every vector built from it shares one dimension order.
type Vocabulary struct {
	terms     []string
	positions map[string]int
	frequency []float64
}

// BuildVocabulary counts word occurrences across all texts
func BuildVocabulary(texts []string) *Vocabulary {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, w := range Tokenize(text) {
			counts[w]++
		}
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	v := &Vocabulary{
		terms:     terms,
		positions: make(map[string]int, len(terms)),
		frequency: make([]float64, len(terms)),
	}
	for i, term := range terms {
		v.positions[term] = i
		v.frequency[i] = float64(counts[term])
	}
	return v
}

// Size returns the number of distinct words, which is also the vector dimension
func (v *Vocabulary) Size() int {
	return len(v.terms)
}

// Frequency returns the global occurrence count of word, 0 when unknown
func (v *Vocabulary) Frequency(word string) float64 {
	i, ok := v.positions[strings.ToLower(word)]
	if !ok {
		return 0
	}
	return v.frequency[i]
}

// Vector maps text onto the vocabulary. Each component is the word's count in
// text divided by its global frequency; unknown words are ignored.
func (v *Vocabulary) Vector(text string) []float32 {
	vec := make([]float32, len(v.terms))
	for _, w := range Tokenize(text) {
		i, ok := v.positions[w]
		if !ok {
			continue
		}
		vec[i] += float32(1 / v.frequency[i])
	}
	return vec
}
