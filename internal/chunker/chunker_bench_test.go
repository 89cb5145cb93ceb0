package chunker

import (
	"os"
	"path/filepath"
	"testing"
)

func BenchmarkExtract_Thesis(b *testing.B) {
	data, err := os.ReadFile(filepath.Join("testdata", "thesis.tex"))
	if err != nil {
		b.Fatal(err)
	}
	content := string(data)
	c := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		chunks := c.Extract(content, "thesis.tex")
		if len(chunks) == 0 {
			b.Fatal("no chunks")
		}
	}
}

func BenchmarkExtract_Large(b *testing.B) {
	data, err := os.ReadFile(filepath.Join("testdata", "thesis.tex"))
	if err != nil {
		b.Fatal(err)
	}
	content := ""
	for i := 0; i < 50; i++ {
		content += string(data)
	}
	c := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Extract(content, "large.tex")
	}
}

func TestExtract_ThesisFixture(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "thesis.tex"))
	if err != nil {
		t.Fatal(err)
	}
	chunks := Extract(string(data), "thesis.tex")

	counts := map[string]int{}
	for _, ch := range chunks {
		counts[string(ch.Kind)]++
	}
	want := map[string]int{
		"preamble":   1,
		"document":   1,
		"chapter":    3,
		"section":    2,
		"subsection": 1,
		"equation":   1,
		"definition": 1,
		"theorem":    1,
		"proof":      1,
		"figure":     1,
		"table":      1,
		"citation":   4,
		"import":     2,
	}
	for kind, n := range want {
		if counts[kind] != n {
			t.Errorf("kind %s: got %d chunks, want %d", kind, counts[kind], n)
		}
	}
}
