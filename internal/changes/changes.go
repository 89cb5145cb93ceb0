package changes

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op classifies a changed line
type Op string

const (
	OpInsert  Op = "insert"
	OpDelete  Op = "delete"
	OpReplace Op = "replace"
)

// LineChange is one changed line. NewLine is the line index in the new content
// (for deletions, the index the removed line would have occupied). OldLine is
// the index in the old content, -1 for insertions.
type LineChange struct {
	Op      Op
	OldLine int
	NewLine int
	Text    string // new text for insert/replace, removed text for delete
}

// Summary describes how a file changed between two observations
type Summary struct {
	Path    string
	Initial bool // first observation of the file, no previous content known
	Changes []LineChange
}

// Changed reports whether the file content differs, treating a first
// observation as a change
func (s Summary) Changed() bool {
	return s.Initial || len(s.Changes) > 0
}

// Lines returns the distinct new-content line indices touched by the change
func (s Summary) Lines() []int {
	seen := make(map[int]bool, len(s.Changes))
	var out []int
	for _, c := range s.Changes {
		if !seen[c.NewLine] {
			seen[c.NewLine] = true
			out = append(out, c.NewLine)
		}
	}
	return out
}

// Detect diffs old and new line by line. Within each run of edits, deleted and
// inserted lines are paired in order as replacements; any surplus is reported
// as plain deletions or insertions.
func Detect(oldContent, newContent string) Summary {
	if oldContent == newContent {
		return Summary{}
	}

	// a missing final newline would make the last line differ from its
	// terminated copy
	oldContent, newContent = terminate(oldContent), terminate(newContent)

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var out []LineChange
	oldLine, newLine := 0, 0
	for i := 0; i < len(diffs); {
		if diffs[i].Type == diffmatchpatch.DiffEqual {
			n := len(splitLines(diffs[i].Text))
			oldLine += n
			newLine += n
			i++
			continue
		}

		// collect the run of edits up to the next equal segment
		var deleted, inserted []string
		for ; i < len(diffs) && diffs[i].Type != diffmatchpatch.DiffEqual; i++ {
			if diffs[i].Type == diffmatchpatch.DiffDelete {
				deleted = append(deleted, splitLines(diffs[i].Text)...)
			} else {
				inserted = append(inserted, splitLines(diffs[i].Text)...)
			}
		}

		paired := min(len(deleted), len(inserted))
		for k := 0; k < paired; k++ {
			out = append(out, LineChange{Op: OpReplace, OldLine: oldLine + k, NewLine: newLine + k, Text: inserted[k]})
		}
		for k := paired; k < len(deleted); k++ {
			out = append(out, LineChange{Op: OpDelete, OldLine: oldLine + k, NewLine: newLine + paired, Text: deleted[k]})
		}
		for k := paired; k < len(inserted); k++ {
			out = append(out, LineChange{Op: OpInsert, OldLine: -1, NewLine: newLine + k, Text: inserted[k]})
		}
		oldLine += len(deleted)
		newLine += len(inserted)
	}
	return Summary{Changes: out}
}

func terminate(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// splitLines splits diff text into lines without their terminators
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\n")
	}
	return lines
}
