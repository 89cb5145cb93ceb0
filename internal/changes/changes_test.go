package changes

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
		want []LineChange
	}{
		{
			name: "identical",
			old:  "a\nb\nc",
			new:  "a\nb\nc",
			want: nil,
		},
		{
			name: "replace middle line",
			old:  "a\nb\nc",
			new:  "a\nB\nc",
			want: []LineChange{{Op: OpReplace, OldLine: 1, NewLine: 1, Text: "B"}},
		},
		{
			name: "insert line",
			old:  "a\nc",
			new:  "a\nb\nc",
			want: []LineChange{{Op: OpInsert, OldLine: -1, NewLine: 1, Text: "b"}},
		},
		{
			name: "delete line",
			old:  "a\nb\nc",
			new:  "a\nc",
			want: []LineChange{{Op: OpDelete, OldLine: 1, NewLine: 1, Text: "b"}},
		},
		{
			name: "replace last line without newline",
			old:  "a\nb",
			new:  "a\nc",
			want: []LineChange{{Op: OpReplace, OldLine: 1, NewLine: 1, Text: "c"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.old, tt.new)
			assert.Equal(t, tt.want, got.Changes)
			assert.Equal(t, len(tt.want) > 0, got.Changed())
		})
	}
}

func TestDetect_ReplaceWithSurplusInsert(t *testing.T) {
	got := Detect("a\nb\nz", "a\nx\ny\nz")
	require.Len(t, got.Changes, 2)
	assert.Equal(t, OpReplace, got.Changes[0].Op)
	assert.Equal(t, 1, got.Changes[0].NewLine)
	assert.Equal(t, OpInsert, got.Changes[1].Op)
	assert.Equal(t, 2, got.Changes[1].NewLine)
	assert.Equal(t, []int{1, 2}, got.Lines())
}

func TestDetect_FromEmpty(t *testing.T) {
	got := Detect("", "\\section{Intro}\nText.")
	require.Len(t, got.Changes, 2)
	for i, c := range got.Changes {
		assert.Equal(t, OpInsert, c.Op)
		assert.Equal(t, i, c.NewLine)
	}
}

func TestTracker_Observe(t *testing.T) {
	tr := NewTracker(10)

	first := tr.Observe("main.tex", "a\nb")
	assert.True(t, first.Initial)
	assert.True(t, first.Changed())
	assert.Empty(t, tr.Recent(0), "initial observation adds no history")

	same := tr.Observe("main.tex", "a\nb")
	assert.False(t, same.Changed())

	edit := tr.Observe("main.tex", "a\nB")
	require.True(t, edit.Changed())
	assert.Equal(t, "main.tex", edit.Path)

	recent := tr.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, "main.tex", recent[0].Path)
	assert.Equal(t, 1, recent[0].Line)
	assert.Equal(t, "replace", recent[0].Op)
	assert.Equal(t, "B", recent[0].Text)
}

func TestTracker_HistoryBoundedNewestFirst(t *testing.T) {
	tr := NewTracker(3)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	tr.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i := 0; i < 5; i++ {
		tr.Record(Summary{
			Path:    "ch1.tex",
			Changes: []LineChange{{Op: OpInsert, OldLine: -1, NewLine: i, Text: fmt.Sprintf("line %d", i)}},
		})
	}

	recent := tr.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, 4, recent[0].Line)
	assert.Equal(t, 2, recent[2].Line)
	assert.True(t, recent[0].At.After(recent[1].At))

	assert.Len(t, tr.Recent(2), 2)
}

func TestTracker_CapsEditsPerChange(t *testing.T) {
	tr := NewTracker(100)
	var changes []LineChange
	for i := 0; i < 20; i++ {
		changes = append(changes, LineChange{Op: OpInsert, OldLine: -1, NewLine: i, Text: "x"})
	}
	tr.Record(Summary{Path: "big.tex", Changes: changes})
	assert.Len(t, tr.Recent(0), maxEditsPerChange)
}

func TestTracker_ForgetAndReset(t *testing.T) {
	tr := NewTracker(0)
	tr.Observe("a.tex", "one")
	tr.Forget("a.tex")
	assert.True(t, tr.Observe("a.tex", "two").Initial)

	tr.Observe("a.tex", "three")
	require.NotEmpty(t, tr.Recent(0))
	tr.Reset()
	assert.Empty(t, tr.Recent(0))
	assert.True(t, tr.Observe("a.tex", "three").Initial)
}
