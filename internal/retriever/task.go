package retriever

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/texcontext-mcp/pkg/types"
)

// Task selects which chunk kinds are eligible as semantic matches
type Task string

const (
	TaskCompletion    Task = "completion"
	TaskDocumentation Task = "documentation"
	TaskCitation      Task = "citation"
	TaskGeneral       Task = "general"
)

// ErrUnknownTask is returned by ParseTask for unrecognized names
var ErrUnknownTask = errors.New("unknown task")

// Tasks lists every task in a stable order
var Tasks = []Task{TaskCompletion, TaskDocumentation, TaskCitation, TaskGeneral}

// ParseTask maps a name onto a Task. The empty string means completion.
func ParseTask(name string) (Task, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return TaskCompletion, nil
	}
	for _, t := range Tasks {
		if string(t) == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTask, name)
}

// Allows reports whether chunks of kind k may be offered for this task
func (t Task) Allows(k types.ChunkKind) bool {
	switch t {
	case TaskCompletion:
		return k != types.KindPreamble && k != types.KindImport
	case TaskDocumentation:
		if k.IsHeading() {
			return true
		}
		switch k {
		case types.KindDefinition, types.KindTheorem, types.KindProof, types.KindFigure, types.KindTable:
			return true
		}
		return false
	case TaskCitation:
		return k == types.KindCitation || k == types.KindImport || k.IsHeading()
	default:
		return true
	}
}
