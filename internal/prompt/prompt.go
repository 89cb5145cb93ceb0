package prompt

import (
	"fmt"
	"strings"

	"github.com/dshills/texcontext-mcp/pkg/types"
)

// InputPlaceholder in a custom template is replaced by the raw user input and
// turns off context composition
const InputPlaceholder = "<input>"

const defaultSystem = "You are a writing assistant for LaTeX documents. " +
	"Use the project context when it helps and keep the author's notation, macros and labels."

var taskInstructions = map[string]string{
	"completion":    "Continue the text at the <cursor> marker. Reply with the text to insert only, without repeating the surrounding text.",
	"documentation": "Explain or document the construct at the <cursor> marker, referring to definitions and results from the project where relevant.",
	"citation":      "Suggest citation keys from the project that fit the text at the <cursor> marker. Reply with \\cite commands and one line of reasoning each.",
	"general":       "Answer the request using the context below.",
}

// sections in the order they appear in a prompt
var sectionOrder = []struct{ key, title string }{
	{"project", "Project"},
	{"structural", "Outline of the current file"},
	{"semantic", "Related material"},
	{"recent", "Recent edits"},
	{"immediate", "Text around the cursor"},
}

// Prompt is a rendered request for the generation backend
type Prompt struct {
	System   string
	User     string
	Composed bool // false when a custom template bypassed composition
}

// Renderer turns assembled contexts into prompts
type Renderer struct {
	template string
}

// New creates a renderer. A template containing InputPlaceholder is used
// verbatim with the input substituted; any other non-empty template replaces
// the default system instructions.
func New(template string) *Renderer {
	return &Renderer{template: template}
}

// Bypass reports whether the template skips context composition. Callers can
// then avoid assembling a context at all.
func (r *Renderer) Bypass() bool {
	return strings.Contains(r.template, InputPlaceholder)
}

// RenderInput substitutes input into a bypass template
func (r *Renderer) RenderInput(input string) Prompt {
	return Prompt{User: strings.ReplaceAll(r.template, InputPlaceholder, input)}
}

// Render builds the prompt for c. input is the user's request and may be empty
// for plain completion.
func (r *Renderer) Render(c *types.Context, input string) Prompt {
	if r.Bypass() {
		return r.RenderInput(input)
	}

	system := defaultSystem
	if strings.TrimSpace(r.template) != "" {
		system = r.template
	}

	var sb strings.Builder
	if c != nil {
		sections := c.Bundle.Sections()
		for _, s := range sectionOrder {
			text, ok := sections[s.key]
			if !ok {
				continue
			}
			if s.key == "immediate" && c.FilePath != "" {
				fmt.Fprintf(&sb, "## %s (%s)\n%s\n\n", s.title, c.FilePath, text)
				continue
			}
			fmt.Fprintf(&sb, "## %s\n%s\n\n", s.title, text)
		}
	}

	task := "general"
	if c != nil && c.Task != "" {
		task = c.Task
	}
	instruction, ok := taskInstructions[task]
	if !ok {
		instruction = taskInstructions["general"]
	}
	sb.WriteString(instruction)
	if input = strings.TrimSpace(input); input != "" {
		fmt.Fprintf(&sb, "\n\nRequest: %s", input)
	}

	return Prompt{System: system, User: sb.String(), Composed: true}
}
