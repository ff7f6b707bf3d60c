// Package vision holds the prompt for the vision fallback model.
package vision

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	tmpl "github.com/fieldlens/fieldlens/internal/template"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

var userTemplate = template.Must(template.New("user").Parse(userPromptTmpl))

// UserPromptData carries the rendered blocks for the vision user prompt.
type UserPromptData struct {
	FieldBlock string
	OCRHint    string
}

// SystemPrompt returns the system prompt for vision extraction.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt renders the user prompt.
func UserPrompt(data UserPromptData) string {
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		return userPromptTmpl
	}
	return buf.String()
}

// FieldBlock renders the field list section of the prompt.
func FieldBlock(fields []tmpl.Field) string {
	var lines []string
	for i, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			name = fmt.Sprintf("field_%d", i+1)
		}
		line := "- " + name
		if f.Required {
			line += " (required)"
		}
		if f.Type != "" {
			line += fmt.Sprintf(": %s value", f.Type)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "- Extract any key fields visible in the document."
	}
	return strings.Join(lines, "\n")
}
