// Package specialist holds the prompt for the specialist (handwriting/
// guided) model.
package specialist

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

var userTemplate = template.Must(template.New("user").Parse(userPromptTmpl))

// FieldSection is one selected field's serialized context block.
type FieldSection struct {
	Name    string
	Context string
}

// UserPromptData carries the rendered blocks for the specialist user prompt.
type UserPromptData struct {
	DocumentSummary string
	Segments        string
	Fields          []FieldSection
}

// SystemPrompt returns the system prompt for specialist interpretation.
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
