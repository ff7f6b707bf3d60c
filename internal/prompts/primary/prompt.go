// Package primary holds the prompt for the primary field-mapping model.
package primary

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

// UserPromptData carries the pre-serialized JSON blocks rendered into the
// user prompt.
type UserPromptData struct {
	FieldMetadata string
	Hints         string
	Evidence      string
	OCRText       string
}

// SystemPrompt returns the system prompt for primary field mapping.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt renders the user prompt.
func UserPrompt(data UserPromptData) string {
	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		// Fallback to the raw template on error.
		return userPromptTmpl
	}
	return buf.String()
}
