package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ParseStatus describes how a model response was recovered into JSON.
type ParseStatus int

const (
	// ParseOK means the content parsed directly.
	ParseOK ParseStatus = iota
	// ParseRecovered means fence stripping or brace extraction was needed.
	ParseRecovered
	// ParseFailed means no JSON could be recovered.
	ParseFailed
)

// ParseOutcome is the result of the ordered recovery chain. Failures are a
// value, not an error: callers choose their own degradation path.
type ParseOutcome struct {
	Status ParseStatus
	Raw    json.RawMessage
	Note   string
}

// ParseModelJSON runs the ordered recovery chain over model output:
// direct parse, then markdown fence stripping, then balanced-brace
// extraction. The first candidate that parses wins.
func ParseModelJSON(content string) ParseOutcome {
	content = strings.TrimSpace(content)
	if content == "" {
		return ParseOutcome{Status: ParseFailed, Note: "empty model output"}
	}

	type attempt struct {
		text string
		note string
	}
	attempts := []attempt{{text: content}}
	if stripped := stripCodeFences(content); stripped != "" && stripped != content {
		attempts = append(attempts, attempt{text: stripped, note: "recovered by stripping code fences"})
	}
	source := content
	if len(attempts) > 1 {
		source = attempts[1].text
	}
	if extracted := extractJSONObject(source); extracted != "" && extracted != content {
		attempts = append(attempts, attempt{text: extracted, note: "recovered by balanced-brace extraction"})
	}

	for _, a := range attempts {
		var parsed any
		if err := json.Unmarshal([]byte(a.text), &parsed); err != nil {
			continue
		}
		normalized, err := json.Marshal(parsed)
		if err != nil {
			continue
		}
		status := ParseOK
		if a.note != "" {
			status = ParseRecovered
		}
		return ParseOutcome{Status: status, Raw: normalized, Note: a.note}
	}

	return ParseOutcome{Status: ParseFailed, Note: "no parseable JSON in model output"}
}

func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return ""
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return ""
	}

	// Drop first fence line.
	lines = lines[1:]
	// Drop trailing fence if present.
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// extractJSONObject returns the first balanced {...} block in the text.
func extractJSONObject(content string) string {
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, ch := range content {
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					return content[start : i+1]
				}
			}
		}
	}
	return ""
}

// fieldMapSchema is the response contract both the primary and specialist
// models are held to: a per-field map of value/confidence/source objects.
const fieldMapSchema = `{
  "type": "object",
  "properties": {
    "field_mappings": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "value": {},
          "confidence": {"type": "number"},
          "source": {"type": "string"},
          "notes": {"type": "string"}
        }
      }
    },
    "mappings": {"type": "object"},
    "overall_confidence": {"type": "number"}
  }
}`

var compiledFieldMapSchema = mustCompileFieldMapSchema()

func mustCompileFieldMapSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("fieldmap.json", bytes.NewReader([]byte(fieldMapSchema))); err != nil {
		panic(err)
	}
	return c.MustCompile("fieldmap.json")
}

// ValidateFieldMapJSON checks recovered JSON against the field-map response
// contract. Violations are reported, not fatal; callers may still salvage
// individual entries.
func ValidateFieldMapJSON(raw json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to decode JSON for validation: %w", err)
	}
	if err := compiledFieldMapSchema.Validate(doc); err != nil {
		return fmt.Errorf("response does not match field-map contract: %w", err)
	}
	return nil
}
