package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// RegexHint is a single pattern candidate attached to a field.
type RegexHint struct {
	Pattern string   `json:"pattern"`
	Flags   []string `json:"flags,omitempty"` // e.g. "i", "m"; empty means case-insensitive
	Source  string   `json:"source,omitempty"`
}

// HintPayload is the recognized shape of a field hint. Historically these
// payloads were free-form dictionaries; the recognized keys are modeled
// explicitly and anything else lands in Extra so nothing is silently lost.
type HintPayload struct {
	TypeHint      string         `json:"type_hint,omitempty"`
	FallbackValue any            `json:"fallback_value,omitempty"`
	RegexPatterns []RegexHint    `json:"regex_patterns,omitempty"`
	ROI           *ROI           `json:"roi,omitempty"`
	OCR           map[string]any `json:"ocr,omitempty"`
	Preprocessing map[string]any `json:"preprocessing,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Examples      []string       `json:"examples,omitempty"`
	Source        string         `json:"source,omitempty"`
	Enabled       *bool          `json:"enabled,omitempty"`

	Extra map[string]any `json:"-"`
}

// HintsMap maps a field name to its hint payload.
type HintsMap map[string]HintPayload

var hintRecognizedKeys = map[string]struct{}{
	"type_hint": {}, "fallback_value": {}, "regex_patterns": {}, "roi": {},
	"ocr": {}, "preprocessing": {}, "metadata": {}, "examples": {},
	"source": {}, "enabled": {},
}

const hintPayloadSchema = `{
  "type": "object",
  "properties": {
    "type_hint": {"type": "string", "enum": ["text", "number", "date"]},
    "fallback_value": {},
    "regex_patterns": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "pattern": {"type": "string", "minLength": 1},
          "flags": {"type": "array", "items": {"type": "string"}},
          "source": {"type": "string"}
        },
        "required": ["pattern"]
      }
    },
    "roi": {
      "type": "object",
      "properties": {
        "x": {"type": "number"}, "y": {"type": "number"},
        "w": {"type": "number"}, "h": {"type": "number"}
      },
      "required": ["x", "y", "w", "h"]
    },
    "ocr": {"type": "object"},
    "preprocessing": {"type": "object"},
    "metadata": {"type": "object"},
    "examples": {"type": "array", "items": {"type": "string"}},
    "source": {"type": "string"},
    "enabled": {"type": "boolean"}
  }
}`

var hintSchema = mustCompileHintSchema()

func mustCompileHintSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("hint.json", bytes.NewReader([]byte(hintPayloadSchema))); err != nil {
		panic(err)
	}
	return c.MustCompile("hint.json")
}

// ParseHintPayload decodes a raw hint payload, validating the recognized keys
// against the payload schema and bucketing unknown keys into Extra.
func ParseHintPayload(raw json.RawMessage) (HintPayload, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return HintPayload{}, fmt.Errorf("invalid hint payload JSON: %w", err)
	}
	m, ok := doc.(map[string]any)
	if !ok {
		return HintPayload{}, fmt.Errorf("hint payload must be an object")
	}

	known := make(map[string]any, len(m))
	extra := map[string]any{}
	for k, v := range m {
		if _, rec := hintRecognizedKeys[k]; rec {
			known[k] = v
		} else {
			extra[k] = v
		}
	}

	if err := hintSchema.Validate(known); err != nil {
		return HintPayload{}, fmt.Errorf("hint payload does not match schema: %w", err)
	}

	knownRaw, err := json.Marshal(known)
	if err != nil {
		return HintPayload{}, fmt.Errorf("failed to re-serialize hint payload: %w", err)
	}
	var p HintPayload
	if err := json.Unmarshal(knownRaw, &p); err != nil {
		return HintPayload{}, fmt.Errorf("failed to decode hint payload: %w", err)
	}
	if len(extra) > 0 {
		p.Extra = extra
	}
	return p, nil
}

// IsZero reports whether the payload carries no usable hint data.
func (p HintPayload) IsZero() bool {
	return p.TypeHint == "" && p.FallbackValue == nil && len(p.RegexPatterns) == 0 &&
		p.ROI == nil && len(p.OCR) == 0 && len(p.Preprocessing) == 0 &&
		len(p.Metadata) == 0 && len(p.Examples) == 0 && p.Enabled == nil &&
		len(p.Extra) == 0
}

// Sanitize returns a prompt-safe view of the hints map with empty payloads
// and blank field names dropped. The returned map is safe to serialize into
// a model prompt verbatim.
func (h HintsMap) Sanitize() map[string]map[string]any {
	out := make(map[string]map[string]any, len(h))
	for name, payload := range h {
		if strings.TrimSpace(name) == "" || payload.IsZero() {
			continue
		}
		entry := map[string]any{}
		if payload.TypeHint != "" {
			entry["type_hint"] = payload.TypeHint
		}
		if payload.FallbackValue != nil {
			entry["fallback_value"] = payload.FallbackValue
		}
		if len(payload.RegexPatterns) > 0 {
			entry["regex_patterns"] = payload.RegexPatterns
		}
		if payload.ROI != nil {
			entry["roi"] = payload.ROI
		}
		if len(payload.OCR) > 0 {
			entry["ocr"] = payload.OCR
		}
		if len(payload.Preprocessing) > 0 {
			entry["preprocessing"] = payload.Preprocessing
		}
		if len(payload.Metadata) > 0 {
			entry["metadata"] = payload.Metadata
		}
		if len(payload.Examples) > 0 {
			entry["examples"] = payload.Examples
		}
		if payload.Enabled != nil {
			entry["enabled"] = *payload.Enabled
		}
		if len(entry) > 0 {
			out[name] = entry
		}
	}
	return out
}
