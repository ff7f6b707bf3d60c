package template

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is a named set of extraction fields, optionally carrying authored
// hints keyed by field name.
type Template struct {
	ID     string             `json:"id,omitempty" yaml:"id,omitempty"`
	Name   string             `json:"name" yaml:"name"`
	Fields []Field            `json:"fields" yaml:"fields"`
	Hints  map[string]yamlRaw `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// yamlRaw defers hint payload decoding so the payload schema validation in
// ParseHintPayload stays the single entry point.
type yamlRaw map[string]any

// EnabledFields returns the template's enabled fields in declaration order.
func (t *Template) EnabledFields() []Field {
	out := make([]Field, 0, len(t.Fields))
	for _, f := range t.Fields {
		if f.IsEnabled() && f.Name != "" {
			out = append(out, f)
		}
	}
	return out
}

// AuthoredHints parses the template's inline hints into a HintsMap. Invalid
// payloads are reported, not silently dropped.
func (t *Template) AuthoredHints() (HintsMap, error) {
	if len(t.Hints) == 0 {
		return HintsMap{}, nil
	}
	hints := make(HintsMap, len(t.Hints))
	for name, raw := range t.Hints {
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("serializing hint for field %q: %w", name, err)
		}
		payload, err := ParseHintPayload(data)
		if err != nil {
			return nil, fmt.Errorf("hint for field %q: %w", name, err)
		}
		hints[name] = payload
	}
	return hints, nil
}

// LoadFile reads a template from a YAML or JSON file.
func LoadFile(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}

	var t Template
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parsing template JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parsing template YAML: %w", err)
		}
	}

	if len(t.Fields) == 0 {
		return nil, fmt.Errorf("template %s declares no fields", path)
	}
	if t.ID == "" {
		t.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &t, nil
}
