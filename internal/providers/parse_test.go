package providers

import (
	"encoding/json"
	"testing"
)

func TestParseModelJSONDirect(t *testing.T) {
	outcome := ParseModelJSON(`{"mappings":{"a":{"value":"1","confidence":0.9}}}`)

	if outcome.Status != ParseOK {
		t.Fatalf("status = %v, want ParseOK (note: %s)", outcome.Status, outcome.Note)
	}
	var doc map[string]any
	if err := json.Unmarshal(outcome.Raw, &doc); err != nil {
		t.Fatal(err)
	}
}

func TestParseModelJSONStripsFences(t *testing.T) {
	content := "```json\n{\"mappings\": {}}\n```"

	outcome := ParseModelJSON(content)

	if outcome.Status != ParseRecovered {
		t.Fatalf("status = %v, want ParseRecovered", outcome.Status)
	}
	if outcome.Note == "" {
		t.Error("recovered parse should carry a note")
	}
}

func TestParseModelJSONExtractsEmbeddedObject(t *testing.T) {
	content := `Here is the result you asked for: {"mappings": {"total": {"value": "42"}}} Hope that helps!`

	outcome := ParseModelJSON(content)

	if outcome.Status != ParseRecovered {
		t.Fatalf("status = %v, want ParseRecovered", outcome.Status)
	}
	var doc struct {
		Mappings map[string]any `json:"mappings"`
	}
	if err := json.Unmarshal(outcome.Raw, &doc); err != nil {
		t.Fatal(err)
	}
	if _, ok := doc.Mappings["total"]; !ok {
		t.Error("extracted object lost the mappings payload")
	}
}

func TestParseModelJSONHandlesBracesInStrings(t *testing.T) {
	content := `prefix {"note": "look {at} this \" brace"} suffix`

	outcome := ParseModelJSON(content)

	if outcome.Status == ParseFailed {
		t.Fatal("string-aware extraction failed on embedded braces")
	}
}

func TestParseModelJSONFailure(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"prose", "I am unable to produce the requested output."},
		{"unbalanced", `{"mappings": {"a": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if outcome := ParseModelJSON(tt.content); outcome.Status != ParseFailed {
				t.Errorf("status = %v, want ParseFailed", outcome.Status)
			}
		})
	}
}

func TestValidateFieldMapJSON(t *testing.T) {
	valid := json.RawMessage(`{"field_mappings":{"a":{"value":"1","confidence":0.5}},"overall_confidence":0.5}`)
	if err := ValidateFieldMapJSON(valid); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}

	invalid := json.RawMessage(`{"field_mappings":{"a":{"confidence":"high"}}}`)
	if err := ValidateFieldMapJSON(invalid); err == nil {
		t.Error("non-numeric confidence accepted")
	}
}
