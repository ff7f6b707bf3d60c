package template

import (
	"encoding/json"
	"testing"
)

func TestParseHintPayloadRecognizedKeys(t *testing.T) {
	raw := json.RawMessage(`{
		"type_hint": "date",
		"regex_patterns": [{"pattern": "\\d{2}.\\d{2}.\\d{4}", "source": "auto-learning"}],
		"examples": ["12.03.2024"],
		"fallback_value": "unknown"
	}`)

	payload, err := ParseHintPayload(raw)
	if err != nil {
		t.Fatal(err)
	}
	if payload.TypeHint != "date" {
		t.Errorf("type_hint = %q", payload.TypeHint)
	}
	if len(payload.RegexPatterns) != 1 || payload.RegexPatterns[0].Source != "auto-learning" {
		t.Errorf("regex_patterns = %+v", payload.RegexPatterns)
	}
	if payload.FallbackValue != "unknown" {
		t.Errorf("fallback_value = %v", payload.FallbackValue)
	}
	if len(payload.Extra) != 0 {
		t.Errorf("extra = %v, want empty", payload.Extra)
	}
}

func TestParseHintPayloadBucketsUnknownKeys(t *testing.T) {
	raw := json.RawMessage(`{"type_hint": "text", "legacy_flag": true, "custom": {"a": 1}}`)

	payload, err := ParseHintPayload(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(payload.Extra) != 2 {
		t.Fatalf("extra = %v, want both unknown keys kept", payload.Extra)
	}
	if payload.Extra["legacy_flag"] != true {
		t.Error("legacy_flag lost")
	}
}

func TestParseHintPayloadRejectsBadShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not an object", `["a"]`},
		{"bad type_hint", `{"type_hint": "money"}`},
		{"empty pattern", `{"regex_patterns": [{"pattern": ""}]}`},
		{"pattern missing", `{"regex_patterns": [{"source": "x"}]}`},
		{"invalid json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseHintPayload(json.RawMessage(tt.raw)); err == nil {
				t.Error("malformed payload accepted")
			}
		})
	}
}

func TestSanitizeDropsEmptyPayloads(t *testing.T) {
	hints := HintsMap{
		"useful": {TypeHint: "number"},
		"empty":  {},
		"":       {TypeHint: "date"},
	}

	out := hints.Sanitize()

	if len(out) != 1 {
		t.Fatalf("sanitized = %v, want only the useful entry", out)
	}
	if out["useful"]["type_hint"] != "number" {
		t.Errorf("useful = %v", out["useful"])
	}
}
