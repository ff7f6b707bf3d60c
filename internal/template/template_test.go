package template

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemplate(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeTemplate(t, "invoice.yaml", `
name: Invoice
fields:
  - name: invoice_no
    type: text
    required: true
    pattern: 'INV-\d{4}'
  - name: total
    type: number
  - name: internal
    type: text
    enabled: false
hints:
  total:
    type_hint: number
    examples: ["1.234,56"]
`)

	tpl, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if tpl.ID != "invoice" {
		t.Errorf("derived id = %q, want filename stem", tpl.ID)
	}
	if len(tpl.Fields) != 3 {
		t.Fatalf("fields = %d", len(tpl.Fields))
	}
	if enabled := tpl.EnabledFields(); len(enabled) != 2 {
		t.Errorf("enabled fields = %d, want 2", len(enabled))
	}

	hints, err := tpl.AuthoredHints()
	if err != nil {
		t.Fatal(err)
	}
	if hints["total"].TypeHint != "number" {
		t.Errorf("hints = %+v", hints)
	}
}

func TestLoadFileJSON(t *testing.T) {
	path := writeTemplate(t, "form.json", `{
		"id": "patient-form",
		"name": "Patient Form",
		"fields": [{"name": "patient_name", "type": "text", "tier": "handwriting"}]
	}`)

	tpl, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if tpl.ID != "patient-form" {
		t.Errorf("id = %q", tpl.ID)
	}
	if tpl.Fields[0].EffectiveTier() != TierHandwriting {
		t.Errorf("tier = %q", tpl.Fields[0].Tier)
	}
}

func TestLoadFileRejectsEmptyTemplates(t *testing.T) {
	path := writeTemplate(t, "empty.yaml", "name: Empty\nfields: []\n")

	if _, err := LoadFile(path); err == nil {
		t.Error("template without fields accepted")
	}
}

func TestAuthoredHintsRejectsInvalidPayload(t *testing.T) {
	path := writeTemplate(t, "bad.yaml", `
name: Bad
fields:
  - name: a
    type: text
hints:
  a:
    type_hint: money
`)

	tpl, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tpl.AuthoredHints(); err == nil {
		t.Error("invalid hint payload accepted")
	}
}
