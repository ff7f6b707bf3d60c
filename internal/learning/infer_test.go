package learning

import (
	"regexp"
	"testing"

	"github.com/fieldlens/fieldlens/internal/template"
)

func TestInferTypeDates(t *testing.T) {
	values := []string{"12.03.2024", "05.11.2023", "01.01.2022"}

	if got := InferType(values); got != template.TypeDate {
		t.Errorf("InferType = %s, want date", got)
	}
}

func TestInferTypeNumbers(t *testing.T) {
	values := []string{"1234", "5678,50", "-42"}

	if got := InferType(values); got != template.TypeNumber {
		t.Errorf("InferType = %s, want number", got)
	}
}

func TestInferTypeMixedFallsBackToText(t *testing.T) {
	values := []string{"hello", "world", "12.03.2024"}

	if got := InferType(values); got != template.TypeText {
		t.Errorf("InferType = %s, want text", got)
	}
}

func TestInferTypeTieGoesToDate(t *testing.T) {
	// Two date-shaped, two number-shaped.
	values := []string{"12.03.2024", "05/11/2023", "1234", "5678"}

	if got := InferType(values); got != template.TypeDate {
		t.Errorf("InferType = %s, want date on tie", got)
	}
}

func TestInferTypeLowAgreementPrefersStructured(t *testing.T) {
	// No type reaches half agreement; the structured interpretations still
	// win over text, date first.
	values := []string{
		"12.03.2024", "05.11.2023", "01.01.2022",
		"100", "200", "300",
		"alpha", "beta", "gamma",
	}

	if got := InferType(values); got != template.TypeDate {
		t.Errorf("InferType = %s, want date under low agreement", got)
	}
}

func TestInferPatternsIdenticalValues(t *testing.T) {
	patterns := InferPatterns([]string{"ACME Corp.", "ACME Corp.", "ACME Corp."}, template.TypeText)

	if len(patterns) != 1 {
		t.Fatalf("patterns = %v, want one exact pattern", patterns)
	}
	re := regexp.MustCompile(patterns[0])
	if !re.MatchString("ACME Corp.") {
		t.Error("exact pattern does not match the value")
	}
	if re.MatchString("ACME Corpx") {
		t.Error("exact pattern is not escaped")
	}
}

func TestInferPatternsDates(t *testing.T) {
	patterns := InferPatterns([]string{"12.03.2024", "05.11.2023", "01.01.2022"}, template.TypeDate)

	if len(patterns) != 1 {
		t.Fatalf("patterns = %v", patterns)
	}
	re := regexp.MustCompile(patterns[0])
	if !re.MatchString("31.12.2025") {
		t.Errorf("pattern %q rejects a well-formed date", patterns[0])
	}
}

func TestInferPatternsDominantDateShape(t *testing.T) {
	// Three ISO dates against one day-first: the dominant shape wins alone.
	values := []string{"2024-01-15", "2023-11-02", "2022-07-09", "12.03.2024"}

	patterns := InferPatterns(values, template.TypeDate)
	if want := `\d{4}-\d{2}-\d{2}`; len(patterns) != 1 || patterns[0] != want {
		t.Errorf("patterns = %v, want [%q]", patterns, want)
	}
}

func TestInferPatternsDateGenericFallback(t *testing.T) {
	generic := `\d{1,2}[./-]\d{1,2}[./-]\d{2,4}`

	// A stray non-date value must not suppress the pattern.
	values := []string{"12.03.2024", "05.11.2023", "01.01.2022", "unknown"}
	patterns := InferPatterns(values, template.TypeDate)
	if len(patterns) != 1 || patterns[0] != generic {
		t.Errorf("patterns = %v, want [%q]", patterns, generic)
	}

	// No shape reaches half agreement: still the generic pattern.
	values = []string{"2024-01-15", "12.03.2024", "n/a", "tbd"}
	patterns = InferPatterns(values, template.TypeDate)
	if len(patterns) != 1 || patterns[0] != generic {
		t.Errorf("patterns = %v, want [%q]", patterns, generic)
	}
}

func TestInferPatternsNumbersFixedWidth(t *testing.T) {
	patterns := InferPatterns([]string{"1234", "5678,50", "9012"}, template.TypeNumber)

	if len(patterns) != 1 {
		t.Fatalf("patterns = %v", patterns)
	}
	if want := `-?\d{4}(?:[.,]\d+)?`; patterns[0] != want {
		t.Errorf("pattern = %q, want %q", patterns[0], want)
	}
}

func TestInferPatternsNumbersVariableWidth(t *testing.T) {
	patterns := InferPatterns([]string{"12", "34567"}, template.TypeNumber)

	if want := `-?\d{1,5}(?:[.,]\d+)?`; len(patterns) != 1 || patterns[0] != want {
		t.Errorf("patterns = %v, want [%q]", patterns, want)
	}
}

func TestInferPatternsAlnumCodes(t *testing.T) {
	patterns := InferPatterns([]string{"AB12C", "XY34Z"}, template.TypeText)

	if want := `[A-Z0-9]{5}`; len(patterns) != 1 || patterns[0] != want {
		t.Errorf("patterns = %v, want [%q]", patterns, want)
	}
}

func TestInferPatternsMixedProducesNothing(t *testing.T) {
	if patterns := InferPatterns([]string{"hello world", "ACME Corp.", "n/a"}, template.TypeText); patterns != nil {
		t.Errorf("patterns = %v, want none for mixed values", patterns)
	}
}
