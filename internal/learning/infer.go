package learning

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fieldlens/fieldlens/internal/template"
)

var (
	isoDatePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	slashDatePattern = regexp.MustCompile(`^\d{1,2}[./-]\d{1,2}[./-]\d{2,4}$`)
	numberPattern    = regexp.MustCompile(`^-?\d+(?:[.,]\d+)?$`)
	alnumCodePattern = regexp.MustCompile(`^[A-Z0-9]+$`)
	integerPartRe    = regexp.MustCompile(`^-?(\d+)`)
)

func looksLikeDate(v string) bool {
	return isoDatePattern.MatchString(v) || slashDatePattern.MatchString(v)
}

func looksLikeNumber(v string) bool {
	return numberPattern.MatchString(v)
}

// InferType derives a field's value type from a set of corrected values.
// A type wins outright with at least half the votes, dates taking ties.
// Below that agreement, whichever of date or number is seen more often still
// wins; text is only the answer when nothing structured shows up at all.
func InferType(values []string) template.DataType {
	var dates, numbers, texts int
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		switch {
		case looksLikeDate(v):
			dates++
		case looksLikeNumber(v):
			numbers++
		default:
			texts++
		}
	}
	if dates+numbers+texts == 0 {
		return template.TypeText
	}

	half := len(values) / 2
	if half < 1 {
		half = 1
	}
	switch {
	case dates >= half && dates >= numbers && dates >= texts:
		return template.TypeDate
	case numbers >= half && numbers > dates && numbers >= texts:
		return template.TypeNumber
	case texts >= half && texts > dates && texts > numbers:
		return template.TypeText
	}

	if dates > 0 && dates >= numbers {
		return template.TypeDate
	}
	if numbers > 0 {
		return template.TypeNumber
	}
	return template.TypeText
}

// InferPatterns derives a matching pattern from corrected values, guided by
// the inferred type. Date histories yield the dominant date shape (the
// generic one when no shape reaches half agreement), numbers a width-bounded
// shape, uppercase alphanumeric codes a length-bounded shape, and identical
// values an exact escaped match. Anything else produces nothing rather than
// an over-broad pattern.
func InferPatterns(values []string, typeHint template.DataType) []string {
	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			trimmed = append(trimmed, v)
		}
	}
	if len(trimmed) == 0 {
		return nil
	}

	switch typeHint {
	case template.TypeDate:
		return []string{dominantDatePattern(trimmed)}
	case template.TypeNumber:
		return []string{numberShapePattern(trimmed)}
	}

	distinct := distinctTrimmed(trimmed)
	if allMatch(distinct, alnumCodePattern.MatchString) {
		return []string{alnumShapePattern(distinct)}
	}
	if len(distinct) == 1 {
		return []string{"^" + regexp.QuoteMeta(distinct[0]) + "$"}
	}
	return nil
}

// dominantDatePattern picks the date shape at least half the values agree
// on, falling back to the generic day-first pattern.
func dominantDatePattern(values []string) string {
	var iso, slash int
	for _, v := range values {
		if isoDatePattern.MatchString(v) {
			iso++
		}
		if slashDatePattern.MatchString(v) {
			slash++
		}
	}
	half := len(values) / 2
	if half < 1 {
		half = 1
	}
	if iso >= half && iso >= slash {
		return `\d{4}-\d{2}-\d{2}`
	}
	return `\d{1,2}[./-]\d{1,2}[./-]\d{2,4}`
}

// numberShapePattern fixes the integer-part width when every value agrees
// on it, and bounds it otherwise.
func numberShapePattern(values []string) string {
	minLen, maxLen := -1, 0
	for _, v := range values {
		m := integerPartRe.FindStringSubmatch(v)
		if m == nil {
			continue
		}
		n := len(m[1])
		if minLen < 0 || n < minLen {
			minLen = n
		}
		if n > maxLen {
			maxLen = n
		}
	}
	if minLen <= 0 {
		minLen, maxLen = 1, 10
	}
	if minLen == maxLen {
		return fmt.Sprintf(`-?\d{%d}(?:[.,]\d+)?`, minLen)
	}
	return fmt.Sprintf(`-?\d{1,%d}(?:[.,]\d+)?`, maxLen)
}

func alnumShapePattern(values []string) string {
	minLen, maxLen := -1, 0
	for _, v := range values {
		n := len(v)
		if minLen < 0 || n < minLen {
			minLen = n
		}
		if n > maxLen {
			maxLen = n
		}
	}
	if minLen == maxLen {
		return fmt.Sprintf(`[A-Z0-9]{%d}`, minLen)
	}
	return fmt.Sprintf(`[A-Z0-9]{%d,%d}`, minLen, maxLen)
}

func distinctTrimmed(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func allMatch(values []string, fn func(string) bool) bool {
	for _, v := range values {
		if !fn(v) {
			return false
		}
	}
	return len(values) > 0
}
