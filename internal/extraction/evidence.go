package extraction

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/fieldlens/fieldlens/internal/template"
)

// Generic heuristics applied to date/number fields that have no explicit or
// learned pattern.
var (
	autoDatePattern   = regexp.MustCompile(`\b\d{1,2}[./-]\d{1,2}[./-]\d{2,4}\b`)
	autoNumberPattern = regexp.MustCompile(`\b\d{1,3}(?:[.,]\d{3})*(?:[.,]\d+)?\b`)
)

const (
	autoDateTag   = "auto_date"
	autoNumberTag = "auto_number"

	maxAutoDateMatches   = 3
	maxAutoNumberMatches = 5
)

// PatternEvidence is the matches produced by one pattern for one field.
type PatternEvidence struct {
	Pattern string   `json:"pattern"`
	Source  string   `json:"source"`
	Matches []string `json:"matches"`
}

// Evidence is the ordered set of pattern hits for one field. Recomputed
// every run, never persisted.
type Evidence struct {
	Patterns []PatternEvidence `json:"patterns"`
}

// FirstMatch returns the most reliable raw match, or "".
func (e Evidence) FirstMatch() string {
	for _, p := range e.Patterns {
		if len(p.Matches) > 0 {
			return strings.TrimSpace(p.Matches[0])
		}
	}
	return ""
}

// EvidenceMap keys per-field evidence by field name.
type EvidenceMap map[string]Evidence

// EvidenceDetector scans raw OCR text with per-field patterns to produce
// low-cost candidate values used as model priors and as a safety net when
// the models are unavailable.
type EvidenceDetector struct {
	logger *slog.Logger
}

// NewEvidenceDetector creates a detector. A nil logger falls back to
// slog.Default.
func NewEvidenceDetector(logger *slog.Logger) *EvidenceDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &EvidenceDetector{logger: logger.With("component", "evidence")}
}

type patternCandidate struct {
	pattern string
	flags   []string
	source  string
}

// Detect runs every pattern candidate for every enabled field against the
// text. Invalid user-supplied patterns are skipped with a warning, never
// fatal. Fields of type date/number with no pattern hit fall back to the
// generic heuristics.
func (d *EvidenceDetector) Detect(text string, fields []template.Field, hints template.HintsMap) EvidenceMap {
	if strings.TrimSpace(text) == "" || len(fields) == 0 {
		return nil
	}

	evidence := make(EvidenceMap)

	for i := range fields {
		field := &fields[i]
		if field.Name == "" || !field.IsEnabled() {
			continue
		}

		var candidates []patternCandidate
		if field.Pattern != "" {
			candidates = append(candidates, patternCandidate{
				pattern: field.Pattern,
				source:  "template",
			})
		}
		if hint, ok := hints[field.Name]; ok {
			for _, rh := range hint.RegexPatterns {
				if rh.Pattern == "" {
					continue
				}
				source := rh.Source
				if source == "" {
					source = "hint"
				}
				candidates = append(candidates, patternCandidate{
					pattern: rh.Pattern,
					flags:   rh.Flags,
					source:  source,
				})
			}
		}

		var hits []PatternEvidence
		for _, cand := range candidates {
			re, err := compilePattern(cand.pattern, cand.flags)
			if err != nil {
				d.logger.Warn("skipping invalid pattern",
					"field", field.Name,
					"pattern", cand.pattern,
					"error", err)
				continue
			}
			matches := dedupe(flattenMatches(re.FindAllStringSubmatch(text, -1)))
			if len(matches) == 0 {
				continue
			}
			hits = append(hits, PatternEvidence{
				Pattern: re.String(),
				Source:  cand.source,
				Matches: matches,
			})
		}
		if len(hits) > 0 {
			evidence[field.Name] = Evidence{Patterns: hits}
		}
	}

	d.applyHeuristics(text, fields, evidence)
	return evidence
}

// applyHeuristics fills in date/number fields still unmatched using the
// generic token patterns.
func (d *EvidenceDetector) applyHeuristics(text string, fields []template.Field, evidence EvidenceMap) {
	dates := dedupe(autoDatePattern.FindAllString(text, -1))
	if len(dates) > maxAutoDateMatches {
		dates = dates[:maxAutoDateMatches]
	}
	numbers := dedupe(autoNumberPattern.FindAllString(text, -1))
	if len(numbers) > maxAutoNumberMatches {
		numbers = numbers[:maxAutoNumberMatches]
	}

	for i := range fields {
		field := &fields[i]
		if field.Name == "" || !field.IsEnabled() {
			continue
		}
		if _, done := evidence[field.Name]; done {
			continue
		}
		switch field.Type {
		case template.TypeDate:
			if len(dates) > 0 {
				evidence[field.Name] = Evidence{Patterns: []PatternEvidence{{
					Pattern: autoDateTag,
					Source:  "heuristic",
					Matches: dates,
				}}}
			}
		case template.TypeNumber:
			if len(numbers) > 0 {
				evidence[field.Name] = Evidence{Patterns: []PatternEvidence{{
					Pattern: autoNumberTag,
					Source:  "heuristic",
					Matches: numbers,
				}}}
			}
		}
	}
}

// compilePattern builds a Go regexp from a pattern plus flag descriptors.
// The default is case-insensitive matching.
func compilePattern(pattern string, flags []string) (*regexp.Regexp, error) {
	var prefix string
	if len(flags) == 0 {
		prefix = "(?i)"
	} else {
		var set string
		for _, f := range flags {
			switch strings.ToLower(strings.TrimSpace(f)) {
			case "i", "ignorecase":
				set += "i"
			case "m", "multiline":
				set += "m"
			case "s", "dotall":
				set += "s"
			}
		}
		if set != "" {
			prefix = "(?" + set + ")"
		}
	}
	return regexp.Compile(prefix + pattern)
}

// flattenMatches joins capture groups the way findall does: a match with
// groups yields the groups joined by spaces, otherwise the whole match.
func flattenMatches(submatches [][]string) []string {
	out := make([]string, 0, len(submatches))
	for _, sm := range submatches {
		if len(sm) <= 1 {
			if len(sm) == 1 {
				out = append(out, sm[0])
			}
			continue
		}
		var parts []string
		for _, g := range sm[1:] {
			if g != "" {
				parts = append(parts, g)
			}
		}
		if len(parts) > 0 {
			out = append(out, strings.Join(parts, " "))
		} else {
			out = append(out, sm[0])
		}
	}
	return out
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
