package extraction

import "github.com/fieldlens/fieldlens/internal/template"

// Merge reconciles two mapping sets field by field. For every field present
// in either set: when the overlay's confidence is greater than or equal to
// the base's (or the base is absent), the overlay wins and the base value is
// pushed onto the winner's alternates, after the base's own prior alternates;
// otherwise the base stays and the overlay is appended as an alternate.
// Inputs are not mutated.
func Merge(base, overlay map[string]Mapping) map[string]Mapping {
	merged := make(map[string]Mapping, len(base)+len(overlay))

	for name, m := range base {
		merged[name] = cloneMapping(m)
	}

	for name, over := range overlay {
		existing, ok := merged[name]
		if !ok {
			merged[name] = cloneMapping(over)
			continue
		}

		over = cloneMapping(over)
		if over.Confidence >= existing.Confidence {
			// Overlay wins; existing (and its history) become alternates.
			over.Alternates = append(over.Alternates, existing.Alternates...)
			over.Alternates = append(over.Alternates, Alternate{
				Value:      existing.Value,
				Confidence: existing.Confidence,
				Source:     existing.Source,
			})
			merged[name] = over
		} else {
			existing.Alternates = append(existing.Alternates, over.Alternates...)
			existing.Alternates = append(existing.Alternates, Alternate{
				Value:      over.Value,
				Confidence: over.Confidence,
				Source:     over.Source,
			})
			merged[name] = existing
		}
	}

	for name, m := range merged {
		m.Confidence = clamp01(m.Confidence)
		merged[name] = m
	}

	return merged
}

// Complete fills in an unmapped entry for every template field absent from
// the mapping set, so output is always complete over the field list.
func Complete(mappings map[string]Mapping, fields []template.Field) map[string]Mapping {
	out := make(map[string]Mapping, len(fields))
	for name, m := range mappings {
		out[name] = m
	}
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		if _, ok := out[f.Name]; !ok {
			out[f.Name] = Unmapped()
		}
	}
	return out
}

func cloneMapping(m Mapping) Mapping {
	if len(m.Alternates) > 0 {
		alts := make([]Alternate, len(m.Alternates))
		copy(alts, m.Alternates)
		m.Alternates = alts
	}
	return m
}
