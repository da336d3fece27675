package chunker

import (
	"strings"
	"unicode"
)

// packSections groups rendered sections into parts no longer than maxChars.
// Sections are the natural split boundaries (per-property groups for
// schemas, per-response-code groups for operations); a single section that
// still exceeds the cap is cut at word boundaries. When no sections are
// available the full text is word-split directly. Content is never dropped.
func packSections(sections []string, full string, maxChars int) []string {
	if len(sections) == 0 {
		return splitText(full, maxChars)
	}

	var parts []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
	}

	for _, section := range sections {
		if len(section) > maxChars {
			flush()
			parts = append(parts, splitText(section, maxChars)...)
			continue
		}
		if current.Len() > 0 && current.Len()+1+len(section) > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(section)
	}
	flush()

	return parts
}

// splitText cuts text into pieces of at most maxChars, preferring whitespace
// boundaries near the cut point.
func splitText(text string, maxChars int) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	runes := []rune(clean)
	if len(runes) <= maxChars {
		return []string{clean}
	}

	minChars := maxChars / 3

	pieces := make([]string, 0, len(runes)/maxChars+1)
	start := 0
	for start < len(runes) {
		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			cut := end
			minCut := start + minChars
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}

		if end <= start {
			end = start + maxChars
			if end > len(runes) {
				end = len(runes)
			}
		}

		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			pieces = append(pieces, piece)
		}
		start = end
	}

	return pieces
}
