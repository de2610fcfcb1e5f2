package channels

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// partPrefixReserve is the room kept for the "(i/n) " part prefix when
// splitting. Keeps every labeled part inside the channel's hard limit.
const partPrefixReserve = 20

// Split breaks text into parts that each fit maxLen, labeling them with
// "(i/n) " prefixes when more than one part results. Cut points prefer
// sentence or line boundaries, then word boundaries, then a hard cut.
func Split(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	limit := maxLen - partPrefixReserve
	if limit < 1 {
		limit = maxLen
	}

	var parts []string
	for len(text) > 0 {
		if len(text) <= limit {
			parts = append(parts, text)
			break
		}
		cutAt := splitPoint(text, limit)
		parts = append(parts, strings.TrimRight(text[:cutAt], " "))
		text = strings.TrimLeft(text[cutAt:], " ")
	}

	if len(parts) > 1 {
		for i := range parts {
			parts[i] = fmt.Sprintf("(%d/%d) %s", i+1, len(parts), parts[i])
		}
	}
	return parts
}

// splitPoint picks the cut position within text[:limit].
func splitPoint(text string, limit int) int {
	window := text[:limit]

	// Prefer a sentence or line end in the second half of the window.
	best := -1
	for _, sep := range []string{"\n", ". ", "! ", "? "} {
		if idx := strings.LastIndex(window, sep); idx > best {
			best = idx + len(sep)
		}
	}
	if best > limit/2 {
		return best
	}

	// Fall back to the last word boundary.
	if idx := strings.LastIndex(window, " "); idx > limit/2 {
		return idx + 1
	}

	// Hard cut, backed up to a rune boundary so a multi-byte character
	// never lands split across two parts.
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		cut = limit
	}
	return cut
}
