package index

import "strings"

// separators tried when choosing a chunk boundary, strongest first.
var separators = []string{"\n\n", "\n", " "}

// Split cuts text into chunks of at most size runes with roughly overlap
// runes shared between neighbours. Boundaries prefer paragraph breaks,
// then line breaks, then spaces; only separator-free text is cut
// mid-word. Chunks are trimmed and never empty. Pure function, no I/O.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakPoint(runes, start, end)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			// Guarantee forward progress on pathological input.
			next = start + 1
		}
		start = next
	}
	return chunks
}

// breakPoint finds the best cut position in runes[start:limit]. A cut in
// the first half of the window is rejected so a long run of separators
// cannot shrink chunks into confetti.
func breakPoint(runes []rune, start, limit int) int {
	minCut := start + (limit-start)/2
	window := string(runes[start:limit])
	for _, sep := range separators {
		i := strings.LastIndex(window, sep)
		if i < 0 {
			continue
		}
		pos := start + len([]rune(window[:i])) + len([]rune(sep))
		if pos > minCut {
			return pos
		}
	}
	return limit
}
