package document

import "strings"

const (
	chunkSize    = 1000
	chunkOverlap = 200
)

// chunkText splits text into overlapping chunks of roughly chunkSize runes.
// A chunk that would cut mid-sentence is shortened to the last sentence or
// line break, provided that break sits in the final chunkOverlap runes.
func chunkText(text string) []string {
	runes := []rune(text)
	if len(runes) <= chunkSize {
		if t := strings.TrimSpace(text); t != "" {
			return []string{t}
		}
		return nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + chunkSize
		cut := end
		if cut > len(runes) {
			cut = len(runes)
		} else if bp := breakPoint(runes[start:cut]); bp > chunkSize-chunkOverlap {
			cut = start + bp + 1
			end = cut
		}
		if c := strings.TrimSpace(string(runes[start:cut])); c != "" {
			chunks = append(chunks, c)
		}
		start = end - chunkOverlap
	}
	return chunks
}

// breakPoint finds the rune index of the last sentence end (the period of
// ". ") or newline in the chunk, or -1.
func breakPoint(chunk []rune) int {
	for i := len(chunk) - 1; i > 0; i-- {
		if chunk[i] == '\n' {
			return i
		}
		if chunk[i] == ' ' && chunk[i-1] == '.' {
			return i - 1
		}
	}
	return -1
}
