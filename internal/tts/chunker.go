package tts

import "strings"

// splitIntoChunks splits text into pieces of at most maxChars, preferring
// sentence boundaries. A single sentence longer than maxChars becomes its
// own chunk rather than being cut mid-word.
func splitIntoChunks(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	sentences := strings.Split(text, ". ")

	current := ""
	for i, sentence := range sentences {
		if i < len(sentences)-1 {
			sentence += "."
		}

		if len(current)+len(sentence) > maxChars && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			current = sentence
			continue
		}
		if current != "" {
			current += " "
		}
		current += sentence
	}

	if current != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}
	return chunks
}
