package text

import "strings"

// ChunkBody splits an article body into paragraph-aligned chunks of at most
// maxWords words, for embedding. Paragraphs longer than maxWords are split on
// word boundaries.
func ChunkBody(body string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = 256
	}

	var chunks []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = nil
		}
	}

	for _, para := range strings.Split(body, "\n\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			continue
		}

		if len(current)+len(words) > maxWords {
			flush()
		}
		for len(words) > maxWords {
			chunks = append(chunks, strings.Join(words[:maxWords], " "))
			words = words[maxWords:]
		}
		current = append(current, words...)
	}
	flush()

	return chunks
}
