package websearch

import (
	"strings"
	"unicode/utf8"
)

// Chunk splits text into pieces of roughly size bytes, preferring
// paragraph boundaries. Oversized paragraphs are split hard, on rune
// boundaries.
func Chunk(text string, size int) []string {
	if size <= 0 {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		for len(para) > size {
			flush()
			cut := size
			for cut > 0 && !utf8.RuneStart(para[cut]) {
				cut--
			}
			if cut == 0 {
				cut = size
			}
			chunks = append(chunks, para[:cut])
			para = para[cut:]
		}

		if current.Len() > 0 && current.Len()+len(para)+2 > size {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}
