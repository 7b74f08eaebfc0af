package service

import (
	"strings"
	"unicode"
)

// ChunkConfig controls how document text is split for embedding.
type ChunkConfig struct {
	// MaxChars bounds each chunk. Overlap is repeated between
	// consecutive chunks so context survives the boundary.
	MaxChars int
	Overlap  int
	// BoundaryTolerance is how far back from the hard cut the splitter
	// will look for a sentence end, then for whitespace. Best effort:
	// a wall of text still gets cut at MaxChars.
	BoundaryTolerance int
}

// DefaultChunkConfig mirrors the ingester defaults the knowledge base
// was originally built with.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars:          1200,
		Overlap:           150,
		BoundaryTolerance: 200,
	}
}

func chunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}
	runes := []rune(clean)
	if len(runes) <= cfg.MaxChars {
		return []string{clean}
	}

	chunks := make([]string, 0, 8)
	start := 0
	for start < len(runes) {
		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			end = findCut(runes, start, end, cfg.BoundaryTolerance)
		}

		if end <= start {
			break
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			nextStart = end - cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}

// findCut prefers a sentence boundary within tolerance of the hard
// cut, then any whitespace, then the hard cut itself.
func findCut(runes []rune, start, end, tolerance int) int {
	minCut := end - tolerance
	if minCut < start+1 {
		minCut = start + 1
	}

	for i := end; i > minCut; i-- {
		if isSentenceEnd(runes, i-1) {
			return i
		}
	}
	for i := end; i > minCut; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}

func isSentenceEnd(runes []rune, i int) bool {
	switch runes[i] {
	case '\n':
		return true
	case '.', '!', '?':
		// Terminal punctuation only counts when followed by space or
		// end of text, so "empirelabs.com.au" stays whole.
		return i+1 >= len(runes) || unicode.IsSpace(runes[i+1])
	}
	return false
}
