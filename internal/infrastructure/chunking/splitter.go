package chunking

import "strings"

// defaultSeparators is the cascade tried in order before hard-cutting:
// paragraph break, line break, sentence period, space.
var defaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Splitter divides text into bounded, overlapping segments. Splitting
// prefers natural boundaries over arbitrary cuts: the separator cascade is
// applied recursively and only text with no separators at all is hard-cut.
type Splitter struct {
	ChunkSize int
	Overlap   int

	separators []string
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 10
	}
	return &Splitter{
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		separators: defaultSeparators,
	}
}

func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= s.ChunkSize {
		return []string{text}
	}
	return s.merge(s.split(runes, 0))
}

// split breaks text into pieces no longer than ChunkSize where separators
// allow it, descending the cascade only for pieces that are still too long.
// A run with no separator at any level comes back whole, oversized; merge
// hard-cuts those into final windows.
func (s *Splitter) split(runes []rune, level int) [][]rune {
	if len(runes) <= s.ChunkSize {
		return [][]rune{runes}
	}
	if level >= len(s.separators) {
		return [][]rune{runes}
	}

	parts := strings.SplitAfter(string(runes), s.separators[level])
	if len(parts) == 1 {
		return s.split(runes, level+1)
	}

	out := make([][]rune, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, s.split([]rune(part), level+1)...)
	}
	return out
}

// hardCut falls back to fixed windows when no separator exists in the text.
// Consecutive windows already share Overlap runes, so they are final chunks;
// merge must not stack another tail on top of them.
func (s *Splitter) hardCut(runes []rune) [][]rune {
	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([][]rune, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, runes[start:end])
		if end == len(runes) {
			break
		}
	}
	return out
}

// merge packs pieces back into chunks at or under ChunkSize, carrying an
// overlap tail from the previous chunk when it fits. Oversized pieces are
// separator-free runs: they become hard-cut windows directly, with no tail
// carried in or out.
func (s *Splitter) merge(pieces [][]rune) []string {
	var chunks []string
	var cur []rune

	flush := func() {
		if chunk := strings.TrimSpace(string(cur)); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, piece := range pieces {
		if len(piece) > s.ChunkSize {
			flush()
			cur = nil
			for _, window := range s.hardCut(piece) {
				if chunk := strings.TrimSpace(string(window)); chunk != "" {
					chunks = append(chunks, chunk)
				}
			}
			continue
		}
		if len(cur)+len(piece) > s.ChunkSize && len(cur) > 0 {
			flush()
			tail := overlapTail(cur, s.Overlap)
			if len(tail)+len(piece) > s.ChunkSize {
				tail = nil
			}
			cur = append([]rune(nil), tail...)
		}
		cur = append(cur, piece...)
	}
	flush()
	return chunks
}

func overlapTail(runes []rune, overlap int) []rune {
	if overlap <= 0 || len(runes) <= overlap {
		return nil
	}
	return runes[len(runes)-overlap:]
}
