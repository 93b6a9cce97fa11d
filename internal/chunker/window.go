package chunker

import (
	"regexp"
	"strings"
)

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+$`)

func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// windowSentences packs sentences into windows of at most the target token
// size, carrying roughly the configured overlap between adjacent windows so
// facts straddling a boundary survive in at least one window. Sentences
// longer than the target are word-windowed first.
func (c *Chunker) windowSentences(text string) []string {
	var units []string
	for _, s := range splitSentences(text) {
		if estimateTokens(s) > c.cfg.TargetTokens {
			units = append(units, c.windowWords(strings.Fields(s))...)
			continue
		}
		units = append(units, s)
	}
	return c.pack(units, " ")
}

// windowWords is the fixed sliding window of last resort for text with no
// usable sentence or paragraph boundaries.
func (c *Chunker) windowWords(words []string) []string {
	return c.pack(words, " ")
}

// pack greedily joins units into windows bounded by the target token size,
// stepping back far enough after each window to cover the overlap budget.
func (c *Chunker) pack(units []string, sep string) []string {
	if len(units) == 0 {
		return nil
	}

	var out []string
	start := 0
	for start < len(units) {
		end := start
		size := 0
		for end < len(units) {
			t := estimateTokens(units[end]) + 1
			if end > start && size+t > c.cfg.TargetTokens {
				break
			}
			size += t
			end++
		}
		out = append(out, strings.Join(units[start:end], sep))
		if end == len(units) {
			break
		}

		back := end
		overlap := 0
		for back > start+1 && overlap < c.cfg.OverlapTokens {
			back--
			overlap += estimateTokens(units[back]) + 1
		}
		start = back
	}
	return out
}
