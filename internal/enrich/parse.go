package enrich

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PlaceholderDescription fills a slot the model reply did not cover.
// Descriptions are never empty after enrichment.
const PlaceholderDescription = "No description available"

// parseStrategy turns a free-text model reply into exactly n descriptions,
// or nil when it cannot. Strategies are pure functions; the batcher selects
// the first one that succeeds.
type parseStrategy struct {
	name string
	fn   func(text string, n int) []string
}

// strategies is the ordered fallback chain. Each is tried only if the
// previous failed to produce exactly one description per input image.
var strategies = []parseStrategy{
	{"numbered-lines", parseNumberedLines},
	{"numbered-blocks", parseNumberedBlocks},
	{"paragraphs", parseParagraphs},
	{"even-partition", partitionEven},
}

// parseDescriptions maps a reply onto n slots in input order. It always
// returns exactly n strings; missing is how many had to be filled with the
// placeholder, and strategy names the winning parse.
func parseDescriptions(text string, n int) (descs []string, strategy string, missing int) {
	if n == 0 {
		return nil, "", 0
	}

	for _, s := range strategies {
		if got := s.fn(text, n); got != nil {
			for _, d := range got {
				if d == PlaceholderDescription {
					missing++
				}
			}
			return got, s.name, missing
		}
	}

	// Nothing usable in the reply (e.g. empty text): fill every slot
	// explicitly rather than leaving holes.
	out := make([]string, n)
	for i := range out {
		out[i] = PlaceholderDescription
	}
	return out, "placeholder", n
}

// parseNumberedLines finds, for each expected index i, a line beginning
// with "i." and takes the remainder of that line.
func parseNumberedLines(text string, n int) []string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, n)

	for i := 1; i <= n; i++ {
		prefix := fmt.Sprintf("%d.", i)
		found := ""
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, prefix) {
				found = strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
				break
			}
		}
		if found == "" {
			return nil
		}
		out = append(out, found)
	}
	return out
}

var numberedBlockRe = regexp.MustCompile(`^\s*(\d+)\s*[.):\-]\s*(.*)$`)

// parseNumberedBlocks splits on lines starting with a number plus delimiter,
// folding trailing wrapped lines into the preceding numbered block.
func parseNumberedBlocks(text string, n int) []string {
	var blocks []string
	current := -1

	for _, line := range strings.Split(text, "\n") {
		if m := numberedBlockRe.FindStringSubmatch(line); m != nil {
			blocks = append(blocks, strings.TrimSpace(m[2]))
			current = len(blocks) - 1
			continue
		}
		if current >= 0 && strings.TrimSpace(line) != "" {
			blocks[current] = strings.TrimSpace(blocks[current] + " " + strings.TrimSpace(line))
		}
	}

	if len(blocks) != n {
		return nil
	}
	for _, b := range blocks {
		if b == "" {
			return nil
		}
	}
	return blocks
}

// parseParagraphs splits the whole reply on blank lines.
func parseParagraphs(text string, n int) []string {
	var paras []string
	for _, p := range regexp.MustCompile(`\n\s*\n`).Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	if len(paras) != n {
		return nil
	}
	return paras
}

// partitionEven splits the raw reply into n chunks of equal character
// length. Final fallback; succeeds for any non-empty text.
func partitionEven(text string, n int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	out := make([]string, n)
	size := len(runes) / n
	if size == 0 {
		size = 1
	}

	for i := 0; i < n; i++ {
		start := i * size
		end := start + size
		if i == n-1 || end > len(runes) {
			end = len(runes)
		}
		if start >= len(runes) {
			out[i] = PlaceholderDescription
			continue
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk == "" {
			chunk = PlaceholderDescription
		}
		out[i] = chunk
	}
	return out
}

var imagePrefixRe = regexp.MustCompile(`(?i)^(image\s*\d+\s*[:.\-]\s*)+`)

// cleanDescription post-processes one description: markup emphasis is
// stripped, any re-added "Image N:" prefix removed, first letter
// capitalized.
func cleanDescription(s string) string {
	s = strings.NewReplacer("**", "", "*", "", "__", "", "_", "").Replace(s)
	s = imagePrefixRe.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.TrimSpace(s)
	if s == "" {
		return PlaceholderDescription
	}

	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
