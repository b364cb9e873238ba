// Package wordextract tokenises document bodies into de-duplicated,
// insertion-ordered word lists for the RandomWalk estimator.
package wordextract

import "strings"

// Extractor turns free text into a distinct, first-occurrence-ordered list
// of lowercase words. A "word character" is an ASCII letter or a hyphen; any
// other rune flushes the buffered run as one word.
type Extractor struct{}

// New returns a ready-to-use Extractor. It carries no state.
func New() *Extractor {
	return &Extractor{}
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-'
}

// ExtractWords scans text rune by rune, accumulating consecutive word
// characters into a buffer. On hitting a non-word rune, the buffer is
// lower-cased, trimmed of leading/trailing hyphens, and — if non-empty and
// not already seen — appended to the result in first-occurrence order.
//
// A hyphen between two letters does not split the run: "co-op" extracts as
// a single word, not two. A trailing run of word characters with no
// terminating non-word rune after it is never flushed, matching the
// reference implementation this was ported from.
func (e *Extractor) ExtractWords(text string) []string {
	seen := make(map[string]struct{})
	order := make([]string, 0)

	var buf strings.Builder
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		word := strings.ToLower(buf.String())
		word = strings.Trim(word, "-")
		buf.Reset()
		if word == "" {
			return
		}
		if _, ok := seen[word]; ok {
			return
		}
		seen[word] = struct{}{}
		order = append(order, word)
	}

	for _, r := range text {
		if isWordRune(r) {
			buf.WriteRune(r)
		} else {
			flush()
		}
	}

	return order
}
