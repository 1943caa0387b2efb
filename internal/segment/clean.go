package segment

import (
	"regexp"
	"strings"
)

var (
	superscriptRe = regexp.MustCompile(`[⁰¹²³⁴⁵⁶⁷⁸⁹]+`)
	bracketRefRe  = regexp.MustCompile(`\[\d[\d,\-–\s]*\]`)
	// Footnote numerals glued directly onto a word or its trailing
	// punctuation, e.g. "history.12 The" or "evidence3 shows".
	gluedFootnoteRe = regexp.MustCompile(`([a-zA-Z][.,;:!?]?)[0-9]{1,3}([\s.,;:!?)]|$)`)
	multiSpaceRe    = regexp.MustCompile(`  +`)
	wsRe            = regexp.MustCompile(`\s+`)
)

// CleanForTTS strips artifacts that a narrator should not read
// (superscript footnote markers, bracketed reference numbers, numerals
// glued onto sentence ends) and joins paragraphs with the pause marker.
func CleanForTTS(text string) string {
	paragraphs := rejoinLines(text)

	cleaned := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = superscriptRe.ReplaceAllString(p, "")
		p = bracketRefRe.ReplaceAllString(p, "")
		p = gluedFootnoteRe.ReplaceAllString(p, "$1$2")
		p = multiSpaceRe.ReplaceAllString(p, " ")
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, " "+TTSPause+" ")
}

// rejoinLines reassembles hard-wrapped extractor output into
// paragraphs. A blank line marks a paragraph break; everything else is
// a wrapped line that belongs to the current paragraph.
func rejoinLines(text string) []string {
	var paragraphs []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = current[:0]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return paragraphs
}

// SplitSegments splits cleaned text on the pause marker, returning the
// non-empty narration segments in order.
func SplitSegments(text string) []string {
	parts := strings.Split(text, TTSPause)
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// StripPauses removes pause markers, yielding plain readable text.
func StripPauses(text string) string {
	text = strings.ReplaceAll(text, TTSPause, " ")
	return strings.TrimSpace(wsRe.ReplaceAllString(text, " "))
}

// WordCount counts whitespace-separated words, ignoring pause markers.
func WordCount(text string) int {
	n := 0
	for _, w := range strings.Fields(text) {
		if w != TTSPause {
			n++
		}
	}
	return n
}
