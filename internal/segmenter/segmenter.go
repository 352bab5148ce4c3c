package segmenter

import (
	"strings"
	"unicode"

	"github.com/rivo/uniseg"

	"github.com/oukeidos/transdoc/internal/document"
)

// DefaultMaxToken is the per-request token budget used when the caller
// does not override it.
const DefaultMaxToken = 768

// EstimateTokens approximates the token cost of a piece of text.
// Scripts without word spacing (CJK) cost roughly one token per
// grapheme; spaced scripts cost roughly 1.3 tokens per word.
func EstimateTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	var wide int
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		runes := gr.Runes()
		if len(runes) > 0 && isWideScript(runes[0]) {
			wide++
		}
	}

	words := len(strings.Fields(text))
	tokens := wide + (words*13+9)/10
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

func isWideScript(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul)
}

// Stream yields successive segments of units, each fitting within the
// token budget. Segments are built lazily so a retry pass can rebuild
// its own stream over only the failed units.
type Stream struct {
	units  []document.Unit
	budget int
	pos    int
}

// New creates a stream over units with the given token budget.
// A non-positive budget falls back to DefaultMaxToken.
func New(units []document.Unit, maxToken int) *Stream {
	if maxToken <= 0 {
		maxToken = DefaultMaxToken
	}
	return &Stream{units: units, budget: maxToken}
}

// Next returns the next segment. A segment is never empty: a single
// unit that alone exceeds the budget is still yielded on its own.
// ok is false once the stream is exhausted.
func (s *Stream) Next() (segment []document.Unit, ok bool) {
	if s.pos >= len(s.units) {
		return nil, false
	}

	start := s.pos
	total := 0
	for s.pos < len(s.units) {
		cost := EstimateTokens(s.units[s.pos].Text)
		if s.pos > start && total+cost > s.budget {
			break
		}
		total += cost
		s.pos++
	}
	return s.units[start:s.pos], true
}

// Progress reports the fraction of units consumed so far, in [0, 1].
func (s *Stream) Progress() float64 {
	if len(s.units) == 0 {
		return 1
	}
	return float64(s.pos) / float64(len(s.units))
}

// Remaining reports how many units have not been yielded yet.
func (s *Stream) Remaining() int {
	return len(s.units) - s.pos
}
