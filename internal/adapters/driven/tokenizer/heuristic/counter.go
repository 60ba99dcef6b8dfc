// Package heuristic provides a dependency-free token counter that
// approximates subword tokenizers.
package heuristic

import (
	"regexp"
	"unicode/utf8"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Counter implements the interface.
var _ driven.TokenCounter = (*Counter)(nil)

// runesPerPiece approximates the average subword length of BPE vocabularies.
const runesPerPiece = 4

// pieces matches a run of letters and digits or a single symbol.
var pieces = regexp.MustCompile(`[\p{L}\p{N}_]+|[^\p{L}\p{N}_\s]`)

// Counter counts words and punctuation, splitting long words every four runes.
type Counter struct{}

// New creates a heuristic counter.
func New() *Counter {
	return &Counter{}
}

// Count returns the approximate token count of text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}

	n := 0
	for _, piece := range pieces.FindAllString(text, -1) {
		runes := utf8.RuneCountInString(piece)
		n += (runes + runesPerPiece - 1) / runesPerPiece
	}
	return n
}

// Name identifies the scheme.
func (c *Counter) Name() string {
	return "heuristic"
}
