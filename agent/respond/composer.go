package respond

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultCharBudget caps spoken replies; long text reads badly over the
// phone.
const DefaultCharBudget = 320

// farewellWords end a call when the whole turn is a short goodbye.
var farewellWords = map[string]bool{
	"grazie":      true,
	"ciao":        true,
	"arrivederci": true,
	"saluti":      true,
	"buonasera":   true,
	"buonanotte":  true,
}

const maxFarewellWords = 4

var (
	internalMarkerRe = regexp.MustCompile(`\[\[[^\]]*\]\]|\{\{[^}]*\}\}`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	sentenceEndRe    = regexp.MustCompile(`[.!?]`)
)

// Composer normalizes handler replies into phone-ready text.
type Composer struct {
	budget int
}

func New(budget int) *Composer {
	if budget <= 0 {
		budget = DefaultCharBudget
	}
	return &Composer{budget: budget}
}

// Compose strips internal markers, collapses whitespace and trims the reply
// to the character budget on a sentence boundary when one exists.
func (c *Composer) Compose(reply string) string {
	text := internalMarkerRe.ReplaceAllString(reply, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if len(text) <= c.budget {
		return text
	}

	// Never cut inside a multi-byte rune.
	cutAt := c.budget
	for cutAt > 0 && !utf8.RuneStart(text[cutAt]) {
		cutAt--
	}
	cut := text[:cutAt]
	if idx := lastSentenceEnd(cut); idx > 0 {
		return strings.TrimSpace(cut[:idx+1])
	}
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		return strings.TrimSpace(cut[:idx])
	}
	return cut
}

func lastSentenceEnd(text string) int {
	locs := sentenceEndRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return -1
	}
	return locs[len(locs)-1][0]
}

// IsFarewell reports whether the utterance is a short goodbye: at most four
// words with at least one farewell keyword among them.
func IsFarewell(utterance string) bool {
	cleaned := strings.ToLower(strings.TrimSpace(utterance))
	cleaned = strings.Trim(cleaned, ".,!? ")
	if cleaned == "" {
		return false
	}
	words := strings.Fields(cleaned)
	if len(words) > maxFarewellWords {
		return false
	}
	for _, w := range words {
		w = strings.Trim(w, ".,!?")
		if farewellWords[w] {
			return true
		}
	}
	return false
}
