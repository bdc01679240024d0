package respond

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestComposeCollapsesWhitespaceAndStripsMarkers(t *testing.T) {
	t.Parallel()

	c := New(0)
	got := c.Compose("  Certo,\n\npossiamo  fissare [[handler:booking]] per domani.  ")
	want := "Certo, possiamo fissare per domani."
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestComposeTruncatesOnSentenceBoundary(t *testing.T) {
	t.Parallel()

	c := New(60)
	long := "La prima frase sta nel budget. La seconda invece viene tagliata perche' troppo lunga."
	got := c.Compose(long)
	if got != "La prima frase sta nel budget." {
		t.Fatalf("got %q", got)
	}

	// No sentence end inside the budget: cut on a word boundary instead.
	c = New(20)
	got = c.Compose("parole senza nessuna punteggiatura finale qui")
	if len(got) > 20 {
		t.Fatalf("reply exceeds budget: %q", got)
	}
	if strings.HasSuffix(got, " ") || got == "" {
		t.Fatalf("bad word-boundary cut: %q", got)
	}
}

func TestComposeNeverSplitsRunes(t *testing.T) {
	t.Parallel()

	// No spaces and no sentence ends, so the cut can only move back over
	// rune boundaries. An odd budget would land mid-rune on two-byte runes.
	c := New(11)
	got := c.Compose(strings.Repeat("è", 20))
	if !utf8.ValidString(got) {
		t.Fatalf("reply is not valid UTF-8: %q", got)
	}
	if len(got) == 0 || len(got) > 11 {
		t.Fatalf("bad cut length %d: %q", len(got), got)
	}
}

func TestIsFarewell(t *testing.T) {
	t.Parallel()

	yes := []string{"grazie", "Grazie mille, arrivederci!", "ciao", "buonasera"}
	for _, text := range yes {
		if !IsFarewell(text) {
			t.Fatalf("expected farewell for %q", text)
		}
	}

	no := []string{
		"",
		"grazie, vorrei anche prenotare un appuntamento",
		"vorrei un appuntamento",
		"arrivederci a tutti quanti voi della redazione",
	}
	for _, text := range no {
		if IsFarewell(text) {
			t.Fatalf("did not expect farewell for %q", text)
		}
	}
}
