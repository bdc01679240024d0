package extract

import (
	"testing"
	"time"

	statex "frontdesk/agent/state"
)

// anchor is Monday 2026-03-02 10:00 local.
var anchor = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func entityValue(t *testing.T, res Result, kind string) string {
	t.Helper()
	for _, e := range res.Entities {
		if e.Kind == kind {
			return e.Value
		}
	}
	t.Fatalf("entity %s not extracted, got %+v", kind, res.Entities)
	return ""
}

func hasEntity(res Result, kind string) bool {
	for _, e := range res.Entities {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func TestExtractRelativeDatesAndTimes(t *testing.T) {
	t.Parallel()

	e := New()

	res := e.Extract("vorrei prenotare per domani alle 15", anchor)
	if got := entityValue(t, res, statex.EntityDate); got != "2026-03-03" {
		t.Fatalf("expected 2026-03-03, got %s", got)
	}
	if got := entityValue(t, res, statex.EntityTime); got != "15:00" {
		t.Fatalf("expected 15:00, got %s", got)
	}

	res = e.Extract("dopodomani alle 9:30 andrebbe bene", anchor)
	if got := entityValue(t, res, statex.EntityDate); got != "2026-03-04" {
		t.Fatalf("expected 2026-03-04, got %s", got)
	}
	if got := entityValue(t, res, statex.EntityTime); got != "09:30" {
		t.Fatalf("expected 09:30, got %s", got)
	}
}

func TestExtractWeekdayMeansNextOccurrence(t *testing.T) {
	t.Parallel()

	e := New()

	// Anchor is a Monday: "venerdì" is in four days.
	res := e.Extract("facciamo venerdì mattina", anchor)
	if got := entityValue(t, res, statex.EntityDate); got != "2026-03-06" {
		t.Fatalf("expected 2026-03-06, got %s", got)
	}

	// "lunedì" said on a Monday means next week, never today.
	res = e.Extract("ci vediamo lunedì", anchor)
	if got := entityValue(t, res, statex.EntityDate); got != "2026-03-09" {
		t.Fatalf("expected 2026-03-09, got %s", got)
	}
}

func TestExtractNumericDateRollsPastDatesForward(t *testing.T) {
	t.Parallel()

	e := New()

	res := e.Extract("il 15/04 va bene", anchor)
	if got := entityValue(t, res, statex.EntityDate); got != "2026-04-15" {
		t.Fatalf("expected 2026-04-15, got %s", got)
	}

	// 15/01 already passed relative to March: next year.
	res = e.Extract("il 15/01 va bene", anchor)
	if got := entityValue(t, res, statex.EntityDate); got != "2027-01-15" {
		t.Fatalf("expected 2027-01-15, got %s", got)
	}
}

func TestExtractAccountantTopicAndContact(t *testing.T) {
	t.Parallel()

	e := New()

	res := e.Extract("vorrei parlare con il Dott. Rossi", anchor)
	if got := entityValue(t, res, statex.EntityAccountant); got != "Rossi" {
		t.Fatalf("expected Rossi, got %q", got)
	}

	res = e.Extract("quali sono gli orari di apertura?", anchor)
	if got := entityValue(t, res, statex.EntityTopic); got != "office_hours" {
		t.Fatalf("expected office_hours, got %s", got)
	}

	res = e.Extract("mi chiamo Mario Ferrari, il numero e' 333 1234567 e la mail mario@example.it", anchor)
	if got := entityValue(t, res, statex.EntityName); got != "Mario Ferrari" {
		t.Fatalf("expected Mario Ferrari, got %q", got)
	}
	if got := entityValue(t, res, statex.EntityPhone); got != "333 1234567" {
		t.Fatalf("unexpected phone %q", got)
	}
	if got := entityValue(t, res, statex.EntityEmail); got != "mario@example.it" {
		t.Fatalf("unexpected email %q", got)
	}
}

func TestExtractCorrectionAndAppointmentID(t *testing.T) {
	t.Parallel()

	e := New()

	res := e.Extract("no, anzi facciamo martedì", anchor)
	if !res.IsCorrection {
		t.Fatal("expected correction marker")
	}
	if got := entityValue(t, res, statex.EntityDate); got != "2026-03-03" {
		t.Fatalf("expected 2026-03-03, got %s", got)
	}
	for _, ent := range res.Entities {
		if ent.Source != statex.SourceCorrection {
			t.Fatalf("correction turn must mark entities as corrections, got %s", ent.Source)
		}
	}

	res = e.Extract("l'appuntamento 123e4567-e89b-12d3-a456-426614174000", anchor)
	if got := entityValue(t, res, statex.EntityAppointmentID); got != "123e4567-e89b-12d3-a456-426614174000" {
		t.Fatalf("unexpected appointment id %q", got)
	}
}

func TestExtractNeverGuesses(t *testing.T) {
	t.Parallel()

	e := New()

	res := e.Extract("buongiorno, come va?", anchor)
	if len(res.Entities) != 0 {
		t.Fatalf("expected no entities, got %+v", res.Entities)
	}
	if res.IsCorrection {
		t.Fatal("plain greeting is not a correction")
	}
	if hasEntity(res, statex.EntityDate) {
		t.Fatal("no date should be extracted")
	}
}
