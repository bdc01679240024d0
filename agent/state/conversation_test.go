package state

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func TestParseIntentCollapsesUnknown(t *testing.T) {
	t.Parallel()

	cases := map[string]Intent{
		"booking":     IntentBooking,
		" Routing ":   IntentRouting,
		"office_info": IntentOfficeInfo,
		"lead":        IntentLead,
		"unknown":     IntentUnknown,
		"tax_advice":  IntentUnknown,
		"":            IntentUnknown,
	}
	for raw, want := range cases {
		if got := ParseIntent(raw); got != want {
			t.Fatalf("ParseIntent(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestSetEntityMergeRules(t *testing.T) {
	t.Parallel()

	st := NewConversationState("call-1", testNow)

	err := st.SetEntity(Entity{Kind: EntityDate, Value: "2026-03-03", Source: SourceFastPath})
	if err != nil {
		t.Fatalf("set entity: %v", err)
	}

	// Unconfirmed slots are overwritten freely.
	if err := st.SetEntity(Entity{Kind: EntityDate, Value: "2026-03-04", Source: SourceFallback}); err != nil {
		t.Fatalf("set entity: %v", err)
	}
	if got := st.EntityValue(EntityDate); got != "2026-03-04" {
		t.Fatalf("expected overwrite, got %s", got)
	}

	// Confirmed slots resist ordinary candidates.
	st.ConfirmEntity(EntityDate)
	if err := st.SetEntity(Entity{Kind: EntityDate, Value: "2026-03-05", Source: SourceFastPath}); err != nil {
		t.Fatalf("set entity: %v", err)
	}
	if got := st.EntityValue(EntityDate); got != "2026-03-04" {
		t.Fatalf("confirmed slot must survive, got %s", got)
	}

	// An explicit correction wins even against a confirmed slot.
	if err := st.SetEntity(Entity{Kind: EntityDate, Value: "2026-03-06", Source: SourceCorrection}); err != nil {
		t.Fatalf("set entity: %v", err)
	}
	if got := st.EntityValue(EntityDate); got != "2026-03-06" {
		t.Fatalf("correction must overwrite, got %s", got)
	}
}

func TestMergeEntitiesRetagsCorrections(t *testing.T) {
	t.Parallel()

	st := NewConversationState("call-1", testNow)
	if err := st.SetEntity(Entity{Kind: EntityTime, Value: "10:00", Source: SourceFastPath}); err != nil {
		t.Fatalf("set entity: %v", err)
	}
	st.ConfirmEntity(EntityTime)

	candidates := []Entity{{Kind: EntityTime, Value: "11:00", Source: SourceFastPath}}
	if err := st.MergeEntities(candidates, true); err != nil {
		t.Fatalf("merge entities: %v", err)
	}
	got, ok := st.Entity(EntityTime)
	if !ok || got.Value != "11:00" || got.Source != SourceCorrection {
		t.Fatalf("expected corrected slot, got %+v", got)
	}
}

func TestAppendTurnBoundsHistory(t *testing.T) {
	t.Parallel()

	st := NewConversationState("call-1", testNow)
	for i := 0; i < 10; i++ {
		st.AppendTurn(Turn{Utterance: "u", Response: "r", At: testNow}, 3)
	}
	if len(st.History) != 3 {
		t.Fatalf("expected history bounded to 3, got %d", len(st.History))
	}
	if got := st.RecentHistory(2); len(got) != 2 {
		t.Fatalf("expected 2 recent turns, got %d", len(got))
	}
}

func TestValidateRejectsInconsistentState(t *testing.T) {
	t.Parallel()

	st := NewConversationState("call-1", testNow)
	if err := st.Validate(); err != nil {
		t.Fatalf("fresh state must validate: %v", err)
	}

	st.Phase = "limbo"
	if err := st.Validate(); err == nil {
		t.Fatal("invalid phase must fail validation")
	}

	st.Phase = PhaseClassifying
	st.Ended = true
	if err := st.Validate(); err == nil {
		t.Fatal("ended state outside PhaseEnded must fail validation")
	}

	st.Ended = false
	st.Entities[EntityDate] = Entity{Kind: EntityTime, Value: "x"}
	if err := st.Validate(); err == nil {
		t.Fatal("entity key/kind mismatch must fail validation")
	}
}
