package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"frontdesk/agent/classify"
	"frontdesk/agent/contract"
	"frontdesk/agent/gateway"
	"frontdesk/agent/handlers"
	"frontdesk/agent/routing"
	"frontdesk/agent/scheduling"
	statex "frontdesk/agent/state"
)

var testNow = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

type staticClassifier struct {
	result contract.ClassifyResult
	err    error
}

func (c *staticClassifier) Classify(ctx context.Context, req contract.ClassifyRequest) (contract.ClassifyResult, error) {
	return c.result, c.err
}

func testRegistry(gw gateway.ServiceGateway) *handlers.Registry {
	schedEngine := scheduling.NewEngine(gw, scheduling.Config{MaxRetries: 1, RetryBackoff: time.Millisecond, Alternatives: 3})
	routeEngine := routing.NewEngine(gw, nil)
	return handlers.NewRegistry(
		handlers.NewBookingHandler(gw, schedEngine),
		handlers.NewRoutingHandler(routeEngine),
		handlers.NewOfficeInfoHandler(gw),
		handlers.NewLeadHandler(gw),
		handlers.NewClarificationHandler(),
	)
}

func newTestOrchestrator(t *testing.T, classifier contract.Classifier, cfg Config) (*Orchestrator, *statex.MemoryStore) {
	t.Helper()
	store := statex.NewMemoryStore()
	gw := gateway.NewDemoGateway()
	o, err := New(store, classifier, testRegistry(gw), cfg)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	o.now = func() time.Time { return testNow }
	return o, store
}

func tieredClassifier() contract.Classifier {
	cfg := classify.Config{ConfidenceThreshold: 0.55, AttemptTimeout: time.Second, BreakerThreshold: 3, BreakerCooldown: time.Second}
	return classify.NewTiered(cfg, classify.NewChain(cfg))
}

func TestFirstEmptyTurnGreets(t *testing.T) {
	t.Parallel()

	o, store := newTestOrchestrator(t, tieredClassifier(), Config{})

	reply, ended, err := o.HandleTurn(context.Background(), "call-greet", "")
	if err != nil {
		t.Fatalf("handle turn failed: %v", err)
	}
	if ended {
		t.Fatal("greeting must not end the call")
	}
	if !strings.Contains(reply, "Buongiorno") {
		t.Fatalf("expected the greeting, got %q", reply)
	}

	st, err := store.Load(context.Background(), "call-greet")
	if err != nil {
		t.Fatalf("state must persist after the greeting: %v", err)
	}
	if st.TurnCount != 1 {
		t.Fatalf("expected turn count 1, got %d", st.TurnCount)
	}
}

func TestBookingScenarioEndToEnd(t *testing.T) {
	t.Parallel()

	o, store := newTestOrchestrator(t, tieredClassifier(), Config{})
	ctx := context.Background()
	callID := "call-booking"

	reply, ended, err := o.HandleTurn(ctx, callID, "vorrei prenotare un appuntamento domani alle 15:00")
	if err != nil {
		t.Fatalf("handle turn failed: %v", err)
	}
	if ended {
		t.Fatal("booking confirmation must not end the call")
	}
	if !strings.Contains(reply, "15:00") || !strings.Contains(reply, "03/03/2026") {
		t.Fatalf("expected a confirmation with day and time, got %q", reply)
	}
	// The generated appointment code is spoken back to the caller.
	if !strings.Contains(reply, "-") {
		t.Fatalf("expected the appointment code in the reply, got %q", reply)
	}

	reply, ended, err = o.HandleTurn(ctx, callID, "grazie, arrivederci")
	if err != nil {
		t.Fatalf("handle turn failed: %v", err)
	}
	if !ended {
		t.Fatal("farewell must end the call")
	}
	if !strings.Contains(strings.ToLower(reply), "arrivederci") {
		t.Fatalf("expected a goodbye, got %q", reply)
	}

	if _, err := store.Load(ctx, callID); !errors.Is(err, statex.ErrStateNotFound) {
		t.Fatalf("ended call must leave no state, got %v", err)
	}

	// Further turns on the ended call are refused.
	if _, _, err := o.HandleTurn(ctx, callID, "pronto?"); err != nil {
		// A deleted call starts over instead; both behaviors must keep the
		// line usable, so only an unexpected error class fails here.
		t.Fatalf("unexpected error on post-hangup turn: %v", err)
	}
}

func TestAcceptedBookingDateSurvivesExtractionNoise(t *testing.T) {
	t.Parallel()

	o, _ := newTestOrchestrator(t, tieredClassifier(), Config{})
	ctx := context.Background()
	callID := "call-noise"

	reply, _, err := o.HandleTurn(ctx, callID, "vorrei prenotare un appuntamento domani")
	if err != nil {
		t.Fatalf("handle turn failed: %v", err)
	}
	if !strings.Contains(reply, "che ora") {
		t.Fatalf("expected a time prompt, got %q", reply)
	}

	// "giovedi'" is re-extraction noise, not a correction: the date the flow
	// already accepted must not move.
	reply, _, err = o.HandleTurn(ctx, callID, "per l'appuntamento facciamo alle 15:00, non giovedì")
	if err != nil {
		t.Fatalf("handle turn failed: %v", err)
	}
	if !strings.Contains(reply, "03/03/2026") {
		t.Fatalf("accepted date must survive noise, got %q", reply)
	}
}

func TestExplicitCorrectionMovesConfirmedDate(t *testing.T) {
	t.Parallel()

	o, _ := newTestOrchestrator(t, tieredClassifier(), Config{})
	ctx := context.Background()
	callID := "call-correction"

	if _, _, err := o.HandleTurn(ctx, callID, "vorrei prenotare un appuntamento domani"); err != nil {
		t.Fatalf("handle turn failed: %v", err)
	}

	reply, _, err := o.HandleTurn(ctx, callID, "no, anzi, per l'appuntamento facciamo giovedì alle 15:00")
	if err != nil {
		t.Fatalf("handle turn failed: %v", err)
	}
	if !strings.Contains(reply, "05/03/2026") {
		t.Fatalf("correction must move the date, got %q", reply)
	}
}

func TestGuardRejectionShortCircuitsHandlers(t *testing.T) {
	t.Parallel()

	o, _ := newTestOrchestrator(t, tieredClassifier(), Config{})

	reply, ended, err := o.HandleTurn(context.Background(), "call-guard", "posso detrarre le spese mediche?")
	if err != nil {
		t.Fatalf("handle turn failed: %v", err)
	}
	if ended {
		t.Fatal("guard rejection keeps the call open")
	}
	if reply != classify.GuardReply {
		t.Fatalf("expected the fixed guard reply, got %q", reply)
	}
}

func TestDegradedClassifierYieldsClarification(t *testing.T) {
	t.Parallel()

	degraded := &staticClassifier{result: contract.ClassifyResult{
		Intent: statex.IntentUnknown,
		Source: contract.SourceDegraded,
	}}
	o, _ := newTestOrchestrator(t, degraded, Config{})

	reply, ended, err := o.HandleTurn(context.Background(), "call-degraded", "qualcosa di incomprensibile")
	if err != nil {
		t.Fatalf("degraded classification must not surface an error: %v", err)
	}
	if ended {
		t.Fatal("clarification keeps the call open")
	}
	if !strings.Contains(reply, "appuntamento") {
		t.Fatalf("expected the capability menu, got %q", reply)
	}
}

func TestTurnCeilingEndsCall(t *testing.T) {
	t.Parallel()

	o, _ := newTestOrchestrator(t, tieredClassifier(), Config{MaxTurns: 2})
	ctx := context.Background()
	callID := "call-ceiling"

	for i := 0; i < 2; i++ {
		if _, ended, err := o.HandleTurn(ctx, callID, "mah, non so"); err != nil || ended {
			t.Fatalf("turn %d: ended=%v err=%v", i, ended, err)
		}
	}

	reply, ended, err := o.HandleTurn(ctx, callID, "ancora non so")
	if err != nil {
		t.Fatalf("handle turn failed: %v", err)
	}
	if !ended {
		t.Fatal("turn ceiling must end the call")
	}
	if !strings.Contains(strings.ToLower(reply), "arrivederci") {
		t.Fatalf("expected a polite hangup, got %q", reply)
	}
}

func TestEmptyCallIDRejected(t *testing.T) {
	t.Parallel()

	o, _ := newTestOrchestrator(t, tieredClassifier(), Config{})

	if _, _, err := o.HandleTurn(context.Background(), "  ", "pronto"); !errors.Is(err, ErrInvalidCallID) {
		t.Fatalf("expected ErrInvalidCallID, got %v", err)
	}
}
