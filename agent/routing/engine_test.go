package routing

import (
	"context"
	"errors"
	"testing"

	"frontdesk/agent/contract"
	"frontdesk/agent/gateway"
)

type capturingPublisher struct {
	notices []contract.CallbackNotice
	err     error
}

func (p *capturingPublisher) PublishCallback(ctx context.Context, notice contract.CallbackNotice) error {
	p.notices = append(p.notices, notice)
	return p.err
}

func demoEngine(publisher contract.CallbackPublisher) (*Engine, *gateway.MemoryGateway) {
	gw := gateway.NewDemoGateway()
	return NewEngine(gw, publisher), gw
}

func TestRouteTransfersLiveAccountant(t *testing.T) {
	t.Parallel()

	eng, _ := demoEngine(nil)

	decision, err := eng.Route(context.Background(), "rossi", "", "")
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if decision.Outcome != OutcomeTransfer {
		t.Fatalf("expected transfer, got %s", decision.Outcome)
	}
	if decision.Accountant == nil || decision.Accountant.Name != "Dott. Marco Rossi" {
		t.Fatalf("unexpected accountant %+v", decision.Accountant)
	}
}

func TestRouteDowngradesVacationToCallback(t *testing.T) {
	t.Parallel()

	publisher := &capturingPublisher{}
	eng, gw := demoEngine(publisher)

	// Verdi is seeded on vacation.
	decision, err := eng.Route(context.Background(), "verdi", "+39 333 1112223", "pratica societaria")
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if decision.Outcome != OutcomeCallback {
		t.Fatalf("expected callback, got %s", decision.Outcome)
	}
	if decision.CallLogID == "" {
		t.Fatal("callback decision must carry a call log id")
	}
	if len(publisher.notices) != 1 || publisher.notices[0].CallLogID != decision.CallLogID {
		t.Fatalf("expected one published notice, got %+v", publisher.notices)
	}

	if err := eng.AttachPhone(context.Background(), decision.CallLogID, "+39 333 0000000"); err != nil {
		t.Fatalf("attach phone failed: %v", err)
	}
	if err := gw.SetCallLogContact(context.Background(), "missing", "x"); !errors.Is(err, gateway.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRoutePublisherFailureDoesNotBlock(t *testing.T) {
	t.Parallel()

	publisher := &capturingPublisher{err: errors.New("queue down")}
	eng, _ := demoEngine(publisher)

	decision, err := eng.Route(context.Background(), "verdi", "", "")
	if err != nil {
		t.Fatalf("publish failure must not fail routing: %v", err)
	}
	if decision.Outcome != OutcomeCallback {
		t.Fatalf("expected callback, got %s", decision.Outcome)
	}
}

func TestRouteBySpecializationAndNotFound(t *testing.T) {
	t.Parallel()

	eng, _ := demoEngine(nil)

	decision, err := eng.Route(context.Background(), "payroll", "", "")
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if decision.Outcome != OutcomeTransfer || decision.Accountant.Name != "Dott.ssa Laura Bianchi" {
		t.Fatalf("unexpected decision %+v", decision)
	}

	decision, err = eng.Route(context.Background(), "dott. inesistente", "", "")
	if err != nil {
		t.Fatalf("route failed: %v", err)
	}
	if decision.Outcome != OutcomeNotFound {
		t.Fatalf("expected not_found, got %s", decision.Outcome)
	}
}
