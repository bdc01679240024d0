package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"frontdesk/agent/gateway"
)

func mondayAt(hour, min int) time.Time {
	return time.Date(2026, time.March, 2, hour, min, 0, 0, time.UTC)
}

func testEngine(t *testing.T) (*Engine, *gateway.MemoryGateway, gateway.Accountant, gateway.Client) {
	t.Helper()
	gw := gateway.NewMemoryGateway()
	acc := gw.AddAccountant(gateway.Accountant{
		Name:            "Dott. Marco Rossi",
		Specializations: []gateway.Specialization{gateway.SpecTax},
		Status:          gateway.AccountantActive,
		Hours:           gateway.DefaultWorkingHours(),
	})
	cl := gw.AddClient(gateway.Client{Name: "Mario Ferrari", TaxCode: "12345678901"})
	return NewEngine(gw, Config{MaxRetries: 2, RetryBackoff: time.Millisecond, Alternatives: 3}), gw, acc, cl
}

func TestBookHappyPath(t *testing.T) {
	t.Parallel()

	eng, _, acc, cl := testEngine(t)
	now := mondayAt(8, 0)

	appt, err := eng.Book(context.Background(), gateway.CreateAppointmentParams{
		ClientID: cl.ID, AccountantID: acc.ID, StartAt: mondayAt(10, 0), DurationMin: 60,
	}, now)
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if appt.ID == "" || appt.Status != gateway.AppointmentConfirmed {
		t.Fatalf("unexpected appointment %+v", appt)
	}
}

func TestBookRejectsPast(t *testing.T) {
	t.Parallel()

	eng, _, acc, cl := testEngine(t)

	_, err := eng.Book(context.Background(), gateway.CreateAppointmentParams{
		ClientID: cl.ID, AccountantID: acc.ID, StartAt: mondayAt(10, 0), DurationMin: 30,
	}, mondayAt(11, 0))
	if !errors.Is(err, gateway.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for past slot, got %v", err)
	}
}

func TestBookConflictCarriesAlternatives(t *testing.T) {
	t.Parallel()

	eng, _, acc, cl := testEngine(t)
	now := mondayAt(8, 0)

	params := gateway.CreateAppointmentParams{
		ClientID: cl.ID, AccountantID: acc.ID, StartAt: mondayAt(10, 0), DurationMin: 60,
	}
	if _, err := eng.Book(context.Background(), params, now); err != nil {
		t.Fatalf("first book failed: %v", err)
	}

	_, err := eng.Book(context.Background(), params, now)
	var conflict *Conflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *Conflict, got %v", err)
	}
	if len(conflict.Alternatives) == 0 {
		t.Fatal("conflict must offer alternatives")
	}
	if len(conflict.Alternatives) > 3 {
		t.Fatalf("alternatives must be capped, got %d", len(conflict.Alternatives))
	}
	for _, alt := range conflict.Alternatives {
		if alt.Start.Equal(params.StartAt) {
			t.Fatal("the conflicting slot itself is not an alternative")
		}
		if alt.Start.Before(now) {
			t.Fatalf("alternative %v is in the past", alt.Start)
		}
	}
}

func TestCancelThenRebook(t *testing.T) {
	t.Parallel()

	eng, _, acc, cl := testEngine(t)
	now := mondayAt(8, 0)

	params := gateway.CreateAppointmentParams{
		ClientID: cl.ID, AccountantID: acc.ID, StartAt: mondayAt(14, 0), DurationMin: 30,
	}
	appt, err := eng.Book(context.Background(), params, now)
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	if err := eng.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := eng.Book(context.Background(), params, now); err != nil {
		t.Fatalf("rebook after cancel failed: %v", err)
	}
}

func TestMoveMapsConflict(t *testing.T) {
	t.Parallel()

	eng, _, acc, cl := testEngine(t)
	now := mondayAt(8, 0)

	first, err := eng.Book(context.Background(), gateway.CreateAppointmentParams{
		ClientID: cl.ID, AccountantID: acc.ID, StartAt: mondayAt(9, 0), DurationMin: 30,
	}, now)
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}
	second, err := eng.Book(context.Background(), gateway.CreateAppointmentParams{
		ClientID: cl.ID, AccountantID: acc.ID, StartAt: mondayAt(10, 0), DurationMin: 30,
	}, now)
	if err != nil {
		t.Fatalf("book failed: %v", err)
	}

	_, err = eng.Move(context.Background(), second.ID, first.StartAt, 30, now)
	var conflict *Conflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected *Conflict, got %v", err)
	}

	moved, err := eng.Move(context.Background(), second.ID, mondayAt(11, 0), 30, now)
	if err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if !moved.StartAt.Equal(mondayAt(11, 0)) {
		t.Fatalf("unexpected start %v", moved.StartAt)
	}
}

// flakyGateway fails CreateAppointment with a transient error a fixed number
// of times before delegating.
type flakyGateway struct {
	gateway.ServiceGateway
	failures int
}

func (f *flakyGateway) CreateAppointment(ctx context.Context, p gateway.CreateAppointmentParams) (*gateway.Appointment, error) {
	if f.failures > 0 {
		f.failures--
		return nil, gateway.ErrUnavailable
	}
	return f.ServiceGateway.CreateAppointment(ctx, p)
}

func TestBookRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	_, gw, acc, cl := testEngine(t)
	flaky := &flakyGateway{ServiceGateway: gw, failures: 2}
	eng := NewEngine(flaky, Config{MaxRetries: 2, RetryBackoff: time.Millisecond, Alternatives: 3})

	appt, err := eng.Book(context.Background(), gateway.CreateAppointmentParams{
		ClientID: cl.ID, AccountantID: acc.ID, StartAt: mondayAt(16, 0), DurationMin: 30,
	}, mondayAt(8, 0))
	if err != nil {
		t.Fatalf("expected retries to recover, got %v", err)
	}
	if appt == nil || appt.ID == "" {
		t.Fatal("expected a created appointment")
	}

	exhausted := &flakyGateway{ServiceGateway: gw, failures: 10}
	eng = NewEngine(exhausted, Config{MaxRetries: 1, RetryBackoff: time.Millisecond})
	_, err = eng.Book(context.Background(), gateway.CreateAppointmentParams{
		ClientID: cl.ID, AccountantID: acc.ID, StartAt: mondayAt(17, 0), DurationMin: 30,
	}, mondayAt(8, 0))
	if !errors.Is(err, gateway.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable after exhausting retries, got %v", err)
	}
}
