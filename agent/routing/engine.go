package routing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"frontdesk/agent/contract"
	"frontdesk/agent/gateway"
)

// Outcome says what happened to a transfer request.
type Outcome string

const (
	// OutcomeTransfer means the accountant is live and the call can be
	// handed over.
	OutcomeTransfer Outcome = "transfer"
	// OutcomeCallback means the accountant was resolved but cannot take the
	// call; a callback was logged.
	OutcomeCallback Outcome = "callback"
	// OutcomeNotFound means no accountant matched the request.
	OutcomeNotFound Outcome = "not_found"
)

// Decision is the routing engine's answer for one transfer request.
type Decision struct {
	Outcome    Outcome
	Accountant *gateway.Accountant
	CallLogID  string
}

// Engine resolves transfer targets and downgrades unavailable transfers to
// logged callbacks. The publisher, when present, notifies the back office;
// publish failures never block the caller.
type Engine struct {
	gw        gateway.ServiceGateway
	publisher contract.CallbackPublisher
}

func NewEngine(gw gateway.ServiceGateway, publisher contract.CallbackPublisher) *Engine {
	return &Engine{gw: gw, publisher: publisher}
}

// Route finds the requested accountant by name or specialization. A live
// accountant yields a transfer; a resolved but unavailable one yields a
// callback with a pending call log.
func (e *Engine) Route(ctx context.Context, query, callerPhone, reason string) (Decision, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Decision{}, fmt.Errorf("%w: empty routing query", gateway.ErrInvalidInput)
	}

	acc, err := e.gw.FindAccountant(ctx, query)
	if errors.Is(err, gateway.ErrNotFound) {
		return Decision{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return Decision{}, err
	}

	if acc.Live() {
		return Decision{Outcome: OutcomeTransfer, Accountant: acc}, nil
	}
	return e.callback(ctx, acc, callerPhone, reason)
}

// RequestCallback logs a callback for an already resolved accountant, used
// when the caller chooses a callback over waiting.
func (e *Engine) RequestCallback(ctx context.Context, acc *gateway.Accountant, callerPhone, reason string) (Decision, error) {
	if acc == nil {
		return Decision{}, fmt.Errorf("%w: nil accountant", gateway.ErrInvalidInput)
	}
	return e.callback(ctx, acc, callerPhone, reason)
}

// AttachPhone completes a callback record once the caller leaves a number.
func (e *Engine) AttachPhone(ctx context.Context, callLogID, phone string) error {
	return e.gw.SetCallLogContact(ctx, callLogID, phone)
}

func (e *Engine) callback(ctx context.Context, acc *gateway.Accountant, callerPhone, reason string) (Decision, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "richiesta di essere richiamato"
	}

	entry, err := e.gw.LogCall(ctx, gateway.CallLogParams{
		AccountantID:      acc.ID,
		CallerPhone:       callerPhone,
		Reason:            reason,
		CallbackRequested: true,
	})
	if err != nil {
		return Decision{}, err
	}

	if e.publisher != nil {
		notice := contract.CallbackNotice{
			CallLogID:    entry.ID,
			AccountantID: acc.ID,
			CallerPhone:  callerPhone,
			Reason:       reason,
		}
		if err := e.publisher.PublishCallback(ctx, notice); err != nil {
			log.Warn().Err(err).Str("call_log_id", entry.ID).Msg("callback publish failed")
		}
	}

	return Decision{Outcome: OutcomeCallback, Accountant: acc, CallLogID: entry.ID}, nil
}
