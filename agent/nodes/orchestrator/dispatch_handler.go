package orchestratornode

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"frontdesk/agent/contract"
	"frontdesk/agent/gateway"
	statex "frontdesk/agent/state"
)

// DispatchHandler routes the turn to the single handler for the assigned
// intent. A persistence outage inside a handler turns into an apology and a
// graceful end instead of a dead line.
func DispatchHandler(ctx context.Context, in *GraphState, registry contract.Registry) (*GraphState, error) {
	if in == nil || in.Conv == nil {
		return nil, errors.New("graph state is nil")
	}
	if in.ShortCircuit {
		return in, nil
	}

	in.Conv.Phase = statex.PhaseExecuting

	handler := registry.For(in.Conv.Intent)
	result, err := handler.Handle(ctx, contract.HandlerRequest{
		Utterance: in.Utterance,
		State:     in.Conv,
		Now:       in.Now,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrUnavailable) {
			log.Error().Err(err).Str("call_id", in.CallID).Msg("persistence unavailable during dispatch")
			in.Reply = "Mi dispiace, in questo momento ho un problema tecnico. La preghiamo di richiamare piu' tardi."
			in.ShortCircuit = true
			in.EndCall = true
			return in, nil
		}
		return nil, err
	}

	in.Result = result
	return in, nil
}
