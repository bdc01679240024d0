package orchestratornode

import (
	"errors"

	"frontdesk/agent/respond"
	statex "frontdesk/agent/state"
)

// ComposeResponse turns the handler result (or a short-circuit reply) into
// the final spoken text and advances the state machine. Loop-back is driven
// purely by the handler's RequiresFollowup flag, never by re-reading text.
func ComposeResponse(in *GraphState, composer *respond.Composer, maxHistory int) (*GraphState, error) {
	if in == nil || in.Conv == nil {
		return nil, errors.New("graph state is nil")
	}

	conv := in.Conv

	reply := in.Reply
	if !in.ShortCircuit {
		reply = in.Result.Reply
		in.EndCall = in.Result.EndCall
	}
	in.Reply = composer.Compose(reply)

	conv.Phase = statex.PhaseResponding
	conv.TurnCount++
	conv.AppendTurn(statex.Turn{
		Utterance: in.Utterance,
		Response:  in.Reply,
		Intent:    conv.Intent,
		At:        in.Now,
	}, maxHistory)

	if in.EndCall {
		conv.Ended = true
		conv.Phase = statex.PhaseEnded
		conv.EndFlow()
	} else if !in.ShortCircuit {
		conv.NeedsConfirmation = in.Result.RequiresFollowup
		if !in.Result.RequiresFollowup {
			// Action complete: the next turn starts a fresh classification.
			conv.Phase = statex.PhaseClassifying
		}
	}

	conv.Touch(in.Now)
	return in, nil
}
