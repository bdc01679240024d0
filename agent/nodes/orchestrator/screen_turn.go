package orchestratornode

import (
	"errors"

	"frontdesk/agent/respond"
	statex "frontdesk/agent/state"
)

// ScreenTurn resolves the turns that never reach classification: the
// opening greeting, short farewells and the turn ceiling for runaway calls.
func ScreenTurn(in *GraphState, greeting string, maxTurns int) (*GraphState, error) {
	if in == nil || in.Conv == nil {
		return nil, errors.New("graph state is nil")
	}

	conv := in.Conv

	if in.IsNew && in.Utterance == "" {
		in.Reply = greeting
		in.ShortCircuit = true
		conv.Phase = statex.PhaseClassifying
		return in, nil
	}
	if in.Utterance == "" {
		in.Reply = "Mi scusi, non ho sentito. Puo' ripetere?"
		in.ShortCircuit = true
		return in, nil
	}

	if respond.IsFarewell(in.Utterance) {
		in.Reply = "Grazie per aver chiamato, arrivederci!"
		in.ShortCircuit = true
		in.EndCall = true
		return in, nil
	}

	if maxTurns > 0 && conv.TurnCount >= maxTurns {
		in.Reply = "Mi dispiace, non riesco ad aiutarla da qui. La faccio richiamare da un collega. Arrivederci."
		in.ShortCircuit = true
		in.EndCall = true
		return in, nil
	}

	conv.Phase = statex.PhaseClassifying
	return in, nil
}
