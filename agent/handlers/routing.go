package handlers

import (
	"context"
	"fmt"

	"frontdesk/agent/contract"
	"frontdesk/agent/routing"
	statex "frontdesk/agent/state"
)

// RoutingHandler answers "mi passa il dottor X" requests. Live targets are
// announced for transfer; unavailable ones become a callback promise, and
// the follow-up turn collects the caller's number for the call log.
type RoutingHandler struct {
	engine *routing.Engine
}

var _ contract.Handler = (*RoutingHandler)(nil)

func NewRoutingHandler(engine *routing.Engine) *RoutingHandler {
	return &RoutingHandler{engine: engine}
}

func (h *RoutingHandler) Handle(ctx context.Context, req contract.HandlerRequest) (contract.HandlerResult, error) {
	st := req.State
	if st == nil {
		return contract.HandlerResult{}, statex.ErrNilState
	}

	// A pending callback waiting for a phone number takes priority.
	if callLogID := st.EntityValue(statex.EntityCallLogID); callLogID != "" {
		phone := st.EntityValue(statex.EntityPhone)
		if phone == "" {
			return followup("A quale numero possiamo richiamarla?"), nil
		}
		if err := h.engine.AttachPhone(ctx, callLogID, phone); err != nil {
			return contract.HandlerResult{}, err
		}
		st.ClearEntity(statex.EntityCallLogID)
		st.EndFlow()
		return contract.HandlerResult{
			Reply:  fmt.Sprintf("Perfetto, la faremo richiamare al %s appena possibile.", phone),
			Action: "callback_registered",
		}, nil
	}

	target := st.EntityValue(statex.EntityAccountant)
	if target == "" {
		return followup("Con chi desidera parlare?"), nil
	}

	decision, err := h.engine.Route(ctx, target, st.EntityValue(statex.EntityPhone), req.Utterance)
	if err != nil {
		return contract.HandlerResult{}, err
	}

	switch decision.Outcome {
	case routing.OutcomeTransfer:
		st.ClearEntity(statex.EntityAccountant)
		st.EndFlow()
		return contract.HandlerResult{
			Reply:  fmt.Sprintf("Le passo subito %s, rimanga in linea.", decision.Accountant.Name),
			Action: "transfer",
		}, nil

	case routing.OutcomeCallback:
		st.ClearEntity(statex.EntityAccountant)
		if err := st.SetEntity(statex.Entity{
			Kind:       statex.EntityCallLogID,
			Value:      decision.CallLogID,
			Confidence: 1.0,
			Source:     statex.SourceFastPath,
		}); err != nil {
			return contract.HandlerResult{}, err
		}
		st.ConfirmEntity(statex.EntityCallLogID)
		if st.EntityValue(statex.EntityPhone) != "" {
			// Number already known from this call: close the loop now.
			return h.Handle(ctx, req)
		}
		st.BeginFlow("routing_callback")
		return followup(fmt.Sprintf(
			"%s non e' al momento disponibile. Posso farla richiamare: a quale numero?",
			decision.Accountant.Name,
		)), nil

	default:
		st.ClearEntity(statex.EntityAccountant)
		return followup("Non trovo la persona richiesta. Puo' ripetere il nome o indicarmi l'argomento?"), nil
	}
}
