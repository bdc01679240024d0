package handlers

import (
	"context"

	"frontdesk/agent/contract"
	statex "frontdesk/agent/state"
)

const clarificationReply = "Posso aiutarla a prenotare un appuntamento, passarle un collega, " +
	"darle orari e indirizzo dello studio oppure raccogliere i suoi dati per essere ricontattato. " +
	"Come posso esserle utile?"

// ClarificationHandler covers IntentUnknown: it restates what the desk can
// do and keeps the turn loop open.
type ClarificationHandler struct{}

var _ contract.Handler = (*ClarificationHandler)(nil)

func NewClarificationHandler() *ClarificationHandler {
	return &ClarificationHandler{}
}

func (h *ClarificationHandler) Handle(ctx context.Context, req contract.HandlerRequest) (contract.HandlerResult, error) {
	if req.State == nil {
		return contract.HandlerResult{}, statex.ErrNilState
	}
	return contract.HandlerResult{
		Reply:            clarificationReply,
		RequiresFollowup: true,
		Action:           "clarification",
	}, nil
}
