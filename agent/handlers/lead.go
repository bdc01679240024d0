package handlers

import (
	"context"
	"fmt"
	"strings"

	"frontdesk/agent/contract"
	"frontdesk/agent/gateway"
	statex "frontdesk/agent/state"
)

// LeadHandler qualifies prospective clients over several turns: category
// first, then name, then a phone or email. The lead is written through the
// gateway only once the minimum fields are in hand, with the same
// durability as a booking.
type LeadHandler struct {
	gw gateway.ServiceGateway
}

var _ contract.Handler = (*LeadHandler)(nil)

func NewLeadHandler(gw gateway.ServiceGateway) *LeadHandler {
	return &LeadHandler{gw: gw}
}

func (h *LeadHandler) Handle(ctx context.Context, req contract.HandlerRequest) (contract.HandlerResult, error) {
	st := req.State
	if st == nil {
		return contract.HandlerResult{}, statex.ErrNilState
	}
	if st.ActiveFlow != "lead" {
		st.BeginFlow("lead")
	}

	category := st.EntityValue(statex.EntityCategory)
	if category == "" {
		st.AdvanceFlow()
		return followup("Volentieri. Si tratta di una nuova azienda, di un'attivita' da libero professionista o di un cambio di commercialista?"), nil
	}
	st.ConfirmEntity(statex.EntityCategory)

	name := st.EntityValue(statex.EntityName)
	if name == "" {
		st.AdvanceFlow()
		return followup("Con chi ho il piacere di parlare?"), nil
	}
	st.ConfirmEntity(statex.EntityName)

	phone := st.EntityValue(statex.EntityPhone)
	email := st.EntityValue(statex.EntityEmail)
	if phone == "" && email == "" {
		st.AdvanceFlow()
		return followup("Mi lascia un numero di telefono o un indirizzo email per farla ricontattare?"), nil
	}
	st.ConfirmEntity(statex.EntityPhone)
	st.ConfirmEntity(statex.EntityEmail)

	lead, err := h.gw.CreateLead(ctx, gateway.LeadParams{
		Name:     name,
		Phone:    phone,
		Email:    email,
		Category: gateway.LeadCategory(category),
		Notes:    strings.TrimSpace(req.Utterance),
		Source:   "phone",
	})
	if err != nil {
		return contract.HandlerResult{}, err
	}

	st.ClearEntity(statex.EntityCategory)
	st.ClearEntity(statex.EntityName)
	st.EndFlow()
	return contract.HandlerResult{
		Reply: fmt.Sprintf(
			"Grazie %s, ho registrato la sua richiesta. Un nostro commercialista la ricontattera' al piu' presto.",
			lead.Name,
		),
		Action: "lead_created",
	}, nil
}
