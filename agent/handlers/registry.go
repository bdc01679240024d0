package handlers

import (
	"frontdesk/agent/contract"
	statex "frontdesk/agent/state"
)

// Registry maps each intent of the closed set to its handler. IntentUnknown
// and any unmapped intent resolve to the clarification handler, so dispatch
// can never come back empty.
type Registry struct {
	byIntent      map[statex.Intent]contract.Handler
	clarification contract.Handler
}

var _ contract.Registry = (*Registry)(nil)

func NewRegistry(booking, routing, officeInfo, lead, clarification contract.Handler) *Registry {
	return &Registry{
		byIntent: map[statex.Intent]contract.Handler{
			statex.IntentBooking:    booking,
			statex.IntentRouting:    routing,
			statex.IntentOfficeInfo: officeInfo,
			statex.IntentLead:       lead,
		},
		clarification: clarification,
	}
}

func (r *Registry) For(intent statex.Intent) contract.Handler {
	if h, ok := r.byIntent[intent]; ok && h != nil {
		return h
	}
	return r.clarification
}
