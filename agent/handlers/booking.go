package handlers

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"frontdesk/agent/contract"
	"frontdesk/agent/gateway"
	"frontdesk/agent/scheduling"
	statex "frontdesk/agent/state"
)

const defaultAppointmentMinutes = 60

var (
	cancelActionRe = regexp.MustCompile(`(?i)\b(annull\w*|disdi\w*|cancell\w*)\b`)
	modifyActionRe = regexp.MustCompile(`(?i)\b(spost\w*|modific\w*|rimand\w*|cambi\w*\s+(l'orario|data|giorno))\b`)
)

// BookingHandler drives the booking sub-flow: it collects date and time
// across turns, resolves the accountant and the client, and commits through
// the scheduling engine. Cancel and move requests ride the same intent and
// are told apart by their verbs.
type BookingHandler struct {
	gw     gateway.ServiceGateway
	engine *scheduling.Engine
}

var _ contract.Handler = (*BookingHandler)(nil)

func NewBookingHandler(gw gateway.ServiceGateway, engine *scheduling.Engine) *BookingHandler {
	return &BookingHandler{gw: gw, engine: engine}
}

func (h *BookingHandler) Handle(ctx context.Context, req contract.HandlerRequest) (contract.HandlerResult, error) {
	st := req.State
	if st == nil {
		return contract.HandlerResult{}, statex.ErrNilState
	}

	switch {
	case cancelActionRe.MatchString(req.Utterance) || st.ActiveFlow == "booking_cancel":
		return h.cancel(ctx, req)
	case modifyActionRe.MatchString(req.Utterance) || st.ActiveFlow == "booking_move":
		return h.move(ctx, req)
	default:
		return h.create(ctx, req)
	}
}

func (h *BookingHandler) create(ctx context.Context, req contract.HandlerRequest) (contract.HandlerResult, error) {
	st := req.State
	if st.ActiveFlow != "booking" {
		st.BeginFlow("booking")
	}

	date := st.EntityValue(statex.EntityDate)
	hour := st.EntityValue(statex.EntityTime)
	// Slots the flow has accepted survive later extraction noise; only an
	// explicit correction replaces them.
	if date != "" {
		st.ConfirmEntity(statex.EntityDate)
	}
	if hour != "" {
		st.ConfirmEntity(statex.EntityTime)
	}
	switch {
	case date == "" && hour == "":
		st.AdvanceFlow()
		return followup("Per quale giorno e a che ora desidera l'appuntamento?"), nil
	case date == "":
		st.AdvanceFlow()
		return followup("Per quale giorno desidera l'appuntamento?"), nil
	case hour == "":
		st.AdvanceFlow()
		return followup("A che ora preferisce?"), nil
	}

	startAt, err := parseStartAt(date, hour, req.Now)
	if err != nil {
		st.ClearEntity(statex.EntityDate)
		st.ClearEntity(statex.EntityTime)
		return followup("Non ho capito la data richiesta, puo' ripeterla?"), nil
	}

	acc, err := h.resolveAccountant(ctx, st)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			st.ClearEntity(statex.EntityAccountant)
			return followup("Non trovo il professionista richiesto. Con chi desidera l'appuntamento?"), nil
		}
		return contract.HandlerResult{}, err
	}

	clientID := h.resolveClientID(ctx, st)

	appt, err := h.engine.Book(ctx, gateway.CreateAppointmentParams{
		ClientID:     clientID,
		AccountantID: acc.ID,
		StartAt:      startAt,
		DurationMin:  defaultAppointmentMinutes,
		Subject:      strings.TrimSpace(req.Utterance),
	}, req.Now)
	if err != nil {
		return h.bookingFailure(st, err)
	}

	st.ClearEntity(statex.EntityDate)
	st.ClearEntity(statex.EntityTime)
	st.EndFlow()
	reply := fmt.Sprintf(
		"Perfetto, ho fissato l'appuntamento con %s per %s alle %s. Il codice di riferimento e' %s.",
		acc.Name, formatDay(appt.StartAt), appt.StartAt.Format("15:04"), appt.ID,
	)
	return contract.HandlerResult{Reply: reply, Action: "booking_created"}, nil
}

func (h *BookingHandler) cancel(ctx context.Context, req contract.HandlerRequest) (contract.HandlerResult, error) {
	st := req.State
	if st.ActiveFlow != "booking_cancel" {
		st.BeginFlow("booking_cancel")
	}

	apptID := st.EntityValue(statex.EntityAppointmentID)
	if apptID == "" {
		st.AdvanceFlow()
		return followup("Mi puo' dare il codice di riferimento dell'appuntamento da annullare?"), nil
	}
	st.ConfirmEntity(statex.EntityAppointmentID)

	if err := h.engine.Cancel(ctx, apptID); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			st.ClearEntity(statex.EntityAppointmentID)
			return followup("Non trovo nessun appuntamento con quel codice. Puo' verificarlo?"), nil
		}
		return contract.HandlerResult{}, err
	}

	st.ClearEntity(statex.EntityAppointmentID)
	st.EndFlow()
	return contract.HandlerResult{
		Reply:  "L'appuntamento e' stato annullato. Posso aiutarla con altro?",
		Action: "booking_cancelled",
	}, nil
}

func (h *BookingHandler) move(ctx context.Context, req contract.HandlerRequest) (contract.HandlerResult, error) {
	st := req.State
	if st.ActiveFlow != "booking_move" {
		st.BeginFlow("booking_move")
	}

	apptID := st.EntityValue(statex.EntityAppointmentID)
	if apptID == "" {
		st.AdvanceFlow()
		return followup("Mi puo' dare il codice di riferimento dell'appuntamento da spostare?"), nil
	}
	st.ConfirmEntity(statex.EntityAppointmentID)

	date := st.EntityValue(statex.EntityDate)
	hour := st.EntityValue(statex.EntityTime)
	if date != "" {
		st.ConfirmEntity(statex.EntityDate)
	}
	if hour != "" {
		st.ConfirmEntity(statex.EntityTime)
	}
	if date == "" || hour == "" {
		st.AdvanceFlow()
		return followup("A quale giorno e ora vuole spostarlo?"), nil
	}

	startAt, err := parseStartAt(date, hour, req.Now)
	if err != nil {
		st.ClearEntity(statex.EntityDate)
		st.ClearEntity(statex.EntityTime)
		return followup("Non ho capito la nuova data, puo' ripeterla?"), nil
	}

	existing, err := h.gw.GetAppointment(ctx, apptID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			st.ClearEntity(statex.EntityAppointmentID)
			return followup("Non trovo nessun appuntamento con quel codice. Puo' verificarlo?"), nil
		}
		return contract.HandlerResult{}, err
	}

	moved, err := h.engine.Move(ctx, apptID, startAt, existing.DurationMin, req.Now)
	if err != nil {
		return h.bookingFailure(st, err)
	}

	st.ClearEntity(statex.EntityDate)
	st.ClearEntity(statex.EntityTime)
	st.ClearEntity(statex.EntityAppointmentID)
	st.EndFlow()
	reply := fmt.Sprintf(
		"Fatto, l'appuntamento e' stato spostato a %s alle %s.",
		formatDay(moved.StartAt), moved.StartAt.Format("15:04"),
	)
	return contract.HandlerResult{Reply: reply, Action: "booking_moved"}, nil
}

// bookingFailure renders conflicts as an offer of alternatives and keeps
// the flow open; anything else propagates.
func (h *BookingHandler) bookingFailure(st *statex.ConversationState, err error) (contract.HandlerResult, error) {
	var conflict *scheduling.Conflict
	if errors.As(err, &conflict) {
		st.ClearEntity(statex.EntityTime)
		if len(conflict.Alternatives) == 0 {
			st.ClearEntity(statex.EntityDate)
			return followup("Mi dispiace, quell'orario e' occupato e non ci sono altri orari liberi quel giorno. Vuole provare un altro giorno?"), nil
		}
		times := make([]string, 0, len(conflict.Alternatives))
		for _, alt := range conflict.Alternatives {
			times = append(times, alt.Start.Format("15:04"))
		}
		reply := fmt.Sprintf(
			"Mi dispiace, quell'orario e' gia' occupato. Posso proporle: %s. Quale preferisce?",
			strings.Join(times, ", "),
		)
		return followup(reply), nil
	}
	if errors.Is(err, gateway.ErrInvalidInput) {
		st.ClearEntity(statex.EntityDate)
		st.ClearEntity(statex.EntityTime)
		return followup("Quell'orario non e' prenotabile. Puo' indicarmi un altro giorno o orario?"), nil
	}
	return contract.HandlerResult{}, err
}

// resolveAccountant uses the named accountant when the caller gave one and
// falls back to the first active accountant otherwise.
func (h *BookingHandler) resolveAccountant(ctx context.Context, st *statex.ConversationState) (*gateway.Accountant, error) {
	if name := st.EntityValue(statex.EntityAccountant); name != "" {
		return h.gw.FindAccountant(ctx, name)
	}

	all, err := h.gw.ListAccountants(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Live() {
			return &all[i], nil
		}
	}
	return nil, gateway.ErrNotFound
}

// resolveClientID looks up a known client by stated name; unknown callers
// get a per-call placeholder so the appointment is still attributable.
func (h *BookingHandler) resolveClientID(ctx context.Context, st *statex.ConversationState) string {
	if name := st.EntityValue(statex.EntityName); name != "" {
		if client, err := h.gw.FindClient(ctx, name); err == nil {
			return client.ID
		}
	}
	return "caller:" + st.CallID
}

func parseStartAt(date, hour string, now time.Time) (time.Time, error) {
	return time.ParseInLocation("2006-01-02 15:04", date+" "+hour, now.Location())
}

func formatDay(t time.Time) string {
	return t.Format("02/01/2006")
}

func followup(reply string) contract.HandlerResult {
	return contract.HandlerResult{Reply: reply, RequiresFollowup: true}
}
