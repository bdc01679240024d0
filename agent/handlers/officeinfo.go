package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"frontdesk/agent/contract"
	"frontdesk/agent/gateway"
	statex "frontdesk/agent/state"
)

var englishWeekdays = [...]string{
	"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday",
}

// OfficeInfoHandler answers hours, address and contact questions from the
// gateway's office info sheet.
type OfficeInfoHandler struct {
	gw gateway.ServiceGateway
}

var _ contract.Handler = (*OfficeInfoHandler)(nil)

func NewOfficeInfoHandler(gw gateway.ServiceGateway) *OfficeInfoHandler {
	return &OfficeInfoHandler{gw: gw}
}

func (h *OfficeInfoHandler) Handle(ctx context.Context, req contract.HandlerRequest) (contract.HandlerResult, error) {
	st := req.State
	if st == nil {
		return contract.HandlerResult{}, statex.ErrNilState
	}

	topic := st.EntityValue(statex.EntityTopic)
	if topic == "" {
		return followup("Le servono gli orari, l'indirizzo o i contatti dello studio?"), nil
	}

	var reply string
	switch topic {
	case "office_hours":
		day := req.Now
		if d := st.EntityValue(statex.EntityDate); d != "" {
			if parsed, err := time.ParseInLocation("2006-01-02", d, req.Now.Location()); err == nil {
				day = parsed
			}
		}
		hours, err := h.gw.GetOfficeInfo(ctx, "office_hours_"+englishWeekdays[day.Weekday()])
		if err != nil {
			return h.infoFailure(err)
		}
		if strings.EqualFold(hours, "chiuso") {
			reply = fmt.Sprintf("%s lo studio e' chiuso.", italianDayLabel(day.Weekday()))
		} else {
			reply = fmt.Sprintf("%s lo studio e' aperto dalle %s.", italianDayLabel(day.Weekday()), hours)
		}

	case "office_address":
		address, err := h.gw.GetOfficeInfo(ctx, "office_address")
		if err != nil {
			return h.infoFailure(err)
		}
		reply = fmt.Sprintf("Lo studio si trova in %s.", address)

	case "office_phone":
		phone, err := h.gw.GetOfficeInfo(ctx, "office_phone")
		if err != nil {
			return h.infoFailure(err)
		}
		reply = fmt.Sprintf("Il numero dello studio e' %s.", phone)

	case "office_email":
		email, err := h.gw.GetOfficeInfo(ctx, "office_email")
		if err != nil {
			return h.infoFailure(err)
		}
		reply = fmt.Sprintf("Puo' scriverci a %s.", email)

	case "office_contacts":
		phone, err := h.gw.GetOfficeInfo(ctx, "office_phone")
		if err != nil {
			return h.infoFailure(err)
		}
		email, err := h.gw.GetOfficeInfo(ctx, "office_email")
		if err != nil {
			return h.infoFailure(err)
		}
		reply = fmt.Sprintf("Puo' contattarci al %s oppure via email a %s.", phone, email)

	default:
		st.ClearEntity(statex.EntityTopic)
		return followup("Le servono gli orari, l'indirizzo o i contatti dello studio?"), nil
	}

	st.ClearEntity(statex.EntityTopic)
	return contract.HandlerResult{Reply: reply, Action: "office_info"}, nil
}

func (h *OfficeInfoHandler) infoFailure(err error) (contract.HandlerResult, error) {
	if errors.Is(err, gateway.ErrNotFound) {
		return followup("Non ho quell'informazione a disposizione. Posso aiutarla con altro?"), nil
	}
	return contract.HandlerResult{}, err
}

func italianDayLabel(d time.Weekday) string {
	switch d {
	case time.Monday:
		return "Il lunedi'"
	case time.Tuesday:
		return "Il martedi'"
	case time.Wednesday:
		return "Il mercoledi'"
	case time.Thursday:
		return "Il giovedi'"
	case time.Friday:
		return "Il venerdi'"
	case time.Saturday:
		return "Il sabato"
	default:
		return "La domenica"
	}
}
