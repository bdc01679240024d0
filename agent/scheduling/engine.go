package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"frontdesk/agent/gateway"
)

// Config tunes the booking engine.
type Config struct {
	MaxRetries   int           `envconfig:"MAX_RETRIES" split_words:"true" default:"2"`
	RetryBackoff time.Duration `envconfig:"RETRY_BACKOFF" split_words:"true" default:"150ms"`
	Alternatives int           `envconfig:"ALTERNATIVES" split_words:"true" default:"3"`
}

// Conflict is the first-class "slot taken" outcome. It always carries
// alternative slots so the caller can be offered a way forward instead of a
// dead end.
type Conflict struct {
	Requested    time.Time
	Alternatives []gateway.TimeSlot
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("slot %s already taken, %d alternatives", c.Requested.Format(time.RFC3339), len(c.Alternatives))
}

// Engine owns booking semantics on top of the gateway: validation, retry on
// transient persistence errors and conflict handling with alternatives. The
// no-double-booking guarantee itself lives in the gateway's atomic writes;
// the engine never trusts its own availability pre-check.
type Engine struct {
	gw  gateway.ServiceGateway
	cfg Config
}

func NewEngine(gw gateway.ServiceGateway, cfg Config) *Engine {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 150 * time.Millisecond
	}
	if cfg.Alternatives <= 0 {
		cfg.Alternatives = 3
	}
	return &Engine{gw: gw, cfg: cfg}
}

// Availability lists free slots for the accountant on the day containing
// day, filtered to start at or after notBefore.
func (e *Engine) Availability(ctx context.Context, accountantID string, day time.Time, durationMin int, notBefore time.Time) ([]gateway.TimeSlot, error) {
	slots, err := e.gw.CheckAvailability(ctx, accountantID, gateway.DayWindow(day), durationMin)
	if err != nil {
		return nil, err
	}
	if notBefore.IsZero() {
		return slots, nil
	}
	filtered := slots[:0]
	for _, s := range slots {
		if !s.Start.Before(notBefore) {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

// Book creates the appointment. A gateway.ErrConflict comes back as a
// *Conflict with alternatives from the same day; transient gateway errors
// are retried with backoff before giving up.
func (e *Engine) Book(ctx context.Context, p gateway.CreateAppointmentParams, now time.Time) (*gateway.Appointment, error) {
	if p.StartAt.Before(now) {
		return nil, fmt.Errorf("%w: appointment is in the past", gateway.ErrInvalidInput)
	}

	var lastErr error
	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}

		appt, err := e.gw.CreateAppointment(ctx, p)
		switch {
		case err == nil:
			return appt, nil
		case errors.Is(err, gateway.ErrConflict):
			return nil, e.conflict(ctx, p, now)
		case errors.Is(err, gateway.ErrUnavailable):
			log.Warn().Err(err).Int("attempt", attempt).Msg("transient booking failure, retrying")
			lastErr = err
		default:
			return nil, err
		}
	}
	return nil, lastErr
}

// Cancel marks the appointment cancelled; the slot becomes free again.
func (e *Engine) Cancel(ctx context.Context, appointmentID string) error {
	return e.gw.CancelAppointment(ctx, appointmentID)
}

// Move reschedules an existing appointment, mapping conflicts the same way
// Book does.
func (e *Engine) Move(ctx context.Context, appointmentID string, startAt time.Time, durationMin int, now time.Time) (*gateway.Appointment, error) {
	if startAt.Before(now) {
		return nil, fmt.Errorf("%w: appointment is in the past", gateway.ErrInvalidInput)
	}

	appt, err := e.gw.ModifyAppointment(ctx, appointmentID, startAt, durationMin)
	if err == nil {
		return appt, nil
	}
	if !errors.Is(err, gateway.ErrConflict) {
		return nil, err
	}

	existing, getErr := e.gw.GetAppointment(ctx, appointmentID)
	if getErr != nil {
		return nil, err
	}
	return nil, e.conflict(ctx, gateway.CreateAppointmentParams{
		AccountantID: existing.AccountantID,
		StartAt:      startAt,
		DurationMin:  durationMin,
	}, now)
}

// conflict builds the alternatives attached to a Conflict. Alternative
// lookup failures are swallowed: a conflict without alternatives is still a
// valid answer.
func (e *Engine) conflict(ctx context.Context, p gateway.CreateAppointmentParams, now time.Time) error {
	conflict := &Conflict{Requested: p.StartAt}

	slots, err := e.Availability(ctx, p.AccountantID, p.StartAt, p.DurationMin, now)
	if err != nil {
		log.Warn().Err(err).Msg("could not compute conflict alternatives")
		return conflict
	}
	for _, s := range slots {
		if s.Start.Equal(p.StartAt) {
			continue
		}
		conflict.Alternatives = append(conflict.Alternatives, s)
		if len(conflict.Alternatives) >= e.cfg.Alternatives {
			break
		}
	}
	return conflict
}
