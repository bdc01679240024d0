package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Intent is the closed set of caller intents. Exactly one intent is assigned
// per turn. The string values are the stable serialization mapping; nothing
// outside this package should invent new ones.
type Intent string

const (
	IntentBooking    Intent = "booking"
	IntentRouting    Intent = "routing"
	IntentOfficeInfo Intent = "office_info"
	IntentLead       Intent = "lead"
	IntentUnknown    Intent = "unknown"
)

// ParseIntent maps a serialized intent string back to the closed set.
// Anything unrecognized collapses to IntentUnknown.
func ParseIntent(s string) Intent {
	switch Intent(strings.TrimSpace(strings.ToLower(s))) {
	case IntentBooking:
		return IntentBooking
	case IntentRouting:
		return IntentRouting
	case IntentOfficeInfo:
		return IntentOfficeInfo
	case IntentLead:
		return IntentLead
	default:
		return IntentUnknown
	}
}

// Phase is the conversation state machine position for a call.
type Phase string

const (
	PhaseWelcome     Phase = "welcome"
	PhaseClassifying Phase = "classifying"
	PhaseExecuting   Phase = "executing"
	PhaseResponding  Phase = "responding"
	PhaseEnded       Phase = "ended"
)

// EntitySource records which tier produced a slot value.
type EntitySource string

const (
	SourceFastPath   EntitySource = "fastpath"
	SourceFallback   EntitySource = "fallback"
	SourceCorrection EntitySource = "correction"
)

// Well-known entity kinds.
const (
	EntityDate          = "date"
	EntityTime          = "time"
	EntityAccountant    = "accountant"
	EntityTopic         = "topic"
	EntityName          = "name"
	EntityPhone         = "phone"
	EntityEmail         = "email"
	EntityCategory      = "category"
	EntityAppointmentID = "appointment_id"
	EntityCallLogID     = "call_log_id"
)

// Entity is a typed slot filled during the conversation. A confirmed slot is
// only overwritten by a candidate tagged as an explicit correction.
type Entity struct {
	Kind       string       `json:"kind"`
	Value      string       `json:"value"`
	Confidence float64      `json:"confidence"`
	Source     EntitySource `json:"source"`
	Confirmed  bool         `json:"confirmed"`
}

// Turn is one utterance/response pair kept in the bounded history.
type Turn struct {
	Utterance string    `json:"utterance"`
	Response  string    `json:"response"`
	Intent    Intent    `json:"intent"`
	At        time.Time `json:"at"`
}

// ConversationState is the per-call source of truth. It is owned by exactly
// one call: created on the first turn, mutated only by that call's turn
// processing, discarded when the call ends. Never shared across calls.
type ConversationState struct {
	CallID    string `json:"call_id"`
	TurnCount int    `json:"turn_count"`

	Phase  Phase  `json:"phase"`
	Intent Intent `json:"intent"`

	Entities map[string]Entity `json:"entities,omitempty"`
	History  []Turn            `json:"history,omitempty"`

	ActiveFlow string `json:"active_flow,omitempty"`
	FlowStep   int    `json:"flow_step,omitempty"`

	NeedsConfirmation bool `json:"needs_confirmation,omitempty"`
	Ended             bool `json:"ended,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrNilState      = errors.New("conversation state is nil")
	ErrEmptyCallID   = errors.New("call id is empty")
	ErrInvalidEntity = errors.New("invalid entity")
)

func NewConversationState(callID string, now time.Time) *ConversationState {
	return &ConversationState{
		CallID:    callID,
		Phase:     PhaseWelcome,
		Intent:    IntentUnknown,
		Entities:  make(map[string]Entity, 8),
		UpdatedAt: now.UTC(),
	}
}

func (s *ConversationState) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// EnsureEntityMap makes sure s.Entities is initialized.
func (s *ConversationState) EnsureEntityMap() {
	if s.Entities == nil {
		s.Entities = make(map[string]Entity, 8)
	}
}

// Entity returns the slot of the given kind, if present.
func (s *ConversationState) Entity(kind string) (Entity, bool) {
	if s == nil || s.Entities == nil {
		return Entity{}, false
	}
	e, ok := s.Entities[kind]
	return e, ok
}

// EntityValue returns the slot value or "" when absent.
func (s *ConversationState) EntityValue(kind string) string {
	e, ok := s.Entity(kind)
	if !ok {
		return ""
	}
	return e.Value
}

// SetEntity applies the merge rule for a single candidate: an unconfirmed
// slot is overwritten by any candidate of the same kind; a confirmed slot is
// overwritten only by an explicit correction.
func (s *ConversationState) SetEntity(candidate Entity) error {
	if s == nil {
		return ErrNilState
	}
	if strings.TrimSpace(candidate.Kind) == "" || strings.TrimSpace(candidate.Value) == "" {
		return fmt.Errorf("%w: kind and value are required", ErrInvalidEntity)
	}
	s.EnsureEntityMap()

	existing, ok := s.Entities[candidate.Kind]
	if ok && existing.Confirmed && candidate.Source != SourceCorrection {
		return nil
	}
	s.Entities[candidate.Kind] = candidate
	return nil
}

// MergeEntities applies SetEntity over a batch. When correction is true the
// candidates are re-tagged as corrections so they may replace confirmed
// slots.
func (s *ConversationState) MergeEntities(candidates []Entity, correction bool) error {
	for _, c := range candidates {
		if correction {
			c.Source = SourceCorrection
		}
		if err := s.SetEntity(c); err != nil {
			return err
		}
	}
	return nil
}

// ConfirmEntity marks a slot as confirmed. Missing slots are a no-op.
func (s *ConversationState) ConfirmEntity(kind string) {
	if s == nil || s.Entities == nil {
		return
	}
	if e, ok := s.Entities[kind]; ok {
		e.Confirmed = true
		s.Entities[kind] = e
	}
}

// ClearEntity drops a slot, e.g. after the value has been consumed by a
// committed booking.
func (s *ConversationState) ClearEntity(kind string) {
	if s == nil || s.Entities == nil {
		return
	}
	delete(s.Entities, kind)
}

// AppendTurn records an utterance/response pair, trimming the history to
// maxHistory entries from the tail.
func (s *ConversationState) AppendTurn(t Turn, maxHistory int) {
	if s == nil {
		return
	}
	s.History = append(s.History, t)
	if maxHistory > 0 && len(s.History) > maxHistory {
		s.History = s.History[len(s.History)-maxHistory:]
	}
}

// RecentHistory returns up to n most recent turns, oldest first.
func (s *ConversationState) RecentHistory(n int) []Turn {
	if s == nil || n <= 0 || len(s.History) == 0 {
		return nil
	}
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// BeginFlow enters a named sub-flow at step 0, replacing any current flow.
func (s *ConversationState) BeginFlow(name string) {
	s.ActiveFlow = name
	s.FlowStep = 0
}

// AdvanceFlow moves to the next step of the active sub-flow.
func (s *ConversationState) AdvanceFlow() {
	if s.ActiveFlow != "" {
		s.FlowStep++
	}
}

// EndFlow leaves the active sub-flow.
func (s *ConversationState) EndFlow() {
	s.ActiveFlow = ""
	s.FlowStep = 0
	s.NeedsConfirmation = false
}

func (s *ConversationState) Validate() error {
	if s == nil {
		return ErrNilState
	}
	if strings.TrimSpace(s.CallID) == "" {
		return ErrEmptyCallID
	}
	switch s.Phase {
	case PhaseWelcome, PhaseClassifying, PhaseExecuting, PhaseResponding, PhaseEnded:
	default:
		return fmt.Errorf("invalid phase %q", s.Phase)
	}
	if s.Ended && s.Phase != PhaseEnded {
		return fmt.Errorf("ended state must be in phase %q, got %q", PhaseEnded, s.Phase)
	}
	for kind, e := range s.Entities {
		if e.Kind != kind {
			return fmt.Errorf("%w: entity keyed %q carries kind %q", ErrInvalidEntity, kind, e.Kind)
		}
	}
	return nil
}
