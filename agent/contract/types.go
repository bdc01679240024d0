package contract

import (
	"time"

	statex "frontdesk/agent/state"
)

// ClassifySource identifies which tier produced a classification.
type ClassifySource string

const (
	SourceGuard    ClassifySource = "guard"
	SourceFastPath ClassifySource = "fastpath"
	SourceFallback ClassifySource = "fallback"
	SourceDegraded ClassifySource = "degraded"
)

// ClassifyRequest carries one utterance plus bounded recent history to a
// classifier. Classifiers must be side-effect free and safe to call
// repeatedly.
type ClassifyRequest struct {
	Utterance string       `json:"utterance"`
	History   []statex.Turn `json:"history,omitempty"`
	Now       time.Time    `json:"now"`
}

// ClassifyResult is the single intent assigned to a turn.
type ClassifyResult struct {
	Intent     statex.Intent  `json:"intent"`
	Confidence float64        `json:"confidence"`
	Source     ClassifySource `json:"source"`
}

// HandlerRequest is what the action router hands to the selected handler.
// The handler may read and write the state's entity slots.
type HandlerRequest struct {
	Utterance string
	State     *statex.ConversationState
	Now       time.Time
}

// HandlerResult is the handler's declared outcome. RequiresFollowup is the
// only signal the state machine uses to decide loop-back; it never
// re-inspects raw text.
type HandlerResult struct {
	Reply            string
	RequiresFollowup bool
	EndCall          bool
	Action           string
}

// CallbackNotice is published to the back office when a caller must be
// called back because the requested professional was unavailable.
type CallbackNotice struct {
	CallLogID    string `json:"call_log_id"`
	AccountantID string `json:"accountant_id"`
	CallerPhone  string `json:"caller_phone,omitempty"`
	Reason       string `json:"reason"`
}
