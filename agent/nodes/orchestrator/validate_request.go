package orchestratornode

import (
	"errors"
	"strings"
	"time"

	"frontdesk/agent/contract"
	statex "frontdesk/agent/state"
)

var (
	ErrInvalidCallID = errors.New("call id is empty")
	ErrCallEnded     = errors.New("call already ended")
)

type GraphInput struct {
	CallID    string
	Utterance string
}

type GraphOutput struct {
	Reply     string
	CallEnded bool
}

// GraphState is the single value threaded through the turn graph. Nodes
// mutate it in place and pass it on; a node that answers the turn itself
// sets ShortCircuit so the downstream domain nodes step aside.
type GraphState struct {
	CallID    string
	Utterance string
	Now       time.Time

	Conv     *statex.ConversationState
	IsNew    bool
	Classify contract.ClassifyResult
	Result   contract.HandlerResult

	Reply        string
	ShortCircuit bool
	EndCall      bool
}

// ValidateRequest checks the turn input. An empty utterance is legal only
// for the opening turn of a call, where it asks for the greeting.
func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	callID := strings.TrimSpace(in.CallID)
	if callID == "" {
		return nil, ErrInvalidCallID
	}

	return &GraphState{
		CallID:    callID,
		Utterance: strings.TrimSpace(in.Utterance),
		Now:       nowFn().UTC(),
	}, nil
}
