package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	statex "frontdesk/agent/state"
)

// LoadState fetches the conversation for the call or starts a fresh one on
// the first turn. A call that already ended refuses further turns.
func LoadState(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, errors.New("graph state is nil")
	}

	conv, err := store.Load(ctx, in.CallID)
	switch {
	case errors.Is(err, statex.ErrStateNotFound):
		conv = statex.NewConversationState(in.CallID, in.Now)
		in.IsNew = true
	case err != nil:
		return nil, fmt.Errorf("load conversation state: %w", err)
	}

	if conv.Ended {
		return nil, ErrCallEnded
	}

	conv.EnsureEntityMap()
	in.Conv = conv
	return in, nil
}
