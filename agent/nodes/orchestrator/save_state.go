package orchestratornode

import (
	"context"
	"errors"
	"fmt"

	statex "frontdesk/agent/state"
)

// SaveState persists the updated conversation, or deletes it once the call
// has ended; ended calls keep no server-side state.
func SaveState(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil || in.Conv == nil {
		return nil, errors.New("graph state is nil")
	}

	if in.Conv.Ended {
		if err := store.Delete(ctx, in.CallID); err != nil {
			return nil, fmt.Errorf("delete conversation state: %w", err)
		}
		return in, nil
	}

	if err := in.Conv.Validate(); err != nil {
		return nil, fmt.Errorf("conversation state invalid before save: %w", err)
	}
	if err := store.Save(ctx, in.Conv); err != nil {
		return nil, fmt.Errorf("save conversation state: %w", err)
	}
	return in, nil
}

// FinalizeReply shapes the graph output.
func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil {
		return GraphOutput{}, errors.New("graph state is nil")
	}
	if in.Conv != nil && in.Conv.Phase == statex.PhaseEnded && !in.EndCall {
		in.EndCall = true
	}
	return GraphOutput{Reply: in.Reply, CallEnded: in.EndCall}, nil
}
