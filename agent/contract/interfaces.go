package contract

import (
	"context"

	statex "frontdesk/agent/state"
)

// Classifier assigns exactly one intent to an utterance. Implementations
// must be idempotent and callable with a timeout via ctx.
type Classifier interface {
	Classify(ctx context.Context, req ClassifyRequest) (ClassifyResult, error)
}

// Handler executes the domain action for one intent and returns a draft
// reply plus follow-up flags.
type Handler interface {
	Handle(ctx context.Context, req HandlerRequest) (HandlerResult, error)
}

// Registry resolves the single handler for an intent. Every intent in the
// closed set has a handler; IntentUnknown maps to clarification.
type Registry interface {
	For(intent statex.Intent) Handler
}

// CallbackPublisher notifies the back office that a callback was promised.
// Failures are logged, never surfaced to the caller.
type CallbackPublisher interface {
	PublishCallback(ctx context.Context, notice CallbackNotice) error
}
