package orchestratornode

import (
	"context"
	"errors"

	"frontdesk/agent/classify"
	"frontdesk/agent/contract"
	statex "frontdesk/agent/state"
)

// ClassifyIntent assigns the turn's intent. Guard rejections short-circuit
// with the fixed redirect reply; everything else flows on to extraction and
// dispatch, including degraded unknowns.
func ClassifyIntent(ctx context.Context, in *GraphState, classifier contract.Classifier, historyTurns int) (*GraphState, error) {
	if in == nil || in.Conv == nil {
		return nil, errors.New("graph state is nil")
	}
	if in.ShortCircuit {
		return in, nil
	}

	result, err := classifier.Classify(ctx, contract.ClassifyRequest{
		Utterance: in.Utterance,
		History:   in.Conv.RecentHistory(historyTurns),
		Now:       in.Now,
	})
	if err != nil {
		// Classifiers degrade internally; an error here is a programming
		// mistake, but the caller still deserves an answer.
		result = contract.ClassifyResult{Intent: statex.IntentUnknown, Source: contract.SourceDegraded}
	}

	in.Classify = result
	in.Conv.Intent = result.Intent

	if result.Source == contract.SourceGuard {
		in.Reply = classify.GuardReply
		in.ShortCircuit = true
	}
	return in, nil
}
