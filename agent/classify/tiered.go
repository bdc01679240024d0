package classify

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"frontdesk/agent/contract"
	statex "frontdesk/agent/state"
)

// Tiered is the classifier the orchestrator consumes: guard, then fast
// path, then the LLM fallback chain. It never returns an error; when the
// chain is down or unsure it degrades to IntentUnknown so the call keeps
// moving.
type Tiered struct {
	guard     *Guard
	fast      *FastPath
	chain     *Chain
	threshold float64
}

var _ contract.Classifier = (*Tiered)(nil)

func NewTiered(cfg Config, chain *Chain) *Tiered {
	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.55
	}
	return &Tiered{
		guard:     NewGuard(),
		fast:      NewFastPath(),
		chain:     chain,
		threshold: threshold,
	}
}

func (t *Tiered) Classify(ctx context.Context, req contract.ClassifyRequest) (contract.ClassifyResult, error) {
	utterance := strings.TrimSpace(req.Utterance)
	if utterance == "" {
		return contract.ClassifyResult{
			Intent:     statex.IntentUnknown,
			Confidence: 0,
			Source:     contract.SourceDegraded,
		}, nil
	}

	if hit := t.guard.Check(utterance); hit != nil {
		log.Info().Str("reason", hit.Reason).Msg("guard rejected turn")
		return contract.ClassifyResult{
			Intent:     statex.IntentUnknown,
			Confidence: 1.0,
			Source:     contract.SourceGuard,
		}, nil
	}

	if result, ok := t.fast.Match(utterance); ok {
		return result, nil
	}

	result, err := t.chain.Classify(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("classifier chain exhausted, degrading to unknown")
		return contract.ClassifyResult{
			Intent:     statex.IntentUnknown,
			Confidence: 0,
			Source:     contract.SourceDegraded,
		}, nil
	}
	if result.Confidence < t.threshold {
		result.Intent = statex.IntentUnknown
	}
	return result, nil
}
