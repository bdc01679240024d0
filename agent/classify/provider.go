package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"frontdesk/agent/contract"
	statex "frontdesk/agent/state"
)

// Config tunes the tiered classifier.
type Config struct {
	ConfidenceThreshold float64       `envconfig:"CONFIDENCE_THRESHOLD" split_words:"true" default:"0.55"`
	AttemptTimeout      time.Duration `envconfig:"ATTEMPT_TIMEOUT" split_words:"true" default:"8s"`
	BreakerThreshold    int           `envconfig:"BREAKER_THRESHOLD" split_words:"true" default:"3"`
	BreakerCooldown     time.Duration `envconfig:"BREAKER_COOLDOWN" split_words:"true" default:"30s"`
	HistoryTurns        int           `envconfig:"HISTORY_TURNS" split_words:"true" default:"4"`
}

// llmIntentOutput is the JSON schema every fallback provider must return.
type llmIntentOutput struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Provider is one LLM-backed classification backend inside the fallback
// chain.
type Provider interface {
	Name() string
	Classify(ctx context.Context, req contract.ClassifyRequest) (llmIntentOutput, error)
}

// toResult validates the raw LLM output against the closed intent set and
// clamps confidence into [0, 1].
func (o llmIntentOutput) toResult() (contract.ClassifyResult, error) {
	raw := strings.TrimSpace(strings.ToLower(o.Intent))
	intent := statex.ParseIntent(raw)
	if intent == statex.IntentUnknown && raw != string(statex.IntentUnknown) {
		return contract.ClassifyResult{}, fmt.Errorf("%w: intent=%q", contract.ErrClassifierSchema, o.Intent)
	}
	conf := o.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return contract.ClassifyResult{
		Intent:     intent,
		Confidence: conf,
		Source:     contract.SourceFallback,
	}, nil
}
