package classify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"frontdesk/agent/contract"
)

// breaker is a per-provider circuit breaker. After threshold consecutive
// failures the provider is skipped until the cooldown elapses.
type breaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	failures  int
	openUntil time.Time
	now       func() time.Time
}

func newBreaker(threshold int, cooldown time.Duration) *breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.now().Before(b.openUntil)
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openUntil = time.Time{}
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.openUntil = b.now().Add(b.cooldown)
		b.failures = 0
	}
}

// Chain tries LLM providers in declared order, each behind its own breaker
// and per-attempt timeout. The first schema-valid answer wins.
type Chain struct {
	providers []Provider
	breakers  []*breaker
	timeout   time.Duration
}

func NewChain(cfg Config, providers ...Provider) *Chain {
	breakers := make([]*breaker, len(providers))
	for i := range providers {
		breakers[i] = newBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown)
	}
	timeout := cfg.AttemptTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Chain{providers: providers, breakers: breakers, timeout: timeout}
}

// Classify walks the chain. It returns the first valid result; when every
// provider fails or is skipped, it returns the joined error so the caller
// can degrade.
func (c *Chain) Classify(ctx context.Context, req contract.ClassifyRequest) (contract.ClassifyResult, error) {
	if len(c.providers) == 0 {
		return contract.ClassifyResult{}, fmt.Errorf("%w: no providers configured", contract.ErrClassifierInvoke)
	}

	var errs []error
	for i, provider := range c.providers {
		br := c.breakers[i]
		if !br.allow() {
			errs = append(errs, fmt.Errorf("%s: breaker open", provider.Name()))
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		out, err := provider.Classify(attemptCtx, req)
		cancel()
		if err != nil {
			br.recordFailure()
			log.Warn().Err(err).Str("provider", provider.Name()).Msg("classifier provider failed")
			errs = append(errs, err)
			continue
		}

		result, err := out.toResult()
		if err != nil {
			br.recordFailure()
			log.Warn().Err(err).Str("provider", provider.Name()).Msg("classifier provider returned invalid schema")
			errs = append(errs, err)
			continue
		}

		br.recordSuccess()
		return result, nil
	}

	return contract.ClassifyResult{}, errors.Join(errs...)
}
