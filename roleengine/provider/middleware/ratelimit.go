// Package middleware provides reusable roleengine.Provider middlewares.
// Grounded on the teacher's features/model/middleware.AdaptiveRateLimiter
// (AIMD token-bucket over golang.org/x/time/rate, backing off on
// rate-limit errors and probing back up on success), simplified to a
// process-local limiter over roleengine's narrower Provider contract
// (the teacher's cluster-coordinated variant uses goa.design/pulse/rmap,
// which this package does not need: roleengine providers are already
// process-local per adapter, with cross-node agent load balanced one
// level up by capability.Registry).
package middleware

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"goa.design/swarmassistant/roleengine"
)

// ErrRateLimited is the error a wrapped provider returns (directly or
// wrapped) to signal a rate-limited call; the limiter backs off when it
// sees it and passes the error through to the caller.
var ErrRateLimited = errors.New("middleware: provider rate limited")

// AdaptiveRateLimiter applies an AIMD-style adaptive token bucket on top
// of a roleengine.Provider, estimating request cost in characters and
// adjusting its effective tokens-per-minute budget in response to
// observed outcomes.
type AdaptiveRateLimiter struct {
	mu sync.Mutex

	limiter *rate.Limiter

	currentTPM float64
	minTPM     float64
	maxTPM     float64

	recoveryRate float64
}

// NewAdaptiveRateLimiter constructs a limiter with an initial and maximum
// tokens-per-minute budget.
func NewAdaptiveRateLimiter(initialTPM, maxTPM float64) *AdaptiveRateLimiter {
	if initialTPM <= 0 {
		initialTPM = 60000
	}
	if maxTPM <= 0 || maxTPM < initialTPM {
		maxTPM = initialTPM
	}
	minTPM := initialTPM * 0.1
	if minTPM < 1 {
		minTPM = 1
	}
	recoveryRate := initialTPM * 0.05
	if recoveryRate < 1 {
		recoveryRate = 1
	}
	return &AdaptiveRateLimiter{
		limiter:      rate.NewLimiter(rate.Limit(initialTPM/60.0), int(initialTPM)),
		currentTPM:   initialTPM,
		minTPM:       minTPM,
		maxTPM:       maxTPM,
		recoveryRate: recoveryRate,
	}
}

// Wrap returns a roleengine.Provider that enforces the adaptive limit
// ahead of every Execute call.
func (l *AdaptiveRateLimiter) Wrap(next roleengine.Provider) roleengine.Provider {
	return &limitedProvider{next: next, limiter: l}
}

type limitedProvider struct {
	next    roleengine.Provider
	limiter *AdaptiveRateLimiter
}

func (p *limitedProvider) Probe(ctx context.Context) bool {
	return p.next.Probe(ctx)
}

func (p *limitedProvider) Execute(ctx context.Context, spec roleengine.ModelSpec, prompt string, opts roleengine.ModelOptions) (roleengine.ModelResponse, error) {
	if err := p.limiter.wait(ctx, prompt); err != nil {
		return roleengine.ModelResponse{}, err
	}
	resp, err := p.next.Execute(ctx, spec, prompt, opts)
	p.limiter.observe(err)
	return resp, err
}

func (l *AdaptiveRateLimiter) wait(ctx context.Context, prompt string) error {
	return l.limiter.WaitN(ctx, estimateTokens(prompt))
}

func (l *AdaptiveRateLimiter) observe(err error) {
	if err == nil {
		l.probe()
		return
	}
	if errors.Is(err, ErrRateLimited) {
		l.backoff()
	}
}

func (l *AdaptiveRateLimiter) backoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	newTPM := l.currentTPM * 0.5
	if newTPM < l.minTPM {
		newTPM = l.minTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

func (l *AdaptiveRateLimiter) probe() {
	l.mu.Lock()
	defer l.mu.Unlock()
	newTPM := l.currentTPM + l.recoveryRate
	if newTPM > l.maxTPM {
		newTPM = l.maxTPM
	}
	if newTPM == l.currentTPM {
		return
	}
	l.currentTPM = newTPM
	l.limiter.SetLimit(rate.Limit(newTPM / 60.0))
	l.limiter.SetBurst(int(newTPM))
}

// estimateTokens approximates 1 token per ~3 characters plus a fixed
// buffer for framing overhead.
func estimateTokens(prompt string) int {
	charCount := len(prompt)
	if charCount <= 0 {
		return 500
	}
	tokens := charCount / 3
	if tokens < 1 {
		tokens = 1
	}
	return tokens + 500
}
