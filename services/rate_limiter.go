package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/tlord101/VanTutor-sub000/config"
	"github.com/tlord101/VanTutor-sub000/models"
)

// GenericAIFailureMessage is what end users see when a guarded AI call fails.
// The original error is logged, never propagated to the client.
const GenericAIFailureMessage = "The AI tutor is temporarily unavailable. Please try again in a moment."

// AdmissionResult is the outcome of a rate-limit check. A denied admission is
// a normal, expected outcome, not an error.
type AdmissionResult struct {
	Allowed           bool   `json:"allowed"`
	Message           string `json:"message,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// RateLimiter is a sliding-window request counter gating outbound AI calls
// for one user. The retained-timestamp window lives in process memory only:
// it is a UX throttle, not a security control. A user hitting two replicas
// (or a restarted process) gets a fresh window; a real quota guarantee would
// need a shared counter behind it.
type RateLimiter struct {
	mu          sync.Mutex
	maxRequests int
	interval    time.Duration
	timestamps  []time.Time
	now         func() time.Time
}

// NewRateLimiter creates a limiter admitting at most maxRequests per interval.
func NewRateLimiter(maxRequests int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		interval:    interval,
		now:         time.Now,
	}
}

// prune drops retained timestamps older than the window. Caller holds mu.
func (l *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.interval)
	kept := l.timestamps[:0]
	for _, ts := range l.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.timestamps = kept
}

// Check prunes expired timestamps and reports whether a new call may proceed.
// It never records the attempt; only Record consumes quota, so repeated
// checks without a Record cannot change the admission outcome.
func (l *RateLimiter) Check() AdmissionResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	if len(l.timestamps) >= l.maxRequests {
		// A non-positive capacity (misconfigured tier) denies every call;
		// with nothing retained there is no oldest timestamp to wait out,
		// so report the full window.
		remaining := l.interval
		if len(l.timestamps) > 0 {
			remaining = l.interval - now.Sub(l.timestamps[0])
		}
		seconds := int(math.Ceil(remaining.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		return AdmissionResult{
			Allowed:           false,
			Message:           fmt.Sprintf("You're sending requests too quickly. Please wait %d seconds and try again.", seconds),
			RetryAfterSeconds: seconds,
		}
	}
	return AdmissionResult{Allowed: true}
}

// Record appends "now" to the retained timestamps. Callers must invoke it
// only after the gated action actually succeeded; a failed downstream call
// must not consume quota.
func (l *RateLimiter) Record() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = append(l.timestamps, l.now())
}

// UpdateConfig replaces capacity and window length and unconditionally clears
// all retained timestamps. Switching plan tiers discards rate history rather
// than reconciling it.
func (l *RateLimiter) UpdateConfig(maxRequests int, interval time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.maxRequests = maxRequests
	l.interval = interval
	l.timestamps = nil
}

// LimiterPool owns one RateLimiter per user, configured from the user's plan
// tier. A tier change detected on lookup resets that user's window.
type LimiterPool struct {
	mu       sync.Mutex
	limiters map[string]*pooledLimiter
}

type pooledLimiter struct {
	limiter *RateLimiter
	limits  config.PlanLimits
}

// NewLimiterPool creates an empty LimiterPool.
func NewLimiterPool() *LimiterPool {
	return &LimiterPool{limiters: make(map[string]*pooledLimiter)}
}

// limiterFor returns the user's limiter, creating or reconfiguring it to the
// tier's limits as needed.
func (p *LimiterPool) limiterFor(userID string, tier models.PlanTier) (*RateLimiter, config.PlanLimits) {
	limits := config.PlanLimitsFor(string(tier))

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.limiters[userID]
	if !ok {
		entry = &pooledLimiter{
			limiter: NewRateLimiter(limits.MaxRequests, time.Duration(limits.IntervalMS)*time.Millisecond),
			limits:  limits,
		}
		p.limiters[userID] = entry
	} else if entry.limits != limits {
		log.Printf("INFO: [RateLimiter] Plan limits changed for userID %s (tier '%s'); resetting window.", userID, tier)
		entry.limiter.UpdateConfig(limits.MaxRequests, time.Duration(limits.IntervalMS)*time.Millisecond)
		entry.limits = limits
	}
	return entry.limiter, limits
}

// CallResult resolves a guarded call to a structured outcome so callers can
// render inline feedback without error plumbing at every call site.
type CallResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// AttemptAPICall gates an AI-backed action behind the user's rate limit.
// Denied checks return the limiter's message without running the action.
// Admitted calls wait out the tier's delay (a deliberate throttle; lower
// tiers wait longer), run the action, and consume quota only on success.
// Failures surface as a generic message; the original error is only logged.
// No retry is performed; the caller decides whether to try again.
func (p *LimiterPool) AttemptAPICall(ctx context.Context, userID string, tier models.PlanTier, action func(ctx context.Context) error) CallResult {
	limiter, limits := p.limiterFor(userID, tier)

	admission := limiter.Check()
	if !admission.Allowed {
		// Expected outcome, not an error condition.
		log.Printf("INFO: [RateLimiter] Admission denied for userID %s (tier '%s'), retry in %ds.", userID, tier, admission.RetryAfterSeconds)
		return CallResult{Success: false, Message: admission.Message}
	}

	if limits.DelayMS > 0 {
		// Once the timer is armed the delayed call is not cancellable.
		time.Sleep(time.Duration(limits.DelayMS) * time.Millisecond)
	}

	if err := action(ctx); err != nil {
		log.Printf("ERROR: [RateLimiter] Guarded AI call failed for userID %s: %v", userID, err)
		return CallResult{Success: false, Message: GenericAIFailureMessage}
	}

	limiter.Record()
	return CallResult{Success: true}
}

// CheckOnly exposes the admission decision for a user without running an
// action, for callers that want to pre-flight (e.g. the init endpoint).
func (p *LimiterPool) CheckOnly(userID string, tier models.PlanTier) AdmissionResult {
	limiter, _ := p.limiterFor(userID, tier)
	return limiter.Check()
}
