// Package risk turns a customer's repayment history into a low/medium/high
// tier used for report display and reminder tone.
package risk

import (
	"context"
	"time"

	"tokokasbon/backend/internal/cache"
	"tokokasbon/backend/internal/domain"
)

// Tier thresholds on the on-time rate, inclusive lower bounds.
const (
	lowThreshold    = 0.85
	mediumThreshold = 0.60
)

type Engine struct {
	cache               cache.RiskCache
	cacheTTL            time.Duration
	outstandingMultiple float64
}

func NewEngine(cacheStore cache.RiskCache, cacheTTL time.Duration, outstandingMultiple float64) *Engine {
	if cacheStore == nil {
		cacheStore = cache.NoopRiskCache{}
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if outstandingMultiple <= 0 {
		outstandingMultiple = 2.0
	}

	return &Engine{
		cache:               cacheStore,
		cacheTTL:            cacheTTL,
		outstandingMultiple: outstandingMultiple,
	}
}

// Classify computes the base tier from payment history alone. A customer
// with no history is low risk: new customer, no negative signal yet.
func Classify(history []domain.PaymentHistoryEntry) string {
	if len(history) == 0 {
		return domain.RiskLow
	}

	onTime := 0
	for _, entry := range history {
		if entry.OnTime {
			onTime++
		}
	}
	rate := float64(onTime) / float64(len(history))

	switch {
	case rate >= lowThreshold:
		return domain.RiskLow
	case rate >= mediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

// Escalate bumps a tier one step up. High stays high.
func Escalate(level string) string {
	switch level {
	case domain.RiskLow:
		return domain.RiskMedium
	case domain.RiskMedium:
		return domain.RiskHigh
	default:
		return domain.RiskHigh
	}
}

// Evaluate computes the customer's effective tier: the history tier,
// escalated one step when the outstanding balance across open loans exceeds
// the configured multiple of the customer's average loan size. The result is
// cached so report views do not recompute it on every read.
func (e *Engine) Evaluate(ctx context.Context, customerID string, history []domain.PaymentHistoryEntry, outstandingCents int64, averageLoanCents int64) string {
	level := Classify(history)
	if averageLoanCents > 0 && float64(outstandingCents) > e.outstandingMultiple*float64(averageLoanCents) {
		level = Escalate(level)
	}

	_ = e.cache.Set(ctx, cacheKey(customerID), level, e.cacheTTL)
	return level
}

// Cached returns the last evaluated tier for the customer, if still fresh.
func (e *Engine) Cached(ctx context.Context, customerID string) (string, bool) {
	level, ok, err := e.cache.Get(ctx, cacheKey(customerID))
	if err != nil || !ok {
		return "", false
	}
	return level, true
}

func cacheKey(customerID string) string {
	return "pos:risk:" + customerID
}
