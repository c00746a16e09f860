// Package monetary adjusts historical case amounts to present value using a
// central-bank index series.
package monetary

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RateSource produces the accumulated rate over a period. *bcb.Client
// satisfies it.
type RateSource interface {
	AccumulatedRate(ctx context.Context, start, end time.Time) (float64, error)
}

// RateCache memoizes period rates across runs. *cache.Store satisfies it.
type RateCache interface {
	Rate(key string) (float64, bool)
	SetRate(key string, v float64)
}

// Corrector adjusts amounts by the accumulated index between the case date
// and now. Lookups are memoized per month so a run hits the rate API at most
// once per distinct period, failures included.
type Corrector struct {
	source RateSource
	cache  RateCache
	now    func() time.Time
}

// New builds a corrector. cache may be nil to disable memoization.
func New(source RateSource, cache RateCache) *Corrector {
	return &Corrector{source: source, cache: cache, now: time.Now}
}

// PeriodRate returns the accumulated rate from start to the current date.
// A lookup failure is memoized as zero so the period is not retried within
// the run.
func (c *Corrector) PeriodRate(ctx context.Context, start time.Time) float64 {
	end := c.now().UTC()
	from := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	key := fmt.Sprintf("%s_%s", from.Format("2006-01"), end.Format("2006-01"))

	if c.cache != nil {
		if v, ok := c.cache.Rate(key); ok {
			return v
		}
	}

	rate, err := c.source.AccumulatedRate(ctx, from, end)
	if err != nil {
		zap.L().Warn("rate lookup failed, assuming zero",
			zap.String("period", key),
			zap.Error(err),
		)
		rate = 0
	}
	if c.cache != nil {
		c.cache.SetRate(key, rate)
	}
	return rate
}

// Adjust returns the amount corrected by the accumulated rate since start.
func (c *Corrector) Adjust(ctx context.Context, amount float64, start time.Time) float64 {
	return amount * (1 + c.PeriodRate(ctx, start))
}
