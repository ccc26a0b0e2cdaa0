package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// SettleDelay is a randomized wait within [Min, Max] that keeps the request
// cadence irregular.
type SettleDelay struct {
	Min time.Duration
	Max time.Duration
}

// Next draws the next wait duration
func (d SettleDelay) Next() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	return d.Min + rand.N(d.Max-d.Min+1)
}

// Wait blocks for the next drawn duration or until ctx is done
func (d SettleDelay) Wait(ctx context.Context) error {
	dur := d.Next()
	if dur <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(dur)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
