package store

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/nhsjobwatch/jobwatch/internal/metrics"
)

// Governor is the shared quota limiter for the backing service. A call that
// would exceed the quota blocks until a token is available; this is the sole
// backpressure mechanism in the system.
type Governor struct {
	limiter *rate.Limiter
}

// NewGovernor allows calls per period, with the full quota available as an
// initial burst.
func NewGovernor(calls int, period time.Duration) *Governor {
	if calls <= 0 {
		calls = 1
	}
	if period <= 0 {
		period = time.Minute
	}
	return &Governor{
		limiter: rate.NewLimiter(rate.Every(period/time.Duration(calls)), calls),
	}
}

// Wait blocks until quota is available, respecting the context.
func (g *Governor) Wait(ctx context.Context) error {
	start := time.Now()
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("quota wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveQuotaWait(d)
	}
	return nil
}
