package resilience

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/centinela-gamma/centinela/pkg/fn"
)

// LimiterOpts configures a token bucket.
type LimiterOpts struct {
	// Rate is tokens added per second. Zero or less means unlimited.
	Rate float64
	// Burst is the bucket capacity.
	Burst int
}

// Limiter is a token bucket shared by every caller of one upstream.
type Limiter struct {
	rl *rate.Limiter
}

// NewLimiter creates a Limiter.
func NewLimiter(opts LimiterOpts) *Limiter {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	return &Limiter{rl: rate.NewLimiter(limit, opts.Burst)}
}

// Allow takes a token if one is free.
func (l *Limiter) Allow() bool { return l.rl.Allow() }

// Wait blocks until a token is free or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error { return l.rl.Wait(ctx) }

// LimiterStageWait waits for a token before running stage.
func LimiterStageWait[In, Out any](l *Limiter, stage fn.Stage[In, Out]) fn.Stage[In, Out] {
	return func(ctx context.Context, in In) fn.Result[Out] {
		if err := l.Wait(ctx); err != nil {
			return fn.Err[Out](err)
		}
		return stage(ctx, in)
	}
}
