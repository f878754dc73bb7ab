package search

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/venatordev/venator/internal/common"
	"golang.org/x/time/rate"
)

// RateLimiter enforces a randomized pause between search operations. A
// token-bucket limiter provides the hard floor (no two operations closer
// than the minimum interval) and a random extension on top of it breaks the
// fixed cadence that automated traffic is spotted by.
type RateLimiter struct {
	limiter *rate.Limiter
	min     time.Duration
	max     time.Duration
	logger  arbor.ILogger

	mu    sync.Mutex
	first bool

	sleep func(ctx context.Context, d time.Duration) error
	rng   *rand.Rand
}

// NewRateLimiter creates a limiter from the configured interval bounds.
func NewRateLimiter(config *common.RateLimitConfig, logger arbor.ILogger) *RateLimiter {
	min := config.MinInterval
	limit := rate.Inf
	if min > 0 {
		limit = rate.Every(min)
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(limit, 1),
		min:     min,
		max:     config.MaxInterval,
		logger:  logger,
		first:   true,
		sleep:   sleepCtx,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AcquireSlot blocks until the next search operation may proceed. The first
// acquisition passes immediately; each later one waits out the token floor
// plus a random extension up to the configured maximum. Cancellation of ctx
// aborts the wait.
func (r *RateLimiter) AcquireSlot(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.first {
		r.first = false
		// Consume the initial token so the next caller waits.
		return r.limiter.Wait(ctx)
	}

	start := time.Now()
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}

	if extra := r.jitter(); extra > 0 {
		if err := r.sleep(ctx, extra); err != nil {
			return err
		}
	}

	r.logger.Debug().Dur("waited", time.Since(start)).Msg("Rate limit slot acquired")
	return nil
}

// jitter returns a random extension in [0, max-min].
func (r *RateLimiter) jitter() time.Duration {
	span := r.max - r.min
	if span <= 0 {
		return 0
	}
	return time.Duration(r.rng.Int63n(int64(span) + 1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
