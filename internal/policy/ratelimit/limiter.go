// Package ratelimit throttles outbound requests with a fixed random jitter and
// an optional, non-adaptive request-rate ceiling.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/bookharvest/internal/metrics"
)

// Config holds throttle configuration.
type Config struct {
	// JitterMin and JitterMax bound the uniform random pause taken before every request.
	JitterMin time.Duration
	JitterMax time.Duration
	// MaxRPS caps the process-wide request rate. Zero or less disables the cap.
	MaxRPS float64
	Burst  int
}

// Throttle is shared by all workers; it is safe for concurrent use.
type Throttle struct {
	jitter  Jitter
	limiter *rate.Limiter
	pause   func(ctx context.Context, d time.Duration) error
}

// New creates a Throttle.
func New(cfg Config) *Throttle {
	t := &Throttle{
		jitter: NewJitter(cfg.JitterMin, cfg.JitterMax),
		pause:  sleepContext,
	}
	if cfg.MaxRPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRPS), burst)
	}
	return t
}

// Wait blocks for the rate ceiling (if any) and then for a random jitter.
func (t *Throttle) Wait(ctx context.Context) error {
	start := time.Now()
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if err := t.pause(ctx, t.jitter.Next()); err != nil {
		return fmt.Errorf("jitter wait: %w", err)
	}
	metrics.ObserveThrottleDelay(time.Since(start))
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
