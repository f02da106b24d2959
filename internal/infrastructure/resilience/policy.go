package resilience

import (
	"log/slog"
	"time"
)

// RetryPolicy bounds the attempts made inside one Execute call. Backoff grows
// by Multiplier from InitialBackoff and is capped at MaxBackoff.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// BreakerPolicy configures the per-operation circuit breaker. The breaker
// opens once at least MinRequests calls were seen and the failure ratio
// reaches FailureRatio.
type BreakerPolicy struct {
	Enabled          bool
	MinRequests      uint32
	FailureRatio     float64
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
	Logger  *slog.Logger
}

// OutboundConfig is the policy for the rebuild queue and the chat responder:
// a short retry burst, since both callers sit on a request path.
func OutboundConfig(maxAttempts int, breakerEnabled bool, logger *slog.Logger) Config {
	return Config{
		Retry: RetryPolicy{
			MaxAttempts:    maxAttempts,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     400 * time.Millisecond,
			Multiplier:     2,
		},
		Breaker: BreakerPolicy{
			Enabled:          breakerEnabled,
			MinRequests:      10,
			FailureRatio:     0.5,
			OpenTimeout:      30 * time.Second,
			HalfOpenMaxCalls: 2,
		},
		Logger: logger,
	}
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialBackoff < 0 {
		p.InitialBackoff = 0
	}
	p.MaxBackoff = max(p.MaxBackoff, p.InitialBackoff)
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// next returns the wait after an attempt that waited current.
func (p RetryPolicy) next(current time.Duration) time.Duration {
	return min(time.Duration(float64(current)*p.Multiplier), p.MaxBackoff)
}

func (p BreakerPolicy) normalize() BreakerPolicy {
	p.MinRequests = max(p.MinRequests, 1)
	if p.FailureRatio <= 0 || p.FailureRatio > 1 {
		p.FailureRatio = 0.5
	}
	if p.OpenTimeout <= 0 {
		p.OpenTimeout = 30 * time.Second
	}
	p.HalfOpenMaxCalls = max(p.HalfOpenMaxCalls, 1)
	return p
}

func (c Config) normalize() Config {
	c.Retry = c.Retry.normalize()
	c.Breaker = c.Breaker.normalize()
	return c
}
