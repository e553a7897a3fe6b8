package resilience

import "time"

// Defaults sized for the collaborators the executor guards: NATS staleness
// publishes and Ollama embed/generate calls. Object-store and Postgres
// failures are handled at the pipeline level instead.
const (
	defaultRetryAttempts   = 3
	defaultInitialBackoff  = 100 * time.Millisecond
	defaultMaxBackoff      = 400 * time.Millisecond
	defaultRetryMultiplier = 2.0

	defaultBreakerMinRequests      = uint32(10)
	defaultBreakerFailureRatio     = 0.5
	defaultBreakerOpenTimeout      = 30 * time.Second
	defaultBreakerHalfOpenMaxCalls = uint32(2)
)

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    defaultRetryAttempts,
		RetryInitialBackoff: defaultInitialBackoff,
		RetryMaxBackoff:     defaultMaxBackoff,
		RetryMultiplier:     defaultRetryMultiplier,

		BreakerEnabled:          true,
		BreakerMinRequests:      defaultBreakerMinRequests,
		BreakerFailureRatio:     defaultBreakerFailureRatio,
		BreakerOpenTimeout:      defaultBreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: defaultBreakerHalfOpenMaxCalls,
	}
}

// normalize clamps zero and nonsense values back to the defaults so a partly
// filled Config stays usable.
func (c Config) normalize() Config {
	out := c

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = defaultRetryAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = defaultInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = defaultMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = defaultRetryMultiplier
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = defaultBreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = defaultBreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = defaultBreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = defaultBreakerHalfOpenMaxCalls
	}

	return out
}
