package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// retryingProvider retries transient failures with exponential backoff
// and ±20% jitter. An invalid response is retried at most once.
type retryingProvider struct {
	Provider
	cfg RetryConfig
}

// WithRetry wraps p with retries. MaxAttempts below 1 means one attempt.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &retryingProvider{Provider: p, cfg: cfg}
}

func (r *retryingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var (
		lastErr        error
		invalidRetried bool
	)
	for attempt := range r.cfg.MaxAttempts {
		resp, err := r.Provider.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}
		var inv *ErrInvalidResponse
		if errors.As(err, &inv) {
			if invalidRetried {
				return nil, err
			}
			invalidRetried = true
		}
		if attempt == r.cfg.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(r.backoff(attempt, err))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

func (r *retryingProvider) backoff(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(r.cfg.InitialWait) * math.Pow(r.cfg.Multiplier, float64(attempt))
	wait = math.Min(wait, float64(r.cfg.MaxWait))
	wait += wait * 0.2 * (2*rand.Float64() - 1)
	return time.Duration(math.Max(wait, 0))
}
