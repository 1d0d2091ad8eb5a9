package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig holds the configuration for the per-request retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (initial request + retries).
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Zero disables backoff.
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between retries.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns 21 attempts with no delay between them.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       21,
		InitialBackoff:    0,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// newBackOff builds the backoff policy for one logical request.
func (rc RetryConfig) newBackOff(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if rc.InitialBackoff > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = rc.InitialBackoff
		exp.MaxInterval = rc.MaxBackoff
		if rc.BackoffMultiplier > 0 {
			exp.Multiplier = rc.BackoffMultiplier
		}
		// Attempts, not elapsed time, bound the loop.
		exp.MaxElapsedTime = 0
		b = exp
	}

	retries := rc.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}
