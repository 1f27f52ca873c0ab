// Package retry wraps collaborator HTTP calls in capped exponential
// backoff. Only idempotent requests go through here; requests with side
// effects are issued once by their clients.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config bounds the retry envelope for one collaborator call.
type Config struct {
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration

	// MaxInterval caps the delay between attempts.
	MaxInterval time.Duration

	// MaxElapsedTime bounds the whole retry loop, attempts included.
	MaxElapsedTime time.Duration
}

// DefaultConfig returns the envelope used for idempotent collaborator
// requests.
func DefaultConfig() Config {
	return Config{
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		MaxElapsedTime:  20 * time.Second,
	}
}

// Do runs op under exponential backoff until it succeeds, fails
// permanently, exhausts the envelope, or ctx is done. The last
// operation error is returned.
func Do(ctx context.Context, cfg Config, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.MaxElapsedTime = cfg.MaxElapsedTime
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

// Permanent marks err as non-retryable so Do returns it immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
