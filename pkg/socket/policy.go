package socket

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/go-go-golems/parley/pkg/config"
)

// Policy describes how a closed channel is reopened.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// MaxRetries bounds consecutive failed attempts. 0 retries forever.
	MaxRetries int
}

// PolicyFrom converts the configured reconnect settings.
func PolicyFrom(r config.Reconnect) Policy {
	return Policy{
		InitialDelay: r.InitialDelay,
		MaxDelay:     r.MaxDelay,
		Multiplier:   r.Multiplier,
		MaxRetries:   r.MaxRetries,
	}
}

// DefaultPolicy is 5s doubling up to 60s, ten attempts.
func DefaultPolicy() Policy {
	return PolicyFrom(config.DefaultReconnect())
}

// NewBackOff builds a fresh backoff for one channel. Delays are not jittered
// so the schedule is predictable.
func (p Policy) NewBackOff() backoff.BackOff {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = 5 * time.Second
	}
	maxDelay := p.MaxDelay
	if maxDelay < initial {
		maxDelay = initial
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	exp := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initial),
		backoff.WithMaxInterval(maxDelay),
		backoff.WithMultiplier(mult),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxElapsedTime(0),
	)

	if p.MaxRetries > 0 {
		return backoff.WithMaxRetries(exp, uint64(p.MaxRetries))
	}
	return exp
}
