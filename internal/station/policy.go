package station

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ReconnectPolicy describes how connect commands are re-issued after the
// link drops.
type ReconnectPolicy struct {
	// InitialInterval is the first delay. Zero re-issues immediately.
	InitialInterval time.Duration `yaml:"initial_interval"`
	// MaxInterval caps the exponential delay.
	MaxInterval time.Duration `yaml:"max_interval"`
	// MaxElapsed gives up after this long. Zero retries forever.
	MaxElapsed time.Duration `yaml:"max_elapsed"`
	// MaxAttempts gives up after this many retries. Zero is unlimited.
	MaxAttempts uint64 `yaml:"max_attempts"`
}

// BackOff builds the backoff.BackOff for Config.Reconnect. It returns nil
// for the immediate, unlimited behaviour.
func (p ReconnectPolicy) BackOff() backoff.BackOff {
	var b backoff.BackOff
	if p.InitialInterval > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = p.InitialInterval
		if p.MaxInterval > 0 {
			exp.MaxInterval = p.MaxInterval
		}
		exp.MaxElapsedTime = p.MaxElapsed
		exp.Reset()
		b = exp
	} else if p.MaxAttempts > 0 {
		b = &backoff.ZeroBackOff{}
	} else {
		return nil
	}

	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, p.MaxAttempts)
	}
	return b
}
