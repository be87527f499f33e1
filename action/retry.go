package action

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mensylisir/xmism/config"
)

// Retry defines how many times a step of an action may be re-executed and how long to
// wait in between.
type Retry struct {
	Count   int
	Backoff string
	Delay   time.Duration
}

// DefaultRetry is used for actions configured without a retry section.
var DefaultRetry = Retry{
	Count:   config.DefaultRetryCount,
	Backoff: config.DefaultBackoff,
	Delay:   config.DefaultRetryDelay,
}

func retryFromSpec(spec *config.RetrySpec) Retry {
	r := DefaultRetry
	if spec == nil {
		return r
	}
	if spec.Count != nil {
		r.Count = *spec.Count
	}
	if spec.Backoff != "" {
		r.Backoff = spec.Backoff
	}
	if spec.Delay > 0 {
		r.Delay = spec.Delay
	}
	return r
}

// BackOff returns a fresh policy yielding the wait before each retry. It stops after
// Count retries.
func (r Retry) BackOff() backoff.BackOff {
	var b backoff.BackOff
	switch r.Backoff {
	case config.BackoffConstant:
		b = backoff.NewConstantBackOff(r.Delay)
	case config.BackoffLinear:
		b = &linearBackOff{step: r.Delay}
	default:
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = r.Delay
		exp.Multiplier = 2
		exp.RandomizationFactor = 0
		exp.MaxInterval = 24 * time.Hour
		exp.MaxElapsedTime = 0
		exp.Reset()
		b = exp
	}
	return backoff.WithMaxRetries(b, uint64(max(r.Count, 0)))
}

// linearBackOff waits step, 2*step, 3*step and so on.
type linearBackOff struct {
	step    time.Duration
	attempt int64
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * l.step
}

func (l *linearBackOff) Reset() { l.attempt = 0 }
