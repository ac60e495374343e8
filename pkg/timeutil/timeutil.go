package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// DurationPtr is a helper function to create a pointer to a time.Duration
func DurationPtr(d time.Duration) *time.Duration {
	return &d
}

// MaxDuration returns the largest duration in the slice, or zero for an
// empty slice. The input is never mutated.
func MaxDuration(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}
	max := durations[0]
	for _, d := range durations[1:] {
		if d > max {
			max = d
		}
	}
	return max
}

// ComputeJitter returns a pseudo-random duration between 0 and max (exclusive).
// Non-positive max yields zero.
func ComputeJitter(max time.Duration, rng rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}

// UniformBetween returns a pseudo-random duration in [lo, hi].
// When hi <= lo the result is lo.
func UniformBetween(lo, hi time.Duration, rng *rand.Rand) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int63n(int64(hi-lo)+1))
}

// ExponentialBackoffDelay computes the delay before the given attempt:
// initial * multiplier^(count-1), capped at the configured maximum, plus
// a uniform jitter when jitter > 0.
func ExponentialBackoffDelay(
	backoffCount int,
	jitter time.Duration,
	rng rand.Rand,
	param BackoffParam,
) time.Duration {
	if backoffCount < 1 {
		backoffCount = 1
	}

	exponent := float64(backoffCount - 1)
	delay := float64(param.InitialDuration()) * math.Pow(param.Multiplier(), exponent)
	if delay > float64(param.MaxDuration()) {
		delay = float64(param.MaxDuration())
	}

	if jitter > 0 {
		delay += float64(ComputeJitter(jitter, rng))
	}

	return time.Duration(delay)
}

// Sleeper abstracts time.Sleep so waits can be observed in tests.
type Sleeper interface {
	Sleep(d time.Duration)
}

type RealSleeper struct {
}

func NewRealSleeper() RealSleeper {
	return RealSleeper{}
}

func (s *RealSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}
