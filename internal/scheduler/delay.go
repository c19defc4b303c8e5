package scheduler

import (
	"context"
	"math/rand/v2"
	"time"
	"unicode/utf8"
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func RealSleeper(ctx context.Context, d time.Duration) error {
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

// ImmediateSleeper never waits; turns are delivered as soon as they are composed.
func ImmediateSleeper(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// DelayPolicy computes the length-aware "thinking" pause:
// Base + min(PerChar*len(text), Cap) + uniform jitter in [0, Jitter).
type DelayPolicy struct {
	Base    time.Duration
	PerChar time.Duration
	Cap     time.Duration
	Jitter  time.Duration
	// Rand returns a value in [0, n). Defaults to math/rand/v2.
	Rand func(n int64) int64
}

func (p DelayPolicy) For(text string) time.Duration {
	scaled := p.PerChar * time.Duration(utf8.RuneCountInString(text))
	if p.Cap >= 0 && scaled > p.Cap {
		scaled = p.Cap
	}
	d := p.Base + scaled
	if p.Jitter > 0 {
		rnd := p.Rand
		if rnd == nil {
			rnd = rand.Int64N
		}
		d += time.Duration(rnd(int64(p.Jitter)))
	}
	if d < 0 {
		return 0
	}
	return d
}
