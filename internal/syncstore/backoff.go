package syncstore

import "time"

// backoff tracks failure streaks per profile. Guarded by Store.mu.
type backoff struct {
	general     BackoffProfile
	rateLimited BackoffProfile

	generalStep int
	rateStep    int
	until       time.Time
}

func newBackoff(t Timing) backoff {
	return backoff{general: t.General, rateLimited: t.RateLimited}
}

// apply advances the profile matching kind and returns the delay before the next attempt.
func (b *backoff) apply(kind FailureKind, now time.Time) time.Duration {
	var d time.Duration
	switch kind {
	case FailureRateLimited:
		b.rateStep = min(b.rateStep+1, b.rateLimited.MaxStep)
		d = b.rateLimited.Delay(b.rateStep)
	default:
		b.generalStep = min(b.generalStep+1, b.general.MaxStep)
		d = b.general.Delay(b.generalStep)
	}
	b.until = now.Add(d)
	return d
}

func (b *backoff) reset() {
	b.generalStep = 0
	b.rateStep = 0
	b.until = time.Time{}
}

func (b *backoff) remaining(now time.Time) time.Duration {
	return remaining(b.until, now)
}

func (b *backoff) step(kind FailureKind) int {
	if kind == FailureRateLimited {
		return b.rateStep
	}
	return b.generalStep
}

func remaining(until, now time.Time) time.Duration {
	if until.IsZero() || !now.Before(until) {
		return 0
	}
	return until.Sub(now)
}
