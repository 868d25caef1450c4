package syncstore

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"time"
)

// FailureKind classifies fetch errors for backoff and user-facing notes.
type FailureKind int

const (
	FailureTransient FailureKind = iota
	FailureRateLimited
	FailureCanceled
)

func (k FailureKind) String() string {
	switch k {
	case FailureRateLimited:
		return "rate_limited"
	case FailureCanceled:
		return "canceled"
	default:
		return "transient"
	}
}

// ErrMissingIdempotencyKey is returned by ApplyPatch for patches without a key.
var ErrMissingIdempotencyKey = errors.New("patch has no idempotency key")

var rateLimitPattern = regexp.MustCompile(`(?i)rate.?limit|too many requests`)

type statusCoder interface {
	StatusCode() int
}

type retryAfterer interface {
	RetryAfter() time.Duration
}

// Classify maps a fetch error onto a FailureKind. HTTP 429 and 503 (exposed
// through a StatusCode() int method anywhere in the chain) and messages that
// mention rate limiting are RateLimited; cancellations are Canceled.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureTransient
	}
	if errors.Is(err, context.Canceled) {
		return FailureCanceled
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return FailureRateLimited
		}
	}
	if rateLimitPattern.MatchString(err.Error()) {
		return FailureRateLimited
	}
	return FailureTransient
}

// retryAfter extracts a server-supplied retry hint, or zero.
func retryAfter(err error) time.Duration {
	var ra retryAfterer
	if errors.As(err, &ra) {
		if d := ra.RetryAfter(); d > 0 {
			return d
		}
	}
	return 0
}
