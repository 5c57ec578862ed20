package verifier

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// IsRetryable reports whether a verification error is transport-level and
// worth another attempt on the backoff schedule. Everything else is fatal
// for the ticket.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Shutdown is not transient.
	if errors.Is(err, context.Canceled) {
		return false
	}

	// An exceeded per-call deadline is a transient infrastructure error.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	transient := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"timeout",
		"timed out",
		"rate limit",
	}
	for _, s := range transient {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// NewBackOff builds the delay schedule between verification attempts:
// base * multiplier^(attempt-1), capped. Jitter is disabled so attempt
// spacing stays predictable in event timelines.
func NewBackOff(base, delayCap time.Duration, multiplier float64) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = delayCap
	b.Multiplier = multiplier
	b.RandomizationFactor = 0
	// Attempt count is bounded by the caller, not wall time.
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
