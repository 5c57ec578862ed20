package verifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"cancelled context", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("verifier call failed: %w", context.DeadlineExceeded), true},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, true},
		{"connection refused", errors.New("dial tcp 10.0.0.5:8092: connect: connection refused"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"rate limit wording", errors.New("verifier returned HTTP 200: rate limit exceeded, slow down"), true},
		{"http 429", &StatusError{StatusCode: 429, Body: "too many requests"}, true},
		{"http 502", &StatusError{StatusCode: 502, Body: "bad gateway"}, true},
		{"http 503", &StatusError{StatusCode: 503, Body: "unavailable"}, true},
		{"http 504", &StatusError{StatusCode: 504, Body: "gateway timeout"}, true},
		{"http 500", &StatusError{StatusCode: 500, Body: "boom"}, false},
		{"http 400", &StatusError{StatusCode: 400, Body: "bad request"}, false},
		{"http 401", &StatusError{StatusCode: 401, Body: "unauthorized"}, false},
		{"plain error", errors.New("malformed response"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestNewBackOffSchedule(t *testing.T) {
	b := NewBackOff(1*time.Second, 8*time.Second, 2.0)

	// base * multiplier^(attempt-1), capped at 8s.
	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, want := range expected {
		assert.Equal(t, want, b.NextBackOff(), "delay %d", i+1)
	}
}

func TestNewBackOffResetRestartsSchedule(t *testing.T) {
	b := NewBackOff(1*time.Second, 8*time.Second, 2.0)

	assert.Equal(t, 1*time.Second, b.NextBackOff())
	assert.Equal(t, 2*time.Second, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 1*time.Second, b.NextBackOff())
}
