package reliability_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ogulcanaydogan/energy-advisor/pkg/reliability"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "op timed out" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit", reliability.NewTransientError(errBoom, 503), true},
		{"wrapped explicit", fmt.Errorf("call: %w", reliability.NewTransientError(errBoom, 0)), true},
		{"deadline", context.DeadlineExceeded, true},
		{"net timeout", &net.OpError{Op: "read", Err: timeoutErr{}}, true},
		{"conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"string pattern", errors.New("read tcp: connection reset by peer"), true},
		{"malformed", reliability.NewMalformedError(errBoom, "confidence"), false},
		{"malformed wrapping timeout", reliability.NewMalformedError(context.DeadlineExceeded, ""), false},
		{"circuit open", reliability.ErrCircuitOpen, false},
		{"plain", errors.New("bad request"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reliability.IsTransient(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "transient remote error (status 429): boom", reliability.NewTransientError(errBoom, 429).Error())
	assert.Equal(t, "transient remote error: boom", reliability.NewTransientError(errBoom, 0).Error())
	assert.Equal(t, "malformed response (headline): boom", reliability.NewMalformedError(errBoom, "headline").Error())
	assert.ErrorIs(t, reliability.NewMalformedError(errBoom, ""), errBoom)
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, reliability.IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, reliability.IsTransientHTTPStatus(code), code)
	}
}
