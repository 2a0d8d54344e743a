package reliability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrCircuitOpen is returned without attempting the call when the endpoint's
// circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// TransientRemoteError wraps a failure that is safe to retry: a timeout, a
// transport error, or a 408/429/5xx response.
type TransientRemoteError struct {
	Err        error
	StatusCode int
}

func (e *TransientRemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient remote error (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient remote error: %v", e.Err)
}

func (e *TransientRemoteError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientRemoteError {
	return &TransientRemoteError{Err: err, StatusCode: statusCode}
}

// MalformedResponseError means the remote answered but the body failed schema
// validation. It is never retried.
type MalformedResponseError struct {
	Err       error
	Diagnosis string // e.g. which field failed
}

func (e *MalformedResponseError) Error() string {
	if e.Diagnosis != "" {
		return fmt.Sprintf("malformed response (%s): %v", e.Diagnosis, e.Err)
	}
	return fmt.Sprintf("malformed response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// NewMalformedError wraps err as a schema failure.
func NewMalformedError(err error, diagnosis string) *MalformedResponseError {
	return &MalformedResponseError{Err: err, Diagnosis: diagnosis}
}

// IsMalformed reports whether err is or wraps a MalformedResponseError.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

// IsTransient reports whether err is worth retrying. Malformed responses
// never are, even when they wrap a transient-looking cause.
func IsTransient(err error) bool {
	if err == nil || IsMalformed(err) || errors.Is(err, ErrCircuitOpen) {
		return false
	}

	var te *TransientRemoteError
	if errors.As(err, &te) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// HTTP clients frequently flatten these into strings.
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

var transientPatterns = []string{
	"connection reset by peer",
	"connection refused",
	"broken pipe",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransientHTTPStatus reports whether an HTTP status is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 425, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
